package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const tedDefaultBaseURL = "https://ted.europa.eu"

// TED queries the EU Tenders Electronic Daily notice search API.
type TED struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewTED(opts Options) *TED {
	base := opts.BaseURL
	if base == "" {
		base = tedDefaultBaseURL
	}
	return &TED{baseURL: base, client: opts.client(), limiter: opts.limiter()}
}

func (t *TED) Name() string     { return "ted" }
func (t *TED) Describe() string { return "EU Tenders Electronic Daily notice search" }

type tedNotice struct {
	Title     string   `json:"title"`
	Link      string   `json:"link"`
	Score     *float64 `json:"score"` // 0-100, absent when unranked
	Value     *float64 `json:"estimated-value"`
	Country   string   `json:"country"`
	Published string   `json:"publication-date"`
}

type tedResponse struct {
	Notices []tedNotice `json:"notices"`
}

func (t *TED) Search(ctx context.Context, query Query) ([]Result, error) {
	query, ok := query.Normalize()
	if !ok {
		return nil, ErrEmptyKeywords
	}
	if !t.limiter.Allow() {
		return nil, RateLimited(t.Name(), nil)
	}

	u := t.baseURL + "/api/notices?q=" + url.QueryEscape(query.Keywords) +
		"&limit=" + strconv.Itoa(query.MaxResults)
	req, err := newRequest(ctx, http.MethodGet, u)
	if err != nil {
		return nil, Unknownf(t.Name(), "build request: %v", err)
	}

	resp, err := t.client.Do(req)
	if serr := classifyHTTP(t.Name(), resp, err); serr != nil {
		if err == nil {
			_ = resp.Body.Close()
		}
		return nil, serr
	}
	defer resp.Body.Close()

	var body tedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, Malformed(t.Name(), err)
	}

	results := make([]Result, 0, len(body.Notices))
	for _, n := range body.Notices {
		if n.Title == "" {
			continue
		}
		score := neutralScore
		if n.Score != nil {
			score = *n.Score / 100
			if score < 0 {
				score = 0
			}
			if score > 1 {
				score = 1
			}
		} else {
			score = scoreTitle(n.Title, query.Keywords)
		}
		r := Result{
			Title:          n.Title,
			Source:         t.Name(),
			URL:            n.Link,
			RelevanceScore: score,
			EstimatedValue: n.Value,
			Location:       n.Country,
		}
		if ts, err := time.Parse(time.RFC3339, n.Published); err == nil {
			r.PublishedAt = ts
		}
		results = append(results, r)
	}
	return capResults(results, query.MaxResults), nil
}

func (t *TED) Probe(ctx context.Context) (Status, error) {
	return probeURL(ctx, t.client, t.Name(), t.baseURL+"/api/health")
}
