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

const openProcureDefaultBaseURL = "https://api.openprocure.example.com"

// OpenProcure queries an OCDS-style open procurement release API.
type OpenProcure struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewOpenProcure(opts Options) *OpenProcure {
	base := opts.BaseURL
	if base == "" {
		base = openProcureDefaultBaseURL
	}
	return &OpenProcure{baseURL: base, client: opts.client(), limiter: opts.limiter()}
}

func (o *OpenProcure) Name() string { return "openprocure" }
func (o *OpenProcure) Describe() string {
	return "Open Contracting (OCDS) procurement release search"
}

type ocdsRelease struct {
	Tender struct {
		Title string `json:"title"`
		Value struct {
			Amount *float64 `json:"amount"`
		} `json:"value"`
	} `json:"tender"`
	Buyer struct {
		Address struct {
			Locality string `json:"locality"`
		} `json:"address"`
	} `json:"buyer"`
	URL  string `json:"url"`
	Date string `json:"date"`
}

type ocdsPage struct {
	Releases []ocdsRelease `json:"releases"`
}

func (o *OpenProcure) Search(ctx context.Context, query Query) ([]Result, error) {
	query, ok := query.Normalize()
	if !ok {
		return nil, ErrEmptyKeywords
	}
	if !o.limiter.Allow() {
		return nil, RateLimited(o.Name(), nil)
	}

	u := o.baseURL + "/releases?text=" + url.QueryEscape(query.Keywords) +
		"&size=" + strconv.Itoa(query.MaxResults)
	req, err := newRequest(ctx, http.MethodGet, u)
	if err != nil {
		return nil, Unknownf(o.Name(), "build request: %v", err)
	}

	resp, err := o.client.Do(req)
	if serr := classifyHTTP(o.Name(), resp, err); serr != nil {
		if err == nil {
			_ = resp.Body.Close()
		}
		return nil, serr
	}
	defer resp.Body.Close()

	var page ocdsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, Malformed(o.Name(), err)
	}

	// OCDS releases carry no ranking signal; score locally from the title.
	results := make([]Result, 0, len(page.Releases))
	for _, rel := range page.Releases {
		title := rel.Tender.Title
		if title == "" {
			continue
		}
		r := Result{
			Title:          title,
			Source:         o.Name(),
			URL:            rel.URL,
			RelevanceScore: scoreTitle(title, query.Keywords),
			EstimatedValue: rel.Tender.Value.Amount,
			Location:       rel.Buyer.Address.Locality,
		}
		if ts, err := time.Parse(time.RFC3339, rel.Date); err == nil {
			r.PublishedAt = ts
		}
		results = append(results, r)
	}
	return capResults(results, query.MaxResults), nil
}

func (o *OpenProcure) Probe(ctx context.Context) (Status, error) {
	return probeURL(ctx, o.client, o.Name(), o.baseURL+"/releases?size=1")
}
