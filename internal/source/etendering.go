package source

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const etenderingDefaultBaseURL = "https://etendering.example.org"

var valueExpr = regexp.MustCompile(`[\d][\d.,]*`)

// ETendering scrapes a national e-tendering portal's HTML search listing.
type ETendering struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewETendering(opts Options) *ETendering {
	base := opts.BaseURL
	if base == "" {
		base = etenderingDefaultBaseURL
	}
	return &ETendering{baseURL: base, client: opts.client(), limiter: opts.limiter()}
}

func (e *ETendering) Name() string     { return "etendering" }
func (e *ETendering) Describe() string { return "national e-tendering portal listing" }

func (e *ETendering) Search(ctx context.Context, query Query) ([]Result, error) {
	query, ok := query.Normalize()
	if !ok {
		return nil, ErrEmptyKeywords
	}
	if !e.limiter.Allow() {
		return nil, RateLimited(e.Name(), nil)
	}

	doc, serr := e.fetchDocument(ctx, e.baseURL+"/search?keywords="+url.QueryEscape(query.Keywords))
	if serr != nil {
		return nil, serr
	}

	results := make([]Result, 0, query.MaxResults)
	doc.Find("li.tender-result").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		link := sel.Find("a.tender-title").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		r := Result{
			Title:          title,
			Source:         e.Name(),
			RelevanceScore: scoreTitle(title, query.Keywords),
			Location:       strings.TrimSpace(sel.Find("span.tender-location").First().Text()),
		}
		if href, ok := link.Attr("href"); ok {
			r.URL = absoluteURL(e.baseURL, href)
		}
		if v, ok := parseListedValue(sel.Find("span.tender-value").First().Text()); ok {
			r.EstimatedValue = &v
		}
		if dt, ok := sel.Find("time").First().Attr("datetime"); ok {
			if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(dt)); err == nil {
				r.PublishedAt = ts
			}
		}
		results = append(results, r)
		return query.MaxResults <= 0 || len(results) < query.MaxResults
	})
	return results, nil
}

func (e *ETendering) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, *Error) {
	req, err := newRequest(ctx, http.MethodGet, pageURL)
	if err != nil {
		return nil, Unknownf(e.Name(), "build request: %v", err)
	}

	resp, err := e.client.Do(req)
	if serr := classifyHTTP(e.Name(), resp, err); serr != nil {
		if err == nil {
			_ = resp.Body.Close()
		}
		return nil, serr
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, Malformed(e.Name(), err)
	}
	return doc, nil
}

func (e *ETendering) Probe(ctx context.Context) (Status, error) {
	return probeURL(ctx, e.client, e.Name(), e.baseURL+"/")
}

// parseListedValue extracts a numeric amount from a listing cell like
// "EUR 1,200,000" or "est. 350.000,00". Thousands separators are stripped;
// a trailing two-digit decimal part is kept.
func parseListedValue(raw string) (float64, bool) {
	m := valueExpr.FindString(raw)
	if m == "" {
		return 0, false
	}
	// Normalize: treat the last separator as decimal only if followed by
	// exactly two digits, drop every other separator.
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m)
	if i := strings.LastIndexAny(m, ".,"); i >= 0 && len(m)-i-1 == 2 {
		whole := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m[:i])
		cleaned = whole + "." + m[i+1:]
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func absoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return strings.TrimSuffix(base, "/") + href
}
