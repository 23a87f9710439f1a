package source

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const userAgent = "tenderwatch/1.0"

const (
	defaultSearchTimeout = 10 * time.Second

	// Probes have their own, tighter bound independent of search timeouts.
	probeTimeout = 5 * time.Second
)

// Options configures a concrete adapter. Zero values get sane defaults.
type Options struct {
	BaseURL string
	Client  *http.Client

	// RatePerSec caps outbound requests per adapter. 0 means default (2/s).
	RatePerSec float64
}

func (o Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return &http.Client{Timeout: defaultSearchTimeout}
}

func (o Options) limiter() *rate.Limiter {
	rps := o.RatePerSec
	if rps <= 0 {
		rps = 2
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// classifyHTTP maps a transport error or response status to a source failure.
// Returns nil for 2xx responses.
func classifyHTTP(src string, resp *http.Response, err error) *Error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Unreachable(src, err)
		}
		// net errors (refused, DNS, client timeout) are all unreachable.
		return Unreachable(src, err)
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return RateLimited(src, errors.New(resp.Status))
	case resp.StatusCode >= 500:
		return Unreachable(src, errors.New(resp.Status))
	default:
		return Unknownf(src, "unexpected status %s", resp.Status)
	}
}

// probeURL issues a HEAD (falling back to GET on 405) against url and
// reports reachability plus round-trip latency.
func probeURL(ctx context.Context, client *http.Client, src, url string) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	req, err := newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return Status{}, Unknownf(src, "build probe request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Status{Online: false}, nil
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusMethodNotAllowed {
		req, err = newRequest(ctx, http.MethodGet, url)
		if err != nil {
			return Status{}, Unknownf(src, "build probe request: %v", err)
		}
		resp, err = client.Do(req)
		if err != nil {
			return Status{Online: false}, nil
		}
		_ = resp.Body.Close()
	}
	online := resp.StatusCode < 500
	return Status{Online: online, Latency: time.Since(start)}, nil
}

// neutralScore is assigned when a source offers no ranking signal.
const neutralScore = 0.5

// scoreTitle rates how well a title matches the query keywords.
//
// Token overlap in [0,1]: fraction of keyword tokens found (case-insensitive)
// in the title, floored at the neutral score when at least one token matches
// so that matched-but-weak records do not sink below unscored sources.
func scoreTitle(title, keywords string) float64 {
	toks := strings.Fields(strings.ToLower(keywords))
	if len(toks) == 0 {
		return neutralScore
	}
	lt := strings.ToLower(title)
	matched := 0
	for _, tok := range toks {
		if strings.Contains(lt, tok) {
			matched++
		}
	}
	if matched == 0 {
		return neutralScore * 0.5
	}
	score := float64(matched) / float64(len(toks))
	if score < neutralScore {
		return neutralScore
	}
	return score
}

// capResults enforces the per-adapter result bound.
func capResults(rs []Result, maxResults int) []Result {
	if maxResults > 0 && len(rs) > maxResults {
		return rs[:maxResults]
	}
	return rs
}
