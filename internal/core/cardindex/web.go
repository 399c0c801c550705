package cardindex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/artswap/artswap/internal/core"
)

const webSource = "web"

// WebIndex searches an HTML card database. Each element matched by
// ResultSelector on the search page becomes one candidate; candidates keep
// page order.
type WebIndex struct {
	BaseURL    string
	SearchPath string
	QueryParam string

	ResultSelector string
	// NameSelector is evaluated inside each result; empty uses the result text.
	NameSelector string
	// IDSelector is evaluated inside each result; the data-id attribute of the
	// result is used when it is empty.
	IDSelector string

	UserAgent string
	Client    *http.Client
	Limiter   *RateLimiter
}

// SearchCards fetches the search page for name and extracts candidates.
func (w *WebIndex) SearchCards(ctx context.Context, name string) ([]core.Card, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	value := strings.TrimSpace(name)
	if value == "" {
		return nil, nil
	}

	target, err := w.searchURL(value)
	if err != nil {
		return nil, core.NewIndexError(core.IndexUnavailable, "search", name, err)
	}
	endpoint := strings.ToLower(target.Hostname())

	if w.Limiter != nil {
		allowed, wait, err := w.Limiter.Allow(ctx, endpoint)
		if err != nil {
			return nil, core.NewIndexError(core.IndexUnavailable, "rate limit", name, err)
		}
		if !allowed {
			return nil, core.NewIndexError(core.IndexRateLimited, "search", name,
				fmt.Errorf("rate limited, retry in %s", wait.Round(time.Second)))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, core.NewIndexError(core.IndexUnavailable, "search", name, err)
	}
	req.Header.Set("Accept", "text/html")
	if ua := strings.TrimSpace(w.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	if w.Limiter != nil {
		if err := w.Limiter.Record(ctx, endpoint); err != nil {
			return nil, core.NewIndexError(core.IndexUnavailable, "rate limit", name, err)
		}
	}

	resp, err := w.client().Do(req)
	if err != nil {
		return nil, core.NewIndexError(core.IndexUnavailable, "search", name, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return []core.Card{}, nil
	case http.StatusTooManyRequests:
		wait := retryAfterHeader(resp)
		if w.Limiter != nil && wait > 0 {
			_ = w.Limiter.Record429(ctx, endpoint, wait)
		}
		return nil, core.NewIndexError(core.IndexRateLimited, "search", name,
			fmt.Errorf("%s answered 429", endpoint))
	default:
		return nil, core.NewIndexError(core.IndexQuery, "search", name,
			fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, core.NewIndexError(core.IndexDecode, "parse", name, err)
	}
	return w.extract(doc), nil
}

func (w *WebIndex) extract(doc *goquery.Document) []core.Card {
	cards := []core.Card{}
	doc.Find(w.resultSelector()).Each(func(_ int, s *goquery.Selection) {
		title := s
		if sel := strings.TrimSpace(w.NameSelector); sel != "" {
			title = s.Find(sel).First()
		}
		cardName := normSpace(title.Text())
		if cardName == "" {
			return
		}

		card := core.Card{Name: cardName, Source: webSource}
		if sel := strings.TrimSpace(w.IDSelector); sel != "" {
			card.ID = normSpace(s.Find(sel).First().Text())
		} else if id, ok := s.Attr("data-id"); ok {
			card.ID = strings.TrimSpace(id)
		}
		if passcode, ok := s.Attr("data-passcode"); ok {
			card.Passcode = strings.TrimSpace(passcode)
		}
		cards = append(cards, card)
	})
	return cards
}

func (w *WebIndex) searchURL(name string) (*url.URL, error) {
	base := strings.TrimSpace(w.BaseURL)
	if base == "" {
		return nil, errors.New("web index base url is required")
	}
	parsed, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid web index base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid web index base url: %s", base)
	}

	path := strings.TrimLeft(strings.TrimSpace(w.SearchPath), "/")
	if path == "" {
		path = "search"
	}
	target := parsed.ResolveReference(&url.URL{Path: path})

	param := strings.TrimSpace(w.QueryParam)
	if param == "" {
		param = "q"
	}
	query := target.Query()
	query.Set(param, name)
	target.RawQuery = query.Encode()
	return target, nil
}

func (w *WebIndex) resultSelector() string {
	if sel := strings.TrimSpace(w.ResultSelector); sel != "" {
		return sel
	}
	return ".card-result"
}

func (w *WebIndex) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retry == "" {
		return 0
	}
	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}
	return 0
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
