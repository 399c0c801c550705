package cardindex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/artswap/artswap/internal/core"
)

const searchPage = `<!doctype html>
<html><body>
<ul class="results">
  <li class="card-result" data-id="101" data-passcode="89631139">
    <span class="name">Blue-Eyes White Dragon (Alt Art)</span>
  </li>
  <li class="card-result" data-id="102">
    <span class="name">  Blue-Eyes
      Ultimate Dragon </span>
  </li>
  <li class="card-result"><span class="name"></span></li>
</ul>
</body></html>`

func TestWebIndexExtractsCandidatesInOrder(t *testing.T) {
	var gotPath, gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("name")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	index := &WebIndex{
		BaseURL:      srv.URL,
		SearchPath:   "/cards/search",
		QueryParam:   "name",
		NameSelector: ".name",
		UserAgent:    "artswap-test",
		Client:       srv.Client(),
	}

	cards, err := index.SearchCards(context.Background(), "Blue-Eyes White Dragon")
	require.NoError(t, err)
	require.Equal(t, "/cards/search", gotPath)
	require.Equal(t, "Blue-Eyes White Dragon", gotQuery)
	require.Equal(t, "artswap-test", gotUA)
	require.Equal(t, []core.Card{
		{ID: "101", Name: "Blue-Eyes White Dragon (Alt Art)", Passcode: "89631139", Source: "web"},
		{ID: "102", Name: "Blue-Eyes Ultimate Dragon", Source: "web"},
	}, cards)
}

func TestWebIndexNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "Gone" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body><p>nothing</p></body></html>`))
	}))
	defer srv.Close()

	index := &WebIndex{BaseURL: srv.URL, Client: srv.Client()}

	cards, err := index.SearchCards(context.Background(), "Obscure Card")
	require.NoError(t, err)
	require.NotNil(t, cards)
	require.Empty(t, cards)

	cards, err = index.SearchCards(context.Background(), "Gone")
	require.NoError(t, err)
	require.Empty(t, cards)
}

func TestWebIndexServerErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	index := &WebIndex{BaseURL: srv.URL, Client: srv.Client()}
	_, err := index.SearchCards(context.Background(), "Kuriboh")
	require.Error(t, err)

	var ie *core.IndexError
	require.True(t, errors.As(err, &ie))
	require.Equal(t, core.IndexQuery, ie.Kind)
	require.Equal(t, "Kuriboh", ie.Name)
}

func TestWebIndexUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	index := &WebIndex{BaseURL: url, Client: &http.Client{Timeout: time.Second}}
	_, err := index.SearchCards(context.Background(), "Kuriboh")
	require.Equal(t, core.IndexUnavailable, core.IndexErrorKindOf(err))

	_, err = (&WebIndex{}).SearchCards(context.Background(), "Kuriboh")
	require.Equal(t, core.IndexUnavailable, core.IndexErrorKindOf(err))
}

func TestWebIndexRateLimiting(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{Store: &memoryRateStore{}, Clock: func() time.Time { return now }}
	index := &WebIndex{BaseURL: srv.URL, Client: srv.Client(), Limiter: limiter}

	_, err := index.SearchCards(context.Background(), "Kuriboh")
	require.Equal(t, core.IndexRateLimited, core.IndexErrorKindOf(err))

	// The backoff now blocks the request before it reaches the server.
	_, err = index.SearchCards(context.Background(), "Kuriboh")
	require.Equal(t, core.IndexRateLimited, core.IndexErrorKindOf(err))
	require.ErrorContains(t, err, "retry in 30s")
	require.EqualValues(t, 1, hits.Load())
}

func TestWebIndexBlankName(t *testing.T) {
	cards, err := (&WebIndex{}).SearchCards(context.Background(), "   ")
	require.NoError(t, err)
	require.Empty(t, cards)
}
