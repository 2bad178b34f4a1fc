package fetcher

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/foiahound/foiahound/internal/config"
)

func fetcherConfigForTest(gatewayURL string) config.FetcherConfig {
	return config.FetcherConfig{
		GatewayURL:     gatewayURL,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
		RateLimit:      0, // unlimited in tests
		RateBurst:      1,
		MaxTokens:      15000,
		TokenEncoding:  "cl100k_base",
	}
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	f, err := New(fetcherConfigForTest(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)
	return f
}

func TestFetch_Success(t *testing.T) {
	var gotPath string
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		fmt.Fprint(w, "# City Records\n\nSubmit a public records request here.")
	})

	content, err := f.Fetch(t.Context(), "https://example.gov/records")
	require.NoError(t, err)
	assert.Contains(t, content, "City Records")
	// The target URL rides on the gateway path.
	assert.Contains(t, gotPath, "example.gov/records")
}

func TestFetch_RepairsSchemeTypo(t *testing.T) {
	var gotPath string
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		fmt.Fprint(w, "ok")
	})

	_, err := f.Fetch(t.Context(), "https//example.gov/records")
	require.NoError(t, err)
	assert.Contains(t, gotPath, "https://example.gov/records")
	assert.NotContains(t, strings.TrimPrefix(gotPath, "/"), "https//example.gov")
}

func TestFetch_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "recovered")
	})

	content, err := f.Fetch(t.Context(), "https://example.gov")
	require.NoError(t, err)
	assert.Equal(t, "recovered", content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_PermanentOnNotFound(t *testing.T) {
	var calls atomic.Int32
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := f.Fetch(t.Context(), "https://example.gov/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), calls.Load(), "a 404 must not be retried")
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := f.Fetch(t.Context(), "https://example.gov")
	require.Error(t, err)
	// Initial attempt plus MaxRetries.
	assert.Equal(t, int32(3), calls.Load())
}

func TestRepairURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https//example.gov/foo", "https://example.gov/foo"},
		{"http//example.gov", "http://example.gov"},
		{"https://fine.example.gov", "https://fine.example.gov"},
		{"  https://padded.example.gov ", "https://padded.example.gov"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RepairURL(tt.in))
	}
}

func TestExtractAnchors(t *testing.T) {
	rawHTML := `<html><body>
		<a href="/records">Public Records</a>
		<a href="https://other.example.gov/portal">Portal</a>
		<a href="#top">Back to top</a>
		<a href="javascript:void(0)">Menu</a>
	</body></html>`

	base, err := url.Parse("https://example.gov/home")
	require.NoError(t, err)

	anchors, err := ExtractAnchors(rawHTML, base)
	require.NoError(t, err)
	require.Len(t, anchors, 2, "fragment and javascript links are dropped")

	assert.Equal(t, "https://example.gov/records", anchors[0].Href)
	assert.Equal(t, "Public Records", anchors[0].Text)
	assert.Equal(t, "https://other.example.gov/portal", anchors[1].Href)
}

func TestFetchDirect(t *testing.T) {
	f := newTestFetcher(t, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Clerk's Office</h1><a href="/foia">Records Requests</a><script>ignored()</script></body></html>`)
	}))
	t.Cleanup(server.Close)

	content, err := f.FetchDirect(t.Context(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, content, "Clerk's Office")
	assert.Contains(t, content, "Records Requests")
	assert.Contains(t, content, "/foia")
	assert.NotContains(t, content, "ignored()")
}
