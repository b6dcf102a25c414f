package enrich

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bookmarks/pkg/types"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func pngDataURI(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

// site is a test web server that counts requests per path.
type site struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newSite(t *testing.T, routes map[string]http.HandlerFunc) *site {
	t.Helper()
	s := &site{hits: make(map[string]int)}
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *site) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *site) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

func servePNG(data []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}
}

func serveHTML(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}
}

func newTestEnricher(t *testing.T, opts Options) *Enricher {
	t.Helper()
	if opts.RetryDelay == 0 {
		opts.RetryDelay = -1
	}
	return New(opts)
}

func mustBookmark(t *testing.T, title, uri string) *types.Bookmark {
	t.Helper()
	b, err := types.NewBookmark(title, uri, "")
	require.NoError(t, err)
	return b
}

func TestIconFallsBackToPageLink(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{
		"/favicon.ico": http.NotFound,
		"/new.png":     servePNG(pngBytes),
		"/": serveHTML(`<html><head>
			<link rel="stylesheet" href="/style.css">
			<link rel="shortcut icon" href="/new.png">
			</head><body></body></html>`),
	})

	b := mustBookmark(t, "Site", srv.URL+"/")
	e := newTestEnricher(t, Options{Client: srv.Client()})
	res, err := e.Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/new.png", b.IconURI)
	assert.Equal(t, pngDataURI(pngBytes), b.IconDataURI)
	assert.True(t, b.IconUpdated)
	assert.Equal(t, 1, res.IconsUpdated)
	assert.Equal(t, 1, srv.count("/favicon.ico"))
	assert.Equal(t, 1, srv.count("/new.png"))
}

func TestIconFallsBackOnNonImageContentType(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{
		"/favicon.ico": serveHTML("<html>not an icon</html>"),
		"/icons/i.png": servePNG(pngBytes),
		"/page/":       serveHTML(`<link rel="icon" href="../icons/i.png">`),
	})

	b := mustBookmark(t, "Site", srv.URL+"/page/")
	_, err := newTestEnricher(t, Options{Client: srv.Client()}).Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/icons/i.png", b.IconURI)
	assert.Equal(t, pngDataURI(pngBytes), b.IconDataURI)
}

func TestIconNoLinkLeavesBookmarkUntouched(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{
		"/favicon.ico": http.NotFound,
		"/":            serveHTML(`<html><head><title>x</title></head></html>`),
	})

	b := mustBookmark(t, "Site", srv.URL+"/")
	iconURI := b.IconURI
	_, err := newTestEnricher(t, Options{Client: srv.Client()}).Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Equal(t, iconURI, b.IconURI)
	assert.Empty(t, b.IconDataURI)
	assert.False(t, b.IconUpdated)
}

func TestIconCacheHitSkipsNetwork(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/": http.NotFound})
	dir := t.TempDir()

	b := mustBookmark(t, "Site", srv.URL+"/")
	cached := pngDataURI([]byte("cached"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, CacheName(b.IconURI)), []byte(cached), 0o644))

	_, err := newTestEnricher(t, Options{Client: srv.Client(), CacheDir: dir}).
		Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, srv.total(), "a cache hit must not touch the network")
	assert.Equal(t, cached, b.IconDataURI)
	assert.True(t, b.IconUpdated)
}

func TestIconForceRefetchesAndWritesThrough(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/favicon.ico": servePNG(pngBytes)})
	dir := t.TempDir()

	b := mustBookmark(t, "Site", srv.URL+"/")
	cachePath := filepath.Join(dir, CacheName(b.IconURI))
	require.NoError(t, os.WriteFile(cachePath, []byte(pngDataURI([]byte("stale"))), 0o644))

	_, err := newTestEnricher(t, Options{Client: srv.Client(), CacheDir: dir, Force: true}).
		Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, srv.count("/favicon.ico"))
	assert.Equal(t, pngDataURI(pngBytes), b.IconDataURI)
	data, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, pngDataURI(pngBytes), string(data))
}

func TestIconUpdatedOnlyOnChange(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/favicon.ico": servePNG(pngBytes)})

	b := mustBookmark(t, "Site", srv.URL+"/")
	b.IconDataURI = pngDataURI(pngBytes)
	_, err := newTestEnricher(t, Options{Client: srv.Client()}).Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, srv.count("/favicon.ico"))
	assert.False(t, b.IconUpdated)
}

func TestEmbeddedIconIsNoop(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/": http.NotFound})

	b := mustBookmark(t, "Site", srv.URL+"/")
	require.NoError(t, b.SetIconURI("data:image/png;base64,AAAA"))
	_, err := newTestEnricher(t, Options{Client: srv.Client()}).Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, srv.total())
	assert.Empty(t, b.IconDataURI)
	assert.False(t, b.IconUpdated)
}

func TestSharedIconFetchedOnce(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/favicon.ico": servePNG(pngBytes)})

	var bookmarks []*types.Bookmark
	for i := range 5 {
		bookmarks = append(bookmarks, mustBookmark(t, fmt.Sprintf("p%d", i), fmt.Sprintf("%s/p%d", srv.URL, i)))
	}
	res, err := newTestEnricher(t, Options{Client: srv.Client()}).Run(context.Background(), bookmarks, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, srv.count("/favicon.ico"))
	assert.Equal(t, 5, res.IconsUpdated)
	for _, b := range bookmarks {
		assert.Equal(t, pngDataURI(pngBytes), b.IconDataURI)
	}
}

func TestPrefixSelection(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{
		"/a.png": servePNG(pngBytes),
		"/b.png": servePNG(pngBytes),
	})

	in, err := types.NewBookmark("in", srv.URL+"/in", "bar.dev")
	require.NoError(t, err)
	require.NoError(t, in.SetIconURI("/a.png"))
	out, err := types.NewBookmark("out", srv.URL+"/out", "other")
	require.NoError(t, err)
	require.NoError(t, out.SetIconURI("/b.png"))

	res, err := newTestEnricher(t, Options{Client: srv.Client(), Workers: 1}).
		Run(context.Background(), []*types.Bookmark{in, out}, []string{"bar."})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Selected)
	assert.NotEmpty(t, in.IconDataURI)
	assert.Empty(t, out.IconDataURI)
	assert.Equal(t, 0, srv.count("/b.png"))
}

func TestRunTree(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/favicon.ico": servePNG(pngBytes)})

	root := types.NewFolder("", "")
	dev := types.NewFolder("dev", root.Path())
	root.Add(dev)
	b, err := types.NewBookmark("Go", srv.URL+"/go", dev.Path())
	require.NoError(t, err)
	dev.Add(b)

	res, err := newTestEnricher(t, Options{Client: srv.Client()}).RunTree(context.Background(), root, []string{"dev."})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Selected)
	assert.Equal(t, pngDataURI(pngBytes), b.IconDataURI)
}

func TestTitleEnrichment(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{
			name:        "trimmed",
			contentType: "text/html; charset=utf-8",
			body:        "<html><head><title>\n   Hello World  </title></head></html>",
			want:        "Hello World",
		},
		{
			name:        "first title wins",
			contentType: "text/html",
			body:        "<TITLE>One</TITLE><title>Two</title>",
			want:        "One",
		},
		{
			name:        "declared latin1",
			contentType: "text/html; charset=iso-8859-1",
			body:        "<title>Caf\xe9</title>",
			want:        "Café",
		},
		{
			name:        "meta charset",
			contentType: "text/html",
			body:        `<meta charset="windows-1252"><title>na\xefve</title>`,
			want:        "naïve",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSite(t, map[string]http.HandlerFunc{
				"/favicon.ico": servePNG(pngBytes),
				"/": func(w http.ResponseWriter, _ *http.Request) {
					w.Header().Set("Content-Type", tt.contentType)
					io.WriteString(w, tt.body)
				},
			})
			b := mustBookmark(t, "", srv.URL+"/")
			res, err := newTestEnricher(t, Options{Client: srv.Client(), Titles: true}).
				Run(context.Background(), []*types.Bookmark{b}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Title)
			assert.Equal(t, 1, res.TitlesFilled)
		})
	}
}

func TestTitleKeptWhenPresent(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{
		"/favicon.ico": servePNG(pngBytes),
		"/":            serveHTML("<title>Remote</title>"),
	})
	b := mustBookmark(t, "Local", srv.URL+"/")
	_, err := newTestEnricher(t, Options{Client: srv.Client(), Titles: true}).
		Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Local", b.Title)
	assert.Equal(t, 0, srv.count("/"))
}

// flakyClient fails the first n requests with err.
type flakyClient struct {
	n     int32
	err   error
	next  HTTPClient
	calls atomic.Int32
}

func (c *flakyClient) Do(req *http.Request) (*http.Response, error) {
	if c.calls.Add(1) <= c.n {
		return nil, c.err
	}
	return c.next.Do(req)
}

func TestTransientErrorsAreRetried(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/favicon.ico": servePNG(pngBytes)})
	client := &flakyClient{n: 2, err: io.ErrUnexpectedEOF, next: srv.Client()}

	b := mustBookmark(t, "Site", srv.URL+"/")
	_, err := newTestEnricher(t, Options{Client: client}).Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(3), client.calls.Load())
	assert.Equal(t, pngDataURI(pngBytes), b.IconDataURI)
}

func TestPermanentErrorAbortsIconTask(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/": serveHTML(`<link rel="icon" href="/x.png">`)})
	client := &flakyClient{n: 100, err: errors.New("x509: certificate signed by unknown authority"), next: srv.Client()}

	b := mustBookmark(t, "Site", srv.URL+"/")
	iconURI := b.IconURI
	_, err := newTestEnricher(t, Options{Client: client}).Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), client.calls.Load(), "no retry and no page fallback")
	assert.Equal(t, iconURI, b.IconURI)
	assert.Empty(t, b.IconDataURI)
	assert.False(t, b.IconUpdated)
}

func TestCanceledRun(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/favicon.ico": servePNG(pngBytes)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := mustBookmark(t, "Site", srv.URL+"/")
	_, err := newTestEnricher(t, Options{Client: srv.Client()}).Run(ctx, []*types.Bookmark{b}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, b.IconDataURI)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "unexpected eof", err: fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), want: true},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "example.invalid"}, want: true},
		{name: "refused", err: &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, want: true},
		{name: "reset", err: &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, want: true},
		{name: "deadline", err: fmt.Errorf("get: %w", os.ErrDeadlineExceeded), want: true},
		{name: "canceled", err: fmt.Errorf("get: %w", context.Canceled), want: false},
		{name: "other", err: errors.New("unsupported protocol scheme"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestCacheName(t *testing.T) {
	short := CacheName("https://example.com/favicon.ico")
	assert.Equal(t, "NB2HI4DTHIXS6ZLYMFWXA3DFFZRW63JPMZQXM2LDN5XC42LDN4======", short)

	long := CacheName("https://example.com/" + strings.Repeat("a", 300))
	assert.True(t, strings.HasPrefix(long, "sha256-"))
	assert.Len(t, long, len("sha256-")+64)
}

func TestRelativeIconURIIsResolved(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/i.png": servePNG(pngBytes)})

	b := &types.Bookmark{Title: "Site", URI: srv.URL + "/x", IconURI: "/i.png"}
	_, err := newTestEnricher(t, Options{Client: srv.Client()}).Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/i.png", b.IconURI)
	assert.Equal(t, pngDataURI(pngBytes), b.IconDataURI)
	assert.Equal(t, 1, srv.count("/i.png"))
}

func TestForceRefetchesAcrossPasses(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/favicon.ico": servePNG(pngBytes)})
	e := newTestEnricher(t, Options{Client: srv.Client(), Force: true})

	for range 2 {
		b := mustBookmark(t, "Site", srv.URL+"/")
		_, err := e.Run(context.Background(), []*types.Bookmark{b}, nil)
		require.NoError(t, err)
		assert.Equal(t, pngDataURI(pngBytes), b.IconDataURI)
	}
	assert.Equal(t, 2, srv.count("/favicon.ico"))
}

func TestMemoReusedAcrossPassesWithoutForce(t *testing.T) {
	srv := newSite(t, map[string]http.HandlerFunc{"/favicon.ico": servePNG(pngBytes)})
	e := newTestEnricher(t, Options{Client: srv.Client()})

	for range 2 {
		b := mustBookmark(t, "Site", srv.URL+"/")
		_, err := e.Run(context.Background(), []*types.Bookmark{b}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, srv.count("/favicon.ico"))
}

func TestOversizeIconRejected(t *testing.T) {
	big := make([]byte, 2048)
	copy(big, pngBytes)
	srv := newSite(t, map[string]http.HandlerFunc{
		"/favicon.ico": servePNG(big),
		"/":            serveHTML(`<html><head><title>x</title></head></html>`),
	})

	b := mustBookmark(t, "Site", srv.URL+"/")
	res, err := newTestEnricher(t, Options{Client: srv.Client(), MaxBodyBytes: 1024}).
		Run(context.Background(), []*types.Bookmark{b}, nil)
	require.NoError(t, err)

	assert.Empty(t, b.IconDataURI)
	assert.False(t, b.IconUpdated)
	assert.Equal(t, 0, res.IconsUpdated)
	assert.Equal(t, 1, srv.count("/"), "an oversize icon falls back to the page")
}
