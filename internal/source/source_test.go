package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/proxy-batch-checker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLines(t *testing.T) {
	input := "1.2.3.4:8080:alice:secret\n\n  5.6.7.8:3128  \r\n# comment\nbad-entry\n"

	lines, err := ParseLines(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3.4:8080:alice:secret", "5.6.7.8:3128", "bad-entry"}, lines)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(path, []byte("a:1\nb:2\n"), 0644))

	lines, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2"}, lines)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDeduplicate(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2", "c:3"}, Deduplicate([]string{"a:1", "b:2", "a:1", "c:3", "b:2"}))
}

func TestFetch(t *testing.T) {
	userAgents := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/one.txt", func(w http.ResponseWriter, r *http.Request) {
		userAgents <- r.Header.Get("User-Agent")
		w.Write([]byte("10.0.0.1:8080\n10.0.0.2:8080\n"))
	})
	mux.HandleFunc("/two.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("10.0.0.2:8080\n10.0.0.3:8080:u:p\n"))
	})
	mux.HandleFunc("/broken.txt", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(config.SourcesConfig{
		UserAgent: "checker-test",
		Lists: []config.Source{
			{URL: srv.URL + "/one.txt", Enabled: true},
			{URL: srv.URL + "/two.txt", Enabled: true},
			{URL: srv.URL + "/broken.txt", Enabled: true},
			{URL: srv.URL + "/disabled.txt", Enabled: false},
		},
	}, nil)

	lines, stats, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1:8080", "10.0.0.2:8080", "10.0.0.3:8080:u:p"}, lines)
	assert.Equal(t, "checker-test", <-userAgents)
	require.Len(t, stats, 3)
	assert.Equal(t, 2, stats[srv.URL+"/one.txt"].LinesFound)
	assert.Equal(t, "HTTP 410", stats[srv.URL+"/broken.txt"].Error)
}

func TestFetchWithoutSources(t *testing.T) {
	f := NewFetcher(config.SourcesConfig{Lists: []config.Source{{URL: "http://x", Enabled: false}}}, nil)
	_, _, err := f.Fetch(context.Background())
	assert.Error(t, err)
}
