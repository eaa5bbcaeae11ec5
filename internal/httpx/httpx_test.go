package httpx

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDo_FillsDefaults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Echo-User-Agent", r.Header.Get("User-Agent"))
		w.Header().Set("Echo-Api-Key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Echo-Accept", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c := New(time.Second)
	c.Headers = map[string]string{"X-Api-Key": "k", "Accept": "text/plain"}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	res, err := c.Do(req)
	require.NoError(t, err)
	res.Body.Close()

	require.Equal(t, "marketquotes/1.0", res.Header.Get("Echo-User-Agent"))
	require.Equal(t, "k", res.Header.Get("Echo-Api-Key"))
	require.Equal(t, "application/json", res.Header.Get("Echo-Accept"))
}

func TestReadBody(t *testing.T) {
	t.Parallel()

	b, err := ReadBody(strings.NewReader(`{"ok":true}`))
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(b))

	_, err = ReadBody(bytes.NewReader(make([]byte, MaxBody+1)))
	require.Error(t, err)
}
