package moderation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parlor/parlor/weberr"
	"github.com/stretchr/testify/require"
)

func censorServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if r.Header.Get("apikey") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"No API key found in request"}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		censored := strings.ReplaceAll(string(body), "ugly", "****")
		fmt.Fprintf(w, `{"bad_words_total":1,"censored_content":%q}`, censored)
	}))
}

func TestCensor(t *testing.T) {
	var calls int
	srv := censorServer(t, &calls)
	defer srv.Close()

	c, err := New(srv.URL, "test-key")
	require.NoError(t, err)

	out, err := c.Censor(context.Background(), "what an ugly question")
	require.NoError(t, err)
	require.Equal(t, "what an **** question", out)
	require.Equal(t, 1, calls)
}

func TestCensorCachesVerdicts(t *testing.T) {
	var calls int
	srv := censorServer(t, &calls)
	defer srv.Close()

	c, err := New(srv.URL, "test-key")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := c.Censor(context.Background(), "ugly")
		require.NoError(t, err)
		require.Equal(t, "****", out)
	}
	require.Equal(t, 1, calls, "repeated submissions of the same text should hit the cache")
}

func TestCensorClientError(t *testing.T) {
	var calls int
	srv := censorServer(t, &calls)
	defer srv.Close()

	c, err := New(srv.URL, "")
	require.NoError(t, err)

	_, err = c.Censor(context.Background(), "anything")
	require.Error(t, err)
	require.Equal(t, weberr.KindClient, weberr.KindOf(err))
	require.Contains(t, err.Error(), "No API key found")
}

func TestCensorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream on fire", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "test-key")
	require.NoError(t, err)

	_, err = c.Censor(context.Background(), "anything")
	require.Error(t, err)
	require.Equal(t, weberr.KindServer, weberr.KindOf(err))
}

func TestCensorTransportFailureExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	c, err := New(srv.URL, "test-key")
	require.NoError(t, err)

	_, err = c.Censor(context.Background(), "anything")
	require.Error(t, err)
	require.Equal(t, weberr.KindMiddlewareAPI, weberr.KindOf(err))
}

func TestKeyFromEnv(t *testing.T) {
	vals := map[string]string{"BW": "secret"}
	get := func(name string) string { return vals[name] }
	set := func(name, val string) error {
		vals[name] = val
		return nil
	}
	key, err := KeyFromEnv("BW", get, set)
	require.NoError(t, err)
	require.Equal(t, "secret", key)
	require.Empty(t, vals["BW"], "reading the key should remove it from the environment")

	_, err = KeyFromEnv("BW", get, set)
	require.Error(t, err)
}
