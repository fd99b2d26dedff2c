// Package moderation calls the external bad-words API to censor user
// supplied text before it is persisted. Transient transport failures
// are retried with exponential backoff; successful verdicts are cached
// in process so repeated submissions of the same text cost nothing.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"
	"github.com/parlor/parlor/weberr"
	"github.com/sethvargo/go-retry"
)

const (
	// APIKeyEnvVar holds the key for the bad-words API.
	APIKeyEnvVar = "BAD_WORDS_API_KEY"

	// DefaultBaseURL is the hosted bad-words endpoint.
	DefaultBaseURL = "https://api.apilayer.com"

	cacheTTL    = 10 * time.Minute
	maxAttempts = 3
)

type (
	Client struct {
		base  string
		key   string
		hc    *http.Client
		cache *bigcache.BigCache
	}

	verdict struct {
		BadWordsTotal   int    `json:"bad_words_total"`
		CensoredContent string `json:"censored_content"`
	}
)

// KeyFromEnv reads the API key from varname once and scrubs the
// variable from the environment.
func KeyFromEnv(varname string, getfn func(string) string, setfn func(string, string) error) (string, error) {
	if getfn == nil {
		getfn = os.Getenv
	}
	if setfn == nil {
		setfn = os.Setenv
	}
	val := getfn(varname)
	setfn(varname, "")
	if val == "" {
		return "", fmt.Errorf("moderation: API key not set in %v", varname)
	}
	return val, nil
}

func New(base, key string) (*Client, error) {
	if base == "" {
		base = DefaultBaseURL
	}
	cache, err := bigcache.New(context.Background(), bigcache.DefaultConfig(cacheTTL))
	if err != nil {
		return nil, fmt.Errorf("moderation: unable to create cache, cause %w", err)
	}
	return &Client{
		base:  strings.TrimSuffix(base, "/"),
		key:   key,
		hc:    &http.Client{Timeout: 30 * time.Second},
		cache: cache,
	}, nil
}

// Censor runs text through the bad-words API and returns it with any
// profanity replaced. The censored text, not the original, is what
// callers should persist.
func (c *Client) Censor(ctx context.Context, text string) (string, error) {
	cacheKey := strconv.FormatUint(xxhash.Sum64String(text), 16)
	if hit, err := c.cache.Get(cacheKey); err == nil {
		return string(hit), nil
	}
	resp, err := c.post(ctx, text)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", weberr.ExternalAPI(err)
	}
	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", weberr.Client(resp.StatusCode, apiMessage(body))
	case resp.StatusCode >= 500:
		return "", weberr.Server(resp.StatusCode, apiMessage(body))
	}
	var v verdict
	if err := json.Unmarshal(body, &v); err != nil {
		return "", weberr.ExternalAPI(err)
	}
	c.cache.Set(cacheKey, []byte(v.CensoredContent))
	return v.CensoredContent, nil
}

// post sends the request, retrying transport failures. Running out of
// retries is a middleware failure, distinct from a plain external API
// error, because the retry layer itself gave up.
func (c *Client) post(ctx context.Context, text string) (*http.Response, error) {
	url := fmt.Sprintf("%v/bad_words?censor_character=*", c.base)
	var resp *http.Response
	var transport bool
	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(text))
		if err != nil {
			transport = false
			return err
		}
		req.Header.Set("apikey", c.key)
		req.Header.Set("Content-Type", "text/plain")
		resp, err = c.hc.Do(req)
		if err != nil {
			transport = true
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if transport {
			return nil, weberr.MiddlewareAPI(err)
		}
		return nil, weberr.ExternalAPI(err)
	}
	return resp, nil
}

func apiMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}
