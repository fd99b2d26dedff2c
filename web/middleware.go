package web

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/parlor/parlor/internal/logutil"
	"github.com/parlor/parlor/weberr"
)

// instrument gives every request its own id, a logger carrying that
// id, and a fresh rejection chain.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logutil.GetOrDefault(ctx).With().
			Str("request.id", uuid.NewString()).
			Str("http.method", r.Method).
			Str("http.path", r.URL.Path).
			Logger()
		ctx = logutil.WithLogger(ctx, log)
		ctx, _ = weberr.WithChain(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var (
	corsAllowMethods = map[string]bool{
		http.MethodGet:    true,
		http.MethodPost:   true,
		http.MethodPut:    true,
		http.MethodDelete: true,
	}
	corsAllowHeaders = map[string]bool{
		"content-type": true,
	}
)

// cors allows any origin but only the methods and headers the service
// actually serves. A preflight asking for more attaches a forbidden
// cause and is answered from the chain.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Origin") != "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			ctx := r.Context()
			chain := weberr.ChainFrom(ctx)
			method := r.Header.Get("Access-Control-Request-Method")
			if !corsAllowMethods[method] {
				chain.Attach(weberr.CORSForbidden("method " + method + " not allowed"))
				weberr.Respond(ctx, w, chain)
				return
			}
			for _, h := range strings.Split(r.Header.Get("Access-Control-Request-Headers"), ",") {
				h = strings.ToLower(strings.TrimSpace(h))
				if h == "" {
					continue
				}
				if !corsAllowHeaders[h] {
					chain.Attach(weberr.CORSForbidden("header " + h + " not allowed"))
					weberr.Respond(ctx, w, chain)
					return
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "content-type")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
