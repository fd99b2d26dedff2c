// Package api provides the request gate applied to every protected
// route: it turns the bearer credential of an inbound request into a
// resolved session, or short-circuits the request before the handler
// runs.
package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/parlor/parlor/auth"
	"github.com/parlor/parlor/weberr"
)

type (
	// Realm guards sensitive routes with the token verifier.
	Realm struct {
		codec *auth.TokenCodec
	}

	sessionKey byte
)

var sessionCtxKey = sessionKey(1)

func NewRealm(codec *auth.TokenCodec) *Realm {
	return &Realm{codec: codec}
}

// Protect wraps sensitive so it only runs for requests carrying a
// valid token in the Authorization header. The header value is the
// raw token, no scheme prefix. On success the resolved session is
// injected into the request context; on failure the request is
// answered from the rejection chain and the handler never executes.
//
// A request without the header attaches nothing: the empty chain
// falls through the translator to its route-not-found answer, which
// deliberately does not distinguish "missing credential" from
// "missing route".
func (s *Realm) Protect(sensitive httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		ctx := r.Context()
		chain := weberr.ChainFrom(ctx)
		if chain == nil {
			ctx, chain = weberr.WithChain(ctx)
		}
		token := r.Header.Get("Authorization")
		if token == "" {
			weberr.Respond(ctx, w, chain)
			return
		}
		sess, err := s.codec.Verify(ctx, token)
		if err != nil {
			chain.Attach(err)
			weberr.Respond(ctx, w, chain)
			return
		}
		sensitive(w, r.WithContext(WithSession(ctx, sess)), p)
	}
}

// WithSession binds sess to ctx for the downstream handler.
func WithSession(ctx context.Context, sess auth.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, sess)
}

// SessionFrom returns the session resolved by the gate, if any.
func SessionFrom(ctx context.Context) (auth.Session, bool) {
	v := ctx.Value(sessionCtxKey)
	if v == nil {
		return auth.Session{}, false
	}
	return v.(auth.Session), true
}
