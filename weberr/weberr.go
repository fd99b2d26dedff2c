// Package weberr holds the closed set of failures the service can
// produce, the per-request rejection chain they are attached to, and
// the translator that turns a chain into one HTTP response.
//
// Handlers and filters never write error responses on their own: they
// attach typed failures to the chain and let Respond pick the status,
// the body and the log event. The precedence scan is a fixed total
// order so a request carrying several causes always yields the same
// response.
package weberr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/parlor/parlor/internal/logutil"
)

type (
	// Kind tags every failure the service knows how to answer.
	Kind int

	// E is a tagged failure. Msg is the client-safe projection,
	// Cause (if any) is only ever logged.
	E struct {
		Kind      Kind
		Msg       string
		APIStatus int // upstream status for KindClient / KindServer
		Cause     error
	}

	// Chain is the ordered list of causes attached to a single
	// request before a final response is chosen.
	Chain struct {
		mu     sync.Mutex
		causes []error
	}

	chainKey byte
)

const (
	KindUnknown Kind = iota
	KindParse
	KindMissingParameters
	KindWrongPassword
	KindCannotDecryptToken
	KindHashLibrary
	KindDatabaseQuery
	KindExternalAPI
	KindMiddlewareAPI
	KindClient
	KindServer
	KindCORSForbidden
	KindBodyParse
)

func (e *E) Error() string { return e.Msg }

func (e *E) Unwrap() error { return e.Cause }

// Parse reports a malformed query or path parameter.
func Parse(cause error) *E {
	return &E{Kind: KindParse, Msg: fmt.Sprintf("cannot parse parameter: %v", cause), Cause: cause}
}

// MissingParameters reports a required parameter that was not sent.
func MissingParameters() *E {
	return &E{Kind: KindMissingParameters, Msg: "missing parameter"}
}

// WrongPassword reports a failed credential check during login.
func WrongPassword() *E {
	return &E{Kind: KindWrongPassword, Msg: "wrong password"}
}

// CannotDecryptToken covers every possible token rejection: tampering,
// wrong key, structurally invalid token, expired or not yet valid. The
// caller is never told which one it was.
func CannotDecryptToken(cause error) *E {
	return &E{Kind: KindCannotDecryptToken, Msg: "cannot decrypt token", Cause: cause}
}

// HashLibrary reports an internal hashing failure, as opposed to a
// legitimate wrong-password event.
func HashLibrary(cause error) *E {
	return &E{Kind: KindHashLibrary, Msg: "cannot verify password", Cause: cause}
}

// Database reports a persistence failure. Msg must be a fixed,
// non-leaking string; the driver error goes into cause and is only
// logged.
func Database(msg string, cause error) *E {
	return &E{Kind: KindDatabaseQuery, Msg: msg, Cause: cause}
}

// ExternalAPI reports a failure talking to the moderation collaborator
// (building the request, reading or decoding the response).
func ExternalAPI(cause error) *E {
	return &E{Kind: KindExternalAPI, Msg: "external API error", Cause: cause}
}

// MiddlewareAPI reports the retry layer around the moderation call
// giving up.
func MiddlewareAPI(cause error) *E {
	return &E{Kind: KindMiddlewareAPI, Msg: "external API error", Cause: cause}
}

// Client reports the moderation collaborator answering with a 4xx.
func Client(status int, msg string) *E {
	return &E{Kind: KindClient, APIStatus: status, Msg: fmt.Sprintf("external client error: status %v, message %v", status, msg)}
}

// Server reports the moderation collaborator answering with a 5xx.
func Server(status int, msg string) *E {
	return &E{Kind: KindServer, APIStatus: status, Msg: fmt.Sprintf("external server error: status %v, message %v", status, msg)}
}

// CORSForbidden reports a cross-origin preflight that asked for a
// method or header the service does not allow.
func CORSForbidden(detail string) *E {
	return &E{Kind: KindCORSForbidden, Msg: fmt.Sprintf("CORS request forbidden: %v", detail)}
}

// BodyParse reports a request body that could not be deserialized.
func BodyParse(cause error) *E {
	return &E{Kind: KindBodyParse, Msg: fmt.Sprintf("cannot deserialize request body: %v", cause), Cause: cause}
}

// KindOf returns the kind of err, or KindUnknown when err does not
// belong to the taxonomy.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var chainCtxKey = chainKey(1)

// WithChain attaches a fresh rejection chain to ctx.
func WithChain(ctx context.Context) (context.Context, *Chain) {
	c := &Chain{}
	return context.WithValue(ctx, chainCtxKey, c), c
}

// ChainFrom returns the chain attached to ctx, or nil.
func ChainFrom(ctx context.Context) *Chain {
	v := ctx.Value(chainCtxKey)
	if v == nil {
		return nil
	}
	return v.(*Chain)
}

// Attach appends err to the chain, preserving attachment order.
// Attaching nil is a no-op.
func (c *Chain) Attach(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.causes = append(c.causes, err)
	c.mu.Unlock()
}

func (c *Chain) snapshot() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.causes))
	copy(out, c.causes)
	return out
}

func find(causes []error, kind Kind) *E {
	for _, err := range causes {
		var e *E
		if errors.As(err, &e) && e.Kind == kind {
			return e
		}
	}
	return nil
}

func findAny(causes []error) *E {
	for _, err := range causes {
		var e *E
		if errors.As(err, &e) {
			return e
		}
	}
	return nil
}

// Respond converts the chain into the final response. The precedence
// order below is a fixed contract: a request can legitimately carry
// more than one cause and clients must see a stable answer for a
// given combination.
func Respond(ctx context.Context, w http.ResponseWriter, chain *Chain) {
	log := logutil.GetOrDefault(ctx)
	var causes []error
	if chain != nil {
		causes = chain.snapshot()
	}
	status, body := http.StatusNotFound, "Route not found"
	switch {
	case find(causes, KindDatabaseQuery) != nil:
		e := find(causes, KindDatabaseQuery)
		log.Error().Err(e.Cause).Str("error.kind", "database").Msgf("Database query error: %v", e.Msg)
		status, body = http.StatusUnprocessableEntity, e.Msg
	case find(causes, KindExternalAPI) != nil:
		e := find(causes, KindExternalAPI)
		log.Error().Err(e.Cause).Str("error.kind", "external_api").Msg(e.Msg)
		status, body = http.StatusInternalServerError, "Internal Server Error"
	case find(causes, KindMiddlewareAPI) != nil:
		e := find(causes, KindMiddlewareAPI)
		log.Error().Err(e.Cause).Str("error.kind", "middleware_api").Msg(e.Msg)
		status, body = http.StatusInternalServerError, "Internal Server Error"
	case find(causes, KindClient) != nil:
		e := find(causes, KindClient)
		log.Error().Int("api.status", e.APIStatus).Str("error.kind", "client").Msg(e.Msg)
		status, body = http.StatusInternalServerError, "Internal Server Error"
	case find(causes, KindWrongPassword) != nil:
		log.Error().Str("error.kind", "wrong_password").Msg("Wrong password")
		status, body = http.StatusUnauthorized, "Wrong email/password combination"
	case find(causes, KindServer) != nil:
		e := find(causes, KindServer)
		log.Error().Int("api.status", e.APIStatus).Str("error.kind", "server").Msg(e.Msg)
		status, body = http.StatusInternalServerError, "Internal Server Error"
	case find(causes, KindCORSForbidden) != nil:
		e := find(causes, KindCORSForbidden)
		log.Error().Str("error.kind", "cors").Msg(e.Msg)
		status, body = http.StatusForbidden, e.Msg
	case find(causes, KindBodyParse) != nil:
		e := find(causes, KindBodyParse)
		log.Error().Err(e.Cause).Str("error.kind", "body_parse").Msg(e.Msg)
		status, body = http.StatusUnprocessableEntity, e.Msg
	case findAny(causes) != nil:
		e := findAny(causes)
		log.Error().Err(e.Cause).Msg(e.Msg)
		status, body = http.StatusUnprocessableEntity, e.Msg
	default:
		log.Warn().Msg("Requested route was not found")
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
