package weberr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func respond(chain *Chain) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	Respond(context.Background(), rec, chain)
	return rec
}

func TestEmptyChainIsRouteNotFound(t *testing.T) {
	rec := respond(&Chain{})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Route not found", rec.Body.String())

	rec = respond(nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWrongPasswordResponse(t *testing.T) {
	chain := &Chain{}
	chain.Attach(WrongPassword())
	rec := respond(chain)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Wrong email/password combination", rec.Body.String())
}

func TestDatabaseErrorKeepsGenericMessage(t *testing.T) {
	chain := &Chain{}
	chain.Attach(Database("failed to query questions", errors.New("pq: secret table layout exploded")))
	rec := respond(chain)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "failed to query questions", rec.Body.String())
	require.NotContains(t, rec.Body.String(), "secret")
}

func TestPrecedenceIsDeterministic(t *testing.T) {
	// One request can carry several causes; the precedence scan must
	// produce the same answer no matter how they were attached.
	build := func(order []error) *Chain {
		chain := &Chain{}
		for _, err := range order {
			chain.Attach(err)
		}
		return chain
	}
	body := BodyParse(errors.New("unexpected EOF"))
	db := Database("failed to add question", errors.New("driver exploded"))
	wrong := WrongPassword()

	for i := 0; i < 20; i++ {
		rec := respond(build([]error{body, db, wrong}))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "failed to add question", rec.Body.String())

		rec = respond(build([]error{wrong, body, db}))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "failed to add question", rec.Body.String())
	}
}

func TestPrecedenceOrder(t *testing.T) {
	cases := []struct {
		name   string
		causes []error
		status int
		body   string
	}{
		{
			name:   "external over wrong password",
			causes: []error{WrongPassword(), ExternalAPI(errors.New("conn reset"))},
			status: http.StatusInternalServerError,
			body:   "Internal Server Error",
		},
		{
			name:   "middleware over client",
			causes: []error{Client(429, "slow down"), MiddlewareAPI(errors.New("gave up"))},
			status: http.StatusInternalServerError,
			body:   "Internal Server Error",
		},
		{
			name:   "wrong password over server",
			causes: []error{Server(502, "bad gateway"), WrongPassword()},
			status: http.StatusUnauthorized,
			body:   "Wrong email/password combination",
		},
		{
			name:   "cors over body parse",
			causes: []error{BodyParse(errors.New("bad json")), CORSForbidden("method PATCH not allowed")},
			status: http.StatusForbidden,
			body:   "CORS request forbidden: method PATCH not allowed",
		},
		{
			name:   "generic domain fallback",
			causes: []error{CannotDecryptToken(errors.New("tampered"))},
			status: http.StatusUnprocessableEntity,
			body:   "cannot decrypt token",
		},
		{
			name:   "hash library fallback",
			causes: []error{HashLibrary(errors.New("corrupt stored hash"))},
			status: http.StatusUnprocessableEntity,
			body:   "cannot verify password",
		},
		{
			name:   "missing parameters fallback",
			causes: []error{MissingParameters()},
			status: http.StatusUnprocessableEntity,
			body:   "missing parameter",
		},
		{
			name:   "untyped cause falls through to 404",
			causes: []error{errors.New("some framework hiccup")},
			status: http.StatusNotFound,
			body:   "Route not found",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain := &Chain{}
			for _, cause := range tc.causes {
				chain.Attach(cause)
			}
			rec := respond(chain)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.body, rec.Body.String())
		})
	}
}

func TestKindOfSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("while saving: %w", Database("failed to add account", errors.New("unique constraint")))
	require.Equal(t, KindDatabaseQuery, KindOf(err))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	require.Equal(t, KindUnknown, KindOf(nil))
}

func TestChainFromContext(t *testing.T) {
	ctx, chain := WithChain(context.Background())
	require.Same(t, chain, ChainFrom(ctx))
	require.Nil(t, ChainFrom(context.Background()))
}
