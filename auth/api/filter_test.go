package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/parlor/parlor/auth"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/require"
)

func TestProtect(t *testing.T) {
	ctx := context.Background()
	keyfn := func(_ context.Context, k *auth.Key) error {
		for i := range k {
			k[i] = 9
		}
		return nil
	}
	codec, err := auth.NewTokenCodec(ctx, keyfn, auth.NewLimiter(2))
	require.NoError(t, err)
	realm := NewRealm(codec)

	var count uint32
	router := httprouter.New()
	router.GET("/private", realm.Protect(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		atomic.AddUint32(&count, 1)
		sess, ok := SessionFrom(r.Context())
		require.True(t, ok, "session must be injected for the handler")
		require.EqualValues(t, 42, sess.AccountID)
		w.WriteHeader(http.StatusOK)
	}))

	// no credential: rejected before the handler, indistinguishable
	// from a missing route
	apitest.Handler(router).Get("/private").Expect(t).Status(http.StatusNotFound).End()

	// forged credential
	apitest.Handler(router).Get("/private").
		Header("Authorization", "garbage").
		Expect(t).Status(http.StatusUnprocessableEntity).End()

	token, err := codec.Issue(ctx, 42)
	require.NoError(t, err)
	apitest.Handler(router).Get("/private").
		Header("Authorization", token).
		Expect(t).Status(http.StatusOK).End()

	require.EqualValues(t, 1, count, "handler should have run exactly once")
}
