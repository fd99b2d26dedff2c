package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
)

const (
	// TokenKeyEnvVar holds the base64 encoded 32 byte secret used to
	// seal session tokens.
	TokenKeyEnvVar = "PARLOR_TOKEN_KEY"
)

type (
	Key [32]byte

	// KeyFn copies the process secret into k. The secret itself never
	// lives in a long-lived variable owned by request handling code.
	KeyFn func(ctx context.Context, k *Key) error
)

func (k *Key) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// KeyFnFromEnv reads the secret key from varname once, scrubs the
// variable from the environment and returns a KeyFn serving the
// decoded key for the lifetime of the process.
func KeyFnFromEnv(varname string, getfn func(string) string, setfn func(string, string) error) (KeyFn, error) {
	if getfn == nil {
		getfn = os.Getenv
	}
	if setfn == nil {
		setfn = os.Setenv
	}
	val := getfn(varname)
	setfn(varname, "")
	var rootKey Key
	sz, err := base64.StdEncoding.Decode(rootKey[:], []byte(val))
	if err != nil {
		return nil, fmt.Errorf("auth: cannot decode string to valid key, cause %v", err)
	} else if sz != len(rootKey) {
		return nil, fmt.Errorf("auth: decoded key too short got %v expecting %v bytes", sz, len(rootKey))
	}
	return func(_ context.Context, k *Key) error {
		copy((*k)[:], rootKey[:])
		return nil
	}, nil
}
