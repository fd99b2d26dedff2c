package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Default argon2id cost parameters. Changing them only affects new
// hashes: verification always uses the parameters embedded in the
// stored encoding.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonSaltLen = 32
	argonKeyLen  = 32
)

type (
	// Hasher salts and hashes passwords and verifies a plaintext
	// against a stored hash. Both operations run on the crypto
	// limiter: a single call takes tens to hundreds of milliseconds.
	Hasher struct {
		pool *Limiter
	}
)

func NewHasher(pool *Limiter) *Hasher {
	if pool == nil {
		pool = NewLimiter(0)
	}
	return &Hasher{pool: pool}
}

// Hash derives an argon2id digest of password under a fresh random
// salt and returns the self-describing encoded string
// $argon2id$v=..$m=..,t=..,p=..$salt$digest.
func (h *Hasher) Hash(ctx context.Context, password []byte) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: unable to generate salt, cause %w", err)
	}
	var digest []byte
	err := h.pool.Do(ctx, func() {
		digest = argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	})
	if err != nil {
		return "", err
	}
	encoded := fmt.Sprintf("$argon2id$v=%v$m=%v,t=%v,p=%v$%v$%v",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest))
	return encoded, nil
}

// Verify re-derives the digest using the parameters embedded in
// encoded and compares in constant time. A mismatch is (false, nil);
// an encoding the hasher cannot even decode is an error, so callers
// can log corrupt stored hashes differently from wrong passwords.
func (h *Hasher) Verify(ctx context.Context, encoded string, password []byte) (bool, error) {
	salt, digest, time, memory, threads, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	var computed []byte
	err = h.pool.Do(ctx, func() {
		computed = argon2.IDKey(password, salt, time, memory, threads, uint32(len(digest)))
	})
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, digest) == 1, nil
}

func decodeHash(encoded string) (salt, digest []byte, time, memory uint32, threads uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		err = fmt.Errorf("auth: malformed password hash")
		return
	}
	if parts[1] != "argon2id" {
		err = fmt.Errorf("auth: unsupported hash algorithm %v", parts[1])
		return
	}
	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		err = fmt.Errorf("auth: malformed hash version, cause %w", err)
		return
	}
	var p uint32
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &p); err != nil {
		err = fmt.Errorf("auth: malformed hash parameters, cause %w", err)
		return
	}
	if p == 0 || p > 255 {
		err = fmt.Errorf("auth: hash parallelism %v out of range", p)
		return
	}
	threads = uint8(p)
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		err = fmt.Errorf("auth: malformed hash salt, cause %w", err)
		return
	}
	digest, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		err = fmt.Errorf("auth: malformed hash digest, cause %w", err)
		return
	}
	if len(digest) == 0 {
		err = fmt.Errorf("auth: empty hash digest")
	}
	return
}
