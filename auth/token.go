package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parlor/parlor/internal/logutil"
	"github.com/parlor/parlor/weberr"
	"golang.org/x/crypto/nacl/secretbox"
)

// TokenValidity is the fixed window during which an issued session
// token is accepted.
const TokenValidity = 24 * time.Hour

type (
	// Session is the decoded, time-bounded identity claim carried by
	// a token. It only ever exists in memory: built at login,
	// rebuilt by Verify, never persisted.
	Session struct {
		AccountID int64     `json:"account_id"`
		NotBefore time.Time `json:"nbf"`
		Expiry    time.Time `json:"exp"`
	}

	// TokenCodec seals Sessions into opaque tokens and opens them
	// back, using the process-wide secret key. The sealed token is
	// authenticated: any bit flip makes Verify fail outright.
	TokenCodec struct {
		key  Key
		pool *Limiter
		now  func() time.Time
	}
)

func NewTokenCodec(ctx context.Context, keyfn KeyFn, pool *Limiter) (*TokenCodec, error) {
	if pool == nil {
		pool = NewLimiter(0)
	}
	c := &TokenCodec{pool: pool, now: time.Now}
	if err := keyfn(ctx, &c.key); err != nil {
		return nil, fmt.Errorf("auth: unable to load token key, cause %w", err)
	}
	return c, nil
}

// Issue seals a fresh Session for accountID, valid from now until
// now + TokenValidity. A failure here means the process is
// misconfigured and must surface to the caller.
func (c *TokenCodec) Issue(ctx context.Context, accountID int64) (string, error) {
	now := c.now().UTC().Truncate(time.Second)
	sess := Session{
		AccountID: accountID,
		NotBefore: now,
		Expiry:    now.Add(TokenValidity),
	}
	return c.seal(ctx, sess)
}

func (c *TokenCodec) seal(ctx context.Context, sess Session) (string, error) {
	plain, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("auth: unable to serialize session, cause %w", err)
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("auth: unable to generate token nonce, cause %w", err)
	}
	var sealed []byte
	err = c.pool.Do(ctx, func() {
		sealed = secretbox.Seal(nonce[:], plain, &nonce, (*[32]byte)(&c.key))
	})
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Verify opens token and checks its validity window against the
// current time (inclusive on both ends). Every rejection collapses to
// the single cannot-decrypt-token failure so the response never tells
// an adversary why a token was refused; the sub-reason is only logged
// at debug severity.
func (c *TokenCodec) Verify(ctx context.Context, token string) (Session, error) {
	log := logutil.GetOrDefault(ctx)
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		log.Debug().Err(err).Msg("token is not valid base64")
		return Session{}, weberr.CannotDecryptToken(err)
	}
	if len(raw) <= 24 {
		log.Debug().Msg("token too short to carry a nonce")
		return Session{}, weberr.CannotDecryptToken(fmt.Errorf("auth: token too short"))
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	var plain []byte
	var ok bool
	err = c.pool.Do(ctx, func() {
		plain, ok = secretbox.Open(nil, raw[24:], &nonce, (*[32]byte)(&c.key))
	})
	if err != nil {
		return Session{}, weberr.CannotDecryptToken(err)
	}
	if !ok {
		log.Debug().Msg("token failed authentication")
		return Session{}, weberr.CannotDecryptToken(fmt.Errorf("auth: token authentication failed"))
	}
	var sess Session
	if err := json.Unmarshal(plain, &sess); err != nil {
		log.Debug().Err(err).Msg("token payload is not a session")
		return Session{}, weberr.CannotDecryptToken(err)
	}
	now := c.now()
	if now.Before(sess.NotBefore) {
		log.Debug().Time("nbf", sess.NotBefore).Msg("token not yet valid")
		return Session{}, weberr.CannotDecryptToken(fmt.Errorf("auth: token not yet valid"))
	}
	if now.After(sess.Expiry) {
		log.Debug().Time("exp", sess.Expiry).Msg("token expired")
		return Session{}, weberr.CannotDecryptToken(fmt.Errorf("auth: token expired"))
	}
	return sess, nil
}
