// Package auth keeps the platform API token in a browser cookie. The cookie
// is sealed with a server-side key so the token cannot be read or forged by
// page scripts or by anyone holding the cookie jar.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"git.coderun.dev/coderun/coderun/src/oops"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var ErrInvalidToken = errors.New("token cookie could not be opened")

type Sealer struct {
	key [keySize]byte
}

// NewSealer builds a sealer from a hex-encoded 32-byte key. An empty key
// yields a random one, which means sealed cookies die with the process.
func NewSealer(hexKey string) (*Sealer, error) {
	var s Sealer
	if hexKey == "" {
		if _, err := io.ReadFull(rand.Reader, s.key[:]); err != nil {
			return nil, oops.New(err, "failed to generate cookie key")
		}
		return &s, nil
	}

	keyBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, oops.New(err, "cookie secret is not valid hex")
	}
	if len(keyBytes) != keySize {
		return nil, oops.New(nil, "cookie secret must be %d bytes, got %d", keySize, len(keyBytes))
	}
	copy(s.key[:], keyBytes)
	return &s, nil
}

func (s *Sealer) Seal(token string) string {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		panic(err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(token), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(sealed)
}

func (s *Sealer) Open(value string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(sealed) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidToken
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	token, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrInvalidToken
	}
	return string(token), nil
}

// TokenExpiry reads the exp claim of a platform token without verifying its
// signature; only the platform can do that. Tokens that are not JWTs, or
// carry no expiry, are assumed to last for fallback.
func TokenExpiry(token string, now time.Time, fallback time.Duration) time.Time {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return now.Add(fallback)
	}
	return claims.ExpiresAt.Time
}
