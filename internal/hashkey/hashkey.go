// Package hashkey generates the short public identifiers used in user
// dashboard and survey URLs.
package hashkey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
)

const (
	Length = 8

	// MaxAttempts bounds collision retries before giving up.
	MaxAttempts = 5
)

var (
	ErrExhausted = errors.New("hashkey: no unique value after retries")

	pattern = regexp.MustCompile(`^[0-9a-f]{8}$`)
)

// Generate returns Length lowercase hex characters from crypto/rand.
func Generate() (string, error) {
	buf := make([]byte, Length/2)

	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}

func Valid(s string) bool {
	return pattern.MatchString(s)
}

// WithRetry calls fn with freshly generated keys until it succeeds, returns an
// error that is not a collision, or MaxAttempts is reached.
func WithRetry(isCollision func(error) bool, fn func(key string) error) error {
	return WithRetryFrom(Generate, isCollision, fn)
}

// WithRetryFrom is WithRetry with candidate keys drawn from next.
func WithRetryFrom(next func() (string, error), isCollision func(error) bool, fn func(key string) error) error {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		key, err := next()

		if err != nil {
			return err
		}

		err = fn(key)

		if err == nil {
			return nil
		}

		if !isCollision(err) {
			return err
		}
	}

	return ErrExhausted
}
