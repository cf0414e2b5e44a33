package hashkey

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsUniqueAndWellFormed(t *testing.T) {
	seen := make(map[string]struct{}, 10000)

	for i := 0; i < 10000; i++ {
		key, err := Generate()
		require.NoError(t, err)
		require.True(t, Valid(key), "malformed key %q", key)

		_, dup := seen[key]
		require.False(t, dup, "duplicate key %q", key)
		seen[key] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"0123abcd":  true,
		"deadbeef":  true,
		"DEADBEEF":  false,
		"abc":       false,
		"0123abcde": false,
		"0123abcg":  false,
		"":          false,
		"../etc/pa": false,
	}

	for in, want := range cases {
		assert.Equal(t, want, Valid(in), in)
	}
}

var errCollision = errors.New("collision")

func TestWithRetryRetriesCollisions(t *testing.T) {
	calls := 0

	err := WithRetry(func(err error) bool { return errors.Is(err, errCollision) }, func(key string) error {
		calls++
		if calls < 3 {
			return errCollision
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0

	err := WithRetry(func(error) bool { return true }, func(string) error {
		calls++
		return errCollision
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, MaxAttempts, calls)
}

func TestWithRetryStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0

	err := WithRetry(func(err error) bool { return errors.Is(err, errCollision) }, func(string) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetryFromUsesSource(t *testing.T) {
	keys := []string{"00000001", "00000002"}
	var seen []string

	err := WithRetryFrom(func() (string, error) {
		key := keys[len(seen)]
		return key, nil
	}, func(err error) bool { return errors.Is(err, errCollision) }, func(key string) error {
		seen = append(seen, key)
		if key == "00000001" {
			return errCollision
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, keys, seen)
}

func TestWithRetryFromStopsOnSourceError(t *testing.T) {
	boom := errors.New("entropy")

	err := WithRetryFrom(func() (string, error) { return "", boom }, func(error) bool { return true }, func(string) error {
		t.Fatal("fn must not run without a key")
		return nil
	})

	assert.ErrorIs(t, err, boom)
}
