package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verification-service/internal/config"
)

func newTestHasher() *Hasher {
	return NewHasher(&config.Config{
		Hashing: config.HashingConfig{
			Argon2MemoryCost:   8192,
			Argon2TimeCost:     1,
			Argon2Parallelism:  1,
			PepperRotationDays: 30,
		},
	})
}

func TestHashAndVerifyOTP(t *testing.T) {
	hasher := newTestHasher()

	result, err := hasher.HashOTP("482913")
	require.NoError(t, err)
	require.NotEmpty(t, result.Hash)
	require.NotEmpty(t, result.Salt)
	assert.Equal(t, "argon2id-v1", result.Algorithm)

	match, err := hasher.VerifyOTP("482913", result)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = hasher.VerifyOTP("482914", result)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestHashOTPUsesFreshSalt(t *testing.T) {
	hasher := newTestHasher()

	first, err := hasher.HashOTP("482913")
	require.NoError(t, err)
	second, err := hasher.HashOTP("482913")
	require.NoError(t, err)

	assert.NotEqual(t, first.Salt, second.Salt)
	assert.NotEqual(t, first.Hash, second.Hash)
}

func TestVerifyOTPSurvivesPepperRotation(t *testing.T) {
	hasher := newTestHasher()

	result, err := hasher.HashOTP("482913")
	require.NoError(t, err)

	hasher.rotatePepper()

	match, err := hasher.VerifyOTP("482913", result)
	require.NoError(t, err)
	assert.True(t, match, "entries hashed under the old pepper must stay verifiable")
}

func TestHashIdentifier(t *testing.T) {
	first := HashIdentifier("user@example.com")
	second := HashIdentifier("user@example.com")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // sha256 hex

	assert.NotEqual(t, first, HashIdentifier("other@example.com"))
}
