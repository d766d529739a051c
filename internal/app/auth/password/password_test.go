package password

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// дешёвые параметры, чтобы тесты не жгли 64 MiB на каждый вызов
var testArgon = Argon2ID{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func hashers() map[string]Hasher {
	return map[string]Hasher{
		"hmac-sha512": HMACSHA512{},
		"argon2id":    testArgon,
	}
}

func TestHash_Deterministic(t *testing.T) {
	for name, h := range hashers() {
		t.Run(name, func(t *testing.T) {
			salt, err := h.NewSalt()
			require.NoError(t, err)

			first := h.Hash("p@ssw0rd", salt)
			second := h.Hash("p@ssw0rd", salt)
			require.Equal(t, first, second)
		})
	}
}

func TestHash_DifferentSaltDifferentHash(t *testing.T) {
	for name, h := range hashers() {
		t.Run(name, func(t *testing.T) {
			s1, _ := h.NewSalt()
			s2, _ := h.NewSalt()
			require.False(t, bytes.Equal(s1, s2))
			require.NotEqual(t, h.Hash("same", s1), h.Hash("same", s2))
		})
	}
}

func TestVerify(t *testing.T) {
	for name, h := range hashers() {
		t.Run(name, func(t *testing.T) {
			salt, err := h.NewSalt()
			require.NoError(t, err)
			hash := h.Hash("correct horse", salt)

			require.True(t, Verify(h, "correct horse", hash, salt))
			for _, altered := range []string{"correct hors", "Correct horse", "correct horse ", ""} {
				require.False(t, Verify(h, altered, hash, salt), altered)
			}
		})
	}
}

func TestVerify_FailsClosed(t *testing.T) {
	h := HMACSHA512{}
	salt, _ := h.NewSalt()
	hash := h.Hash("x", salt)

	require.False(t, Verify(h, "x", nil, salt))
	require.False(t, Verify(h, "x", hash, nil))
}

func TestHMACSHA512_Sizes(t *testing.T) {
	h := HMACSHA512{}
	salt, err := h.NewSalt()
	require.NoError(t, err)
	require.Len(t, salt, 128)
	require.Len(t, h.Hash("x", salt), 64)
}

func TestNew(t *testing.T) {
	h, err := New("hmac-sha512")
	require.NoError(t, err)
	require.IsType(t, HMACSHA512{}, h)

	h, err = New("argon2id")
	require.NoError(t, err)
	require.IsType(t, Argon2ID{}, h)

	_, err = New("md5")
	require.Error(t, err)
}
