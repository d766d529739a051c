package password

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Hasher derives a password hash from a per-user random salt.
// The same password and salt must always produce the same hash.
type Hasher interface {
	NewSalt() ([]byte, error)
	Hash(password string, salt []byte) []byte
}

// hmacKeySize matches the block size of SHA-512.
const hmacKeySize = 128

// HMACSHA512 uses the salt as the HMAC key.
type HMACSHA512 struct{}

func (HMACSHA512) NewSalt() ([]byte, error) {
	return randomBytes(hmacKeySize)
}

func (HMACSHA512) Hash(password string, salt []byte) []byte {
	mac := hmac.New(sha512.New, salt)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

type Argon2ID struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

var DefaultArgon2ID = Argon2ID{
	Time:    1,
	Memory:  64 * 1024, // 64 MiB
	Threads: 4,
	KeyLen:  64,
	SaltLen: 16,
}

func (a Argon2ID) NewSalt() ([]byte, error) {
	return randomBytes(a.SaltLen)
}

func (a Argon2ID) Hash(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, a.Time, a.Memory, a.Threads, a.KeyLen)
}

// New returns the hasher registered under name.
func New(name string) (Hasher, error) {
	switch name {
	case "", "hmac-sha512":
		return HMACSHA512{}, nil
	case "argon2id":
		return DefaultArgon2ID, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}

// Verify recomputes the hash with the stored salt. Missing hash or salt
// never verifies.
func Verify(h Hasher, password string, hash, salt []byte) bool {
	if len(hash) == 0 || len(salt) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(h.Hash(password, salt), hash) == 1
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
