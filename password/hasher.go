package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordBytes is the shortest password Hash accepts.
const MinPasswordBytes = 10

var (
	// ErrMalformedHash is returned for stored hashes that cannot be decoded.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrUnsupportedHash is returned for stored hashes of an unknown scheme.
	ErrUnsupportedHash = errors.New("unsupported password hash")
	// ErrPasswordTooShort is returned by Hash.
	ErrPasswordTooShort = errors.New("password too short")
)

// Config holds argon2id parameters for new hashes.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the argon2id parameters used for new hashes.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher produces argon2id hashes and verifies both argon2id and legacy
// bcrypt hashes. Instances are immutable and safe for concurrent use.
type Hasher struct {
	config Config
}

// New validates cfg and returns a Hasher.
func New(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case cfg.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return &Hasher{config: cfg}, nil
}

// Hash returns an argon2id PHC string for password. Password bytes are used
// exactly as given, without normalization.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordBytes {
		return "", ErrPasswordTooShort
	}
	return hashArgon2(password, h.config)
}

// Verify compares password against encoded using the scheme encoded names.
// A mismatch is (false, nil); an unreadable hash is an error.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		return verifyArgon2(password, encoded)
	case isBcrypt(encoded):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsUpgrade reports whether encoded should be replaced by a fresh Hash:
// every bcrypt hash does, and argon2id hashes with weaker parameters do.
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	if isBcrypt(encoded) {
		return true, nil
	}

	p, err := parseArgon2(encoded)
	if err != nil {
		return false, err
	}
	return h.config.Memory > p.memory ||
		h.config.Time > p.time ||
		h.config.Parallelism > p.parallelism ||
		h.config.KeyLength != uint32(len(p.hash)), nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
