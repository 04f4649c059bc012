package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	argon2Time    uint32 = 3
	argon2Memory  uint32 = 64 * 1024
	argon2Threads uint8  = 4
	argon2KeyLen  uint32 = 32
	argon2SaltLen        = 16
)

// pbkdf2Iterations are tried in order when verifying salt$hash values.
var pbkdf2Iterations = []int{200000, 100000, 50000}

var errMalformedHash = errors.New("malformed password hash")

// passwordHash is one of the stored hash formats. The set is closed:
// argon2Hash is what Hash writes today, pbkdf2Hash and bcryptHash are
// accepted so that older rows keep verifying.
type passwordHash interface {
	matches(password string) bool
}

type argon2Hash struct {
	version uint32
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

type pbkdf2Hash struct {
	salt []byte
	key  []byte
}

type bcryptHash struct {
	encoded []byte
}

// parsePasswordHash dispatches on the format tag embedded in encoded.
func parsePasswordHash(encoded string) (passwordHash, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		h, err := parseArgon2(encoded)
		if err != nil {
			return nil, err
		}

		return h, nil
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return bcryptHash{encoded: []byte(encoded)}, nil
	case strings.Count(encoded, "$") == 1:
		h, err := parsePBKDF2(encoded)
		if err != nil {
			return nil, err
		}

		return h, nil
	default:
		return nil, errMalformedHash
	}
}

// parseArgon2 reads the PHC string $argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>.
func parseArgon2(encoded string) (*argon2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, errMalformedHash
	}

	h := &argon2Hash{}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &h.version); err != nil {
		return nil, errors.Wrap(errMalformedHash, "argon2 version")
	}
	if h.version != argon2.Version {
		return nil, errors.Wrapf(errMalformedHash, "unsupported argon2 version %d", h.version)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return nil, errors.Wrap(errMalformedHash, "argon2 parameters")
	}
	if h.memory == 0 || h.time == 0 || h.threads == 0 {
		return nil, errors.Wrap(errMalformedHash, "argon2 parameters")
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.Strict().DecodeString(parts[4]); err != nil {
		return nil, errors.Wrap(errMalformedHash, "argon2 salt")
	}
	if h.key, err = base64.RawStdEncoding.Strict().DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return nil, errors.Wrap(errMalformedHash, "argon2 key")
	}

	return h, nil
}

func parsePBKDF2(encoded string) (*pbkdf2Hash, error) {
	saltHex, keyHex, _ := strings.Cut(encoded, "$")

	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return nil, errors.Wrap(errMalformedHash, "pbkdf2 salt")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) == 0 {
		return nil, errors.Wrap(errMalformedHash, "pbkdf2 key")
	}

	return &pbkdf2Hash{salt: salt, key: key}, nil
}

func (h *argon2Hash) matches(password string) bool {
	derived := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.threads, uint32(len(h.key)))

	return subtle.ConstantTimeCompare(derived, h.key) == 1
}

func (h *argon2Hash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		h.version, h.memory, h.time, h.threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func (h *pbkdf2Hash) matches(password string) bool {
	for _, iterations := range pbkdf2Iterations {
		derived := pbkdf2.Key([]byte(password), h.salt, iterations, len(h.key), sha256.New)
		if subtle.ConstantTimeCompare(derived, h.key) == 1 {
			return true
		}
	}

	return false
}

func (h *pbkdf2Hash) String() string {
	return hex.EncodeToString(h.salt) + "$" + hex.EncodeToString(h.key)
}

func (h bcryptHash) matches(password string) bool {
	return bcrypt.CompareHashAndPassword(h.encoded, []byte(password)) == nil
}

// newArgon2Hash derives a fresh argon2id hash with the current parameters.
func newArgon2Hash(password string, salt []byte) *argon2Hash {
	return &argon2Hash{
		version: argon2.Version,
		memory:  argon2Memory,
		time:    argon2Time,
		threads: argon2Threads,
		salt:    salt,
		key:     argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen),
	}
}

