package admintoken

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

var ErrMalformedHash = errors.New("malformed_token_hash")

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

// Hash returns the Argon2id PHC string stored in INTAKE_ADMIN_TOKEN_HASH.
func Hash(token string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(token), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	keyB64 := base64.RawStdEncoding.EncodeToString(key)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s", argonMemory, argonTime, argonThreads, saltB64, keyB64), nil
}

// VerifyHash checks token against an encoded Argon2id hash.
func VerifyHash(token, encoded string) bool {
	params, err := parseHash(encoded)
	if err != nil {
		return false
	}
	check := argon2.IDKey([]byte(token), params.salt, params.time, params.memory, params.threads, uint32(len(params.key)))
	return subtle.ConstantTimeCompare(params.key, check) == 1
}

// ValidateHash reports whether encoded is a usable Argon2id hash.
func ValidateHash(encoded string) error {
	_, err := parseHash(encoded)
	return err
}

func parseHash(encoded string) (argonParams, error) {
	parts := strings.Split(strings.TrimSpace(encoded), "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return argonParams{}, ErrMalformedHash
	}

	fields := strings.Split(parts[3], ",")
	if len(fields) != 3 {
		return argonParams{}, ErrMalformedHash
	}
	m, okM := strings.CutPrefix(fields[0], "m=")
	t, okT := strings.CutPrefix(fields[1], "t=")
	p, okP := strings.CutPrefix(fields[2], "p=")
	if !okM || !okT || !okP {
		return argonParams{}, ErrMalformedHash
	}

	m64, err := strconv.ParseUint(m, 10, 32)
	if err != nil {
		return argonParams{}, ErrMalformedHash
	}
	t64, err := strconv.ParseUint(t, 10, 32)
	if err != nil {
		return argonParams{}, ErrMalformedHash
	}
	p64, err := strconv.ParseUint(p, 10, 8)
	if err != nil || p64 == 0 {
		return argonParams{}, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argonParams{}, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return argonParams{}, ErrMalformedHash
	}

	return argonParams{
		memory:  uint32(m64),
		time:    uint32(t64),
		threads: uint8(p64),
		salt:    salt,
		key:     key,
	}, nil
}
