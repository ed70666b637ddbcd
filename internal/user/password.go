package user

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/argon2"

	"github.com/jules-labs/lexitrace/pkg/errs"
)

// argon2 parameters carried from internal/membership/password.go.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// hashPassword generates a salted Argon2id hash of the password.
func hashPassword(password string) (hash, salt string, err error) {
	saltBytes := make([]byte, 16)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", "", errs.Wrap(errs.Internal, "generate password salt", err)
	}

	digest := argon2.IDKey([]byte(password), saltBytes, argonTime, argonMemory, argonThreads, argonKeyLen)
	return base64.StdEncoding.EncodeToString(digest), base64.StdEncoding.EncodeToString(saltBytes), nil
}

// verifyPassword compares password against a salted hash in constant
// time, closing the timing side-channel the teacher's byte-string
// equality check (internal/membership/password.go) leaves open.
func verifyPassword(password, salt, hash string) (bool, error) {
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false, errs.Wrap(errs.Internal, "decode password salt", err)
	}
	hashBytes, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false, errs.Wrap(errs.Internal, "decode password hash", err)
	}

	candidate := argon2.IDKey([]byte(password), saltBytes, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(candidate, hashBytes) == 1, nil
}
