package emulator

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// hashPassword hashes a password for storage. The emulator is a dev
// tool holding fake accounts, so sha256 is sufficient here.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func passwordMatches(hash, password string) bool {
	candidate := hashPassword(password)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(candidate)) == 1
}

// issueToken assigns a fresh opaque bearer token to the user and
// persists it.
func issueToken(db *gorm.DB, user *User) error {
	user.Token = uuid.NewString()
	return db.Model(user).Update("token", user.Token).Error
}

var errNoToken = errors.New("missing bearer token")

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", errNoToken
	}
	return token, nil
}

// authenticate resolves the request's bearer token to a user.
func authenticate(db *gorm.DB, r *http.Request) (*User, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	var user User
	if err := db.Where("token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("invalid bearer token")
		}
		return nil, err
	}
	return &user, nil
}
