package auth

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

const (
	MinLoginLength    = 5
	MinPasswordLength = 3
)

// Credential is the identity every request is signed with.  It never holds the password.
type Credential struct {
	// Login is the normalized login.
	Login string
	// ShortLogin is Login without the domain suffix.
	ShortLogin string
	// HashedSecret is the lowercase hex SHA-512 of the password, used as HMAC key.
	HashedSecret string
}

// NewCredential validates the typed login and password and derives the credential.
func NewCredential(n Normalizer, login, password string) (*Credential, error) {
	if utf8.RuneCountInString(login) < MinLoginLength || utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, ErrInvalidCredentials
	}
	realLogin := n.RealLogin(login)
	return &Credential{
		Login:        realLogin,
		ShortLogin:   n.ShortLogin(realLogin),
		HashedSecret: HashSecret(password),
	}, nil
}

// HashSecret returns the lowercase hex SHA-512 digest of password.
func HashSecret(password string) string {
	sum := sha512.Sum512([]byte(password))
	return hex.EncodeToString(sum[:])
}

// String returns the login only.  It is safe to call for logging.
func (c *Credential) String() string {
	if c == nil {
		return "<nil>"
	}
	return c.Login
}

func (c *Credential) GoString() string {
	return fmt.Sprintf("auth.Credential{Login: %q}", c.String())
}
