package auth

import (
	"crypto/subtle"
	"fmt"
)

// Authenticator provides an interface to authenticate
// privileged user who are the only ones being able to
// access certain api methods.
type Authenticator interface {

	// CheckAuthentication checks whether the given username
	// and password are correct. True will be returned, if it
	// is the case. Otherwise, false.
	CheckAuthentication(username, password string) bool
}

// Credentials is an object containing a  username
// and corresponding password in plain text.
type Credentials struct {
	username string
	password string
}

// CachedCredentials is an Authenticator that stores the
// username and password in plain text in cache.
type CachedCredentials struct {
	credentials Credentials
}

// NewCachedCredentials expects the single username and password, which are
// allowed to call the privileged api methods. An error will be returned, if
// one of them is empty.
func NewCachedCredentials(username, password string) (*CachedCredentials, error) {
	if username == "" {
		return nil, fmt.Errorf("no username specified for the api authentication")
	}
	if password == "" {
		return nil, fmt.Errorf("no password specified for the api authentication")
	}
	return &CachedCredentials{credentials: Credentials{username: username, password: password}}, nil
}

func (auth *CachedCredentials) CheckAuthentication(username, password string) bool {
	userMatch := subtle.ConstantTimeCompare([]byte(auth.credentials.username), []byte(username)) == 1
	passwordMatch := subtle.ConstantTimeCompare([]byte(auth.credentials.password), []byte(password)) == 1
	return userMatch && passwordMatch
}
