package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/99designs/keyring"
)

const serviceName = "notification-center"

// Keyring item keys.
const (
	keyAccessToken = "access_token"
	keySession     = "session"
)

// ErrNotLoggedIn is returned when no usable session exists in the keyring.
var ErrNotLoggedIn = errors.New("not logged in")

// User identifies the authenticated subject owning the notification stream.
type User struct {
	// SubjectID is the server-side identity the stream subscribes to.
	SubjectID string `json:"subject_id"`

	// Username is the display name, if known.
	Username string `json:"username,omitempty"`

	// ExpiresAt is when the access token stops being valid.
	ExpiresAt time.Time `json:"expires_at"`
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/notification-center/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("notification-center-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Token retrieves the bearer access token for the current session.
// Returns ErrNotLoggedIn if none is stored.
func Token() (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(keyAccessToken)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotLoggedIn
		}
		return "", fmt.Errorf("getting access token: %w", err)
	}

	return string(item.Data), nil
}

// CurrentUser returns the stored session user. Returns ErrNotLoggedIn if no
// session is stored.
func CurrentUser() (*User, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}

	item, err := ring.Get(keySession)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}

	var u User
	if err := json.Unmarshal(item.Data, &u); err != nil {
		return nil, fmt.Errorf("parsing stored session: %w", err)
	}
	return &u, nil
}

// IsLoggedIn reports whether a session with an unexpired token is stored.
func IsLoggedIn() bool {
	u, err := CurrentUser()
	if err != nil {
		return false
	}
	if !u.ExpiresAt.IsZero() && time.Now().After(u.ExpiresAt) {
		return false
	}
	return true
}

// SaveSession stores the access token and user identity for a fresh login.
func SaveSession(token string, user User) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Set(keyring.Item{
		Key:  keyAccessToken,
		Data: []byte(token),
	}); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := ring.Set(keyring.Item{
		Key:  keySession,
		Data: data,
	}); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	return nil
}

// ClearSession removes the stored token and user on logout.
func ClearSession() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	for _, key := range []string{keyAccessToken, keySession} {
		if err := ring.Remove(key); err != nil &&
			!errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("removing credential %q: %w", key, err)
		}
	}

	return nil
}
