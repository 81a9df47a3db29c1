// Package account keeps the locally signed-up user and subscription key.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/blacktop/pagepost/internal/fsutil"
	"github.com/blacktop/pagepost/internal/logutil"
	"github.com/blacktop/pagepost/internal/pagepost"
)

const (
	userFileName = "user.txt"
	subsFileName = "subs.txt"
)

var (
	ErrNoAccount          = errors.New("no account found, sign up first")
	ErrInvalidCredentials = errors.New("email or password is incorrect")
)

// User is the locally stored account.
type User struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	PasswordBinary string `json:"passwordBinary"`
}

// PasswordToBinary encodes each character code as zero-padded 8-bit
// binary, space separated.
func PasswordToBinary(password string) string {
	units := utf16.Encode([]rune(password))
	parts := make([]string, 0, len(units))
	for _, unit := range units {
		parts = append(parts, fmt.Sprintf("%08b", unit))
	}
	return strings.Join(parts, " ")
}

// Store reads and writes the account files in a data directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// SignUp validates and saves a new user, and the subscription key if given.
func (s *Store) SignUp(name, email, password, confirm, subscriptionKey string) (*User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, pagepost.MissingConfigError{Component: "account", Fields: missing}
	}
	if password != confirm {
		return nil, errors.New("passwords do not match")
	}

	user := &User{Name: name, Email: email, PasswordBinary: PasswordToBinary(password)}
	if err := s.SaveUser(*user); err != nil {
		return nil, err
	}
	if key := strings.TrimSpace(subscriptionKey); key != "" {
		if err := s.SaveSubscriptionKey(key); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// SaveUser overwrites the stored user.
func (s *Store) SaveUser(u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(userFileName, u)
}

// LoadUser returns the stored user, or nil when there is none or the file
// is unusable.
func (s *Store) LoadUser() (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadUser()
}

func (s *Store) loadUser() (*User, error) {
	data, err := fsutil.ReadFileIfExists(filepath.Join(s.dir, userFileName))
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		logutil.Debugf("ignoring unreadable user file: %v", err)
		return nil, nil
	}
	if u.Email == "" || u.PasswordBinary == "" {
		return nil, nil
	}
	return &u, nil
}

// UpdateUser applies fn to the stored user and saves it. It returns nil
// when no user is stored.
func (s *Store) UpdateUser(fn func(*User)) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.loadUser()
	if err != nil || u == nil {
		return nil, err
	}
	fn(u)
	if err := s.writeJSON(userFileName, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateProfile changes name and email; both are required.
func (s *Store) UpdateProfile(name, email string) (*User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, pagepost.MissingConfigError{Component: "account", Fields: []string{"name", "email"}}
	}
	u, err := s.UpdateUser(func(u *User) {
		u.Name = name
		u.Email = email
	})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNoAccount
	}
	return u, nil
}

// Authenticate checks email (case-insensitive) and password against the
// stored user.
func (s *Store) Authenticate(email, password string) (*User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, pagepost.MissingConfigError{Component: "login", Fields: []string{"email", "password"}}
	}
	u, err := s.LoadUser()
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNoAccount
	}
	if !strings.EqualFold(strings.TrimSpace(u.Email), strings.TrimSpace(email)) ||
		u.PasswordBinary != PasswordToBinary(password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword verifies current and stores next.
func (s *Store) ChangePassword(current, next, confirm string) error {
	if current == "" || next == "" || confirm == "" {
		return pagepost.MissingConfigError{Component: "password change", Fields: []string{"current", "new", "confirm"}}
	}
	if next != confirm {
		return errors.New("new passwords do not match")
	}

	u, err := s.LoadUser()
	if err != nil {
		return err
	}
	if u == nil {
		return ErrNoAccount
	}
	if u.PasswordBinary != PasswordToBinary(current) {
		return errors.New("current password is incorrect")
	}

	_, err = s.UpdateUser(func(u *User) { u.PasswordBinary = PasswordToBinary(next) })
	return err
}

// SaveSubscriptionKey overwrites the stored subscription key.
func (s *Store) SaveSubscriptionKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(subsFileName, struct {
		SubscriptionKey string `json:"subscriptionKey"`
	}{key})
}

// LoadSubscriptionKey returns the stored key or "" when absent.
func (s *Store) LoadSubscriptionKey() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := fsutil.ReadFileIfExists(filepath.Join(s.dir, subsFileName))
	if err != nil {
		return "", fmt.Errorf("read subscription key: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}
	var v struct {
		SubscriptionKey string `json:"subscriptionKey"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		logutil.Debugf("ignoring unreadable subscription file: %v", err)
		return "", nil
	}
	return v.SubscriptionKey, nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(s.dir, name), data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
