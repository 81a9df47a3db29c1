// Package pages stores the configured destination pages and their access
// tokens in settings.json.
package pages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/blacktop/pagepost/internal/fsutil"
	"github.com/blacktop/pagepost/internal/pagepost"
)

const (
	fileName = "settings.json"
	maskLen  = 24
)

var ErrNotFound = errors.New("page not found")

type settingsFile struct {
	SubscriptionKey string                 `json:"subscriptionKey,omitempty"`
	Pages           []pagepost.Destination `json:"pages"`
}

// Store is the file-backed credential store.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a Store for settings.json inside dir.
func New(dir string) *Store {
	return &Store{path: filepath.Join(dir, fileName)}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// List returns the configured pages in stored order.
func (s *Store) List(ctx context.Context) ([]pagepost.Destination, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.read()
	if err != nil {
		return nil, err
	}
	return settings.Pages, nil
}

// Find returns the page with the given id.
func (s *Store) Find(ctx context.Context, id string) (pagepost.Destination, error) {
	all, err := s.List(ctx)
	if err != nil {
		return pagepost.Destination{}, err
	}
	for _, d := range all {
		if d.ID == id {
			return d, nil
		}
	}
	return pagepost.Destination{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Add appends a page. All fields are trimmed and required.
func (s *Store) Add(ctx context.Context, d pagepost.Destination) error {
	d, err := normalize(d)
	if err != nil {
		return err
	}
	return s.mutate(ctx, func(settings *settingsFile) error {
		settings.Pages = append(settings.Pages, d)
		return nil
	})
}

// Update replaces the page at index.
func (s *Store) Update(ctx context.Context, index int, d pagepost.Destination) error {
	d, err := normalize(d)
	if err != nil {
		return err
	}
	return s.mutate(ctx, func(settings *settingsFile) error {
		if index < 0 || index >= len(settings.Pages) {
			return fmt.Errorf("page index %d out of range (have %d)", index, len(settings.Pages))
		}
		settings.Pages[index] = d
		return nil
	})
}

// Remove deletes the page at index.
func (s *Store) Remove(ctx context.Context, index int) error {
	return s.mutate(ctx, func(settings *settingsFile) error {
		if index < 0 || index >= len(settings.Pages) {
			return fmt.Errorf("page index %d out of range (have %d)", index, len(settings.Pages))
		}
		settings.Pages = append(settings.Pages[:index], settings.Pages[index+1:]...)
		return nil
	})
}

// IndexOf returns the position of the page with id, or -1.
func (s *Store) IndexOf(ctx context.Context, id string) (int, error) {
	all, err := s.List(ctx)
	if err != nil {
		return -1, err
	}
	for i, d := range all {
		if d.ID == id {
			return i, nil
		}
	}
	return -1, nil
}

// SubscriptionKey returns the key kept alongside the pages, if any.
func (s *Store) SubscriptionKey(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.read()
	if err != nil {
		return "", err
	}
	return settings.SubscriptionKey, nil
}

// Mask shortens a credential for display.
func Mask(credential string) string {
	if credential == "" {
		return ""
	}
	if len(credential) <= maskLen {
		return credential[:len(credential)/2] + "..."
	}
	return credential[:maskLen] + "..."
}

func normalize(d pagepost.Destination) (pagepost.Destination, error) {
	d.ID = strings.TrimSpace(d.ID)
	d.Name = strings.TrimSpace(d.Name)
	d.Credential = strings.TrimSpace(d.Credential)

	var missing []string
	if d.Name == "" {
		missing = append(missing, "name")
	}
	if d.ID == "" {
		missing = append(missing, "id")
	}
	if d.Credential == "" {
		missing = append(missing, "access token")
	}
	if len(missing) > 0 {
		return d, pagepost.MissingConfigError{Component: "page", Fields: missing}
	}
	return d, nil
}

func (s *Store) mutate(ctx context.Context, fn func(*settingsFile) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(&settings); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func (s *Store) read() (settingsFile, error) {
	var settings settingsFile

	data, err := fsutil.ReadFileIfExists(s.path)
	if err != nil {
		return settings, fmt.Errorf("%w: read %s: %v", pagepost.ErrStorageUnavailable, s.path, err)
	}
	if len(data) == 0 {
		return settings, nil
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), &settings); err != nil {
		return settings, fmt.Errorf("%w: parse %s: %v", pagepost.ErrStorageUnavailable, s.path, err)
	}
	return settings, nil
}
