package pages

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blacktop/pagepost/internal/pagepost"
)

func TestStore_EmptyWhenMissing(t *testing.T) {
	s := New(t.TempDir())

	got, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_AddUpdateRemove(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	require.NoError(t, s.Add(ctx, pagepost.Destination{ID: " p1 ", Name: " Page One ", Credential: " tok1 "}))
	require.NoError(t, s.Add(ctx, pagepost.Destination{ID: "p2", Name: "Page Two", Credential: "tok2"}))

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, pagepost.Destination{ID: "p1", Name: "Page One", Credential: "tok1"}, got[0])

	require.NoError(t, s.Update(ctx, 1, pagepost.Destination{ID: "p2", Name: "Renamed", Credential: "tok2b"}))
	d, err := s.Find(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", d.Name)
	assert.Equal(t, "tok2b", d.Credential)

	require.NoError(t, s.Remove(ctx, 0))
	got, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].ID)

	_, err = s.Find(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)

	idx, err := s.IndexOf(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestStore_RequiresAllFields(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	err := s.Add(ctx, pagepost.Destination{ID: "p1", Name: "  "})
	var missing pagepost.MissingConfigError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"name", "access token"}, missing.Fields)

	require.NoError(t, s.Add(ctx, pagepost.Destination{ID: "p1", Name: "One", Credential: "t"}))
	assert.Error(t, s.Update(ctx, 0, pagepost.Destination{ID: "p1", Name: "One"}))
	assert.Error(t, s.Update(ctx, 3, pagepost.Destination{ID: "p1", Name: "One", Credential: "t"}))
	assert.Error(t, s.Remove(ctx, -1))
}

func TestStore_ReadsHandEditedFile(t *testing.T) {
	dir := t.TempDir()
	content := `{
  // written by hand
  "subscriptionKey": "sub-123",
  "pages": [
    {"pageName": "Page One", "pageId": "p1", "accessToken": "tok1"},
  ],
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(content), 0o600))
	s := New(dir)
	ctx := context.Background()

	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []pagepost.Destination{{ID: "p1", Name: "Page One", Credential: "tok1"}}, got)

	key, err := s.SubscriptionKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sub-123", key)

	// the subscription key survives a rewrite
	require.NoError(t, s.Add(ctx, pagepost.Destination{ID: "p2", Name: "Two", Credential: "tok2"}))
	key, err = s.SubscriptionKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sub-123", key)
}

func TestStore_Unparseable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte("pages: nope"), 0o600))

	_, err := New(dir).List(context.Background())
	assert.ErrorIs(t, err, pagepost.ErrStorageUnavailable)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "abcdefghijklmnopqrstuvwx...", Mask("abcdefghijklmnopqrstuvwxyz0123"))
	assert.Equal(t, "ab...", Mask("abcd"))
}
