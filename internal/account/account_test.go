package account

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blacktop/pagepost/internal/pagepost"
)

func TestPasswordToBinary(t *testing.T) {
	assert.Equal(t, "01100001 01100010", PasswordToBinary("ab"))
	assert.Equal(t, "00110001", PasswordToBinary("1"))
	assert.Equal(t, "", PasswordToBinary(""))
	// non-ASCII code units are wider than 8 bits
	assert.Equal(t, "11101001", PasswordToBinary("é"))
	assert.Equal(t, "10000010101100", PasswordToBinary("€"))
}

func TestSignUpAndAuthenticate(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	u, err := s.SignUp(" Ann ", " ann@example.com ", "secret", "secret", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, "ann@example.com", u.Email)

	got, err := s.Authenticate("ANN@example.com ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)

	_, err = s.Authenticate("ann@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	key, err := s.LoadSubscriptionKey()
	require.NoError(t, err)
	assert.Equal(t, "key-1", key)

	raw, err := os.ReadFile(filepath.Join(dir, "user.txt"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ann","email":"ann@example.com","passwordBinary":"`+PasswordToBinary("secret")+`"}`, string(raw))
}

func TestSignUpValidation(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.SignUp("", "a@b.c", "pw", "pw", "")
	var missing pagepost.MissingConfigError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"name"}, missing.Fields)

	_, err = s.SignUp("A", "a@b.c", "pw", "other", "")
	assert.ErrorContains(t, err, "do not match")

	u, err := s.LoadUser()
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestSignUpWithoutKeyLeavesSubscriptionAbsent(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	_, err := s.SignUp("A", "a@b.c", "pw", "pw", "  ")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "subs.txt"))
}

func TestAuthenticateWithoutAccount(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Authenticate("a@b.c", "pw")
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestLoadUserIgnoresGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.txt"), []byte("not json"), 0o600))
	u, err := NewStore(dir).LoadUser()
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUpdateProfileAndPassword(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.UpdateProfile("B", "b@c.d")
	assert.ErrorIs(t, err, ErrNoAccount)

	_, err = s.SignUp("A", "a@b.c", "old", "old", "")
	require.NoError(t, err)

	u, err := s.UpdateProfile("B", "b@c.d")
	require.NoError(t, err)
	assert.Equal(t, "B", u.Name)

	assert.ErrorContains(t, s.ChangePassword("nope", "new", "new"), "incorrect")
	assert.ErrorContains(t, s.ChangePassword("old", "new", "newer"), "do not match")
	require.NoError(t, s.ChangePassword("old", "new", "new"))

	_, err = s.Authenticate("b@c.d", "new")
	assert.NoError(t, err)
}

func TestValidator(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
		err  bool
	}{
		{"bare true", "true", true, false},
		{"bare false", "false", false, false},
		{"object", `{"valid":true}`, true, false},
		{"object false", `{"valid":false,"reason":"expired"}`, false, false},
		{"garbage", "<html>", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "k 1", r.URL.Query().Get("subscriptionKey"))
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ok, err := NewValidator(srv.URL+"/validate", time.Second).Validate(context.Background(), "k 1")
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestValidatorEmptyKey(t *testing.T) {
	ok, err := NewValidator("http://127.0.0.1:1/validate", time.Second).Validate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}
