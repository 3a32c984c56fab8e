package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wishsync/cmd/internal/owner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "wishsync", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	paths := [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"token"},
		{"login"},
		{"logout"},
		{"watch"},
		{"guest", "reserve"},
		{"guest", "unreserve"},
		{"guest", "contribute"},
	}

	for _, path := range paths {
		t.Run(strings.Join(path, "_"), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestWatchRetryDelayDefault(t *testing.T) {
	cmd := NewRootCommand()
	watch, _, err := cmd.Find([]string{"watch"})
	require.NoError(t, err)

	f := watch.Flags().Lookup("retry-delay")
	require.NotNil(t, f)
	assert.Equal(t, "2s", f.DefValue)
}

func TestTokenThenLoginRoundTrip(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	t.Setenv("WISHSYNC_JWT_SECRET", secret)
	t.Setenv("WISHSYNC_JWT_ISSUER", "")
	creds := filepath.Join(t.TempDir(), "credentials")

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"token", "--owner", "owner-alice", "--ttl", "1h"})
	require.NoError(t, cmd.Execute())

	tok := strings.TrimSpace(out.String())
	v, err := owner.NewJWTVerifier(secret)
	require.NoError(t, err)
	id, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "owner-alice", id.OwnerID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, time.Minute)

	out.Reset()
	cmd = NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--credentials", creds, "login", tok})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "logged in")
	assert.FileExists(t, creds)

	cmd = NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--credentials", creds, "logout"})
	require.NoError(t, cmd.Execute())
	assert.NoFileExists(t, creds)
}

func TestTokenWithoutSecretFails(t *testing.T) {
	t.Setenv("WISHSYNC_JWT_SECRET", "")

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--owner", "x"})
	assert.Error(t, cmd.Execute())
}

func TestOriginHeader(t *testing.T) {
	h := originHeader("https://gifts.example.com/base")
	require.NotNil(t, h)
	assert.Equal(t, "https://gifts.example.com", h.Get("Origin"))
	assert.Nil(t, originHeader("not a url"))
}
