package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvHelpers_FallBackOnInvalid(t *testing.T) {
	t.Setenv("WISHSYNC_T_INT", "-3")
	t.Setenv("WISHSYNC_T_BOOL", "maybe")
	t.Setenv("WISHSYNC_T_DUR", "soon")
	t.Setenv("WISHSYNC_T_I32", "99999999999")

	assert.Equal(t, 7, EnvInt("WISHSYNC_T_INT", 7))
	assert.True(t, EnvBool("WISHSYNC_T_BOOL", true))
	assert.Equal(t, time.Second, EnvDuration("WISHSYNC_T_DUR", time.Second))
	assert.Equal(t, int32(4), EnvInt32("WISHSYNC_T_I32", 4))
	assert.Equal(t, "def", EnvString("WISHSYNC_T_MISSING", "def"))
}

func TestEnvCSV(t *testing.T) {
	t.Setenv("WISHSYNC_T_CSV", " https://a.example , ,https://b.example ")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, EnvCSV("WISHSYNC_T_CSV", nil))

	t.Setenv("WISHSYNC_T_CSV", " , ")
	assert.Equal(t, []string{"x"}, EnvCSV("WISHSYNC_T_CSV", []string{"x"}))
}

func TestLoadConfig_ReadsPrefixedEnv(t *testing.T) {
	t.Setenv("WISHSYNC_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("WISHSYNC_STRICT_FUNDING", "true")
	t.Setenv("WISHSYNC_WS_ALLOWED_ORIGINS", "https://gifts.example.com")
	t.Setenv("WISHSYNC_LOG_FORMAT", "text")

	cfg := LoadConfig()
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTPAddr)
	assert.True(t, cfg.StrictFunding)
	assert.Equal(t, []string{"https://gifts.example.com"}, cfg.WSAllowedOrigins)
	assert.True(t, cfg.WSOriginRequired)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		return Config{HTTPAddr: ":8080", LogFormat: "json"}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.JWTSecret = "short"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.DBMaxConns, cfg.DBMinConns = 2, 5
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.AutoMigrate = true
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.LogFormat = "xml"
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv_ProcessEnvWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WISHSYNC_T_DOTENV_A=file\nWISHSYNC_T_DOTENV_B=file\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("WISHSYNC_T_DOTENV_B=local\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("WISHSYNC_T_DOTENV_A", "process")
	t.Cleanup(func() { _ = os.Unsetenv("WISHSYNC_T_DOTENV_B") })

	loaded := LoadDotEnv()
	assert.Equal(t, []string{".env.local", ".env"}, loaded)
	assert.Equal(t, "process", os.Getenv("WISHSYNC_T_DOTENV_A"))
	assert.Equal(t, "local", os.Getenv("WISHSYNC_T_DOTENV_B"))
}
