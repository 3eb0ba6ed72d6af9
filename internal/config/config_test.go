package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, 24*time.Hour, cfg.TokenTTL)
	require.Equal(t, 5*time.Second, cfg.LockTimeout)
	require.True(t, cfg.SeedBranches)
	require.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("x", 40))
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOCK_TIMEOUT", "750ms")
	t.Setenv("SEED_BRANCHES", "false")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 750*time.Millisecond, cfg.LockTimeout)
	require.False(t, cfg.SeedBranches)
}

func TestLoadRejectsWeakSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load(zap.NewNop())
	require.ErrorContains(t, err, "at least 32")
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load(zap.NewNop())
	require.ErrorContains(t, err, "JWT_SECRET is required")
}
