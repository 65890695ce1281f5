package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Minute, cfg.CheckInWindow)
	assert.Equal(t, 10*time.Minute, cfg.StepTimeout)
	assert.Equal(t, time.Minute, cfg.ConfirmWindow)
	assert.Equal(t, 10*time.Minute, cfg.WinCooldown)
	assert.Equal(t, 24*time.Hour, cfg.SessionLifetime)
	assert.Equal(t, "file://migrations", cfg.MigrationsURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("CHECK_IN_WINDOW", "30s")
	t.Setenv("OWNER_ID", "owner-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.CheckInWindow)
	assert.Equal(t, "owner-1", cfg.OwnerID)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("STEP_TIMEOUT", "not-a-duration")

	_, err := Load()
	assert.Error(t, err)
}
