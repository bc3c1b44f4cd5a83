package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultAlertThreshold, cfg.AlertThreshold)
	assert.Equal(t, DefaultVelocityWindow, cfg.VelocityWindowMinutes)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.NotEmpty(t, cfg.SuspiciousMerchants)
	assert.NotEmpty(t, cfg.SuspiciousCategories)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "ALERT_THRESHOLD", "0.55")
	setEnv(t, "VELOCITY_WINDOW_MINUTES", "5")
	setEnv(t, "SUSPICIOUS_MERCHANTS", "SHADY_SHOP, DODGY_DEALS")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 0.55, cfg.AlertThreshold)
	assert.Equal(t, 5, cfg.VelocityWindowMinutes)
	assert.Equal(t, []string{"SHADY_SHOP", "DODGY_DEALS"}, cfg.SuspiciousMerchants)
}

func TestLoad_InvalidThreshold(t *testing.T) {
	setEnv(t, "ALERT_THRESHOLD", "1.5")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ALERT_THRESHOLD")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "valid config",
			config:  Config{AlertThreshold: 0.4, VelocityWindowMinutes: 10, Workers: 4},
			wantErr: "",
		},
		{
			name:    "threshold above one",
			config:  Config{AlertThreshold: 1.2, VelocityWindowMinutes: 10, Workers: 4},
			wantErr: "ALERT_THRESHOLD",
		},
		{
			name:    "zero velocity window",
			config:  Config{AlertThreshold: 0.4, VelocityWindowMinutes: 0, Workers: 4},
			wantErr: "VELOCITY_WINDOW_MINUTES",
		},
		{
			name:    "zero workers",
			config:  Config{AlertThreshold: 0.4, VelocityWindowMinutes: 10, Workers: 0},
			wantErr: "WORKERS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_Patterns(t *testing.T) {
	cfg := &Config{
		AlertThreshold:        0.4,
		VelocityWindowMinutes: 15,
		VelocityThreshold:     7,
		AmountThreshold:       20000,
		GeoDistanceKm:         300,
		SuspiciousMerchants:   []string{"A"},
		SuspiciousCategories:  []string{"B"},
	}
	p := cfg.Patterns()

	assert.Equal(t, 15*time.Minute, p.VelocityWindow)
	assert.Equal(t, 7, p.VelocityThreshold)
	assert.Equal(t, 20000.0, p.AmountThreshold)
	assert.Equal(t, 300.0, p.GeoDistanceThreshold)
	assert.Equal(t, []string{"A"}, p.SuspiciousMerchants)
	assert.Equal(t, []string{"B"}, p.SuspiciousCategories)
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvFloat(t *testing.T) {
	setEnv(t, "TEST_FLOAT", "0.45")
	setEnv(t, "TEST_INVALID", "nope")

	assert.Equal(t, 0.45, getEnvFloat("TEST_FLOAT", 0))
	assert.Equal(t, 0.4, getEnvFloat("TEST_INVALID", 0.4))
}

func TestGetEnvList(t *testing.T) {
	setEnv(t, "TEST_LIST", "a, b ,c,")
	setEnv(t, "TEST_EMPTY", " , ")

	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("NONEXISTENT_VAR", []string{"x"}))
	assert.Equal(t, []string{"x"}, getEnvList("TEST_EMPTY", []string{"x"}))
}
