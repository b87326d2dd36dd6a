package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("SESSION_SECRET", "")

	cfg, err := parse()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 72*time.Hour, cfg.CartTTL)
	assert.Equal(t, 49.0, cfg.HomeDeliveryFee)
	assert.Empty(t, cfg.ReceiptFontFile)
	assert.NotEmpty(t, cfg.SessionSecret)
}

func TestParseRequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SESSION_SECRET", "")

	_, err := parse()
	require.Error(t, err)
}

func TestParseRejectsNegativeDeliveryFee(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("HOME_DELIVERY_FEE", "-1")

	_, err := parse()
	require.Error(t, err)
}

func TestWarningsListMissingSettings(t *testing.T) {
	cfg := Config{AdminEmail: "admin@forma.test", AdminPassword: "x", HFToken: "t"}
	assert.Equal(t, []string{"IMAGEGEN_GEMINI_KEY is not set; draw-to-image disabled"}, cfg.Warnings())
}
