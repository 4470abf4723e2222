package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Defaults(t *testing.T) {
	for _, key := range []string{
		"GO_ENV", "PORT", "DB_HOST", "DB_PORT", "PAYMENT_CURRENCY",
		"OTP_TTL", "OTP_RESEND_COOLDOWN", "OTP_MAX_ATTEMPTS", "CRON_ENABLED",
	} {
		t.Setenv(key, "")
	}

	env, err := Get()
	require.NoError(t, err)

	assert.Equal(t, "development", env.GO_ENV)
	assert.Equal(t, 8080, env.PORT)
	assert.Equal(t, "localhost", env.DB_HOST)
	assert.Equal(t, "5432", env.DB_PORT)
	assert.Equal(t, "USD", env.PAYMENT_CURRENCY)
	assert.Equal(t, 5*time.Minute, env.OTP_TTL)
	assert.Equal(t, 60*time.Second, env.OTP_RESEND_COOLDOWN)
	assert.Equal(t, 5, env.OTP_MAX_ATTEMPTS)
	assert.True(t, env.CRON_ENABLED)
	assert.False(t, env.IsProduction())
}

func TestGet_Overrides(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("OTP_RESEND_COOLDOWN", "90s")
	t.Setenv("OTP_MAX_ATTEMPTS", "3")
	t.Setenv("CRON_ENABLED", "false")

	env, err := Get()
	require.NoError(t, err)

	assert.Equal(t, 9090, env.PORT)
	assert.Equal(t, 90*time.Second, env.OTP_RESEND_COOLDOWN)
	assert.Equal(t, 3, env.OTP_MAX_ATTEMPTS)
	assert.False(t, env.CRON_ENABLED)
	assert.True(t, env.IsProduction())
}

func TestGet_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("OTP_TTL", "five minutes")

	env, err := Get()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, env.OTP_TTL)
}

func TestDSN(t *testing.T) {
	env := &EnviornmentVariable{
		DB_HOST:      "db",
		DB_USER_NAME: "u",
		DB_PASSWORD:  "p",
		DB_NAME:      "courses",
		DB_PORT:      "5432",
		DB_SSL_MODE:  "disable",
	}
	assert.Equal(t, "host=db user=u password=p dbname=courses port=5432 sslmode=disable TimeZone=UTC", env.DSN())
}
