package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MAIL_FROM_ADDRESS", "noreply@example.com")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.AppPort)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 12, cfg.OTP.HashCost)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.ExpiresIn)
	assert.Equal(t, "HD Notes Team", cfg.Mail.FromName)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.AllowedOrigins)
	assert.False(t, cfg.TrustProxy)
}

func TestParse_TrustProxy(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MAIL_FROM_ADDRESS", "noreply@example.com")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxy)
}

func TestParse_SenderAlias(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SENDER", "team@example.com")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "team@example.com", cfg.Mail.FromAddress)
}

func TestParse_MissingSecret(t *testing.T) {
	t.Setenv("MAIL_FROM_ADDRESS", "noreply@example.com")

	_, err := Parse()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestParse_RSAKeysReplaceSecret(t *testing.T) {
	t.Setenv("MAIL_FROM_ADDRESS", "noreply@example.com")
	t.Setenv("JWT_PRIVATE_KEY_PATH", "/keys/private.pem")
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/keys/public.pem")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.True(t, cfg.JWT.UsesRSA())
}

func TestValidate_Rejects(t *testing.T) {
	base := func() *Config {
		return &Config{
			AppEnv: "production",
			Store:  StoreConfig{Driver: "postgres"},
			JWT:    JWTConfig{Secret: "x", ExpiresIn: time.Hour},
			OTP:    OTPConfig{Length: 6, TTL: time.Minute, HashCost: 12},
			Mail:   MailConfig{Driver: "smtp", FromAddress: "a@b.c"},
		}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(c *Config){
		"STORE_DRIVER":      func(c *Config) { c.Store.Driver = "mongo" },
		"OTP_LENGTH":        func(c *Config) { c.OTP.Length = 2 },
		"OTP_HASH_COST":     func(c *Config) { c.OTP.HashCost = 99 },
		"MAIL_DRIVER=log":   func(c *Config) { c.Mail.Driver = "log" },
		"SENDGRID_API_KEY":  func(c *Config) { c.Mail.Driver = "sendgrid" },
		"MAIL_FROM_ADDRESS": func(c *Config) { c.Mail.FromAddress = "" },
	}
	for want, mutate := range cases {
		t.Run(want, func(t *testing.T) {
			c := base()
			mutate(c)
			assert.ErrorContains(t, c.Validate(), want)
		})
	}
}
