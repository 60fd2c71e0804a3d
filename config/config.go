package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// App is the process configuration, loaded from the environment.
type App struct {
	HTTPAddr string `env:"FARMKEEP_HTTP_ADDR" envDefault:":8978"`
	DSN      string `env:"FARMKEEP_DSN"       envDefault:"file::memory:?cache=shared"`

	SigningKey string   `env:"FARMKEEP_AUTH_SIGNING_KEY,required,notEmpty"`
	Issuer     string   `env:"FARMKEEP_AUTH_ISSUER"   envDefault:"farmkeep"`
	Audience   []string `env:"FARMKEEP_AUTH_AUDIENCE" envSeparator:"," envDefault:"farmkeep"`

	AccessTokenTTL  time.Duration `env:"FARMKEEP_AUTH_ACCESS_TTL"  envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"FARMKEEP_AUTH_REFRESH_TTL" envDefault:"720h"`

	OTPLength int           `env:"FARMKEEP_AUTH_OTP_LENGTH" envDefault:"6"`
	OTPTTL    time.Duration `env:"FARMKEEP_AUTH_OTP_TTL"    envDefault:"10m"`
}

// Load reads configuration from environment variables.
func Load() (*App, error) {
	cfg := &App{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Getters satisfy the auth configuration contract.

func (a *App) GetSigningKey() string             { return a.SigningKey }
func (a *App) GetIssuer() string                 { return a.Issuer }
func (a *App) GetAudience() []string             { return a.Audience }
func (a *App) GetAccessTokenTTL() time.Duration  { return a.AccessTokenTTL }
func (a *App) GetRefreshTokenTTL() time.Duration { return a.RefreshTokenTTL }
func (a *App) GetOTPLength() int                 { return a.OTPLength }
func (a *App) GetOTPTTL() time.Duration          { return a.OTPTTL }
