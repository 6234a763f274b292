package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// CHAT_ADDR is host:port of a running chat server; the suite is skipped without it
	ChatAddr  string `envconfig:"CHAT_ADDR"`
	Origin    string `envconfig:"E2E_ORIGIN" default:"http://localhost:3000"`
	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"sodeclick"`
	// DATABASE_URL, when set, is used to seed the e2e users
	DatabaseURL string `envconfig:"DATABASE_URL"`
	AliceID     string `envconfig:"E2E_ALICE_ID" default:"e2e-alice"`
	BobID       string `envconfig:"E2E_BOB_ID" default:"e2e-bob"`
	// E2E_DEBUG_JSON dumps every frame
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
