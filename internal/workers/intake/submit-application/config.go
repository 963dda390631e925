// internal/workers/intake/submit-application/config.go
package submitapplication

import (
	"time"

	"weekly-intake/internal/intake"
)

type Config struct {
	Timeout time.Duration
	Rules   intake.Rules
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Rules:   intake.DefaultRules(),
	}
}
