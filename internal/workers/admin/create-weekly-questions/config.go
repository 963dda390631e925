// internal/workers/admin/create-weekly-questions/config.go
package createweeklyquestions

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
