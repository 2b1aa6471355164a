package diag

import (
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config diagnostics HTTP surface
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Mode    string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DefaultConfig disabled, :8089, release mode
func DefaultConfig() Config {
	return Config{Addr: ":8089", Mode: gin.ReleaseMode}
}

// Validate checks the config
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Mode, validation.In(gin.DebugMode, gin.ReleaseMode, gin.TestMode)),
	)
}
