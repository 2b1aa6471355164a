package cache

import (
	"time"

	"github.com/KOMKZ/go-yogan-assets/asset"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config asset cache configuration
type Config struct {
	// MemoryBudgetMB total estimated bytes the cache may hold, in MiB
	MemoryBudgetMB int `mapstructure:"memory_budget_mb"`

	// MaxEntries entry count limit
	MaxEntries int `mapstructure:"max_entries"`

	// PreloadPriorityKeys categories that score higher, earlier is stronger
	PreloadPriorityKeys []asset.Category `mapstructure:"preload_priority_keys"`

	// PreloadConcurrency loads per preload batch
	PreloadConcurrency int `mapstructure:"preload_concurrency"`

	// PreloadYield pause between preload batches
	PreloadYield time.Duration `mapstructure:"preload_yield"`

	// OversizeEscalation every Nth oversize insert is logged at error level
	OversizeEscalation int `mapstructure:"oversize_escalation"`
}

// DefaultConfig 100 MiB, 50 entries
func DefaultConfig() Config {
	return Config{
		MemoryBudgetMB:     100,
		MaxEntries:         50,
		PreloadConcurrency: 3,
		PreloadYield:       16 * time.Millisecond,
		OversizeEscalation: 5,
	}
}

// ApplyDefaults fills the optional knobs. Budget and entry limit are
// left alone so a zero or negative value fails validation.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.PreloadConcurrency <= 0 {
		c.PreloadConcurrency = d.PreloadConcurrency
	}
	if c.PreloadYield < 0 {
		c.PreloadYield = d.PreloadYield
	}
	if c.OversizeEscalation <= 0 {
		c.OversizeEscalation = d.OversizeEscalation
	}
}

// Validate checks the config
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.MemoryBudgetMB, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxEntries, validation.Required, validation.Min(1)),
		validation.Field(&c.PreloadConcurrency, validation.Min(1)),
		validation.Field(&c.PreloadPriorityKeys, validation.Each(validation.Required)),
	)
	if err != nil {
		return ErrConfigInvalid.Wrap(err)
	}
	return nil
}

// BudgetBytes memory budget in bytes
func (c Config) BudgetBytes() int64 {
	return int64(c.MemoryBudgetMB) << 20
}
