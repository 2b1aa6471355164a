package cache

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-assets/errcode"
)

// ModuleCode cache module code
const ModuleCode = 70

const (
	ErrCodeLoadFailure       = 1
	ErrCodeCapacityExhausted = 2
	ErrCodeCacheClosed       = 3
	ErrCodeConfigInvalid     = 4
	ErrCodeQualityRace       = 5
)

var (
	// ErrLoadFailure loader returned an error or panicked. Delivered to every
	// waiter of the load, never cached, safe to retry.
	ErrLoadFailure = errcode.Register(errcode.New(
		ModuleCode, ErrCodeLoadFailure,
		"cache", "error.cache.load_failure", "asset load failed",
		http.StatusBadGateway,
	).WithRetryable(true))

	// ErrCapacityExhausted a single asset exceeds the whole budget; the asset
	// is still inserted. Logged as a signal, not returned.
	ErrCapacityExhausted = errcode.Register(errcode.New(
		ModuleCode, ErrCodeCapacityExhausted,
		"cache", "error.cache.capacity_exhausted", "asset larger than the memory budget",
		http.StatusInsufficientStorage,
	).WithSeverity(errcode.SeverityWarning))

	// ErrCacheClosed DisposeAll already ran
	ErrCacheClosed = errcode.Register(errcode.New(
		ModuleCode, ErrCodeCacheClosed,
		"cache", "error.cache.closed", "asset cache disposed",
		http.StatusServiceUnavailable,
	))

	// ErrConfigInvalid budget or entry limit unusable
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"cache", "error.cache.config_invalid", "invalid cache configuration",
	))

	// ErrQualityRace a load finished after the quality level it was built
	// for changed. Logged only; the stale entry is swept lazily.
	ErrQualityRace = errcode.Register(errcode.New(
		ModuleCode, ErrCodeQualityRace,
		"cache", "error.cache.quality_race", "asset loaded for a superseded quality level",
	).WithSeverity(errcode.SeveritySwallowed))
)
