package quality

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-assets/errcode"
)

// ModuleCode quality module code
const ModuleCode = 73

const (
	ErrCodeInvalidLevel  = 1
	ErrCodeConfigInvalid = 2
)

var (
	// ErrInvalidLevel unknown quality level
	ErrInvalidLevel = errcode.Register(errcode.New(
		ModuleCode, ErrCodeInvalidLevel,
		"quality", "error.quality.invalid_level", "invalid quality level",
		http.StatusBadRequest,
	))

	// ErrConfigInvalid controller configuration rejected
	ErrConfigInvalid = errcode.Register(errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"quality", "error.quality.config_invalid", "invalid quality controller configuration",
	))
)
