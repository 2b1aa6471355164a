package asset

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-assets/errcode"
)

// ModuleCode assets module code
const ModuleCode = 71

const (
	ErrCodeUnknownCategory = 1
	ErrCodeInvalidKey      = 2
	ErrCodeDisposal        = 3
)

var (
	// ErrUnknownCategory no factory registered for the category
	ErrUnknownCategory = errcode.Register(errcode.New(
		ModuleCode, ErrCodeUnknownCategory,
		"assets", "error.assets.unknown_category", "unknown asset category",
		http.StatusNotFound,
	))

	// ErrInvalidKey key does not follow the model-/texture- layout
	ErrInvalidKey = errcode.Register(errcode.New(
		ModuleCode, ErrCodeInvalidKey,
		"assets", "error.assets.invalid_key", "invalid asset key",
		http.StatusBadRequest,
	))

	// ErrDisposal double release or release of an externally invalidated resource.
	// Logged by the owner and never propagated.
	ErrDisposal = errcode.Register(errcode.New(
		ModuleCode, ErrCodeDisposal,
		"assets", "error.assets.disposal", "resource already released",
	).WithSeverity(errcode.SeveritySwallowed))
)
