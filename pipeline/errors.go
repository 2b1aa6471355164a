package pipeline

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-assets/errcode"
)

// ModuleCode pipeline module code
const ModuleCode = 72

const (
	ErrCodeInvalidSize    = 1
	ErrCodeRenderFailed   = 2
	ErrCodePipelineClosed = 3
)

var (
	// ErrInvalidSize target size missing, non-positive or above the texture limit
	ErrInvalidSize = errcode.Register(errcode.New(
		ModuleCode, ErrCodeInvalidSize,
		"pipeline", "error.pipeline.invalid_size", "invalid texture size",
		http.StatusBadRequest,
	))

	// ErrRenderFailed the source could not be rasterized
	ErrRenderFailed = errcode.Register(errcode.New(
		ModuleCode, ErrCodeRenderFailed,
		"pipeline", "error.pipeline.render_failed", "source render failed",
	).WithRetryable(true))

	// ErrPipelineClosed worker pool released
	ErrPipelineClosed = errcode.Register(errcode.New(
		ModuleCode, ErrCodePipelineClosed,
		"pipeline", "error.pipeline.closed", "pipeline closed",
		http.StatusServiceUnavailable,
	))
)
