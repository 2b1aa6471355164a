// Package di wires the asset subsystem with samber/do: one provider per
// component, all reading the *config.AppConfig registered at the root.
package di

import "github.com/samber/do/v2"

// Injector alias
type Injector = do.Injector

// RootScope alias
type RootScope = do.RootScope

// New creates a root injector
var New = do.New

// Generic helpers cannot be re-exported as vars; call them on do directly:
//
//	injector := di.New()
//	do.Provide(injector, config.Provide(config.LoadOptions{File: "configs/assets.yaml"}))
//	di.Register(injector)
//	mgr := do.MustInvoke[*manager.Manager](injector)
