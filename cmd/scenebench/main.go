// Command scenebench drives the asset subsystem with a synthetic frame
// load: it resolves organelle models and textures while a frame-rate
// profile pushes the quality controller around.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
