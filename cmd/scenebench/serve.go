package main

import (
	"context"
	"time"

	"github.com/KOMKZ/go-yogan-assets/config"
	"github.com/KOMKZ/go-yogan-assets/di"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	addr    string
	profile string
}

func newServeCmd(root *rootFlags) *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the subsystem running with diagnostics over HTTP until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := lookupProfile(flags.profile)
			if err != nil {
				return err
			}
			cfg, _, err := config.Load(root.loadOptions())
			if err != nil {
				return err
			}
			cfg.Diag.Enabled = true
			if flags.addr != "" {
				cfg.Diag.Addr = flags.addr
			}
			reg, err := sceneRegistry()
			if err != nil {
				return err
			}

			app := di.NewApp(di.WithConfig(*cfg), di.WithRegistry(reg), di.WithName("scenebench"), di.WithVersion(version))
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go func() {
				// frames only flow once Start has built the monitor
				for app.State() != di.StateRunning {
					select {
					case <-ctx.Done():
						return
					case <-time.After(10 * time.Millisecond):
					}
				}
				simulateFrames(ctx, app, profile, time.Minute)
			}()
			return app.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&flags.addr, "addr", "", "diagnostics listen address, overrides diag.addr")
	cmd.Flags().StringVar(&flags.profile, "fps-profile", "oscillating", "frame-rate profile, repeated every minute")
	return cmd
}

// simulateFrames feeds the monitor until ctx ends, restarting the profile
// every period.
func simulateFrames(ctx context.Context, app *di.App, profile frameProfile, period time.Duration) {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start) % period
			app.Monitor().RecordFrameDuration(profile(elapsed, period))
		}
	}
}
