package main

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/KOMKZ/go-yogan-assets/asset"
	"github.com/KOMKZ/go-yogan-assets/config"
	"github.com/KOMKZ/go-yogan-assets/di"
	"github.com/KOMKZ/go-yogan-assets/manager"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runFlags struct {
	duration time.Duration
	profile  string
	tick     time.Duration
}

// benchReport printed as JSON when the run ends
type benchReport struct {
	Profile        string         `json:"profile"`
	Duration       string         `json:"duration"`
	Frames         int            `json:"frames"`
	Requests       int            `json:"requests"`
	Errors         int            `json:"errors"`
	QualityChanges int            `json:"quality_changes"`
	Final          manager.Status `json:"final"`
}

func newRunCmd(root *rootFlags) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a timed benchmark with a frame-rate profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := lookupProfile(flags.profile)
			if err != nil {
				return err
			}
			cfg, _, err := config.Load(root.loadOptions())
			if err != nil {
				return err
			}
			reg, err := sceneRegistry()
			if err != nil {
				return err
			}

			app := di.NewApp(di.WithConfig(*cfg), di.WithRegistry(reg), di.WithName("scenebench"), di.WithVersion(version))
			if err := app.Setup(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := app.Start(ctx); err != nil {
				_ = app.Shutdown(context.Background())
				return err
			}

			report, err := runBench(ctx, app, profile, flags)
			report.Profile = flags.profile
			shutdownErr := app.Shutdown(context.Background())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return shutdownErr
		},
	}
	cmd.Flags().DurationVar(&flags.duration, "duration", 10*time.Second, "benchmark length")
	cmd.Flags().StringVar(&flags.profile, "fps-profile", "degrading", "frame-rate profile: steady, degrading, oscillating")
	cmd.Flags().DurationVar(&flags.tick, "tick", 16*time.Millisecond, "wall-clock time between simulated frames")
	return cmd
}

// runBench simulates frames until the duration elapses; every frame asks
// for one model and one texture at a drifting zoom.
func runBench(ctx context.Context, app *di.App, profile frameProfile, flags runFlags) (benchReport, error) {
	mgr := app.Manager()
	log := app.Logger()
	report := benchReport{Duration: flags.duration.String()}

	var changes int
	ticker := time.NewTicker(flags.tick)
	defer ticker.Stop()
	deadline := time.NewTimer(flags.duration)
	defer deadline.Stop()

	start := time.Now()
	last := mgr.Controller().Current()
	for {
		select {
		case <-ctx.Done():
			report.Final = mgr.Status()
			return report, ctx.Err()
		case <-deadline.C:
			report.QualityChanges = changes
			report.Final = mgr.Status()
			return report, nil
		case <-ticker.C:
		}

		elapsed := time.Since(start)
		app.Monitor().RecordFrameDuration(profile(elapsed, flags.duration))
		report.Frames++

		c := asset.KnownCategories[rand.IntN(len(asset.KnownCategories))]
		zoom := 0.25 + 3*progress(elapsed%(flags.duration/2+1), flags.duration/2)
		if _, err := mgr.GetModel(ctx, c); err != nil {
			report.Errors++
			log.WarnCtx(ctx, "model request failed", zap.String("category", string(c)), zap.Error(err))
		}
		if _, err := mgr.GetTexture(ctx, c, zoom); err != nil {
			report.Errors++
			log.WarnCtx(ctx, "texture request failed", zap.String("category", string(c)), zap.Error(err))
		}
		report.Requests += 2

		if cur := mgr.Controller().Current(); cur != last {
			changes++
			last = cur
		}
	}
}
