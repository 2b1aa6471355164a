package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/KOMKZ/go-yogan-assets/cache"
	"github.com/KOMKZ/go-yogan-assets/monitor"
)

// CacheStatusSource anything reporting cache occupancy
type CacheStatusSource interface {
	Status() cache.Status
	Closed() bool
}

// CacheChecker unhealthy once disposed, degraded above the utilization limit
func CacheChecker(src CacheStatusSource, maxUtilizationPct float64) Checker {
	return CheckerFunc("asset_cache", func(context.Context) error {
		if src.Closed() {
			return errors.New("asset cache disposed")
		}
		st := src.Status()
		if maxUtilizationPct > 0 && st.UtilizationPct > maxUtilizationPct {
			return fmt.Errorf("%w: cache at %.1f%% of %d bytes", ErrDegraded, st.UtilizationPct, st.MemoryBudgetBytes)
		}
		return nil
	})
}

// SampleSource anything exposing the latest frame sample
type SampleSource interface {
	Latest() monitor.Sample
}

// FrameRateChecker degraded while the smoothed frame rate is below minFPS.
// No samples yet counts as healthy.
func FrameRateChecker(src SampleSource, minFPS float64) Checker {
	return CheckerFunc("frame_rate", func(context.Context) error {
		s := src.Latest()
		if s.Empty() || minFPS <= 0 {
			return nil
		}
		if s.FPS < minFPS {
			return fmt.Errorf("%w: %.1f fps below %.1f", ErrDegraded, s.FPS, minFPS)
		}
		return nil
	})
}
