package main

import (
	"fmt"
	"math"
	"time"
)

// frameProfile synthetic frame time at elapsed of total
type frameProfile func(elapsed, total time.Duration) time.Duration

var profiles = map[string]frameProfile{
	// a comfortable 60 fps
	"steady": func(time.Duration, time.Duration) time.Duration {
		return fpsToFrameTime(60)
	},
	// 60 fps sliding down to 12 fps by the end of the run
	"degrading": func(elapsed, total time.Duration) time.Duration {
		return fpsToFrameTime(60 - 48*progress(elapsed, total))
	},
	// three swings between 15 and 65 fps
	"oscillating": func(elapsed, total time.Duration) time.Duration {
		return fpsToFrameTime(40 + 25*math.Sin(2*math.Pi*3*progress(elapsed, total)))
	},
}

func lookupProfile(name string) (frameProfile, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown fps profile %q (steady, degrading, oscillating)", name)
	}
	return p, nil
}

func progress(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return math.Min(1, float64(elapsed)/float64(total))
}

func fpsToFrameTime(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}
