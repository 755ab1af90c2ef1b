package main

import (
	"math"
	"time"

	"github.com/nerrad567/croquetia-core/internal/message"
)

const (
	defaultPixelCount = 10
	defaultHuePeriod  = 10 * time.Second
)

// staff simulates the dragon staff prop: a hue gradient along the strip
// that rotates once per period.
type staff struct {
	pixels int
	period time.Duration
	start  time.Time
}

func newStaff(pixels int, period time.Duration, start time.Time) *staff {
	if pixels <= 0 {
		pixels = defaultPixelCount
	}
	if period <= 0 {
		period = defaultHuePeriod
	}
	return &staff{pixels: pixels, period: period, start: start}
}

// frame returns the strip as it looks at now. Pixel i starts at hue
// i/pixels, full saturation and value.
func (s *staff) frame(now time.Time) message.DragonStaff {
	offset := float64(now.Sub(s.start)) / float64(s.period)
	pixels := make([]message.Pixel, s.pixels)
	for i := range pixels {
		hue := math.Mod(float64(i)/float64(s.pixels)+offset, 1)
		if hue < 0 {
			hue += 1
		}
		pixels[i] = message.Pixel{hue, 1, 1}
	}
	return message.DragonStaff{Pixels: pixels}
}
