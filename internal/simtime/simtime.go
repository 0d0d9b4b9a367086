// Package simtime defines the simulated-time and frequency types shared by
// every simulation component, plus the ID generator used to hand out stable
// identifiers for messages.
package simtime

import (
	"log"
	"math"
)

// VTimeInSec is a point or duration in simulated time, measured in seconds.
type VTimeInSec float64

// Freq is an operating frequency in hertz.
type Freq float64

// Units of frequency.
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two consecutive cycles at this frequency.
func (f Freq) Period() VTimeInSec {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}
	return VTimeInSec(1.0 / float64(f))
}

// Cycle returns the number of whole cycles elapsed since time 0.
func (f Freq) Cycle(t VTimeInSec) uint64 {
	return uint64(math.Round(float64(t) * float64(f)))
}
