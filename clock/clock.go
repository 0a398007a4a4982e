// Package clock provides the wrapping microsecond tick counter the fusion filter runs on.
package clock

import (
	"sync"
	"time"
)

// DefaultModulus is the wrap point of a 32 bit microsecond counter (about 71.6 minutes).
const DefaultModulus uint64 = 1 << 32

// Clock is a monotonic microsecond counter that wraps at Modulus.
type Clock interface {
	Now() uint64
	Modulus() uint64
}

// Micros counts microseconds since it was created, wrapping like a hardware counter.
type Micros struct {
	start   time.Time
	modulus uint64
}

// NewMicros returns a counter wrapping at modulus; 0 selects DefaultModulus.
func NewMicros(modulus uint64) *Micros {
	if modulus == 0 {
		modulus = DefaultModulus
	}
	return &Micros{start: time.Now(), modulus: modulus}
}

func (c *Micros) Now() uint64 {
	return uint64(time.Since(c.start)/time.Microsecond) % c.modulus
}

func (c *Micros) Modulus() uint64 {
	return c.modulus
}

// Manual is a clock that only moves when told to. It drives replays and tests.
type Manual struct {
	mu      sync.Mutex
	now     uint64
	modulus uint64
}

// NewManual returns a manual clock reading start.
func NewManual(start, modulus uint64) *Manual {
	if modulus == 0 {
		modulus = DefaultModulus
	}
	return &Manual{now: start % modulus, modulus: modulus}
}

func (c *Manual) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Manual) Modulus() uint64 {
	return c.modulus
}

// Advance moves the clock forward by d microseconds, wrapping at the modulus.
func (c *Manual) Advance(d uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = (c.now + d%c.modulus) % c.modulus
}
