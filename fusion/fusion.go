/*
Package fusion blends integrated gyro rates with accelerometer tilt in a first order
complementary filter.

The gyro is trusted over short periods and the accelerometer over long ones. Roll and
pitch are pulled toward the gravity vector on every update; yaw has no reference, so
it only gets a fixed per-update offset subtracted.
*/
package fusion

import (
	"math"

	"github.com/stratux/imufusion/clock"
	"github.com/stratux/imufusion/sensors"
)

const (
	// DefaultWeight is the share of the gyro-integrated angle kept on each update.
	DefaultWeight = 0.80
	// DefaultYawOffset is subtracted from the yaw angle on every update.
	// It was tuned on hardware at one sample rate and is not scaled by dt, so it is
	// not a rate in any physical unit. Override it per device.
	DefaultYawOffset = 0.18
)

// State is everything the filter remembers between updates. It belongs to exactly
// one sensor and must not be shared.
type State struct {
	Angle sensors.Triple // Running estimate, degrees
	Drift sensors.Triple // Subtracted from x and y before blending, degrees

	Weight    float64
	YawOffset float64

	LastTimestamp uint64 // µs, compared only through ElapsedMicros
	Modulus       uint64 // Wrap point of the timestamp counter; 0 means 2^64
	Started       bool   // False until the first timestamp is known
}

// NewState returns a state with the default weight and yaw offset.
func NewState(modulus uint64) State {
	return State{
		Weight:    DefaultWeight,
		YawOffset: DefaultYawOffset,
		Modulus:   modulus,
	}
}

// Start zeroes the estimate and takes now as the time of the previous sample.
func (s *State) Start(now uint64) {
	s.Angle = sensors.Triple{}
	s.LastTimestamp = now
	s.Started = true
}

// ElapsedMicros returns now - last on a counter that wraps at modulus (0 means 2^64).
// The result is never negative, so a counter overflow between samples still gives the
// small true interval.
func ElapsedMicros(last, now, modulus uint64) uint64 {
	if modulus == 0 {
		return now - last
	}
	last %= modulus
	now %= modulus
	if now >= last {
		return now - last
	}
	return modulus - last + now
}

// Tilt returns the roll and pitch in degrees implied by treating acc as pure gravity.
// Z is always 0: gravity says nothing about yaw.
func Tilt(acc sensors.Triple) sensors.Triple {
	return sensors.Triple{
		X: sensors.Degrees(math.Atan2(acc.Y, math.Sqrt(acc.X*acc.X+acc.Z*acc.Z))),
		Y: sensors.Degrees(math.Atan2(-acc.X, math.Sqrt(acc.Y*acc.Y+acc.Z*acc.Z))),
	}
}

// Update advances s by one sample taken at now (µs) and returns the new estimate.
// acc is in G and gyro in °/s. The first update after construction integrates
// over zero time.
func Update(s *State, acc, gyro sensors.Triple, now uint64) sensors.Triple {
	var dt float64
	if s.Started {
		dt = float64(ElapsedMicros(s.LastTimestamp, now, s.Modulus)) / 1e6
	}
	s.LastTimestamp = now
	s.Started = true

	tilt := Tilt(acc)

	s.Angle.X += gyro.X * dt
	s.Angle.Y += gyro.Y * dt
	s.Angle.Z += gyro.Z * dt

	w := s.Weight
	s.Angle.X = w*(s.Angle.X-s.Drift.X) + (1-w)*tilt.X
	s.Angle.Y = w*(s.Angle.Y-s.Drift.Y) + (1-w)*tilt.Y
	s.Angle.Z -= s.YawOffset

	return s.Angle
}

// Filter runs Update against a clock.
type Filter struct {
	State State
	clk   clock.Clock
}

// NewFilter returns a filter timed by clk with default parameters.
// Call Reset before the first Update to start integrating from the current time.
func NewFilter(clk clock.Clock) *Filter {
	return &Filter{State: NewState(clk.Modulus()), clk: clk}
}

// Reset zeroes the estimate and restarts timing from now.
func (f *Filter) Reset() {
	f.State.Start(f.clk.Now())
}

// Update feeds one sample timestamped with the filter's clock.
func (f *Filter) Update(acc, gyro sensors.Triple) sensors.Triple {
	return Update(&f.State, acc, gyro, f.clk.Now())
}

// Angle returns the current estimate.
func (f *Filter) Angle() sensors.Triple {
	return f.State.Angle
}
