// Package sensors holds the value types shared by the IMU drivers.
package sensors

import (
	"math"
	"time"

	"github.com/westphae/quaternion"
)

// Triple is a three axis quantity: raw counts, physical vectors or angles.
type Triple struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Scale returns t with every axis multiplied by k.
func (t Triple) Scale(k float64) Triple {
	return Triple{t.X * k, t.Y * k, t.Z * k}
}

// Sub returns t - u.
func (t Triple) Sub(u Triple) Triple {
	return Triple{t.X - u.X, t.Y - u.Y, t.Z - u.Z}
}

// Norm returns the Euclidean length of t.
func (t Triple) Norm() float64 {
	return math.Sqrt(t.X*t.X + t.Y*t.Y + t.Z*t.Z)
}

// Bundle is one snapshot from an IMU.
// Acceleration is in G, AngularVelocity in °/s, Angle in degrees (roll, pitch, yaw).
type Bundle struct {
	Device          string    `json:"device"`
	T               time.Time `json:"t"`
	Acceleration    Triple    `json:"acceleration"`
	AngularVelocity Triple    `json:"angular_velocity"`
	Angle           Triple    `json:"angle"`

	Magnetic    Triple `json:"magnetic"`
	HasMagnetic bool   `json:"has_magnetic"`

	Temperature    float64 `json:"temperature,omitempty"` // °C
	HasTemperature bool    `json:"has_temperature"`

	Quaternion *quaternion.Quaternion `json:"quaternion,omitempty"`
}

// EulerFromQuaternion returns the roll, pitch and yaw in degrees for the rotation q,
// using the aerospace Z-Y-X sequence. The zero quaternion maps to level.
func EulerFromQuaternion(q quaternion.Quaternion) Triple {
	if q.Norm() == 0 {
		return Triple{}
	}
	roll, pitch, yaw := q.Euler()
	// Rounding can push the asin argument just past ±1 at gimbal lock.
	if math.IsNaN(pitch) {
		u := q.Unit()
		pitch = math.Copysign(math.Pi/2, u.W*u.Y-u.Z*u.X)
	}
	return Triple{Degrees(roll), Degrees(pitch), Degrees(yaw)}
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
