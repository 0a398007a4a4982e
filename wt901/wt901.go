/*
Package wt901 drives a WitMotion WT901 9 axis IMU over I2C.

The WT901 runs its own fusion and reports roll, pitch and yaw alongside the raw
vectors, so no host-side filter is involved. All fields are little-endian.
*/
package wt901

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/westphae/quaternion"

	"github.com/stratux/imufusion/decode"
	"github.com/stratux/imufusion/regio"
	"github.com/stratux/imufusion/sensors"
)

// Name identifies the WT901 in bundles and logs.
const Name = "WT901"

// Fixed output scales. The WT901 ranges are baked into its protocol.
var (
	ScaleAccel      = decode.FullScale(16)   // G
	ScaleGyro       = decode.FullScale(2000) // °/s
	ScaleAngle      = decode.FullScale(180)  // degrees
	ScaleMag        = decode.Unity           // raw counts
	ScaleQuaternion = decode.FullScale(1)
	ScaleTemp       = 0.01 // °C per count
)

// Unit selects degrees or radians for Angles.
type Unit int

const (
	Degrees Unit = iota
	Radians
)

// UnitError is returned for an angle unit other than Degrees or Radians.
type UnitError struct {
	Unit Unit
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("WT901 Error: unknown angle unit %d", e.Unit)
}

// WT901 represents a WitMotion WT901 on a register transport.
type WT901 struct {
	bus  regio.Transport
	addr byte

	mu    sync.Mutex
	mount *sensors.Mounting
}

// NewWT901 returns a device at addr (0 selects WT_ADDRESS). The WT901 needs no
// setup before it starts reporting.
func NewWT901(bus regio.Transport, addr byte, mount *sensors.Mounting) *WT901 {
	if addr == 0 {
		addr = WT_ADDRESS
	}
	glog.Infof("WT901: using device at 0x%02X", addr)
	return &WT901{bus: bus, addr: addr, mount: mount}
}

// GetData reads acceleration, angular velocity, magnetic field and the onboard
// angle in one burst.
func (wt *WT901) GetData() (*sensors.Bundle, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	blk, err := regio.ReadBlock(wt.bus, wt.addr, WTREG_AX, burstLen)
	if err != nil {
		return nil, err
	}
	t := time.Now()

	acc, err := decode.Triple(blk.Slice(0, 6), decode.LittleEndian, ScaleAccel)
	if err != nil {
		return nil, err
	}
	gyro, err := decode.Triple(blk.Slice(6, 12), decode.LittleEndian, ScaleGyro)
	if err != nil {
		return nil, err
	}
	mag, err := decode.Triple(blk.Slice(12, 18), decode.LittleEndian, ScaleMag)
	if err != nil {
		return nil, err
	}
	angle, err := decode.Triple(blk.Slice(18, 24), decode.LittleEndian, ScaleAngle)
	if err != nil {
		return nil, err
	}

	d := &sensors.Bundle{
		Device:          Name,
		T:               t,
		Acceleration:    wt.mount.Apply(acc),
		AngularVelocity: wt.mount.Apply(gyro),
		Magnetic:        wt.mount.Apply(mag),
		HasMagnetic:     true,
		Angle:           angle,
	}
	if glog.V(2) {
		glog.Infof("WT901: A=%+v G=%+v M=%+v angle=%+v", d.Acceleration, d.AngularVelocity, d.Magnetic, d.Angle)
	}
	return d, nil
}

func (wt *WT901) readTriple(reg byte, scale decode.Scale) (sensors.Triple, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()
	blk, err := regio.ReadBlock(wt.bus, wt.addr, reg, 6)
	if err != nil {
		return sensors.Triple{}, err
	}
	return decode.Triple(blk.Bytes(), decode.LittleEndian, scale)
}

// Angles returns the onboard roll, pitch and yaw.
func (wt *WT901) Angles(unit Unit) (sensors.Triple, error) {
	if unit != Degrees && unit != Radians {
		return sensors.Triple{}, &UnitError{Unit: unit}
	}
	a, err := wt.readTriple(WTREG_ROLL, ScaleAngle)
	if err != nil {
		return a, err
	}
	if unit == Radians {
		a = sensors.Triple{X: sensors.Radians(a.X), Y: sensors.Radians(a.Y), Z: sensors.Radians(a.Z)}
	}
	return a, nil
}

// Acceleration returns the acceleration in G.
func (wt *WT901) Acceleration() (sensors.Triple, error) {
	a, err := wt.readTriple(WTREG_AX, ScaleAccel)
	return wt.mount.Apply(a), err
}

// AngularVelocity returns the angular velocity in °/s.
func (wt *WT901) AngularVelocity() (sensors.Triple, error) {
	g, err := wt.readTriple(WTREG_GX, ScaleGyro)
	return wt.mount.Apply(g), err
}

// Magnetic returns the raw magnetometer counts.
func (wt *WT901) Magnetic() (sensors.Triple, error) {
	m, err := wt.readTriple(WTREG_HX, ScaleMag)
	return wt.mount.Apply(m), err
}

// Quaternion returns the onboard attitude quaternion.
func (wt *WT901) Quaternion() (quaternion.Quaternion, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()
	blk, err := regio.ReadBlock(wt.bus, wt.addr, WTREG_Q0, 8)
	if err != nil {
		return quaternion.Quaternion{}, err
	}
	f, err := decode.Fields(blk.Bytes(), decode.LittleEndian, 4)
	if err != nil {
		return quaternion.Quaternion{}, err
	}
	k := float64(ScaleQuaternion)
	return quaternion.Quaternion{
		W: float64(f[0]) * k,
		X: float64(f[1]) * k,
		Y: float64(f[2]) * k,
		Z: float64(f[3]) * k,
	}, nil
}

// Temperature returns the die temperature in °C.
func (wt *WT901) Temperature() (float64, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()
	blk, err := regio.ReadBlock(wt.bus, wt.addr, WTREG_TEMP, 2)
	if err != nil {
		return 0, err
	}
	f, err := decode.Fields(blk.Bytes(), decode.LittleEndian, 1)
	if err != nil {
		return 0, err
	}
	return float64(f[0]) * ScaleTemp, nil
}

// GetDataWithQuaternion is GetData plus the onboard quaternion.
func (wt *WT901) GetDataWithQuaternion() (*sensors.Bundle, error) {
	d, err := wt.GetData()
	if err != nil {
		return nil, err
	}
	q, err := wt.Quaternion()
	if err != nil {
		return nil, err
	}
	d.Quaternion = &q
	return d, nil
}

// SetOutputRate sets the onboard output rate (one of the RATE_ constants) and
// saves the configuration.
func (wt *WT901) SetOutputRate(rate byte) error {
	if rate < RATE_0_1HZ || rate > RATE_200HZ || rate == 0x0A {
		return fmt.Errorf("WT901 Error: 0x%02X is not a valid output rate", rate)
	}
	wt.mu.Lock()
	defer wt.mu.Unlock()
	if err := wt.bus.Write(wt.addr, WTREG_RRATE, []byte{rate, 0x00}); err != nil {
		return fmt.Errorf("WT901 Error: couldn't set output rate: %w", err)
	}
	if err := wt.bus.Write(wt.addr, WTREG_SAVE, []byte{0x00, 0x00}); err != nil {
		return fmt.Errorf("WT901 Error: couldn't save configuration: %w", err)
	}
	return nil
}
