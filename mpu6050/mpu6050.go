// Package mpu6050 drives an InvenSense MPU6050 6DoF accelerometer/gyro and fuses its
// output into an orientation on the host.
package mpu6050

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/stratux/imufusion/clock"
	"github.com/stratux/imufusion/decode"
	"github.com/stratux/imufusion/fusion"
	"github.com/stratux/imufusion/regio"
	"github.com/stratux/imufusion/sensors"
)

const (
	// Name identifies the MPU6050 in bundles and logs.
	Name = "MPU6050"

	tempSensitivity = 340.0 // LSB/°C
	tempOffset      = 36.53 // °C at raw 0
)

// Options configures NewMPU6050. The zero value is a chip at MPU_ADDRESS on its most
// sensitive ranges, timed by a fresh 32 bit microsecond clock.
type Options struct {
	Address    byte
	AccelRange uint8 // 0-3, see AccelTable
	GyroRange  uint8 // 0-3, see GyroTable

	Clock       clock.Clock
	Mounting    *sensors.Mounting
	Calibration *fusion.Calibration
	Weight      float64 // Complementary filter weight; 0 keeps fusion.DefaultWeight

	CheckWhoAmI bool          // Fail if WHO_AM_I does not read back 0x68
	Settle      time.Duration // Wait after configuration before the first sample
}

/*
MPU6050 represents an InvenSense MPU6050 on a register transport.
It owns its filter state; GetData is the only thing that advances it.
*/
type MPU6050 struct {
	bus  regio.Transport
	addr byte

	mu                    sync.Mutex
	accelRange, gyroRange uint8
	scaleAccel, scaleGyro decode.Scale
	filter                *fusion.Filter
	mount                 *sensors.Mounting
}

/*
NewMPU6050 wakes the chip, reads back the ranges it powered up with, then applies
the requested ranges and starts the filter clock. If there is no MPU6050 answering
or any step fails, an error is returned.
*/
func NewMPU6050(bus regio.Transport, opts Options) (*MPU6050, error) {
	if opts.Weight < 0 || opts.Weight > 1 {
		return nil, fmt.Errorf("MPU6050 Error: filter weight %v outside 0-1", opts.Weight)
	}

	mpu := &MPU6050{
		bus:   bus,
		addr:  opts.Address,
		mount: opts.Mounting,
	}
	if mpu.addr == 0 {
		mpu.addr = MPU_ADDRESS
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.NewMicros(0)
	}
	mpu.filter = fusion.NewFilter(clk)
	if opts.Weight > 0 {
		mpu.filter.State.Weight = opts.Weight
	}
	if opts.Calibration != nil {
		opts.Calibration.Apply(&mpu.filter.State)
	}

	// Wake up chip.
	if err := mpu.i2cWrite(MPUREG_PWR_MGMT_1, 0x00); err != nil {
		return nil, fmt.Errorf("MPU6050 Error: couldn't wake chip: %w", err)
	}

	if opts.CheckWhoAmI {
		who, err := mpu.WhoAmI()
		if err != nil {
			return nil, err
		}
		if who != WHO_AM_I_VAL {
			return nil, fmt.Errorf("MPU6050 Error: WHO_AM_I read 0x%02X, expected 0x%02X", who, WHO_AM_I_VAL)
		}
	}

	// Pick up whatever ranges the chip is currently running so the cached scales
	// are right even if the writes below fail.
	if err := mpu.readRanges(); err != nil {
		return nil, err
	}

	if err := mpu.SetGyroRange(opts.GyroRange); err != nil {
		return nil, err
	}
	if err := mpu.SetAccelRange(opts.AccelRange); err != nil {
		return nil, err
	}

	time.Sleep(opts.Settle)
	mpu.filter.Reset()

	glog.Infof("MPU6050: initialized at 0x%02X, accel range %d, gyro range %d", mpu.addr, mpu.accelRange, mpu.gyroRange)
	return mpu, nil
}

func (mpu *MPU6050) readRanges() error {
	gcfg, err := mpu.i2cRead(MPUREG_GYRO_CONFIG)
	if err != nil {
		return fmt.Errorf("MPU6050 Error: reading GYRO_CONFIG: %w", err)
	}
	acfg, err := mpu.i2cRead(MPUREG_ACCEL_CONFIG)
	if err != nil {
		return fmt.Errorf("MPU6050 Error: reading ACCEL_CONFIG: %w", err)
	}

	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	mpu.gyroRange = gcfg >> FS_SEL_SHIFT & FS_SEL_MASK
	mpu.accelRange = acfg >> FS_SEL_SHIFT & FS_SEL_MASK
	mpu.scaleGyro, _ = ScaleFor(mpu.gyroRange, GyroTable)
	mpu.scaleAccel, _ = ScaleFor(mpu.accelRange, AccelTable)
	glog.V(1).Infof("MPU6050: power-up ranges accel %d, gyro %d", mpu.accelRange, mpu.gyroRange)
	return nil
}

// SetAccelRange selects the accelerometer full scale range: 0-3 for ±2, ±4, ±8, ±16 G.
// The new scale is used from the next GetData on; if the write fails the old range stays.
func (mpu *MPU6050) SetAccelRange(code uint8) error {
	scale, err := ScaleFor(code, AccelTable)
	if err != nil {
		return err
	}

	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	if err := mpu.i2cWrite(MPUREG_ACCEL_CONFIG, code<<FS_SEL_SHIFT); err != nil {
		return err
	}
	mpu.accelRange, mpu.scaleAccel = code, scale
	return nil
}

// SetGyroRange selects the gyro full scale range: 0-3 for ±250, ±500, ±1000, ±2000 °/s.
// The new scale is used from the next GetData on; if the write fails the old range stays.
func (mpu *MPU6050) SetGyroRange(code uint8) error {
	scale, err := ScaleFor(code, GyroTable)
	if err != nil {
		return err
	}

	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	if err := mpu.i2cWrite(MPUREG_GYRO_CONFIG, code<<FS_SEL_SHIFT); err != nil {
		return err
	}
	mpu.gyroRange, mpu.scaleGyro = code, scale
	return nil
}

// AccelRange returns the current accelerometer range code.
func (mpu *MPU6050) AccelRange() uint8 {
	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	return mpu.accelRange
}

// GyroRange returns the current gyro range code.
func (mpu *MPU6050) GyroRange() uint8 {
	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	return mpu.gyroRange
}

// GetData reads accelerometer, temperature and gyro in one burst, advances the
// filter and returns the snapshot.
func (mpu *MPU6050) GetData() (*sensors.Bundle, error) {
	mpu.mu.Lock()
	defer mpu.mu.Unlock()

	blk, err := regio.ReadBlock(mpu.bus, mpu.addr, MPUREG_ACCEL_XOUT_H, burstLen)
	if err != nil {
		return nil, err
	}
	t := time.Now()

	acc, err := decode.Triple(blk.Slice(0, 6), decode.BigEndian, mpu.scaleAccel)
	if err != nil {
		return nil, err
	}
	tmp, err := decode.Fields(blk.Slice(6, 8), decode.BigEndian, 1)
	if err != nil {
		return nil, err
	}
	gyro, err := decode.Triple(blk.Slice(8, 14), decode.BigEndian, mpu.scaleGyro)
	if err != nil {
		return nil, err
	}

	acc = mpu.mount.Apply(acc)
	gyro = mpu.mount.Apply(gyro)
	angle := mpu.filter.Update(acc, gyro)

	d := &sensors.Bundle{
		Device:          Name,
		T:               t,
		Acceleration:    acc,
		AngularVelocity: gyro,
		Angle:           angle,
		Temperature:     float64(tmp[0])/tempSensitivity + tempOffset,
		HasTemperature:  true,
	}
	if glog.V(2) {
		glog.Infof("MPU6050: A=%+v G=%+v angle=%+v T=%.2f", d.Acceleration, d.AngularVelocity, d.Angle, d.Temperature)
	}
	return d, nil
}

// Angle returns the latest orientation estimate without touching the bus.
func (mpu *MPU6050) Angle() sensors.Triple {
	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	return mpu.filter.Angle()
}

// ResetOrientation zeroes the orientation estimate and restarts its clock.
func (mpu *MPU6050) ResetOrientation() {
	mpu.mu.Lock()
	defer mpu.mu.Unlock()
	mpu.filter.Reset()
}

// WhoAmI reads the identity register; a genuine MPU6050 answers 0x68.
func (mpu *MPU6050) WhoAmI() (byte, error) {
	v, err := mpu.i2cRead(MPUREG_WHO_AM_I)
	if err != nil {
		return 0, fmt.Errorf("MPU6050 Error: reading WHO_AM_I: %w", err)
	}
	return v, nil
}

// SetSampleRateDivider sets SMPLRT_DIV: sample rate = gyro output rate / (1 + div).
func (mpu *MPU6050) SetSampleRateDivider(div byte) error {
	if err := mpu.i2cWrite(MPUREG_SMPLRT_DIV, div); err != nil {
		return fmt.Errorf("MPU6050 Error: couldn't set sample rate: %w", err)
	}
	return nil
}

// SetDLPF sets the digital low pass filter configuration (DLPF_CFG, 0-6).
func (mpu *MPU6050) SetDLPF(cfg byte) error {
	if cfg > 6 {
		return fmt.Errorf("MPU6050 Error: %d is not a valid DLPF setting", cfg)
	}
	cur, err := mpu.i2cRead(MPUREG_CONFIG)
	if err != nil {
		return errors.New("MPU6050 Error: SetDLPF error reading chip")
	}
	if err := mpu.i2cWrite(MPUREG_CONFIG, cur&^0x07|cfg); err != nil {
		return fmt.Errorf("MPU6050 Error: couldn't set DLPF: %w", err)
	}
	return nil
}

// Sleep puts the chip into its low power sleep mode.
func (mpu *MPU6050) Sleep() error {
	v, err := mpu.i2cRead(MPUREG_PWR_MGMT_1)
	if err != nil {
		return err
	}
	return mpu.i2cWrite(MPUREG_PWR_MGMT_1, v|BIT_SLEEP)
}

// Wake clears the sleep bit.
func (mpu *MPU6050) Wake() error {
	v, err := mpu.i2cRead(MPUREG_PWR_MGMT_1)
	if err != nil {
		return err
	}
	return mpu.i2cWrite(MPUREG_PWR_MGMT_1, v&^BIT_SLEEP)
}

// DumpRegisters reads back the configuration registers, keyed by name.
func (mpu *MPU6050) DumpRegisters() (map[string]byte, error) {
	regs := []struct {
		name string
		reg  byte
	}{
		{"WHO_AM_I", MPUREG_WHO_AM_I},
		{"PWR_MGMT_1", MPUREG_PWR_MGMT_1},
		{"PWR_MGMT_2", MPUREG_PWR_MGMT_2},
		{"SMPLRT_DIV", MPUREG_SMPLRT_DIV},
		{"CONFIG", MPUREG_CONFIG},
		{"GYRO_CONFIG", MPUREG_GYRO_CONFIG},
		{"ACCEL_CONFIG", MPUREG_ACCEL_CONFIG},
		{"INT_ENABLE", MPUREG_INT_ENABLE},
		{"INT_STATUS", MPUREG_INT_STATUS},
	}
	out := make(map[string]byte, len(regs))
	for _, r := range regs {
		v, err := mpu.i2cRead(r.reg)
		if err != nil {
			return out, err
		}
		out[r.name] = v
	}
	return out, nil
}

func (mpu *MPU6050) i2cWrite(register, value byte) error {
	return regio.WriteByte(mpu.bus, mpu.addr, register, value)
}

func (mpu *MPU6050) i2cRead(register byte) (byte, error) {
	return regio.ReadByte(mpu.bus, mpu.addr, register)
}
