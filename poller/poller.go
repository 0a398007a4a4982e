/*
Package poller builds the configured IMUs on a bus and polls them on a ticker,
handing every bundle to a publisher.
*/
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/stratux/imufusion/config"
	"github.com/stratux/imufusion/decode"
	"github.com/stratux/imufusion/mpu6050"
	"github.com/stratux/imufusion/regio"
	"github.com/stratux/imufusion/sensors"
	"github.com/stratux/imufusion/wt901"
)

// Device is anything that produces a bundle per poll.
type Device interface {
	GetData() (*sensors.Bundle, error)
}

// Publisher receives every successfully read bundle.
type Publisher interface {
	Publish(*sensors.Bundle) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(*sensors.Bundle) error

func (f PublisherFunc) Publish(b *sensors.Bundle) error {
	return f(b)
}

// Open creates every device in opt on bus, behind the mux when one is configured.
func Open(opt config.ImuFusionOpt, bus regio.Transport) ([]Device, error) {
	var mux *regio.Mux
	if opt.Bus.MuxAddress != 0 {
		mux = regio.NewMux(bus, byte(opt.Bus.MuxAddress))
	}

	cal, err := opt.Fusion.LoadCalibration()
	if err != nil {
		glog.Warningf("poller: %v, using defaults", err)
	}

	devs := make([]Device, 0, len(opt.Devices))
	for i, d := range opt.Devices {
		t := bus
		if d.MuxChannel != nil {
			if mux == nil {
				return nil, fmt.Errorf("poller: device %d is on a mux channel but no mux is configured", i)
			}
			if t, err = mux.Channel(*d.MuxChannel); err != nil {
				return nil, err
			}
		}
		mount, err := d.Mount()
		if err != nil {
			return nil, fmt.Errorf("poller: device %d: %w", i, err)
		}

		switch d.Model {
		case config.ModelMPU6050:
			c := cal
			mpu, err := mpu6050.NewMPU6050(t, mpu6050.Options{
				Address:     byte(d.Address),
				AccelRange:  uint8(d.AccelRange),
				GyroRange:   uint8(d.GyroRange),
				Mounting:    mount,
				Calibration: &c,
				Weight:      opt.Fusion.Weight,
				CheckWhoAmI: true,
				Settle:      50 * time.Millisecond,
			})
			if err != nil {
				return nil, fmt.Errorf("poller: device %d: %w", i, err)
			}
			if d.DLPF != nil {
				if err := mpu.SetDLPF(byte(*d.DLPF)); err != nil {
					return nil, fmt.Errorf("poller: device %d: %w", i, err)
				}
			}
			if d.SampleRateDiv != nil {
				if err := mpu.SetSampleRateDivider(byte(*d.SampleRateDiv)); err != nil {
					return nil, fmt.Errorf("poller: device %d: %w", i, err)
				}
			}
			devs = append(devs, mpu)
		case config.ModelWT901:
			wt := wt901.NewWT901(t, byte(d.Address), mount)
			if d.OutputRate != 0 {
				if err := wt.SetOutputRate(byte(d.OutputRate)); err != nil {
					return nil, fmt.Errorf("poller: device %d: %w", i, err)
				}
			}
			if d.Quaternion {
				devs = append(devs, quaternionWT901{wt})
			} else {
				devs = append(devs, wt)
			}
		default:
			return nil, fmt.Errorf("poller: device %d: unknown model %q", i, d.Model)
		}
	}
	return devs, nil
}

// quaternionWT901 polls a WT901 together with its onboard quaternion.
type quaternionWT901 struct {
	*wt901.WT901
}

func (q quaternionWT901) GetData() (*sensors.Bundle, error) {
	return q.GetDataWithQuaternion()
}

// Driver returns the device driver behind d, looking through the WT901 quaternion mode.
func Driver(d Device) Device {
	if q, ok := d.(quaternionWT901); ok {
		return q.WT901
	}
	return d
}

// SeedSim fills a simulated bus with a level, motionless sensor for every configured device.
func SeedSim(m *regio.Memory, opt config.ImuFusionOpt) {
	for _, d := range opt.Devices {
		addr := byte(d.Address)
		switch d.Model {
		case config.ModelMPU6050:
			if addr == 0 {
				addr = mpu6050.MPU_ADDRESS
			}
			m.Set(addr, mpu6050.MPUREG_WHO_AM_I, mpu6050.WHO_AM_I_VAL)
			code := d.AccelRange & 3
			m.Set(addr, mpu6050.MPUREG_ACCEL_CONFIG, byte(code<<mpu6050.FS_SEL_SHIFT))
			oneG := decode.Encode(int(mpu6050.AccelTable[code]), decode.BigEndian)
			m.Set(addr, mpu6050.MPUREG_ACCEL_XOUT_H+4, oneG[0], oneG[1])
		case config.ModelWT901:
			if addr == 0 {
				addr = wt901.WT_ADDRESS
			}
			oneG := decode.Encode(2048, decode.LittleEndian)
			m.Set(addr, wt901.WTREG_AX+4, oneG[0], oneG[1])
			one := decode.Encode(32767, decode.LittleEndian)
			m.Set(addr, wt901.WTREG_Q0, one[0], one[1])
		}
	}
}

/*
Poll reads every device once per interval until ctx is done or, when count is
positive, count rounds have been taken. A device that fails is logged and skipped
for that round; publish errors end the loop.
*/
func Poll(ctx context.Context, devs []Device, interval time.Duration, count int, pub Publisher) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for round := 1; count <= 0 || round <= count; round++ {
		for i, d := range devs {
			b, err := d.GetData()
			if err != nil {
				glog.Warningf("poller: [%04d] device %d: %v", round, i, err)
				continue
			}
			if pub == nil {
				continue
			}
			if err := pub.Publish(b); err != nil {
				return err
			}
		}
		if count > 0 && round == count {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// LogBundle is a Publisher that writes each bundle to the info log.
var LogBundle = PublisherFunc(func(b *sensors.Bundle) error {
	glog.Infof("%s: A=(%.3f, %.3f, %.3f) G=(%.2f, %.2f, %.2f) angle=(%.2f, %.2f, %.2f)",
		b.Device,
		b.Acceleration.X, b.Acceleration.Y, b.Acceleration.Z,
		b.AngularVelocity.X, b.AngularVelocity.Y, b.AngularVelocity.Z,
		b.Angle.X, b.Angle.Y, b.Angle.Z)
	if b.Quaternion != nil {
		e := sensors.EulerFromQuaternion(*b.Quaternion)
		glog.Infof("%s: quaternion=(%.4f, %.4f, %.4f, %.4f) euler=(%.2f, %.2f, %.2f)",
			b.Device, b.Quaternion.W, b.Quaternion.X, b.Quaternion.Y, b.Quaternion.Z, e.X, e.Y, e.Z)
	}
	return nil
})
