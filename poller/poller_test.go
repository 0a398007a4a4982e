package poller

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stratux/imufusion/config"
	"github.com/stratux/imufusion/mpu6050"
	"github.com/stratux/imufusion/regio"
	"github.com/stratux/imufusion/sensors"
	"github.com/stratux/imufusion/wt901"
)

type collector struct {
	got []*sensors.Bundle
}

func (c *collector) Publish(b *sensors.Bundle) error {
	c.got = append(c.got, b)
	return nil
}

func simOpt() config.ImuFusionOpt {
	opt := config.NewImuFusionOpt()
	opt.Bus.Backend = config.BackendSim
	opt.Bus.MuxAddress = regio.DefaultMuxAddr
	ch := 3
	opt.Devices = []config.DeviceOpt{
		{Model: config.ModelMPU6050, AccelRange: 2, GyroRange: 1},
		{Model: config.ModelWT901, MuxChannel: &ch},
	}
	return opt
}

func TestOpenAndPollSim(t *testing.T) {
	opt := simOpt()
	m := regio.NewMemory()
	SeedSim(m, opt)

	devs, err := Open(opt, m)
	if err != nil {
		t.Fatal(err)
	}
	if len(devs) != 2 {
		t.Fatalf("got %d devices", len(devs))
	}

	c := &collector{}
	if err := Poll(context.Background(), devs, time.Millisecond, 3, c); err != nil {
		t.Fatal(err)
	}
	if len(c.got) != 6 {
		t.Fatalf("got %d bundles", len(c.got))
	}

	for _, b := range c.got {
		switch b.Device {
		case mpu6050.Name:
			if math.Abs(b.Acceleration.Z-1) > 1e-9 || math.Abs(b.Angle.X) > 1e-9 || math.Abs(b.Angle.Y) > 1e-9 {
				t.Errorf("MPU6050 bundle: %+v", b)
			}
		case wt901.Name:
			if math.Abs(b.Acceleration.Z-1) > 1e-9 || !b.HasMagnetic {
				t.Errorf("WT901 bundle: %+v", b)
			}
		default:
			t.Errorf("unexpected device %q", b.Device)
		}
	}

	// Only the WT901 sits behind the mux, so channel 3 is selected exactly once.
	var selects int
	for _, w := range m.Writes() {
		if w.Addr == regio.DefaultMuxAddr {
			selects++
			if w.Reg != 1<<3 {
				t.Errorf("mux select 0x%02X", w.Reg)
			}
		}
	}
	if selects != 1 {
		t.Errorf("mux selected %d times", selects)
	}
}

func TestOpenAppliesDeviceTuning(t *testing.T) {
	opt := simOpt()
	dlpf, div := 3, 9
	opt.Devices[0].DLPF = &dlpf
	opt.Devices[0].SampleRateDiv = &div
	opt.Devices[1].Quaternion = true
	opt.Devices[1].OutputRate = wt901.RATE_50HZ
	m := regio.NewMemory()
	SeedSim(m, opt)

	devs, err := Open(opt, m)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Get(mpu6050.MPU_ADDRESS, mpu6050.MPUREG_CONFIG) & 0x07; got != 3 {
		t.Errorf("DLPF_CFG got %d", got)
	}
	if got := m.Get(mpu6050.MPU_ADDRESS, mpu6050.MPUREG_SMPLRT_DIV); got != 9 {
		t.Errorf("SMPLRT_DIV got %d", got)
	}
	if got := m.Get(wt901.WT_ADDRESS, wt901.WTREG_RRATE); got != wt901.RATE_50HZ {
		t.Errorf("RRATE got 0x%02X", got)
	}
	if _, ok := Driver(devs[1]).(*wt901.WT901); !ok {
		t.Errorf("driver behind quaternion mode: %T", Driver(devs[1]))
	}
	if Driver(devs[0]) != devs[0] {
		t.Error("MPU6050 driver changed")
	}

	c := &collector{}
	if err := Poll(context.Background(), devs, time.Millisecond, 1, c); err != nil {
		t.Fatal(err)
	}
	if len(c.got) != 2 {
		t.Fatalf("got %d bundles", len(c.got))
	}
	if c.got[0].Quaternion != nil {
		t.Error("MPU6050 bundle carries a quaternion")
	}
	q := c.got[1].Quaternion
	if c.got[1].Device != wt901.Name || q == nil {
		t.Fatalf("WT901 bundle: %+v", c.got[1])
	}
	e := sensors.EulerFromQuaternion(*q)
	if math.Abs(e.X) > 1e-6 || math.Abs(e.Y) > 1e-6 || math.Abs(e.Z) > 1e-6 {
		t.Errorf("level sensor euler %+v", e)
	}
	if err := LogBundle(c.got[1]); err != nil {
		t.Error(err)
	}
}

func TestOpenWithoutQuaternionOption(t *testing.T) {
	opt := simOpt()
	m := regio.NewMemory()
	SeedSim(m, opt)
	devs, err := Open(opt, m)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := devs[1].(*wt901.WT901); !ok {
		t.Errorf("WT901 wrapped without the quaternion option: %T", devs[1])
	}
	for _, w := range m.Writes() {
		if w.Addr == wt901.WT_ADDRESS {
			t.Errorf("WT901 written without output_rate: %+v", w)
		}
	}
}

func TestOpenFailsWithoutDevice(t *testing.T) {
	opt := simOpt()
	// Nothing seeded: WHO_AM_I reads 0.
	if _, err := Open(opt, regio.NewMemory()); err == nil {
		t.Error("opened an MPU6050 that isn't there")
	}
}

type failing struct{ n int }

func (f *failing) GetData() (*sensors.Bundle, error) {
	f.n++
	return nil, errors.New("nack")
}

func TestPollSkipsFailingDevice(t *testing.T) {
	opt := simOpt()
	opt.Devices = opt.Devices[1:]
	m := regio.NewMemory()
	SeedSim(m, opt)
	devs, err := Open(opt, m)
	if err != nil {
		t.Fatal(err)
	}
	f := &failing{}
	devs = append([]Device{f}, devs...)

	c := &collector{}
	if err := Poll(context.Background(), devs, time.Millisecond, 2, c); err != nil {
		t.Fatal(err)
	}
	if f.n != 2 || len(c.got) != 2 {
		t.Errorf("failing polled %d times, %d bundles published", f.n, len(c.got))
	}
}

func TestPollStopsOnPublishError(t *testing.T) {
	opt := simOpt()
	m := regio.NewMemory()
	SeedSim(m, opt)
	devs, err := Open(opt, m)
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	err = Poll(context.Background(), devs, time.Millisecond, 0, PublisherFunc(func(*sensors.Bundle) error { return boom }))
	if err != boom {
		t.Errorf("got %v", err)
	}
}

func TestPollStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Poll(ctx, []Device{&failing{}}, time.Hour, 0, nil); err != nil {
		t.Error(err)
	}
}

type constant struct{ b sensors.Bundle }

func (c constant) GetData() (*sensors.Bundle, error) {
	b := c.b
	return &b, nil
}

func TestEstimateDrift(t *testing.T) {
	d := constant{sensors.Bundle{AngularVelocity: sensors.Triple{X: 0.5, Y: -1, Z: 2}}}
	cal, err := EstimateDrift(context.Background(), d, 4, 10*time.Millisecond, 0.18)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(cal.D1-0.005) > 1e-12 || math.Abs(cal.D2+0.01) > 1e-12 || math.Abs(cal.D3-0.02) > 1e-12 || cal.YawOffset != 0.18 {
		t.Errorf("got %+v", cal)
	}

	if _, err := EstimateDrift(context.Background(), &failing{}, 2, time.Millisecond, 0); err == nil {
		t.Error("estimated drift without samples")
	}
	if _, err := EstimateDrift(context.Background(), d, 0, time.Millisecond, 0); err == nil {
		t.Error("accepted zero samples")
	}
}
