package wt901

import (
	"errors"
	"math"
	"testing"

	"github.com/stratux/imufusion/decode"
	"github.com/stratux/imufusion/regio"
	"github.com/stratux/imufusion/sensors"
)

const tolerance = 1e-9

func words(vals ...int) []byte {
	var b []byte
	for _, v := range vals {
		e := decode.Encode(v, decode.LittleEndian)
		b = append(b, e[0], e[1])
	}
	return b
}

func checkTriple(t *testing.T, what string, got, want sensors.Triple, tol float64) {
	t.Helper()
	if math.Abs(got.X-want.X) > tol || math.Abs(got.Y-want.Y) > tol || math.Abs(got.Z-want.Z) > tol {
		t.Errorf("%s: got %+v, want %+v", what, got, want)
	}
}

func TestGetDataDecodes(t *testing.T) {
	m := regio.NewMemory()
	m.Set(WT_ADDRESS, WTREG_AX, words(
		2048, 0, -2048, // accel: 16/32768 G per count
		16384, 0, -1, // gyro: 2000/32768 °/s per count
		100, -200, 300, // mag: raw
		16384, -8192, 0, // angle: 180/32768 ° per count
	)...)
	wt := NewWT901(m, 0, nil)

	d, err := wt.GetData()
	if err != nil {
		t.Fatal(err)
	}
	if d.Device != Name || !d.HasMagnetic || d.HasTemperature || d.Quaternion != nil {
		t.Errorf("unexpected bundle flags: %+v", d)
	}
	checkTriple(t, "acceleration", d.Acceleration, sensors.Triple{X: 1, Y: 0, Z: -1}, tolerance)
	checkTriple(t, "angular velocity", d.AngularVelocity, sensors.Triple{X: 1000, Y: 0, Z: -2000.0 / 32768}, tolerance)
	checkTriple(t, "magnetic", d.Magnetic, sensors.Triple{X: 100, Y: -200, Z: 300}, tolerance)
	checkTriple(t, "angle", d.Angle, sensors.Triple{X: 90, Y: -45, Z: 0}, tolerance)
}

func TestGetDataShortRead(t *testing.T) {
	m := regio.NewMemory()
	m.Short = 2
	wt := NewWT901(m, 0, nil)

	_, err := wt.GetData()
	var se *regio.ShortReadError
	if !errors.As(err, &se) {
		t.Fatalf("expected ShortReadError, got %v", err)
	}
	if se.Want != burstLen || se.Got != burstLen-2 || se.Reg != WTREG_AX {
		t.Errorf("got %+v", se)
	}
}

func TestGetDataTransportError(t *testing.T) {
	m := regio.NewMemory()
	m.ReadErr = errors.New("nack")
	wt := NewWT901(m, 0x51, nil)

	_, err := wt.GetData()
	var te *regio.TransportError
	if !errors.As(err, &te) || te.Addr != 0x51 {
		t.Fatalf("expected TransportError from 0x51, got %v", err)
	}
}

func TestGetDataAppliesMounting(t *testing.T) {
	m := regio.NewMemory()
	m.Set(WT_ADDRESS, WTREG_AX, words(2048, 0, 0, 0, 0, 0, 10, 0, 0, 16384, 0, 0)...)
	mount, err := sensors.NewMounting([]float64{0, -1, 0, 1, 0, 0, 0, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewWT901(m, 0, mount).GetData()
	if err != nil {
		t.Fatal(err)
	}
	checkTriple(t, "acceleration", d.Acceleration, sensors.Triple{X: 0, Y: 1, Z: 0}, tolerance)
	checkTriple(t, "magnetic", d.Magnetic, sensors.Triple{X: 0, Y: 10, Z: 0}, tolerance)
	// The onboard angle is already in the sensor's own frame and is reported as is.
	checkTriple(t, "angle", d.Angle, sensors.Triple{X: 90}, tolerance)
}

func TestAngles(t *testing.T) {
	m := regio.NewMemory()
	m.Set(WT_ADDRESS, WTREG_ROLL, words(16384, 8192, -16384)...)
	wt := NewWT901(m, 0, nil)

	deg, err := wt.Angles(Degrees)
	if err != nil {
		t.Fatal(err)
	}
	checkTriple(t, "degrees", deg, sensors.Triple{X: 90, Y: 45, Z: -90}, tolerance)

	rad, err := wt.Angles(Radians)
	if err != nil {
		t.Fatal(err)
	}
	checkTriple(t, "radians", rad, sensors.Triple{X: math.Pi / 2, Y: math.Pi / 4, Z: -math.Pi / 2}, tolerance)

	_, err = wt.Angles(Unit(7))
	var ue *UnitError
	if !errors.As(err, &ue) || ue.Unit != 7 {
		t.Errorf("expected UnitError, got %v", err)
	}
}

func TestSingleVectorReads(t *testing.T) {
	m := regio.NewMemory()
	wt := NewWT901(m, 0, nil)

	m.Set(WT_ADDRESS, WTREG_AX, words(-2048, 4096, 0)...)
	a, err := wt.Acceleration()
	if err != nil {
		t.Fatal(err)
	}
	checkTriple(t, "acceleration", a, sensors.Triple{X: -1, Y: 2}, tolerance)

	m.Set(WT_ADDRESS, WTREG_GX, words(0, 0, 32767)...)
	g, err := wt.AngularVelocity()
	if err != nil {
		t.Fatal(err)
	}
	checkTriple(t, "angular velocity", g, sensors.Triple{Z: 32767 * 2000.0 / 32768}, tolerance)

	m.Set(WT_ADDRESS, WTREG_HX, words(1, 2, 3)...)
	h, err := wt.Magnetic()
	if err != nil {
		t.Fatal(err)
	}
	checkTriple(t, "magnetic", h, sensors.Triple{X: 1, Y: 2, Z: 3}, tolerance)
}

func TestQuaternion(t *testing.T) {
	m := regio.NewMemory()
	// 90° about X: W = X = cos 45°.
	c := int(math.Round(math.Cos(math.Pi/4) * 32768))
	m.Set(WT_ADDRESS, WTREG_Q0, words(c, c, 0, 0)...)
	wt := NewWT901(m, 0, nil)

	q, err := wt.Quaternion()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(q.W-float64(c)/32768) > tolerance || q.Y != 0 || q.Z != 0 {
		t.Errorf("got %+v", q)
	}
	checkTriple(t, "euler", sensors.EulerFromQuaternion(q), sensors.Triple{X: 90}, 1e-3)
}

func TestTemperature(t *testing.T) {
	m := regio.NewMemory()
	m.Set(WT_ADDRESS, WTREG_TEMP, words(2534)...)
	temp, err := NewWT901(m, 0, nil).Temperature()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(temp-25.34) > tolerance {
		t.Errorf("got %v", temp)
	}
}

func TestGetDataWithQuaternion(t *testing.T) {
	m := regio.NewMemory()
	m.Set(WT_ADDRESS, WTREG_Q0, words(32767, 0, 0, 0)...)
	d, err := NewWT901(m, 0, nil).GetDataWithQuaternion()
	if err != nil {
		t.Fatal(err)
	}
	if d.Quaternion == nil || math.Abs(d.Quaternion.W-32767.0/32768) > tolerance {
		t.Errorf("got %+v", d.Quaternion)
	}
}

func TestSetOutputRate(t *testing.T) {
	m := regio.NewMemory()
	wt := NewWT901(m, 0, nil)

	if err := wt.SetOutputRate(RATE_50HZ); err != nil {
		t.Fatal(err)
	}
	w := m.Writes()
	if len(w) != 2 {
		t.Fatalf("expected 2 writes, got %+v", w)
	}
	if w[0].Reg != WTREG_RRATE || w[0].Data[0] != RATE_50HZ || w[1].Reg != WTREG_SAVE {
		t.Errorf("got %+v", w)
	}

	for _, r := range []byte{0x00, 0x0A, 0x0C} {
		if err := wt.SetOutputRate(r); err == nil {
			t.Errorf("rate 0x%02X accepted", r)
		}
	}
}
