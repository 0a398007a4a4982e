package regio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kidoman/embd"
	"periph.io/x/conn/v3/i2c"
)

func TestReadBlock(t *testing.T) {
	m := NewMemory()
	m.Set(0x68, 0x3B, 1, 2, 3, 4)

	b, err := ReadBlock(m, 0x68, 0x3B, 4)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if b.Addr != 0x68 || b.Reg != 0x3B || b.Len() != 4 {
		t.Errorf("unexpected block header: %+v", b)
	}
	if !bytes.Equal(b.Bytes(), []byte{1, 2, 3, 4}) {
		t.Errorf("got % X", b.Bytes())
	}
	if !bytes.Equal(b.Slice(1, 3), []byte{2, 3}) {
		t.Errorf("slice got % X", b.Slice(1, 3))
	}
}

func TestReadBlockShort(t *testing.T) {
	m := NewMemory()
	m.Short = 4

	_, err := ReadBlock(m, 0x68, 0x3B, 14)
	var sre *ShortReadError
	if !errors.As(err, &sre) {
		t.Fatalf("expected ShortReadError, got %v", err)
	}
	if sre.Want != 14 || sre.Got != 10 {
		t.Errorf("got want=%d got=%d", sre.Want, sre.Got)
	}
}

func TestReadBlockTransportErrorUnchanged(t *testing.T) {
	m := NewMemory()
	busErr := errors.New("nack")
	m.ReadErr = busErr

	_, err := ReadBlock(m, 0x50, 0x34, 24)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !errors.Is(err, busErr) {
		t.Errorf("underlying bus error lost: %v", err)
	}
}

func TestMuxSelectsOnlyOnChange(t *testing.T) {
	m := NewMemory()
	mux := NewMux(m, DefaultMuxAddr)

	ch2, err := mux.Channel(2)
	if err != nil {
		t.Fatal(err)
	}
	ch5, err := mux.Channel(5)
	if err != nil {
		t.Fatal(err)
	}

	ch2.Read(0x68, 0x75, 1)
	ch2.Read(0x68, 0x75, 1)
	ch5.Write(0x50, 0x03, []byte{0x06})
	ch2.Read(0x68, 0x75, 1)

	var selects []byte
	for _, w := range m.Writes() {
		if w.Addr == DefaultMuxAddr {
			selects = append(selects, w.Reg)
		}
	}
	if !bytes.Equal(selects, []byte{0x04, 0x20, 0x04}) {
		t.Errorf("channel selections got % X", selects)
	}
	if active, ok := mux.Active(); !ok || active != 0x04 {
		t.Errorf("active got 0x%02X %v", active, ok)
	}
}

func TestMuxInvalidChannel(t *testing.T) {
	mux := NewMux(NewMemory(), DefaultMuxAddr)
	for _, ch := range []int{-1, 8} {
		if _, err := mux.Channel(ch); err == nil {
			t.Errorf("channel %d should fail", ch)
		}
	}
}

func TestMuxSelectFailureForcesReselect(t *testing.T) {
	m := NewMemory()
	mux := NewMux(m, DefaultMuxAddr)
	ch, _ := mux.Channel(1)

	m.WriteErr = errors.New("bus stuck")
	if _, err := ch.Read(0x68, 0x75, 1); err == nil {
		t.Fatal("expected select failure")
	}
	m.WriteErr = nil
	if _, err := ch.Read(0x68, 0x75, 1); err != nil {
		t.Fatal(err)
	}
	if len(m.Writes()) != 1 {
		t.Errorf("expected one successful select, got %d writes", len(m.Writes()))
	}
}

type fakeEmbdBus struct {
	embd.I2CBus
	mem *Memory
	err error
}

func (f *fakeEmbdBus) ReadFromReg(addr, reg byte, value []byte) error {
	if f.err != nil {
		return f.err
	}
	d, _ := f.mem.Read(addr, reg, len(value))
	copy(value, d)
	return nil
}

func (f *fakeEmbdBus) WriteToReg(addr, reg byte, value []byte) error {
	if f.err != nil {
		return f.err
	}
	return f.mem.Write(addr, reg, value)
}

func (f *fakeEmbdBus) WriteByteToReg(addr, reg, value byte) error {
	return f.WriteToReg(addr, reg, []byte{value})
}

func TestEmbdBus(t *testing.T) {
	mem := NewMemory()
	mem.Set(0x68, 0x75, 0x68)
	fb := &fakeEmbdBus{mem: mem}
	b := NewEmbdBus(fb)

	v, err := ReadByte(b, 0x68, 0x75)
	if err != nil || v != 0x68 {
		t.Fatalf("ReadByte got 0x%02X, %v", v, err)
	}
	if err := WriteByte(b, 0x68, 0x1C, 0x08); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(0x68, 0x19, []byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	if mem.Get(0x68, 0x1C) != 0x08 || mem.Get(0x68, 0x1A) != 2 {
		t.Error("writes did not reach the bus")
	}

	fb.err = errors.New("ioctl failed")
	if _, err := b.Read(0x68, 0x3B, 14); !errors.Is(err, fb.err) {
		t.Errorf("expected wrapped ioctl error, got %v", err)
	}
}

type fakePeriphBus struct {
	i2c.Bus
	lastAddr uint16
	lastW    []byte
	resp     []byte
}

func (f *fakePeriphBus) Tx(addr uint16, w, r []byte) error {
	f.lastAddr = addr
	f.lastW = append([]byte(nil), w...)
	copy(r, f.resp)
	return nil
}

func TestPeriphBus(t *testing.T) {
	fb := &fakePeriphBus{resp: []byte{0xAA, 0xBB}}
	b := NewPeriphBus(fb)

	got, err := b.Read(0x50, 0x34, 2)
	if err != nil {
		t.Fatal(err)
	}
	if fb.lastAddr != 0x50 || !bytes.Equal(fb.lastW, []byte{0x34}) || !bytes.Equal(got, []byte{0xAA, 0xBB}) {
		t.Errorf("read tx addr=0x%X w=% X r=% X", fb.lastAddr, fb.lastW, got)
	}

	if err := b.Write(0x50, 0x03, []byte{0x06, 0x00}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(fb.lastW, []byte{0x03, 0x06, 0x00}) {
		t.Errorf("write tx w=% X", fb.lastW)
	}
	if err := b.Close(); err != nil {
		t.Errorf("close of borrowed bus: %v", err)
	}
}
