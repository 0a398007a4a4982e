package regio

import (
	"fmt"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// PeriphBus adapts a periph.io I2C bus to Transport.
type PeriphBus struct {
	bus    i2c.Bus
	closer i2c.BusCloser
}

// NewPeriphBus wraps an already opened periph bus.
func NewPeriphBus(bus i2c.Bus) *PeriphBus {
	return &PeriphBus{bus: bus}
}

// OpenPeriphBus initializes the periph host drivers and opens the named bus
// ("" selects the first one available).
func OpenPeriphBus(name string) (*PeriphBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bc, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("periph open i2c bus %q: %w", name, err)
	}
	glog.Infof("regio: opened periph I2C bus %s", bc)
	return &PeriphBus{bus: bc, closer: bc}, nil
}

func (b *PeriphBus) Read(addr, reg byte, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := b.bus.Tx(uint16(addr), []byte{reg}, r); err != nil {
		return nil, &TransportError{Op: "read", Addr: addr, Reg: reg, Err: err}
	}
	return r, nil
}

func (b *PeriphBus) Write(addr, reg byte, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	if err := b.bus.Tx(uint16(addr), w, nil); err != nil {
		return &TransportError{Op: "write", Addr: addr, Reg: reg, Err: err}
	}
	return nil
}

// Close closes the bus if OpenPeriphBus opened it.
func (b *PeriphBus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}
