package regio

import (
	"github.com/golang/glog"
	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all" // Empty import needed to initialize embd library.
)

// EmbdBus adapts an embd I2C bus to Transport.
type EmbdBus struct {
	bus embd.I2CBus
	own bool
}

// NewEmbdBus wraps an already opened embd bus. Closing the returned EmbdBus leaves
// the embd I2C driver running.
func NewEmbdBus(bus embd.I2CBus) *EmbdBus {
	return &EmbdBus{bus: bus}
}

// OpenEmbdBus initializes the embd I2C driver and opens bus number n.
func OpenEmbdBus(n byte) (*EmbdBus, error) {
	if err := embd.InitI2C(); err != nil {
		return nil, err
	}
	glog.Infof("regio: opened embd I2C bus %d", n)
	return &EmbdBus{bus: embd.NewI2CBus(n), own: true}, nil
}

func (b *EmbdBus) Read(addr, reg byte, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := b.bus.ReadFromReg(addr, reg, buf); err != nil {
		return nil, &TransportError{Op: "read", Addr: addr, Reg: reg, Err: err}
	}
	return buf, nil
}

func (b *EmbdBus) Write(addr, reg byte, data []byte) error {
	var err error
	if len(data) == 1 {
		err = b.bus.WriteByteToReg(addr, reg, data[0])
	} else {
		err = b.bus.WriteToReg(addr, reg, data)
	}
	if err != nil {
		return &TransportError{Op: "write", Addr: addr, Reg: reg, Err: err}
	}
	return nil
}

// Close releases the bus, and the embd I2C driver if OpenEmbdBus started it.
func (b *EmbdBus) Close() error {
	if !b.own {
		return b.bus.Close()
	}
	return embd.CloseI2C()
}
