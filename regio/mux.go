package regio

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// DefaultMuxAddr is the TCA9548A address with A0-A2 tied low.
const DefaultMuxAddr = 0x70

// Mux drives a TCA9548A 8 channel I2C multiplexer sitting on a Transport.
// The chip has no register file: the channel mask goes out as the register byte
// of an otherwise empty write.
type Mux struct {
	bus  Transport
	addr byte

	mu     sync.Mutex
	active byte
	known  bool
}

// NewMux returns a multiplexer at addr on bus.
func NewMux(bus Transport, addr byte) *Mux {
	return &Mux{bus: bus, addr: addr}
}

// Select enables the channels set in mask, one bit per channel.
func (m *Mux) Select(mask byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(mask)
}

func (m *Mux) selectLocked(mask byte) error {
	if m.known && m.active == mask {
		return nil
	}
	if err := m.bus.Write(m.addr, mask, nil); err != nil {
		m.known = false
		return err
	}
	glog.V(2).Infof("TCA9548A: channel mask 0x%02X", mask)
	m.active, m.known = mask, true
	return nil
}

// Active returns the last channel mask written, and whether one has been written at all.
func (m *Mux) Active() (byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.known
}

// Channel returns a Transport that routes every transaction through channel ch (0-7),
// selecting it first when another channel is active.
func (m *Mux) Channel(ch int) (Transport, error) {
	if ch < 0 || ch > 7 {
		return nil, fmt.Errorf("TCA9548A Error: %d is not a valid channel", ch)
	}
	return &muxChannel{mux: m, mask: 1 << uint(ch)}, nil
}

type muxChannel struct {
	mux  *Mux
	mask byte
}

func (c *muxChannel) Read(addr, reg byte, n int) ([]byte, error) {
	c.mux.mu.Lock()
	defer c.mux.mu.Unlock()
	if err := c.mux.selectLocked(c.mask); err != nil {
		return nil, err
	}
	return c.mux.bus.Read(addr, reg, n)
}

func (c *muxChannel) Write(addr, reg byte, data []byte) error {
	c.mux.mu.Lock()
	defer c.mux.mu.Unlock()
	if err := c.mux.selectLocked(c.mask); err != nil {
		return err
	}
	return c.mux.bus.Write(addr, reg, data)
}
