package regio

import (
	"errors"
	"sync"
)

// Memory is an in-memory register file standing in for a bus full of devices.
// It backs the simulated bus and the device tests.
type Memory struct {
	mu     sync.Mutex
	regs   map[byte]*[256]byte
	writes []Write

	// ReadErr and WriteErr, when set, fail every read or write with that error.
	ReadErr, WriteErr error
	// Short, when positive, drops that many bytes from the end of every read.
	Short int
}

// Write records one write transaction seen by a Memory.
type Write struct {
	Addr, Reg byte
	Data      []byte
}

// NewMemory returns an empty register file.
func NewMemory() *Memory {
	return &Memory{regs: make(map[byte]*[256]byte)}
}

func (m *Memory) device(addr byte) *[256]byte {
	d, ok := m.regs[addr]
	if !ok {
		d = new([256]byte)
		m.regs[addr] = d
	}
	return d
}

// Set stores data starting at register reg of device addr without recording a write.
func (m *Memory) Set(addr, reg byte, data ...byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.device(addr)
	for i, v := range data {
		d[(int(reg)+i)&0xFF] = v
	}
}

// Get returns the content of one register.
func (m *Memory) Get(addr, reg byte) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device(addr)[reg]
}

// Writes returns the writes recorded so far, oldest first.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *Memory) Read(addr, reg byte, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, &TransportError{Op: "read", Addr: addr, Reg: reg, Err: m.ReadErr}
	}
	if n < 0 {
		return nil, &TransportError{Op: "read", Addr: addr, Reg: reg, Err: errors.New("negative length")}
	}
	d := m.device(addr)
	got := n - m.Short
	if got < 0 {
		got = 0
	}
	out := make([]byte, got)
	for i := range out {
		out[i] = d[(int(reg)+i)&0xFF]
	}
	return out, nil
}

func (m *Memory) Write(addr, reg byte, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return &TransportError{Op: "write", Addr: addr, Reg: reg, Err: m.WriteErr}
	}
	d := m.device(addr)
	for i, v := range data {
		d[(int(reg)+i)&0xFF] = v
	}
	m.writes = append(m.writes, Write{Addr: addr, Reg: reg, Data: append([]byte(nil), data...)})
	return nil
}
