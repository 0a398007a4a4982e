/*
Package regio provides addressed register access over a shared I2C bus.

Devices never talk to a bus directly; they are handed a Transport and issue
burst reads and writes against a device address and a starting register.
*/
package regio

import (
	"fmt"
)

// Transport performs addressed multi-byte register reads and writes.
// Implementations block until the bus transaction completes.
type Transport interface {
	// Read reads n bytes starting at register reg of the device at addr.
	Read(addr, reg byte, n int) ([]byte, error)
	// Write writes data starting at register reg of the device at addr.
	Write(addr, reg byte, data []byte) error
}

// Block is the result of a single burst read, tagged with where it came from.
type Block struct {
	Addr, Reg byte
	data      []byte
}

// Len returns the number of bytes in the block.
func (b Block) Len() int {
	return len(b.data)
}

// Bytes returns the raw bytes. The returned slice must not be modified.
func (b Block) Bytes() []byte {
	return b.data
}

// Slice returns bytes [lo, hi) of the block.
func (b Block) Slice(lo, hi int) []byte {
	return b.data[lo:hi]
}

// ShortReadError is returned when a transport hands back fewer bytes than were asked for.
type ShortReadError struct {
	Addr, Reg byte
	Want, Got int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("short read from 0x%02X register 0x%02X: wanted %d bytes, got %d",
		e.Addr, e.Reg, e.Want, e.Got)
}

// TransportError is the error the bus adapters in this package return for a failed transaction.
type TransportError struct {
	Op        string // "read" or "write"
	Addr, Reg byte
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("i2c %s 0x%02X register 0x%02X: %s", e.Op, e.Addr, e.Reg, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ReadBlock performs one burst read of n bytes and checks the length before anything
// gets decoded. Transport errors are returned unchanged. Extra trailing bytes are dropped.
func ReadBlock(t Transport, addr, reg byte, n int) (Block, error) {
	data, err := t.Read(addr, reg, n)
	if err != nil {
		return Block{}, err
	}
	if len(data) < n {
		return Block{}, &ShortReadError{Addr: addr, Reg: reg, Want: n, Got: len(data)}
	}
	return Block{Addr: addr, Reg: reg, data: data[:n]}, nil
}

// ReadByte reads a single register.
func ReadByte(t Transport, addr, reg byte) (byte, error) {
	b, err := ReadBlock(t, addr, reg, 1)
	if err != nil {
		return 0, err
	}
	return b.data[0], nil
}

// WriteByte writes a single register.
func WriteByte(t Transport, addr, reg, value byte) error {
	return t.Write(addr, reg, []byte{value})
}
