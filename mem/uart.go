package mem

import "io"

// UART register offsets.
const (
	UARTData   = 0x00 // Write: transmit byte. Read: next received byte.
	UARTStatus = 0x04 // Bit 0: TX ready (always set). Bit 1: RX has data.
	UARTCtrl   = 0x08 // Bit 0: enable.
)

// UART status bits.
const (
	UARTStatusTxReady = 1 << 0
	UARTStatusRxValid = 1 << 1
)

// UART is a register-level model of the serial port. Baud generation and
// bit serialization are below the CPU core's level of abstraction: a
// transmitted byte appears on the output writer immediately, and the
// transmitter is always ready.
type UART struct {
	out  io.Writer
	rx   []byte
	ctrl uint32
}

// NewUART creates a UART whose transmitted bytes are written to out.
// A nil writer discards transmitted bytes.
func NewUART(out io.Writer) *UART {
	return &UART{out: out}
}

// QueueRx appends bytes to the receive buffer, making them readable from
// the data register. This is the harness-facing side of the model.
func (u *UART) QueueRx(data []byte) {
	u.rx = append(u.rx, data...)
}

// Read32 reads a UART register.
func (u *UART) Read32(offset uint32) uint32 {
	switch offset {
	case UARTData:
		if len(u.rx) == 0 {
			return 0
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		return uint32(b)
	case UARTStatus:
		status := uint32(UARTStatusTxReady)
		if len(u.rx) > 0 {
			status |= UARTStatusRxValid
		}
		return status
	case UARTCtrl:
		return u.ctrl
	default:
		return 0
	}
}

// Write32 writes a UART register.
func (u *UART) Write32(offset uint32, value uint32) {
	switch offset {
	case UARTData:
		if u.out != nil {
			_, _ = u.out.Write([]byte{byte(value)})
		}
	case UARTCtrl:
		u.ctrl = value & 0x1
	}
}

// Read8 reads the low byte of a register.
func (u *UART) Read8(offset uint32) uint8 {
	return uint8(u.Read32(offset &^ 0x3))
}

// Write8 writes a register through its low byte.
func (u *UART) Write8(offset uint32, value uint8) {
	u.Write32(offset&^0x3, uint32(value))
}
