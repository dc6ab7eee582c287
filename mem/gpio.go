package mem

// GPIO register offsets.
const (
	GPIODir = 0x00 // Per-pin direction: 1 = output.
	GPIOOut = 0x04 // Output latch; readable.
	GPIOIn  = 0x08 // Input pins, driven by the harness.
)

// GPIO is a register-level model of the parallel port.
//
// The output latch has exactly one writer, the bus. The source hardware
// drove the latch from two always-blocks with ill-defined ordering; the
// model resolves that to single-writer semantics.
type GPIO struct {
	dir uint32
	out uint32
	in  uint32
}

// NewGPIO creates a GPIO block with all pins configured as inputs.
func NewGPIO() *GPIO {
	return &GPIO{}
}

// SetInput drives the input pins from the harness side.
func (g *GPIO) SetInput(value uint32) {
	g.in = value
}

// Output returns the output latch, for harness-side observation.
func (g *GPIO) Output() uint32 {
	return g.out
}

// Read32 reads a GPIO register.
func (g *GPIO) Read32(offset uint32) uint32 {
	switch offset {
	case GPIODir:
		return g.dir
	case GPIOOut:
		return g.out
	case GPIOIn:
		// Pins configured as outputs read back the output latch.
		return (g.in &^ g.dir) | (g.out & g.dir)
	default:
		return 0
	}
}

// Write32 writes a GPIO register. Writes to the input register are
// discarded; only the harness drives input pins.
func (g *GPIO) Write32(offset uint32, value uint32) {
	switch offset {
	case GPIODir:
		g.dir = value
	case GPIOOut:
		g.out = value
	}
}

// Read8 reads the low byte of a register.
func (g *GPIO) Read8(offset uint32) uint8 {
	return uint8(g.Read32(offset &^ 0x3))
}

// Write8 writes a register through its low byte.
func (g *GPIO) Write8(offset uint32, value uint8) {
	g.Write32(offset&^0x3, uint32(value))
}
