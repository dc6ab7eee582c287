package mem

import "io"

// System address map. Accesses outside these ranges read as zero and
// discard writes.
const (
	BootROMBase    = 0x00000000
	BootROMSize    = 0x00001000
	ProgramRAMBase = 0x00001000
	ProgramRAMSize = 0x0000F000
	DataRAMBase    = 0x00010000
	DataRAMSize    = 0x00010000
	UARTBase       = 0xFFFF0000
	UARTSize       = 0x00000100
	GPIOBase       = 0xFFFF0100
	GPIOSize       = 0x00000100
)

// System bundles the standard bus layout: boot ROM, program RAM, data RAM,
// and the UART and GPIO peripherals, decoded at the architectural address
// ranges.
type System struct {
	Bus        *Bus
	BootROM    *ROM
	ProgramRAM *RAM
	DataRAM    *RAM
	UART       *UART
	GPIO       *GPIO
}

// SystemOption is a functional option for configuring the System.
type SystemOption func(*systemConfig)

type systemConfig struct {
	uartOut io.Writer
}

// WithUARTOutput directs UART transmit bytes to w.
func WithUARTOutput(w io.Writer) SystemOption {
	return func(c *systemConfig) {
		c.uartOut = w
	}
}

// NewSystem builds the standard system bus. The fixed layout has no
// overlaps, so construction cannot fail; the error return exists only for
// parity with NewBus and is always nil.
func NewSystem(opts ...SystemOption) (*System, error) {
	cfg := systemConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &System{
		BootROM:    NewROM(BootROMSize),
		ProgramRAM: NewRAM(ProgramRAMSize),
		DataRAM:    NewRAM(DataRAMSize),
		UART:       NewUART(cfg.uartOut),
		GPIO:       NewGPIO(),
	}

	bus, err := NewBus(
		Region{Name: "boot-rom", Base: BootROMBase, Size: BootROMSize, Dev: s.BootROM},
		Region{Name: "program-ram", Base: ProgramRAMBase, Size: ProgramRAMSize, Dev: s.ProgramRAM},
		Region{Name: "data-ram", Base: DataRAMBase, Size: DataRAMSize, Dev: s.DataRAM},
		Region{Name: "uart", Base: UARTBase, Size: UARTSize, Dev: s.UART},
		Region{Name: "gpio", Base: GPIOBase, Size: GPIOSize, Dev: s.GPIO},
	)
	if err != nil {
		return nil, err
	}

	s.Bus = bus
	return s, nil
}
