// Package mem provides the address-decoded memory bus and the devices that
// live on it: boot ROM, program and data RAM, and the UART and GPIO
// peripheral models.
//
// The bus is total: reads from unmapped addresses return zero and writes to
// unmapped addresses are discarded, matching the hardware decoder's default
// case. The only failure the package can produce is at construction time,
// when a bus is built from overlapping regions.
package mem

import "fmt"

// Device is a bus-addressable device. Offsets are relative to the region
// base. Devices never fail; out-of-range offsets read as zero.
type Device interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
	Read8(offset uint32) uint8
	Write8(offset uint32, value uint8)
}

// Region maps a device into the address space.
type Region struct {
	// Name identifies the region in construction errors.
	Name string
	// Base is the first address of the region.
	Base uint32
	// Size is the region length in bytes.
	Size uint32
	// Dev receives accesses decoded into this region.
	Dev Device
}

// end returns the last address of the region.
func (r Region) end() uint32 {
	return r.Base + r.Size - 1
}

// Bus dispatches CPU memory accesses to devices by address range.
type Bus struct {
	regions []Region
}

// NewBus creates a bus from the given regions. Overlapping regions or
// zero-sized regions are a construction-time error; the bus itself never
// fails once built.
func NewBus(regions ...Region) (*Bus, error) {
	for i, r := range regions {
		if r.Size == 0 {
			return nil, fmt.Errorf("region %q has zero size", r.Name)
		}
		if r.Dev == nil {
			return nil, fmt.Errorf("region %q has no device", r.Name)
		}
		for _, prev := range regions[:i] {
			if r.Base <= prev.end() && prev.Base <= r.end() {
				return nil, fmt.Errorf("region %q [0x%08X-0x%08X] overlaps %q [0x%08X-0x%08X]",
					r.Name, r.Base, r.end(), prev.Name, prev.Base, prev.end())
			}
		}
	}

	return &Bus{regions: regions}, nil
}

// decode finds the region containing addr.
func (b *Bus) decode(addr uint32) (Region, bool) {
	for _, r := range b.regions {
		if addr >= r.Base && addr <= r.end() {
			return r, true
		}
	}
	return Region{}, false
}

// Fetch reads an instruction word. Instruction and data reads share the
// same decode; the split into separate ports is a pipeline concern.
func (b *Bus) Fetch(addr uint32) uint32 {
	return b.Read32(addr)
}

// Read32 reads a word. The address is word-aligned by dropping the low two
// bits, as the hardware bus does. Unmapped addresses read as zero.
func (b *Bus) Read32(addr uint32) uint32 {
	addr &^= 0x3
	r, ok := b.decode(addr)
	if !ok {
		return 0
	}
	return r.Dev.Read32(addr - r.Base)
}

// Write32 writes a word. Unmapped writes are discarded.
func (b *Bus) Write32(addr uint32, value uint32) {
	addr &^= 0x3
	r, ok := b.decode(addr)
	if !ok {
		return
	}
	r.Dev.Write32(addr-r.Base, value)
}

// Read8 reads a byte. Unmapped addresses read as zero.
func (b *Bus) Read8(addr uint32) uint8 {
	r, ok := b.decode(addr)
	if !ok {
		return 0
	}
	return r.Dev.Read8(addr - r.Base)
}

// Write8 writes a byte. Unmapped writes are discarded.
func (b *Bus) Write8(addr uint32, value uint8) {
	r, ok := b.decode(addr)
	if !ok {
		return
	}
	r.Dev.Write8(addr-r.Base, value)
}
