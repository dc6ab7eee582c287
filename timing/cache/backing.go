package cache

import (
	"github.com/sarchlab/arm7sim/mem"
)

// BusBacking adapts the memory bus as a cache BackingStore. Cache line
// fills and writebacks go through the byte ports so device side effects
// stay consistent with uncached accesses.
type BusBacking struct {
	bus *mem.Bus
}

// NewBusBacking creates a BackingStore over the given bus.
func NewBusBacking(bus *mem.Bus) *BusBacking {
	return &BusBacking{bus: bus}
}

// Read fetches size bytes starting at addr.
func (b *BusBacking) Read(addr uint32, size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = b.bus.Read8(addr + uint32(i))
	}
	return data
}

// Write stores data starting at addr.
func (b *BusBacking) Write(addr uint32, data []byte) {
	for i, v := range data {
		b.bus.Write8(addr+uint32(i), v)
	}
}
