package mem

// RAM is a byte-addressed random-access memory with little-endian word
// access, matching the byte order the toolchain emits.
type RAM struct {
	data []byte
}

// NewRAM creates a RAM of the given size in bytes.
func NewRAM(size uint32) *RAM {
	return &RAM{data: make([]byte, size)}
}

// Read32 reads a little-endian word. Reads past the end return zero.
func (m *RAM) Read32(offset uint32) uint32 {
	if int(offset)+4 > len(m.data) {
		return 0
	}
	return uint32(m.data[offset]) |
		uint32(m.data[offset+1])<<8 |
		uint32(m.data[offset+2])<<16 |
		uint32(m.data[offset+3])<<24
}

// Write32 writes a little-endian word. Writes past the end are discarded.
func (m *RAM) Write32(offset uint32, value uint32) {
	if int(offset)+4 > len(m.data) {
		return
	}
	m.data[offset] = byte(value)
	m.data[offset+1] = byte(value >> 8)
	m.data[offset+2] = byte(value >> 16)
	m.data[offset+3] = byte(value >> 24)
}

// Read8 reads a byte. Reads past the end return zero.
func (m *RAM) Read8(offset uint32) uint8 {
	if int(offset) >= len(m.data) {
		return 0
	}
	return m.data[offset]
}

// Write8 writes a byte. Writes past the end are discarded.
func (m *RAM) Write8(offset uint32, value uint8) {
	if int(offset) >= len(m.data) {
		return
	}
	m.data[offset] = value
}

// ROM is read-only through the bus. The program loader populates it
// directly via Load before simulation starts.
type ROM struct {
	ram RAM
}

// NewROM creates a ROM of the given size in bytes.
func NewROM(size uint32) *ROM {
	return &ROM{ram: RAM{data: make([]byte, size)}}
}

// Load copies an image into the ROM starting at offset. Bytes that fall
// outside the ROM are ignored.
func (m *ROM) Load(offset uint32, image []byte) {
	copy(m.ram.data[min(int(offset), len(m.ram.data)):], image)
}

// Read32 reads a little-endian word.
func (m *ROM) Read32(offset uint32) uint32 { return m.ram.Read32(offset) }

// Write32 discards the write; ROM is not writable through the bus.
func (m *ROM) Write32(offset uint32, value uint32) {}

// Read8 reads a byte.
func (m *ROM) Read8(offset uint32) uint8 { return m.ram.Read8(offset) }

// Write8 discards the write; ROM is not writable through the bus.
func (m *ROM) Write8(offset uint32, value uint8) {}
