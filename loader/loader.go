// Package loader provides program image loading for the simulator. The
// toolchain emits either raw binary images or Intel HEX files; both load
// into the system address map with execution starting at the reset vector.
package loader

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/arm7sim/mem"
)

// Segment is a contiguous run of bytes at a load address.
type Segment struct {
	// Addr is the address where this segment is loaded.
	Addr uint32
	// Data contains the segment bytes.
	Data []byte
}

// Program is a parsed program image ready for loading.
type Program struct {
	// EntryPoint is the address where execution begins. Raw images and
	// HEX files without a start record begin at the reset vector.
	EntryPoint uint32
	// Segments contains the loadable segments in file order.
	Segments []Segment
}

// Load parses a program image. Files ending in .hex are parsed as Intel
// HEX; everything else is treated as a raw binary loaded at the reset
// vector.
func Load(path string) (*Program, error) {
	if strings.HasSuffix(strings.ToLower(path), ".hex") {
		return LoadHex(path)
	}
	return LoadBinary(path, 0)
}

// LoadBinary reads a raw binary image to be loaded at base.
func LoadBinary(path string, base uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image: %s", path)
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("image size %d is not a multiple of 4", len(data))
	}

	return &Program{
		EntryPoint: base,
		Segments:   []Segment{{Addr: base, Data: data}},
	}, nil
}

// LoadHex parses an Intel HEX file. Data records (type 00), end-of-file
// (01), extended linear address (04), and start linear address (05)
// records are supported.
func LoadHex(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hex file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog := &Program{}
	var upper uint32 // upper 16 address bits from the last type-04 record

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		record, err := parseHexRecord(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}

		switch record.recType {
		case 0x00: // data
			prog.appendData(upper<<16|uint32(record.addr), record.data)
		case 0x01: // end of file
			return prog, scanner.Err()
		case 0x04: // extended linear address
			if len(record.data) != 2 {
				return nil, fmt.Errorf("%s:%d: bad extended address record", path, lineNo)
			}
			upper = uint32(record.data[0])<<8 | uint32(record.data[1])
		case 0x05: // start linear address
			if len(record.data) != 4 {
				return nil, fmt.Errorf("%s:%d: bad start address record", path, lineNo)
			}
			prog.EntryPoint = uint32(record.data[0])<<24 | uint32(record.data[1])<<16 |
				uint32(record.data[2])<<8 | uint32(record.data[3])
		default:
			// Other record types are not meaningful here.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hex file: %w", err)
	}

	return nil, fmt.Errorf("%s: missing end-of-file record", path)
}

// appendData extends the last segment when the data is contiguous with it,
// otherwise starts a new segment.
func (p *Program) appendData(addr uint32, data []byte) {
	n := len(p.Segments)
	if n > 0 {
		last := &p.Segments[n-1]
		if last.Addr+uint32(len(last.Data)) == addr {
			last.Data = append(last.Data, data...)
			return
		}
	}
	p.Segments = append(p.Segments, Segment{Addr: addr, Data: append([]byte(nil), data...)})
}

// Apply loads the program into the system. Bytes that land in the boot
// ROM go in directly; everything else goes through the bus.
func (p *Program) Apply(sys *mem.System) {
	for _, seg := range p.Segments {
		for i, b := range seg.Data {
			addr := seg.Addr + uint32(i)
			if addr < mem.BootROMBase+mem.BootROMSize {
				sys.BootROM.Load(addr-mem.BootROMBase, []byte{b})
			} else {
				sys.Bus.Write8(addr, b)
			}
		}
	}
}

// Size returns the total number of loadable bytes.
func (p *Program) Size() int {
	total := 0
	for _, seg := range p.Segments {
		total += len(seg.Data)
	}
	return total
}

type hexRecord struct {
	addr    uint16
	recType uint8
	data    []byte
}

// parseHexRecord parses and checksums one Intel HEX line.
func parseHexRecord(line string) (hexRecord, error) {
	rec := hexRecord{}

	if len(line) < 11 || line[0] != ':' {
		return rec, fmt.Errorf("malformed record %q", line)
	}

	raw := make([]byte, 0, (len(line)-1)/2)
	for i := 1; i+1 < len(line); i += 2 {
		var b byte
		if _, err := fmt.Sscanf(line[i:i+2], "%02x", &b); err != nil {
			return rec, fmt.Errorf("bad hex digits in %q", line)
		}
		raw = append(raw, b)
	}

	count := int(raw[0])
	if len(raw) != count+5 {
		return rec, fmt.Errorf("record length mismatch in %q", line)
	}

	var sum byte
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		return rec, fmt.Errorf("checksum mismatch in %q", line)
	}

	rec.addr = uint16(raw[1])<<8 | uint16(raw[2])
	rec.recType = raw[3]
	rec.data = raw[4 : 4+count]
	return rec, nil
}
