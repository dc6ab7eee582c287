// Package emu provides functional ARM7 emulation.
package emu

// NumRegs is the number of general-purpose registers in the file.
const NumRegs = 16

// RegFile represents the ARM7 register file: 16 general-purpose 32-bit
// registers plus the CPSR condition flags.
//
// R0 is an ordinary writable register; the file does not hardwire any index
// to zero. R15 is architecturally the PC, but the pipeline tracks the PC
// itself and never routes it through the file. R14 is the link register by
// convention only.
type RegFile struct {
	// R holds general-purpose registers R0-R15.
	R [NumRegs]uint32

	// CPSR holds the condition flags.
	CPSR Flags
}

// Flags represents the CPSR condition flags.
type Flags struct {
	// N is the negative flag.
	N bool
	// Z is the zero flag.
	Z bool
	// C is the carry flag.
	C bool
	// V is the overflow flag.
	V bool
}

// ReadReg reads a register value. The index is a 4-bit field by
// construction, so no bounds failure exists.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	return r.R[reg&0xF]
}

// WriteReg writes a value to a register.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	r.R[reg&0xF] = value
}

// Snapshot returns a copy of all sixteen registers, for introspection and
// test assertions.
func (r *RegFile) Snapshot() [NumRegs]uint32 {
	return r.R
}

// Reset clears all registers and flags.
func (r *RegFile) Reset() {
	r.R = [NumRegs]uint32{}
	r.CPSR = Flags{}
}
