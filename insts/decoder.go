package insts

import "math/bits"

// Decoder decodes ARM7 machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new ARM7 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit ARM instruction word.
//
// Decode is pure and total: every input yields a descriptor, and encodings
// outside the implemented subset yield a no-effect descriptor with all
// control signals clear.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Raw:   word,
		Cond:  Cond((word >> 28) & 0xF),
		Class: Class((word >> 26) & 0x3),
	}

	switch inst.Class {
	case ClassDataProcessing:
		if d.isMultiply(word) {
			d.decodeMultiply(word, inst)
		} else {
			d.decodeDataProcessing(word, inst)
		}
	case ClassLoadStore:
		d.decodeLoadStore(word, inst)
	case ClassBranch:
		d.decodeBranch(word, inst)
	case ClassCoprocessor:
		// Coprocessor / software interrupt space: architectural no-op.
	}

	return inst
}

// isMultiply checks for the multiply encoding within the data-processing
// space: bits [27:22] == 000000 and bits [7:4] == 1001.
func (d *Decoder) isMultiply(word uint32) bool {
	return (word>>22)&0x3F == 0 && (word>>4)&0xF == 0b1001
}

// decodeMultiply decodes MUL instructions.
// Format: cond | 000000 | A | S | Rd | Rn | Rs | 1001 | Rm
// Only the A=0 form (MUL) is implemented; MLA decodes as MUL.
func (d *Decoder) decodeMultiply(word uint32, inst *Instruction) {
	inst.IsMultiply = true
	inst.SetFlags = (word>>20)&0x1 == 1
	inst.Rd = uint8((word >> 16) & 0xF)
	inst.Rs = uint8((word >> 8) & 0xF)
	inst.Rm = uint8(word & 0xF)

	inst.RegWrite = true
	inst.UsesRm = true
	inst.UsesRs = true
}

// decodeDataProcessing decodes the sixteen ALU operations.
// Format: cond | 00 | I | opcode | S | Rn | Rd | operand2
func (d *Decoder) decodeDataProcessing(word uint32, inst *Instruction) {
	inst.AluOp = AluOp((word >> 21) & 0xF)
	inst.SetFlags = (word>>20)&0x1 == 1
	inst.Rn = uint8((word >> 16) & 0xF)
	inst.Rd = uint8((word >> 12) & 0xF)
	inst.IsImm = (word>>25)&0x1 == 1

	if inst.IsImm {
		// 8-bit immediate rotated right by twice the rotate field.
		imm8 := word & 0xFF
		rotate := ((word >> 8) & 0xF) * 2
		inst.Imm = bits.RotateLeft32(imm8, -int(rotate))
	} else {
		inst.Rm = uint8(word & 0xF)
		inst.ShiftType = ShiftType((word >> 5) & 0x3)
		inst.ShiftByReg = (word>>4)&0x1 == 1
		if inst.ShiftByReg {
			inst.Rs = uint8((word >> 8) & 0xF)
		} else {
			inst.ShiftAmount = uint8((word >> 7) & 0x1F)
		}
		inst.UsesRm = true
		inst.UsesRs = inst.ShiftByReg
	}

	// Test operations update flags only; they never write Rd.
	inst.RegWrite = !inst.AluOp.IsTest()
	inst.UsesRn = inst.AluOp.UsesRn()

	// Test operations set flags regardless of the S bit encoding.
	if inst.AluOp.IsTest() {
		inst.SetFlags = true
	}
}

// decodeLoadStore decodes single data transfer instructions.
// Format: cond | 01 | I | P | U | B | W | L | Rn | Rd | offset
//
// The baseline core executes the pre-indexed, no-writeback form the
// toolchain emits; the P and W bits are accepted but not acted on.
func (d *Decoder) decodeLoadStore(word uint32, inst *Instruction) {
	load := (word>>20)&0x1 == 1
	inst.Byte = (word>>22)&0x1 == 1
	inst.AddOffset = (word>>23)&0x1 == 1
	inst.Rn = uint8((word >> 16) & 0xF)
	inst.Rd = uint8((word >> 12) & 0xF)
	inst.RegOffset = (word>>25)&0x1 == 1

	if inst.RegOffset {
		inst.Rm = uint8(word & 0xF)
		inst.ShiftType = ShiftType((word >> 5) & 0x3)
		inst.ShiftAmount = uint8((word >> 7) & 0x1F)
		inst.UsesRm = true
	} else {
		inst.Imm = word & 0xFFF
	}

	inst.MemRead = load
	inst.MemWrite = !load
	inst.RegWrite = load
	inst.UsesRn = true
}

// decodeBranch decodes B and BL instructions.
// Format: cond | 101 | L | offset24
//
// The 24-bit offset is sign-extended, shifted left by 2, and applied
// relative to PC+8, matching the toolchain's `target - addr - 8` encoding.
func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	if (word>>25)&0x1 == 0 {
		// Block data transfer space (bits [27:25] == 100): not implemented,
		// decode as a no-effect descriptor.
		return
	}

	offset := int32(word&0xFFFFFF) << 8 >> 8 // sign-extend 24 bits
	inst.BranchOffset = offset * 4
	inst.Link = (word>>24)&0x1 == 1

	inst.IsBranch = true
	if inst.Link {
		inst.RegWrite = true
		inst.Rd = LinkRegister
	}
}
