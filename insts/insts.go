// Package insts provides ARM7 instruction definitions and decoding.
//
// This package implements decoding of 32-bit ARM machine words into
// structured instruction representations. It covers the subset the core
// executes:
//   - Data Processing: AND, EOR, SUB, RSB, ADD, ADC, SBC, RSC, TST, TEQ,
//     CMP, CMN, ORR, MOV, BIC, MVN (immediate and register forms)
//   - Multiply: MUL (extension)
//   - Load/Store: LDR, STR, LDRB, STRB
//   - Branch: B, BL (24-bit signed offset, PC+8 relative)
//
// Every instruction is conditional. The coprocessor space decodes to a
// no-effect descriptor rather than an error; the decoder is total.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0xE2810005) // ADD R0, R1, #5
//	fmt.Printf("Op: %v, Rd: %d, Rn: %d, Imm: %d\n", inst.AluOp, inst.Rd, inst.Rn, inst.Imm)
package insts

// Class represents a top-level instruction class, selected by bits [27:26].
type Class uint8

// Instruction classes.
const (
	ClassDataProcessing Class = 0b00 // Data processing / multiply
	ClassLoadStore      Class = 0b01 // Single data transfer
	ClassBranch         Class = 0b10 // Branch / branch with link
	ClassCoprocessor    Class = 0b11 // Coprocessor space (treated as no-op)
)

// AluOp represents a data-processing opcode (bits [24:21]).
type AluOp uint8

// Data-processing opcodes.
const (
	OpAND AluOp = 0b0000 // Rd = Rn & Op2
	OpEOR AluOp = 0b0001 // Rd = Rn ^ Op2
	OpSUB AluOp = 0b0010 // Rd = Rn - Op2
	OpRSB AluOp = 0b0011 // Rd = Op2 - Rn
	OpADD AluOp = 0b0100 // Rd = Rn + Op2
	OpADC AluOp = 0b0101 // Rd = Rn + Op2 + C
	OpSBC AluOp = 0b0110 // Rd = Rn - Op2 - !C
	OpRSC AluOp = 0b0111 // Rd = Op2 - Rn - !C
	OpTST AluOp = 0b1000 // Flags of Rn & Op2
	OpTEQ AluOp = 0b1001 // Flags of Rn ^ Op2
	OpCMP AluOp = 0b1010 // Flags of Rn - Op2
	OpCMN AluOp = 0b1011 // Flags of Rn + Op2
	OpORR AluOp = 0b1100 // Rd = Rn | Op2
	OpMOV AluOp = 0b1101 // Rd = Op2
	OpBIC AluOp = 0b1110 // Rd = Rn &^ Op2
	OpMVN AluOp = 0b1111 // Rd = ^Op2
)

// IsTest reports whether the opcode is a test/compare operation
// (TST, TEQ, CMP, CMN). Test operations compute flags but never write Rd.
func (op AluOp) IsTest() bool {
	return op >= OpTST && op <= OpCMN
}

// UsesRn reports whether the opcode reads the first operand register.
// MOV and MVN pass the second operand through and ignore Rn.
func (op AluOp) UsesRn() bool {
	return op != OpMOV && op != OpMVN
}

// Cond represents an ARM condition code (bits [31:28]).
type Cond uint8

// ARM condition codes.
const (
	CondEQ Cond = 0b0000 // Equal (Z == 1)
	CondNE Cond = 0b0001 // Not Equal (Z == 0)
	CondCS Cond = 0b0010 // Carry Set / Unsigned higher or same (C == 1)
	CondCC Cond = 0b0011 // Carry Clear / Unsigned lower (C == 0)
	CondMI Cond = 0b0100 // Minus / Negative (N == 1)
	CondPL Cond = 0b0101 // Plus / Positive or zero (N == 0)
	CondVS Cond = 0b0110 // Overflow (V == 1)
	CondVC Cond = 0b0111 // No overflow (V == 0)
	CondHI Cond = 0b1000 // Unsigned higher (C == 1 && Z == 0)
	CondLS Cond = 0b1001 // Unsigned lower or same (C == 0 || Z == 1)
	CondGE Cond = 0b1010 // Signed greater than or equal (N == V)
	CondLT Cond = 0b1011 // Signed less than (N != V)
	CondGT Cond = 0b1100 // Signed greater than (Z == 0 && N == V)
	CondLE Cond = 0b1101 // Signed less than or equal (Z == 1 || N != V)
	CondAL Cond = 0b1110 // Always (default)
	CondNV Cond = 0b1111 // Never (reserved)
)

// CondPassed evaluates a condition code against the current flags.
// AL always passes and NV never passes.
func CondPassed(cond Cond, n, z, c, v bool) bool {
	switch cond {
	case CondEQ:
		return z
	case CondNE:
		return !z
	case CondCS:
		return c
	case CondCC:
		return !c
	case CondMI:
		return n
	case CondPL:
		return !n
	case CondVS:
		return v
	case CondVC:
		return !v
	case CondHI:
		return c && !z
	case CondLS:
		return !c || z
	case CondGE:
		return n == v
	case CondLT:
		return n != v
	case CondGT:
		return !z && (n == v)
	case CondLE:
		return z || (n != v)
	case CondAL:
		return true
	case CondNV:
		return false
	default:
		return false
	}
}

// ShiftType represents a barrel shifter operation (bits [6:5]).
type ShiftType uint8

// Shift types.
const (
	ShiftLSL ShiftType = 0b00 // Logical shift left
	ShiftLSR ShiftType = 0b01 // Logical shift right
	ShiftASR ShiftType = 0b10 // Arithmetic shift right
	ShiftROR ShiftType = 0b11 // Rotate right (amount 0 encodes RRX)
)

// LinkRegister is the register that receives the return address for BL.
const LinkRegister = 14

// Instruction represents a decoded ARM7 instruction.
//
// The zero value is a no-effect descriptor: no register write, no memory
// access, no branch. Unrecognized encodings decode to exactly that, matching
// the hardware decoder's default case of all-zero control signals.
type Instruction struct {
	Raw   uint32 // Original instruction word
	Class Class  // Top-level class (bits [27:26])
	Cond  Cond   // Condition code (bits [31:28])

	// Data processing fields.
	AluOp      AluOp // ALU operation (bits [24:21])
	SetFlags   bool  // S bit: update CPSR flags
	IsMultiply bool  // MUL extension (Rd = Rm * Rs)

	// Register indices. For MUL, Rd sits at bits [19:16].
	Rd uint8 // Destination register
	Rn uint8 // First source register
	Rm uint8 // Second source register (register operand forms)
	Rs uint8 // Shift-amount register (register-specified shifts, MUL)

	// Second operand.
	IsImm       bool      // I bit: operand 2 is a rotated immediate
	Imm         uint32    // Rotated immediate, or load/store offset
	ShiftType   ShiftType // Shift applied to Rm
	ShiftAmount uint8     // Constant shift amount (0-31)
	ShiftByReg  bool      // Shift amount comes from Rs

	// Load/store fields.
	Byte      bool // B bit: byte transfer instead of word
	AddOffset bool // U bit: add offset to base (clear means subtract)
	RegOffset bool // Offset is a shifted register rather than an immediate

	// Branch fields.
	BranchOffset int32 // Signed byte offset, relative to PC+8
	Link         bool  // L bit: write return address to R14

	// Control signals consumed by the pipeline. Condition-pass gates all of
	// them at execute time; a failed condition makes the instruction a no-op
	// that still occupies its pipeline slot.
	RegWrite bool // Writes Rd (or R14 for BL)
	MemRead  bool // Load from memory
	MemWrite bool // Store to memory
	IsBranch bool // Branch instruction

	// Operand usage, for hazard detection.
	UsesRn bool
	UsesRm bool
	UsesRs bool
}
