// Package emu provides functional ARM7 emulation.
package emu

import "github.com/sarchlab/arm7sim/insts"

// ALUResult holds the outputs of an ALU operation. The zero and negative
// flags are not part of the result: they are pure functions of Result
// (zero == Result == 0, negative == bit 31) and are derived by the caller.
type ALUResult struct {
	// Result is the 32-bit operation result.
	Result uint32
	// Carry is the carry-out. For subtraction it follows the ARM
	// inverted-borrow convention: carry set means no borrow occurred.
	Carry bool
	// Overflow is the signed overflow flag.
	Overflow bool
}

// ALU implements the sixteen ARM7 data-processing operations.
// It is stateless; Compute is a pure function.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Compute performs one ALU operation on two 32-bit operands.
//
// Carry and borrow are computed through widened 64-bit intermediates so the
// bit-32 carry is captured exactly. Logical operations (AND, EOR, TST, TEQ,
// ORR, MOV, BIC, MVN) report carry and overflow as false. Unknown opcodes
// produce an all-zero result; Compute never fails.
func (a *ALU) Compute(op1, op2 uint32, op insts.AluOp, carryIn bool) ALUResult {
	switch op {
	case insts.OpAND, insts.OpTST:
		return ALUResult{Result: op1 & op2}
	case insts.OpEOR, insts.OpTEQ:
		return ALUResult{Result: op1 ^ op2}
	case insts.OpSUB, insts.OpCMP:
		return subWithCarry(op1, op2, true)
	case insts.OpRSB:
		return subWithCarry(op2, op1, true)
	case insts.OpADD, insts.OpCMN:
		return addWithCarry(op1, op2, false)
	case insts.OpADC:
		return addWithCarry(op1, op2, carryIn)
	case insts.OpSBC:
		return subWithCarry(op1, op2, carryIn)
	case insts.OpRSC:
		return subWithCarry(op2, op1, carryIn)
	case insts.OpORR:
		return ALUResult{Result: op1 | op2}
	case insts.OpMOV:
		return ALUResult{Result: op2}
	case insts.OpBIC:
		return ALUResult{Result: op1 &^ op2}
	case insts.OpMVN:
		return ALUResult{Result: ^op2}
	default:
		return ALUResult{}
	}
}

// Negative reports the derived negative flag for a result.
func Negative(result uint32) bool {
	return result>>31 == 1
}

// Zero reports the derived zero flag for a result.
func Zero(result uint32) bool {
	return result == 0
}

// addWithCarry computes op1 + op2 + carryIn with exact carry and signed
// overflow detection.
func addWithCarry(op1, op2 uint32, carryIn bool) ALUResult {
	var cin uint64
	if carryIn {
		cin = 1
	}

	wide := uint64(op1) + uint64(op2) + cin
	result := uint32(wide)

	return ALUResult{
		Result: result,
		Carry:  wide>>32 == 1,
		// Overflow when both operands share a sign and the result does not.
		Overflow: (op1>>31 == op2>>31) && (op1>>31 != result>>31),
	}
}

// subWithCarry computes op1 - op2 - (1 - carryIn). With carryIn true this is
// a plain subtraction. Carry is the inverted borrow: set when no borrow
// occurred.
func subWithCarry(op1, op2 uint32, carryIn bool) ALUResult {
	var borrow uint64
	if !carryIn {
		borrow = 1
	}

	wide := uint64(op1) - uint64(op2) - borrow
	result := uint32(wide)

	return ALUResult{
		Result: result,
		Carry:  wide>>32 == 0, // no wraparound means no borrow
		// Overflow when operand signs differ and the result sign differs
		// from the first operand.
		Overflow: (op1>>31 != op2>>31) && (op1>>31 != result>>31),
	}
}
