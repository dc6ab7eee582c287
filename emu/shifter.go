// Package emu provides functional ARM7 emulation.
package emu

import (
	"math/bits"

	"github.com/sarchlab/arm7sim/insts"
)

// ShiftResult holds the outputs of a barrel shifter operation.
type ShiftResult struct {
	// Result is the shifted value.
	Result uint32
	// Carry is the shifter carry-out, which becomes the C flag for logical
	// data-processing operations that set flags.
	Carry bool
}

// Shifter implements the ARM7 barrel shifter.
// It is stateless; Shift is a pure function.
type Shifter struct{}

// NewShifter creates a new barrel shifter.
func NewShifter() *Shifter {
	return &Shifter{}
}

// Shift applies a shift of the given type and amount (0-31) to a value.
//
// The zero-amount encodings are ARM architectural special cases, not
// pass-throughs:
//   - LSL #0 passes the value through with carry unchanged.
//   - LSR #0 means LSR #32: result 0, carry = bit 31.
//   - ASR #0 means ASR #32: result fully sign-extended, carry = bit 31.
//   - ROR #0 means RRX: rotate right one bit through the carry flag.
func (s *Shifter) Shift(value uint32, shiftType insts.ShiftType, amount uint8, carryIn bool) ShiftResult {
	amount &= 0x1F

	switch shiftType {
	case insts.ShiftLSL:
		if amount == 0 {
			return ShiftResult{Result: value, Carry: carryIn}
		}
		return ShiftResult{
			Result: value << amount,
			Carry:  bit(value, 32-amount),
		}

	case insts.ShiftLSR:
		if amount == 0 {
			// LSR #0 encodes LSR #32.
			return ShiftResult{Result: 0, Carry: bit(value, 31)}
		}
		return ShiftResult{
			Result: value >> amount,
			Carry:  bit(value, amount-1),
		}

	case insts.ShiftASR:
		if amount == 0 {
			// ASR #0 encodes ASR #32: every result bit is the sign bit.
			if bit(value, 31) {
				return ShiftResult{Result: 0xFFFFFFFF, Carry: true}
			}
			return ShiftResult{Result: 0, Carry: false}
		}
		return ShiftResult{
			Result: uint32(int32(value) >> amount),
			Carry:  bit(value, amount-1),
		}

	case insts.ShiftROR:
		if amount == 0 {
			// ROR #0 encodes RRX: carry-in enters bit 31, bit 0 leaves
			// through the carry.
			result := value >> 1
			if carryIn {
				result |= 1 << 31
			}
			return ShiftResult{Result: result, Carry: bit(value, 0)}
		}
		return ShiftResult{
			Result: bits.RotateLeft32(value, -int(amount)),
			Carry:  bit(value, amount-1),
		}

	default:
		return ShiftResult{Result: value, Carry: carryIn}
	}
}

// bit reports whether bit n of value is set.
func bit(value uint32, n uint8) bool {
	return (value>>n)&1 == 1
}
