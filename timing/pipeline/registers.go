// Package pipeline provides the 5-stage pipeline implementation for
// cycle-accurate timing simulation.
package pipeline

import "github.com/sarchlab/arm7sim/insts"

// IFIDRegister holds state between Fetch and Decode stages.
//
// All four pipeline registers share the same discipline: they are owned by
// the Pipeline, replaced wholesale once per Tick, and Clear puts them in
// the bubble state (no instruction, no side effects).
type IFIDRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the fetched instruction.
	PC uint32

	// InstructionWord is the raw 32-bit instruction word.
	InstructionWord uint32

	// PredictedTaken indicates the branch predictor predicted taken
	// (branch prediction extension only).
	PredictedTaken bool

	// PredictedTarget is the predicted branch target from the BTB.
	PredictedTarget uint32
}

// Clear resets the IF/ID register to the bubble state.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{}
}

// IDEXRegister holds state between Decode and Execute stages.
type IDEXRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// Register values read from the register file.
	RnValue uint32
	RmValue uint32
	RsValue uint32
	RdValue uint32 // store data for STR

	// Register numbers for hazard detection.
	Rd uint8
	Rn uint8
	Rm uint8
	Rs uint8

	// Control signals. Condition-pass is applied at execute, not here; an
	// instruction whose condition fails keeps its slot but drops these
	// effects on the way into EX/MEM.
	MemRead  bool
	MemWrite bool
	RegWrite bool
	MemToReg bool
	IsBranch bool

	// Branch prediction info (propagated from IF/ID, extension only).
	PredictedTaken  bool
	PredictedTarget uint32
}

// Clear resets the ID/EX register to the bubble state.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{}
}

// EXMEMRegister holds state between Execute and Memory stages.
type EXMEMRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// ALUResult is the computed result (address for load/store).
	ALUResult uint32

	// StoreValue is the value to store for store instructions.
	StoreValue uint32

	// Rd is the destination register number.
	Rd uint8

	// Control signals, already gated by condition-pass in execute.
	MemRead  bool
	MemWrite bool
	ByteWide bool // byte rather than word transfer
	RegWrite bool
	MemToReg bool
}

// Clear resets the EX/MEM register to the bubble state.
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{}
}

// MEMWBRegister holds state between Memory and Writeback stages.
type MEMWBRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// ALUResult is the result for register-writing instructions.
	ALUResult uint32

	// MemData is the data read from memory for loads.
	MemData uint32

	// Rd is the destination register number.
	Rd uint8

	// Control signals.
	RegWrite bool
	MemToReg bool
}

// Clear resets the MEM/WB register to the bubble state.
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{}
}

// WriteData returns the value this instruction writes back: memory data
// for loads, the ALU result otherwise.
func (r *MEMWBRegister) WriteData() uint32 {
	if r.MemToReg {
		return r.MemData
	}
	return r.ALUResult
}
