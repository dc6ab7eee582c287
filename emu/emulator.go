// Package emu provides functional ARM7 emulation.
package emu

import (
	"github.com/sarchlab/arm7sim/insts"
	"github.com/sarchlab/arm7sim/mem"
)

// Emulator executes ARM7 instructions functionally, one whole instruction
// per Step, with no pipeline timing. It serves as the architectural
// reference model for the cycle-accurate pipeline: after the same program,
// both must agree on register file, flags, and memory contents.
type Emulator struct {
	regFile *RegFile
	bus     *mem.Bus
	decoder *insts.Decoder
	alu     *ALU
	shifter *Shifter

	pc               uint32
	instructionCount uint64

	haltOnSelfLoop bool
	halted         bool
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithEntryPoint sets the initial program counter.
func WithEntryPoint(pc uint32) EmulatorOption {
	return func(e *Emulator) {
		e.pc = pc
	}
}

// WithHaltOnSelfLoop makes the emulator halt when a taken branch targets
// its own address. The instruction set has no halt opcode; programs signal
// completion by spinning on a self-branch.
func WithHaltOnSelfLoop() EmulatorOption {
	return func(e *Emulator) {
		e.haltOnSelfLoop = true
	}
}

// NewEmulator creates a functional emulator on the given bus.
func NewEmulator(bus *mem.Bus, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		bus:     bus,
		decoder: insts.NewDecoder(),
		alu:     NewALU(),
		shifter: NewShifter(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegFile returns the register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// PC returns the current program counter.
func (e *Emulator) PC() uint32 {
	return e.pc
}

// SetPC sets the program counter.
func (e *Emulator) SetPC(pc uint32) {
	e.pc = pc &^ 0x3
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Halted reports whether a self-loop branch has been detected.
func (e *Emulator) Halted() bool {
	return e.halted
}

// Reset restores the power-on state: PC at the reset vector, registers and
// flags zero. Memory contents are owned by the bus and are not touched.
func (e *Emulator) Reset() {
	e.regFile.Reset()
	e.pc = 0
	e.instructionCount = 0
	e.halted = false
}

// Step executes one instruction. It never fails: unrecognized encodings and
// failed conditions execute as no-ops that still advance the PC.
func (e *Emulator) Step() {
	if e.halted {
		return
	}

	word := e.bus.Fetch(e.pc)
	inst := e.decoder.Decode(word)
	e.instructionCount++

	f := e.regFile.CPSR
	if !insts.CondPassed(inst.Cond, f.N, f.Z, f.C, f.V) {
		e.pc += 4
		return
	}

	switch {
	case inst.IsMultiply:
		e.execMultiply(inst)
	case inst.IsBranch:
		e.execBranch(inst)
		return // branch owns the PC update
	case inst.MemRead || inst.MemWrite:
		e.execLoadStore(inst)
	case inst.Class == insts.ClassDataProcessing:
		e.execDataProcessing(inst)
	}

	e.pc += 4
}

// RunCycles executes up to n instructions, stopping early on halt.
// Returns true if still running.
func (e *Emulator) RunCycles(n uint64) bool {
	for i := uint64(0); i < n && !e.halted; i++ {
		e.Step()
	}
	return !e.halted
}

// operand2 computes the second ALU operand and the shifter carry-out.
func (e *Emulator) operand2(inst *insts.Instruction) (uint32, bool) {
	carryIn := e.regFile.CPSR.C

	if inst.IsImm {
		return inst.Imm, carryIn
	}

	amount := inst.ShiftAmount
	if inst.ShiftByReg {
		amount = uint8(e.regFile.ReadReg(inst.Rs) & 0x1F)
	}

	res := e.shifter.Shift(e.regFile.ReadReg(inst.Rm), inst.ShiftType, amount, carryIn)
	return res.Result, res.Carry
}

func (e *Emulator) execDataProcessing(inst *insts.Instruction) {
	op1 := e.regFile.ReadReg(inst.Rn)
	op2, shiftCarry := e.operand2(inst)

	res := e.alu.Compute(op1, op2, inst.AluOp, e.regFile.CPSR.C)

	if inst.RegWrite {
		e.regFile.WriteReg(inst.Rd, res.Result)
	}
	if inst.SetFlags {
		e.regFile.CPSR = DataProcessingFlags(inst.AluOp, res, shiftCarry, e.regFile.CPSR)
	}
}

func (e *Emulator) execMultiply(inst *insts.Instruction) {
	result := e.regFile.ReadReg(inst.Rm) * e.regFile.ReadReg(inst.Rs)
	e.regFile.WriteReg(inst.Rd, result)

	if inst.SetFlags {
		e.regFile.CPSR.N = Negative(result)
		e.regFile.CPSR.Z = Zero(result)
	}
}

func (e *Emulator) execLoadStore(inst *insts.Instruction) {
	base := e.regFile.ReadReg(inst.Rn)

	var offset uint32
	if inst.RegOffset {
		res := e.shifter.Shift(e.regFile.ReadReg(inst.Rm), inst.ShiftType,
			inst.ShiftAmount, e.regFile.CPSR.C)
		offset = res.Result
	} else {
		offset = inst.Imm
	}

	addr := base + offset
	if !inst.AddOffset {
		addr = base - offset
	}

	switch {
	case inst.MemRead && inst.Byte:
		e.regFile.WriteReg(inst.Rd, uint32(e.bus.Read8(addr)))
	case inst.MemRead:
		e.regFile.WriteReg(inst.Rd, e.bus.Read32(addr))
	case inst.Byte:
		e.bus.Write8(addr, uint8(e.regFile.ReadReg(inst.Rd)))
	default:
		e.bus.Write32(addr, e.regFile.ReadReg(inst.Rd))
	}
}

func (e *Emulator) execBranch(inst *insts.Instruction) {
	if inst.Link {
		e.regFile.WriteReg(insts.LinkRegister, e.pc+4)
	}

	// Offsets are encoded relative to PC+8, where the hardware fetch
	// pipeline has advanced by the time the branch executes.
	target := uint32(int64(e.pc) + 8 + int64(inst.BranchOffset))

	if e.haltOnSelfLoop && target == e.pc {
		e.halted = true
	}
	e.pc = target
}

// DataProcessingFlags derives the new CPSR after a flag-setting
// data-processing operation. Arithmetic operations take C and V from the
// ALU; logical operations take C from the shifter carry-out and leave V
// unchanged.
func DataProcessingFlags(op insts.AluOp, res ALUResult, shiftCarry bool, old Flags) Flags {
	flags := Flags{
		N: Negative(res.Result),
		Z: Zero(res.Result),
	}

	switch op {
	case insts.OpSUB, insts.OpRSB, insts.OpADD, insts.OpADC,
		insts.OpSBC, insts.OpRSC, insts.OpCMP, insts.OpCMN:
		flags.C = res.Carry
		flags.V = res.Overflow
	default:
		flags.C = shiftCarry
		flags.V = old.V
	}

	return flags
}
