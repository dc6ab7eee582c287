package pipeline

import (
	"github.com/sarchlab/arm7sim/emu"
	"github.com/sarchlab/arm7sim/insts"
	"github.com/sarchlab/arm7sim/mem"
)

// FetchStage handles instruction fetch from the memory bus.
type FetchStage struct {
	bus *mem.Bus
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(bus *mem.Bus) *FetchStage {
	return &FetchStage{bus: bus}
}

// Fetch reads the instruction word at the given PC. The baseline bus is
// single-cycle and always ready.
func (s *FetchStage) Fetch(pc uint32) uint32 {
	return s.bus.Fetch(pc)
}

// DecodeStage handles instruction decode and register read.
type DecodeStage struct {
	regFile *emu.RegFile
	decoder *insts.Decoder
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(regFile *emu.RegFile) *DecodeStage {
	return &DecodeStage{
		regFile: regFile,
		decoder: insts.NewDecoder(),
	}
}

// DecodeResult holds the result of the decode stage.
type DecodeResult struct {
	Inst *insts.Instruction

	// Register values as read this cycle. Writeback has already run, so a
	// value committed this cycle is visible here without forwarding.
	RnValue uint32
	RmValue uint32
	RsValue uint32
	RdValue uint32 // store data for STR

	Rd uint8
	Rn uint8
	Rm uint8
	Rs uint8

	MemRead  bool
	MemWrite bool
	RegWrite bool
	MemToReg bool
	IsBranch bool
}

// Decode decodes the instruction word and reads the register file.
func (s *DecodeStage) Decode(word uint32) DecodeResult {
	inst := s.decoder.Decode(word)

	return DecodeResult{
		Inst:     inst,
		RnValue:  s.regFile.ReadReg(inst.Rn),
		RmValue:  s.regFile.ReadReg(inst.Rm),
		RsValue:  s.regFile.ReadReg(inst.Rs),
		RdValue:  s.regFile.ReadReg(inst.Rd),
		Rd:       inst.Rd,
		Rn:       inst.Rn,
		Rm:       inst.Rm,
		Rs:       inst.Rs,
		MemRead:  inst.MemRead,
		MemWrite: inst.MemWrite,
		RegWrite: inst.RegWrite,
		MemToReg: inst.MemRead,
		IsBranch: inst.IsBranch,
	}
}

// Peek decodes an instruction word without reading registers, for hazard
// checks against the instruction still in IF/ID.
func (s *DecodeStage) Peek(word uint32) *insts.Instruction {
	return s.decoder.Decode(word)
}

// ExecuteStage runs the ALU and barrel shifter, resolves branches, and
// updates the flags register.
type ExecuteStage struct {
	regFile *emu.RegFile
	alu     *emu.ALU
	shifter *emu.Shifter
}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage(regFile *emu.RegFile) *ExecuteStage {
	return &ExecuteStage{
		regFile: regFile,
		alu:     emu.NewALU(),
		shifter: emu.NewShifter(),
	}
}

// ExecuteResult holds the result of the execute stage.
type ExecuteResult struct {
	ALUResult  uint32
	StoreValue uint32

	// CondPassed reports whether the instruction's condition was satisfied
	// by the flags visible at execute time. A failed condition turns the
	// instruction into a no-op that still occupies its slot.
	CondPassed bool

	// Branch resolution.
	BranchTaken  bool
	BranchTarget uint32
}

// Execute performs one instruction's execute-stage work using the
// forwarded operand values.
//
// Conditions are evaluated here, not at decode: the flags visible at EX
// are the ones produced by the immediately preceding instruction's
// execute, which is the timing the hardware exhibits for sequences like
// CMP followed by a conditional branch.
func (s *ExecuteStage) Execute(idex *IDEXRegister, rnVal, rmVal, rsVal, rdVal uint32) ExecuteResult {
	result := ExecuteResult{}
	inst := idex.Inst

	if inst == nil {
		return result
	}

	flags := s.regFile.CPSR
	result.CondPassed = insts.CondPassed(inst.Cond, flags.N, flags.Z, flags.C, flags.V)
	if !result.CondPassed {
		return result
	}

	switch {
	case inst.IsMultiply:
		result.ALUResult = rmVal * rsVal
		if inst.SetFlags {
			s.regFile.CPSR.N = emu.Negative(result.ALUResult)
			s.regFile.CPSR.Z = emu.Zero(result.ALUResult)
		}

	case inst.IsBranch:
		result.BranchTaken = true
		// Branch offsets are relative to PC+8.
		result.BranchTarget = uint32(int64(idex.PC) + 8 + int64(inst.BranchOffset))
		if inst.Link {
			result.ALUResult = idex.PC + 4 // return address
		}

	case inst.MemRead || inst.MemWrite:
		result.ALUResult = s.loadStoreAddress(inst, rnVal, rmVal, flags.C)
		result.StoreValue = rdVal

	case inst.Class == insts.ClassDataProcessing:
		op2, shiftCarry := s.operand2(inst, rmVal, rsVal, flags.C)
		aluRes := s.alu.Compute(rnVal, op2, inst.AluOp, flags.C)
		result.ALUResult = aluRes.Result
		if inst.SetFlags {
			s.regFile.CPSR = emu.DataProcessingFlags(inst.AluOp, aluRes, shiftCarry, flags)
		}
	}

	return result
}

// operand2 computes the second ALU operand and the shifter carry-out from
// already-forwarded register values.
func (s *ExecuteStage) operand2(inst *insts.Instruction, rmVal, rsVal uint32, carryIn bool) (uint32, bool) {
	if inst.IsImm {
		return inst.Imm, carryIn
	}

	amount := inst.ShiftAmount
	if inst.ShiftByReg {
		amount = uint8(rsVal & 0x1F)
	}

	res := s.shifter.Shift(rmVal, inst.ShiftType, amount, carryIn)
	return res.Result, res.Carry
}

// loadStoreAddress computes the effective address for a load or store.
func (s *ExecuteStage) loadStoreAddress(inst *insts.Instruction, base, rmVal uint32, carryIn bool) uint32 {
	var offset uint32
	if inst.RegOffset {
		res := s.shifter.Shift(rmVal, inst.ShiftType, inst.ShiftAmount, carryIn)
		offset = res.Result
	} else {
		offset = inst.Imm
	}

	if inst.AddOffset {
		return base + offset
	}
	return base - offset
}

// MemoryStage handles memory load/store operations on the bus.
type MemoryStage struct {
	bus *mem.Bus
}

// NewMemoryStage creates a new memory stage.
func NewMemoryStage(bus *mem.Bus) *MemoryStage {
	return &MemoryStage{bus: bus}
}

// MemoryResult holds the result of the memory stage.
type MemoryResult struct {
	MemData uint32
}

// Access performs the memory read or write for the instruction in EX/MEM.
func (s *MemoryStage) Access(exmem *EXMEMRegister) MemoryResult {
	result := MemoryResult{}

	if !exmem.Valid {
		return result
	}

	switch {
	case exmem.MemRead && exmem.ByteWide:
		result.MemData = uint32(s.bus.Read8(exmem.ALUResult))
	case exmem.MemRead:
		result.MemData = s.bus.Read32(exmem.ALUResult)
	case exmem.MemWrite && exmem.ByteWide:
		s.bus.Write8(exmem.ALUResult, uint8(exmem.StoreValue))
	case exmem.MemWrite:
		s.bus.Write32(exmem.ALUResult, exmem.StoreValue)
	}

	return result
}

// WritebackStage commits results to the register file. It is the single
// writer; decode-stage reads in the same tick see its effect because it
// runs first.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback writes the result to the register file.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) {
	if !memwb.Valid || !memwb.RegWrite {
		return
	}
	s.regFile.WriteReg(memwb.Rd, memwb.WriteData())
}
