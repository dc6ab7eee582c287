package pipeline

import (
	"github.com/sarchlab/arm7sim/emu"
	"github.com/sarchlab/arm7sim/mem"
	"github.com/sarchlab/arm7sim/timing/cache"
)

// unconditionalBranchTarget checks if an instruction word is an always-taken
// branch (B or BL with the AL condition) and returns its target if so. Used
// by the branch prediction extension to resolve unconditional branches at
// fetch time.
func unconditionalBranchTarget(word uint32, pc uint32) (bool, uint32) {
	if (word>>28)&0xF != 0b1110 || (word>>25)&0x7 != 0b101 {
		return false, 0
	}
	offset := int32(word&0xFFFFFF) << 8 >> 8
	return true, uint32(int64(pc) + 8 + int64(offset)*4)
}

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions completed (retired).
	Instructions uint64
	// Stalls is the number of stall cycles.
	Stalls uint64
	// Flushes is the number of pipeline flushes from taken or mispredicted
	// branches.
	Flushes uint64
	// MemStalls is the number of stalls due to memory latency.
	MemStalls uint64
	// DataHazards is the number of RAW hazards resolved by forwarding.
	DataHazards uint64
	// BranchPredictions is the total number of branch predictions made
	// (prediction extension only).
	BranchPredictions uint64
	// BranchCorrect is the number of correct branch predictions.
	BranchCorrect uint64
	// BranchMispredictions is the number of branch mispredictions.
	BranchMispredictions uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithBranchPredictor enables speculative fetch with a bimodal predictor
// and BTB. Without it, every taken branch costs the architectural two-cycle
// flush.
func WithBranchPredictor(config BranchPredictorConfig) PipelineOption {
	return func(p *Pipeline) {
		p.branchPredictor = NewBranchPredictor(config)
		p.usePredictor = true
	}
}

// WithICache enables an L1 instruction cache with the given configuration.
// Fetch misses deliver bubbles until the miss is serviced.
func WithICache(config cache.Config) PipelineOption {
	return func(p *Pipeline) {
		icache := cache.New(config, cache.NewBusBacking(p.bus))
		p.cachedFetchStage = NewCachedFetchStage(icache)
		p.useICache = true
	}
}

// WithDCache enables an L1 data cache with the given configuration.
// Misses stall the memory stage and everything behind it.
func WithDCache(config cache.Config) PipelineOption {
	return func(p *Pipeline) {
		dcache := cache.New(config, cache.NewBusBacking(p.bus))
		p.cachedMemoryStage = NewCachedMemoryStage(dcache)
		p.useDCache = true
	}
}

// WithMemoryLatency models a memory bus that takes the given number of
// cycles per data access instead of the baseline single cycle. Accesses
// stall the memory stage and everything behind it.
func WithMemoryLatency(cycles uint64) PipelineOption {
	return func(p *Pipeline) {
		p.memLatency = cycles
	}
}

// WithHaltOnSelfLoop makes the pipeline halt once a taken branch targets
// its own address and the older in-flight instructions have drained. The
// instruction set has no halt opcode; programs spin on a self-branch to
// signal completion.
func WithHaltOnSelfLoop() PipelineOption {
	return func(p *Pipeline) {
		p.haltOnSelfLoop = true
	}
}

// Pipeline implements the 5-stage pipelined CPU model:
// Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MEM) -> Writeback (WB).
//
// One Tick is one rising clock edge. All stage outputs are computed from
// the pre-edge pipeline register contents and latched together at the end
// of the tick, reproducing the conceptual simultaneity of the hardware
// registers. Stalls hold registers, flushes replace them with bubbles;
// registers are never partially patched.
type Pipeline struct {
	// Pipeline registers.
	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister

	// Pipeline stages.
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	// Cached pipeline stages (optional).
	cachedFetchStage  *CachedFetchStage
	cachedMemoryStage *CachedMemoryStage
	useICache         bool
	useDCache         bool

	// Hazard detection.
	hazardUnit *HazardUnit

	// Branch prediction (optional).
	branchPredictor *BranchPredictor
	usePredictor    bool

	// Non-cached memory latency modeling.
	memLatency   uint64
	memWait      uint64
	memPending   bool
	memPendingPC uint32

	// Shared resources.
	regFile *emu.RegFile
	bus     *mem.Bus

	// Program counter, owned by fetch. Always word-aligned.
	pc uint32

	// Statistics.
	stats Statistics

	// Self-loop halt state.
	haltOnSelfLoop bool
	haltCountdown  int
	halted         bool
}

// NewPipeline creates a new 5-stage pipeline over the given register file
// and memory bus. The initial state is the reset state: PC at the reset
// vector, all pipeline registers bubbles.
func NewPipeline(regFile *emu.RegFile, bus *mem.Bus, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetchStage:     NewFetchStage(bus),
		decodeStage:    NewDecodeStage(regFile),
		executeStage:   NewExecuteStage(regFile),
		memoryStage:    NewMemoryStage(bus),
		writebackStage: NewWritebackStage(regFile),
		hazardUnit:     NewHazardUnit(),
		regFile:        regFile,
		bus:            bus,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// PC returns the current program counter.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// SetPC sets the program counter, forcing word alignment.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc &^ 0x3
}

// Flags returns the current CPSR flags.
func (p *Pipeline) Flags() emu.Flags {
	return p.regFile.CPSR
}

// Registers returns a snapshot of the register file.
func (p *Pipeline) Registers() [emu.NumRegs]uint32 {
	return p.regFile.Snapshot()
}

// GetIFID returns the IF/ID pipeline register.
func (p *Pipeline) GetIFID() *IFIDRegister {
	return &p.ifid
}

// GetIDEX returns the ID/EX pipeline register.
func (p *Pipeline) GetIDEX() *IDEXRegister {
	return &p.idex
}

// GetEXMEM returns the EX/MEM pipeline register.
func (p *Pipeline) GetEXMEM() *EXMEMRegister {
	return &p.exmem
}

// GetMEMWB returns the MEM/WB pipeline register.
func (p *Pipeline) GetMEMWB() *MEMWBRegister {
	return &p.memwb
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// ICacheStats returns instruction cache statistics; ok is false when no
// I-cache is configured.
func (p *Pipeline) ICacheStats() (stats cache.Statistics, ok bool) {
	if !p.useICache {
		return cache.Statistics{}, false
	}
	return p.cachedFetchStage.CacheStats(), true
}

// DCacheStats returns data cache statistics; ok is false when no D-cache
// is configured.
func (p *Pipeline) DCacheStats() (stats cache.Statistics, ok bool) {
	if !p.useDCache {
		return cache.Statistics{}, false
	}
	return p.cachedMemoryStage.CacheStats(), true
}

// CycleCount returns the number of cycles simulated.
func (p *Pipeline) CycleCount() uint64 {
	return p.stats.Cycles
}

// Halted reports whether a self-loop branch has been detected and drained.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Reset restores the power-on state: PC at the reset vector, all pipeline
// registers bubbles, registers and flags zero, statistics cleared. Memory
// contents are owned by the bus and are not touched.
func (p *Pipeline) Reset() {
	p.ifid.Clear()
	p.idex.Clear()
	p.exmem.Clear()
	p.memwb.Clear()
	p.regFile.Reset()
	p.pc = 0
	p.stats = Statistics{}
	p.memWait = 0
	p.memPending = false
	p.haltCountdown = 0
	p.halted = false

	if p.usePredictor {
		p.branchPredictor.Reset()
	}
	if p.useICache {
		p.cachedFetchStage.Reset()
	}
	if p.useDCache {
		p.cachedMemoryStage.Reset()
	}
}

// RunCycles executes the pipeline for at most the given number of cycles.
// Returns true if still running, false if halted. The boundary between two
// Ticks is always a safe stopping point; no operation is ever mid-cycle
// from the outside.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Tick executes one pipeline cycle.
//
// Stages are evaluated in reverse order (WB, MEM, EX, IF, ID) against the
// pre-edge register contents; the new values are latched together at the
// end. Hazard decisions for the cycle are computed first from the same
// pre-edge state:
//   - RAW hazards are resolved by forwarding from EX/MEM and MEM/WB.
//   - A load-use hazard holds IF and ID for one cycle and bubbles EX.
//   - A taken branch (or misprediction, with the predictor extension)
//     resolves in EX and squashes the instructions in fetch and decode.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}

	p.stats.Cycles++

	// Hazard decisions from pre-edge state.
	forwarding := p.hazardUnit.DetectForwarding(&p.idex, &p.exmem, &p.memwb)
	if forwarding.Any() {
		p.stats.DataHazards++
	}
	loadUseHazard := p.detectLoadUse()

	branchRedirect := false
	var branchTarget uint32

	// Stage 5: Writeback.
	savedMEMWB := p.memwb
	p.writebackStage.Writeback(&p.memwb)
	if p.memwb.Valid {
		p.stats.Instructions++
	}

	// Stage 4: Memory.
	var nextMEMWB MEMWBRegister
	memStall := false
	if p.exmem.Valid {
		var memResult MemoryResult
		memResult, memStall = p.accessMemory()

		if !memStall {
			nextMEMWB = MEMWBRegister{
				Valid:     true,
				PC:        p.exmem.PC,
				Inst:      p.exmem.Inst,
				ALUResult: p.exmem.ALUResult,
				MemData:   memResult.MemData,
				Rd:        p.exmem.Rd,
				RegWrite:  p.exmem.RegWrite,
				MemToReg:  p.exmem.MemToReg,
			}
		}
	}

	// Stage 3: Execute.
	var nextEXMEM EXMEMRegister
	if p.idex.Valid && !memStall {
		rnVal := p.hazardUnit.GetForwardedValue(
			forwarding.ForwardRn, p.idex.RnValue, &p.exmem, &savedMEMWB)
		rmVal := p.hazardUnit.GetForwardedValue(
			forwarding.ForwardRm, p.idex.RmValue, &p.exmem, &savedMEMWB)
		rsVal := p.hazardUnit.GetForwardedValue(
			forwarding.ForwardRs, p.idex.RsValue, &p.exmem, &savedMEMWB)
		rdVal := p.hazardUnit.GetForwardedValue(
			forwarding.ForwardRd, p.idex.RdValue, &p.exmem, &savedMEMWB)

		execResult := p.executeStage.Execute(&p.idex, rnVal, rmVal, rsVal, rdVal)

		branchRedirect, branchTarget = p.resolveBranch(execResult)

		condPassed := execResult.CondPassed
		nextEXMEM = EXMEMRegister{
			Valid:      true,
			PC:         p.idex.PC,
			Inst:       p.idex.Inst,
			ALUResult:  execResult.ALUResult,
			StoreValue: execResult.StoreValue,
			Rd:         p.idex.Rd,
			MemRead:    p.idex.MemRead && condPassed,
			MemWrite:   p.idex.MemWrite && condPassed,
			ByteWide:   p.idex.Inst != nil && p.idex.Inst.Byte,
			RegWrite:   p.idex.RegWrite && condPassed,
			MemToReg:   p.idex.MemToReg && condPassed,
		}
	}

	// Compose stall and flush signals. A memory stall holds everything
	// behind the memory stage; a flush from a resolved branch composes
	// independently and wins at the registers it targets.
	stallResult := p.hazardUnit.ComputeStalls(loadUseHazard || memStall, branchRedirect)

	// Stage 1: Fetch.
	var nextIFID IFIDRegister
	if !stallResult.StallIF && !stallResult.FlushIF && !memStall {
		nextIFID = p.fetch()
	} else if (stallResult.StallIF || memStall) && !stallResult.FlushIF {
		nextIFID = p.ifid
		p.stats.Stalls++
	}

	// Stage 2: Decode.
	var nextIDEX IDEXRegister
	if p.ifid.Valid && !stallResult.StallID && !stallResult.FlushID && !memStall {
		dec := p.decodeStage.Decode(p.ifid.InstructionWord)
		nextIDEX = IDEXRegister{
			Valid:           true,
			PC:              p.ifid.PC,
			Inst:            dec.Inst,
			RnValue:         dec.RnValue,
			RmValue:         dec.RmValue,
			RsValue:         dec.RsValue,
			RdValue:         dec.RdValue,
			Rd:              dec.Rd,
			Rn:              dec.Rn,
			Rm:              dec.Rm,
			Rs:              dec.Rs,
			MemRead:         dec.MemRead,
			MemWrite:        dec.MemWrite,
			RegWrite:        dec.RegWrite,
			MemToReg:        dec.MemToReg,
			IsBranch:        dec.IsBranch,
			PredictedTaken:  p.ifid.PredictedTaken,
			PredictedTarget: p.ifid.PredictedTarget,
		}
	} else if (stallResult.StallID || memStall) && !stallResult.FlushID {
		nextIDEX = p.idex
	}

	// A resolved branch redirects the PC and squashes the two younger
	// in-flight instructions.
	if branchRedirect {
		p.pc = branchTarget
		nextIFID.Clear()
		nextIDEX.Clear()
		p.stats.Flushes++
	}

	// Latch all pipeline registers together.
	if !memStall {
		p.memwb = nextMEMWB
		p.exmem = nextEXMEM
		if stallResult.InsertBubbleEX {
			p.idex.Clear()
		} else {
			p.idex = nextIDEX
		}
	} else {
		// The retiring instruction left WB this cycle; MEM has not
		// delivered, so a bubble follows it.
		p.memwb.Clear()
	}
	p.ifid = nextIFID

	// Drain countdown after a self-loop halt was detected.
	if p.haltCountdown > 0 {
		p.haltCountdown--
		if p.haltCountdown == 0 {
			p.halted = true
		}
	}
}

// detectLoadUse checks for a load in EX whose destination is needed by the
// instruction sitting in decode.
func (p *Pipeline) detectLoadUse() bool {
	if !p.idex.Valid || !p.idex.MemRead || !p.ifid.Valid {
		return false
	}

	next := p.decodeStage.Peek(p.ifid.InstructionWord)
	return p.hazardUnit.DetectLoadUseHazard(
		p.idex.Rd,
		next.Rn, next.Rm, next.Rs, next.Rd,
		next.UsesRn, next.UsesRm, next.UsesRs, next.MemWrite,
	)
}

// accessMemory runs the memory stage, applying the D-cache or the
// wait-state model when configured. The baseline bus is single-cycle.
func (p *Pipeline) accessMemory() (MemoryResult, bool) {
	if p.useDCache {
		result, stall := p.cachedMemoryStage.Access(&p.exmem)
		if stall {
			p.stats.MemStalls++
		}
		return result, stall
	}

	if p.memLatency > 1 && (p.exmem.MemRead || p.exmem.MemWrite) {
		if !p.memPending || p.memPendingPC != p.exmem.PC {
			p.memPending = true
			p.memPendingPC = p.exmem.PC
			p.memWait = p.memLatency - 1
		}
		if p.memWait > 0 {
			p.memWait--
			p.stats.MemStalls++
			return MemoryResult{}, true
		}
		p.memPending = false
	}

	return p.memoryStage.Access(&p.exmem), false
}

// fetch runs the fetch stage, consulting the I-cache and branch predictor
// when enabled, and advances the PC.
func (p *Pipeline) fetch() IFIDRegister {
	var word uint32
	if p.useICache {
		var ok, stall bool
		word, ok, stall = p.cachedFetchStage.Fetch(p.pc)
		if stall || !ok {
			// Miss in flight: deliver a bubble and hold the PC.
			p.stats.Stalls++
			return IFIDRegister{}
		}
	} else {
		word = p.fetchStage.Fetch(p.pc)
	}

	next := IFIDRegister{
		Valid:           true,
		PC:              p.pc,
		InstructionWord: word,
	}

	if p.usePredictor {
		pred := p.branchPredictor.Predict(p.pc)

		// Unconditional branches are resolved at fetch without waiting for
		// BTB training.
		if uncond, target := unconditionalBranchTarget(word, p.pc); uncond {
			pred.Taken = true
			pred.Target = target
			pred.TargetKnown = true
		}

		if pred.Taken && pred.TargetKnown {
			next.PredictedTaken = true
			next.PredictedTarget = pred.Target
			p.pc = pred.Target
			return next
		}
	}

	p.pc += 4
	return next
}

// resolveBranch turns an execute result into a redirect decision, updating
// predictor state and the halt countdown as needed.
func (p *Pipeline) resolveBranch(execResult ExecuteResult) (bool, uint32) {
	if p.idex.Inst == nil || !p.idex.IsBranch {
		return false, 0
	}

	actualTaken := execResult.BranchTaken
	actualTarget := execResult.BranchTarget

	if actualTaken && p.haltOnSelfLoop && actualTarget == p.idex.PC && p.haltCountdown == 0 {
		// Two more ticks drain the instructions already past execute.
		p.haltCountdown = 3
	}

	if !p.usePredictor {
		return actualTaken, actualTarget
	}

	p.stats.BranchPredictions++

	mispredicted := false
	if actualTaken {
		if !p.idex.PredictedTaken || p.idex.PredictedTarget != actualTarget {
			mispredicted = true
		}
	} else if p.idex.PredictedTaken {
		mispredicted = true
	}

	p.branchPredictor.Update(p.idex.PC, actualTaken, actualTarget)

	if !mispredicted {
		p.stats.BranchCorrect++
		return false, 0
	}

	p.stats.BranchMispredictions++
	target := actualTarget
	if !actualTaken {
		target = p.idex.PC + 4 // resume on the fall-through path
	}
	return true, target
}
