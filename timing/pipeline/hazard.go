package pipeline

// ForwardSource indicates where a forwarded operand value should come from.
type ForwardSource int

const (
	// ForwardNone means no forwarding needed - use the register file value
	// read at decode.
	ForwardNone ForwardSource = iota
	// ForwardFromEXMEM means forward the result of the instruction now in
	// the MEM stage, held in the EX/MEM pipeline register.
	ForwardFromEXMEM
	// ForwardFromMEMWB means forward the result of the instruction now in
	// the WB stage, held in the MEM/WB pipeline register.
	ForwardFromMEMWB
)

// ForwardingResult contains forwarding decisions for the operands an
// instruction can consume in execute.
type ForwardingResult struct {
	// ForwardRn specifies the forwarding source for the Rn operand.
	ForwardRn ForwardSource
	// ForwardRm specifies the forwarding source for the Rm operand.
	ForwardRm ForwardSource
	// ForwardRs specifies the forwarding source for the shift-amount
	// register of register-specified shifts.
	ForwardRs ForwardSource
	// ForwardRd specifies the forwarding source for the store data register.
	ForwardRd ForwardSource
}

// Any reports whether any operand is forwarded.
func (f ForwardingResult) Any() bool {
	return f.ForwardRn != ForwardNone || f.ForwardRm != ForwardNone ||
		f.ForwardRs != ForwardNone || f.ForwardRd != ForwardNone
}

// StallResult contains stall and flush control signals for one cycle.
// Flush takes precedence over stall at the register it targets; a stall at
// a different stage is independent.
type StallResult struct {
	// StallIF indicates the IF stage should hold its current instruction.
	StallIF bool
	// StallID indicates the ID stage should hold.
	StallID bool
	// InsertBubbleEX indicates a bubble should enter the EX stage.
	InsertBubbleEX bool
	// FlushIF indicates the fetched instruction should be squashed.
	FlushIF bool
	// FlushID indicates the decoded instruction should be squashed.
	FlushID bool
}

// HazardUnit detects data hazards and determines forwarding and stall
// signals. It is a pure function of the latched pipeline register
// contents and holds no state of its own.
//
// No register index is exempt from forwarding: the register file has no
// hardwired zero register, so R0 participates in hazards like any other
// index.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// DetectForwarding determines forwarding for the instruction about to
// execute. Values written back this cycle reach decode through the
// register file because writeback runs first in the tick, so only the
// EX/MEM and MEM/WB registers need explicit paths.
func (h *HazardUnit) DetectForwarding(
	idex *IDEXRegister,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardingResult {
	result := ForwardingResult{}

	if !idex.Valid || idex.Inst == nil {
		return result
	}

	inst := idex.Inst
	if inst.UsesRn {
		result.ForwardRn = h.detectForwardForReg(idex.Rn, exmem, memwb)
	}
	if inst.UsesRm {
		result.ForwardRm = h.detectForwardForReg(idex.Rm, exmem, memwb)
	}
	if inst.UsesRs {
		result.ForwardRs = h.detectForwardForReg(idex.Rs, exmem, memwb)
	}
	if idex.MemWrite {
		// For stores, Rd holds the data to be written.
		result.ForwardRd = h.detectForwardForReg(idex.Rd, exmem, memwb)
	}

	return result
}

// detectForwardForReg checks if a specific register needs forwarding.
// EX/MEM has priority over MEM/WB: it carries the more recent value. A
// load in EX/MEM never forwards; the load-use stall guarantees its
// consumer is at least one stage further back.
func (h *HazardUnit) detectForwardForReg(
	reg uint8,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardSource {
	if exmem.Valid && exmem.RegWrite && !exmem.MemRead && exmem.Rd == reg {
		return ForwardFromEXMEM
	}

	if memwb.Valid && memwb.RegWrite && memwb.Rd == reg {
		return ForwardFromMEMWB
	}

	return ForwardNone
}

// DetectLoadUseHazard detects the one hazard forwarding cannot resolve: a
// load in EX whose destination is a source of the instruction in decode.
// loadRd is the load's destination; the remaining arguments describe the
// operands the decoded instruction actually reads.
func (h *HazardUnit) DetectLoadUseHazard(
	loadRd uint8,
	nextRn, nextRm, nextRs, nextRd uint8,
	usesRn, usesRm, usesRs, usesStoreData bool,
) bool {
	if usesRn && loadRd == nextRn {
		return true
	}
	if usesRm && loadRd == nextRm {
		return true
	}
	if usesRs && loadRd == nextRs {
		return true
	}
	if usesStoreData && loadRd == nextRd {
		return true
	}
	return false
}

// ComputeStalls composes stall and flush signals from the hazard
// conditions of one cycle.
func (h *HazardUnit) ComputeStalls(loadUseHazard bool, branchTaken bool) StallResult {
	result := StallResult{}

	// Load-use hazard: hold IF and ID for one cycle, insert a bubble in EX.
	if loadUseHazard {
		result.StallIF = true
		result.StallID = true
		result.InsertBubbleEX = true
	}

	// Taken branch resolved in EX: squash the two younger in-flight
	// instructions, currently in fetch and decode.
	if branchTaken {
		result.FlushIF = true
		result.FlushID = true
	}

	return result
}

// GetForwardedValue returns the operand value to use given a forwarding
// decision. The MEM/WB register must be the pre-writeback snapshot saved
// at the start of the tick.
func (h *HazardUnit) GetForwardedValue(
	forward ForwardSource,
	originalValue uint32,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) uint32 {
	switch forward {
	case ForwardFromEXMEM:
		return exmem.ALUResult
	case ForwardFromMEMWB:
		return memwb.WriteData()
	default:
		return originalValue
	}
}
