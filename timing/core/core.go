// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline implementation to provide a high-level interface.
package core

import (
	"github.com/sarchlab/arm7sim/emu"
	"github.com/sarchlab/arm7sim/mem"
	"github.com/sarchlab/arm7sim/timing/pipeline"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of stall cycles.
	Stalls uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// CPI is the cycles per retired instruction.
	CPI float64
}

// Core is a cycle-accurate CPU core. It wraps a 5-stage pipeline over a
// register file and a memory bus and provides a simple run interface.
type Core struct {
	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	regFile *emu.RegFile
	bus     *mem.Bus
}

// NewCore creates a new Core on the given register file and bus. Options
// are forwarded to the pipeline.
func NewCore(regFile *emu.RegFile, bus *mem.Bus, opts ...pipeline.PipelineOption) *Core {
	return &Core{
		Pipeline: pipeline.NewPipeline(regFile, bus, opts...),
		regFile:  regFile,
		bus:      bus,
	}
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// PC returns the current program counter.
func (c *Core) PC() uint32 {
	return c.Pipeline.PC()
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() {
	c.Pipeline.Tick()
}

// Halted reports whether the core has halted on a self-loop branch.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Registers returns a snapshot of the register file.
func (c *Core) Registers() [emu.NumRegs]uint32 {
	return c.Pipeline.Registers()
}

// Flags returns the current CPSR flags.
func (c *Core) Flags() emu.Flags {
	return c.Pipeline.Flags()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Instructions: pipeStats.Instructions,
		Stalls:       pipeStats.Stalls,
		Flushes:      pipeStats.Flushes,
		CPI:          pipeStats.CPI(),
	}
}

// RunCycles executes the core for at most the given number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.Pipeline.RunCycles(cycles)
}

// Reset restores the power-on state of the core. Memory is not touched.
func (c *Core) Reset() {
	c.Pipeline.Reset()
}
