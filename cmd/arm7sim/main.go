// Package main provides the entry point for arm7sim, a cycle-accurate
// ARM7-style pipelined CPU simulator.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/k0kubun/pp/v3"

	"github.com/sarchlab/arm7sim/emu"
	"github.com/sarchlab/arm7sim/loader"
	"github.com/sarchlab/arm7sim/mem"
	"github.com/sarchlab/arm7sim/timing/core"
	"github.com/sarchlab/arm7sim/timing/latency"
	"github.com/sarchlab/arm7sim/timing/pipeline"
)

var (
	timing     = flag.Bool("timing", false, "Run the cycle-accurate pipeline model instead of functional emulation")
	configPath = flag.String("config", "", "Path to timing configuration JSON file")
	maxCycles  = flag.Uint64("cycles", 1_000_000, "Maximum number of cycles (or instructions in functional mode) to simulate")
	verbose    = flag.Bool("v", false, "Verbose output, including a final machine state dump")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: arm7sim [options] <program.bin|program.hex>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)
		fmt.Printf("Segments: %d (%d bytes)\n", len(prog.Segments), prog.Size())
	}

	sys, err := mem.NewSystem(mem.WithUARTOutput(os.Stdout))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building system: %v\n", err)
		os.Exit(1)
	}
	prog.Apply(sys)

	if *timing {
		runTiming(prog, sys)
	} else {
		runEmulation(prog, sys)
	}
}

// runEmulation runs the program in functional emulation mode.
func runEmulation(prog *loader.Program, sys *mem.System) {
	emulator := emu.NewEmulator(
		sys.Bus,
		emu.WithEntryPoint(prog.EntryPoint),
		emu.WithHaltOnSelfLoop(),
	)

	emulator.RunCycles(*maxCycles)

	if *verbose {
		fmt.Printf("\nInstructions executed: %d\n", emulator.InstructionCount())
		fmt.Printf("Halted: %v\n", emulator.Halted())
		dumpState(emulator.RegFile().Snapshot(), emulator.RegFile().CPSR, emulator.PC())
	}
}

// runTiming runs the program on the cycle-accurate pipeline model.
func runTiming(prog *loader.Program, sys *mem.System) {
	timingConfig := latency.DefaultTimingConfig()
	if *configPath != "" {
		var err error
		timingConfig, err = latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
	}

	opts := append(timingConfig.PipelineOptions(), pipeline.WithHaltOnSelfLoop())

	regFile := &emu.RegFile{}
	cpu := core.NewCore(regFile, sys.Bus, opts...)
	cpu.SetPC(prog.EntryPoint)

	cpu.RunCycles(*maxCycles)

	stats := cpu.Stats()
	fmt.Printf("\nTotal Instructions: %d\n", stats.Instructions)
	fmt.Printf("Total Cycles: %d\n", stats.Cycles)
	fmt.Printf("CPI: %.2f\n", stats.CPI)
	fmt.Printf("\nPipeline Events:\n")
	fmt.Printf("  Stalls:  %d\n", stats.Stalls)
	fmt.Printf("  Flushes: %d\n", stats.Flushes)

	pipeStats := cpu.Pipeline.Stats()
	if pipeStats.MemStalls > 0 {
		fmt.Printf("  Memory stalls: %d\n", pipeStats.MemStalls)
	}
	if pipeStats.BranchPredictions > 0 {
		fmt.Printf("\nBranch Prediction:\n")
		fmt.Printf("  Predictions:    %d\n", pipeStats.BranchPredictions)
		fmt.Printf("  Correct:        %d\n", pipeStats.BranchCorrect)
		fmt.Printf("  Mispredictions: %d\n", pipeStats.BranchMispredictions)
	}

	if *verbose {
		dumpState(cpu.Registers(), cpu.Flags(), cpu.PC())
		pp.Fprintf(os.Stderr, "IF/ID:  %v\n", cpu.Pipeline.GetIFID())
		pp.Fprintf(os.Stderr, "ID/EX:  %v\n", cpu.Pipeline.GetIDEX())
		pp.Fprintf(os.Stderr, "EX/MEM: %v\n", cpu.Pipeline.GetEXMEM())
		pp.Fprintf(os.Stderr, "MEM/WB: %v\n", cpu.Pipeline.GetMEMWB())
	}
}

// dumpState prints the architectural state: registers, flags, and PC.
func dumpState(regs [emu.NumRegs]uint32, flags emu.Flags, pc uint32) {
	fmt.Printf("\nFinal state:\n")
	for i, v := range regs {
		fmt.Printf("  R%-2d = 0x%08X", i, v)
		if (i+1)%4 == 0 {
			fmt.Println()
		}
	}
	fmt.Printf("  PC  = 0x%08X\n", pc)
	fmt.Printf("  N=%v Z=%v C=%v V=%v\n", flags.N, flags.Z, flags.C, flags.V)
}
