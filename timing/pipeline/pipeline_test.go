package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/arm7sim/emu"
	"github.com/sarchlab/arm7sim/mem"
	"github.com/sarchlab/arm7sim/timing/cache"
	"github.com/sarchlab/arm7sim/timing/pipeline"
)

var _ = Describe("Pipeline", func() {
	var (
		sys     *mem.System
		regFile *emu.RegFile
		pipe    *pipeline.Pipeline
	)

	BeforeEach(func() {
		var err error
		sys, err = mem.NewSystem()
		Expect(err).NotTo(HaveOccurred())
		regFile = &emu.RegFile{}
	})

	// load writes the program into program RAM, builds a pipeline with
	// self-loop halting, and points it at the first instruction.
	load := func(words []uint32, opts ...pipeline.PipelineOption) {
		for i, w := range words {
			sys.Bus.Write32(mem.ProgramRAMBase+uint32(i)*4, w)
		}
		opts = append(opts, pipeline.WithHaltOnSelfLoop())
		pipe = pipeline.NewPipeline(regFile, sys.Bus, opts...)
		pipe.SetPC(mem.ProgramRAMBase)
	}

	// run executes until the self-loop halt and fails if it never comes.
	run := func() {
		Expect(pipe.RunCycles(1000)).To(BeFalse())
		Expect(pipe.Halted()).To(BeTrue())
	}

	Describe("Construction", func() {
		It("should create a pipeline with empty state", func() {
			pipe = pipeline.NewPipeline(regFile, sys.Bus)
			Expect(pipe).NotTo(BeNil())
			Expect(pipe.GetIFID().Valid).To(BeFalse())
			Expect(pipe.CycleCount()).To(Equal(uint64(0)))
		})

		It("should set and get the PC with word alignment", func() {
			pipe = pipeline.NewPipeline(regFile, sys.Bus)
			pipe.SetPC(0x1002)
			Expect(pipe.PC()).To(Equal(uint32(0x1000)))
		})
	})

	Describe("Forwarding", func() {
		It("should resolve a dependent ALU chain without stalls", func() {
			load([]uint32{
				0xE3A01005, // MOV R1, #5
				0xE281200A, // ADD R2, R1, #10
				0xE282300F, // ADD R3, R2, #15
				0xEAFFFFFE, // B .
			})

			run()

			regs := pipe.Registers()
			Expect(regs[1]).To(Equal(uint32(5)))
			Expect(regs[2]).To(Equal(uint32(15)))
			Expect(regs[3]).To(Equal(uint32(30)))

			stats := pipe.Stats()
			Expect(stats.Stalls).To(Equal(uint64(0)))
			Expect(stats.Instructions).To(Equal(uint64(4)))
			Expect(stats.Cycles).To(Equal(uint64(8)))
			Expect(stats.DataHazards).To(BeNumerically(">=", 2))
		})

		It("should prefer the newest value when two producers are in flight", func() {
			load([]uint32{
				0xE3A01001, // MOV R1, #1
				0xE3A01002, // MOV R1, #2
				0xE281200A, // ADD R2, R1, #10
				0xEAFFFFFE, // B .
			})

			run()

			Expect(pipe.Registers()[2]).To(Equal(uint32(12)))
		})

		It("should forward store data to a store in execute", func() {
			load([]uint32{
				0xE3A01801, // MOV R1, #0x10000
				0xE3A00007, // MOV R0, #7
				0xE5810000, // STR R0, [R1]
				0xEAFFFFFE, // B .
			})

			run()

			Expect(sys.Bus.Read32(0x10000)).To(Equal(uint32(7)))
		})

		It("should forward the shift-amount register", func() {
			load([]uint32{
				0xE3A03004, // MOV R3, #4
				0xE3A01001, // MOV R1, #1
				0xE1A02311, // MOV R2, R1, LSL R3
				0xEAFFFFFE, // B .
			})

			run()

			Expect(pipe.Registers()[2]).To(Equal(uint32(16)))
		})
	})

	Describe("Load-use hazard", func() {
		It("should stall one cycle and still produce the right value", func() {
			sys.Bus.Write32(0x10000, 100)
			load([]uint32{
				0xE3A01801, // MOV R1, #0x10000
				0xE5910000, // LDR R0, [R1]
				0xE2802005, // ADD R2, R0, #5
				0xEAFFFFFE, // B .
			})

			run()

			regs := pipe.Registers()
			Expect(regs[0]).To(Equal(uint32(100)))
			Expect(regs[2]).To(Equal(uint32(105)))

			stats := pipe.Stats()
			Expect(stats.Stalls).To(Equal(uint64(1)))
			Expect(stats.Instructions).To(Equal(uint64(4)))
			Expect(stats.Cycles).To(Equal(uint64(9)))
		})

		It("should not stall when the load result is consumed later", func() {
			sys.Bus.Write32(0x10000, 100)
			load([]uint32{
				0xE3A01801, // MOV R1, #0x10000
				0xE5910000, // LDR R0, [R1]
				0xE3A03001, // MOV R3, #1 (independent)
				0xE2802005, // ADD R2, R0, #5
				0xEAFFFFFE, // B .
			})

			run()

			Expect(pipe.Registers()[2]).To(Equal(uint32(105)))
			Expect(pipe.Stats().Stalls).To(Equal(uint64(0)))
		})
	})

	Describe("Branches", func() {
		It("should flush the two younger instructions on a taken branch", func() {
			load([]uint32{
				0xE3A00001, // MOV R0, #1
				0xEA000001, // B +1 (skips two instructions)
				0xE3A01063, // MOV R1, #99 (squashed)
				0xE3A02063, // MOV R2, #99 (squashed)
				0xE3A03007, // MOV R3, #7
				0xEAFFFFFE, // B .
			})

			run()

			regs := pipe.Registers()
			Expect(regs[0]).To(Equal(uint32(1)))
			Expect(regs[1]).To(Equal(uint32(0)))
			Expect(regs[2]).To(Equal(uint32(0)))
			Expect(regs[3]).To(Equal(uint32(7)))

			stats := pipe.Stats()
			Expect(stats.Flushes).To(Equal(uint64(2))) // the skip and the halt loop
			Expect(stats.Instructions).To(Equal(uint64(4)))
			Expect(stats.Cycles).To(Equal(uint64(10)))
		})

		It("should see flags from the immediately preceding compare", func() {
			load([]uint32{
				0xE3A00003, // MOV R0, #3
				0xE3500003, // CMP R0, #3
				0x0A000001, // BEQ +1 (taken)
				0xE3A01063, // MOV R1, #99 (squashed)
				0xEAFFFFFE, // B . (never reached)
				0xE3A0202A, // MOV R2, #42
				0xEAFFFFFE, // B .
			})

			run()

			Expect(pipe.Registers()[1]).To(Equal(uint32(0)))
			Expect(pipe.Registers()[2]).To(Equal(uint32(42)))
			Expect(pipe.Flags().Z).To(BeTrue())
		})

		It("should fall through a branch whose condition fails", func() {
			load([]uint32{
				0xE3A00003, // MOV R0, #3
				0xE3500004, // CMP R0, #4
				0x0A000001, // BEQ +1 (not taken)
				0xE3A01001, // MOV R1, #1
				0xE3A02002, // MOV R2, #2
				0xEAFFFFFE, // B .
			})

			run()

			Expect(pipe.Registers()[1]).To(Equal(uint32(1)))
			Expect(pipe.Registers()[2]).To(Equal(uint32(2)))
		})

		It("should write the return address for BL", func() {
			load([]uint32{
				0xEB000001, // BL +1 (target 0x100C)
				0xE3A01063, // MOV R1, #99 (squashed)
				0xE3A02063, // MOV R2, #99 (squashed)
				0xE3A03001, // MOV R3, #1
				0xEAFFFFFE, // B .
			})

			run()

			regs := pipe.Registers()
			Expect(regs[14]).To(Equal(uint32(0x1004)))
			Expect(regs[1]).To(Equal(uint32(0)))
			Expect(regs[3]).To(Equal(uint32(1)))
		})
	})

	Describe("Conditional execution", func() {
		It("should turn a failed condition into a no-op that keeps its slot", func() {
			load([]uint32{
				0xE3A00003, // MOV R0, #3
				0xE3500003, // CMP R0, #3
				0x13A01063, // MOVNE R1, #99 (fails)
				0x03A02020, // MOVEQ R2, #32 (passes)
				0xEAFFFFFE, // B .
			})

			run()

			Expect(pipe.Registers()[1]).To(Equal(uint32(0)))
			Expect(pipe.Registers()[2]).To(Equal(uint32(32)))
			// The failed instruction still retires.
			Expect(pipe.Stats().Instructions).To(Equal(uint64(5)))
		})
	})

	Describe("Memory latency", func() {
		loadStoreProgram := []uint32{
			0xE3A01801, // MOV R1, #0x10000
			0xE3A0002A, // MOV R0, #42
			0xE5810000, // STR R0, [R1]
			0xE5912000, // LDR R2, [R1]
			0xEAFFFFFE, // B .
		}

		It("should stall the pipeline for configured wait states", func() {
			load(loadStoreProgram)
			run()
			baseline := pipe.Stats().Cycles

			regFile = &emu.RegFile{}
			load(loadStoreProgram, pipeline.WithMemoryLatency(3))
			run()
			slow := pipe.Stats()

			Expect(pipe.Registers()[2]).To(Equal(uint32(42)))
			Expect(slow.MemStalls).To(Equal(uint64(4))) // two extra cycles per access
			Expect(slow.Cycles).To(BeNumerically(">", baseline))
		})
	})

	Describe("Branch prediction", func() {
		countLoop := []uint32{
			0xE3A00000, // MOV R0, #0
			0xE2800001, // loop: ADD R0, R0, #1
			0xE350000A, // CMP R0, #10
			0x1AFFFFFC, // BNE loop
			0xEAFFFFFE, // B .
		}

		It("should still compute the right result", func() {
			load(countLoop, pipeline.WithBranchPredictor(pipeline.DefaultBranchPredictorConfig()))
			run()
			Expect(pipe.Registers()[0]).To(Equal(uint32(10)))
		})

		It("should save cycles on a loop-closing branch", func() {
			load(countLoop)
			run()
			withoutPredictor := pipe.Stats().Cycles

			regFile = &emu.RegFile{}
			load(countLoop, pipeline.WithBranchPredictor(pipeline.DefaultBranchPredictorConfig()))
			run()
			stats := pipe.Stats()

			Expect(stats.Cycles).To(BeNumerically("<", withoutPredictor))
			Expect(stats.BranchPredictions).To(BeNumerically(">", 0))
			Expect(stats.BranchCorrect).To(BeNumerically(">", stats.BranchMispredictions))
		})
	})

	Describe("Caches", func() {
		It("should run correctly through an instruction cache", func() {
			load([]uint32{
				0xE3A01005, // MOV R1, #5
				0xE281200A, // ADD R2, R1, #10
				0xEAFFFFFE, // B .
			}, pipeline.WithICache(cache.DefaultL1IConfig()))

			run()

			Expect(pipe.Registers()[2]).To(Equal(uint32(15)))

			stats, ok := pipe.ICacheStats()
			Expect(ok).To(BeTrue())
			Expect(stats.Misses).To(BeNumerically(">=", 1))
			Expect(stats.Hits).To(BeNumerically(">", 0))
		})

		It("should run correctly through a data cache", func() {
			load([]uint32{
				0xE3A01801, // MOV R1, #0x10000
				0xE3A0002A, // MOV R0, #42
				0xE5810000, // STR R0, [R1]
				0xE5912000, // LDR R2, [R1]
				0xEAFFFFFE, // B .
			}, pipeline.WithDCache(cache.DefaultL1DConfig()))

			run()

			Expect(pipe.Registers()[2]).To(Equal(uint32(42)))

			stats, ok := pipe.DCacheStats()
			Expect(ok).To(BeTrue())
			Expect(stats.Writes).To(BeNumerically(">=", 1))
		})

		It("should report no cache stats when caches are disabled", func() {
			load([]uint32{0xEAFFFFFE})
			_, ok := pipe.ICacheStats()
			Expect(ok).To(BeFalse())
			_, ok = pipe.DCacheStats()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Reset", func() {
		It("should reproduce the same run after a reset", func() {
			load([]uint32{
				0xE3A01005, // MOV R1, #5
				0xE281200A, // ADD R2, R1, #10
				0xEAFFFFFE, // B .
			})

			run()
			firstCycles := pipe.Stats().Cycles

			pipe.Reset()
			Expect(pipe.PC()).To(Equal(uint32(0)))
			Expect(pipe.Halted()).To(BeFalse())
			Expect(pipe.Stats().Cycles).To(Equal(uint64(0)))
			Expect(pipe.Registers()[2]).To(Equal(uint32(0)))

			pipe.SetPC(mem.ProgramRAMBase)
			run()
			Expect(pipe.Stats().Cycles).To(Equal(firstCycles))
			Expect(pipe.Registers()[2]).To(Equal(uint32(15)))
		})
	})

	Describe("Agreement with the functional model", func() {
		It("should end with the same architectural state", func() {
			program := []uint32{
				0xE3A01801, // MOV R1, #0x10000
				0xE3A00006, // MOV R0, #6
				0xE3A03007, // MOV R3, #7
				0xE0040093, // MUL R4, R3, R0
				0xE5814000, // STR R4, [R1]
				0xE5915000, // LDR R5, [R1]
				0xE2555001, // SUBS R5, R5, #1
				0x0A000000, // BEQ +0 (not taken, 41 != 0)
				0xE3A06001, // MOV R6, #1
				0xEAFFFFFE, // B .
			}

			load(program)
			run()
			pipeRegs := pipe.Registers()
			pipeFlags := pipe.Flags()

			funcSys, err := mem.NewSystem()
			Expect(err).NotTo(HaveOccurred())
			for i, w := range program {
				funcSys.Bus.Write32(mem.ProgramRAMBase+uint32(i)*4, w)
			}
			emulator := emu.NewEmulator(
				funcSys.Bus,
				emu.WithEntryPoint(mem.ProgramRAMBase),
				emu.WithHaltOnSelfLoop(),
			)
			emulator.RunCycles(1000)
			Expect(emulator.Halted()).To(BeTrue())

			Expect(pipeRegs).To(Equal(emulator.RegFile().Snapshot()))
			Expect(pipeFlags).To(Equal(emulator.RegFile().CPSR))
			Expect(sys.Bus.Read32(0x10000)).To(Equal(funcSys.Bus.Read32(0x10000)))
		})
	})
})
