package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/arm7sim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("Data Processing (Immediate)", func() {
		// ADD R1, R0, #5 -> 0xE2801005
		// Encoding: cond=AL, 00, I=1, opcode=0100, S=0, Rn=0, Rd=1, imm=5
		It("should decode ADD R1, R0, #5", func() {
			inst := decoder.Decode(0xE2801005)

			Expect(inst.Class).To(Equal(insts.ClassDataProcessing))
			Expect(inst.Cond).To(Equal(insts.CondAL))
			Expect(inst.AluOp).To(Equal(insts.OpADD))
			Expect(inst.SetFlags).To(BeFalse())
			Expect(inst.Rd).To(Equal(uint8(1)))
			Expect(inst.Rn).To(Equal(uint8(0)))
			Expect(inst.IsImm).To(BeTrue())
			Expect(inst.Imm).To(Equal(uint32(5)))
			Expect(inst.RegWrite).To(BeTrue())
			Expect(inst.UsesRn).To(BeTrue())
			Expect(inst.UsesRm).To(BeFalse())
		})

		// MOV R0, #10 -> 0xE3A0000A
		It("should decode MOV R0, #10 without reading Rn", func() {
			inst := decoder.Decode(0xE3A0000A)

			Expect(inst.AluOp).To(Equal(insts.OpMOV))
			Expect(inst.Rd).To(Equal(uint8(0)))
			Expect(inst.Imm).To(Equal(uint32(10)))
			Expect(inst.UsesRn).To(BeFalse())
			Expect(inst.RegWrite).To(BeTrue())
		})

		// SUBS R2, R1, #1 -> 0xE2512001
		It("should decode SUBS R2, R1, #1 with the S bit", func() {
			inst := decoder.Decode(0xE2512001)

			Expect(inst.AluOp).To(Equal(insts.OpSUB))
			Expect(inst.SetFlags).To(BeTrue())
			Expect(inst.Rd).To(Equal(uint8(2)))
			Expect(inst.Rn).To(Equal(uint8(1)))
			Expect(inst.Imm).To(Equal(uint32(1)))
		})

		// MOV R1, #0x10000 -> 0xE3A01801 (imm8=1 rotated right by 16)
		It("should decode rotated immediates", func() {
			inst := decoder.Decode(0xE3A01801)

			Expect(inst.AluOp).To(Equal(insts.OpMOV))
			Expect(inst.Imm).To(Equal(uint32(0x10000)))
		})

		// MOV R1, #0xFF000000 -> 0xE3A014FF (imm8=0xFF rotated right by 8)
		It("should decode a rotated immediate reaching the top byte", func() {
			inst := decoder.Decode(0xE3A014FF)

			Expect(inst.Imm).To(Equal(uint32(0xFF000000)))
		})
	})

	Describe("Data Processing (Register)", func() {
		// ADD R2, R1, R0 -> 0xE0812000
		It("should decode ADD R2, R1, R0", func() {
			inst := decoder.Decode(0xE0812000)

			Expect(inst.AluOp).To(Equal(insts.OpADD))
			Expect(inst.IsImm).To(BeFalse())
			Expect(inst.Rd).To(Equal(uint8(2)))
			Expect(inst.Rn).To(Equal(uint8(1)))
			Expect(inst.Rm).To(Equal(uint8(0)))
			Expect(inst.ShiftType).To(Equal(insts.ShiftLSL))
			Expect(inst.ShiftAmount).To(Equal(uint8(0)))
			Expect(inst.UsesRm).To(BeTrue())
			Expect(inst.UsesRs).To(BeFalse())
		})

		// ORR R3, R1, R2, LSL #4 -> 0xE1813202
		It("should decode a constant-shift operand", func() {
			inst := decoder.Decode(0xE1813202)

			Expect(inst.AluOp).To(Equal(insts.OpORR))
			Expect(inst.Rd).To(Equal(uint8(3)))
			Expect(inst.Rn).To(Equal(uint8(1)))
			Expect(inst.Rm).To(Equal(uint8(2)))
			Expect(inst.ShiftType).To(Equal(insts.ShiftLSL))
			Expect(inst.ShiftAmount).To(Equal(uint8(4)))
		})

		// MOV R2, R1, LSL R3 -> 0xE1A02311
		It("should decode a register-specified shift", func() {
			inst := decoder.Decode(0xE1A02311)

			Expect(inst.AluOp).To(Equal(insts.OpMOV))
			Expect(inst.Rd).To(Equal(uint8(2)))
			Expect(inst.Rm).To(Equal(uint8(1)))
			Expect(inst.ShiftByReg).To(BeTrue())
			Expect(inst.Rs).To(Equal(uint8(3)))
			Expect(inst.UsesRs).To(BeTrue())
		})

		// MOV R0, R1, LSR #1 -> 0xE1A000A1
		It("should decode LSR shift type", func() {
			inst := decoder.Decode(0xE1A000A1)

			Expect(inst.ShiftType).To(Equal(insts.ShiftLSR))
			Expect(inst.ShiftAmount).To(Equal(uint8(1)))
			Expect(inst.Rm).To(Equal(uint8(1)))
		})
	})

	Describe("Test operations", func() {
		// CMP R0, #0 -> 0xE3500000
		It("should decode CMP as flag-setting without a register write", func() {
			inst := decoder.Decode(0xE3500000)

			Expect(inst.AluOp).To(Equal(insts.OpCMP))
			Expect(inst.SetFlags).To(BeTrue())
			Expect(inst.RegWrite).To(BeFalse())
		})

		// TST R1, #1 -> 0xE3110001
		It("should decode TST without a register write", func() {
			inst := decoder.Decode(0xE3110001)

			Expect(inst.AluOp).To(Equal(insts.OpTST))
			Expect(inst.Rn).To(Equal(uint8(1)))
			Expect(inst.RegWrite).To(BeFalse())
			Expect(inst.SetFlags).To(BeTrue())
		})
	})

	Describe("Multiply", func() {
		// MUL R2, R0, R1 -> 0xE0020190
		It("should decode MUL R2, R0, R1", func() {
			inst := decoder.Decode(0xE0020190)

			Expect(inst.IsMultiply).To(BeTrue())
			Expect(inst.Rd).To(Equal(uint8(2)))
			Expect(inst.Rm).To(Equal(uint8(0)))
			Expect(inst.Rs).To(Equal(uint8(1)))
			Expect(inst.SetFlags).To(BeFalse())
			Expect(inst.RegWrite).To(BeTrue())
			Expect(inst.UsesRm).To(BeTrue())
			Expect(inst.UsesRs).To(BeTrue())
		})

		// MULS R2, R0, R1 -> 0xE0120190
		It("should decode the S bit on MULS", func() {
			inst := decoder.Decode(0xE0120190)

			Expect(inst.IsMultiply).To(BeTrue())
			Expect(inst.SetFlags).To(BeTrue())
		})
	})

	Describe("Load/Store", func() {
		// LDR R0, [R1] -> 0xE5910000
		It("should decode LDR R0, [R1]", func() {
			inst := decoder.Decode(0xE5910000)

			Expect(inst.Class).To(Equal(insts.ClassLoadStore))
			Expect(inst.MemRead).To(BeTrue())
			Expect(inst.MemWrite).To(BeFalse())
			Expect(inst.RegWrite).To(BeTrue())
			Expect(inst.Rd).To(Equal(uint8(0)))
			Expect(inst.Rn).To(Equal(uint8(1)))
			Expect(inst.Imm).To(Equal(uint32(0)))
			Expect(inst.AddOffset).To(BeTrue())
			Expect(inst.Byte).To(BeFalse())
		})

		// STR R0, [R1, #4] -> 0xE5810004
		It("should decode STR with an immediate offset", func() {
			inst := decoder.Decode(0xE5810004)

			Expect(inst.MemWrite).To(BeTrue())
			Expect(inst.MemRead).To(BeFalse())
			Expect(inst.RegWrite).To(BeFalse())
			Expect(inst.Imm).To(Equal(uint32(4)))
		})

		// LDR R0, [R1, #-4] -> 0xE5110004
		It("should decode a negative offset via the U bit", func() {
			inst := decoder.Decode(0xE5110004)

			Expect(inst.MemRead).To(BeTrue())
			Expect(inst.AddOffset).To(BeFalse())
			Expect(inst.Imm).To(Equal(uint32(4)))
		})

		// LDRB R0, [R1] -> 0xE5D10000
		It("should decode byte loads", func() {
			inst := decoder.Decode(0xE5D10000)

			Expect(inst.MemRead).To(BeTrue())
			Expect(inst.Byte).To(BeTrue())
		})

		// STRB R0, [R1] -> 0xE5C10000
		It("should decode byte stores", func() {
			inst := decoder.Decode(0xE5C10000)

			Expect(inst.MemWrite).To(BeTrue())
			Expect(inst.Byte).To(BeTrue())
		})

		// LDR R2, [R1, R0, LSL #2] -> 0xE7912100
		It("should decode a shifted register offset", func() {
			inst := decoder.Decode(0xE7912100)

			Expect(inst.MemRead).To(BeTrue())
			Expect(inst.RegOffset).To(BeTrue())
			Expect(inst.Rm).To(Equal(uint8(0)))
			Expect(inst.ShiftType).To(Equal(insts.ShiftLSL))
			Expect(inst.ShiftAmount).To(Equal(uint8(2)))
			Expect(inst.UsesRm).To(BeTrue())
		})
	})

	Describe("Branch", func() {
		// B . -> 0xEAFFFFFE (offset -2 words, PC+8 relative)
		It("should decode a self-branch", func() {
			inst := decoder.Decode(0xEAFFFFFE)

			Expect(inst.Class).To(Equal(insts.ClassBranch))
			Expect(inst.IsBranch).To(BeTrue())
			Expect(inst.Link).To(BeFalse())
			Expect(inst.BranchOffset).To(Equal(int32(-8)))
			Expect(inst.RegWrite).To(BeFalse())
		})

		// B +0 -> 0xEA000000 (target PC+8)
		It("should decode a zero forward offset", func() {
			inst := decoder.Decode(0xEA000000)

			Expect(inst.IsBranch).To(BeTrue())
			Expect(inst.BranchOffset).To(Equal(int32(0)))
		})

		// BL . -> 0xEBFFFFFE
		It("should decode BL with a link-register write", func() {
			inst := decoder.Decode(0xEBFFFFFE)

			Expect(inst.IsBranch).To(BeTrue())
			Expect(inst.Link).To(BeTrue())
			Expect(inst.RegWrite).To(BeTrue())
			Expect(inst.Rd).To(Equal(uint8(insts.LinkRegister)))
		})

		// BEQ +1 -> 0x0A000001
		It("should carry the condition code on conditional branches", func() {
			inst := decoder.Decode(0x0A000001)

			Expect(inst.Cond).To(Equal(insts.CondEQ))
			Expect(inst.IsBranch).To(BeTrue())
			Expect(inst.BranchOffset).To(Equal(int32(4)))
		})
	})

	Describe("Unimplemented encodings", func() {
		// LDMIA R0, {R1} -> 0xE8901002 (block transfer space)
		It("should decode block transfers as no-effect", func() {
			inst := decoder.Decode(0xE8901002)

			Expect(inst.IsBranch).To(BeFalse())
			Expect(inst.RegWrite).To(BeFalse())
			Expect(inst.MemRead).To(BeFalse())
			Expect(inst.MemWrite).To(BeFalse())
		})

		// SWI #0 -> 0xEF000000 (coprocessor/software interrupt space)
		It("should decode the coprocessor space as no-effect", func() {
			inst := decoder.Decode(0xEF000000)

			Expect(inst.Class).To(Equal(insts.ClassCoprocessor))
			Expect(inst.RegWrite).To(BeFalse())
			Expect(inst.MemRead).To(BeFalse())
			Expect(inst.MemWrite).To(BeFalse())
			Expect(inst.IsBranch).To(BeFalse())
		})
	})
})
