package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/arm7sim/insts"
)

var _ = Describe("CondPassed", func() {
	type flags struct{ n, z, c, v bool }

	check := func(cond insts.Cond, f flags) bool {
		return insts.CondPassed(cond, f.n, f.z, f.c, f.v)
	}

	It("evaluates EQ and NE on the Z flag", func() {
		Expect(check(insts.CondEQ, flags{z: true})).To(BeTrue())
		Expect(check(insts.CondEQ, flags{})).To(BeFalse())
		Expect(check(insts.CondNE, flags{})).To(BeTrue())
		Expect(check(insts.CondNE, flags{z: true})).To(BeFalse())
	})

	It("evaluates CS and CC on the C flag", func() {
		Expect(check(insts.CondCS, flags{c: true})).To(BeTrue())
		Expect(check(insts.CondCS, flags{})).To(BeFalse())
		Expect(check(insts.CondCC, flags{})).To(BeTrue())
		Expect(check(insts.CondCC, flags{c: true})).To(BeFalse())
	})

	It("evaluates MI and PL on the N flag", func() {
		Expect(check(insts.CondMI, flags{n: true})).To(BeTrue())
		Expect(check(insts.CondPL, flags{n: true})).To(BeFalse())
	})

	It("evaluates VS and VC on the V flag", func() {
		Expect(check(insts.CondVS, flags{v: true})).To(BeTrue())
		Expect(check(insts.CondVC, flags{v: true})).To(BeFalse())
	})

	It("evaluates HI as C set and Z clear", func() {
		Expect(check(insts.CondHI, flags{c: true})).To(BeTrue())
		Expect(check(insts.CondHI, flags{c: true, z: true})).To(BeFalse())
		Expect(check(insts.CondHI, flags{})).To(BeFalse())
	})

	It("evaluates LS as C clear or Z set", func() {
		Expect(check(insts.CondLS, flags{})).To(BeTrue())
		Expect(check(insts.CondLS, flags{c: true, z: true})).To(BeTrue())
		Expect(check(insts.CondLS, flags{c: true})).To(BeFalse())
	})

	It("evaluates signed comparisons on N and V", func() {
		Expect(check(insts.CondGE, flags{})).To(BeTrue())
		Expect(check(insts.CondGE, flags{n: true, v: true})).To(BeTrue())
		Expect(check(insts.CondGE, flags{n: true})).To(BeFalse())

		Expect(check(insts.CondLT, flags{n: true})).To(BeTrue())
		Expect(check(insts.CondLT, flags{v: true})).To(BeTrue())
		Expect(check(insts.CondLT, flags{})).To(BeFalse())

		Expect(check(insts.CondGT, flags{})).To(BeTrue())
		Expect(check(insts.CondGT, flags{z: true})).To(BeFalse())
		Expect(check(insts.CondGT, flags{n: true})).To(BeFalse())

		Expect(check(insts.CondLE, flags{z: true})).To(BeTrue())
		Expect(check(insts.CondLE, flags{n: true})).To(BeTrue())
		Expect(check(insts.CondLE, flags{})).To(BeFalse())
	})

	It("always passes AL and never passes NV", func() {
		Expect(check(insts.CondAL, flags{})).To(BeTrue())
		Expect(check(insts.CondAL, flags{n: true, z: true, c: true, v: true})).To(BeTrue())
		Expect(check(insts.CondNV, flags{})).To(BeFalse())
		Expect(check(insts.CondNV, flags{n: true, z: true, c: true, v: true})).To(BeFalse())
	})
})

var _ = Describe("AluOp", func() {
	It("classifies test operations", func() {
		Expect(insts.OpTST.IsTest()).To(BeTrue())
		Expect(insts.OpTEQ.IsTest()).To(BeTrue())
		Expect(insts.OpCMP.IsTest()).To(BeTrue())
		Expect(insts.OpCMN.IsTest()).To(BeTrue())
		Expect(insts.OpADD.IsTest()).To(BeFalse())
		Expect(insts.OpMVN.IsTest()).To(BeFalse())
	})

	It("reports Rn usage for all but MOV and MVN", func() {
		Expect(insts.OpMOV.UsesRn()).To(BeFalse())
		Expect(insts.OpMVN.UsesRn()).To(BeFalse())
		Expect(insts.OpADD.UsesRn()).To(BeTrue())
		Expect(insts.OpCMP.UsesRn()).To(BeTrue())
	})
})
