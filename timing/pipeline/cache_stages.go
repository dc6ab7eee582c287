package pipeline

import (
	"github.com/sarchlab/arm7sim/timing/cache"
)

// CachedFetchStage fetches instructions through an L1 instruction cache.
// A miss takes multiple cycles; the stage tracks the pending request and
// reports a stall until the miss is serviced.
type CachedFetchStage struct {
	cache     *cache.Cache
	pending   bool
	pendingPC uint32
	latency   uint64
	word      uint32
}

// NewCachedFetchStage creates a new cached fetch stage.
func NewCachedFetchStage(icache *cache.Cache) *CachedFetchStage {
	return &CachedFetchStage{cache: icache}
}

// Fetch fetches the instruction word at pc through the I-cache. It returns
// the word, whether the fetch completed this cycle, and whether it is
// stalling on a miss.
func (s *CachedFetchStage) Fetch(pc uint32) (word uint32, ok bool, stall bool) {
	// A redirect while a miss is in flight abandons the request.
	if s.pending && s.pendingPC != pc {
		s.pending = false
		s.latency = 0
	}

	if s.pending {
		s.latency--
		if s.latency > 0 {
			return 0, false, true
		}
		s.pending = false
		return s.word, true, false
	}

	result := s.cache.Read(pc, 4)
	if result.Hit {
		return result.Data, true, false
	}

	s.pending = true
	s.pendingPC = pc
	s.latency = result.Latency - 1 // this cycle counts
	s.word = result.Data

	if s.latency > 0 {
		return 0, false, true
	}
	s.pending = false
	return result.Data, true, false
}

// Reset clears pending state.
func (s *CachedFetchStage) Reset() {
	s.pending = false
	s.latency = 0
	s.cache.Reset()
}

// CacheStats returns the underlying cache statistics.
func (s *CachedFetchStage) CacheStats() cache.Statistics {
	return s.cache.Stats()
}

// CachedMemoryStage performs data accesses through an L1 data cache.
// Loads stall the stage for the access latency; stores write through to
// the cache without stalling, modeling a store buffer that absorbs them.
type CachedMemoryStage struct {
	cache       *cache.Cache
	pending     bool
	pendingAddr uint32
	pendingPC   uint32
	latency     uint64
	data        uint32

	storeIssued     bool
	storeIssuedPC   uint32
	storeIssuedAddr uint32
}

// NewCachedMemoryStage creates a new cached memory stage.
func NewCachedMemoryStage(dcache *cache.Cache) *CachedMemoryStage {
	return &CachedMemoryStage{cache: dcache}
}

// Access performs the memory read or write for the instruction in EX/MEM
// through the D-cache. Returns the result and whether the stage is
// stalling.
func (s *CachedMemoryStage) Access(exmem *EXMEMRegister) (MemoryResult, bool) {
	result := MemoryResult{}

	if !exmem.Valid || (!exmem.MemRead && !exmem.MemWrite) {
		s.pending = false
		return result, false
	}

	addr := exmem.ALUResult
	size := 4
	if exmem.ByteWide {
		size = 1
	}

	// A different instruction or address means the old request was
	// squashed.
	if s.pending && (s.pendingPC != exmem.PC || s.pendingAddr != addr) {
		s.pending = false
		s.latency = 0
	}

	if s.pending {
		s.latency--
		if s.latency > 0 {
			return result, true
		}
		s.pending = false
		result.MemData = s.data
		return result, false
	}

	if exmem.MemRead {
		cacheResult := s.cache.Read(addr, size)

		if cacheResult.Hit && s.cache.Config().HitLatency <= 1 {
			result.MemData = cacheResult.Data
			return result, false
		}

		s.pending = true
		s.pendingPC = exmem.PC
		s.pendingAddr = addr
		s.latency = cacheResult.Latency - 1
		s.data = cacheResult.Data

		if s.latency > 0 {
			return result, true
		}
		s.pending = false
		result.MemData = cacheResult.Data
		return result, false
	}

	// Store. Replays during a stall elsewhere in the pipeline must not
	// write twice.
	if !s.storeIssued || s.storeIssuedPC != exmem.PC || s.storeIssuedAddr != addr {
		s.cache.Write(addr, size, exmem.StoreValue)
		s.storeIssued = true
		s.storeIssuedPC = exmem.PC
		s.storeIssuedAddr = addr
	}
	return result, false
}

// Reset clears pending state.
func (s *CachedMemoryStage) Reset() {
	s.pending = false
	s.latency = 0
	s.storeIssued = false
	s.cache.Reset()
}

// CacheStats returns the underlying cache statistics.
func (s *CachedMemoryStage) CacheStats() cache.Statistics {
	return s.cache.Stats()
}
