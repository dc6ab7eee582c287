package pipeline

// BranchPredictorConfig holds configuration for the branch predictor.
type BranchPredictorConfig struct {
	// BHTSize is the number of entries in the Branch History Table.
	// Must be a power of 2. Default is 256.
	BHTSize uint32
	// BTBSize is the number of entries in the Branch Target Buffer.
	// Must be a power of 2. Default is 64.
	BTBSize uint32
}

// DefaultBranchPredictorConfig returns a default configuration.
func DefaultBranchPredictorConfig() BranchPredictorConfig {
	return BranchPredictorConfig{
		BHTSize: 256,
		BTBSize: 64,
	}
}

// BranchPredictorStats holds statistics for the branch predictor.
type BranchPredictorStats struct {
	// Predictions is the total number of branch predictions made.
	Predictions uint64
	// Correct is the number of correct direction predictions.
	Correct uint64
	// Mispredictions is the number of incorrect direction predictions.
	Mispredictions uint64
	// BTBHits is the number of BTB hits.
	BTBHits uint64
	// BTBMisses is the number of BTB misses.
	BTBMisses uint64
}

// Accuracy returns the direction prediction accuracy as a percentage.
func (s BranchPredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// BTBHitRate returns the BTB hit rate as a percentage.
func (s BranchPredictorStats) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total) * 100
}

// Prediction is a branch prediction for one fetch.
type Prediction struct {
	// Taken indicates whether the branch is predicted taken.
	Taken bool
	// Target is the predicted target address, valid when TargetKnown.
	Target uint32
	// TargetKnown indicates the BTB held a target for this PC.
	TargetKnown bool
}

// BranchPredictor is a bimodal predictor: a table of 2-bit saturating
// counters for direction plus a direct-mapped Branch Target Buffer for
// targets. Fetch only redirects when both predict taken and the BTB knows
// the target.
type BranchPredictor struct {
	// Counter states: 0 strongly not taken, 1 weakly not taken,
	// 2 weakly taken, 3 strongly taken.
	bht []uint8

	btb      []btbEntry
	btbValid []bool

	bhtSize uint32
	btbSize uint32

	stats BranchPredictorStats
}

type btbEntry struct {
	pc     uint32
	target uint32
}

// NewBranchPredictor creates a new branch predictor with the given
// configuration, applying defaults for zero sizes.
func NewBranchPredictor(config BranchPredictorConfig) *BranchPredictor {
	bhtSize := config.BHTSize
	btbSize := config.BTBSize
	if bhtSize == 0 {
		bhtSize = 256
	}
	if btbSize == 0 {
		btbSize = 64
	}

	bp := &BranchPredictor{
		bht:      make([]uint8, bhtSize),
		btb:      make([]btbEntry, btbSize),
		btbValid: make([]bool, btbSize),
		bhtSize:  bhtSize,
		btbSize:  btbSize,
	}

	// Start weakly taken; loops dominate small embedded workloads.
	for i := range bp.bht {
		bp.bht[i] = 2
	}

	return bp
}

// bhtIndex computes the BHT index for a PC, skipping the alignment bits.
func (bp *BranchPredictor) bhtIndex(pc uint32) uint32 {
	return (pc >> 2) & (bp.bhtSize - 1)
}

// btbIndex computes the BTB index for a PC.
func (bp *BranchPredictor) btbIndex(pc uint32) uint32 {
	return (pc >> 2) & (bp.btbSize - 1)
}

// Predict makes a branch prediction for the given PC.
func (bp *BranchPredictor) Predict(pc uint32) Prediction {
	pred := Prediction{}

	pred.Taken = bp.bht[bp.bhtIndex(pc)] >= 2

	btbIdx := bp.btbIndex(pc)
	if bp.btbValid[btbIdx] && bp.btb[btbIdx].pc == pc {
		pred.Target = bp.btb[btbIdx].target
		pred.TargetKnown = true
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
	}

	bp.stats.Predictions++
	return pred
}

// Update trains the predictor with the actual branch outcome.
func (bp *BranchPredictor) Update(pc uint32, taken bool, target uint32) {
	bhtIdx := bp.bhtIndex(pc)
	counter := bp.bht[bhtIdx]

	if (counter >= 2) == taken {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}

	if taken {
		if counter < 3 {
			bp.bht[bhtIdx] = counter + 1
		}
	} else if counter > 0 {
		bp.bht[bhtIdx] = counter - 1
	}

	if taken {
		btbIdx := bp.btbIndex(pc)
		bp.btb[btbIdx] = btbEntry{pc: pc, target: target}
		bp.btbValid[btbIdx] = true
	}
}

// Stats returns the branch predictor statistics.
func (bp *BranchPredictor) Stats() BranchPredictorStats {
	return bp.stats
}

// Reset clears all predictor state and statistics.
func (bp *BranchPredictor) Reset() {
	for i := range bp.bht {
		bp.bht[i] = 2
	}
	for i := range bp.btbValid {
		bp.btbValid[i] = false
	}
	bp.stats = BranchPredictorStats{}
}
