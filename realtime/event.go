package realtime

import (
	"sort"

	"github.com/comalice/fractalx"
)

// DispatchWithMeta adds sequencing metadata for deterministic ordering
type DispatchWithMeta struct {
	Dispatch    fractalx.DispatchData
	SequenceNum uint64
	Priority    int
}

// sortDispatches orders a batch deterministically
func sortDispatches(batch []DispatchWithMeta) {
	// Stable sort preserves insertion order for equal priorities
	sort.SliceStable(batch, func(i, j int) bool {
		// Primary: Higher priority first
		if batch[i].Priority != batch[j].Priority {
			return batch[i].Priority > batch[j].Priority
		}

		// Secondary: Earlier sequence number first (FIFO)
		return batch[i].SequenceNum < batch[j].SequenceNum
	})
}
