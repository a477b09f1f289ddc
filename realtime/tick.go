package realtime

import "fmt"

// processTick processes one complete tick
func (rt *Runtime) processTick() {
	// Phase 1: Collect dispatches atomically
	batch := rt.collectBatch()

	// Phase 2: Sort for deterministic order
	sortDispatches(batch)

	// Phase 3: Apply through the target, one cycle each
	rt.processBatch(batch)
}

// collectBatch atomically retrieves and clears the pending batch
func (rt *Runtime) collectBatch() []DispatchWithMeta {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()

	batch := rt.batch
	rt.batch = make([]DispatchWithMeta, 0, rt.capacity)

	return batch
}

// processBatch applies every dispatch of the tick. Failures are already in
// the module log; they are only traced here. A panicking dispatch is logged
// and dropped; the rest of the batch still runs.
func (rt *Runtime) processBatch(batch []DispatchWithMeta) {
	for _, meta := range batch {
		if err := rt.apply(meta); err != nil {
			rt.logger.Debug("tick dispatch failed",
				"id", meta.Dispatch.ID, "input", meta.Dispatch.Input, "seq", meta.SequenceNum, "error", err)
		}
	}
}

func (rt *Runtime) apply(meta DispatchWithMeta) (err error) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("tick dispatch panicked",
				"id", meta.Dispatch.ID, "input", meta.Dispatch.Input, "seq", meta.SequenceNum, "panic", r)
			err = fmt.Errorf("dispatch panicked: %v", r)
		}
	}()
	return rt.target.Dispatch(meta.Dispatch)
}
