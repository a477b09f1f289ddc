// Package realtime provides a tick-based deterministic dispatcher for fractalx modules.
//
// The tick runtime differs from calling Module.Dispatch directly in when
// cycles run:
//   - Dispatches are batched and applied at fixed tick boundaries
//   - Deterministic ordering via priority and sequence numbers
//   - Fixed time-step execution (e.g., 60 FPS)
//
// # Example Usage
//
//	m := fractalx.Run(def)
//	rt := realtime.NewRuntime(m, realtime.Config{
//		TickRate: 16667 * time.Microsecond, // 60 FPS
//	})
//	rt.Start(ctx)
//	rt.Send(fractalx.DispatchData{ID: "Main", Input: "inc"})
//
// # Use Cases
//
//   - Game loops driving a component tree at a fixed rate
//   - Simulations (fixed time-step)
//   - Testing/debugging (reproducible scenarios)
//
// # Event Ordering Guarantees
//
// Dispatches are ordered deterministically using:
//  1. Priority (higher priority processed first)
//  2. Sequence number (FIFO for same priority)
//  3. Stable sorting (preserves relative order)
//
// Given the same sequence of Send calls between two ticks, the tree sees the
// same sequence of dispatch cycles regardless of goroutine scheduling.
package realtime
