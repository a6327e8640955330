// Package regen coalesces "something changed" signals into site renders.
//
// Producers (admin handlers, the template watcher, the manual regenerate
// endpoint) call Trigger.Notify after their change is committed. Notify never
// blocks. A single Coordinator goroutine consumes the signals and drives the
// renderer through an explicit state machine:
//
//	Idle             --signal-->  Rendering         (start render)
//	Rendering        --signal-->  RenderingPending  (absorb)
//	RenderingPending --signal-->  RenderingPending  (absorb)
//	Rendering        --done---->  Idle
//	RenderingPending --done---->  Rendering         (start exactly one render)
//
// # Guarantees
//
//   - At most one render runs at any instant. Renders run on a child goroutine
//     started only by the coordinator, so there is exactly one artifact writer.
//   - Every signal is followed by a render that starts after it was sent.
//   - A burst of N signals during one render causes one extra render, not N.
//
// Render errors are logged and handled exactly like a successful render. A
// render is never cancelled once started.
//
// # Shutdown
//
// Closing the Trigger is the graceful path: the coordinator finishes the
// in-flight render, performs the pending one if any, and Start returns.
// Cancelling the context passed to Start (or calling Stop) waits for the
// in-flight render and drops a pending one.
//
// # Usage Example
//
//	trigger := regen.NewTrigger()
//	coord := regen.New(renderer, trigger.C(), regen.WithMetrics(metrics))
//	go coord.Start(ctx)
//
//	trigger.Notify() // after every committed mutation
//
//	trigger.Close()
//	<-coord.Done()
package regen
