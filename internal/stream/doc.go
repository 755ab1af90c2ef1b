// Package stream forwards the latest dragon-staff pixel strip to the
// lighting controllers at a fixed cadence.
//
// A Buffer holds the most recent strip as an immutable generation. A
// Scheduler owns at most one periodic Task; each tick reads the current
// generation, flattens it to [h0,s0,v0,h1,s1,v1,...] and hands it to a Sink.
//
// Usage:
//
//	sched := stream.NewScheduler(100*time.Millisecond, sink)
//	sched.Update(pixels)   // any time, running or not
//	sched.Start(ctx)       // idempotent
//	sched.Stop()           // no tick runs after this returns
package stream
