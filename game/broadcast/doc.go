// Package broadcast provides a bounded, lossy, multi-consumer channel used to
// fan room events out to every connected session.
//
// A Channel keeps the most recent N published values in a ring buffer. Each
// Receiver walks the ring at its own pace. Publishers never block: when a
// receiver falls more than N values behind, the oldest unread values are
// overwritten and the receiver's next Recv reports a *LaggedError carrying the
// number of skipped values, then resumes at the oldest value still retained.
//
// Under load a receiver may therefore skip events. Callers that need to
// converge on current state should treat a lag as "resync from the latest
// snapshot" rather than as a failure.
//
// Closing a Channel is terminal. Receivers still read the values sent before
// the close, then every Recv returns ErrClosed.
//
// Usage:
//
//	ch := broadcast.New[string](100)
//	rx := ch.Subscribe()
//	defer rx.Close()
//
//	ch.Send("hello")
//	v, err := rx.Recv(ctx)
package broadcast
