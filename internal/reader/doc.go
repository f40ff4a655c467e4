// Package reader turns raw device events into command dispatches.
//
// The Accumulator folds key-down events into a digit buffer and finalizes
// it on Enter; the Reader owns the device handle, feeds the accumulator,
// resolves completed identifiers through the command table and emits the
// resulting invocations on the remote session.
//
// Accumulation is strictly sequential: the pipeline goroutine is the only
// reader and writer of the buffer.
package reader
