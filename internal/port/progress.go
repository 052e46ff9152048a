package port

// ProgressSink receives progress updates from a long-running operation.
// Implementations must tolerate out-of-order and repeated steps.
type ProgressSink interface {
	Progress(step, maxStep int, message string)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(step, maxStep int, message string)

func (f ProgressFunc) Progress(step, maxStep int, message string) {
	f(step, maxStep, message)
}

// NopProgress discards all updates.
var NopProgress ProgressSink = ProgressFunc(func(int, int, string) {})
