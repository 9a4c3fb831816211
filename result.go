package flowdex

// Result is the terminal outcome for one accepted Message. Every message a
// pipeline accepts resolves to exactly one Result carrying the original
// request, its pass-through value and the number of dispatches performed.
//
// Failures are data: a Result with a non-nil Err is a normal emission, and
// a caller that drops Results without checking Err silently loses them.
type Result[T, P any] struct {
	Message  Message[T, P]
	Err      error
	Attempts int
}

// Success reports whether the write was applied.
func (r Result[T, P]) Success() bool { return r.Err == nil }

// PassThrough returns the opaque value carried from the original message.
func (r Result[T, P]) PassThrough() P { return r.Message.PassThrough }
