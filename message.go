package flowdex

// Message is one logical write request flowing into a pipeline, plus an
// opaque pass-through value the pipeline never inspects, serializes or
// copies: the same P lands on the Result so callers can acknowledge their
// own bookkeeping (queue offsets, request handles) once the write resolves.
//
// A nil Doc marks the message as a deletion of ID. Version zero means the
// write is unversioned; any other value must equal the store's current
// version for the document, and a successful versioned write advances the
// stored version by one.
type Message[T, P any] struct {
	ID          string
	Doc         *T
	Version     int64
	PassThrough P
}

// NewMessage returns an upsert message for doc under id.
func NewMessage[T, P any](id string, doc *T, passThrough P) Message[T, P] {
	return Message[T, P]{ID: id, Doc: doc, PassThrough: passThrough}
}

// NewDelete returns a deletion message for id.
func NewDelete[T, P any](id string, passThrough P) Message[T, P] {
	return Message[T, P]{ID: id, PassThrough: passThrough}
}

// WithVersion returns a copy of the message carrying an expected version.
func (m Message[T, P]) WithVersion(v int64) Message[T, P] {
	m.Version = v
	return m
}

// Delete reports whether the message removes the document instead of
// writing it.
func (m Message[T, P]) Delete() bool { return m.Doc == nil }
