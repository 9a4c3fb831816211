package store

// Op is a single write operation inside a bulk request. A nil Doc removes
// the document; Version zero means the write is unversioned.
type Op struct {
	ID      string
	Doc     []byte
	Version int64
}

// Delete reports whether the op removes the document instead of writing it.
func (o Op) Delete() bool { return o.Doc == nil }

// ItemResult is the per-op outcome of a delivered bulk request.
// A nil Err means the op was applied.
type ItemResult struct {
	Err error
}

// Hit is one document returned by a scroll read.
type Hit struct {
	ID      string
	Doc     []byte
	Version int64
}

// Page is one slice of a scroll read. An empty Cursor means the scroll is
// exhausted; Total is the store-reported collection size at request time.
type Page struct {
	Hits   []Hit
	Cursor string
	Total  int64
}
