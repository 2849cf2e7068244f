package xindex

// Pointer locates and sizes a posting list in a bit-packed stream.
type Pointer struct {
	ByteOffset uint64
	BitOffset  uint8
	NumEntries uint32
}

// DocumentIndexEntry is one row of the document index: a document's length,
// optional per-field lengths, and the Pointer into whichever structure
// (inverted or direct) is currently being addressed.
type DocumentIndexEntry struct {
	DocID        uint32
	DocLength    uint32
	FieldLengths []uint32
	Ptr          Pointer
}

// DocumentIndexStream is a destructive, forward-only cursor over the
// document index, advanced by scanDocumentIndexForTokens and by the
// document-index rewrite pass. Splitting Index.getIndexStructureInputStream
// into a typed stream per structure (this one, and InvertedIndexStream
// below) avoids a single method returning an untyped decoded-entry blob;
// see DESIGN.md for the reasoning.
type DocumentIndexStream interface {
	// Next returns the next entry in docId order, or ok=false at end.
	Next() (DocumentIndexEntry, bool)
	Close() error
}

// InvertedTermList is one term's posting list as seen while streaming the
// inverted index: a header (termId, posting count) plus an IterablePosting
// over the docId-ascending postings.
type InvertedTermList struct {
	TermID      uint32
	NumPostings uint32
	Postings    IterablePosting
}

// InvertedIndexStream streams term lists off the inverted index in the
// scan order the lexicon's termIds were assigned in — the ordering the
// termids=aligned pre-condition promises holds.
type InvertedIndexStream interface {
	Next() (InvertedTermList, bool)
	Close() error
}

// Index opens named structures by string key and exposes the streams and
// metadata operations the builder and manager consume.
type Index interface {
	// HasStructure reports whether a named structure (e.g. "inverted",
	// "direct") is registered.
	HasStructure(name string) bool
	// Version reports the index format version, e.g. 2.0.
	Version() float64
	// Property returns an arbitrary index property, e.g.
	// "lexicon.termids".
	Property(key string) (string, bool)
	// SetProperty stores an arbitrary index property, used to mirror
	// metadata between structures (e.g. "direct.fieldCount" copied from
	// the inverted side once the direct structure is built).
	SetProperty(key, value string)
	// OpenDocumentIndexStream opens the named structure's document-index
	// view.
	OpenDocumentIndexStream(name string) (DocumentIndexStream, error)
	// OpenInvertedIndexStream opens the named structure's inverted-index
	// view.
	OpenInvertedIndexStream(name string) (InvertedIndexStream, error)
	// AddStructure registers a newly built structure under name.
	AddStructure(name string) error
	// NewDocumentIndexBuilder opens a provisional document-index builder;
	// Commit renames it into the final structure name.
	NewDocumentIndexBuilder(provisionalName string) (DocumentIndexBuilder, error)
	// Flush persists index metadata after a build completes.
	Flush() error
}

// DocumentIndexBuilder is an append-only builder of a new document-index
// structure under a provisional name, with atomic rename into place on
// Commit.
type DocumentIndexBuilder interface {
	Append(entry DocumentIndexEntry) error
	// Commit renames the provisional structure into finalName, replacing
	// any structure previously registered under that name.
	Commit(finalName string) error
	// Abort discards the provisional structure without renaming it.
	Abort() error
}

// PostingIndex resolves a Pointer to a lazy posting iterator.
type PostingIndex interface {
	OpenPosting(p Pointer) (IterablePosting, error)
}

// CompressionConfiguration is the factory for destination posting output
// streams and for finalising index metadata once a structure is written.
type CompressionConfiguration interface {
	// PostingOutputStream returns a fresh append-only posting output
	// stream at path.
	PostingOutputStream(path string) (PostingOutputStream, error)
	// FileExtension reports the file extension this configuration uses
	// (without a leading dot).
	FileExtension() string
	// WriteIndexProperties finalises metadata for name once its postings
	// have been fully written.
	WriteIndexProperties(idx Index, name string) error
}

// PostingOutputStream is an append-only sink for direct or inverted
// postings; each Append call writes one document's (or term's) posting
// buffer and returns the Pointer it was written at.
type PostingOutputStream interface {
	Append(entries IterablePosting, numEntries uint32) (Pointer, error)
	Close() error
}
