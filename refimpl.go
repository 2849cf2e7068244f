package xindex

import (
	"sort"
	"strconv"
)

// The types in this file are simple in-memory reference implementations of
// the External Interfaces (spec.md §6), analogous to the teacher shipping
// StringAdapter/MapAdapter/StructAdapter alongside DocumentAdapter. They
// exist to drive the builder and manager end-to-end in tests, not as a
// production storage layer.

// TermPosting is one term's inverted list stored as plain postings, the
// seed data a MemIndex is built from.
type TermPosting struct {
	TermID   uint32
	Postings []Posting
}

// MemIndex is an in-memory Index: named structures each hold a document
// index (slice of DocumentIndexEntry) and, for posting structures, a list
// of TermPosting.
type MemIndex struct {
	version    float64
	properties map[string]string
	docIndexes map[string][]DocumentIndexEntry
	postings   map[string][]TermPosting
	fieldCount int
}

// NewMemIndex returns an empty in-memory Index at the given version with
// the given properties (e.g. {"lexicon.termids": "aligned"}).
func NewMemIndex(version float64, properties map[string]string, fieldCount int) *MemIndex {
	if properties == nil {
		properties = map[string]string{}
	}
	return &MemIndex{
		version:    version,
		properties: properties,
		docIndexes: make(map[string][]DocumentIndexEntry),
		postings:   make(map[string][]TermPosting),
		fieldCount: fieldCount,
	}
}

// SeedInverted installs the "inverted" structure's document index and term
// lists directly, for test setup.
func (idx *MemIndex) SeedInverted(docIndex []DocumentIndexEntry, terms []TermPosting) {
	idx.docIndexes[docIndexName] = append([]DocumentIndexEntry(nil), docIndex...)
	idx.postings[sourceStructure] = terms
}

func (idx *MemIndex) HasStructure(name string) bool {
	_, hasPostings := idx.postings[name]
	_, hasDocs := idx.docIndexes[name]
	return hasPostings || hasDocs
}

func (idx *MemIndex) Version() float64 { return idx.version }

func (idx *MemIndex) Property(key string) (string, bool) {
	v, ok := idx.properties[key]
	return v, ok
}

func (idx *MemIndex) SetProperty(key, value string) {
	idx.properties[key] = value
}

func (idx *MemIndex) OpenDocumentIndexStream(name string) (DocumentIndexStream, error) {
	entries, ok := idx.docIndexes[name]
	if !ok {
		return nil, newIOError("open document index stream", newPreconditionError("no document index named %q", name))
	}
	return &memDocumentIndexStream{entries: entries}, nil
}

func (idx *MemIndex) OpenInvertedIndexStream(name string) (InvertedIndexStream, error) {
	terms, ok := idx.postings[name]
	if !ok {
		return nil, newIOError("open inverted index stream", newPreconditionError("no posting structure named %q", name))
	}
	return &memInvertedIndexStream{terms: terms, fieldCount: idx.fieldCount}, nil
}

func (idx *MemIndex) AddStructure(name string) error {
	if _, ok := idx.postings[name]; !ok {
		idx.postings[name] = nil
	}
	return nil
}

func (idx *MemIndex) NewDocumentIndexBuilder(provisionalName string) (DocumentIndexBuilder, error) {
	return &memDocumentIndexBuilder{idx: idx, name: provisionalName}, nil
}

func (idx *MemIndex) Flush() error { return nil }

type memDocumentIndexStream struct {
	entries []DocumentIndexEntry
	pos     int
}

func (s *memDocumentIndexStream) Next() (DocumentIndexEntry, bool) {
	if s.pos >= len(s.entries) {
		return DocumentIndexEntry{}, false
	}
	e := s.entries[s.pos]
	s.pos++
	return e, true
}

func (s *memDocumentIndexStream) Close() error { return nil }

type memInvertedIndexStream struct {
	terms      []TermPosting
	fieldCount int
	pos        int
}

func (s *memInvertedIndexStream) Next() (InvertedTermList, bool) {
	if s.pos >= len(s.terms) {
		return InvertedTermList{}, false
	}
	t := s.terms[s.pos]
	s.pos++
	return InvertedTermList{
		TermID:      t.TermID,
		NumPostings: uint32(len(t.Postings)),
		Postings:    newSlicePostingIterator(t.Postings, s.fieldCount),
	}, true
}

func (s *memInvertedIndexStream) Close() error { return nil }

// slicePostingIterator is an IterablePosting over an in-memory []Posting,
// used by MemIndex/MemPostingIndex to avoid round-tripping through the bit
// codec for seed data that was never encoded in the first place.
type slicePostingIterator struct {
	postings   []Posting
	fieldCount int
	pos        int
	valid      bool
}

func newSlicePostingIterator(postings []Posting, fieldCount int) *slicePostingIterator {
	return &slicePostingIterator{postings: postings, fieldCount: fieldCount, pos: -1}
}

func (it *slicePostingIterator) Next() uint32 {
	it.pos++
	if it.pos >= len(it.postings) {
		it.valid = false
		return EOL
	}
	it.valid = true
	return it.postings[it.pos].ID
}

func (it *slicePostingIterator) NextAfter(target uint32) uint32 {
	if it.valid && it.postings[it.pos].ID >= target {
		return it.postings[it.pos].ID
	}
	for {
		id := it.Next()
		if id == EOL || id >= target {
			return id
		}
	}
}

func (it *slicePostingIterator) ID() uint32 {
	if !it.valid {
		return EOL
	}
	return it.postings[it.pos].ID
}

func (it *slicePostingIterator) Frequency() uint32 {
	if !it.valid {
		return 0
	}
	return it.postings[it.pos].TF
}

func (it *slicePostingIterator) FieldFrequencies() []uint32 {
	if !it.valid || it.fieldCount == 0 {
		return nil
	}
	return it.postings[it.pos].FieldFreqs
}

func (it *slicePostingIterator) Close() error { return nil }

// MemPostingIndex resolves Pointers into postings previously registered
// against it, keyed by the Pointer's ByteOffset as an opaque handle.
type MemPostingIndex struct {
	byHandle map[uint64][]Posting
	next     uint64
	fieldCnt int
}

// NewMemPostingIndex returns an empty in-memory PostingIndex.
func NewMemPostingIndex(fieldCount int) *MemPostingIndex {
	return &MemPostingIndex{byHandle: make(map[uint64][]Posting), fieldCnt: fieldCount}
}

// Register stores postings and returns the Pointer future OpenPosting
// calls should be issued with, mirroring how a lexicon entry's
// InvertedAt would be populated at build time.
func (p *MemPostingIndex) Register(postings []Posting) Pointer {
	h := p.next
	p.next++
	p.byHandle[h] = postings
	return Pointer{ByteOffset: h, BitOffset: 0, NumEntries: uint32(len(postings))}
}

func (p *MemPostingIndex) OpenPosting(ptr Pointer) (IterablePosting, error) {
	postings, ok := p.byHandle[ptr.ByteOffset]
	if !ok {
		return nil, newIOError("open posting", newPreconditionError("no posting registered at handle %d", ptr.ByteOffset))
	}
	return newSlicePostingIterator(postings, p.fieldCnt), nil
}

// memDocumentIndexBuilder accumulates entries under a provisional name and
// installs them under the final name on Commit.
type memDocumentIndexBuilder struct {
	idx     *MemIndex
	name    string
	entries []DocumentIndexEntry
}

func (b *memDocumentIndexBuilder) Append(entry DocumentIndexEntry) error {
	b.entries = append(b.entries, entry)
	return nil
}

func (b *memDocumentIndexBuilder) Commit(finalName string) error {
	sort.SliceStable(b.entries, func(i, j int) bool { return b.entries[i].DocID < b.entries[j].DocID })
	b.idx.docIndexes[finalName] = b.entries
	delete(b.idx.docIndexes, b.name)
	return nil
}

func (b *memDocumentIndexBuilder) Abort() error {
	b.entries = nil
	return nil
}

// MemCompressionConfiguration is an in-memory CompressionConfiguration:
// posting output goes straight into a MemPostingIndex rather than a file,
// and WriteIndexProperties mirrors field configuration onto the index's
// in-memory properties map instead of an on-disk properties file.
type MemCompressionConfiguration struct {
	postingIndex *MemPostingIndex
}

// NewMemCompressionConfiguration returns a CompressionConfiguration whose
// Append calls register into postingIndex; the returned Pointer's
// ByteOffset is the handle MemPostingIndex.OpenPosting expects.
func NewMemCompressionConfiguration(postingIndex *MemPostingIndex) *MemCompressionConfiguration {
	return &MemCompressionConfiguration{postingIndex: postingIndex}
}

func (c *MemCompressionConfiguration) PostingOutputStream(path string) (PostingOutputStream, error) {
	return &memPostingOutputStream{postingIndex: c.postingIndex}, nil
}

func (c *MemCompressionConfiguration) FileExtension() string { return "mem" }

// WriteIndexProperties mirrors the field configuration of the inverted side
// onto name's own properties (e.g. "direct.fieldCount"), the same
// bookkeeping a real on-disk index would persist alongside a newly written
// structure so a later reader can tell how to decode its field-frequency
// blocks without re-deriving it from the source structure.
func (c *MemCompressionConfiguration) WriteIndexProperties(idx Index, name string) error {
	idx.SetProperty(name+".fieldCount", strconv.Itoa(c.postingIndex.fieldCnt))
	return nil
}

type memPostingOutputStream struct {
	postingIndex *MemPostingIndex
}

// Append decodes entries into plain Postings and registers them, so the
// resulting Pointer can be reopened with MemPostingIndex.OpenPosting.
func (s *memPostingOutputStream) Append(entries IterablePosting, numEntries uint32) (Pointer, error) {
	postings := make([]Posting, 0, numEntries)
	for id := entries.Next(); id != EOL; id = entries.Next() {
		postings = append(postings, Posting{
			ID:         id,
			TF:         entries.Frequency(),
			FieldFreqs: entries.FieldFrequencies(),
		})
	}
	return s.postingIndex.Register(postings), nil
}

func (s *memPostingOutputStream) Close() error { return nil }
