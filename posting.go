package xindex

import "math"

// EOL is the sentinel id returned by IterablePosting.Next/NextAfter once a
// posting list is exhausted.
const EOL uint32 = math.MaxUint32

// Posting is a single occurrence record: a docId (within an inverted list)
// or a termId (within a direct list), plus its frequency and optional
// per-field frequencies.
type Posting struct {
	ID         uint32
	TF         uint32
	FieldFreqs []uint32
}

// IterablePosting is a lazy, forward-only cursor over a decoded posting
// list.
type IterablePosting interface {
	// Next advances one posting and returns its id, or EOL at end.
	Next() uint32
	// NextAfter advances to the first posting with id >= target, or EOL.
	NextAfter(target uint32) uint32
	// ID returns the id at the iterator's current position.
	ID() uint32
	// Frequency returns the tf at the iterator's current position.
	Frequency() uint32
	// FieldFrequencies returns the per-field tf at the current position, or
	// nil if the list does not track fields.
	FieldFrequencies() []uint32
	Close() error
}

// basicPostingIterator decodes a gap-and-tf-encoded posting list with no
// per-field frequencies. The first entry's id is stored absolute; every
// following entry stores a gap from the previous id.
type basicPostingIterator struct {
	r         *BitReader
	remaining uint32
	started   bool
	id        uint32
	tf        uint32
	closed    bool
	err       error
}

// fieldPostingIterator decodes a posting list that additionally carries
// per-field frequencies after each posting's tf.
type fieldPostingIterator struct {
	r          *BitReader
	remaining  uint32
	fieldCount int
	started    bool
	id         uint32
	tf         uint32
	ff         []uint32
	closed     bool
	err        error
}

// newBasicPostingIterator returns an iterator over numEntries gap-encoded
// (id, tf) pairs starting at r's current position.
func newBasicPostingIterator(r *BitReader, numEntries uint32) *basicPostingIterator {
	return &basicPostingIterator{r: r, remaining: numEntries}
}

func newFieldPostingIterator(r *BitReader, numEntries uint32, fieldCount int) *fieldPostingIterator {
	return &fieldPostingIterator{r: r, remaining: numEntries, fieldCount: fieldCount}
}

func (it *basicPostingIterator) decodeOne() (uint32, uint32, error) {
	var id uint64
	var err error
	if !it.started {
		id, err = it.r.readGammaNonNeg()
	} else {
		var gap uint64
		gap, err = it.r.ReadGamma()
		id = uint64(it.id) + gap
	}
	if err != nil {
		return 0, 0, err
	}
	tf, err := it.r.ReadGamma()
	if err != nil {
		return 0, 0, err
	}
	it.started = true
	it.remaining--
	return uint32(id), uint32(tf), nil
}

func (it *basicPostingIterator) Next() uint32 {
	if it.closed || it.err != nil || it.remaining == 0 {
		return EOL
	}
	id, tf, err := it.decodeOne()
	if err != nil {
		it.err = err
		return EOL
	}
	it.id, it.tf = id, tf
	return id
}

func (it *basicPostingIterator) NextAfter(target uint32) uint32 {
	if it.started && it.id >= target {
		return it.id
	}
	for {
		id := it.Next()
		if id == EOL || id >= target {
			return id
		}
	}
}

func (it *basicPostingIterator) ID() uint32                 { return it.id }
func (it *basicPostingIterator) Frequency() uint32           { return it.tf }
func (it *basicPostingIterator) FieldFrequencies() []uint32 { return nil }
func (it *basicPostingIterator) Close() error {
	it.closed = true
	return it.err
}

func (it *fieldPostingIterator) decodeOne() (uint32, uint32, []uint32, error) {
	var id uint64
	var err error
	if !it.started {
		id, err = it.r.readGammaNonNeg()
	} else {
		var gap uint64
		gap, err = it.r.ReadGamma()
		id = uint64(it.id) + gap
	}
	if err != nil {
		return 0, 0, nil, err
	}
	tf, err := it.r.ReadGamma()
	if err != nil {
		return 0, 0, nil, err
	}
	ff := make([]uint32, it.fieldCount)
	for i := 0; i < it.fieldCount; i++ {
		v, err := it.r.readGammaNonNeg()
		if err != nil {
			return 0, 0, nil, err
		}
		ff[i] = uint32(v)
	}
	it.started = true
	it.remaining--
	return uint32(id), uint32(tf), ff, nil
}

func (it *fieldPostingIterator) Next() uint32 {
	if it.closed || it.err != nil || it.remaining == 0 {
		return EOL
	}
	id, tf, ff, err := it.decodeOne()
	if err != nil {
		it.err = err
		return EOL
	}
	it.id, it.tf, it.ff = id, tf, ff
	return id
}

func (it *fieldPostingIterator) NextAfter(target uint32) uint32 {
	if it.started && it.id >= target {
		return it.id
	}
	for {
		id := it.Next()
		if id == EOL || id >= target {
			return id
		}
	}
}

func (it *fieldPostingIterator) ID() uint32                 { return it.id }
func (it *fieldPostingIterator) Frequency() uint32           { return it.tf }
func (it *fieldPostingIterator) FieldFrequencies() []uint32 { return it.ff }
func (it *fieldPostingIterator) Close() error {
	it.closed = true
	return it.err
}

// DirectPostingBuffer accumulates a single document's direct postings
// in-memory while the inverted index is traversed. Entries must be added in
// strictly ascending termId order, which the traversal in builder.go
// guarantees by scanning term lists outermost in scan order.
type DirectPostingBuffer struct {
	buf           *growBuffer
	w             *BitWriter
	fieldCount    int
	df            uint32
	tf            uint64
	fieldFreqSums []uint64
	lastTermID    uint32
	hasEntries    bool
}

// NewDirectPostingBuffer returns an empty buffer for a document tracking
// fieldCount per-field frequency slots (0 if the index does not track
// fields).
func NewDirectPostingBuffer(fieldCount int) *DirectPostingBuffer {
	buf := &growBuffer{}
	b := &DirectPostingBuffer{
		buf:        buf,
		w:          NewBitWriter(buf),
		fieldCount: fieldCount,
	}
	if fieldCount > 0 {
		b.fieldFreqSums = make([]uint64, fieldCount)
	}
	return b
}

// DF reports the number of distinct terms recorded so far.
func (b *DirectPostingBuffer) DF() uint32 { return b.df }

// TF reports the sum of term frequencies recorded so far (the document's
// length as seen by this pass).
func (b *DirectPostingBuffer) TF() uint64 { return b.tf }

// AddEntry appends one (termID, tf, fieldFreqs) triple. termID must be
// strictly greater than every termID previously added to this buffer.
func (b *DirectPostingBuffer) AddEntry(termID uint32, tf uint32, fieldFreqs []uint32) error {
	if b.hasEntries && termID <= b.lastTermID {
		return newMalformedStreamError("direct posting buffer received non-ascending termId")
	}
	if !b.hasEntries {
		b.w.writeGammaNonNeg(uint64(termID))
	} else {
		b.w.WriteGamma(uint64(termID - b.lastTermID))
	}
	b.w.WriteGamma(uint64(tf))
	for i := 0; i < b.fieldCount; i++ {
		var f uint32
		if i < len(fieldFreqs) {
			f = fieldFreqs[i]
		}
		b.w.writeGammaNonNeg(uint64(f))
		b.fieldFreqSums[i] += uint64(f)
	}
	if b.w.Err() != nil {
		return b.w.Err()
	}
	b.hasEntries = true
	b.lastTermID = termID
	b.df++
	b.tf += uint64(tf)
	return nil
}

// decoder returns a fresh iterator over exactly the df postings recorded in
// this buffer, per the padding quirk described in the bit codec: two
// sentinel gamma-ones are appended and the buffer byte-padded before any
// reader may see it, since a compressed posting reader may overread by a
// few bits past the logical end.
func (b *DirectPostingBuffer) decoder() IterablePosting {
	b.w.WriteGamma(1)
	b.w.WriteGamma(1)
	b.w.Pad()
	r := NewBitReader(b.buf.Bytes(), 0, 0)
	if b.fieldCount > 0 {
		return newFieldPostingIterator(r, b.df, b.fieldCount)
	}
	return newBasicPostingIterator(r, b.df)
}

// growBuffer is a minimal io.Writer over an expandable byte slice, used as
// the backing store for a single document's in-memory posting buffer.
type growBuffer struct {
	data []byte
}

func (g *growBuffer) Write(p []byte) (int, error) {
	g.data = append(g.data, p...)
	return len(p), nil
}

func (g *growBuffer) Bytes() []byte { return g.data }
