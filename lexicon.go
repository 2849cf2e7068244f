package xindex

import "sort"

// LexiconEntry is the per-term metadata a Lexicon holds: the term's assigned
// termId, its document frequency, its collection frequency (sum of tf across
// all postings), and the Pointer at which its inverted list begins.
type LexiconEntry struct {
	TermID     uint32
	Term       string
	DF         uint32
	CF         uint64
	InvertedAt Pointer
}

// Lexicon maps terms to their LexiconEntry and supports ordered iteration by
// termId, the traversal order the Direct-Index Builder relies on to keep
// gap-encoded direct postings strictly ascending.
type Lexicon interface {
	Lookup(term string) (LexiconEntry, bool)
	ByTermID(termID uint32) (LexiconEntry, bool)
	NumTerms() int
	// Terms returns every entry ordered by ascending termId.
	Terms() []LexiconEntry
}

// memLexicon is an in-memory reference Lexicon: plain maps for O(1) lookup
// by term and by termId, with Terms() sorting by termId on demand. A real
// on-disk lexicon needs an ordered structure to stream terms without
// holding them all in memory, but this reference implementation only ever
// backs small test fixtures, so a map plus a sort
// is simpler and just as correct as a tree for that purpose.
type memLexicon struct {
	byTerm   map[string]LexiconEntry
	byTermID map[uint32]LexiconEntry
}

// NewMemLexicon returns an empty in-memory Lexicon reference implementation.
func NewMemLexicon() *memLexicon {
	return &memLexicon{
		byTerm:   make(map[string]LexiconEntry),
		byTermID: make(map[uint32]LexiconEntry),
	}
}

// Put inserts or overwrites an entry, indexed by both its term and termId.
func (l *memLexicon) Put(e LexiconEntry) {
	l.byTerm[e.Term] = e
	l.byTermID[e.TermID] = e
}

func (l *memLexicon) Lookup(term string) (LexiconEntry, bool) {
	e, ok := l.byTerm[term]
	return e, ok
}

func (l *memLexicon) ByTermID(termID uint32) (LexiconEntry, bool) {
	e, ok := l.byTermID[termID]
	return e, ok
}

func (l *memLexicon) NumTerms() int {
	return len(l.byTermID)
}

func (l *memLexicon) Terms() []LexiconEntry {
	out := make([]LexiconEntry, 0, len(l.byTermID))
	for _, e := range l.byTermID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TermID < out[j].TermID })
	return out
}
