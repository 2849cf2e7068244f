package xindex

import "testing"

func noModels(string) []WeightingModel { return nil }

// S5: a synonym term sums df/cf across its alternatives and OR-merges their
// posting lists into a single effective term.
func TestManagerAssembleSynonymScenarioS5(t *testing.T) {
	lex := NewMemLexicon()
	pi := NewMemPostingIndex(0)

	catPtr := pi.Register([]Posting{{ID: 1, TF: 1}, {ID: 2, TF: 2}})
	kittenPtr := pi.Register([]Posting{{ID: 2, TF: 3}, {ID: 5, TF: 1}})
	lex.Put(LexiconEntry{TermID: 0, Term: "cat", DF: 10, CF: 25, InvertedAt: catPtr})
	lex.Put(LexiconEntry{TermID: 1, Term: "kitten", DF: 4, CF: 7, InvertedAt: kittenPtr})

	m := NewManager(nil, lex, pi, CollectionStatistics{}, NewConfig(WithLowIDFFiltering(false, 0)))
	terms := []QueryTerm{{Kind: Synonym, Terms: []string{"cat", "kitten"}, Display: "cat|kitten"}}
	if err := m.Assemble(terms, noModels); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	m.Prepare(true)

	if m.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", m.Size())
	}
	stats, err := m.Statistics(0)
	if err != nil {
		t.Fatalf("Statistics(0): %v", err)
	}
	if stats.DF != 14 || stats.CF != 32 {
		t.Fatalf("stats = %+v, want df=14 cf=32", stats)
	}
	term, _ := m.Term(0)
	if term != "cat|kitten" {
		t.Fatalf("Term(0) = %q, want \"cat|kitten\"", term)
	}

	p, err := m.Posting(0)
	if err != nil {
		t.Fatalf("Posting(0): %v", err)
	}
	// prepare(true) has already advanced the iterator once.
	if p.ID() != 1 {
		t.Fatalf("first merged id = %d, want 1 (union of {1,2} and {2,5})", p.ID())
	}
	var ids []uint32
	ids = append(ids, p.ID())
	for id := p.Next(); id != EOL; id = p.Next() {
		ids = append(ids, id)
	}
	want := []uint32{1, 2, 5}
	if len(ids) != len(want) {
		t.Fatalf("merged ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("merged ids = %v, want %v", ids, want)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// Invariant 6: getPosting(i).getId() after prepare(true) equals the first
// docId in the underlying list.
func TestManagerPrepareAdvancesEveryIterator(t *testing.T) {
	lex := NewMemLexicon()
	pi := NewMemPostingIndex(0)
	ptr := pi.Register([]Posting{{ID: 3, TF: 1}, {ID: 8, TF: 2}})
	lex.Put(LexiconEntry{TermID: 0, Term: "term", DF: 1, CF: 3, InvertedAt: ptr})

	m := NewManager(nil, lex, pi, CollectionStatistics{}, DefaultConfig())
	if err := m.Assemble([]QueryTerm{{Kind: Single, Terms: []string{"term"}}}, noModels); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	m.Prepare(true)
	p, _ := m.Posting(0)
	if p.ID() != 3 {
		t.Fatalf("Posting(0).ID() = %d, want 3", p.ID())
	}
}

// Unseen terms are skipped, not turned into holes: subsequent indices
// shift down.
func TestManagerAssembleSkipsUnseenTermsWithoutHoles(t *testing.T) {
	lex := NewMemLexicon()
	pi := NewMemPostingIndex(0)
	ptr := pi.Register([]Posting{{ID: 1, TF: 1}})
	lex.Put(LexiconEntry{TermID: 0, Term: "known", DF: 1, CF: 1, InvertedAt: ptr})

	m := NewManager(nil, lex, pi, CollectionStatistics{}, NewConfig(WithLowIDFFiltering(false, 0)))
	terms := []QueryTerm{
		{Kind: Single, Terms: []string{"missing"}},
		{Kind: Single, Terms: []string{"known"}},
	}
	if err := m.Assemble(terms, noModels); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	m.Prepare(false)
	if m.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 (unseen term must be skipped, not a hole)", m.Size())
	}
	term, _ := m.Term(0)
	if term != "known" {
		t.Fatalf("Term(0) = %q, want \"known\"", term)
	}
}

// score(i) out of range propagates as IndexOutOfRangeError.
func TestManagerScoreOutOfRange(t *testing.T) {
	m := NewManager(nil, NewMemLexicon(), NewMemPostingIndex(0), CollectionStatistics{}, DefaultConfig())
	m.Prepare(false)
	_, err := m.Score(0)
	if err == nil {
		t.Fatal("expected IndexOutOfRangeError")
	}
	if _, ok := err.(*IndexOutOfRangeError); !ok {
		t.Fatalf("error = %v (%T), want *IndexOutOfRangeError", err, err)
	}
}

// A QueryPlanCache shared across two Managers gives the second Assemble a
// cache hit: it must reopen fresh iterators (never share cursors) but
// reuse the resolved statistics, and the cache must not grow past one
// entry for the repeated term set.
func TestManagerSharedQueryPlanCacheHitsOnSecondAssemble(t *testing.T) {
	lex := NewMemLexicon()
	pi := NewMemPostingIndex(0)
	ptr := pi.Register([]Posting{{ID: 3, TF: 2}, {ID: 9, TF: 1}})
	lex.Put(LexiconEntry{TermID: 0, Term: "shared", DF: 5, CF: 8, InvertedAt: ptr})

	cache := NewQueryPlanCache()
	cfg := NewConfig(WithLowIDFFiltering(false, 0))
	terms := []QueryTerm{{Kind: Single, Terms: []string{"shared"}, Display: "shared", KeyFreq: 1.0}}

	m1 := NewManager(nil, lex, pi, CollectionStatistics{}, cfg, cache)
	if err := m1.Assemble(terms, noModels); err != nil {
		t.Fatalf("first Assemble: %v", err)
	}
	m1.Prepare(true)
	p1, _ := m1.Posting(0)
	if p1.ID() != 3 {
		t.Fatalf("first manager posting id = %d, want 3", p1.ID())
	}

	if len(cache.entries) != 1 {
		t.Fatalf("cache has %d entries after first Assemble, want 1", len(cache.entries))
	}

	m2 := NewManager(nil, lex, pi, CollectionStatistics{}, cfg, cache)
	if err := m2.Assemble(terms, noModels); err != nil {
		t.Fatalf("second Assemble: %v", err)
	}
	m2.Prepare(true)

	if len(cache.entries) != 1 {
		t.Fatalf("cache has %d entries after second Assemble, want 1 (plan reused, not duplicated)", len(cache.entries))
	}
	stats, err := m2.Statistics(0)
	if err != nil {
		t.Fatalf("Statistics(0): %v", err)
	}
	if stats.DF != 5 || stats.CF != 8 {
		t.Fatalf("cached stats = %+v, want df=5 cf=8", stats)
	}
	p2, _ := m2.Posting(0)
	if p2.ID() != 3 {
		t.Fatalf("second manager posting id = %d, want 3", p2.ID())
	}
	if p1 == p2 {
		t.Fatal("second manager must open a fresh iterator, not reuse the first manager's cursor")
	}
}

// RequiredDocIDs intersects the posting lists of every MUST-match term,
// ignoring optional terms entirely.
func TestManagerRequiredDocIDsIntersectsOnlyRequiredTerms(t *testing.T) {
	lex := NewMemLexicon()
	pi := NewMemPostingIndex(0)
	mustPtr := pi.Register([]Posting{{ID: 1, TF: 1}, {ID: 2, TF: 1}, {ID: 3, TF: 1}})
	alsoMustPtr := pi.Register([]Posting{{ID: 2, TF: 1}, {ID: 3, TF: 1}, {ID: 4, TF: 1}})
	optionalPtr := pi.Register([]Posting{{ID: 99, TF: 1}})
	lex.Put(LexiconEntry{TermID: 0, Term: "must", DF: 3, CF: 3, InvertedAt: mustPtr})
	lex.Put(LexiconEntry{TermID: 1, Term: "alsomust", DF: 3, CF: 3, InvertedAt: alsoMustPtr})
	lex.Put(LexiconEntry{TermID: 2, Term: "optional", DF: 1, CF: 1, InvertedAt: optionalPtr})

	m := NewManager(nil, lex, pi, CollectionStatistics{}, NewConfig(WithLowIDFFiltering(false, 0)))
	terms := []QueryTerm{
		{Kind: Single, Terms: []string{"must"}, Required: true},
		{Kind: Single, Terms: []string{"alsomust"}, Required: true},
		{Kind: Single, Terms: []string{"optional"}, Required: false},
	}
	if err := m.Assemble(terms, noModels); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	m.Prepare(true)

	if mask := m.RequiredMask(); mask != 0b011 {
		t.Fatalf("RequiredMask() = %b, want 011", mask)
	}
	got := m.RequiredDocIDs()
	want := []uint32{2, 3}
	if len(got) != len(want) {
		t.Fatalf("RequiredDocIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("RequiredDocIDs() = %v, want %v", got, want)
		}
	}
}

// Low-IDF filtering, when enabled with a threshold, excludes terms whose df
// exceeds it from assembly.
func TestManagerLowIDFFilteringExcludesHighDFTerms(t *testing.T) {
	lex := NewMemLexicon()
	pi := NewMemPostingIndex(0)
	ptr := pi.Register([]Posting{{ID: 1, TF: 1}})
	lex.Put(LexiconEntry{TermID: 0, Term: "common", DF: 1000, CF: 1000, InvertedAt: ptr})

	cfg := NewConfig(WithLowIDFFiltering(true, 100))
	m := NewManager(nil, lex, pi, CollectionStatistics{}, cfg)
	if err := m.Assemble([]QueryTerm{{Kind: Single, Terms: []string{"common"}}}, noModels); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	m.Prepare(false)
	if m.Size() != 0 {
		t.Fatalf("Size() = %d, want 0 (df=1000 exceeds threshold 100)", m.Size())
	}
}
