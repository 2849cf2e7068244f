package xindex

import "testing"

func TestMemLexiconOrderedTermsByTermID(t *testing.T) {
	l := NewMemLexicon()
	l.Put(LexiconEntry{TermID: 2, Term: "cat", DF: 3})
	l.Put(LexiconEntry{TermID: 0, Term: "ant", DF: 1})
	l.Put(LexiconEntry{TermID: 1, Term: "bee", DF: 2})

	terms := l.Terms()
	if len(terms) != 3 {
		t.Fatalf("Terms() len = %d, want 3", len(terms))
	}
	for i, e := range terms {
		if int(e.TermID) != i {
			t.Fatalf("Terms()[%d].TermID = %d, want %d", i, e.TermID, i)
		}
	}
}

func TestMemLexiconLookupByTermAndID(t *testing.T) {
	l := NewMemLexicon()
	l.Put(LexiconEntry{TermID: 4, Term: "dog", DF: 9, CF: 20})

	e, ok := l.Lookup("dog")
	if !ok || e.DF != 9 {
		t.Fatalf("Lookup(dog) = (%+v, %v)", e, ok)
	}
	e2, ok := l.ByTermID(4)
	if !ok || e2.Term != "dog" {
		t.Fatalf("ByTermID(4) = (%+v, %v)", e2, ok)
	}
	if _, ok := l.Lookup("missing"); ok {
		t.Fatal("Lookup(missing) should not be found")
	}
}

func TestMemLexiconStaysOrderedAcrossManyInserts(t *testing.T) {
	l := NewMemLexicon()
	const n = 200
	for i := uint32(0); i < n; i++ {
		l.Put(LexiconEntry{TermID: i, Term: string(rune('a' + i%26)), DF: i})
	}
	if got := l.NumTerms(); got != n {
		t.Fatalf("NumTerms() = %d, want %d", got, n)
	}
	terms := l.Terms()
	for i := 1; i < len(terms); i++ {
		if terms[i].TermID <= terms[i-1].TermID {
			t.Fatalf("Terms() not strictly ascending at %d: %d <= %d", i, terms[i].TermID, terms[i-1].TermID)
		}
	}
}
