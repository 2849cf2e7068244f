package xindex

import "github.com/oarkflow/xindex/utils"

// QueryTermKind tags the shape of a composite query term. Replaces an
// inheritance hierarchy (QueryTerm -> MultiQueryTerm -> SynonymTerm) with a
// closed tagged variant, per spec.md §9.
type QueryTermKind int

const (
	// Single is one lexical token.
	Single QueryTermKind = iota
	// Synonym is a group of alternative tokens whose posting lists are
	// OR-merged and whose statistics are summed.
	Synonym
	// Phrase is a sequence of tokens that must occur contiguously. This
	// data model carries no position lists (spec.md §3), so a Phrase
	// resolves as a Single term over its head token; see DESIGN.md.
	Phrase
)

// QueryTerm is one element of a parsed query, in original query order.
type QueryTerm struct {
	Kind     QueryTermKind
	Terms    []string // one entry for Single/Phrase, N alternatives for Synonym
	Display  string   // display string; defaults to Terms[0] if empty
	KeyFreq  float64  // query-side weight
	Required bool     // MUST-match operand
}

// EntryStatistics is the merged (df, cf) pair for an effective term,
// summed across a Synonym group's alternatives.
type EntryStatistics struct {
	DF uint32
	CF uint64
}

// MatchingEntry is the per-term object produced during manager assembly:
// bundles the iterator, merged statistics, display string, key frequency
// and required flag together.
type MatchingEntry struct {
	Posting  IterablePosting
	Stats    EntryStatistics
	Display  string
	KeyFreq  float64
	Required bool
}

// resolve turns a QueryTerm into a MatchingEntry by looking up its
// constituent tokens in lexicon and opening their posting lists through
// postingIndex. ok is false if none of the term's tokens are present in
// the lexicon (unseen term) or every alternative was excluded by
// isLowIDF, per spec.md §4.4's "skip, do not insert a hole" rule.
func resolve(term QueryTerm, lexicon Lexicon, postingIndex PostingIndex, fieldCount int, isLowIDF func(LexiconEntry) bool) (MatchingEntry, bool, error) {
	switch term.Kind {
	case Synonym:
		return resolveSynonym(term, lexicon, postingIndex, fieldCount, isLowIDF)
	default:
		// Single and Phrase both resolve as a single lexicon lookup;
		// Phrase additionally records that fallback via its Kind for
		// callers that care (e.g. diagnostics), but the resolution logic
		// is identical.
		return resolveSingle(term, term.Terms[0], lexicon, postingIndex, isLowIDF)
	}
}

func resolveSingle(term QueryTerm, token string, lexicon Lexicon, postingIndex PostingIndex, isLowIDF func(LexiconEntry) bool) (MatchingEntry, bool, error) {
	entry, ok := lexicon.Lookup(utils.IfToLower(token))
	if !ok {
		return MatchingEntry{}, false, nil
	}
	if isLowIDF != nil && isLowIDF(entry) {
		return MatchingEntry{}, false, nil
	}
	posting, err := postingIndex.OpenPosting(entry.InvertedAt)
	if err != nil {
		return MatchingEntry{}, false, newIOError("open posting for term "+token, err)
	}
	display := term.Display
	if display == "" {
		display = token
	}
	return MatchingEntry{
		Posting:  posting,
		Stats:    EntryStatistics{DF: entry.DF, CF: entry.CF},
		Display:  display,
		KeyFreq:  term.KeyFreq,
		Required: term.Required,
	}, true, nil
}

func resolveSynonym(term QueryTerm, lexicon Lexicon, postingIndex PostingIndex, fieldCount int, isLowIDF func(LexiconEntry) bool) (MatchingEntry, bool, error) {
	var iters []IterablePosting
	var stats EntryStatistics
	for _, token := range term.Terms {
		entry, ok := lexicon.Lookup(utils.IfToLower(token))
		if !ok {
			continue
		}
		if isLowIDF != nil && isLowIDF(entry) {
			continue
		}
		posting, err := postingIndex.OpenPosting(entry.InvertedAt)
		if err != nil {
			return MatchingEntry{}, false, newIOError("open posting for term "+token, err)
		}
		iters = append(iters, posting)
		stats.DF += entry.DF
		stats.CF += entry.CF
	}
	if len(iters) == 0 {
		return MatchingEntry{}, false, nil
	}
	display := term.Display
	if display == "" {
		display = term.Terms[0]
	}
	return MatchingEntry{
		Posting:  NewMergedIterator(iters, fieldCount),
		Stats:    stats,
		Display:  display,
		KeyFreq:  term.KeyFreq,
		Required: term.Required,
	}, true, nil
}
