package xindex

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/oarkflow/filters"

	"github.com/oarkflow/xindex/utils"
)

// QueryStats records one query's shape and latency, grounded on
// enhancer.go's QueryStats/logQuery ambient metrics.
type QueryStats struct {
	Query     string
	Timestamp time.Time
	Latency   time.Duration
	NumTerms  int
}

// planCacheEntry holds the reusable outcome of assembling a term set
// against an index: resolved statistics, display strings and required
// flags, but never the iterators themselves (postings are stateful
// cursors and cannot be shared across concurrent queries, spec.md §5).
type planCacheEntry struct {
	stats    []EntryStatistics
	displays []string
	required []bool
	keyFreqs []float64
	tokens   [][]string // Terms slice per effective position, for reopening postings on a hit
	kinds    []QueryTermKind
}

// QueryPlanCache holds resolved query plans across many Manager instances
// querying the same index, grounded on the teacher's cross-request
// OptimizedSearchCache (index.go). Since a Manager is constructed fresh
// per query (spec.md §4.4), the cache has to live outside any one Manager
// to ever see a repeat lookup: callers that expect repeated queries share
// one QueryPlanCache across the Managers they construct.
type QueryPlanCache struct {
	mu      sync.Mutex
	entries map[uint64]planCacheEntry
}

// NewQueryPlanCache returns an empty, ready-to-share QueryPlanCache.
func NewQueryPlanCache() *QueryPlanCache {
	return &QueryPlanCache{entries: make(map[uint64]planCacheEntry)}
}

func (c *QueryPlanCache) lookup(key uint64) (planCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *QueryPlanCache) store(key uint64, entry planCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

// Manager is the query-time coordinator: given a set of query terms, it
// assembles posting iterators, weighting models, and merged statistics
// into the parallel-array representation a ranking driver consumes.
type Manager struct {
	index        Index
	lexicon      Lexicon
	postingIndex PostingIndex
	stats        CollectionStatistics
	cfg          Config
	planCache    *QueryPlanCache

	posting  []IterablePosting
	models   [][]WeightingModel
	entries  []EntryStatistics
	terms    []string
	keyFreq  []float64
	required []bool
	numTerms int
	prepared bool
	closed   bool

	queryMu    sync.Mutex
	queryStats []QueryStats
}

// NewManager constructs a Manager for one query against idx, using lexicon
// and postingIndex to resolve query terms and stats for collection-wide
// statistics available to weighting models. cache is optional: pass a
// QueryPlanCache shared across the Managers built for one index to get
// plan reuse across queries; omit it to run with plan caching disabled.
func NewManager(index Index, lexicon Lexicon, postingIndex PostingIndex, stats CollectionStatistics, cfg Config, cache ...*QueryPlanCache) *Manager {
	m := &Manager{
		index:        index,
		lexicon:      lexicon,
		postingIndex: postingIndex,
		stats:        stats,
		cfg:          cfg,
	}
	if len(cache) > 0 {
		m.planCache = cache[0]
	}
	return m
}

// Assemble runs the assembly protocol over queryTerms in input order: each
// term is resolved to a MatchingEntry (skipping terms that resolve to
// nothing, never inserting a hole), models are attached per effective
// position, and the plugins named in cfg.Plugins are invoked in the order
// that list gives them.
func (m *Manager) Assemble(queryTerms []QueryTerm, models func(display string) []WeightingModel) error {
	if m.prepared {
		return newPreconditionError("Assemble called after prepare")
	}

	var planKey uint64
	if m.planCache != nil {
		planKey = m.planKey(queryTerms)
		if cached, ok := m.planCache.lookup(planKey); ok {
			return m.assembleFromCache(cached, models)
		}
	}

	isLowIDF := m.lowIDFPredicate()

	var entry planCacheEntry
	for _, term := range queryTerms {
		match, ok, err := resolve(term, m.lexicon, m.postingIndex, m.cfg.FieldCount, isLowIDF)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		m.posting = append(m.posting, match.Posting)
		m.entries = append(m.entries, match.Stats)
		m.terms = append(m.terms, match.Display)
		m.keyFreq = append(m.keyFreq, match.KeyFreq)
		m.required = append(m.required, match.Required)
		m.models = append(m.models, models(match.Display))

		entry.stats = append(entry.stats, match.Stats)
		entry.displays = append(entry.displays, match.Display)
		entry.required = append(entry.required, match.Required)
		entry.keyFreqs = append(entry.keyFreqs, match.KeyFreq)
		entry.tokens = append(entry.tokens, term.Terms)
		entry.kinds = append(entry.kinds, term.Kind)
	}

	if m.planCache != nil {
		m.planCache.store(planKey, entry)
	}

	for _, p := range defaultPluginRegistry.resolve(m.cfg.Plugins) {
		if err := p.Apply(m); err != nil {
			return err
		}
	}
	return nil
}

// assembleFromCache reuses a cached plan's resolved statistics/order but
// opens fresh posting iterators, since a cache hit must never share a
// stateful cursor across queries.
func (m *Manager) assembleFromCache(entry planCacheEntry, models func(display string) []WeightingModel) error {
	for i := range entry.displays {
		var posting IterablePosting
		var err error
		switch entry.kinds[i] {
		case Synonym:
			var iters []IterablePosting
			for _, tok := range entry.tokens[i] {
				le, ok := m.lexicon.Lookup(utils.IfToLower(tok))
				if !ok {
					continue
				}
				p, oerr := m.postingIndex.OpenPosting(le.InvertedAt)
				if oerr != nil {
					return newIOError("reopen cached synonym posting", oerr)
				}
				iters = append(iters, p)
			}
			posting = NewMergedIterator(iters, m.cfg.FieldCount)
		default:
			le, ok := m.lexicon.Lookup(utils.IfToLower(entry.tokens[i][0]))
			if !ok {
				continue
			}
			posting, err = m.postingIndex.OpenPosting(le.InvertedAt)
			if err != nil {
				return newIOError("reopen cached posting", err)
			}
		}
		m.posting = append(m.posting, posting)
		m.entries = append(m.entries, entry.stats[i])
		m.terms = append(m.terms, entry.displays[i])
		m.keyFreq = append(m.keyFreq, entry.keyFreqs[i])
		m.required = append(m.required, entry.required[i])
		m.models = append(m.models, models(entry.displays[i]))
	}
	for _, p := range defaultPluginRegistry.resolve(m.cfg.Plugins) {
		if err := p.Apply(m); err != nil {
			return err
		}
	}
	return nil
}

// lowIDFPredicate returns the low-IDF exclusion test as an oarkflow/filters
// rule evaluated against a {"df": entry.DF} record, grounded on the
// teacher's FilterQuery/NewFilterQuery. Returns nil when filtering is
// disabled.
func (m *Manager) lowIDFPredicate() func(LexiconEntry) bool {
	if !m.cfg.IgnoreLowIDFTerms {
		return nil
	}
	rule := filters.NewRule()
	rule.AddCondition(filters.AND, false, &filters.Filter{
		Field:    "df",
		Operator: filters.GreaterThan,
		Value:    m.cfg.LowIDFThresholdDF,
	})
	return func(e LexiconEntry) bool {
		return rule.Match(map[string]any{"df": e.DF})
	}
}

func (m *Manager) planKey(queryTerms []QueryTerm) uint64 {
	h := xxhash.New()
	for _, t := range queryTerms {
		for _, tok := range t.Terms {
			h.Write([]byte(tok))
			h.Write([]byte{0})
		}
		h.Write([]byte{byte(t.Kind), 1})
	}
	t := m.cfg.LowIDFThresholdDF
	h.Write([]byte{boolByte(m.cfg.IgnoreLowIDFTerms), byte(t >> 24), byte(t >> 16), byte(t >> 8), byte(t)})
	return h.Sum64()
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Prepare finalises numTerms and, if firstMove, advances every iterator
// one step so the first ID() call is valid. Must be called exactly once
// before Score/Posting.
func (m *Manager) Prepare(firstMove bool) {
	m.numTerms = len(m.posting)
	if firstMove {
		for _, p := range m.posting {
			p.Next()
		}
	}
	m.prepared = true
}

// Size reports the number of effective terms.
func (m *Manager) Size() int { return m.numTerms }

// Posting returns the i-th effective term's posting iterator.
func (m *Manager) Posting(i int) (IterablePosting, error) {
	if err := m.checkRange(i); err != nil {
		return nil, err
	}
	return m.posting[i], nil
}

// Statistics returns the i-th effective term's merged entry statistics.
func (m *Manager) Statistics(i int) (EntryStatistics, error) {
	if err := m.checkRange(i); err != nil {
		return EntryStatistics{}, err
	}
	return m.entries[i], nil
}

// Term returns the i-th effective term's display string.
func (m *Manager) Term(i int) (string, error) {
	if err := m.checkRange(i); err != nil {
		return "", err
	}
	return m.terms[i], nil
}

// KeyFrequency returns the i-th effective term's query-side weight.
func (m *Manager) KeyFrequency(i int) (float64, error) {
	if err := m.checkRange(i); err != nil {
		return 0, err
	}
	return m.keyFreq[i], nil
}

// RequiredMask returns the bitmask of MUST-match effective positions.
func (m *Manager) RequiredMask() uint64 {
	var mask uint64
	for i, req := range m.required {
		if req {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// RequiredDocIDs drains every MUST-match effective term's posting list and
// returns the intersection of their docId sets, using utils.IntersectU32
// pairwise across the required terms. This is a terminal operation: it
// exhausts the iterators for required positions, so call it only when the
// manager is being used for boolean AND filtering rather than per-position
// scoring, and call it in place of (not before) Score/Posting on the same
// positions. Returns nil if RequiredMask is empty.
func (m *Manager) RequiredDocIDs() []uint32 {
	var sets [][]uint32
	for i, req := range m.required {
		if !req {
			continue
		}
		p := m.posting[i]
		var ids []uint32
		for id := p.ID(); id != EOL; id = p.Next() {
			ids = append(ids, id)
		}
		sets = append(sets, ids)
	}
	if len(sets) == 0 {
		return nil
	}
	result := sets[0]
	for _, s := range sets[1:] {
		result = utils.IntersectU32(result, s)
	}
	return result
}

// Score sums, over every weighting model attached to the i-th effective
// term, model.Score(posting[i], stats[i], keyFreq[i]) at the iterator's
// current position.
func (m *Manager) Score(i int) (float64, error) {
	if err := m.checkRange(i); err != nil {
		return 0, err
	}
	var total float64
	for _, model := range m.models[i] {
		total += model.Score(m.posting[i], m.entries[i], m.keyFreq[i])
	}
	return total, nil
}

func (m *Manager) checkRange(i int) error {
	if i < 0 || i >= m.numTerms {
		return &IndexOutOfRangeError{Index: i, Size: m.numTerms}
	}
	return nil
}

// Close closes every iterator; idempotent.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	var first error
	for _, p := range m.posting {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LogQuery records a completed query's shape and latency, grounded on
// enhancer.go's logQuery/GetQueryStats/GetAverageLatency ambient metrics.
func (m *Manager) LogQuery(display string, start time.Time) {
	m.queryMu.Lock()
	defer m.queryMu.Unlock()
	m.queryStats = append(m.queryStats, QueryStats{
		Query:     display,
		Timestamp: start,
		Latency:   time.Since(start),
		NumTerms:  m.numTerms,
	})
}

// AverageLatency returns the mean latency across every query logged via
// LogQuery, or 0 if none have been logged.
func (m *Manager) AverageLatency() time.Duration {
	m.queryMu.Lock()
	defer m.queryMu.Unlock()
	if len(m.queryStats) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range m.queryStats {
		total += s.Latency
	}
	return total / time.Duration(len(m.queryStats))
}
