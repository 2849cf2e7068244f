package xindex

import (
	"context"
	"log"

	"github.com/oarkflow/squealx"
	"github.com/oarkflow/xid"
)

// BuilderOption configures a DirectIndexBuilder at construction time,
// separately from Config since it can carry live resources (a database
// handle) that a plain properties map cannot express.
type BuilderOption func(*DirectIndexBuilder)

// WithSQLScratch selects the sqlScratchStore backend over the default
// fileScratchStore, for deployments running the transposition job against
// a shared relational scratch table. See scratch.go.
func WithSQLScratch(db *squealx.DB, table string) BuilderOption {
	return func(b *DirectIndexBuilder) {
		b.sqlDB = db
		b.sqlTable = table
	}
}

// DirectIndexBuilder reconstructs a per-document (direct) posting index
// from an existing per-term (inverted) posting index, per spec.md §4.3.
type DirectIndexBuilder struct {
	idx      Index
	cc       CompressionConfiguration
	cfg      Config
	sqlDB    *squealx.DB
	sqlTable string
}

// NewDirectIndexBuilder returns a builder over idx using cc to write direct
// postings, configured by opts.
func NewDirectIndexBuilder(idx Index, cc CompressionConfiguration, cfg Config, opts ...BuilderOption) *DirectIndexBuilder {
	b := &DirectIndexBuilder{idx: idx, cc: cc, cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

const (
	sourceStructure = "inverted"
	destStructure   = "direct"
	docIndexName    = "document"
)

func (b *DirectIndexBuilder) checkPreconditions() error {
	if !b.idx.HasStructure(sourceStructure) {
		return newPreconditionError("source structure %q does not exist", sourceStructure)
	}
	if b.idx.HasStructure(destStructure) {
		return newPreconditionError("destination structure %q already exists", destStructure)
	}
	if b.idx.Version() < 2.0 {
		return newPreconditionError("index version %.1f is unsupported, need >= 2.0", b.idx.Version())
	}
	if v, ok := b.idx.Property("lexicon.termids"); !ok || v != "aligned" {
		return newPreconditionError("index.lexicon.termids != \"aligned\"")
	}
	return nil
}

func (b *DirectIndexBuilder) openScratch(runID string) (ScratchStore, error) {
	if b.sqlDB != nil {
		return newSQLScratchStore(b.sqlDB, b.sqlTable, runID)
	}
	return newFileScratchStore("xindex-scratch-" + runID + ".bin")
}

// Build runs the full transposition pipeline: multi-pass windowed
// traversal of the inverted index, direct posting materialisation, and a
// document-index rewrite with the new offsets, committed via atomic
// rename. stats.NumTokens, if nonzero, is compared against the tokens
// actually observed for the TokenMismatchWarning (spec.md §7); a mismatch
// is logged, never returned as an error.
func (b *DirectIndexBuilder) Build(ctx context.Context, stats CollectionStatistics) error {
	if err := b.checkPreconditions(); err != nil {
		return err
	}

	runID := xid.New().String()
	scratch, err := b.openScratch(runID)
	if err != nil {
		return err
	}

	docStream, err := b.idx.OpenDocumentIndexStream(docIndexName)
	if err != nil {
		return newIOError("open document index for scan", err)
	}

	postOut, err := b.cc.PostingOutputStream(destStructure + "." + b.cc.FileExtension())
	if err != nil {
		docStream.Close()
		return newIOError("open direct posting output stream", err)
	}

	fieldCount := b.cfg.FieldCount
	tokenBudget := b.cfg.TokenBudget
	if tokenBudget == 0 {
		tokenBudget = DefaultConfig().TokenBudget
	}

	var lastPointer Pointer
	var totalTokensObserved uint64
	var totalDocs uint64
	buildErr := func() error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			window, err := scanDocumentIndexForTokens(tokenBudget, docStream)
			if err != nil {
				return newIOError("scan document index window", err)
			}
			if len(window) == 0 {
				break
			}
			firstDocid := window[0].DocID
			n := len(window)

			invStream, err := b.idx.OpenInvertedIndexStream(sourceStructure)
			if err != nil {
				return newIOError("open inverted index stream", err)
			}

			buffers := make([]*DirectPostingBuffer, n)
			for i := range buffers {
				buffers[i] = NewDirectPostingBuffer(fieldCount)
			}

			observed, err := traverseInvertedFile(invStream, firstDocid, n, buffers, fieldCount)
			totalTokensObserved += observed
			closeErr := invStream.Close()
			if err != nil {
				return err
			}
			if closeErr != nil {
				return newIOError("close inverted index stream", closeErr)
			}

			for i := 0; i < n; i++ {
				var ptr Pointer
				if buffers[i].DF() > 0 {
					ptr, err = postOut.Append(buffers[i].decoder(), buffers[i].DF())
					if err != nil {
						return newIOError("append direct posting", err)
					}
					lastPointer = ptr
				} else {
					ptr = Pointer{ByteOffset: lastPointer.ByteOffset, BitOffset: lastPointer.BitOffset, NumEntries: 0}
				}
				if err := scratch.Append(scratchRecord{ByteOffset: ptr.ByteOffset, BitOffset: ptr.BitOffset, NumEntries: ptr.NumEntries}); err != nil {
					return err
				}
			}
			totalDocs += uint64(n)
		}
		return nil
	}()

	closeErr := docStream.Close()
	postOutErr := postOut.Close()
	if buildErr != nil {
		return buildErr
	}
	if closeErr != nil {
		return newIOError("close document index scan stream", closeErr)
	}
	if postOutErr != nil {
		return newIOError("close direct posting output stream", postOutErr)
	}

	if err := scratch.Rewind(); err != nil {
		return err
	}

	if err := b.rewriteDocumentIndex(scratch); err != nil {
		return err
	}

	if err := scratch.Cleanup(); err != nil {
		return err
	}

	if err := b.cc.WriteIndexProperties(b.idx, destStructure); err != nil {
		return newIOError("write direct index properties", err)
	}

	if err := b.idx.AddStructure(destStructure); err != nil {
		return newIOError("register direct structure", err)
	}
	if err := b.idx.Flush(); err != nil {
		return newIOError("flush index metadata", err)
	}

	if stats.NumTokens != 0 && stats.NumTokens != totalTokensObserved {
		log.Printf("xindex: token count mismatch: collection statistics report %d tokens, traversal observed %d", stats.NumTokens, totalTokensObserved)
	}

	return nil
}

func (b *DirectIndexBuilder) rewriteDocumentIndex(scratch ScratchStore) error {
	oldStream, err := b.idx.OpenDocumentIndexStream(docIndexName)
	if err != nil {
		return newIOError("reopen document index for rewrite", err)
	}
	defer oldStream.Close()

	newBuilder, err := b.idx.NewDocumentIndexBuilder(docIndexName + "-df")
	if err != nil {
		return newIOError("open provisional document index builder", err)
	}

	var prevByteOffset uint64
	first := true
	for {
		entry, ok := oldStream.Next()
		if !ok {
			break
		}
		rec, ok, err := scratch.Read()
		if err != nil {
			newBuilder.Abort()
			return err
		}
		if !ok {
			newBuilder.Abort()
			return newIOError("rewrite document index", errShortScratch)
		}
		entry.Ptr = Pointer{ByteOffset: rec.ByteOffset, BitOffset: rec.BitOffset, NumEntries: rec.NumEntries}
		if !first && entry.Ptr.ByteOffset < prevByteOffset {
			newBuilder.Abort()
			return newMalformedStreamError("offsets scratch produced non-monotonic byte offsets")
		}
		prevByteOffset = entry.Ptr.ByteOffset
		first = false
		if err := newBuilder.Append(entry); err != nil {
			newBuilder.Abort()
			return newIOError("append rewritten document index entry", err)
		}
	}
	if err := newBuilder.Commit(docIndexName); err != nil {
		return newIOError("commit rewritten document index", err)
	}
	return nil
}

// scanDocumentIndexForTokens advances stream, summing document lengths,
// until the running sum reaches or exceeds budget, returning the consumed
// window. Destructive: the next call resumes where this one left off.
func scanDocumentIndexForTokens(budget uint64, stream DocumentIndexStream) ([]DocumentIndexEntry, error) {
	var window []DocumentIndexEntry
	var sum uint64
	for sum < budget {
		entry, ok := stream.Next()
		if !ok {
			break
		}
		window = append(window, entry)
		sum += uint64(entry.DocLength)
	}
	return window, nil
}

// traverseInvertedFile scans invStream's term lists in scan order,
// distributing postings for docIds in [firstDocid, firstDocid+n) into the
// matching per-document buffer, gap-encoding termIds within each document
// as DirectPostingBuffer.AddEntry requires. It relies on the
// lexicon.termids=aligned pre-condition: term lists are visited in
// strictly ascending termId order.
func traverseInvertedFile(invStream InvertedIndexStream, firstDocid uint32, n int, buffers []*DirectPostingBuffer, fieldCount int) (uint64, error) {
	lastDocid := firstDocid + uint32(n) - 1
	var totalTokens uint64
	for {
		list, ok := invStream.Next()
		if !ok {
			break
		}
		p := list.Postings
		id := p.NextAfter(firstDocid)
		if id == EOL || id > lastDocid {
			if err := p.Close(); err != nil {
				return totalTokens, newIOError("close skipped posting list", err)
			}
			continue
		}
		for id != EOL && id <= lastDocid {
			j := id - firstDocid
			tf := p.Frequency()
			var ff []uint32
			if fieldCount > 0 {
				ff = p.FieldFrequencies()
			}
			if err := buffers[j].AddEntry(list.TermID, tf, ff); err != nil {
				p.Close()
				return totalTokens, err
			}
			totalTokens += uint64(tf)
			id = p.Next()
		}
		if err := p.Close(); err != nil {
			return totalTokens, newIOError("close posting list", err)
		}
	}
	return totalTokens, nil
}

var errShortScratch = newMalformedStreamError("offsets scratch exhausted before document index")
