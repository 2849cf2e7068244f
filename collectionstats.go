package xindex

// CollectionStatistics is immutable for the lifetime of a query or a build
// pass: numDocs, numTerms and numTokens describe collection-wide totals;
// fieldNames/fieldTokens are parallel slices of length fieldCount, or nil
// when the collection does not track fields.
type CollectionStatistics struct {
	NumDocs     uint64
	NumTerms    uint64
	NumTokens   uint64
	NumPointers uint64
	FieldCount  int
	FieldNames  []string
	FieldTokens []uint64
}
