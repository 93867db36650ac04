// Package store wraps the persistent key-value engine behind the rest
// of facetgo.
//
// The engine is bbolt: a memory-mapped, single-writer B+tree with ACID
// transactions and snapshot-isolated readers. Regions are bbolt buckets;
// a read transaction pins one immutable snapshot for its whole lifetime,
// which is what the facet iterators rely on.
//
// WriteSorted and WriteReader implement the merge-commit step of the
// bulk-load pipeline: every incoming key is probed against the region
// and conflicts are resolved through the caller's MergeFunc inside the
// enclosing write transaction.
package store
