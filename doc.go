// Package facetgo is the indexing and retrieval core of a document
// search engine.
//
// It maintains a persistent, memory-mapped, sorted key-value store of
// per-field facet values, answers aggregate queries (distribution
// counts, descending-value traversal) over arbitrary document subsets,
// and bulk-builds those structures from unsorted input at scale under a
// bounded memory budget.
//
// The Engine in this package is the orchestration facade. The hard
// parts live in the subpackages:
//
//   - extsort: chunked spill-to-disk sorting and k-way merging with a
//     pluggable merge function.
//   - store: the transactional key-value store (bbolt) with
//     range/reverse-range cursors, and the merge-commit store writer.
//   - facet: the hierarchical facet level index and its two traversal
//     algorithms.
//   - documents: canonical document batch encoding and the CSV, NDJSON
//     and JSON payload readers.
//
// facetgo is a library boundary: it exposes no network or CLI surface.
package facetgo
