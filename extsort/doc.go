// Package extsort implements the external sort/merge pipeline used to
// bulk-build sorted key-value data under a bounded memory budget.
//
// The pipeline has three stages:
//
//   - Writer/Reader: a sequential, optionally compressed stream of sorted
//     key-value pairs ("chunks"), backed by temporary files or any
//     io.Writer/io.Reader.
//   - Sorter: accumulates pairs in arbitrary order, coalescing duplicate
//     keys through a MergeFunc, and spills sorted chunks to disk whenever
//     the memory budget is exceeded.
//   - Merger: a k-way merge over any number of sorted sources, producing
//     one globally sorted, duplicate-free stream.
//
// The MergeFunc is threaded through all three stages as an explicit value
// so callers (and tests) control conflict resolution per data kind.
package extsort
