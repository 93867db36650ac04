// Package facet implements the hierarchical facet value index and its
// two traversal algorithms.
//
// Facet values of one field are persisted as a multi-level grouped
// structure: level 0 holds one entry per exact value with the bitmap of
// documents carrying it; each higher level groups a fixed fan-out of
// children and stores the union of their bitmaps. Keys order by
// (field id, level, left bound), where the left bound is an
// order-preserving byte encoding of the value, so byte-lexicographic
// range scans walk values in value order.
//
// Distribution visits values in ascending order and reports document
// counts intersected with a candidate set; SortDescending partitions a
// candidate set into bitmaps in strictly decreasing value order. Both
// run against one read-transaction snapshot for their whole lifetime
// and never mutate the index.
package facet
