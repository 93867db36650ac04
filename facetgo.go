package facetgo

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/facetgo/documents"
	"github.com/hupe1980/facetgo/extsort"
	"github.com/hupe1980/facetgo/facet"
	"github.com/hupe1980/facetgo/store"
)

// Store regions. Documents hold the canonical records; the two facet
// regions hold one level structure per field, split by value type so
// byte-lexicographic bound order matches value order within a region.
const (
	RegionDocuments    = "documents"
	RegionFacetNumbers = "facet-f64"
	RegionFacetStrings = "facet-strings"
)

// FacetKind selects which facet region a query runs against.
type FacetKind uint8

const (
	// FacetNumbers queries numeric facet values.
	FacetNumbers FacetKind = iota
	// FacetStrings queries string facet values.
	FacetStrings
)

func (k FacetKind) regionName() (string, error) {
	switch k {
	case FacetNumbers:
		return RegionFacetNumbers, nil
	case FacetStrings:
		return RegionFacetStrings, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownFacetKind, k)
	}
}

// Engine ties the store, the bulk-load pipeline and the facet queries
// together.
type Engine struct {
	store  *store.Store
	opts   options
	logger *Logger
	closed bool
}

// Open opens or creates a facet index at path.
func Open(path string, optFns ...Option) (*Engine, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return &Engine{store: st, opts: opts, logger: opts.logger}, nil
}

// Close releases the store. Queries and loads must not be in flight.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.store.Close()
}

// IndexStats summarizes one bulk load.
type IndexStats struct {
	// Documents is the number of records consumed from the batch.
	Documents int
	// SpilledChunks counts sorter chunks that went to disk.
	SpilledChunks int
	// Took is the wall-clock duration of the whole load.
	Took time.Duration
}

// indexJob carries one record to a sorter worker. The record is an
// owned copy; the batch reader reuses its buffers.
type indexJob struct {
	docID uint32
	rec   documents.Record
}

// facetWorker owns two sorters (numeric and string facets) and the set
// of fields it saw. Sorters and their chunks are never shared across
// workers.
type facetWorker struct {
	numbers      *extsort.Sorter
	strings      *extsort.Sorter
	numberFields map[uint16]struct{}
	stringFields map[uint16]struct{}
	jobs         chan indexJob
}

// IndexBatch bulk-loads one canonical document batch: records are
// committed into the documents region (last write wins per document
// id), per-field facet bitmaps are built through the external
// sort/merge pipeline, and the level structure of every touched field
// is rebuilt. Everything is applied inside a single write transaction;
// on error the store is left unchanged.
//
// The context only governs the accumulate-and-spill phase. Once the
// merge-and-commit phase starts it runs to completion or aborts as a
// whole.
func (e *Engine) IndexBatch(ctx context.Context, batch *documents.BatchReader) (*IndexStats, error) {
	if e.closed {
		return nil, ErrClosed
	}
	start := time.Now()

	workers := e.opts.workers
	perSorter := e.opts.maxMemory / (workers + 1) / 2

	docSorter := e.newSorter(extsort.KeepLatest, e.opts.maxMemory/(workers+1))
	defer docSorter.Close()

	pool := make([]*facetWorker, workers)
	for i := range pool {
		pool[i] = &facetWorker{
			numbers:      e.newSorter(facet.MergeGroupValues, perSorter),
			strings:      e.newSorter(facet.MergeGroupValues, perSorter),
			numberFields: make(map[uint16]struct{}),
			stringFields: make(map[uint16]struct{}),
			jobs:         make(chan indexJob, 128),
		}
	}
	defer func() {
		for _, w := range pool {
			w.numbers.Close()
			w.strings.Close()
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range pool {
		g.Go(func() error {
			for job := range w.jobs {
				if err := w.push(job); err != nil {
					return err
				}
			}
			return nil
		})
	}

	count := 0
	readErr := func() error {
		defer func() {
			for _, w := range pool {
				close(w.jobs)
			}
		}()
		var key [4]byte
		for batch.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			docID := batch.DocID()
			rec := append(documents.Record(nil), batch.Record()...)

			binary.BigEndian.PutUint32(key[:], docID)
			if err := docSorter.Push(key[:], rec); err != nil {
				return err
			}

			select {
			case pool[int(docID)%workers].jobs <- indexJob{docID: docID, rec: rec}:
			case <-ctx.Done():
				return ctx.Err()
			}
			count++
		}
		return batch.Err()
	}()

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}

	spilled := docSorter.NumChunks()
	numberFields := make(map[uint16]struct{})
	stringFields := make(map[uint16]struct{})
	numberSources := make([]extsort.Iterator, 0, workers)
	stringSources := make([]extsort.Iterator, 0, workers)
	for _, w := range pool {
		spilled += w.numbers.NumChunks() + w.strings.NumChunks()
		for f := range w.numberFields {
			numberFields[f] = struct{}{}
		}
		for f := range w.stringFields {
			stringFields[f] = struct{}{}
		}
		ns, err := w.numbers.Stream()
		if err != nil {
			return nil, err
		}
		ss, err := w.strings.Stream()
		if err != nil {
			return nil, err
		}
		numberSources = append(numberSources, ns)
		stringSources = append(stringSources, ss)
	}
	docStream, err := docSorter.Stream()
	if err != nil {
		return nil, err
	}

	e.logger.Debug("bulk load accumulated",
		"documents", count,
		"spilled_chunks", spilled,
		"number_fields", len(numberFields),
		"string_fields", len(stringFields),
	)

	err = e.store.Update(func(tx *store.Tx) error {
		docs, err := tx.CreateRegion(RegionDocuments)
		if err != nil {
			return err
		}
		if err := store.WriteSorted(docs, docStream, extsort.KeepLatest); err != nil {
			return err
		}

		numbers, err := tx.CreateRegion(RegionFacetNumbers)
		if err != nil {
			return err
		}
		merged := extsort.NewMerger(facet.MergeGroupValues, numberSources...)
		if err := store.WriteSorted(numbers, merged, facet.MergeGroupValues); err != nil {
			return err
		}

		strs, err := tx.CreateRegion(RegionFacetStrings)
		if err != nil {
			return err
		}
		merged = extsort.NewMerger(facet.MergeGroupValues, stringSources...)
		if err := store.WriteSorted(strs, merged, facet.MergeGroupValues); err != nil {
			return err
		}

		for fieldID := range numberFields {
			if err := e.opts.builder.Rebuild(numbers, fieldID); err != nil {
				return err
			}
		}
		for fieldID := range stringFields {
			if err := e.opts.builder.Rebuild(strs, fieldID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats := &IndexStats{Documents: count, SpilledChunks: spilled, Took: time.Since(start)}
	e.logger.Debug("bulk load committed", "documents", stats.Documents, "took", stats.Took)
	return stats, nil
}

func (e *Engine) newSorter(merge extsort.MergeFunc, maxMemory int) *extsort.Sorter {
	return extsort.NewSorter(merge, func(o *extsort.SorterOptions) {
		o.MaxMemory = maxMemory
		o.MaxChunks = e.opts.maxChunks
		o.TempDir = e.opts.tempDir
		o.Compression = e.opts.compression
		o.CompressionLevel = e.opts.compressionLevel
	})
}

// push turns one record into level-0 facet entries on the worker's own
// sorters.
func (w *facetWorker) push(job indexJob) error {
	one := roaring.BitmapOf(job.docID)
	value, err := facet.GroupValue{Size: 1, Bitmap: one}.Marshal()
	if err != nil {
		return err
	}

	return job.rec.Visit(func(fieldID uint16, v documents.Value) error {
		var (
			sorter *extsort.Sorter
			bound  []byte
		)
		switch v.Kind {
		case documents.KindNumber:
			sorter = w.numbers
			bound = facet.EncodeF64(v.Num)
			w.numberFields[fieldID] = struct{}{}
		case documents.KindString:
			sorter = w.strings
			bound = []byte(v.Str)
			w.stringFields[fieldID] = struct{}{}
		case documents.KindBool:
			sorter = w.strings
			bound = []byte("false")
			if v.Bool {
				bound = []byte("true")
			}
			w.stringFields[fieldID] = struct{}{}
		default:
			// Nulls don't index.
			return nil
		}

		key := facet.GroupKey{FieldID: fieldID, Level: 0, LeftBound: bound}.Marshal()
		return sorter.Push(key, value)
	})
}

// FacetDistribution reports the distribution of a field's facet values
// over candidates in ascending value order. See facet.Distribution for
// the callback contract. A field that was never indexed yields no
// callbacks and no error.
func (e *Engine) FacetDistribution(fieldID uint16, kind FacetKind, candidates *roaring.Bitmap, fn facet.DistributionFunc) error {
	if e.closed {
		return ErrClosed
	}
	name, err := kind.regionName()
	if err != nil {
		return err
	}
	return e.store.View(func(tx *store.Tx) error {
		region, err := tx.Region(name)
		if err != nil {
			if errors.Is(err, store.ErrRegionNotFound) {
				return nil
			}
			return err
		}
		return facet.Distribution(region, fieldID, candidates, fn)
	})
}

// DescendingFacets is a pull-based descending facet sort bound to its
// own read snapshot. Close releases the snapshot; until then it may be
// interleaved with any number of readers and does not block writers.
type DescendingFacets struct {
	tx *store.Tx
	it *facet.DescendingIter
}

// SortFacetsDescending starts a descending facet sort of candidates
// over a field. The caller must Close the returned iterator.
func (e *Engine) SortFacetsDescending(fieldID uint16, kind FacetKind, candidates *roaring.Bitmap) (*DescendingFacets, error) {
	if e.closed {
		return nil, ErrClosed
	}
	name, err := kind.regionName()
	if err != nil {
		return nil, err
	}

	tx, err := e.store.Begin(false)
	if err != nil {
		return nil, err
	}
	region, err := tx.Region(name)
	if err != nil {
		if errors.Is(err, store.ErrRegionNotFound) {
			return &DescendingFacets{tx: tx}, nil
		}
		tx.Rollback()
		return nil, err
	}
	it, err := facet.SortDescending(region, fieldID, candidates)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	return &DescendingFacets{tx: tx, it: it}, nil
}

// Next advances to the next partition.
func (d *DescendingFacets) Next() bool {
	if d.it == nil {
		return false
	}
	return d.it.Next()
}

// Bitmap returns the current partition. The caller owns it.
func (d *DescendingFacets) Bitmap() *roaring.Bitmap {
	if d.it == nil {
		return nil
	}
	return d.it.Bitmap()
}

// Err returns the first fault encountered.
func (d *DescendingFacets) Err() error {
	if d.it == nil {
		return nil
	}
	return d.it.Err()
}

// Close releases the read snapshot.
func (d *DescendingFacets) Close() error {
	return d.tx.Rollback()
}
