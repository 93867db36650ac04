package facetgo

import (
	"runtime"

	"github.com/hupe1980/facetgo/extsort"
	"github.com/hupe1980/facetgo/facet"
)

type options struct {
	logger           *Logger
	maxMemory        int
	maxChunks        int
	compression      extsort.CompressionType
	compressionLevel int
	tempDir          string
	workers          int
	builder          facet.Builder
}

// Option configures Engine construction.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:    NoopLogger(),
		maxMemory: extsort.DefaultMaxMemory,
		workers:   runtime.GOMAXPROCS(0),
		builder:   facet.DefaultBuilder(),
	}
}

// WithLogger injects a logger. Nil restores the no-op default.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMaxMemory sets the total in-memory budget of a bulk load in
// bytes. The budget is divided evenly across the sorter workers; a
// worker exceeding its share spills a sorted chunk to disk.
func WithMaxMemory(bytes int) Option {
	return func(o *options) {
		o.maxMemory = bytes
	}
}

// WithMaxChunks bounds how many spilled chunks a sorter worker keeps
// open before folding them together. Zero means unlimited.
func WithMaxChunks(n int) Option {
	return func(o *options) {
		o.maxChunks = n
	}
}

// WithCompression selects the chunk compression used for spilled
// sorter output. Level zero means the codec default.
func WithCompression(typ extsort.CompressionType, level int) Option {
	return func(o *options) {
		o.compression = typ
		o.compressionLevel = level
	}
}

// WithTempDir sets the directory for spilled chunks. Empty means the
// OS default temp directory.
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}

// WithWorkers sets the number of parallel sorter workers for the
// accumulate-and-spill phase. Values below one fall back to one.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.workers = n
	}
}

// WithFanOut tunes the facet level structure: groupSize children per
// group and no parent level below minLevelSize entries.
func WithFanOut(groupSize uint8, minLevelSize int) Option {
	return func(o *options) {
		o.builder = facet.Builder{GroupSize: groupSize, MinLevelSize: minLevelSize}
	}
}
