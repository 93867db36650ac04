package facetgo

import "errors"

var (
	// ErrClosed is returned when using an Engine after Close.
	ErrClosed = errors.New("facetgo: engine is closed")
	// ErrUnknownFacetKind is returned for a FacetKind this engine does
	// not know.
	ErrUnknownFacetKind = errors.New("facetgo: unknown facet kind")
)
