package extract

import "errors"

var (
	// ErrSizeExceeded is returned before any parsing when the document is
	// larger than the configured byte-size ceiling.
	ErrSizeExceeded = errors.New("document exceeds size limit")
	// ErrPageCountExceeded is returned before page extraction when the
	// document has more pages than the configured ceiling.
	ErrPageCountExceeded = errors.New("document exceeds page limit")
	// ErrExtraction is returned when the document cannot be parsed.
	ErrExtraction = errors.New("failed to extract document text")
)
