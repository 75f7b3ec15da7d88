// Package runefs provides read-only access to the legacy game client's
// on-disk asset cache: one shared data file (main_file_cache.dat2) plus one
// entry table per index (main_file_cache.idx0..idxN, idx255). Assets are
// addressed as (index, archive, file) triples, and the package can emit the
// checksum manifest remote clients use to validate their caches.
package runefs

// On-disk file names, relative to the cache directory.
const (
	// DataFileName is the name of the shared data file.
	DataFileName = "main_file_cache.dat2"

	// IndexFilePrefix is the name of an index entry table, without the
	// trailing index id.
	IndexFilePrefix = "main_file_cache.idx"
)

// Well-known index ids.
const (
	// ConfigIndex holds configuration records, item definitions among them.
	ConfigIndex = 19
)
