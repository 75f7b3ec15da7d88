// Package jag reads the sector-based container format used by the legacy
// game client's on-disk asset cache: a single data file holding linked
// 520-byte sectors, per-index entry tables, and versioned archive manifests.
package jag

import "errors"

// Format constants for the cache layout.
const (
	// SectorSize is the fixed size of a sector in the data file.
	SectorSize = 520

	// EntrySize is the size of one record in an index entry table.
	EntrySize = 6

	// MetadataIndex is the id of the index-of-indices.
	MetadataIndex = 255
)

const (
	smallHeaderSize = 8
	largeHeaderSize = 10
)

var (
	// ErrShortRead is returned when a file yields fewer bytes than a record
	// requires.
	ErrShortRead = errors.New("short read")

	// ErrSectorOutOfBounds is returned when a sector pointer is zero or past
	// the end of the data file.
	ErrSectorOutOfBounds = errors.New("sector out of bounds")

	// ErrSectorChainMismatch is returned when a sector header disagrees with
	// the read request it was reached from.
	ErrSectorChainMismatch = errors.New("sector chain mismatch")

	// ErrUnsupportedProtocol is returned for manifest protocol versions other
	// than 5, 6 and 7.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrNotFound is returned when an archive or file id is absent.
	ErrNotFound = errors.New("not found")
)
