package jag

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DataFile reads logical byte streams out of the shared data file. Entries
// are stored as singly-linked chains of 520-byte sectors; each sector carries
// a header naming the archive, index and chunk sequence number it belongs to,
// followed by the payload.
//
// Reads go through io.ReaderAt, so a DataFile is safe for concurrent use.
type DataFile struct {
	r      io.ReaderAt
	length int64
}

// NewDataFile wraps an opened data file of the given length.
func NewDataFile(r io.ReaderAt, length int64) *DataFile {
	return &DataFile{r: r, length: length}
}

// Length returns the size of the underlying data file in bytes.
func (d *DataFile) Length() int64 { return d.length }

// Read walks the sector chain starting at sector and returns exactly length
// payload bytes for the given index and archive. The header layout is chosen
// by the request: archives above 0xFFFF use the large 10-byte header, leaving
// 510 payload bytes per sector instead of 512.
//
// Every sector header is verified against the request; a stray archive id,
// index id or chunk number fails the read with ErrSectorChainMismatch.
func (d *DataFile) Read(index int, archive uint32, sector uint32, length uint32) ([]byte, error) {
	headerSize := smallHeaderSize
	if archive > 0xFFFF {
		headerSize = largeHeaderSize
	}
	dataSize := SectorSize - headerSize

	out := make([]byte, 0, length)
	raw := make([]byte, SectorSize)

	for part := 0; len(out) < int(length); part++ {
		if sector == 0 || int64(sector)*SectorSize >= d.length {
			return nil, fmt.Errorf("index %d archive %d part %d: sector %d: %w",
				index, archive, part, sector, ErrSectorOutOfBounds)
		}

		n, err := d.r.ReadAt(raw, int64(sector)*SectorSize)
		if n < SectorSize {
			if err == nil || errors.Is(err, io.EOF) {
				err = ErrShortRead
			}
			return nil, fmt.Errorf("index %d archive %d: sector %d: %w", index, archive, sector, err)
		}

		var hdrArchive uint32
		hdr := raw
		if headerSize == largeHeaderSize {
			hdrArchive = binary.BigEndian.Uint32(hdr)
			hdr = hdr[4:]
		} else {
			hdrArchive = uint32(binary.BigEndian.Uint16(hdr))
			hdr = hdr[2:]
		}
		hdrPart := binary.BigEndian.Uint16(hdr)
		next := uint32(hdr[2])<<16 | uint32(hdr[3])<<8 | uint32(hdr[4])
		hdrIndex := int(hdr[5])

		switch {
		case hdrArchive != archive:
			return nil, fmt.Errorf("sector %d holds archive %d, want %d: %w",
				sector, hdrArchive, archive, ErrSectorChainMismatch)
		case hdrIndex != index:
			return nil, fmt.Errorf("sector %d holds index %d, want %d: %w",
				sector, hdrIndex, index, ErrSectorChainMismatch)
		case int(hdrPart) != part:
			return nil, fmt.Errorf("sector %d is chunk %d, want %d: %w",
				sector, hdrPart, part, ErrSectorChainMismatch)
		}

		take := dataSize
		if remaining := int(length) - len(out); take > remaining {
			take = remaining
		}
		out = append(out, raw[headerSize:headerSize+take]...)
		sector = next
	}

	return out, nil
}
