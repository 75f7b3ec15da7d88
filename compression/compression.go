// Package compression decodes the framed container blobs stored in the
// cache's data file. A container is a one-byte compression type, a four-byte
// compressed size and the payload; compressed types additionally carry a
// four-byte decompressed size ahead of the payload and an optional two-byte
// trailing revision.
package compression

import (
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/runetools/runefs/buffer"
)

// Container compression types as stored on disk.
const (
	None  = 0
	Bzip2 = 1
	Gzip  = 2
)

// bzip2Header is the stream header stripped from stored BZIP2 payloads:
// magic "BZ", huffman coding 'h', block size 1.
var bzip2Header = []byte("BZh1")

var (
	// ErrUnknownCompression is returned for compression types other than
	// NONE, BZIP2 and GZIP.
	ErrUnknownCompression = errors.New("unknown compression type")

	// ErrDecompress is returned when the underlying codec fails or produces
	// a different length than the container header declares.
	ErrDecompress = errors.New("decompress failed")
)

// Decompress decodes a container blob into its raw payload.
//
// NONE containers return the payload verbatim. BZIP2 payloads are stored
// with the stream header stripped and get it restored before decoding; GZIP
// payloads carry a full gzip wrapper. The optional trailing revision is
// consumed when at least two bytes remain; 0x7FFF marks a corrupt container.
func Decompress(blob []byte) ([]byte, error) {
	buf := buffer.New(blob)

	typ, err := buf.Uint8()
	if err != nil {
		return nil, fmt.Errorf("container type: %w", err)
	}
	compressedSize, err := buf.Uint32()
	if err != nil {
		return nil, fmt.Errorf("container size: %w", err)
	}

	switch typ {
	case None, Bzip2, Gzip:
	default:
		return nil, fmt.Errorf("container type %d: %w", typ, ErrUnknownCompression)
	}

	if typ == None {
		return buf.ReadBytes(int(compressedSize))
	}

	decompressedSize, err := buf.Uint32()
	if err != nil {
		return nil, fmt.Errorf("decompressed size: %w", err)
	}
	payload, err := buf.ReadBytes(int(compressedSize))
	if err != nil {
		return nil, fmt.Errorf("container payload: %w", err)
	}

	if buf.Remaining() >= 2 {
		revision, err := buf.Uint16()
		if err != nil {
			return nil, err
		}
		if revision == 0x7FFF {
			return nil, fmt.Errorf("container revision 0x7FFF: %w", ErrDecompress)
		}
	}

	var r io.Reader
	switch typ {
	case Bzip2:
		framed := make([]byte, 0, len(bzip2Header)+len(payload))
		framed = append(framed, bzip2Header...)
		framed = append(framed, payload...)
		r = bzip2.NewReader(bytes.NewReader(framed))
	case Gzip:
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("gzip header: %w: %v", ErrDecompress, err)
		}
		defer zr.Close()
		r = zr
	}

	out := make([]byte, decompressedSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("expected %d decompressed bytes: %w: %v", decompressedSize, ErrDecompress, err)
	}
	// The codec must be exhausted; extra output means the declared size lied.
	var one [1]byte
	if n, err := r.Read(one[:]); n != 0 || !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("output exceeds declared size %d: %w", decompressedSize, ErrDecompress)
	}
	return out, nil
}
