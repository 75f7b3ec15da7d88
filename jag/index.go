package jag

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/runetools/runefs/buffer"
	"github.com/runetools/runefs/compression"
)

// Manifest flag bits.
const (
	flagNamed     = 0x1
	flagWhirlpool = 0x2
)

// Entry locates one archive inside the data file: the compressed blob's
// length and its first sector.
type Entry struct {
	Length uint32
	Sector uint32
}

// IndexFile is one logical table of archives. It pairs the on-disk entry
// table (main_file_cache.idx<N>) with the shared data file, and holds the
// decoded manifest once Load has run.
//
// Archive materialization is lazy and guarded by a mutex, so an IndexFile is
// safe for concurrent readers; each archive decompresses at most once.
type IndexFile struct {
	id         int
	meta       io.ReaderAt
	entryCount int
	data       *DataFile

	protocol  uint8
	revision  uint32
	named     bool
	whirlpool bool

	mu       sync.Mutex
	archives map[uint32]*Archive
	order    []uint32
}

// NewIndexFile wraps an opened entry table of the given size. The entry
// count is the table size in whole 6-byte records.
func NewIndexFile(id int, meta io.ReaderAt, size int64, data *DataFile) *IndexFile {
	return &IndexFile{
		id:         id,
		meta:       meta,
		entryCount: int(size / EntrySize),
		data:       data,
		archives:   make(map[uint32]*Archive),
	}
}

// ID returns the index id.
func (x *IndexFile) ID() int { return x.id }

// EntryCount returns the number of records in the entry table. This can
// exceed the manifest's archive count when archives are sparse.
func (x *IndexFile) EntryCount() int { return x.entryCount }

// Protocol returns the manifest protocol version (5, 6 or 7).
func (x *IndexFile) Protocol() uint8 { return x.protocol }

// Revision returns the index revision; zero for protocol 5 manifests.
func (x *IndexFile) Revision() uint32 { return x.revision }

// Named reports whether archives and files carry name hashes.
func (x *IndexFile) Named() bool { return x.named }

// Whirlpool reports whether archive records carry whirlpool digests.
func (x *IndexFile) Whirlpool() bool { return x.whirlpool }

// ArchiveCount returns the number of archives in the decoded manifest.
func (x *IndexFile) ArchiveCount() int { return len(x.order) }

// ArchiveIDs returns the manifest's archive ids in ascending order.
func (x *IndexFile) ArchiveIDs() []uint32 {
	out := make([]uint32, len(x.order))
	copy(out, x.order)
	return out
}

// Entry reads the 6-byte record for an archive from the entry table.
func (x *IndexFile) Entry(id uint32) (Entry, error) {
	var raw [EntrySize]byte
	n, err := x.meta.ReadAt(raw[:], int64(id)*EntrySize)
	if n < EntrySize {
		if err == nil || errors.Is(err, io.EOF) {
			err = ErrShortRead
		}
		return Entry{}, fmt.Errorf("index %d entry %d: %w", x.id, id, err)
	}
	return Entry{
		Length: uint32(raw[0])<<16 | uint32(raw[1])<<8 | uint32(raw[2]),
		Sector: uint32(raw[3])<<16 | uint32(raw[4])<<8 | uint32(raw[5]),
	}, nil
}

// Load decodes the index manifest from its decompressed blob.
func (x *IndexFile) Load(buf *buffer.Buffer) error {
	protocol, err := buf.Uint8()
	if err != nil {
		return fmt.Errorf("index %d: %w", x.id, err)
	}
	if protocol < 5 || protocol > 7 {
		return fmt.Errorf("index %d: protocol %d: %w", x.id, protocol, ErrUnsupportedProtocol)
	}
	x.protocol = protocol

	// Counts and delta ids widen to the smart encoding from protocol 7.
	smart := func() (uint32, error) {
		if protocol >= 7 {
			return buf.Smart()
		}
		v, err := buf.Uint16()
		return uint32(v), err
	}

	x.revision = 0
	if protocol >= 6 {
		if x.revision, err = buf.Uint32(); err != nil {
			return fmt.Errorf("index %d revision: %w", x.id, err)
		}
	}

	settings, err := buf.Uint8()
	if err != nil {
		return fmt.Errorf("index %d settings: %w", x.id, err)
	}
	x.named = settings&flagNamed != 0
	x.whirlpool = settings&flagWhirlpool != 0

	archiveCount, err := smart()
	if err != nil {
		return fmt.Errorf("index %d archive count: %w", x.id, err)
	}
	records := make([]ArchiveData, archiveCount)

	var lastID uint32
	for i := range records {
		delta, err := smart()
		if err != nil {
			return fmt.Errorf("index %d archive ids: %w", x.id, err)
		}
		lastID += delta
		records[i].ID = lastID
	}

	if x.named {
		for i := range records {
			if records[i].NameHash, err = buf.Int32(); err != nil {
				return fmt.Errorf("index %d name hashes: %w", x.id, err)
			}
		}
	}

	if x.whirlpool {
		for i := range records {
			digest, err := buf.ReadBytes(WhirlpoolSize)
			if err != nil {
				return fmt.Errorf("index %d whirlpool digests: %w", x.id, err)
			}
			copy(records[i].Whirlpool[:], digest)
		}
	}

	for i := range records {
		if records[i].CRC, err = buf.Int32(); err != nil {
			return fmt.Errorf("index %d checksums: %w", x.id, err)
		}
	}

	for i := range records {
		if records[i].Revision, err = buf.Int32(); err != nil {
			return fmt.Errorf("index %d revisions: %w", x.id, err)
		}
	}

	for i := range records {
		count, err := smart()
		if err != nil {
			return fmt.Errorf("index %d file counts: %w", x.id, err)
		}
		records[i].FileCount = int(count)
		records[i].Files = make([]FileData, count)
	}

	for i := range records {
		var lastFileID uint32
		for j := range records[i].Files {
			delta, err := smart()
			if err != nil {
				return fmt.Errorf("index %d archive %d file ids: %w", x.id, records[i].ID, err)
			}
			lastFileID += delta
			records[i].Files[j].ID = lastFileID
		}
	}

	if x.named {
		for i := range records {
			for j := range records[i].Files {
				if records[i].Files[j].NameHash, err = buf.Int32(); err != nil {
					return fmt.Errorf("index %d file name hashes: %w", x.id, err)
				}
			}
		}
	}

	archives := make(map[uint32]*Archive, len(records))
	order := make([]uint32, 0, len(records))
	for i := range records {
		archives[records[i].ID] = NewArchive(records[i])
		order = append(order, records[i].ID)
	}

	x.mu.Lock()
	x.archives = archives
	x.order = order
	x.mu.Unlock()

	slog.Debug("index manifest loaded",
		"index", x.id, "protocol", x.protocol, "revision", x.revision,
		"archives", len(order), "named", x.named, "whirlpool", x.whirlpool)
	return nil
}

// Archive returns the archive with the given id, materializing its contents
// from the data file on first access.
func (x *IndexFile) Archive(id uint32) (*Archive, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	a, ok := x.archives[id]
	if !ok {
		return nil, fmt.Errorf("index %d archive %d: %w", x.id, id, ErrNotFound)
	}
	if a.Loaded() {
		return a, nil
	}

	entry, err := x.Entry(id)
	if err != nil {
		return nil, err
	}
	raw, err := x.data.Read(x.id, id, entry.Sector, entry.Length)
	if err != nil {
		return nil, err
	}
	payload, err := compression.Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("index %d archive %d: %w", x.id, id, err)
	}
	if err := a.Read(payload); err != nil {
		return nil, err
	}

	slog.Debug("archive materialized",
		"index", x.id, "archive", id, "files", a.FileCount(), "size", len(payload))
	return a, nil
}

// Data materializes an archive and returns the contents of one of its files.
func (x *IndexFile) Data(archive, file uint32) ([]byte, error) {
	a, err := x.Archive(archive)
	if err != nil {
		return nil, err
	}
	return a.File(file)
}
