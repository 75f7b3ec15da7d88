package jag

import (
	"fmt"

	"github.com/runetools/runefs/buffer"
)

// WhirlpoolSize is the length of a whirlpool digest in bytes.
const WhirlpoolSize = 64

// FileData describes one file inside an archive. Contents is populated only
// once the owning archive has been materialized.
type FileData struct {
	ID       uint32
	NameHash int32
	Contents []byte
}

// ArchiveData is the manifest record for one archive: identity, integrity
// fields and the ordered file table. NameHash and Whirlpool are meaningful
// only when the owning index carries the corresponding flag.
type ArchiveData struct {
	ID        uint32
	NameHash  int32
	CRC       int32
	Revision  int32
	Whirlpool [WhirlpoolSize]byte
	FileCount int
	Files     []FileData
}

// Archive holds the manifest record for one archive and, after the first
// read, the split per-file contents. Materialization happens at most once;
// the owning IndexFile serializes it.
type Archive struct {
	data   ArchiveData
	loaded bool
	files  map[uint32]*FileData
	order  []uint32
}

// NewArchive builds an unloaded archive from its manifest record.
func NewArchive(data ArchiveData) *Archive {
	a := &Archive{
		data:  data,
		files: make(map[uint32]*FileData, len(data.Files)),
		order: make([]uint32, 0, len(data.Files)),
	}
	for i := range data.Files {
		f := &data.Files[i]
		a.files[f.ID] = f
		a.order = append(a.order, f.ID)
	}
	return a
}

// ID returns the archive id.
func (a *Archive) ID() uint32 { return a.data.ID }

// NameHash returns the archive's name hash, if the index is named.
func (a *Archive) NameHash() int32 { return a.data.NameHash }

// CRC returns the manifest checksum of the archive's compressed blob.
func (a *Archive) CRC() int32 { return a.data.CRC }

// Revision returns the archive revision from the manifest.
func (a *Archive) Revision() int32 { return a.data.Revision }

// WhirlpoolDigest returns the archive's manifest digest, if the index
// carries whirlpool digests.
func (a *Archive) WhirlpoolDigest() [WhirlpoolSize]byte { return a.data.Whirlpool }

// FileCount returns the number of files in the archive.
func (a *Archive) FileCount() int { return len(a.order) }

// Loaded reports whether the archive's contents have been materialized.
func (a *Archive) Loaded() bool { return a.loaded }

// Read splits the decompressed payload into per-file contents.
//
// Multi-file archives end with a chunk table: the final byte is the chunk
// count, preceded by chunkCount×fileCount big-endian deltas in chunk-major
// order. A file's size within chunk c is the running sum of its deltas over
// chunks 0..c. Single-file archives take the payload verbatim.
//
// Read is idempotent once the archive is loaded. On failure no contents are
// assigned and the archive stays unloaded.
func (a *Archive) Read(payload []byte) error {
	if a.loaded {
		return nil
	}
	count := len(a.order)
	if count == 0 {
		a.loaded = true
		return nil
	}
	if count == 1 {
		a.files[a.order[0]].Contents = payload
		a.loaded = true
		return nil
	}

	if len(payload) == 0 {
		return fmt.Errorf("archive %d: empty payload for %d files: %w", a.data.ID, count, buffer.ErrUnderrun)
	}
	chunks := int(payload[len(payload)-1])
	trailer := 1 + chunks*count*4
	if trailer > len(payload) {
		return fmt.Errorf("archive %d: %d-byte chunk table exceeds %d-byte payload: %w",
			a.data.ID, trailer, len(payload), buffer.ErrUnderrun)
	}

	table := buffer.New(payload[len(payload)-trailer : len(payload)-1])
	running := make([]int32, count)
	sizes := make([][]int32, chunks)
	for c := 0; c < chunks; c++ {
		sizes[c] = make([]int32, count)
		for i := 0; i < count; i++ {
			delta, err := table.Int32()
			if err != nil {
				return fmt.Errorf("archive %d: chunk table: %w", a.data.ID, err)
			}
			running[i] += delta
			sizes[c][i] = running[i]
		}
	}

	body := buffer.New(payload[:len(payload)-trailer])
	contents := make([][]byte, count)
	for c := 0; c < chunks; c++ {
		for i := 0; i < count; i++ {
			part, err := body.ReadBytes(int(sizes[c][i]))
			if err != nil {
				return fmt.Errorf("archive %d file %d chunk %d: %w", a.data.ID, a.order[i], c, err)
			}
			contents[i] = append(contents[i], part...)
		}
	}
	if body.Remaining() != 0 {
		return fmt.Errorf("archive %d: %d bytes left over after %d chunks", a.data.ID, body.Remaining(), chunks)
	}

	for i, id := range a.order {
		a.files[id].Contents = contents[i]
	}
	a.loaded = true
	return nil
}

// File returns the contents of the file with the given id.
func (a *Archive) File(id uint32) ([]byte, error) {
	f, ok := a.files[id]
	if !ok {
		return nil, fmt.Errorf("archive %d file %d: %w", a.data.ID, id, ErrNotFound)
	}
	return f.Contents, nil
}

// Files returns the archive's files in ascending id order.
func (a *Archive) Files() []FileData {
	out := make([]FileData, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.files[id])
	}
	return out
}
