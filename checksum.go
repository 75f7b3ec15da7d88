package runefs

import (
	"fmt"
	"hash/crc32"

	"github.com/jzelinskie/whirlpool"

	"github.com/runetools/runefs/buffer"
	"github.com/runetools/runefs/jag"
)

// BuildChecksumTable builds and caches the checksum manifest describing
// every index: a CRC-32 of each index's compressed manifest blob and the
// index revision, eight bytes per index.
//
// With withWhirlpool set, the table is framed for authentication: a leading
// entry-count byte, a 64-byte whirlpool digest of each manifest blob after
// its CRC and revision, and a trailing zero byte followed by a whirlpool
// digest over everything written before the digest, that zero byte included.
func (f *FileSystem) BuildChecksumTable(withWhirlpool bool) error {
	count := f.metadata.EntryCount()
	// The leading count byte and the consumer's opcode are single bytes; the
	// format caps at 255 indices.
	if count > 0xFF {
		return fmt.Errorf("%d indices exceed the format's limit of 255", count)
	}

	size := count * 8
	if withWhirlpool {
		size += 1 + count*jag.WhirlpoolSize + 1 + jag.WhirlpoolSize
	}
	out := buffer.NewSize(size)

	if withWhirlpool {
		out.WriteUint8(uint8(count))
	}

	for id := 0; id < count; id++ {
		blob, err := f.readIndexBlob(id)
		if err != nil {
			return err
		}
		index, err := f.Index(id)
		if err != nil {
			return err
		}

		out.WriteUint32(crc32.ChecksumIEEE(blob))
		out.WriteUint32(index.Revision())

		if withWhirlpool {
			digest := whirlpool.New()
			digest.Write(blob)
			out.WriteBytes(digest.Sum(nil))
		}
	}

	if withWhirlpool {
		out.WriteUint8(0)
		digest := whirlpool.New()
		digest.Write(out.Bytes())
		out.WriteBytes(digest.Sum(nil))
	}

	f.mu.Lock()
	f.checksum = out.Bytes()
	f.mu.Unlock()
	return nil
}

// ChecksumTable returns the most recently built checksum manifest, or nil if
// BuildChecksumTable has not run.
func (f *FileSystem) ChecksumTable() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checksum
}
