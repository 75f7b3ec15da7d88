package jag

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runetools/runefs/buffer"
)

type manifestFile struct {
	id       uint32
	nameHash int32
}

type manifestArchive struct {
	id        uint32
	nameHash  int32
	crc       int32
	revision  int32
	whirlpool [WhirlpoolSize]byte
	files     []manifestFile
}

// encodeManifest builds a decompressed index manifest blob.
func encodeManifest(tb testing.TB, protocol uint8, revision uint32, named, whirl bool, archives []manifestArchive) []byte {
	tb.Helper()

	out := []byte{protocol}
	writeCount := func(v uint32) {
		if protocol >= 7 && v >= 0x8000 {
			out = binary.BigEndian.AppendUint32(out, v|0x80000000)
			return
		}
		require.Less(tb, v, uint32(0x10000))
		if protocol >= 7 {
			require.Less(tb, v, uint32(0x8000))
		}
		out = binary.BigEndian.AppendUint16(out, uint16(v))
	}

	if protocol >= 6 {
		out = binary.BigEndian.AppendUint32(out, revision)
	}

	var flags uint8
	if named {
		flags |= flagNamed
	}
	if whirl {
		flags |= flagWhirlpool
	}
	out = append(out, flags)

	writeCount(uint32(len(archives)))
	var last uint32
	for _, a := range archives {
		writeCount(a.id - last)
		last = a.id
	}
	if named {
		for _, a := range archives {
			out = binary.BigEndian.AppendUint32(out, uint32(a.nameHash))
		}
	}
	if whirl {
		for _, a := range archives {
			out = append(out, a.whirlpool[:]...)
		}
	}
	for _, a := range archives {
		out = binary.BigEndian.AppendUint32(out, uint32(a.crc))
	}
	for _, a := range archives {
		out = binary.BigEndian.AppendUint32(out, uint32(a.revision))
	}
	for _, a := range archives {
		writeCount(uint32(len(a.files)))
	}
	for _, a := range archives {
		var last uint32
		for _, f := range a.files {
			writeCount(f.id - last)
			last = f.id
		}
	}
	if named {
		for _, a := range archives {
			for _, f := range a.files {
				out = binary.BigEndian.AppendUint32(out, uint32(f.nameHash))
			}
		}
	}
	return out
}

func TestLoadProtocol6(t *testing.T) {
	blob := encodeManifest(t, 6, 31337, false, false, []manifestArchive{
		{id: 0, crc: 111, revision: 1, files: []manifestFile{{id: 0}, {id: 1}, {id: 2}}},
		{id: 5, crc: 222, revision: 2, files: []manifestFile{{id: 0}}},
	})

	x := NewIndexFile(2, bytes.NewReader(nil), 0, nil)
	require.NoError(t, x.Load(buffer.New(blob)))

	assert.Equal(t, uint8(6), x.Protocol())
	assert.Equal(t, uint32(31337), x.Revision())
	assert.False(t, x.Named())
	assert.False(t, x.Whirlpool())
	assert.Equal(t, 2, x.ArchiveCount())
	assert.Equal(t, []uint32{0, 5}, x.ArchiveIDs())

	a := x.archives[5]
	require.NotNil(t, a)
	assert.Equal(t, int32(222), a.CRC())
	assert.Equal(t, int32(2), a.Revision())
	assert.Equal(t, 1, a.FileCount())
	assert.False(t, a.Loaded())
}

func TestLoadProtocol5DefaultsRevision(t *testing.T) {
	blob := encodeManifest(t, 5, 0, false, false, []manifestArchive{
		{id: 3, files: []manifestFile{{id: 0}}},
	})

	x := NewIndexFile(0, bytes.NewReader(nil), 0, nil)
	require.NoError(t, x.Load(buffer.New(blob)))
	assert.Equal(t, uint8(5), x.Protocol())
	assert.Equal(t, uint32(0), x.Revision())
	assert.Equal(t, []uint32{3}, x.ArchiveIDs())
}

func TestLoadProtocol7SmartIDs(t *testing.T) {
	// An id delta above 0x7FFF forces the four-byte smart encoding.
	blob := encodeManifest(t, 7, 9, false, false, []manifestArchive{
		{id: 1, files: []manifestFile{{id: 0}}},
		{id: 0x10000, files: []manifestFile{{id: 0}}},
	})

	x := NewIndexFile(0, bytes.NewReader(nil), 0, nil)
	require.NoError(t, x.Load(buffer.New(blob)))
	assert.Equal(t, []uint32{1, 0x10000}, x.ArchiveIDs())
}

func TestLoadNamedWhirlpool(t *testing.T) {
	var digest [WhirlpoolSize]byte
	for i := range digest {
		digest[i] = byte(i)
	}
	blob := encodeManifest(t, 6, 1, true, true, []manifestArchive{
		{id: 0, nameHash: -12345, whirlpool: digest, files: []manifestFile{{id: 0, nameHash: 77}}},
	})

	x := NewIndexFile(0, bytes.NewReader(nil), 0, nil)
	require.NoError(t, x.Load(buffer.New(blob)))
	assert.True(t, x.Named())
	assert.True(t, x.Whirlpool())

	a := x.archives[0]
	require.NotNil(t, a)
	assert.Equal(t, int32(-12345), a.NameHash())
	assert.Equal(t, digest, a.WhirlpoolDigest())
}

func TestLoadUnsupportedProtocol(t *testing.T) {
	x := NewIndexFile(0, bytes.NewReader(nil), 0, nil)
	err := x.Load(buffer.New([]byte{4, 0, 0}))
	assert.ErrorIs(t, err, ErrUnsupportedProtocol)
}

func TestLoadTruncatedManifest(t *testing.T) {
	blob := encodeManifest(t, 6, 1, false, false, []manifestArchive{
		{id: 0, files: []manifestFile{{id: 0}}},
	})

	x := NewIndexFile(0, bytes.NewReader(nil), 0, nil)
	err := x.Load(buffer.New(blob[:len(blob)-3]))
	assert.ErrorIs(t, err, buffer.ErrUnderrun)
}

func TestEntry(t *testing.T) {
	table := []byte{
		0x00, 0x01, 0x00, 0x00, 0x00, 0x01, // entry 0: length 256, sector 1
		0x00, 0x00, 0x64, 0x00, 0x00, 0x05, // entry 1: length 100, sector 5
	}
	x := NewIndexFile(0, bytes.NewReader(table), int64(len(table)), nil)
	assert.Equal(t, 2, x.EntryCount())

	e, err := x.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, Entry{Length: 256, Sector: 1}, e)

	e, err = x.Entry(1)
	require.NoError(t, err)
	assert.Equal(t, Entry{Length: 100, Sector: 5}, e)

	_, err = x.Entry(2)
	assert.ErrorIs(t, err, ErrShortRead)
}

// countingReaderAt counts positioned reads so tests can prove an archive is
// served from memory on repeat access.
type countingReaderAt struct {
	r     io.ReaderAt
	reads int
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	c.reads++
	return c.r.ReadAt(p, off)
}

func TestArchiveLazyMaterialization(t *testing.T) {
	payload := []byte("the one file's contents")

	// NONE container around the payload.
	blob := []byte{0}
	blob = binary.BigEndian.AppendUint32(blob, uint32(len(payload)))
	blob = append(blob, payload...)

	dat, first := appendChain(t, emptyDat(), 3, 0, blob)
	counting := &countingReaderAt{r: bytes.NewReader(dat)}
	data := NewDataFile(counting, int64(len(dat)))

	table := []byte{
		byte(len(blob) >> 16), byte(len(blob) >> 8), byte(len(blob)),
		byte(first >> 16), byte(first >> 8), byte(first),
	}
	x := NewIndexFile(3, bytes.NewReader(table), int64(len(table)), data)

	manifest := encodeManifest(t, 6, 1, false, false, []manifestArchive{
		{id: 0, files: []manifestFile{{id: 0}}},
	})
	require.NoError(t, x.Load(buffer.New(manifest)))

	got, err := x.Data(0, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	readsAfterFirst := counting.reads
	assert.Positive(t, readsAfterFirst)

	// Second access must not touch the data file.
	again, err := x.Data(0, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, again)
	assert.Equal(t, readsAfterFirst, counting.reads)

	_, err = x.Data(9, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
