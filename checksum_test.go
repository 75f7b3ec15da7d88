package runefs

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/jzelinskie/whirlpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runetools/runefs/jag"
)

func whirlpoolSum(data []byte) []byte {
	h := whirlpool.New()
	h.Write(data)
	return h.Sum(nil)
}

func TestChecksumTablePlain(t *testing.T) {
	b := newCacheBuilder(t)
	blob0 := b.putIndex(0, simpleManifest(6, 100))
	blob1 := b.putIndex(1, simpleManifest(6, 200))
	dir := b.writeTo(2)

	fs, err := Open(dir)
	require.NoError(t, err)
	defer fs.Close()

	assert.Nil(t, fs.ChecksumTable())

	require.NoError(t, fs.BuildChecksumTable(false))
	table := fs.ChecksumTable()
	require.Len(t, table, 2*8)

	assert.Equal(t, crc32.ChecksumIEEE(blob0), binary.BigEndian.Uint32(table[0:]))
	assert.Equal(t, uint32(100), binary.BigEndian.Uint32(table[4:]))
	assert.Equal(t, crc32.ChecksumIEEE(blob1), binary.BigEndian.Uint32(table[8:]))
	assert.Equal(t, uint32(200), binary.BigEndian.Uint32(table[12:]))
}

func TestChecksumTableWhirlpool(t *testing.T) {
	b := newCacheBuilder(t)
	blob0 := b.putIndex(0, simpleManifest(6, 100))
	blob1 := b.putIndex(1, simpleManifest(6, 200))
	dir := b.writeTo(2)

	fs, err := Open(dir)
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.BuildChecksumTable(true))
	table := fs.ChecksumTable()
	require.Len(t, table, 1+2*(8+jag.WhirlpoolSize)+1+jag.WhirlpoolSize)

	assert.Equal(t, uint8(2), table[0])

	assert.Equal(t, crc32.ChecksumIEEE(blob0), binary.BigEndian.Uint32(table[1:]))
	assert.Equal(t, uint32(100), binary.BigEndian.Uint32(table[5:]))
	assert.Equal(t, whirlpoolSum(blob0), table[9:73])

	assert.Equal(t, crc32.ChecksumIEEE(blob1), binary.BigEndian.Uint32(table[73:]))
	assert.Equal(t, uint32(200), binary.BigEndian.Uint32(table[77:]))
	assert.Equal(t, whirlpoolSum(blob1), table[81:145])

	// Trailing frame: a zero byte, then a digest over everything before the
	// digest, leading count byte and zero byte included.
	assert.Equal(t, uint8(0), table[145])
	assert.Equal(t, whirlpoolSum(table[:146]), table[146:])
}

func TestChecksumTableRebuild(t *testing.T) {
	b := newCacheBuilder(t)
	b.putIndex(0, simpleManifest(6, 1))
	dir := b.writeTo(1)

	fs, err := Open(dir)
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.BuildChecksumTable(false))
	require.Len(t, fs.ChecksumTable(), 8)

	require.NoError(t, fs.BuildChecksumTable(true))
	require.Len(t, fs.ChecksumTable(), 1+8+jag.WhirlpoolSize+1+jag.WhirlpoolSize)
}
