package runefs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/runetools/runefs/buffer"
	"github.com/runetools/runefs/compression"
	"github.com/runetools/runefs/jag"
)

// FileSystem is the facade over one cache directory. It owns the data file
// and every index, and eagerly decodes all index manifests on Open so that
// lookups and the checksum manifest never touch undecoded state.
type FileSystem struct {
	data     *jag.DataFile
	metadata *jag.IndexFile
	indices  []*jag.IndexFile
	open     []*os.File

	mu       sync.Mutex
	checksum []byte
}

// Open opens the cache in dir and loads every index manifest. The metadata
// index (idx255) determines how many regular indices exist; all of them must
// be present.
func Open(dir string) (*FileSystem, error) {
	fs := &FileSystem{}

	dataFile, err := fs.openFile(filepath.Join(dir, DataFileName))
	if err != nil {
		fs.Close()
		return nil, err
	}
	info, err := dataFile.Stat()
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("stat %s: %w", DataFileName, err)
	}
	fs.data = jag.NewDataFile(dataFile, info.Size())

	fs.metadata, err = fs.openIndex(dir, jag.MetadataIndex)
	if err != nil {
		fs.Close()
		return nil, err
	}

	count := fs.metadata.EntryCount()
	fs.indices = make([]*jag.IndexFile, count)
	for id := 0; id < count; id++ {
		if fs.indices[id], err = fs.openIndex(dir, id); err != nil {
			fs.Close()
			return nil, err
		}
	}

	for _, index := range fs.indices {
		if err := fs.loadIndex(index); err != nil {
			fs.Close()
			return nil, err
		}
	}

	slog.Info("cache opened", "dir", dir, "indices", count, "data_bytes", info.Size())
	return fs, nil
}

func (f *FileSystem) openFile(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache file: %w", err)
	}
	f.open = append(f.open, file)
	return file, nil
}

func (f *FileSystem) openIndex(dir string, id int) (*jag.IndexFile, error) {
	file, err := f.openFile(filepath.Join(dir, fmt.Sprintf("%s%d", IndexFilePrefix, id)))
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat index %d: %w", id, err)
	}
	return jag.NewIndexFile(id, file, info.Size(), f.data), nil
}

// loadIndex reads an index's compressed manifest blob out of the data file
// and decodes it.
func (f *FileSystem) loadIndex(index *jag.IndexFile) error {
	blob, err := f.readIndexBlob(index.ID())
	if err != nil {
		return err
	}
	payload, err := compression.Decompress(blob)
	if err != nil {
		return fmt.Errorf("index %d manifest: %w", index.ID(), err)
	}
	return index.Load(buffer.New(payload))
}

// readIndexBlob returns the compressed manifest blob for one index, exactly
// as stored in the data file.
func (f *FileSystem) readIndexBlob(id int) ([]byte, error) {
	entry, err := f.metadata.Entry(uint32(id))
	if err != nil {
		return nil, err
	}
	return f.data.Read(jag.MetadataIndex, uint32(id), entry.Sector, entry.Length)
}

// Index returns the index with the given id.
func (f *FileSystem) Index(id int) (*jag.IndexFile, error) {
	if id < 0 || id >= len(f.indices) {
		return nil, fmt.Errorf("index %d of %d: %w", id, len(f.indices), jag.ErrNotFound)
	}
	return f.indices[id], nil
}

// IndexCount returns the number of regular indices in the cache.
func (f *FileSystem) IndexCount() int { return len(f.indices) }

// Data materializes an archive and returns one file's contents; a shorthand
// for Index(index).Data(archive, file).
func (f *FileSystem) Data(index int, archive, file uint32) ([]byte, error) {
	idx, err := f.Index(index)
	if err != nil {
		return nil, err
	}
	return idx.Data(archive, file)
}

// Close releases every file the cache holds open.
func (f *FileSystem) Close() error {
	var first error
	for _, file := range f.open {
		if err := file.Close(); err != nil && first == nil {
			first = err
		}
	}
	f.open = nil
	return first
}
