package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"

	assert "github.com/ZanzyTHEbar/assert-lib"

	"github.com/ZanzyTHEbar/codesearch/internal/obs"
)

// Load memory-maps path (written by Dump) and reconstructs an
// equivalent read-only Index, installing an MmapAllocator. No bytes
// are copied for chunk data, which stays in the mapping; suffix
// arrays, chunk-file records and the manifest are decoded into
// ordinary Go values, which avoids unsafe-pointer tricks.
func Load(path string, opts ...Option) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("index: load: opening %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("index: load: stat %s: %w", path, err)
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("index: load: %s is empty: %w", path, ErrFormatMismatch)
	}

	mapped, err := syscall.Mmap(int(f.Fd()), 0, int(st.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("index: load: mmap %s: %w", path, err)
	}

	ix, err := parseDump(mapped)
	if err != nil {
		_ = syscall.Munmap(mapped)
		return nil, fmt.Errorf("index: load: %w", err)
	}
	ix.alloc.(*MmapAllocator).closer = func() error { return syscall.Munmap(mapped) }

	ix.dedup = newDedupTable() // load installs a read-only allocator; dedup is never consulted again
	ix.assertHandler = assert.NewAssertHandler()
	ix.logger = obs.Logger()
	ix.contextLines = ContextLines
	ix.finalized.Store(true)

	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

func parseDump(mapped []byte) (*Index, error) {
	r := bytes.NewReader(mapped)

	magic := make([]byte, len(dumpMagic))
	if _, err := r.Read(magic); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if string(magic) != dumpMagic {
		return nil, ErrFormatMismatch
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if version != dumpVersion {
		return nil, ErrFormatMismatch
	}

	cat := newCatalog()

	var numTrees uint64
	if err := binary.Read(r, binary.LittleEndian, &numTrees); err != nil {
		return nil, err
	}
	for i := uint64(0); i < numTrees; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		version, err := readString(r)
		if err != nil {
			return nil, err
		}
		var metaCount uint32
		if err := binary.Read(r, binary.LittleEndian, &metaCount); err != nil {
			return nil, err
		}
		meta := make(map[string]string, metaCount)
		for j := uint32(0); j < metaCount; j++ {
			k, err := readString(r)
			if err != nil {
				return nil, err
			}
			v, err := readString(r)
			if err != nil {
				return nil, err
			}
			meta[k] = v
		}
		cat.openTree(name, version, meta)
	}

	var numFiles uint64
	if err := binary.Read(r, binary.LittleEndian, &numFiles); err != nil {
		return nil, err
	}
	for i := uint64(0); i < numFiles; i++ {
		path, err := readString(r)
		if err != nil {
			return nil, err
		}
		var treeID int32
		if err := binary.Read(r, binary.LittleEndian, &treeID); err != nil {
			return nil, err
		}
		var seq int64
		if err := binary.Read(r, binary.LittleEndian, &seq); err != nil {
			return nil, err
		}
		var numSpans uint32
		if err := binary.Read(r, binary.LittleEndian, &numSpans); err != nil {
			return nil, err
		}
		spans := make([]LineSpan, numSpans)
		for j := range spans {
			if err := binary.Read(r, binary.LittleEndian, &spans[j]); err != nil {
				return nil, err
			}
		}
		cat.addFile(TreeID(treeID), path, ContentHandle{Spans: spans})
	}

	alloc := &MmapAllocator{}
	var numChunks uint64
	if err := binary.Read(r, binary.LittleEndian, &numChunks); err != nil {
		return nil, err
	}
	for i := uint64(0); i < numChunks; i++ {
		var size int32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, err
		}
		var capacity uint32
		if err := binary.Read(r, binary.LittleEndian, &capacity); err != nil {
			return nil, err
		}
		dataStart := len(mapped) - r.Len()
		data := mapped[dataStart : dataStart+int(size)]
		if _, err := r.Seek(int64(size), 1); err != nil {
			return nil, err
		}

		var numSA uint64
		if err := binary.Read(r, binary.LittleEndian, &numSA); err != nil {
			return nil, err
		}
		sa := make([]int32, numSA)
		for j := range sa {
			if err := binary.Read(r, binary.LittleEndian, &sa[j]); err != nil {
				return nil, err
			}
		}

		var numCF uint64
		if err := binary.Read(r, binary.LittleEndian, &numCF); err != nil {
			return nil, err
		}
		cfs := make([]ChunkFile, numCF)
		for j := range cfs {
			if err := binary.Read(r, binary.LittleEndian, &cfs[j].Left); err != nil {
				return nil, err
			}
			if err := binary.Read(r, binary.LittleEndian, &cfs[j].Right); err != nil {
				return nil, err
			}
			var numOwners uint32
			if err := binary.Read(r, binary.LittleEndian, &numOwners); err != nil {
				return nil, err
			}
			owners := make([]FileID, numOwners)
			for k := range owners {
				var fid int32
				if err := binary.Read(r, binary.LittleEndian, &fid); err != nil {
					return nil, err
				}
				owners[k] = FileID(fid)
			}
			cfs[j].Files = owners
		}

		alloc.chunks = append(alloc.chunks, &Chunk{
			id:     ChunkID(i),
			Data:   data,
			Size:   size,
			sealed: true,
			Suffix: sa,
			files:  cfs,
		})
	}

	return &Index{alloc: alloc, cat: cat}, nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
