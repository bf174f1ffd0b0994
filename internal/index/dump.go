package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
)

// Dump format, little-endian throughout: a fixed magic/version header,
// a manifest of trees and files, then a chunk count followed by each
// chunk in turn: its size and capacity, then its payload (data, suffix
// array, chunk-file records). There is no separate chunk table of
// offsets; a reader reaches a chunk only by reading every chunk before
// it. Tree metadata is written in sorted key order.
const (
	dumpMagic   = "CSX1"
	dumpVersion = uint32(1)
)

// Dump writes the finalized index to path as a single file suitable
// for Load to memory-map. Partial files are removed on any write
// failure.
func (ix *Index) Dump(path string) (err error) {
	if !ix.finalized.Load() {
		return ErrNotFinalized
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("index: dump: creating %s: %w", path, err)
	}
	defer func() {
		cerr := f.Close()
		if err != nil {
			os.Remove(path)
			return
		}
		if cerr != nil {
			err = fmt.Errorf("index: dump: closing %s: %w", path, cerr)
			os.Remove(path)
		}
	}()

	w := bufio.NewWriter(f)
	if err = writeDump(w, ix); err != nil {
		return fmt.Errorf("index: dump: %w", err)
	}
	return w.Flush()
}

func writeDump(w *bufio.Writer, ix *Index) error {
	if _, err := w.WriteString(dumpMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dumpVersion); err != nil {
		return err
	}

	trees := ix.cat.allTrees()
	if err := binary.Write(w, binary.LittleEndian, uint64(len(trees))); err != nil {
		return err
	}
	for _, t := range trees {
		if err := writeString(w, t.Name); err != nil {
			return err
		}
		if err := writeString(w, t.Version); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(t.Metadata))); err != nil {
			return err
		}
		keys := make([]string, 0, len(t.Metadata))
		for k := range t.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := writeString(w, k); err != nil {
				return err
			}
			if err := writeString(w, t.Metadata[k]); err != nil {
				return err
			}
		}
	}

	files := ix.cat.allFiles()
	if err := binary.Write(w, binary.LittleEndian, uint64(len(files))); err != nil {
		return err
	}
	for _, f := range files {
		if err := writeString(w, f.Path); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(f.Tree)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int64(f.Seq)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(f.Content.Spans))); err != nil {
			return err
		}
		for _, s := range f.Content.Spans {
			if err := binary.Write(w, binary.LittleEndian, s); err != nil {
				return err
			}
		}
	}

	chunks := ix.alloc.Chunks()
	if err := binary.Write(w, binary.LittleEndian, uint64(len(chunks))); err != nil {
		return err
	}
	for _, c := range chunks {
		if err := binary.Write(w, binary.LittleEndian, c.Size); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(cap(c.Data))); err != nil {
			return err
		}
		if _, err := w.Write(c.Data[:c.Size]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(c.Suffix))); err != nil {
			return err
		}
		for _, off := range c.Suffix {
			if err := binary.Write(w, binary.LittleEndian, off); err != nil {
				return err
			}
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(c.files))); err != nil {
			return err
		}
		for _, cf := range c.files {
			if err := binary.Write(w, binary.LittleEndian, cf.Left); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, cf.Right); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, uint32(len(cf.Files))); err != nil {
				return err
			}
			for _, fid := range cf.Files {
				if err := binary.Write(w, binary.LittleEndian, int32(fid)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeString(w *bufio.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}
