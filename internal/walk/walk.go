// Package walk is an ambient ingest helper that turns a filesystem
// directory into a sequence of Index.IndexFile calls. The indexing
// engine itself only ever receives already-read file bytes; it never
// walks a directory on its own. This package is the convenience
// collaborator that does that walking, with gitignore-based filtering.
package walk

import (
	"fmt"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/ZanzyTHEbar/codesearch/internal/index"
	"github.com/ZanzyTHEbar/codesearch/internal/obs"
)

// Options controls a single directory walk.
type Options struct {
	// Metadata is attached to the opened tree, alongside the walk root.
	Metadata map[string]string
	// IgnoreFiles are gitignore-style pattern files to load in
	// addition to any ".gitignore" found at the tree root.
	IgnoreFiles []string
	// MaxFileBytes skips files larger than this, 0 means unlimited.
	MaxFileBytes int64
}

// Tree walks root, ingesting every non-ignored regular file into ix
// under tree name@version. Returns the number of files ingested.
func Tree(ix *index.Index, name, version string, root string, opts Options) (int, error) {
	meta := map[string]string{"root": root}
	for k, v := range opts.Metadata {
		meta[k] = v
	}
	tree, err := ix.OpenTree(name, version, meta)
	if err != nil {
		return 0, fmt.Errorf("walk: opening tree %s@%s: %w", name, version, err)
	}

	matcher, err := loadIgnore(root, opts.IgnoreFiles)
	if err != nil {
		return 0, err
	}

	n := 0
	log := obs.Logger()
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if opts.MaxFileBytes > 0 && info.Size() > opts.MaxFileBytes {
			log.Debug().Str("path", rel).Int64("size", info.Size()).Msg("walk: skipping oversized file")
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if !looksLikeText(data) {
			return nil
		}
		if _, err := ix.IndexFile(tree, rel, data); err != nil {
			return fmt.Errorf("indexing %s: %w", rel, err)
		}
		n++
		return nil
	})
	if walkErr != nil {
		return n, fmt.Errorf("walk: traversing %s: %w", root, walkErr)
	}
	return n, nil
}

func loadIgnore(root string, extra []string) (*ignore.GitIgnore, error) {
	var lines []string
	defaultPath := filepath.Join(root, ".gitignore")
	if l, err := readIgnoreFile(defaultPath); err == nil {
		lines = append(lines, l...)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("walk: reading %s: %w", defaultPath, err)
	}
	for _, p := range extra {
		l, err := readIgnoreFile(p)
		if err != nil {
			return nil, fmt.Errorf("walk: reading %s: %w", p, err)
		}
		lines = append(lines, l...)
	}
	lines = append(lines, ".git")
	return ignore.CompileIgnoreLines(lines...), nil
}

func readIgnoreFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return splitLines(data), nil
}

func splitLines(data []byte) []string {
	var out []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			out = append(out, string(data[start:i]))
			start = i + 1
		}
	}
	if start < len(data) {
		out = append(out, string(data[start:]))
	}
	return out
}

// looksLikeText rejects files containing a NUL byte in their first
// 8KiB, the same cheap heuristic git and grep use to skip binaries.
func looksLikeText(data []byte) bool {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	for _, b := range data[:n] {
		if b == 0 {
			return false
		}
	}
	return true
}
