package index

import (
	"fmt"
	"sync"

	"github.com/armon/go-radix"
)

// catalog holds every registered Tree and File and the lookup
// structures used to resolve names, paths and owning chunks back to
// records.
type catalog struct {
	mu sync.RWMutex

	trees     []*Tree
	treesByID map[treeKey]TreeID
	// treeNames accelerates literal-prefix tree_pattern filtering: a
	// tree whose name lacks an anchored pattern's literal prefix is
	// rejected without running the regex; patterns with no such prefix
	// are matched by regex alone.
	treeNames *radix.Tree

	files []*File
	// pathsByTree accelerates literal-prefix file_pattern filtering,
	// one radix tree per tree so paths from different repos never
	// collide.
	pathsByTree map[TreeID]*radix.Tree
}

func newCatalog() *catalog {
	return &catalog{
		treesByID:   make(map[treeKey]TreeID),
		treeNames:   radix.New(),
		pathsByTree: make(map[TreeID]*radix.Tree),
	}
}

// openTree registers name@version idempotently and returns its Tree.
func (c *catalog) openTree(name, version string, metadata map[string]string) *Tree {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := treeKey{name, version}
	if id, ok := c.treesByID[k]; ok {
		return c.trees[id]
	}
	id := TreeID(len(c.trees))
	t := &Tree{ID: id, Name: name, Version: version, Metadata: metadata}
	c.trees = append(c.trees, t)
	c.treesByID[k] = id

	if _, ok := c.treeNames.Get(name); !ok {
		c.treeNames.Insert(name, []TreeID{id})
	} else {
		v, _ := c.treeNames.Get(name)
		c.treeNames.Insert(name, append(v.([]TreeID), id))
	}
	c.pathsByTree[id] = radix.New()
	return t
}

// addFile registers a new File under tree with the given path and
// content handle, assigning the next dense sequence number.
func (c *catalog) addFile(tree TreeID, path string, content ContentHandle) *File {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := FileID(len(c.files))
	f := &File{ID: id, Tree: tree, Path: path, Seq: len(c.files), Content: content}
	c.files = append(c.files, f)
	c.pathsByTree[tree].Insert(path, id)
	return f
}

func (c *catalog) tree(id TreeID) *Tree {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(c.trees) {
		return nil
	}
	return c.trees[id]
}

func (c *catalog) file(id FileID) *File {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(c.files) {
		return nil
	}
	return c.files[id]
}

// allTrees and allFiles return snapshots for dump and for the planner
// to build per-query pattern caches against.
func (c *catalog) allTrees() []*Tree {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Tree, len(c.trees))
	copy(out, c.trees)
	return out
}

func (c *catalog) allFiles() []*File {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*File, len(c.files))
	copy(out, c.files)
	return out
}

func (c *catalog) numFiles() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

// filesWithPrefix returns every FileID registered under tree whose
// path starts with prefix, walking the tree's radix index rather than
// testing every file's path against a regex.
func (c *catalog) filesWithPrefix(tree TreeID, prefix string) []FileID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.pathsByTree[tree]
	if !ok {
		return nil
	}
	var out []FileID
	t.WalkPrefix(prefix, func(_ string, v interface{}) bool {
		out = append(out, v.(FileID))
		return false
	})
	return out
}

// treesWithPrefix returns every TreeID whose name starts with prefix,
// walking treeNames rather than testing every tree's name against a
// regex.
func (c *catalog) treesWithPrefix(prefix string) []TreeID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []TreeID
	c.treeNames.WalkPrefix(prefix, func(_ string, v interface{}) bool {
		out = append(out, v.([]TreeID)...)
		return false
	})
	return out
}

func (c *catalog) String() string {
	return fmt.Sprintf("catalog{trees=%d, files=%d}", len(c.trees), len(c.files))
}
