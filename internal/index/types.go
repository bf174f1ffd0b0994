package index

// ChunkID identifies a chunk within an index. Indices into the
// allocator's chunk slice, never pointers, so the whole structure is
// serializable without pointer fix-up (see dump.go).
type ChunkID int32

// TreeID identifies a registered Tree.
type TreeID int32

// FileID identifies a registered File.
type FileID int32

// Tree is a named, versioned collection of files, typically one
// revision of one repository. Immutable once registered by OpenTree.
type Tree struct {
	ID       TreeID
	Name     string
	Version  string
	Metadata map[string]string
}

// key is the (name, version) identity OpenTree is idempotent over.
func (t *Tree) key() treeKey { return treeKey{t.Name, t.Version} }

type treeKey struct {
	name    string
	version string
}

// LineSpan is one line's location inside a chunk: byte_offset and
// byte_length within chunk ChunkID's data buffer. The newline that
// terminates the line in the chunk is not part of Length.
type LineSpan struct {
	Chunk  ChunkID
	Offset int32
	Length int32
}

// ContentHandle is a file's text as an ordered list of line spans.
// Concatenating each span's bytes, each followed by an implied
// newline, reproduces the file's text exactly (see doc.go for the
// trailing-newline policy).
type ContentHandle struct {
	Spans []LineSpan
}

// NumLines reports how many lines this file was decomposed into.
func (h *ContentHandle) NumLines() int { return len(h.Spans) }

// File belongs to exactly one Tree. Immutable once indexed.
type File struct {
	ID       FileID
	Tree     TreeID
	Path     string
	Seq      int // dense, monotone ingest-order sequence number
	Content  ContentHandle
}

// Query is the three-regex search request described by the frame
// protocol (internal/frame) and the match API (match.go).
type Query struct {
	LinePattern string // required
	FilePattern string // optional
	TreePattern string // optional
	FoldCase    bool   // applies to LinePattern only
	MaxMatches  int    // 0 = unbounded
}

// MatchResult is one emitted match, with surrounding context.
type MatchResult struct {
	File          *File
	Tree          *Tree
	LineNumber    int // 1-based
	LineText      string
	MatchLeft     int
	MatchRight    int
	ContextBefore []string
	ContextAfter  []string
}

// ExitReason is the cause a query stopped.
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitMatchLimit
	ExitTimeout
)

func (r ExitReason) String() string {
	switch r {
	case ExitMatchLimit:
		return "match_limit"
	case ExitTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// Stats reports phase timings and the terminating exit reason for one
// Match call.
type Stats struct {
	IndexTimeNanos   int64 // suffix-array probing
	AnalyzeTimeNanos int64 // line/file/context resolution
	RegexTimeNanos   int64
	SortTimeNanos    int64
	ExitReason       ExitReason
	MatchCount       int
}
