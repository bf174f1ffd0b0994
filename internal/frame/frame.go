// Package frame implements a line-delimited JSON request/response
// protocol over any io.Reader/io.Writer pair, so cmd/csserve can wire
// it to stdio or a unix socket. Every frame, in either direction, is
// one JSON object per line with an "opcode" field and a nested "body"
// object. Framing uses encoding/json plus bufio.Scanner.
package frame

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/codesearch/internal/index"
)

// Opcode identifies the kind of a frame, client- or server-sent.
type Opcode string

const (
	// OpQuery is the one client-sent opcode: a search request.
	OpQuery Opcode = "query"
	// OpReady, OpMatch, OpDone and OpError are server-sent.
	OpReady Opcode = "ready"
	OpMatch Opcode = "match"
	OpDone  Opcode = "done"
	OpError Opcode = "error"
)

// Frame is the envelope every line of the protocol shares: an opcode
// plus an opcode-specific body, deferred as raw JSON so the caller can
// decode it into the matching *Body type once the opcode is known.
type Frame struct {
	Opcode Opcode          `json:"opcode"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// QueryBody is the body of a client-sent "query" frame.
type QueryBody struct {
	Line       string `json:"line"`
	File       string `json:"file,omitempty"`
	Repo       string `json:"repo,omitempty"`
	FoldCase   bool   `json:"fold_case,omitempty"`
	MaxMatches int    `json:"max_matches,omitempty"`
}

// ReadyBody is the body of the "ready" frame sent once, immediately
// after a connection is accepted, describing the served index.
type ReadyBody struct {
	Trees  int `json:"trees"`
	Files  int `json:"files"`
	Chunks int `json:"chunks"`
}

// MatchBody is the body of one "match" frame, emitted once per result.
type MatchBody struct {
	Tree          string   `json:"tree"`
	Version       string   `json:"version"`
	Path          string   `json:"path"`
	Lno           int      `json:"lno"`
	Line          string   `json:"line"`
	Bounds        [2]int   `json:"bounds"`
	ContextBefore []string `json:"context_before,omitempty"`
	ContextAfter  []string `json:"context_after,omitempty"`
}

// DoneBody is the body of the "done" frame sent once a query finishes,
// carrying the phase timings and terminating exit reason of index.Stats.
type DoneBody struct {
	ExitReason       string `json:"exit_reason"`
	MatchCount       int    `json:"match_count"`
	IndexTimeNanos   int64  `json:"index_time_ns"`
	AnalyzeTimeNanos int64  `json:"analyze_time_ns"`
	RegexTimeNanos   int64  `json:"regex_time_ns"`
	SortTimeNanos    int64  `json:"sort_time_ns"`
}

// ErrorBody is the body of an "error" frame.
type ErrorBody struct {
	Message string `json:"message"`
}

// Server serves the frame protocol for one Index over one
// connection. DefaultMax fills in a request's max_matches when the
// client omits it. Context-line depth is fixed per Index (see
// index.WithContextLines), not per request.
type Server struct {
	Index      *index.Index
	DefaultMax int
	Logger     zerolog.Logger
}

// Serve reads newline-delimited "query" frames from r and writes
// response frames to w until r is exhausted, ctx is cancelled, or
// reading r or writing w fails. A request that fails to decode gets
// an "error" frame and serving continues. One "ready" frame is written
// immediately, then one "match" frame per result and one "done" frame
// per query.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := s.writeFrame(enc, OpReady, s.readyBody()); err != nil {
		return fmt.Errorf("frame: writing ready frame: %w", err)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			if encErr := s.writeFrame(enc, OpError, ErrorBody{Message: fmt.Sprintf("bad frame: %v", err)}); encErr != nil {
				return fmt.Errorf("frame: writing error frame: %w", encErr)
			}
			continue
		}
		if f.Opcode != OpQuery {
			if encErr := s.writeFrame(enc, OpError, ErrorBody{Message: fmt.Sprintf("unexpected opcode %q", f.Opcode)}); encErr != nil {
				return fmt.Errorf("frame: writing error frame: %w", encErr)
			}
			continue
		}

		var body QueryBody
		if err := json.Unmarshal(f.Body, &body); err != nil {
			if encErr := s.writeFrame(enc, OpError, ErrorBody{Message: fmt.Sprintf("bad query body: %v", err)}); encErr != nil {
				return fmt.Errorf("frame: writing error frame: %w", encErr)
			}
			continue
		}

		if err := s.handleQuery(ctx, body, enc); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("frame: reading request stream: %w", err)
	}
	return nil
}

func (s *Server) readyBody() ReadyBody {
	m := s.Index.Metadata()
	return ReadyBody{Trees: m.Trees, Files: m.Files, Chunks: m.Chunks}
}

func (s *Server) handleQuery(ctx context.Context, body QueryBody, enc *json.Encoder) error {
	maxMatches := body.MaxMatches
	if maxMatches == 0 {
		maxMatches = s.DefaultMax
	}

	q := index.Query{
		LinePattern: body.Line,
		FilePattern: body.File,
		TreePattern: body.Repo,
		FoldCase:    body.FoldCase,
		MaxMatches:  maxMatches,
	}

	var stats index.Stats
	var encodeErr error
	matchErr := s.Index.Match(ctx, q, func(m index.MatchResult) bool {
		mb := MatchBody{
			Tree:          m.Tree.Name,
			Version:       m.Tree.Version,
			Path:          m.File.Path,
			Lno:           m.LineNumber,
			Line:          m.LineText,
			Bounds:        [2]int{m.MatchLeft, m.MatchRight},
			ContextBefore: m.ContextBefore,
			ContextAfter:  m.ContextAfter,
		}
		if err := s.writeFrame(enc, OpMatch, mb); err != nil {
			encodeErr = err
			return false
		}
		return true
	}, &stats)
	if encodeErr != nil {
		return fmt.Errorf("frame: writing match frame: %w", encodeErr)
	}

	if matchErr != nil {
		s.Logger.Warn().Err(matchErr).Str("line", body.Line).Msg("frame: query failed")
		if err := s.writeFrame(enc, OpError, ErrorBody{Message: matchErr.Error()}); err != nil {
			return fmt.Errorf("frame: writing error frame: %w", err)
		}
		return nil
	}

	done := DoneBody{
		ExitReason:       stats.ExitReason.String(),
		MatchCount:       stats.MatchCount,
		IndexTimeNanos:   stats.IndexTimeNanos,
		AnalyzeTimeNanos: stats.AnalyzeTimeNanos,
		RegexTimeNanos:   stats.RegexTimeNanos,
		SortTimeNanos:    stats.SortTimeNanos,
	}
	if err := s.writeFrame(enc, OpDone, done); err != nil {
		return fmt.Errorf("frame: writing done frame: %w", err)
	}
	return nil
}

// writeFrame marshals body and encodes it as the body of an opcode
// envelope frame.
func (s *Server) writeFrame(enc *json.Encoder, op Opcode, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling %s body: %w", op, err)
	}
	return enc.Encode(Frame{Opcode: op, Body: raw})
}
