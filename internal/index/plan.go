package index

import (
	"fmt"
	"regexp"
	"regexp/syntax"
)

// minLiteralLen is the minimum length a required literal substring
// must have to be worth probing the suffix array with.
const minLiteralLen = 3

// maxFoldCaseLiteralLen bounds the literal length used for a
// case-folded probe, since fold_case expands a literal into one probe
// per case permutation of its alphabetic bytes rather than folding
// the suffix array itself, which stays strictly case-sensitive.
const maxFoldCaseLiteralLen = 4

// probe is one required-literal candidate the scanner binary-searches
// a chunk's suffix array for.
type probe struct {
	literal []byte
}

// plan is the planner's output: the compiled matchers plus either a
// set of required-literal probes (OR'd together) or a full-scan
// marker.
type plan struct {
	lineRe *regexp.Regexp
	fileRe *regexp.Regexp
	treeRe *regexp.Regexp

	// filePrefix/treePrefix are literal prefixes every match of fileRe/
	// treeRe must begin with (see regexp/syntax's Prog.Prefix), used by
	// the pattern cache to reject candidates via the catalog's radix
	// indexes before running the full regex.
	filePrefix string
	treePrefix string

	foldCase   bool
	probes     []probe
	fullScan   bool
	maxMatches int
}

// newPlan compiles q into a plan. Only ErrNoLinePattern and regex
// compile errors are returned; a plan with FullScan set is always a
// valid, if slow, fallback.
func newPlan(q Query) (*plan, error) {
	if q.LinePattern == "" {
		return nil, ErrNoLinePattern
	}

	linePattern := q.LinePattern
	if q.FoldCase {
		linePattern = "(?i)" + linePattern
	}
	lineRe, err := regexp.Compile(linePattern)
	if err != nil {
		return nil, fmt.Errorf("index: invalid line pattern: %w", err)
	}

	p := &plan{lineRe: lineRe, foldCase: q.FoldCase, maxMatches: q.MaxMatches}

	if q.FilePattern != "" {
		fileRe, err := regexp.Compile(q.FilePattern)
		if err != nil {
			return nil, fmt.Errorf("index: invalid file pattern: %w", err)
		}
		p.fileRe = fileRe
		p.filePrefix = literalPrefix(q.FilePattern)
	}
	if q.TreePattern != "" {
		treeRe, err := regexp.Compile(q.TreePattern)
		if err != nil {
			return nil, fmt.Errorf("index: invalid tree pattern: %w", err)
		}
		p.treeRe = treeRe
		p.treePrefix = literalPrefix(q.TreePattern)
	}

	literals, ok := extractRequiredLiterals(q.LinePattern)
	if !ok || len(literals) == 0 {
		p.fullScan = true
		return p, nil
	}

	for _, lit := range literals {
		if !q.FoldCase {
			p.probes = append(p.probes, probe{literal: lit})
			continue
		}
		if len(lit) > maxFoldCaseLiteralLen {
			lit = lit[:maxFoldCaseLiteralLen]
		}
		for _, variant := range caseVariants(lit) {
			p.probes = append(p.probes, probe{literal: variant})
		}
	}
	return p, nil
}

// caseVariants returns every case permutation of the alphabetic bytes
// in lit, bounded by maxFoldCaseLiteralLen so this never explodes.
func caseVariants(lit []byte) [][]byte {
	variants := [][]byte{append([]byte(nil), lit...)}
	for i, b := range lit {
		lo, hi, isAlpha := caseFold(b)
		if !isAlpha {
			continue
		}
		next := make([][]byte, 0, len(variants)*2)
		for _, v := range variants {
			a := append([]byte(nil), v...)
			a[i] = lo
			b := append([]byte(nil), v...)
			b[i] = hi
			next = append(next, a, b)
		}
		variants = next
	}
	return variants
}

func caseFold(b byte) (lower, upper byte, isAlpha bool) {
	switch {
	case b >= 'a' && b <= 'z':
		return b, b - 'a' + 'A', true
	case b >= 'A' && b <= 'Z':
		return b - 'A' + 'a', b, true
	default:
		return b, b, false
	}
}

// literalPrefix returns the literal string every matching *path or
// tree name* must begin with, or "" when no such prefix exists. Only
// patterns anchored at the start qualify: Prog.Prefix describes the
// match, not the searched string, so for an unanchored pattern like
// `\.go$` the match prefix ".go" says nothing about how the path
// begins. Unlike extractRequiredLiterals this only needs a prefix, so
// it defers to regexp/syntax's own Prog.Prefix, run from just past the
// anchor, once the anchor check passes.
func literalPrefix(pattern string) string {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return ""
	}
	re = re.Simplify()
	if !anchoredAtStart(re) {
		return ""
	}
	prog, err := syntax.Compile(re)
	if err != nil {
		return ""
	}
	// Prog.Prefix gives up at the leading begin-text instruction, so
	// start the program past the leading zero-width instructions.
	for {
		inst := prog.Inst[prog.Start]
		if inst.Op != syntax.InstEmptyWidth && inst.Op != syntax.InstNop && inst.Op != syntax.InstCapture {
			break
		}
		prog.Start = int(inst.Out)
	}
	prefix, _ := prog.Prefix()
	if len(prefix) < minLiteralLen {
		return ""
	}
	return prefix
}

// anchoredAtStart reports whether every match of re must begin at the
// start of the searched string.
func anchoredAtStart(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpBeginText, syntax.OpBeginLine:
		return true
	case syntax.OpConcat, syntax.OpCapture:
		return len(re.Sub) > 0 && anchoredAtStart(re.Sub[0])
	default:
		return false
	}
}

// extractRequiredLiterals walks the parsed regex AST looking for
// literal byte runs that are required for any match: the longest
// contiguous literal in a concatenation, or one
// literal per branch of a top-level alternation (an OR-of-probes
// plan). Returns ok=false when no literal of sufficient length can be
// found anywhere, signaling the caller to fall back to a full scan.
func extractRequiredLiterals(pattern string) (literals [][]byte, ok bool) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, false
	}
	re = re.Simplify()
	return requiredLiteralsOf(re)
}

// requiredLiteralsOf returns a set of literals such that every string
// the (sub)expression matches contains at least one of them. For a
// plain concatenation this is a single best literal; for a top-level
// alternation it is one literal per branch, which only remains sound
// as an OR-of-probes plan if every branch contributes one.
func requiredLiteralsOf(re *syntax.Regexp) ([][]byte, bool) {
	switch re.Op {
	case syntax.OpLiteral:
		if len(re.Rune) < minLiteralLen {
			return nil, false
		}
		return [][]byte{runesToBytes(re.Rune)}, true

	case syntax.OpCapture:
		return requiredLiteralsOf(re.Sub[0])

	case syntax.OpPlus:
		return requiredLiteralsOf(re.Sub[0])

	case syntax.OpConcat:
		best := longestLiteralRun(re.Sub)
		if len(best) < minLiteralLen {
			return nil, false
		}
		return [][]byte{best}, true

	case syntax.OpAlternate:
		var out [][]byte
		for _, sub := range re.Sub {
			lits, ok := requiredLiteralsOf(sub)
			if !ok || len(lits) == 0 {
				return nil, false
			}
			// one literal is enough per branch; prefer the first
			// (requiredLiteralsOf already returns its best for
			// concat/literal).
			out = append(out, lits[0])
		}
		return out, true

	default:
		return nil, false
	}
}

// longestLiteralRun finds the longest run of consecutive OpLiteral
// children in a concatenation and returns its bytes.
func longestLiteralRun(subs []*syntax.Regexp) []byte {
	var best, cur []rune
	flush := func() {
		if len(cur) > len(best) {
			best = cur
		}
		cur = nil
	}
	for _, s := range subs {
		if s.Op == syntax.OpLiteral {
			cur = append(cur, s.Rune...)
			continue
		}
		if s.Op == syntax.OpCapture && len(s.Sub) == 1 && s.Sub[0].Op == syntax.OpLiteral {
			cur = append(cur, s.Sub[0].Rune...)
			continue
		}
		flush()
	}
	flush()
	return runesToBytes(best)
}

func runesToBytes(rs []rune) []byte {
	return []byte(string(rs))
}
