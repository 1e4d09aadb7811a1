package linemap

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// DefaultPattern matches `# 12 "name"`, `#12 "name"`, `#line 12 "name"`, a bare
// `# 12`, and GCC markers with trailing flags such as `# 1 "a.c" 1 3`.
const DefaultPattern = `^\s*#\s*(?:line\s+)?(\d+)(?:\s+"([^"]*)")?(?:\s+\d+)*\s*$`

// DefaultTopLevel names the top-level file when the caller gives none.
const DefaultTopLevel = "<anonymous>"

// DefaultMatchTimeout bounds a single directive match.
const DefaultMatchTimeout = time.Second

// Capture group names honoured by custom patterns.
const (
	groupLine = "line"
	groupFile = "file"
)

// Positional capture groups used when a pattern has no named groups.
const (
	positionalLineGroup = 1
	positionalFileGroup = 2
)

// synthesizedLine is the declared line of the frame created for text that does
// not open with a directive. With the -1 offset it maps flattened line L to L.
const synthesizedLine = 1

// Scanner turns directive-annotated flattened text into ordered Records.
// A Scanner is immutable and may be shared between goroutines.
type Scanner struct {
	re        *regexp2.Regexp
	pattern   string
	lineGroup int
	fileGroup int
	timeout   time.Duration
}

// ScannerOption configures a Scanner.
type ScannerOption func(*scannerConfig)

type scannerConfig struct {
	pattern string
	timeout time.Duration
}

// WithPattern replaces the directive pattern. The pattern is anchored at the
// start of each line. Named groups "line" and "file" take precedence; otherwise
// group 1 is the declared line and group 2 the optional filename. An empty
// pattern keeps DefaultPattern.
func WithPattern(expr string) ScannerOption {
	return func(cfg *scannerConfig) {
		if expr != "" {
			cfg.pattern = expr
		}
	}
}

// WithMatchTimeout bounds the time spent matching one line.
func WithMatchTimeout(timeout time.Duration) ScannerOption {
	return func(cfg *scannerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// NewScanner compiles the directive pattern.
func NewScanner(opts ...ScannerOption) (*Scanner, error) {
	cfg := scannerConfig{pattern: DefaultPattern, timeout: DefaultMatchTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	re, err := regexp2.Compile(cfg.pattern, regexp2.RE2)
	if err != nil {
		// Perl-compatible mode accepts constructs RE2 mode rejects.
		re, err = regexp2.Compile(cfg.pattern, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, cfg.pattern, err)
		}
	}

	re.MatchTimeout = cfg.timeout

	lineGroup, fileGroup := resolveGroups(re)
	if lineGroup < 0 {
		return nil, fmt.Errorf("%w: %q: no capture group for the line number", ErrInvalidPattern, cfg.pattern)
	}

	return &Scanner{
		re:        re,
		pattern:   cfg.pattern,
		lineGroup: lineGroup,
		fileGroup: fileGroup,
		timeout:   cfg.timeout,
	}, nil
}

// resolveGroups picks the group numbers holding the declared line and the filename.
// A missing group is reported as -1.
func resolveGroups(re *regexp2.Regexp) (lineGroup, fileGroup int) {
	lineGroup = re.GroupNumberFromName(groupLine)
	fileGroup = re.GroupNumberFromName(groupFile)

	if lineGroup >= 0 {
		return lineGroup, fileGroup
	}

	numbers := re.GetGroupNumbers()
	lineGroup, fileGroup = -1, -1

	for _, n := range numbers {
		switch n {
		case positionalLineGroup:
			lineGroup = n
		case positionalFileGroup:
			fileGroup = n
		}
	}

	return lineGroup, fileGroup
}

// Pattern returns the source of the compiled directive pattern.
func (s *Scanner) Pattern() string {
	return s.pattern
}

// directive is one recognised line marker.
type directive struct {
	file     string
	declared int
}

// parse reports whether line is a directive and, if so, decodes it.
func (s *Scanner) parse(line string) (directive, bool, error) {
	match, err := s.re.FindStringMatch(line)
	if err != nil {
		return directive{}, false, fmt.Errorf("match directive: %w", err)
	}

	if match == nil || match.Index != 0 {
		return directive{}, false, nil
	}

	raw := strings.TrimSpace(groupText(match, s.lineGroup))

	declared, convErr := strconv.Atoi(raw)
	if convErr != nil || declared < 0 {
		return directive{}, true, ErrMalformedDirective
	}

	return directive{
		file:     unquote(groupText(match, s.fileGroup)),
		declared: declared,
	}, true, nil
}

func groupText(match *regexp2.Match, number int) string {
	if number < 0 {
		return ""
	}

	group := match.GroupByNumber(number)
	if group == nil || len(group.Captures) == 0 {
		return ""
	}

	return group.String()
}

// unquote strips one pair of surrounding double quotes.
func unquote(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		return name[1 : len(name)-1]
	}

	return name
}

// scanState is the accumulator folded across the lines.
// Stacks are freshly allocated on every step and never written afterwards,
// so each emitted record owns its snapshot.
type scanState struct {
	stack   Stack
	records []Record
}

// step applies one directive found at flattened line index.
func (st scanState) step(index int, d directive) (scanState, error) {
	target := d.file
	if target == "" {
		if len(st.stack) == 0 {
			return st, ErrUnresolvedIncludeName
		}

		target = st.stack.Last().File
	}

	keep := len(st.stack)

	for j := len(st.stack) - 1; j >= 0; j-- {
		if st.stack[j].File == target {
			keep = j

			break
		}
	}

	next := make(Stack, 0, keep+1)
	next = append(next, st.stack[:keep]...)
	next = append(next, Position{File: target, Line: d.declared})

	return scanState{
		stack:   next,
		records: append(st.records, Record{Line: index, Stack: next}),
	}, nil
}

// Scan folds the directives of lines into Records. topLevel names the file
// active before the first directive; empty means DefaultTopLevel.
//
// The returned records are strictly ordered by Line and the first one starts at
// line 0, so together they cover every line of the input. When line 0 is not a
// directive, the first record is (topLevel, 1) so leading lines map to
// themselves; older line maps seeded it with -1, which put line 0 at -2.
func (s *Scanner) Scan(lines []string, topLevel string) ([]Record, error) {
	if len(lines) == 0 {
		return nil, ErrEmptySource
	}

	if topLevel == "" {
		topLevel = DefaultTopLevel
	}

	var state scanState

	for i, line := range lines {
		d, ok, err := s.parse(line)
		if err != nil {
			return nil, &DirectiveError{Err: err, Text: line, Line: i}
		}

		if !ok {
			if i == 0 {
				state = scanState{
					stack:   Stack{{File: topLevel, Line: synthesizedLine}},
					records: []Record{{Line: 0, Stack: Stack{{File: topLevel, Line: synthesizedLine}}}},
				}
			}

			continue
		}

		state, err = state.step(i, d)
		if err != nil {
			return nil, &DirectiveError{Err: err, Text: line, Line: i}
		}
	}

	return state.records, nil
}

// SplitLines splits text on \n, \r\n and \r. A trailing terminator does not
// start another line, and empty text has no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")

	return strings.Split(text, "\n")
}
