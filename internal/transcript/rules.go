package transcript

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const defaultLoopLimit = 30

// Engine applies user substitution rules to cleaned transcripts, e.g. to fix
// names the recognizer keeps getting wrong. Rules are one per line:
//
//	from => to                 literal, case-insensitive
//	s/pattern/replacement/g    regular expression, case-insensitive
//
// Blank lines and lines starting with # are ignored.
type Engine struct {
	rules     []rule
	loopLimit int
}

type rule interface {
	apply(input string) (string, bool)
}

// LoadRules reads a rules file. A missing or empty path yields an engine
// with no rules.
func LoadRules(path string, loopLimit int) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return ParseRules("", loopLimit)
	}
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ParseRules("", loopLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("read rules %q: %w", path, err)
	}
	e, err := ParseRules(string(contents), loopLimit)
	if err != nil {
		return nil, fmt.Errorf("parse rules %q: %w", path, err)
	}
	return e, nil
}

func ParseRules(contents string, loopLimit int) (*Engine, error) {
	if loopLimit <= 0 {
		loopLimit = defaultLoopLimit
	}
	e := &Engine{loopLimit: loopLimit}

	for n, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var (
			r   rule
			err error
		)
		switch {
		case isRegexRule(line):
			r, err = parseRegexRule(line)
		case strings.Contains(line, "=>"):
			r, err = parseLiteralRule(line)
		default:
			err = errors.New("unsupported rule format")
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		e.rules = append(e.rules, r)
	}
	return e, nil
}

func (e *Engine) Len() int { return len(e.rules) }

// Apply runs every rule in order until nothing changes or the loop limit is
// reached.
func (e *Engine) Apply(text string) string {
	for i := 0; i < e.loopLimit; i++ {
		changed := false
		for _, r := range e.rules {
			if next, ok := r.apply(text); ok {
				text = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return text
}

type literalRule struct {
	re *regexp.Regexp
	to string
}

func parseLiteralRule(line string) (rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}
	return literalRule{re: regexp.MustCompile("(?i)" + regexp.QuoteMeta(from)), to: to}, nil
}

func (r literalRule) apply(input string) (string, bool) {
	out := r.re.ReplaceAllLiteralString(input, r.to)
	return out, out != input
}

type regexRule struct {
	re     *regexp.Regexp
	to     string
	global bool
}

func isRegexRule(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordOrSpace(line[1])
}

func parseRegexRule(line string) (rule, error) {
	delim := line[1]
	pattern, pos, err := readDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	to, pos, err := readDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}

	flags := "i"
	global := false
	for _, f := range strings.TrimSpace(line[pos:]) {
		switch f {
		case 'i':
		case 'g':
			global = true
		case 'm', 's':
			flags += string(f)
		default:
			return nil, fmt.Errorf("unsupported regex flag %q", f)
		}
	}

	re, err := regexp.Compile("(?" + flags + ")" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return regexRule{re: re, to: to, global: global}, nil
}

func (r regexRule) apply(input string) (string, bool) {
	if r.global {
		out := r.re.ReplaceAllString(input, r.to)
		return out, out != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	replaced := r.re.ExpandString(nil, r.to, input, loc)
	out := input[:loc[0]] + string(replaced) + input[loc[1]:]
	return out, out != input
}

// readDelimited reads up to the next unescaped delim starting at start and
// returns the text and the position after the delimiter.
func readDelimited(line string, start int, delim byte) (string, int, error) {
	var b strings.Builder
	escaped := false
	for i := start; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == delim:
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}
	return "", 0, errors.New("unterminated expression")
}

func isWordOrSpace(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == ' ' || c == '\t'
}
