// Package transcript turns raw speech-to-text output into journal entries:
// it strips the spoken wake and end phrases, detects the spoken tag and the
// Dark Side triggers, and generates titles.
package transcript

import (
	"regexp"
	"strings"
)

const (
	DefaultWakePhrase = "life tape"
	DefaultEndPhrase  = "end tape"

	// EmptyTranscript replaces a recording that produced no text.
	EmptyTranscript = "Voice entry recorded successfully"
)

var (
	DefaultTriggers = []string{"real talk", "truth", "dark", "brutal", "fuck it"}
	DefaultTags     = []string{"work", "family", "health", "gratitude", "dream", "idea", "travel", "love", "goals"}
)

type Phrases struct {
	Wake     string
	End      string
	Triggers []string
	Tags     []string
}

func DefaultPhrases() Phrases {
	return Phrases{
		Wake:     DefaultWakePhrase,
		End:      DefaultEndPhrase,
		Triggers: append([]string(nil), DefaultTriggers...),
		Tags:     append([]string(nil), DefaultTags...),
	}
}

// Result is a processed recording.
type Result struct {
	Transcript string
	Tag        string
	IsDarkSide bool
}

type Processor struct {
	phrases  Phrases
	wake     *regexp.Regexp
	end      *regexp.Regexp
	wakeAny  *regexp.Regexp
	endAny   *regexp.Regexp
	triggers []*regexp.Regexp
	needles  []string
	tags     map[string]bool
	rules    *Engine
}

// NewProcessor compiles the phrase set. Empty fields fall back to the
// defaults. rules may be nil.
func NewProcessor(p Phrases, rules *Engine) *Processor {
	def := DefaultPhrases()
	if strings.TrimSpace(p.Wake) == "" {
		p.Wake = def.Wake
	}
	if strings.TrimSpace(p.End) == "" {
		p.End = def.End
	}
	if len(p.Triggers) == 0 {
		p.Triggers = def.Triggers
	}
	if len(p.Tags) == 0 {
		p.Tags = def.Tags
	}

	proc := &Processor{
		phrases: p,
		wake:    regexp.MustCompile(`(?i)^\s*` + phrasePattern(p.Wake) + `\b[\s,.!?]*`),
		end:     regexp.MustCompile(`(?i)[\s,.!?]*` + phrasePattern(p.End) + `[\s,.!?]*$`),
		wakeAny: regexp.MustCompile(`(?i)` + phrasePattern(p.Wake) + `\b`),
		endAny:  regexp.MustCompile(`(?i)` + phrasePattern(p.End) + `\b`),
		tags:    make(map[string]bool, len(p.Tags)),
		rules:   rules,
	}
	for _, t := range p.Triggers {
		if strings.TrimSpace(t) == "" {
			continue
		}
		proc.triggers = append(proc.triggers, regexp.MustCompile(`(?i)^\s*`+phrasePattern(t)+`\b[\s,.!?]*`))
		proc.needles = append(proc.needles, normalize(t))
	}
	for _, t := range p.Tags {
		proc.tags[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return proc
}

func (p *Processor) Phrases() Phrases { return p.phrases }

// phrasePattern matches the words of phrase separated by any whitespace.
func phrasePattern(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return `\b` + strings.Join(words, `\s+`)
}

// HasWake reports whether text contains the wake phrase.
func (p *Processor) HasWake(text string) bool {
	return p.wakeAny.MatchString(text)
}

// HasEnd reports whether text contains the end phrase.
func (p *Processor) HasEnd(text string) bool {
	return p.endAny.MatchString(text)
}

// AfterWake returns the text following the first wake phrase, or text
// itself when there is none.
func (p *Processor) AfterWake(text string) string {
	loc := p.wakeAny.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return strings.TrimLeft(text[loc[1]:], " \t\n,.!?")
}

// IsDarkSide reports whether any trigger phrase appears anywhere in text,
// inside longer words too: "truthfully" and "darkness" both count.
func (p *Processor) IsDarkSide(text string) bool {
	text = normalize(text)
	for _, t := range p.needles {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// normalize lowercases s and collapses runs of whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// DetectTag returns the known tag spoken right after the wake phrase,
// skipping any leading trigger phrase, or "".
func (p *Processor) DetectTag(text string) string {
	rest := p.wake.ReplaceAllString(strings.TrimSpace(text), "")
	rest = p.stripTriggers(rest)

	first, _, _ := strings.Cut(strings.TrimSpace(rest), " ")
	first = strings.ToLower(strings.Trim(first, ",.!?:;"))
	if p.tags[first] {
		return first
	}
	return ""
}

// Clean strips the leading wake phrase, any leading tag word or trigger
// phrase and the trailing end phrase.
func (p *Processor) Clean(raw, tag string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = p.wake.ReplaceAllString(cleaned, "")
	cleaned = p.end.ReplaceAllString(cleaned, "")

	var tagRe *regexp.Regexp
	if tag = strings.TrimSpace(tag); tag != "" {
		tagRe = regexp.MustCompile(`(?i)^\s*` + phrasePattern(tag) + `\b[\s,.!?:;]*`)
	}
	for {
		before := cleaned
		if tagRe != nil {
			cleaned = tagRe.ReplaceAllString(cleaned, "")
		}
		cleaned = p.stripTriggers(cleaned)
		if cleaned == before {
			break
		}
	}
	return strings.TrimSpace(cleaned)
}

func (p *Processor) stripTriggers(s string) string {
	for {
		before := s
		for _, re := range p.triggers {
			s = re.ReplaceAllString(s, "")
		}
		if s == before {
			return s
		}
	}
}

// Process classifies and cleans a raw transcript. Substitution rules run on
// the cleaned text.
func (p *Processor) Process(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		raw = EmptyTranscript
	}

	tag := p.DetectTag(raw)
	res := Result{
		Tag:        tag,
		IsDarkSide: p.IsDarkSide(raw),
		Transcript: p.Clean(raw, tag),
	}
	if p.rules != nil {
		res.Transcript = strings.TrimSpace(p.rules.Apply(res.Transcript))
	}
	return res
}
