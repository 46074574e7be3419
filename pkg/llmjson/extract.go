// Package llmjson recovers a JSON object from free-form model output.
//
// Extraction runs an ordered list of strategies. Each strategy proposes
// candidate substrings; every candidate is cleaned and, failing that, cleaned
// aggressively, and the first one that parses as a JSON object wins.
package llmjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Result is the tagged outcome of Extract. Found is false when no strategy
// produced a parseable object.
type Result struct {
	Found    bool
	JSON     json.RawMessage
	Strategy string
}

// NotFound is the empty result.
var NotFound = Result{}

// Decode unmarshals the recovered object into v.
func (r Result) Decode(v any) error {
	return json.Unmarshal(r.JSON, v)
}

type Strategy struct {
	Name       string
	Candidates func(text string) []string
}

var (
	jsonFence  = regexp.MustCompile("(?is)```\\s*json\\s*\\n?(.*?)```")
	anyFence   = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \\t]*\\n?(.*?)```")
	braceBlock = regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
)

// Strategies in the order Extract tries them.
var Strategies = []Strategy{
	{Name: "fenced_json", Candidates: FencedJSON},
	{Name: "fenced_object", Candidates: FencedObject},
	{Name: "outer_braces", Candidates: OuterBraces},
	{Name: "brace_regex", Candidates: BraceRegex},
}

// FencedJSON returns the bodies of code fences labeled json.
func FencedJSON(text string) []string {
	var out []string
	for _, m := range jsonFence.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// FencedObject returns the bodies of any code fence that look like an object.
func FencedObject(text string) []string {
	var out []string
	for _, m := range anyFence.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[1])
		if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
			out = append(out, body)
		}
	}
	return out
}

// OuterBraces returns the span from the first '{' to the last '}'.
func OuterBraces(text string) []string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}
	return []string{text[start : end+1]}
}

// BraceRegex returns brace-delimited spans with at most one level of nesting.
func BraceRegex(text string) []string {
	return braceBlock.FindAllString(text, -1)
}

// Extract runs Strategies over text and returns the first candidate that
// cleans into a JSON object.
func Extract(text string) Result {
	for _, s := range Strategies {
		for _, candidate := range s.Candidates(text) {
			if obj, ok := parseObject(candidate); ok {
				return Result{Found: true, JSON: obj, Strategy: s.Name}
			}
		}
	}
	return NotFound
}

func parseObject(candidate string) (json.RawMessage, bool) {
	for _, clean := range []func(string) string{Clean, CleanAggressive} {
		cleaned := clean(candidate)
		if isObject(cleaned) {
			return json.RawMessage(cleaned), true
		}
	}
	return nil, false
}

func isObject(s string) bool {
	if !strings.HasPrefix(s, "{") || !json.Valid([]byte(s)) {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}

// Clean strips // and /* */ comments, collapses whitespace and drops trailing
// commas before '}' or ']'. Quoted string contents are left untouched.
func Clean(s string) string {
	return strings.TrimSpace(dropTrailingCommas(stripComments(s)))
}

// CleanAggressive escapes raw line breaks and tabs inside string literals and
// removes every other control character before running Clean.
func CleanAggressive(s string) string {
	return Clean(escapeControls(s))
}

func stripComments(s string) string {
	var b bytes.Buffer
	b.Grow(len(s))

	inString, escaped := false, false
	lastSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			lastSpace = false
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			i--
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
				break
			}
			i += 2 + end + 1
		case isSpace(c):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			lastSpace = false
			b.WriteByte(c)
		}
	}
	return b.String()
}

func dropTrailingCommas(s string) string {
	var b bytes.Buffer
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}

		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func escapeControls(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for _, r := range s {
		if r == '\uFEFF' {
			continue
		}
		if inString {
			switch {
			case escaped:
				// the backslash is already written; finish a valid escape
				escaped = false
				switch {
				case r == '\n':
					b.WriteByte('n')
				case r == '\r':
					b.WriteByte('r')
				case r == '\t':
					b.WriteByte('t')
				case r < 0x20 || r == 0x7f:
					fmt.Fprintf(&b, "u%04x", r)
				default:
					b.WriteRune(r)
				}
			case r == '\\':
				escaped = true
				b.WriteRune(r)
			case r == '"':
				inString = false
				b.WriteRune(r)
			case r == '\n':
				b.WriteString(`\n`)
			case r == '\r':
				b.WriteString(`\r`)
			case r == '\t':
				b.WriteString(`\t`)
			case r < 0x20 || r == 0x7f:
			default:
				b.WriteRune(r)
			}
			continue
		}

		if r == '"' {
			inString = true
		}
		if (r < 0x20 && r != '\n' && r != '\r' && r != '\t') || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == '\v'
}
