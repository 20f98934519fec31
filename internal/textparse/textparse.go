// Package textparse holds the named extraction rules the domain services use
// to turn free-form generated text into structured records. Every rule is a
// pure function over the raw text so thresholds stay testable in isolation.
package textparse

import (
	"regexp"
	"strconv"
	"strings"
)

// Difficulty tiers returned by Tier.
const (
	TierBeginner     = "Beginner"
	TierIntermediate = "Intermediate"
	TierAdvanced     = "Advanced"
)

var (
	numberedMarker = regexp.MustCompile(`^\d+\.\s*`)
	digitRun       = regexp.MustCompile(`\d+`)
)

// ContainsAny reports whether s contains any of the given substrings,
// case-insensitively.
func ContainsAny(s string, subs []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Lines splits text by newline and trims each line, keeping empties so
// callers that care about blank separation still can.
func Lines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, len(raw))
	for i, line := range raw {
		out[i] = strings.TrimSpace(line)
	}
	return out
}

// Section finds the first line containing any keyword and collects up to
// maxLines non-empty lines from the following 4. Returns nil when no line
// matches a keyword.
func Section(text string, keywords []string, maxLines int) []string {
	lines := Lines(text)
	for i, line := range lines {
		if !ContainsAny(line, keywords) {
			continue
		}
		var out []string
		for j := i + 1; j < len(lines) && j <= i+4 && len(out) < maxLines; j++ {
			if lines[j] != "" {
				out = append(out, lines[j])
			}
		}
		return out
	}
	return nil
}

// FirstSentences splits text on "." and returns up to n trimmed non-empty
// sentences.
func FirstSentences(text string, n int) []string {
	var out []string
	for _, s := range strings.Split(text, ".") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) >= n {
			break
		}
	}
	return out
}

// stripMarker removes a leading bullet marker or "1."-style prefix.
func stripMarker(line string) string {
	for _, marker := range []string{"•", "-", "*"} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker))
		}
	}
	if m := numberedMarker.FindString(line); m != "" {
		return strings.TrimSpace(line[len(m):])
	}
	return line
}

// isBulleted reports whether the trimmed line carries a list marker.
func isBulleted(line string) bool {
	return strings.HasPrefix(line, "•") ||
		strings.HasPrefix(line, "-") ||
		strings.HasPrefix(line, "*") ||
		numberedMarker.MatchString(line)
}

// Bulleted collects list items (lines starting with a bullet marker or a
// numbered prefix), strips the marker, keeps items longer than minLen, and
// caps the result at max.
func Bulleted(text string, minLen, max int) []string {
	var out []string
	for _, line := range Lines(text) {
		if line == "" || !isBulleted(line) {
			continue
		}
		item := stripMarker(line)
		if len(item) <= minLen {
			continue
		}
		out = append(out, item)
		if len(out) >= max {
			break
		}
	}
	return out
}

// Questions collects trimmed lines ending in "?" longer than minLen, capped
// at max.
func Questions(text string, minLen, max int) []string {
	var out []string
	for _, line := range Lines(text) {
		if !strings.HasSuffix(line, "?") || len(line) <= minLen {
			continue
		}
		out = append(out, line)
		if len(out) >= max {
			break
		}
	}
	return out
}

// Tier classifies text into a difficulty tier. Advanced keywords win over
// intermediate ones when both appear.
func Tier(text string) string {
	if ContainsAny(text, []string{"advanced", "complex", "difficult", "expert"}) {
		return TierAdvanced
	}
	if ContainsAny(text, []string{"intermediate", "moderate", "medium"}) {
		return TierIntermediate
	}
	return TierBeginner
}

// Score finds the first digit run on a line containing "score" or "%",
// clamped to [0, 100]. Returns fallback when no such line exists.
func Score(text string, fallback int) int {
	for _, line := range Lines(text) {
		if !ContainsAny(line, []string{"score", "%"}) {
			continue
		}
		m := digitRun.FindString(line)
		if m == "" {
			continue
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if n > 100 {
			n = 100
		}
		return n
	}
	return fallback
}

// KeywordTags returns the seed tags plus vocabulary terms found in the text
// (case-insensitive substring match), deduplicated and capped at max.
func KeywordTags(text string, seed, vocabulary []string, max int) []string {
	tags := make([]string, 0, max)
	seen := make(map[string]bool)
	add := func(tag string) {
		if len(tags) >= max || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, tag := range seed {
		add(tag)
	}
	lower := strings.ToLower(text)
	for _, term := range vocabulary {
		if strings.Contains(lower, strings.ToLower(term)) {
			add(term)
		}
	}
	return tags
}

// SectionRule names one bucket of a section scan: trigger substrings that
// open the section, a minimum item length, and a cap.
type SectionRule struct {
	Name     string
	Triggers []string
	MinLen   int
	Max      int
}

// ScanSections runs a single-pass state machine over the text. A line
// matching a rule's trigger set switches the current section; pure headers
// (trigger lines ending in ":") are skipped, while trigger lines carrying
// content ("Step 1: identify the variables") also accumulate. Lines
// accumulate into the current section subject to the rule's MinLen and Max,
// with any leading list marker stripped. The scan ends at input exhaustion
// and the accumulated map is returned as-is, so absent sections simply have
// no key.
func ScanSections(text string, rules []SectionRule) map[string][]string {
	out := make(map[string][]string)
	var current *SectionRule

	for _, line := range Lines(text) {
		if line == "" {
			continue
		}

		for i := range rules {
			if ContainsAny(line, rules[i].Triggers) {
				current = &rules[i]
				break
			}
		}
		if current == nil {
			continue
		}
		if strings.HasSuffix(line, ":") {
			continue
		}

		item := stripMarker(line)
		if len(item) <= current.MinLen || len(out[current.Name]) >= current.Max {
			continue
		}
		out[current.Name] = append(out[current.Name], item)
	}

	return out
}
