package crisis

import "strings"

// Detector scans user input for phrases indicating self-harm risk. Detection
// is deliberately simple keyword matching: it must work even when every
// external dependency is down, so it never calls out of process.
type Detector struct {
	keywords []string
}

var defaultKeywords = []string{
	"suicide",
	"kill myself",
	"end my life",
	"don't want to live",
	"self-harm",
	"hurt myself",
	"cutting myself",
	"harming myself",
	"overdose",
	"take all my pills",
	"jump off",
	"hang myself",
}

// New creates a detector with the built-in keyword set. Extra keywords
// extend the set without replacing it.
func New(extra ...string) *Detector {
	keywords := make([]string, 0, len(defaultKeywords)+len(extra))
	keywords = append(keywords, defaultKeywords...)
	for _, kw := range extra {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Detector{keywords: keywords}
}

// Check reports whether the text contains any crisis keyword. Matching is
// case-insensitive substring containment.
func (d *Detector) Check(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
