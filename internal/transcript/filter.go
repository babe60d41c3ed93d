// Package transcript implements post-transcription cleanup for caller
// speech.
//
// Fixed-window segmentation feeds the speech provider stretches of line
// noise and silence, and speech models respond to those with stock filler
// ("thank you for watching", "you", subtitle credits). The Filter demotes
// such transcripts to the empty string so the controller skips the turn
// instead of handing noise to the language model.
//
// Matching is fuzzy: transcripts are compared to a phrase list with
// Jaro-Winkler similarity, so "Thanks for watching!" and "thank you for
// watching." both match the same entry.
package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const defaultSimilarityThreshold = 0.90

// defaultNoisePhrases are stock phrases speech models emit for silent or
// noisy audio. Lower-cased, punctuation-free.
var defaultNoisePhrases = []string{
	"you",
	"bye",
	"thank you",
	"thanks for watching",
	"thank you for watching",
	"thank you so much for watching",
	"subtitles by the amara org community",
	"please subscribe",
	"see you in the next video",
	"silence",
	"uh",
	"hmm",
}

// Option is a functional option for configuring a [Filter].
type Option func(*Filter)

// WithThreshold sets the minimum Jaro-Winkler score for a transcript to be
// treated as noise. Default: 0.90.
func WithThreshold(threshold float64) Option {
	return func(f *Filter) { f.threshold = threshold }
}

// WithPhrases replaces the built-in noise phrase list.
func WithPhrases(phrases []string) Option {
	return func(f *Filter) { f.phrases = phrases }
}

// Filter demotes noise transcripts to the empty string. All methods are safe
// for concurrent use; the Filter is read-only after construction.
type Filter struct {
	threshold float64
	phrases   []string
}

// New returns a Filter with the built-in phrase list and default threshold.
func New(opts ...Option) *Filter {
	f := &Filter{
		threshold: defaultSimilarityThreshold,
		phrases:   defaultNoisePhrases,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Clean normalises whitespace and returns "" when the transcript matches a
// noise phrase; otherwise it returns the trimmed transcript unchanged.
func (f *Filter) Clean(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	normalized := normalize(trimmed)
	if normalized == "" {
		return ""
	}
	for _, phrase := range f.phrases {
		if matchr.JaroWinkler(normalized, phrase, false) >= f.threshold {
			return ""
		}
	}
	return trimmed
}

// normalize lower-cases text and strips everything but letters, digits, and
// single spaces, so punctuation never defeats a phrase match.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
