// This file contains the audio segmenter: a fixed-length-window policy over
// inbound frames, not voice activity detection. At the transport's 50 ms
// frame cadence the default threshold of 60 frames is one 3 s utterance.

package relay

// DefaultFrameThreshold is the number of buffered frames that constitutes
// one utterance. The transport delivers one frame every 50 ms, so 60 frames
// is 3 seconds of caller audio. Changing it changes the turn-taking cadence.
const DefaultFrameThreshold = 60

// Segmenter accumulates inbound audio frames until enough have been
// collected to constitute one utterance. It is not safe for concurrent use;
// the owning Session's lock guards it.
type Segmenter struct {
	threshold int
	frames    [][]byte
}

// NewSegmenter creates a Segmenter that signals readiness at threshold
// frames. A non-positive threshold falls back to DefaultFrameThreshold.
func NewSegmenter(threshold int) *Segmenter {
	if threshold <= 0 {
		threshold = DefaultFrameThreshold
	}
	return &Segmenter{threshold: threshold}
}

// Accumulate appends one inbound frame to the buffer.
func (g *Segmenter) Accumulate(frame []byte) {
	g.frames = append(g.frames, frame)
}

// UtteranceReady reports whether the buffered frame count has reached the
// threshold.
func (g *Segmenter) UtteranceReady() bool {
	return len(g.frames) >= g.threshold
}

// Flush drains and returns the buffered frames in arrival order, resetting
// the buffer to empty.
func (g *Segmenter) Flush() [][]byte {
	frames := g.frames
	g.frames = nil
	return frames
}

// Len returns the number of buffered frames.
func (g *Segmenter) Len() int {
	return len(g.frames)
}
