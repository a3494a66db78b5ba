// internal/game/delta.go
package game

import "encoding/json"

// Change tracking for state emission. Instead of intercepting field
// writes, the engine takes an immutable snapshot each tick and diffs it
// against the previous emission field by field. Only the changed
// top-level fields travel over the wire; a full snapshot is never
// retransmitted once steady-state.

// PaddleState is one paddle's share of a world snapshot.
type PaddleState struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VY float64 `json:"vy"`
}

// BallState is the ball's share of a world snapshot.
type BallState struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
	NeedsServe bool    `json:"needsServe"`
}

// Snapshot is the per-tick world state, the only artifact the engine
// exposes outside itself.
type Snapshot struct {
	Timestamp int64         `json:"timestamp"`
	Paddles   []PaddleState `json:"paddles"`
	Ball      BallState     `json:"ball"`
	Scores    map[int64]int `json:"scores"`
}

// Diff returns the top-level fields of s that differ from prev.
// Timestamp always counts as changed, so every emitted delta carries at
// least the tick time.
func (s Snapshot) Diff(prev Snapshot) map[string]interface{} {
	delta := map[string]interface{}{
		"timestamp": s.Timestamp,
	}
	if !paddlesEqual(s.Paddles, prev.Paddles) {
		delta["paddles"] = s.Paddles
	}
	if s.Ball != prev.Ball {
		delta["ball"] = s.Ball
	}
	if !scoresEqual(s.Scores, prev.Scores) {
		delta["scores"] = s.Scores
	}
	return delta
}

// Apply merges a delta into a snapshot, producing the state a client
// mirror would hold after consuming the emission. Applying every delta in
// order reproduces the full snapshot stream.
func (s Snapshot) Apply(delta map[string]interface{}) Snapshot {
	out := s
	if ts, ok := delta["timestamp"].(int64); ok {
		out.Timestamp = ts
	}
	if paddles, ok := delta["paddles"].([]PaddleState); ok {
		out.Paddles = paddles
	}
	if ball, ok := delta["ball"].(BallState); ok {
		out.Ball = ball
	}
	if scores, ok := delta["scores"].(map[int64]int); ok {
		out.Scores = scores
	}
	return out
}

// wireDelta mirrors the JSON shape of a Diff emission. Pointer fields
// distinguish "absent from the delta" from the zero value.
type wireDelta struct {
	Timestamp *int64        `json:"timestamp"`
	Paddles   []PaddleState `json:"paddles"`
	Ball      *BallState    `json:"ball"`
	Scores    map[int64]int `json:"scores"`
}

// ApplyWire merges a JSON-encoded delta into a snapshot, the decode-side
// counterpart of Apply for deltas that crossed the wire.
func (s Snapshot) ApplyWire(data []byte) (Snapshot, error) {
	var d wireDelta
	if err := json.Unmarshal(data, &d); err != nil {
		return s, err
	}
	out := s
	if d.Timestamp != nil {
		out.Timestamp = *d.Timestamp
	}
	if d.Paddles != nil {
		out.Paddles = d.Paddles
	}
	if d.Ball != nil {
		out.Ball = *d.Ball
	}
	if d.Scores != nil {
		out.Scores = d.Scores
	}
	return out, nil
}

func paddlesEqual(a, b []PaddleState) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func scoresEqual(a, b map[int64]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
