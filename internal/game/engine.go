// internal/game/engine.go
package game

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pongd/internal/models"
)

// Simulation constants. The AI tiers and dead zone are tuned values
// carried over from the previous generation of the server; treat them as
// configuration, not invariants.
const (
	TickRate     = 60
	TickInterval = time.Second / TickRate

	FieldWidth  = 800.0
	FieldHeight = 600.0

	PaddleWidth  = 10.0
	PaddleHeight = 100.0
	PaddleMargin = 20.0
	PaddleSpeed  = 6.0

	BallRadius       = 8.0
	BallServeSpeedX  = 5.0
	BallServeMaxY    = 3.0
	BallMaxSpeed     = 12.0
	BallAcceleration = 1.05

	// Vertical velocity gained per unit of offset between ball and paddle
	// center on a paddle hit.
	paddleSpinFactor = 0.12

	// Per-tick velocity decay applied when a paddle received no input.
	humanPaddleDecay = 0.92
	botPaddleDecay   = 0.78

	// The AI only tracks the ball while its x-coordinate sits inside the
	// central band of the playfield.
	aiBandMin  = FieldWidth * 0.25
	aiBandMax  = FieldWidth * 0.75
	aiDeadZone = 14.0
)

// aiSpeedTiers are the discrete speeds the AI paddle picks from when it
// decides to chase the ball.
var aiSpeedTiers = [...]float64{3.0, 4.5, 6.0}

// Paddle is one player's paddle in the authoritative world. Y is the
// paddle center.
type Paddle struct {
	ID  int64
	X   float64
	Y   float64
	VY  float64
	bot bool

	// moved records whether an input (human message or AI decision)
	// touched this paddle during the current tick. Cleared every tick;
	// untouched paddles decelerate.
	moved bool
}

// Ball is the authoritative ball state.
type Ball struct {
	X, Y       float64
	VX, VY     float64
	NeedsServe bool
}

// Engine runs the deterministic fixed-tick simulation for exactly one
// session in its playing state. Its lifetime is bounded by that state:
// created on the transition into Playing, torn down on Finished.
type Engine struct {
	GameID uuid.UUID

	// OnScore is invoked (outside the engine lock) when the ball crosses
	// a scoring edge, with the id of the participant the point goes to.
	OnScore func(winnerID int64)

	// EmitFn receives the changed-fields delta after every tick.
	EmitFn func(delta map[string]interface{})

	// ScoresFn supplies the authoritative score snapshot embedded in each
	// world snapshot.
	ScoresFn func() map[int64]int

	log *logrus.Logger
	rng *rand.Rand

	mu      sync.Mutex
	paddles []*Paddle
	ball    Ball
	prev    Snapshot

	active  bool
	paused  bool
	stopped bool

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

// NewEngine builds the world for a session's participants. Participant
// order is authoritative: index 0 takes the left paddle, index 1 the
// right. The reserved bot id gets the AI-driven paddle.
func NewEngine(gameID uuid.UUID, participants []models.Gamer, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	e := &Engine{
		GameID: gameID,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		done:   make(chan struct{}),
		ball: Ball{
			X:          FieldWidth / 2,
			Y:          FieldHeight / 2,
			NeedsServe: true,
		},
	}
	xs := [2]float64{PaddleMargin, FieldWidth - PaddleMargin - PaddleWidth}
	for i, p := range participants {
		if i > 1 {
			break
		}
		e.paddles = append(e.paddles, &Paddle{
			ID:  p.UserID,
			X:   xs[i],
			Y:   FieldHeight / 2,
			bot: p.UserID == models.BotID,
		})
	}
	return e
}

// Activate starts the tick loop. Idempotent; a stopped engine stays
// stopped.
func (e *Engine) Activate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active || e.stopped {
		return
	}
	e.active = true
	e.ticker = time.NewTicker(TickInterval)
	go e.run()
	e.log.WithField("gameId", e.GameID).Info("simulation engine activated")
}

// Pause suspends ticking while retaining the physics world. Idempotent.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Resume reactivates the loop from the paused world.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

// Stop tears down the tick timer and releases the loop goroutine.
// Terminal and exactly-once: there is no resume after stop, and a second
// call is a no-op. Skipping this on session termination leaks the ticker.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopped = true
		e.active = false
		if e.ticker != nil {
			e.ticker.Stop()
		}
		e.mu.Unlock()
		close(e.done)
		e.log.WithField("gameId", e.GameID).Info("simulation engine stopped")
	})
}

// Stopped reports whether Stop has run.
func (e *Engine) Stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

func (e *Engine) run() {
	for {
		select {
		case <-e.done:
			return
		case <-e.ticker.C:
			e.tick()
		}
	}
}

// SetPadDirection applies a pad-direction change from a client.
// direction is -1 (up), 0 (hold) or 1 (down); anything else is clamped
// to its sign. Unknown paddle ids are ignored, tolerating late messages.
func (e *Engine) SetPadDirection(userID int64, direction float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	for _, p := range e.paddles {
		if p.ID != userID || p.bot {
			continue
		}
		switch {
		case direction < 0:
			p.VY = -PaddleSpeed
		case direction > 0:
			p.VY = PaddleSpeed
		default:
			p.VY = 0
		}
		p.moved = true
		return
	}
}

// Serve fires the ball on an explicit serve request. Only honored while
// the ball is waiting to be served; direction is randomized in x (left or
// right at fixed magnitude) with a bounded random y offset.
func (e *Engine) Serve() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || !e.ball.NeedsServe {
		return false
	}
	dir := 1.0
	if e.rng.Intn(2) == 0 {
		dir = -1.0
	}
	e.ball.VX = dir * BallServeSpeedX
	e.ball.VY = (e.rng.Float64()*2 - 1) * BallServeMaxY
	e.ball.NeedsServe = false
	return true
}

// BallSnapshot returns the current ball state. Used by tests and the
// join path's initial state push.
func (e *Engine) BallSnapshot() Ball {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ball
}

// tick advances the world one step. The score callback and delta emission
// run outside the engine lock; a panic in either is contained so the
// loop keeps ticking with best-effort state.
func (e *Engine) tick() {
	e.mu.Lock()
	if e.paused || e.stopped {
		e.mu.Unlock()
		return
	}
	e.driveAI()
	e.advancePaddles()
	scorer, scored := e.advanceBall()
	onScore := e.OnScore
	e.mu.Unlock()

	if scored && onScore != nil {
		e.safely("score callback", func() { onScore(scorer) })
	}

	e.mu.Lock()
	snap := e.snapshotLocked()
	delta := snap.Diff(e.prev)
	e.prev = snap
	emit := e.EmitFn
	e.mu.Unlock()

	if emit != nil {
		e.safely("delta emission", func() { emit(delta) })
	}
}

// driveAI runs the bot heuristic: track the ball's y only while it is in
// the central band, chase at a randomly picked speed tier when the offset
// leaves the dead zone, hold otherwise.
func (e *Engine) driveAI() {
	for _, p := range e.paddles {
		if !p.bot {
			continue
		}
		b := e.ball
		if b.NeedsServe || b.X < aiBandMin || b.X > aiBandMax {
			continue
		}
		offset := b.Y - p.Y
		if math.Abs(offset) <= aiDeadZone {
			p.VY = 0
			p.moved = true
			continue
		}
		tier := aiSpeedTiers[e.rng.Intn(len(aiSpeedTiers))]
		if offset < 0 {
			tier = -tier
		}
		p.VY = tier
		p.moved = true
	}
}

// advancePaddles applies velocity, or exponential deceleration when no
// input arrived this tick. Human paddles coast longer than the AI paddle.
func (e *Engine) advancePaddles() {
	for _, p := range e.paddles {
		if !p.moved {
			decay := humanPaddleDecay
			if p.bot {
				decay = botPaddleDecay
			}
			p.VY *= decay
			if math.Abs(p.VY) < 0.05 {
				p.VY = 0
			}
		}
		p.Y += p.VY
		half := PaddleHeight / 2
		if p.Y < half {
			p.Y = half
			p.VY = 0
		} else if p.Y > FieldHeight-half {
			p.Y = FieldHeight - half
			p.VY = 0
		}
		p.moved = false
	}
}

// advanceBall moves the ball and resolves collisions. At most one scoring
// edge can trigger per tick; a score resets the ball to center, disabled
// until the next serve, and attributes the point to the opposing owner.
func (e *Engine) advanceBall() (scorer int64, scored bool) {
	b := &e.ball
	if b.NeedsServe {
		return 0, false
	}
	b.X += b.VX
	b.Y += b.VY

	if b.Y-BallRadius < 0 {
		b.Y = BallRadius
		b.VY = -b.VY
	} else if b.Y+BallRadius > FieldHeight {
		b.Y = FieldHeight - BallRadius
		b.VY = -b.VY
	}

	for _, p := range e.paddles {
		e.collidePaddle(b, p)
	}

	if len(e.paddles) < 2 {
		return 0, false
	}
	left, right := e.paddles[0], e.paddles[1]
	if b.X-BallRadius <= 0 {
		e.resetBallLocked()
		return right.ID, true
	} else if b.X+BallRadius >= FieldWidth {
		e.resetBallLocked()
		return left.ID, true
	}
	return 0, false
}

// collidePaddle reflects the ball off a paddle, perturbing vertical
// velocity proportionally to the offset between ball and paddle center.
func (e *Engine) collidePaddle(b *Ball, p *Paddle) {
	half := PaddleHeight / 2
	if b.Y+BallRadius < p.Y-half || b.Y-BallRadius > p.Y+half {
		return
	}
	if b.X+BallRadius < p.X || b.X-BallRadius > p.X+PaddleWidth {
		return
	}
	movingToward := (b.VX < 0 && b.X > p.X) || (b.VX > 0 && b.X < p.X+PaddleWidth)
	if !movingToward {
		return
	}
	b.VX = -b.VX * BallAcceleration
	b.VX = clampAbs(b.VX, BallMaxSpeed)
	b.VY += (b.Y - p.Y) * paddleSpinFactor
	b.VY = clampAbs(b.VY, BallMaxSpeed)
	if b.VX > 0 {
		b.X = p.X + PaddleWidth + BallRadius
	} else {
		b.X = p.X - BallRadius
	}
}

func clampAbs(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < -max {
		return -max
	}
	return v
}

func (e *Engine) resetBallLocked() {
	e.ball = Ball{
		X:          FieldWidth / 2,
		Y:          FieldHeight / 2,
		NeedsServe: true,
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	paddles := make([]PaddleState, len(e.paddles))
	for i, p := range e.paddles {
		paddles[i] = PaddleState{ID: p.ID, X: p.X, Y: p.Y, VY: p.VY}
	}
	scores := map[int64]int{}
	if e.ScoresFn != nil {
		scores = e.ScoresFn()
	}
	return Snapshot{
		Timestamp: time.Now().UnixMilli(),
		Paddles:   paddles,
		Ball: BallState{
			X: e.ball.X, Y: e.ball.Y,
			VX: e.ball.VX, VY: e.ball.VY,
			NeedsServe: e.ball.NeedsServe,
		},
		Scores: scores,
	}
}

// safely shields the tick loop from a panicking callback.
func (e *Engine) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{
				"gameId": e.GameID,
				"stage":  what,
				"panic":  r,
			}).Error("tick callback panicked, continuing")
		}
	}()
	fn()
}
