// Package animation drives the frame index used to pick the active record
// during time-based playback.
//
// A Scheduler is a two-state machine (stopped, playing). While playing, Run
// fires Tick every 1000/speed milliseconds; each tick advances the frame
// according to the loop mode. Tick can also be called directly, which is how
// tests step the machine without a timer.
package animation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	MinSpeed = 0.1
	MaxSpeed = 20.0

	// fpsWindow is the number of inter-tick deltas averaged for FPS.
	fpsWindow = 10
)

// LoopMode governs frame advancement at the sequence boundary.
type LoopMode string

const (
	LoopRepeat   LoopMode = "repeat"
	LoopOnce     LoopMode = "once"
	LoopPingPong LoopMode = "pingpong"
)

// ParseLoopMode accepts repeat, once and pingpong (also "ping-pong"),
// case-insensitively.
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "")) {
	case "repeat", "loop":
		return LoopRepeat, nil
	case "once":
		return LoopOnce, nil
	case "pingpong":
		return LoopPingPong, nil
	default:
		return "", fmt.Errorf("unknown loop mode %q", s)
	}
}

// Status is the playback state.
type Status string

const (
	Stopped Status = "stopped"
	Playing Status = "playing"
)

// State is a point-in-time copy of the scheduler.
type State struct {
	Status      Status        `json:"status"`
	Frame       int           `json:"frame"`
	TotalFrames int           `json:"total_frames"`
	Speed       float64       `json:"speed"`
	Loop        LoopMode      `json:"loop"`
	Direction   int           `json:"direction"`
	Elapsed     time.Duration `json:"-"`
	ElapsedMS   int64         `json:"elapsed_ms"`
	FPS         float64       `json:"fps"`
}

// Scheduler is safe for concurrent use. Observers registered with Subscribe
// are called after every state change, outside the lock.
type Scheduler struct {
	clock  clockwork.Clock
	logger *slog.Logger

	mu        sync.Mutex
	status    Status
	frame     int
	total     int
	direction int
	speed     float64
	loop      LoopMode
	startedAt time.Time
	lastTick  time.Time
	elapsed   time.Duration
	deltas    []time.Duration
	fps       float64

	observers map[int]func(State)
	nextObsID int

	// wake tells Run to rebuild its ticker after a state, speed or length change.
	wake chan struct{}
}

// New creates a stopped scheduler at frame 0 with speed 1 and repeat mode.
func New(clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		clock:     clock,
		logger:    logger,
		status:    Stopped,
		direction: 1,
		speed:     1,
		loop:      LoopRepeat,
		observers: make(map[int]func(State)),
		wake:      make(chan struct{}, 1),
	}
}

// State returns a snapshot.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Scheduler) stateLocked() State {
	return State{
		Status:      s.status,
		Frame:       s.frame,
		TotalFrames: s.total,
		Speed:       s.speed,
		Loop:        s.loop,
		Direction:   s.direction,
		Elapsed:     s.elapsed,
		ElapsedMS:   s.elapsed.Milliseconds(),
		FPS:         s.fps,
	}
}

// Interval is the tick period for the current speed.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return intervalFor(s.speed)
}

func intervalFor(speed float64) time.Duration {
	return time.Duration(float64(time.Second) / speed)
}

// Subscribe registers fn to receive every state change. The returned func
// removes the subscription.
func (s *Scheduler) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// update runs fn under the lock, then notifies observers and, when rearm is
// set, wakes Run so the ticker is rebuilt.
func (s *Scheduler) update(rearm bool, fn func()) State {
	s.mu.Lock()
	fn()
	st := s.stateLocked()
	observers := make([]func(State), 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	if rearm {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	for _, o := range observers {
		o(st)
	}
	return st
}

// Play starts playback and records the wall-clock start time. In once mode a
// scheduler parked on the last frame restarts from frame 0.
func (s *Scheduler) Play() State {
	return s.update(true, func() {
		if s.status == Playing {
			return
		}
		if s.loop == LoopOnce && s.total > 1 && s.frame >= s.total-1 {
			s.frame = 0
		}
		now := s.clock.Now()
		s.status = Playing
		s.startedAt = now
		s.lastTick = now
		s.deltas = s.deltas[:0]
	})
}

// Pause stops playback; the frame is kept.
func (s *Scheduler) Pause() State {
	return s.update(true, func() {
		s.status = Stopped
	})
}

// Toggle switches between playing and stopped.
func (s *Scheduler) Toggle() State {
	s.mu.Lock()
	playing := s.status == Playing
	s.mu.Unlock()
	if playing {
		return s.Pause()
	}
	return s.Play()
}

// Reset stops playback and rewinds frame, elapsed time and direction.
func (s *Scheduler) Reset() State {
	return s.update(true, func() {
		s.status = Stopped
		s.frame = 0
		s.elapsed = 0
		s.direction = 1
		s.deltas = s.deltas[:0]
		s.fps = 0
	})
}

// SetSpeed clamps speed into [MinSpeed, MaxSpeed]. The new interval applies
// from the next scheduled tick.
func (s *Scheduler) SetSpeed(speed float64) State {
	if math.IsNaN(speed) {
		speed = 1
	}
	speed = math.Max(MinSpeed, math.Min(MaxSpeed, speed))
	return s.update(true, func() {
		s.speed = speed
	})
}

// SetLoopMode changes the boundary policy.
func (s *Scheduler) SetLoopMode(mode LoopMode) State {
	return s.update(false, func() {
		s.loop = mode
	})
}

// SetTotalFrames sets the sequence length and clamps the frame into range.
func (s *Scheduler) SetTotalFrames(n int) State {
	if n < 0 {
		n = 0
	}
	return s.update(true, func() {
		s.total = n
		s.frame = s.clampLocked(s.frame)
	})
}

// JumpToFrame moves to frame i, clamped into [0, total-1]. Allowed while
// playing or stopped.
func (s *Scheduler) JumpToFrame(i int) State {
	return s.update(false, func() {
		s.frame = s.clampLocked(i)
	})
}

// StepForward moves one frame ahead, clamped.
func (s *Scheduler) StepForward() State {
	return s.update(false, func() {
		s.frame = s.clampLocked(s.frame + 1)
	})
}

// StepBackward moves one frame back, clamped.
func (s *Scheduler) StepBackward() State {
	return s.update(false, func() {
		s.frame = s.clampLocked(s.frame - 1)
	})
}

// JumpToStart moves to frame 0.
func (s *Scheduler) JumpToStart() State {
	return s.JumpToFrame(0)
}

// JumpToEnd moves to the last frame.
func (s *Scheduler) JumpToEnd() State {
	return s.update(false, func() {
		s.frame = s.clampLocked(s.total - 1)
	})
}

func (s *Scheduler) clampLocked(i int) int {
	if s.total <= 1 || i < 0 {
		return 0
	}
	if i > s.total-1 {
		return s.total - 1
	}
	return i
}

// Tick advances one step. It is a no-op while stopped. Elapsed time grows by
// the measured wall-clock delta since the previous tick, not the nominal
// interval.
func (s *Scheduler) Tick() State {
	s.mu.Lock()
	playing := s.status == Playing
	s.mu.Unlock()
	if !playing {
		return s.State()
	}

	return s.update(false, func() {
		if s.status != Playing {
			return
		}
		now := s.clock.Now()
		s.recordDeltaLocked(now.Sub(s.lastTick))
		s.lastTick = now

		if s.total <= 1 {
			s.frame = 0
			// Frame 0 is already the last frame.
			if s.loop == LoopOnce {
				s.status = Stopped
				s.logger.Debug("animation finished", "frame", s.frame)
			}
			return
		}
		s.advanceLocked()
	})
}

func (s *Scheduler) recordDeltaLocked(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.elapsed += d
	s.deltas = append(s.deltas, d)
	if len(s.deltas) > fpsWindow {
		s.deltas = s.deltas[len(s.deltas)-fpsWindow:]
	}
	var sum time.Duration
	for _, x := range s.deltas {
		sum += x
	}
	if sum <= 0 {
		s.fps = 0
		return
	}
	avg := sum.Seconds() / float64(len(s.deltas))
	s.fps = math.Round(10/avg) / 10
}

func (s *Scheduler) advanceLocked() {
	last := s.total - 1
	switch s.loop {
	case LoopOnce:
		if s.frame >= last {
			s.status = Stopped
			s.logger.Debug("animation finished", "frame", s.frame)
			return
		}
		s.frame++
	case LoopPingPong:
		next := s.frame + s.direction
		switch {
		case next > last:
			s.direction = -1
			next = max(last-1, 0)
		case next < 0:
			s.direction = 1
			next = min(1, last)
		}
		s.frame = next
	default:
		s.frame = (s.frame + 1) % s.total
	}
}

// Run drives Tick from a ticker until ctx is cancelled. The ticker exists
// only while playing and is rebuilt whenever speed or length changes; it is
// always stopped on exit.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("animation scheduler started")
	defer s.logger.Info("animation scheduler stopped")

	for {
		s.mu.Lock()
		playing := s.status == Playing
		interval := intervalFor(s.speed)
		s.mu.Unlock()

		if !playing {
			select {
			case <-ctx.Done():
				return nil
			case <-s.wake:
				continue
			}
		}

		if stop := s.playLoop(ctx, interval); stop {
			return nil
		}
	}
}

// playLoop ticks until playback stops, a rearm is requested or ctx ends.
// Reports whether Run should return.
func (s *Scheduler) playLoop(ctx context.Context, interval time.Duration) bool {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-s.wake:
			return false
		case <-ticker.Chan():
			if st := s.Tick(); st.Status != Playing {
				return false
			}
		}
	}
}
