package playback_test

import (
	"context"
	"github.com/google/uuid"
	"sync"
	"testing"
	"time"
	"video-chapters/dto"
	"video-chapters/playback"
)

type fakePlayer struct {
	mu       sync.Mutex
	t        float64
	duration float64
	ready    bool
	paused   bool

	// ignoreSeeks drops that many SetCurrentTime calls.
	ignoreSeeks int
	// lag holds seek targets until settle is called.
	lag     bool
	pending *float64

	seeks  []float64
	plays  int
	pauses int
}

func newPlayer(duration float64) *fakePlayer {
	return &fakePlayer{duration: duration, ready: true}
}

func (p *fakePlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.t
}

func (p *fakePlayer) SetCurrentTime(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, t)
	if p.ignoreSeeks > 0 {
		p.ignoreSeeks--
		return
	}
	if p.lag {
		p.pending = &t
		return
	}
	p.t = t
}

func (p *fakePlayer) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *fakePlayer) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

func (p *fakePlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	p.paused = false
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
	p.paused = true
}

func (p *fakePlayer) setTime(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.t = t
}

func (p *fakePlayer) dropSeeks(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ignoreSeeks = n
}

func (p *fakePlayer) setReady(ready bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = ready
}

func (p *fakePlayer) settle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		p.t = *p.pending
		p.pending = nil
	}
}

func (p *fakePlayer) counts() (seeks []float64, plays, pauses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.seeks...), p.plays, p.pauses
}

type checkerFunc func(ctx context.Context, quizID int64, viewerID uuid.UUID) (dto.QuizCompletion, error)

func (f checkerFunc) GetQuizCompletion(ctx context.Context, quizID int64, viewerID uuid.UUID) (dto.QuizCompletion, error) {
	return f(ctx, quizID, viewerID)
}

type fakeQuiz struct {
	presented chan int64
	mu        sync.Mutex
	done      func()
}

func newQuiz() *fakeQuiz {
	return &fakeQuiz{presented: make(chan int64, 4)}
}

func (q *fakeQuiz) Present(quizID int64, done func()) {
	q.mu.Lock()
	q.done = done
	q.mu.Unlock()
	q.presented <- quizID
}

func (q *fakeQuiz) close() {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()
	done()
}

type notices struct {
	mu   sync.Mutex
	list []playback.Notice
}

func (n *notices) Notify(notice playback.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, notice)
}

func (n *notices) kinds() []playback.NoticeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]playback.NoticeKind, 0, len(n.list))
	for _, x := range n.list {
		out = append(out, x.Kind)
	}
	return out
}

func (n *notices) has(kind playback.NoticeKind) bool {
	for _, k := range n.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func (n *notices) count(kind playback.NoticeKind) int {
	c := 0
	for _, k := range n.kinds() {
		if k == kind {
			c++
		}
	}
	return c
}

func start(t *testing.T, cfg playback.Config) *playback.Session {
	t.Helper()
	s := playback.NewSession(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitState(t *testing.T, s *playback.Session, want playback.GateState) playback.Snapshot {
	t.Helper()
	var snap playback.Snapshot
	eventually(t, "state "+want.String(), func() bool {
		snap = s.Snapshot()
		return snap.State == want
	})
	return snap
}
