// Package playback runs the viewer side of an interactive lesson video: the
// quiz gate that pauses playback at the trigger and the chapter navigation
// that seeks between chapters.
package playback

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"math"
	"time"
	"video-chapters/constant"
	"video-chapters/dto"
	"video-chapters/toc"
)

var (
	ErrCheckTimeout   = errors.New("quiz completion check timed out")
	ErrSessionStopped = errors.New("playback session stopped")
)

// Player is the media element. Its methods are only called from the session
// goroutine.
type Player interface {
	CurrentTime() float64
	SetCurrentTime(t float64)
	Duration() float64
	Ready() bool
	Paused() bool
	Play()
	Pause()
}

// CompletionChecker asks the backend whether a viewer finished a quiz.
type CompletionChecker interface {
	GetQuizCompletion(ctx context.Context, quizID int64, viewerID uuid.UUID) (dto.QuizCompletion, error)
}

// QuizSurface shows the quiz. done must be called once the viewer closes or
// dismisses it.
type QuizSurface interface {
	Present(quizID int64, done func())
}

type Options struct {
	CountdownDelay time.Duration
	CheckTimeout   time.Duration
	SeekRetryDelay time.Duration
	// SeekTolerance is how far, in seconds, the player may land from a seek
	// target and still count as there.
	SeekTolerance float64
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CountdownDelay <= 0 {
		o.CountdownDelay = 3 * time.Second
	}
	if o.CheckTimeout <= 0 {
		o.CheckTimeout = 10 * time.Second
	}
	if o.SeekRetryDelay <= 0 {
		o.SeekRetryDelay = 300 * time.Millisecond
	}
	if o.SeekTolerance <= 0 {
		o.SeekTolerance = 0.5
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Config struct {
	Attachment dto.Attachment
	Chapters   []toc.Entry
	ViewerID   uuid.UUID

	Player   Player
	Checker  CompletionChecker
	Quiz     QuizSurface
	Notifier Notifier

	Options Options
}

// Snapshot is the observable state of a session.
type Snapshot struct {
	State         GateState
	HasGateFired  bool
	CurrentTime   float64
	Paused        bool
	ActiveChapter *toc.Entry
}

type pendingSeek struct {
	target  float64
	play    bool
	retried bool
	seq     int
}

// Session owns one viewing of an attachment. All state is touched by the
// goroutine running Run; inputs are queued onto it.
type Session struct {
	attachmentID int64
	trigger      *dto.Trigger
	viewerID     uuid.UUID
	player       Player
	checker      CompletionChecker
	quiz         QuizSurface
	notifier     Notifier
	opts         Options
	nav          *Navigator

	events chan func()
	done   chan struct{}
	final  Snapshot

	// loop state
	ctx      context.Context
	log      zerolog.Logger
	state    GateState
	checkSeq int
	inflight int
	seekSeq  int
	seek     *pendingSeek
	deferred *pendingSeek
}

func NewSession(cfg Config) *Session {
	s := &Session{
		attachmentID: cfg.Attachment.ID,
		viewerID:     cfg.ViewerID,
		player:       cfg.Player,
		checker:      cfg.Checker,
		quiz:         cfg.Quiz,
		notifier:     cfg.Notifier,
		opts:         cfg.Options.withDefaults(),
		nav:          NewNavigator(cfg.Chapters),
		events:       make(chan func(), 64),
		done:         make(chan struct{}),
		state:        Idle,
	}
	if s.notifier == nil {
		s.notifier = NotifierFunc(func(Notice) {})
	}
	if cfg.Attachment.Kind == constant.AttachmentKindInteractive && cfg.Attachment.Trigger != nil {
		t := *cfg.Attachment.Trigger
		s.trigger = &t
		s.state = Armed
	}
	return s
}

// Run processes inputs until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	s.log = zerolog.Ctx(ctx).With().Int64("attachment_id", s.attachmentID).Logger()
	s.log.Debug().Stringer("state", s.state).Msg("playback session started")
	defer func() {
		s.final = s.snapshot()
		close(s.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.events:
			fn()
		}
	}
}

func (s *Session) post(fn func()) bool {
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// after queues fn once d has elapsed.
func (s *Session) after(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { s.post(fn) })
}

// TimeAdvanced reports the playhead position from the player.
func (s *Session) TimeAdvanced(t float64) {
	s.post(func() { s.onTime(t) })
}

func (s *Session) BecameReady() {
	s.post(s.onReady)
}

// SeekSettled reports that the player finished a seek.
func (s *Session) SeekSettled() {
	s.post(s.onSeekSettled)
}

// QuizClosed reports that the quiz surface was closed or dismissed.
func (s *Session) QuizClosed() {
	s.post(s.onQuizClosed)
}

// SeekToChapter moves playback to the start of a chapter. It is refused while
// the gate holds playback.
func (s *Session) SeekToChapter(id int64) {
	s.post(func() { s.onSeekToChapter(id) })
}

// RetryCheck re-issues a completion check that failed.
func (s *Session) RetryCheck() {
	s.post(s.onRetryCheck)
}

func (s *Session) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !s.post(func() { reply <- s.snapshot() }) {
		return s.final
	}
	select {
	case snap := <-reply:
		return snap
	case <-s.done:
		return s.final
	}
}

// Markers returns chapter markers for the current video duration.
func (s *Session) Markers() []Marker {
	reply := make(chan []Marker, 1)
	if !s.post(func() { reply <- s.nav.Markers(s.player.Duration()) }) {
		return nil
	}
	select {
	case m := <-reply:
		return m
	case <-s.done:
		return nil
	}
}

func (s *Session) Chapters() []toc.Entry {
	return s.nav.Chapters()
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		State:        s.state,
		HasGateFired: s.state.Fired(),
		CurrentTime:  s.player.CurrentTime(),
		Paused:       s.player.Paused(),
	}
	if e, ok := s.nav.Active(snap.CurrentTime); ok {
		snap.ActiveChapter = &e
	}
	return snap
}

func (s *Session) transition(to GateState) bool {
	if !canTransition(s.state, to) {
		s.log.Error().Stringer("from", s.state).Stringer("to", to).Msg("illegal gate transition")
		return false
	}
	s.log.Debug().Stringer("from", s.state).Stringer("to", to).Msg("gate transition")
	s.state = to
	return true
}

func (s *Session) onTime(t float64) {
	if active, ok, changed := s.nav.Update(t); changed {
		n := Notice{Kind: NoticeChapterChanged}
		if ok {
			n.Chapter = &active
			n.Message = active.Name
		}
		s.notifier.Notify(n)
	}

	if s.state != Armed || t < float64(s.trigger.Timestamp) {
		return
	}
	if !s.transition(Paused) {
		return
	}
	s.player.Pause()
	s.startCheck()
}

func (s *Session) startCheck() {
	s.checkSeq++
	seq := s.checkSeq
	s.inflight = seq
	quizID := s.trigger.QuizID

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.CheckTimeout)
	go func() {
		defer cancel()
		res, err := s.checker.GetQuizCompletion(ctx, quizID, s.viewerID)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(ErrCheckTimeout, err)
		}
		s.post(func() { s.onCheck(seq, res, err) })
	}()
	s.after(s.opts.CheckTimeout, func() { s.onCheck(seq, dto.QuizCompletion{}, ErrCheckTimeout) })
}

func (s *Session) onCheck(seq int, res dto.QuizCompletion, err error) {
	if seq != s.inflight || s.state != Paused {
		return
	}
	s.inflight = 0

	switch {
	case err != nil:
		s.log.Warn().Err(err).Int64("quiz_id", s.trigger.QuizID).Msg("quiz completion check failed")
		s.notifier.Notify(Notice{Kind: NoticeCheckFailed, Message: "could not check the quiz status, try again"})
	case res.Completed:
		s.transition(Resumed)
		s.notifier.Notify(Notice{Kind: NoticeAlreadyCompleted, Message: completedMessage(res), Score: res.Score, Total: res.Total})
		s.seekTo(float64(s.trigger.Timestamp), true)
	case res.DeadlinePassed(s.opts.Now()):
		s.transition(Blocked)
		s.notifier.Notify(Notice{Kind: NoticeDeadlinePassed, Message: "the quiz deadline has passed"})
	default:
		s.transition(Countdown)
		s.notifier.Notify(Notice{Kind: NoticeCountdown, Message: fmt.Sprintf("quiz starts in %s", s.opts.CountdownDelay)})
		s.after(s.opts.CountdownDelay, s.onCountdownDone)
	}
}

func completedMessage(res dto.QuizCompletion) string {
	if res.Score != nil && res.Total != nil {
		return fmt.Sprintf("quiz already completed: %d/%d", *res.Score, *res.Total)
	}
	return "quiz already completed"
}

func (s *Session) onCountdownDone() {
	if s.state != Countdown || !s.transition(QuizPresented) {
		return
	}
	s.quiz.Present(s.trigger.QuizID, func() { go s.QuizClosed() })
}

func (s *Session) onQuizClosed() {
	if s.state != QuizPresented || !s.transition(Resumed) {
		return
	}
	s.seekTo(float64(s.trigger.Timestamp), true)
}

func (s *Session) onRetryCheck() {
	if s.state != Paused || s.inflight != 0 {
		return
	}
	s.startCheck()
}

func (s *Session) onSeekToChapter(id int64) {
	if s.state.Holding() {
		s.notifier.Notify(Notice{Kind: NoticeSeekRefused, Message: "finish the quiz before changing chapters"})
		return
	}
	chapter, ok := s.nav.Chapter(id)
	if !ok {
		s.log.Warn().Int64("entry_id", id).Msg("seek to unknown chapter")
		return
	}
	s.seekTo(float64(chapter.Start), !s.player.Paused())
}

// seekTo moves the playhead to target, waiting for the player to be ready
// and retrying once if the first assignment does not stick.
func (s *Session) seekTo(target float64, play bool) {
	s.seekSeq++
	p := &pendingSeek{target: target, play: play, seq: s.seekSeq}
	s.seek = nil
	if !s.player.Ready() {
		s.deferred = p
		return
	}
	s.deferred = nil
	s.applySeek(p)
}

func (s *Session) applySeek(p *pendingSeek) {
	s.player.SetCurrentTime(p.target)
	if s.landed(p) {
		s.finishSeek(p)
		return
	}
	s.seek = p
	s.after(s.opts.SeekRetryDelay, func() { s.onSeekRetry(p.seq) })
}

func (s *Session) landed(p *pendingSeek) bool {
	return math.Abs(s.player.CurrentTime()-p.target) <= s.opts.SeekTolerance
}

func (s *Session) onSeekRetry(seq int) {
	p := s.seek
	if p == nil || p.seq != seq {
		return
	}
	if !s.landed(p) && !p.retried {
		p.retried = true
		s.log.Debug().Float64("target", p.target).Float64("at", s.player.CurrentTime()).Msg("seek did not stick, retrying")
		s.player.SetCurrentTime(p.target)
	}
	s.finishSeek(p)
}

func (s *Session) onSeekSettled() {
	if p := s.seek; p != nil && s.landed(p) {
		s.finishSeek(p)
	}
}

func (s *Session) onReady() {
	if p := s.deferred; p != nil {
		s.deferred = nil
		s.applySeek(p)
	}
}

func (s *Session) finishSeek(p *pendingSeek) {
	if s.seek == p {
		s.seek = nil
	}
	if p.play && !s.state.Holding() {
		s.player.Play()
	}
}
