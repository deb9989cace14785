package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Config configures a Session.
type Config struct {
	Chat       ChatBackend
	Recognizer Recognizer // utterance capture while listening
	Interrupts Recognizer // barge-in detection, active only while speaking
	Speaker    Speaker
	Logger     *slog.Logger

	ResumeDelay      time.Duration // pause after playback before listening again
	InterruptDelay   time.Duration // pause after a barge-in before listening
	MuteDelay        time.Duration // pause after mute cancels playback
	RetryDelay       time.Duration // pause before restarting a failed recognizer
	WatchdogInterval time.Duration // stuck-session check period
	MaxRetries       int           // recognizer restart budget

	// OnStateChange is invoked from the Run goroutine on every transition.
	OnStateChange func(State)
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdMute
	cmdInterrupt
)

type command struct {
	kind commandKind
	mute bool
}

type replyResult struct {
	turnID int
	text   string
	err    error
}

type spokenResult struct {
	turnID int
	err    error
}

// Session drives the voice conversation state machine. All mutable state is
// owned by the Run goroutine; callers interact through the command methods.
type Session struct {
	cfg  Config
	cmds chan command
	done chan struct{}

	state     State
	stateView atomic.Value
	active    bool
	muted     bool
	retries   int

	turnID      int
	turnCancel  context.CancelFunc
	speakCancel context.CancelFunc

	listening  bool
	interrupts bool

	replyCh  chan replyResult
	spokenCh chan spokenResult

	resumeTimer   *time.Timer
	resumeSet     bool
	watchdogTimer *time.Timer
	watchdogSet   bool
	retryTimer    *time.Timer
	retrySet      bool
}

// NewSession creates a Session with defaulted timings.
func NewSession(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ResumeDelay <= 0 {
		cfg.ResumeDelay = 800 * time.Millisecond
	}
	if cfg.InterruptDelay <= 0 {
		cfg.InterruptDelay = 500 * time.Millisecond
	}
	if cfg.MuteDelay <= 0 {
		cfg.MuteDelay = 300 * time.Millisecond
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	s := &Session{
		cfg:      cfg,
		cmds:     make(chan command, 16),
		done:     make(chan struct{}),
		state:    StateIdle,
		replyCh:  make(chan replyResult, 4),
		spokenCh: make(chan spokenResult, 4),
	}
	s.stateView.Store(StateIdle)
	return s
}

// Start activates the session: idle becomes listening.
func (s *Session) Start() { s.send(command{kind: cmdStart}) }

// Stop deactivates the session from any state.
func (s *Session) Stop() { s.send(command{kind: cmdStop}) }

// SetMuted toggles the microphone. Muting during playback cancels it.
func (s *Session) SetMuted(muted bool) { s.send(command{kind: cmdMute, mute: muted}) }

// Interrupt manually cuts off playback, as if the user barged in.
func (s *Session) Interrupt() { s.send(command{kind: cmdInterrupt}) }

// State returns the current phase. Safe from any goroutine.
func (s *Session) State() State { return s.stateView.Load().(State) }

func (s *Session) send(cmd command) {
	select {
	case s.cmds <- cmd:
	case <-s.done:
	}
}

// Run executes the event loop until ctx is canceled or recognition fails
// terminally.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.deactivate()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-s.cmds:
			s.handleCommand(ctx, cmd)

		case res := <-s.recResults():
			s.retries = 0
			if s.muted || s.state != StateListening || !res.IsFinal {
				continue
			}
			utterance := strings.TrimSpace(res.Text)
			if utterance == "" {
				continue
			}
			s.beginTurn(ctx, utterance)

		case rerr := <-s.recErrors():
			if rerr.Terminal() {
				s.cfg.Logger.Error("recognition permanently unavailable", "code", rerr.Code)
				return rerr
			}
			s.cfg.Logger.Warn("recognizer error, scheduling restart", "code", rerr.Code, "message", rerr.Message)
			s.stopListening()
			s.setState(StateIdle)
			if s.retries >= s.cfg.MaxRetries {
				return fmt.Errorf("recognizer restart budget exhausted: %w", rerr)
			}
			s.retries++
			resetTimer(&s.retryTimer, &s.retrySet, s.cfg.RetryDelay)

		case res := <-s.intResults():
			if s.state != StateSpeaking {
				continue
			}
			if isBargeIn(res) {
				s.cfg.Logger.Info("barge-in detected", "text", res.Text, "final", res.IsFinal, "confidence", res.Confidence)
				// The captured transcript is the next utterance, not noise:
				// cancel playback and feed it straight into a new turn.
				s.cancelTurn()
				s.cancelSpeak()
				s.stopInterrupts()
				s.beginTurn(ctx, strings.TrimSpace(res.Text))
			}

		case ierr := <-s.intErrors():
			s.cfg.Logger.Debug("interrupt detector error", "code", ierr.Code)

		case r := <-s.replyCh:
			if r.turnID != s.turnID {
				continue
			}
			s.cancelTurn()
			if r.err != nil {
				if errors.Is(r.err, context.Canceled) {
					continue
				}
				s.cfg.Logger.Error("reply failed", "error", r.err)
				s.setState(StateIdle)
				resetTimer(&s.resumeTimer, &s.resumeSet, s.cfg.RetryDelay)
				continue
			}
			s.beginSpeaking(ctx, r.text)

		case sp := <-s.spokenCh:
			if sp.turnID != s.turnID {
				continue
			}
			s.cancelSpeak()
			s.stopInterrupts()
			if sp.err != nil && !errors.Is(sp.err, context.Canceled) {
				s.cfg.Logger.Warn("playback failed", "error", sp.err)
			}
			s.setState(StateIdle)
			if s.active {
				resetTimer(&s.resumeTimer, &s.resumeSet, s.cfg.ResumeDelay)
			}

		case <-timerC(s.resumeTimer, s.resumeSet):
			s.resumeSet = false
			if s.active && !s.muted && s.state == StateIdle {
				s.startListening(ctx)
			}

		case <-timerC(s.watchdogTimer, s.watchdogSet):
			s.watchdogSet = false
			if !s.active {
				continue
			}
			if s.state == StateIdle && !s.muted {
				s.cfg.Logger.Warn("session stalled in idle, restarting recognition")
				s.startListening(ctx)
			}
			resetTimer(&s.watchdogTimer, &s.watchdogSet, s.cfg.WatchdogInterval)

		case <-timerC(s.retryTimer, s.retrySet):
			s.retrySet = false
			if s.active && !s.muted {
				s.startListening(ctx)
			}
		}
	}
}

func (s *Session) handleCommand(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdStart:
		if s.active {
			return
		}
		s.active = true
		s.retries = 0
		s.startListening(ctx)
		resetTimer(&s.watchdogTimer, &s.watchdogSet, s.cfg.WatchdogInterval)

	case cmdStop:
		s.deactivate()

	case cmdMute:
		if cmd.mute == s.muted {
			return
		}
		s.muted = cmd.mute
		if s.muted {
			if s.state == StateSpeaking {
				s.cutoff()
				resetTimer(&s.resumeTimer, &s.resumeSet, s.cfg.MuteDelay)
			}
			return
		}
		if s.active && s.state == StateIdle {
			s.startListening(ctx)
		}

	case cmdInterrupt:
		if s.state != StateSpeaking {
			return
		}
		s.cutoff()
		resetTimer(&s.resumeTimer, &s.resumeSet, s.cfg.InterruptDelay)
	}
}

// isBargeIn applies the interrupt threshold: enough speech, and either a
// final segment or reasonable confidence.
func isBargeIn(res RecognitionResult) bool {
	text := strings.TrimSpace(res.Text)
	return len([]rune(text)) > 2 && (res.IsFinal || res.Confidence > 0.3)
}

// cutoff cancels the in-flight turn and playback and invalidates their turn
// id so late results are discarded.
func (s *Session) cutoff() {
	s.turnID++
	s.cancelTurn()
	s.cancelSpeak()
	s.stopInterrupts()
	s.setState(StateIdle)
}

func (s *Session) beginTurn(ctx context.Context, utterance string) {
	s.stopListening()
	stopTimer(s.resumeTimer, &s.resumeSet)
	s.turnID++
	id := s.turnID
	s.setState(StateThinking)

	tctx, cancel := context.WithCancel(ctx)
	s.turnCancel = cancel
	go func() {
		text, err := s.cfg.Chat.Reply(tctx, utterance)
		select {
		case s.replyCh <- replyResult{turnID: id, text: text, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) beginSpeaking(ctx context.Context, text string) {
	id := s.turnID
	s.setState(StateSpeaking)
	s.startInterrupts(ctx)

	sctx, cancel := context.WithCancel(ctx)
	s.speakCancel = cancel
	go func() {
		err := s.cfg.Speaker.Speak(sctx, text)
		select {
		case s.spokenCh <- spokenResult{turnID: id, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) startListening(ctx context.Context) {
	if s.listening {
		s.setState(StateListening)
		return
	}
	if err := s.cfg.Recognizer.Start(ctx); err != nil {
		s.cfg.Logger.Warn("recognizer start failed, scheduling restart", "error", err)
		s.retries++
		resetTimer(&s.retryTimer, &s.retrySet, s.cfg.RetryDelay)
		return
	}
	s.listening = true
	s.setState(StateListening)
}

func (s *Session) stopListening() {
	if !s.listening {
		return
	}
	s.cfg.Recognizer.Stop()
	s.listening = false
}

func (s *Session) startInterrupts(ctx context.Context) {
	if s.interrupts {
		return
	}
	if err := s.cfg.Interrupts.Start(ctx); err != nil {
		s.cfg.Logger.Debug("interrupt detector unavailable", "error", err)
		return
	}
	s.interrupts = true
}

func (s *Session) stopInterrupts() {
	if !s.interrupts {
		return
	}
	s.cfg.Interrupts.Stop()
	s.interrupts = false
}

func (s *Session) cancelTurn() {
	if s.turnCancel != nil {
		s.turnCancel()
		s.turnCancel = nil
	}
}

func (s *Session) cancelSpeak() {
	if s.speakCancel != nil {
		s.speakCancel()
		s.speakCancel = nil
	}
}

func (s *Session) deactivate() {
	s.active = false
	s.turnID++
	s.cancelTurn()
	s.cancelSpeak()
	s.stopListening()
	s.stopInterrupts()
	stopTimer(s.resumeTimer, &s.resumeSet)
	stopTimer(s.watchdogTimer, &s.watchdogSet)
	stopTimer(s.retryTimer, &s.retrySet)
	s.setState(StateIdle)
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.stateView.Store(st)
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(st)
	}
}

// Nil-channel helpers: inactive sources disappear from the select.

func (s *Session) recResults() <-chan RecognitionResult {
	if !s.listening {
		return nil
	}
	return s.cfg.Recognizer.Results()
}

func (s *Session) recErrors() <-chan *RecognitionError {
	if !s.listening {
		return nil
	}
	return s.cfg.Recognizer.Errors()
}

func (s *Session) intResults() <-chan RecognitionResult {
	if !s.interrupts {
		return nil
	}
	return s.cfg.Interrupts.Results()
}

func (s *Session) intErrors() <-chan *RecognitionError {
	if !s.interrupts {
		return nil
	}
	return s.cfg.Interrupts.Errors()
}

func stopTimer(t *time.Timer, set *bool) {
	if t != nil {
		t.Stop()
	}
	*set = false
}

func resetTimer(t **time.Timer, set *bool, d time.Duration) {
	if *t == nil {
		*t = time.NewTimer(d)
		*set = true
		return
	}
	if !(*t).Stop() {
		select {
		case <-(*t).C:
		default:
		}
	}
	(*t).Reset(d)
	*set = true
}

func timerC(t *time.Timer, set bool) <-chan time.Time {
	if t == nil || !set {
		return nil
	}
	return t.C
}
