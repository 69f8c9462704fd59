// Package tutor wires the capture, canvas, transport, transcript, tool and
// grading components into one tutoring session lifecycle.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/sketchmentor/internal/canvas"
	"github.com/MrWong99/sketchmentor/internal/capture"
	"github.com/MrWong99/sketchmentor/internal/grading"
	"github.com/MrWong99/sketchmentor/internal/observe"
	"github.com/MrWong99/sketchmentor/internal/tools"
	"github.com/MrWong99/sketchmentor/internal/transcript"
	"github.com/MrWong99/sketchmentor/pkg/audio"
	"github.com/MrWong99/sketchmentor/pkg/live"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusError      Status = "error"
)

var (
	// ErrSessionActive is returned by Start while a session is connecting or
	// connected. At most one session exists at a time.
	ErrSessionActive = errors.New("tutor: a session is already active")

	// ErrGradingInFlight is returned by Grade while a previous grading
	// request has not finished.
	ErrGradingInFlight = errors.New("tutor: grading already in flight")
)

// Dialer opens live sessions. Implemented by [live.Client].
type Dialer interface {
	Connect(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error)
}

// Grader assesses a finished sketch. Implemented by [grading.Grader].
type Grader interface {
	Grade(ctx context.Context, boardJPEG []byte, history []transcript.Entry, rubric string) (grading.Report, error)
}

// Options carries the controller's collaborators and tuning knobs.
type Options struct {
	Dialer Dialer
	Source capture.Source
	Output audio.Output
	Board  *canvas.Board
	Grader Grader

	// Voice selects the mentor's prebuilt voice.
	Voice string

	// Rubric describes the exercise; empty means open-ended practice.
	Rubric string

	// PlaybackRate is the downlink sample rate in Hz. Defaults to 24000.
	PlaybackRate int

	// FrameSize is the uplink chunk size in samples. Defaults to
	// [capture.DefaultFrameSize].
	FrameSize int

	// SampleInterval is the visual frame period. Defaults to
	// [canvas.DefaultSampleInterval].
	SampleInterval time.Duration

	// JPEGQuality is the visual frame encode quality. Defaults to
	// [canvas.DefaultJPEGQuality].
	JPEGQuality int

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Controller owns the single tutoring session and its supporting loops. All
// exported methods are safe for concurrent use.
type Controller struct {
	opts       Options
	aggregator *transcript.Aggregator
	dispatcher *tools.Dispatcher

	mu            sync.Mutex
	status        Status
	sessionID     string
	session       live.SessionHandle
	scheduler     *audio.Scheduler
	cancel        context.CancelFunc
	loopDone      chan struct{}
	stopRequested bool
	lastErr       error
	gradeInFlight bool
	rubric        string
	lastReport    grading.Report
}

// New creates an idle controller.
func New(opts Options) *Controller {
	if opts.PlaybackRate <= 0 {
		opts.PlaybackRate = 24000
	}
	if opts.FrameSize <= 0 {
		opts.FrameSize = capture.DefaultFrameSize
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = canvas.DefaultSampleInterval
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = canvas.DefaultJPEGQuality
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		opts:       opts,
		aggregator: transcript.New(),
		dispatcher: tools.NewDispatcher(opts.Board, opts.Logger),
		status:     StatusIdle,
		rubric:     opts.Rubric,
	}
}

// Status returns the lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SessionID returns the identifier of the current or most recent session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// LastErr returns the error that moved the controller into [StatusError],
// or nil.
func (c *Controller) LastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// History returns the committed conversation so far. It survives session
// teardown so grading can read it afterwards.
func (c *Controller) History() []transcript.Entry {
	return c.aggregator.History()
}

// Partials returns the uncommitted transcript buffers for live display.
func (c *Controller) Partials() (student, mentor string) {
	return c.aggregator.Partials()
}

// Report returns the most recent grading result, or a zero report when
// nothing has been graded yet.
func (c *Controller) Report() grading.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReport
}

// Grading reports whether a grading request is currently in flight.
func (c *Controller) Grading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gradeInFlight
}

// Rubric returns the exercise description used for instructions and grading.
func (c *Controller) Rubric() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rubric
}

// SetRubric replaces the exercise description. The rubric feeds the system
// instruction sent at connect time, so it can only change while the
// controller is idle; otherwise [ErrSessionActive] is returned.
func (c *Controller) SetRubric(rubric string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusConnecting || c.status == StatusConnected {
		return ErrSessionActive
	}
	c.rubric = rubric
	return nil
}

// Start opens a tutoring session: microphone first so a missing device fails
// before any network traffic, then the live connection, then the uplink and
// event loops. Returns [ErrSessionActive] when a session already exists.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusConnecting || c.status == StatusConnected {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.status = StatusConnecting
	c.sessionID = ulid.Make().String()
	c.stopRequested = false
	c.lastErr = nil
	rubric := c.rubric
	logger := c.opts.Logger.With("session_id", c.sessionID)
	c.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "session.start")
	defer span.End()

	pipeline := capture.NewPipeline(c.opts.Source, c.sendAudioFrame,
		capture.WithFrameSize(c.opts.FrameSize),
		capture.WithLogger(logger),
	)
	if err := pipeline.Start(ctx); err != nil {
		c.fail(err)
		return err
	}

	session, err := c.opts.Dialer.Connect(ctx, live.SessionConfig{
		Instructions:        BuildInstructions(rubric),
		Voice:               c.opts.Voice,
		Tools:               []live.ToolDefinition{tools.HighlightToolDefinition()},
		InputTranscription:  true,
		OutputTranscription: true,
	})
	if err != nil {
		_ = c.opts.Source.Close()
		err = fmt.Errorf("tutor: connect: %w", err)
		c.fail(err)
		return err
	}

	sampler := canvas.NewSampler(c.opts.Board, c.sendVisualFrame,
		canvas.WithSampleInterval(c.opts.SampleInterval),
		canvas.WithJPEGQuality(c.opts.JPEGQuality),
		canvas.WithSamplerLogger(logger),
	)

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(sctx)

	c.mu.Lock()
	c.session = session
	c.scheduler = audio.NewScheduler(c.opts.Output, c.opts.PlaybackRate, 1)
	c.cancel = cancel
	c.loopDone = make(chan struct{})
	c.status = StatusConnected
	loopDone := c.loopDone
	c.mu.Unlock()

	c.opts.Metrics.ActiveSessions.Add(ctx, 1)
	logger.Info("session started", "voice", c.opts.Voice)

	g.Go(func() error { return pipeline.Run(gctx) })
	g.Go(func() error { return sampler.Run(gctx) })
	g.Go(func() error { return c.eventLoop(gctx, session) })

	go func() {
		err := g.Wait()
		close(loopDone)
		c.teardown(err, logger)
	}()
	return nil
}

// Stop ends the current session. The conversation history is kept. Stop on
// an idle controller is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil
	}
	c.stopRequested = true
	cancel := c.cancel
	session := c.session
	loopDone := c.loopDone
	c.mu.Unlock()

	cancel()
	_ = session.Close()
	<-loopDone
	return nil
}

// Grade assesses the current board and conversation. A successful grade ends
// any active session; a failure leaves it running so the student can retry.
// Returns [ErrGradingInFlight] when a grading request is already running.
func (c *Controller) Grade(ctx context.Context) (grading.Report, error) {
	c.mu.Lock()
	if c.gradeInFlight {
		c.mu.Unlock()
		return grading.Report{}, ErrGradingInFlight
	}
	c.gradeInFlight = true
	rubric := c.rubric
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.gradeInFlight = false
		c.mu.Unlock()
	}()

	ctx, span := observe.StartSpan(ctx, "session.grade")
	defer span.End()

	var boardJPEG []byte
	if c.opts.Board.Ready() {
		var err error
		boardJPEG, err = c.opts.Board.EncodeJPEG(c.opts.JPEGQuality)
		if err != nil {
			return grading.Report{}, fmt.Errorf("tutor: encode board: %w", err)
		}
	}

	start := time.Now()
	report, err := c.opts.Grader.Grade(ctx, boardJPEG, c.aggregator.History(), rubric)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.opts.Metrics.GradingDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("status", status)))
	if err != nil {
		return grading.Report{}, err
	}

	c.mu.Lock()
	c.lastReport = report
	c.mu.Unlock()

	if stopErr := c.Stop(); stopErr != nil {
		c.opts.Logger.Warn("stopping session after grading", "error", stopErr)
	}
	return report, nil
}

// ── Session internals ─────────────────────────────────────────────────────────

func (c *Controller) sendAudioFrame(frame []byte) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return errors.New("tutor: no session")
	}
	if err := session.SendAudio(frame); err != nil {
		return err
	}
	c.opts.Metrics.AudioFramesSent.Add(context.Background(), 1)
	return nil
}

func (c *Controller) sendVisualFrame(jpeg []byte) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return errors.New("tutor: no session")
	}
	if err := session.SendImage(jpeg); err != nil {
		return err
	}
	c.opts.Metrics.VisualFramesSent.Add(context.Background(), 1)
	return nil
}

// eventLoop consumes inbound events in arrival order. Event channel closure
// is clean only when Stop requested it.
func (c *Controller) eventLoop(ctx context.Context, session live.SessionHandle) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-session.Events():
			if !ok {
				if c.isStopRequested() {
					return nil
				}
				if err := session.Err(); err != nil {
					return fmt.Errorf("tutor: session failed: %w", err)
				}
				return errors.New("tutor: session closed unexpectedly")
			}
			switch e := ev.(type) {
			case live.ServerContentEvent:
				c.handleServerContent(ctx, e)
			case live.ToolCallEvent:
				c.handleToolCall(ctx, session, e)
			}
		}
	}
}

// handleServerContent applies one serverContent event. The interruption flag
// is handled before any audio in the same event: stale playback must be
// discarded before new chunks are scheduled.
func (c *Controller) handleServerContent(ctx context.Context, e live.ServerContentEvent) {
	if e.Interrupted {
		c.mu.Lock()
		scheduler := c.scheduler
		c.mu.Unlock()
		scheduler.Interrupt()
		c.aggregator.MarkInterrupted()
		c.opts.Metrics.Interruptions.Add(ctx, 1)
	}
	if len(e.Audio) > 0 {
		c.mu.Lock()
		scheduler := c.scheduler
		c.mu.Unlock()
		scheduler.Enqueue(e.Audio)
		c.opts.Metrics.AudioChunksReceived.Add(ctx, 1)
	}
	if e.InputTranscript != "" {
		c.aggregator.AppendStudent(e.InputTranscript)
	}
	if e.OutputTranscript != "" {
		c.aggregator.AppendMentor(e.OutputTranscript)
	}
	if e.TurnComplete {
		if committed := c.aggregator.CompleteTurn(); len(committed) > 0 {
			c.opts.Metrics.TurnsCompleted.Add(ctx, 1)
		}
	}
}

func (c *Controller) handleToolCall(ctx context.Context, session live.SessionHandle, e live.ToolCallEvent) {
	responses := c.dispatcher.Dispatch(e.Calls)
	for _, r := range responses {
		status := "ok"
		if _, failed := r.Response["error"]; failed {
			status = "error"
		}
		c.opts.Metrics.RecordToolCall(ctx, r.Name, status)
	}
	if err := session.SendToolResults(responses); err != nil {
		c.opts.Logger.Warn("sending tool results", "error", err)
	}
}

func (c *Controller) isStopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopRequested
}

// fail records a startup failure.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusError
	c.lastErr = err
}

// teardown releases session resources after the supervised loops exit. The
// loopDone channel is already closed by the caller, so a concurrent Stop
// cannot deadlock against the lock taken here.
func (c *Controller) teardown(err error, logger *slog.Logger) {
	c.mu.Lock()
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	session := c.session
	c.session = nil
	c.scheduler = nil
	c.cancel = nil
	clean := c.stopRequested || err == nil || errors.Is(err, context.Canceled)
	if clean {
		c.status = StatusIdle
		c.lastErr = nil
	} else {
		c.status = StatusError
		c.lastErr = err
	}
	c.mu.Unlock()

	if session != nil {
		_ = session.Close()
	}
	c.aggregator.ResetBuffers()
	c.opts.Metrics.ActiveSessions.Add(context.Background(), -1)

	if clean {
		logger.Info("session ended")
	} else {
		logger.Error("session failed", "error", err)
	}
}
