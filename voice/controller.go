package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"souschef/models"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// errAudioMode marks a rejected audio mode transition. Unlike remote failures
// it is not recoverable within the session; the loop ends and the controller
// goes idle.
var errAudioMode = errors.New("audio mode change rejected")

type State string

const (
	StateIdle       State = "idle"
	StateGreeting   State = "greeting"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
)

const (
	greetingTemplate = "Hi! I'm here to help you cook %s. Ask me anything about the recipe!"
	apologyLine      = "Sorry, I couldn't understand that. Please try again."
)

// Recording is one in-flight audio capture owned by the session.
type Recording interface {
	Done() <-chan struct{}
	Stop() ([]byte, error)
	Discard()
}

type Recorder interface {
	Start() (Recording, error)
}

type Player interface {
	Play(ctx context.Context, audio []byte) error
	Cancel()
}

type ModeController interface {
	SetPlaybackMode() error
	SetRecordingMode() error
}

type Bridge interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
	Converse(ctx context.Context, recipe models.RecipeContext, history []models.RoleMsg, userMsg string) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Controller drives the voice conversation loop:
// idle -> greeting -> listening -> processing -> speaking -> listening -> ... -> idle.
// One session goroutine owns the loop, so transitions are sequential by
// construction; Toggle and FinishListening only flip flags and cancel work.
type Controller struct {
	logger   *slog.Logger
	modes    ModeController
	recorder Recorder
	player   Player
	bridge   Bridge

	mu       sync.Mutex
	gen      uint64 // session generation; fences callbacks from stopped sessions
	state    State
	active   bool
	history  []models.RoleMsg
	recipe   models.RecipeContext
	finishCh     chan struct{}
	cancel       context.CancelFunc
	onChange     func()
	onSessionEnd func(models.RecipeContext, []models.RoleMsg)

	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewController(logger *slog.Logger, modes ModeController, recorder Recorder, player Player, br Bridge) *Controller {
	tokenizer, _ := english.NewSentenceTokenizer(nil)
	return &Controller{
		logger:    logger,
		modes:     modes,
		recorder:  recorder,
		player:    player,
		bridge:    br,
		state:     StateIdle,
		tokenizer: tokenizer,
	}
}

// SetOnChange registers a callback fired after every state or history change.
// The UI uses it to redraw; it must not call back into the controller.
func (c *Controller) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// SetOnSessionEnd registers a callback fired once per session when it ends,
// whether the user stopped it or the loop gave up. Receives the recipe the
// session was anchored to and the final transcript.
func (c *Controller) SetOnSessionEnd(fn func(models.RecipeContext, []models.RoleMsg)) {
	c.mu.Lock()
	c.onSessionEnd = fn
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// History returns a copy of the session transcript so far.
func (c *Controller) History() []models.RoleMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.RoleMsg{}, c.history...)
}

// Recipe returns the context the current (or last) session was anchored to.
func (c *Controller) Recipe() models.RecipeContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recipe
}

// Toggle starts a session over the given recipe, or stops the running one.
func (c *Controller) Toggle(recipe models.RecipeContext) {
	c.mu.Lock()
	if c.active {
		endedRecipe, endedHistory := c.stopLocked()
		c.mu.Unlock()
		c.player.Cancel()
		if err := c.modes.SetPlaybackMode(); err != nil {
			c.logger.Error("failed to restore playback mode", "error", err)
		}
		c.notify()
		c.emitSessionEnd(endedRecipe, endedHistory)
		return
	}
	c.gen++
	g := c.gen
	c.active = true
	c.state = StateGreeting
	c.history = nil
	c.recipe = recipe
	c.finishCh = make(chan struct{}, 1)
	finishCh := c.finishCh
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()
	c.notify()
	go c.run(ctx, g, finishCh)
}

func (c *Controller) stopLocked() (models.RecipeContext, []models.RoleMsg) {
	c.active = false
	c.state = StateIdle
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return c.recipe, append([]models.RoleMsg{}, c.history...)
}

func (c *Controller) emitSessionEnd(recipe models.RecipeContext, history []models.RoleMsg) {
	c.mu.Lock()
	fn := c.onSessionEnd
	c.mu.Unlock()
	if fn != nil {
		fn(recipe, history)
	}
}

// FinishListening forces the current recording to stop early. It is a no-op
// in any state but listening.
func (c *Controller) FinishListening() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.state != StateListening {
		return
	}
	select {
	case c.finishCh <- struct{}{}:
	default:
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// setState moves the session to s unless the session was stopped or replaced
// in the meantime; resumption points never resurrect a stopped session.
func (c *Controller) setState(g uint64, s State) bool {
	c.mu.Lock()
	if g != c.gen || !c.active {
		c.mu.Unlock()
		return false
	}
	c.state = s
	c.mu.Unlock()
	c.notify()
	return true
}

func (c *Controller) appendMessage(g uint64, role, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	c.mu.Lock()
	if g != c.gen || !c.active {
		c.mu.Unlock()
		return
	}
	c.history = append(c.history, models.RoleMsg{Role: role, Content: content})
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) sessionAlive(g uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return g == c.gen && c.active
}

// finish puts the session back to idle; used for unrecoverable failures
// (mic permission, audio mode) where the loop cannot proceed.
func (c *Controller) finish(g uint64) {
	var (
		ended        bool
		endedRecipe  models.RecipeContext
		endedHistory []models.RoleMsg
	)
	c.mu.Lock()
	if g == c.gen && c.active {
		endedRecipe, endedHistory = c.stopLocked()
		ended = true
	}
	c.mu.Unlock()
	if err := c.modes.SetPlaybackMode(); err != nil {
		c.logger.Error("failed to restore playback mode", "error", err)
	}
	c.notify()
	if ended {
		c.emitSessionEnd(endedRecipe, endedHistory)
	}
}

func (c *Controller) run(ctx context.Context, g uint64, finishCh chan struct{}) {
	defer c.finish(g)
	recipe := c.Recipe()
	greeting := fmt.Sprintf(greetingTemplate, recipe.Title)
	if err := c.speak(ctx, g, greeting); err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("failed to speak greeting", "error", err)
		if errors.Is(err, errAudioMode) {
			return
		}
	}
	c.appendMessage(g, "assistant", greeting)
	for c.sessionAlive(g) && ctx.Err() == nil {
		if !c.listenAndRespond(ctx, g, recipe, finishCh) {
			return
		}
	}
}

// listenAndRespond runs one turn: record, transcribe, converse, speak.
// It returns false when the session cannot continue.
func (c *Controller) listenAndRespond(ctx context.Context, g uint64, recipe models.RecipeContext, finishCh chan struct{}) bool {
	if !c.setState(g, StateListening) {
		return false
	}
	// a finish signal that raced the previous turn's auto-stop must not cut
	// this turn short
	select {
	case <-finishCh:
	default:
	}
	if err := c.modes.SetRecordingMode(); err != nil {
		c.logger.Error("failed to enter recording mode", "error", err)
		return false
	}
	// the active check and Start share the lock so a Toggle stop that has
	// already returned can never be followed by a fresh recording
	c.mu.Lock()
	if g != c.gen || !c.active {
		c.mu.Unlock()
		return false
	}
	rec, err := c.recorder.Start()
	c.mu.Unlock()
	if err != nil {
		// mic permission or device failure: abandoned start, no auto-retry
		c.logger.Error("failed to start recording", "error", err)
		return false
	}
	select {
	case <-ctx.Done():
		rec.Discard()
		return false
	case <-finishCh:
	case <-rec.Done():
	}
	if !c.setState(g, StateProcessing) {
		rec.Discard()
		return false
	}
	wav, err := rec.Stop()
	if err != nil {
		c.logger.Error("failed to finish recording", "error", err)
		return c.apologize(ctx, g)
	}
	transcript, err := c.bridge.Transcribe(ctx, wav)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.logger.Error("transcription failed", "error", err)
		return c.apologize(ctx, g)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		// silence is not an error; just listen again
		return true
	}
	// the wire call sees the full history with this transcript as the final
	// user entry; local history is committed only once the turn succeeds
	reply, err := c.bridge.Converse(ctx, recipe, c.History(), transcript)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.logger.Error("conversation turn failed", "error", err)
		return c.apologize(ctx, g)
	}
	c.appendMessage(g, "user", transcript)
	c.appendMessage(g, "assistant", reply)
	if err := c.speak(ctx, g, reply); err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.logger.Error("failed to speak reply", "error", err)
		if errors.Is(err, errAudioMode) {
			return false
		}
		return c.apologize(ctx, g)
	}
	return true
}

// speak synthesizes and plays text sentence by sentence, re-checking the
// session between sentences so a stop lands promptly mid-reply.
func (c *Controller) speak(ctx context.Context, g uint64, text string) error {
	if !c.setState(g, StateSpeaking) {
		return nil
	}
	if err := c.modes.SetPlaybackMode(); err != nil {
		return fmt.Errorf("%w: %v", errAudioMode, err)
	}
	for _, sentence := range c.splitSentences(text) {
		if !c.sessionAlive(g) || ctx.Err() != nil {
			return nil
		}
		audio, err := c.bridge.Synthesize(ctx, sentence)
		if err != nil {
			return fmt.Errorf("synthesis failed: %w", err)
		}
		if !c.sessionAlive(g) {
			return nil
		}
		if err := c.player.Play(ctx, audio); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("playback failed: %w", err)
		}
	}
	return nil
}

func (c *Controller) splitSentences(text string) []string {
	if c.tokenizer == nil {
		return []string{text}
	}
	parts := c.tokenizer.Tokenize(text)
	resp := make([]string, 0, len(parts))
	for _, s := range parts {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed != "" {
			resp = append(resp, trimmed)
		}
	}
	if len(resp) == 0 {
		return nil
	}
	return resp
}

// apologize speaks the fixed recovery line; the failed exchange never reaches
// history and never surfaces to the UI. Returns false when the session cannot
// continue (stopped, or the playback path itself is gone).
func (c *Controller) apologize(ctx context.Context, g uint64) bool {
	if !c.sessionAlive(g) {
		return false
	}
	if err := c.speak(ctx, g, apologyLine); err != nil {
		c.logger.Error("failed to speak apology", "error", err)
		if errors.Is(err, errAudioMode) {
			return false
		}
	}
	return true
}
