// Package conversation sequences the text and image stages of each user
// submission and owns the resulting message list.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/diogo/muralguide/internal/directive"
	apierrors "github.com/diogo/muralguide/internal/errors"
	"github.com/diogo/muralguide/internal/models"
)

// Submission rejections. None of them change the conversation.
var (
	ErrEmptyInput = errors.New("conversation: input is empty")
	ErrBusy       = errors.New("conversation: a submission is already in flight")
	ErrClosed     = errors.New("conversation: closed")
)

// TextService answers a user message with the guide's reply.
type TextService interface {
	Generate(ctx context.Context, userText string) (string, error)
}

// ImageService turns an image prompt into an image reference (URL or data URI).
type ImageService interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TextFunc adapts a function to TextService.
type TextFunc func(ctx context.Context, userText string) (string, error)

// Generate calls f.
func (f TextFunc) Generate(ctx context.Context, userText string) (string, error) {
	return f(ctx, userText)
}

// ImageFunc adapts a function to ImageService.
type ImageFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f ImageFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Conversation is the message list of one chat plus its in-flight flag.
// It accepts one submission at a time; all methods are safe for concurrent use.
type Conversation struct {
	text     TextService
	image    ImageService
	logger   *zap.SugaredLogger
	now      func() time.Time
	greeting string

	mu       sync.Mutex
	messages []models.Message
	index    map[models.MessageID]int
	nextID   models.MessageID
	inFlight bool
	stage    Stage
	closed   bool
	subs     map[int]chan models.Snapshot
	nextSub  int
}

// Option configures a Conversation
type Option func(*Conversation)

// WithLogger sets the logger used for stage transitions
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Conversation) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithGreeting replaces the synthetic greeting. An empty greeting seeds nothing.
func WithGreeting(text string) Option {
	return func(c *Conversation) {
		c.greeting = text
	}
}

// WithClock sets the time source for message timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a conversation seeded with the guide's greeting.
func New(text TextService, image ImageService, opts ...Option) (*Conversation, error) {
	if text == nil {
		return nil, fmt.Errorf("conversation: text service is required")
	}
	if image == nil {
		return nil, fmt.Errorf("conversation: image service is required")
	}

	c := &Conversation{
		text:     text,
		image:    image,
		logger:   zap.NewNop().Sugar(),
		now:      time.Now,
		greeting: models.GreetingText,
		index:    make(map[models.MessageID]int),
		nextID:   1,
		stage:    StageIdle,
		subs:     make(map[int]chan models.Snapshot),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.greeting != "" {
		c.appendLocked(models.Message{Role: models.RoleModel, Text: c.greeting})
	}

	return c, nil
}

// Submit starts processing text. It returns ErrEmptyInput for blank input,
// ErrBusy while another submission is in flight and ErrClosed after Close;
// callers keep their input buffer on any error. The returned channel is
// closed once the in-flight flag has been cleared.
//
// ctx only carries values to the services: the stages are always awaited and
// are not cancelled when ctx is.
func (c *Conversation) Submit(ctx context.Context, text string) (<-chan struct{}, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrBusy
	}

	id := c.appendLocked(models.Message{Role: models.RoleUser, Text: trimmed})
	c.inFlight = true
	c.stage = StageTextRequested
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Infow("submission accepted", "message_id", id, "chars", len(trimmed))

	done := make(chan struct{})
	go c.run(context.WithoutCancel(ctx), trimmed, done)
	return done, nil
}

// SubmitAndWait submits text and blocks until the submission completes or
// ctx is done. The submission itself keeps running when ctx ends first.
func (c *Conversation) SubmitAndWait(ctx context.Context, text string) (models.Snapshot, error) {
	done, err := c.Submit(ctx, text)
	if err != nil {
		return c.Snapshot(), err
	}
	select {
	case <-done:
		return c.Snapshot(), nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

func (c *Conversation) run(ctx context.Context, userText string, done chan<- struct{}) {
	defer close(done)

	reply, err := callService(func() (string, error) { return c.text.Generate(ctx, userText) })
	if err != nil {
		c.textFailed(err)
		return
	}

	parsed := directive.Parse(reply)
	id, wantImage := c.textSucceeded(parsed)
	if !wantImage {
		return
	}

	ref, err := callService(func() (string, error) { return c.image.Generate(ctx, parsed.ImagePrompt) })
	if err == nil && strings.TrimSpace(ref) == "" {
		err = apierrors.ErrNoContent
	}
	if err != nil {
		c.imageFailed(id, err)
		return
	}
	c.imageSucceeded(id, ref)
}

// callService runs a service call, turning a panic into an error so the
// in-flight flag is still cleared.
func callService(call func() (string, error)) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("service panic: %v", r)
		}
	}()
	return call()
}

func (c *Conversation) textFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false
	c.stage = StageTextFailed
	if c.closed {
		return
	}

	detail := apierrors.Detail(err)
	id := c.appendLocked(models.Message{
		Role:  models.RoleModel,
		Text:  models.ApologyText,
		Error: detail,
	})
	c.publishLocked()

	c.logger.Warnw("text stage failed", "message_id", id, "error", detail)
}

// textSucceeded appends the reply and reports whether the image stage runs.
func (c *Conversation) textSucceeded(parsed directive.Result) (models.MessageID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.inFlight = false
		c.stage = StageTextSucceeded
		return 0, false
	}

	id := c.appendLocked(models.Message{
		Role:         models.RoleModel,
		Text:         parsed.Text,
		ImagePending: parsed.HasImage,
	})

	if parsed.HasImage {
		c.stage = StageImageRequested
		c.logger.Infow("image stage requested", "message_id", id, "prompt", parsed.ImagePrompt)
	} else {
		c.inFlight = false
		c.stage = StageTextSucceeded
		c.logger.Infow("text stage succeeded", "message_id", id)
	}
	c.publishLocked()

	return id, parsed.HasImage
}

func (c *Conversation) imageSucceeded(id models.MessageID, ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false
	c.stage = StageImageSucceeded

	msg := c.pendingLocked(id)
	if msg == nil {
		c.publishLocked()
		return
	}
	msg.ImageRef = ref
	msg.ImagePending = false
	msg.Error = ""
	c.publishLocked()

	c.logger.Infow("image stage succeeded", "message_id", id)
}

func (c *Conversation) imageFailed(id models.MessageID, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false
	c.stage = StageImageFailed

	msg := c.pendingLocked(id)
	if msg == nil {
		c.publishLocked()
		return
	}
	detail := apierrors.DetailOr(err, apierrors.UnknownImageDetail)
	msg.Error = detail
	msg.ImagePending = false
	msg.ImageRef = ""
	c.publishLocked()

	c.logger.Warnw("image stage failed", "message_id", id, "error", detail)
}

// pendingLocked returns the message awaiting its image, or nil when the
// conversation is closed or the message was already resolved.
func (c *Conversation) pendingLocked(id models.MessageID) *models.Message {
	if c.closed {
		return nil
	}
	i, ok := c.index[id]
	if !ok || !c.messages[i].ImagePending {
		c.logger.Debugw("ignoring image result", "message_id", id)
		return nil
	}
	return &c.messages[i]
}

func (c *Conversation) appendLocked(msg models.Message) models.MessageID {
	msg.ID = c.nextID
	c.nextID++
	msg.CreatedAt = c.now()
	c.index[msg.ID] = len(c.messages)
	c.messages = append(c.messages, msg)
	return msg.ID
}

// Snapshot returns a copy of the message list and the in-flight flag.
func (c *Conversation) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Conversation) snapshotLocked() models.Snapshot {
	msgs := make([]models.Message, len(c.messages))
	copy(msgs, c.messages)
	return models.Snapshot{Messages: msgs, InFlight: c.inFlight}
}

// InFlight reports whether a submission is being processed.
func (c *Conversation) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Stage returns the stage reached by the latest submission.
func (c *Conversation) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Subscribe returns a channel that receives a snapshot after every change,
// starting with the current state. Only the latest snapshot is buffered, so
// slow readers skip intermediate states. The channel is closed by the
// returned cancel func or by Close.
func (c *Conversation) Subscribe() (<-chan models.Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan models.Snapshot, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	key := c.nextSub
	c.nextSub++
	c.subs[key] = ch
	ch <- c.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[key]; ok {
				delete(c.subs, key)
				close(sub)
			}
		})
	}
}

func (c *Conversation) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Close discards the message list and ends all subscriptions. A submission
// still in flight runs to completion but its results are dropped.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.messages = nil
	c.index = make(map[models.MessageID]int)
	for key, ch := range c.subs {
		delete(c.subs, key)
		close(ch)
	}

	c.logger.Infow("conversation closed", "in_flight", c.inFlight)
}

// Closed reports whether Close has been called.
func (c *Conversation) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
