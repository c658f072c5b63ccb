package web

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/diogo/muralguide/internal/conversation"
	"github.com/diogo/muralguide/internal/models"
	"github.com/diogo/muralguide/internal/session"
)

// errRoomClosed is returned by room intents after the session was dropped.
var errRoomClosed = errors.New("web: session closed")

// State is the view of one session sent to browsers.
type State struct {
	ID       string           `json:"id"`
	Screen   string           `json:"screen"`
	Messages []models.Message `json:"messages"`
	InFlight bool             `json:"inFlight"`
}

// room wraps a session and fans its state out to every watcher. It follows
// whichever conversation the session currently holds so that REST calls and
// WebSocket clients observe the same screen changes.
type room struct {
	id     string
	sess   *session.Session
	logger *zap.SugaredLogger

	mu       sync.Mutex
	conv     *conversation.Conversation
	stopPump func()
	gen      int
	watchers map[int]chan State
	nextKey  int
	closed   bool
}

func newRoom(id string, sess *session.Session, logger *zap.SugaredLogger) *room {
	return &room{
		id:       id,
		sess:     sess,
		logger:   logger.With("session_id", id),
		watchers: make(map[int]chan State),
	}
}

func (r *room) state() State {
	return r.stateOf(r.sess.Snapshot())
}

func (r *room) stateOf(snap models.Snapshot) State {
	msgs := snap.Messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	return State{
		ID:       r.id,
		Screen:   r.sess.Screen().String(),
		Messages: msgs,
		InFlight: snap.InFlight,
	}
}

func (r *room) start() (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return State{}, errRoomClosed
	}
	conv, err := r.sess.Start()
	if err != nil {
		return State{}, err
	}
	if conv != r.conv {
		r.followLocked(conv)
	}
	st := r.state()
	r.broadcastLocked(st)
	return st, nil
}

func (r *room) exit() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unfollowLocked()
	r.sess.Exit()
	st := r.state()
	if !r.closed {
		r.broadcastLocked(st)
	}
	return st
}

func (r *room) submit(ctx context.Context, text string) (State, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return State{}, errRoomClosed
	}

	if _, err := r.sess.Submit(ctx, text); err != nil {
		return r.state(), err
	}
	return r.state(), nil
}

// watch returns a channel receiving the room state after every change,
// starting with the current one. Only the latest state is buffered.
func (r *room) watch() (<-chan State, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan State, 1)
	if r.closed {
		close(ch)
		return ch, func() {}
	}

	key := r.nextKey
	r.nextKey++
	r.watchers[key] = ch
	ch <- r.state()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if w, ok := r.watchers[key]; ok {
				delete(r.watchers, key)
				close(w)
			}
		})
	}
}

// close exits the session and ends every watch.
func (r *room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.unfollowLocked()
	r.sess.Exit()
	for key, ch := range r.watchers {
		delete(r.watchers, key)
		close(ch)
	}
}

func (r *room) followLocked(conv *conversation.Conversation) {
	r.unfollowLocked()

	snaps, cancel := conv.Subscribe()
	r.conv = conv
	r.stopPump = cancel
	gen := r.gen

	go func() {
		for snap := range snaps {
			r.mu.Lock()
			if gen == r.gen && !r.closed {
				r.broadcastLocked(r.stateOf(snap))
			}
			r.mu.Unlock()
		}
	}()
}

func (r *room) unfollowLocked() {
	r.gen++
	if r.stopPump != nil {
		r.stopPump()
		r.stopPump = nil
	}
	r.conv = nil
}

func (r *room) broadcastLocked(st State) {
	for _, ch := range r.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}
