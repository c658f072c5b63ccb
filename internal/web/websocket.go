package web

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Frame types exchanged over the WebSocket.
const (
	frameState  = "state"
	frameError  = "error"
	frameSubmit = "submit"
	frameStart  = "start"
	frameExit   = "exit"
)

// clientFrame is an intent sent by the browser.
type clientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// serverFrame is pushed to the browser.
type serverFrame struct {
	Type  string `json:"type"`
	State *State `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleWebSocket(c *gin.Context, r *room) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "session_id", r.id, "error", err)
		return
	}
	defer conn.Close()

	states, stopWatch := r.watch()
	defer stopWatch()

	errs := make(chan string, 4)
	done := make(chan struct{})
	go s.writeFrames(conn, states, errs, done)

	ctx := context.WithoutCancel(c.Request.Context())
	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warnw("websocket read failed", "session_id", r.id, "error", err)
			}
			break
		}

		var intentErr error
		switch frame.Type {
		case frameSubmit:
			_, intentErr = r.submit(ctx, frame.Text)
		case frameStart:
			_, intentErr = r.start()
		case frameExit:
			r.exit()
		default:
			s.sendError(errs, "unknown frame type: "+frame.Type)
			continue
		}
		if intentErr != nil {
			s.sendError(errs, intentErr.Error())
		}
	}

	close(done)
}

func (s *Server) sendError(errs chan<- string, msg string) {
	select {
	case errs <- msg:
	default:
	}
}

// writeFrames is the only writer on conn. It closes conn when it stops on
// its own so the read loop ends too.
func (s *Server) writeFrames(conn *websocket.Conn, states <-chan State, errs <-chan string, done <-chan struct{}) {
	for {
		var frame serverFrame
		select {
		case st, ok := <-states:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeTimeout))
				conn.Close()
				return
			}
			frame = serverFrame{Type: frameState, State: &st}
		case msg := <-errs:
			frame = serverFrame{Type: frameError, Error: msg}
		case <-done:
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			s.logger.Debugw("websocket write failed", "error", err)
			conn.Close()
			return
		}
	}
}
