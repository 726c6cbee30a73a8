package chatclient

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Stream reads server pushes and applies them to a State.
type Stream struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func Dial(ctx context.Context, url string) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &Stream{conn: conn}, nil
}

// Run blocks until ctx ends or the connection drops. onEvent, when set, sees
// every event after it was applied, along with any apply error.
func (s *Stream) Run(ctx context.Context, state *State, onEvent func(Event, error)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-done:
		}
	}()
	for {
		var ev Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		err := state.Apply(ctx, ev)
		if onEvent != nil {
			onEvent(ev, err)
		}
	}
}

func (s *Stream) Ping(requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(map[string]string{"type": "ping", "request_id": requestID})
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return s.conn.Close()
}
