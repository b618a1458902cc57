package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rubiojr/ordframe/pkg/ordinals"
	"github.com/rubiojr/ordframe/pkg/viewer"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	// DefaultIntervalSeconds is used when the page sends no usable interval.
	DefaultIntervalSeconds = 30
	// MaxIntervalSeconds caps the interval at one day.
	MaxIntervalSeconds = 24 * 60 * 60
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientMessage is a frame page event.
type ClientMessage struct {
	Type     string          `json:"type"`
	Ordinals json.RawMessage `json:"ordinals,omitempty"`
	Interval json.RawMessage `json:"interval,omitempty"`
	Index    int             `json:"index,omitempty"`
	Key      string          `json:"key,omitempty"`
}

// ServerMessage is pushed to the page: a state snapshot or a reload
// request.
type ServerMessage struct {
	Type  string        `json:"type"`
	State *viewer.State `json:"state,omitempty"`
}

// ParseInterval reads the slideshow interval sent by the page. It takes the
// leading integer of a number or string and falls back to the default when
// that is missing or not positive. Larger values are capped at one day.
func ParseInterval(raw json.RawMessage) time.Duration {
	text := strings.TrimSpace(string(raw))
	if unq, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unq)
	}
	end := 0
	for end < len(text) && (unicode.IsDigit(rune(text[end])) || (end == 0 && (text[0] == '-' || text[0] == '+'))) {
		end++
	}
	n, err := strconv.Atoi(text[:end])
	if err != nil || n <= 0 {
		n = DefaultIntervalSeconds
	}
	if n > MaxIntervalSeconds {
		n = MaxIntervalSeconds
	}
	return time.Duration(n) * time.Second
}

// session is one frame page connected over a websocket. It owns a viewer
// controller; the page renders whatever state the controller publishes.
type session struct {
	id   string
	conn *websocket.Conn

	// state holds the latest unsent snapshot. Older snapshots are
	// replaced so a slow page never blocks the viewer timers.
	state  chan viewer.State
	reload chan struct{}
	pushMu sync.Mutex

	viewer *viewer.Viewer
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		id:     uuid.NewString(),
		conn:   conn,
		state:  make(chan viewer.State, 1),
		reload: make(chan struct{}, 1),
	}
}

func (s *session) pushState(st viewer.State) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	select {
	case <-s.state:
	default:
	}
	s.state <- st
}

func (s *session) pushReload() {
	select {
	case s.reload <- struct{}{}:
	default:
	}
}

func (s *session) write(msg ServerMessage) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

func (s *session) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case st := <-s.state:
			if err := s.write(ServerMessage{Type: "state", State: &st}); err != nil {
				logger.Debugf("session %s: write state: %v", s.id, err)
				return
			}
		case <-s.reload:
			if err := s.write(ServerMessage{Type: "reload"}); err != nil {
				logger.Debugf("session %s: write reload: %v", s.id, err)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// handle applies one page event to the viewer. The first hello creates the
// viewer; later hellos are ignored.
func (s *session) handle(msg ClientMessage, defaults ViewerDefaults) {
	if msg.Type == "hello" {
		if s.viewer != nil {
			return
		}
		items, err := ordinals.ParseList(msg.Ordinals)
		if err != nil {
			logger.Warnf("session %s: %v", s.id, err)
		}
		s.viewer = viewer.New(items, viewer.Options{
			Interval:        ParseInterval(msg.Interval),
			HoldDuration:    defaults.HoldDuration,
			TapMax:          defaults.TapMax,
			MetadataTimeout: defaults.MetadataTimeout,
			OnChange:        s.pushState,
		})
		s.viewer.Start()
		logger.Debugf("session %s: viewer started with %d items", s.id, len(items))
		return
	}

	v := s.viewer
	if v == nil {
		return
	}
	switch msg.Type {
	case "next":
		v.Next()
	case "previous":
		v.Previous()
	case "goto":
		v.GoTo(msg.Index)
	case "key":
		v.Key(msg.Key)
	case "press_start":
		v.PressStart()
	case "press_end":
		v.PressEnd()
	case "press_cancel":
		v.PressCancel()
	case "toggle_play":
		v.TogglePlay()
	case "toggle_metadata":
		v.ToggleMetadata()
	default:
		logger.Debugf("session %s: unknown message type %q", s.id, msg.Type)
	}
}

// HandleFrameSession upgrades to a websocket and runs a viewer for the
// page until it disconnects.
func (s *Server) HandleFrameSession(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess := newSession(conn)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger.Debugf("session %s: connected from %s", sess.id, r.RemoteAddr)

	if s.hub != nil {
		id, events := s.hub.Register()
		defer s.hub.Unregister(id)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-events:
					if !ok {
						return
					}
					sess.pushReload()
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.writeLoop(ctx)
	}()

	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	defaults := s.viewerDefaults()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("session %s: read: %v", sess.id, err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debugf("session %s: bad message: %v", sess.id, err)
			continue
		}
		sess.handle(msg, defaults)
	}

	if sess.viewer != nil {
		sess.viewer.Stop()
	}
	cancel()
	<-done
	logger.Debugf("session %s: closed", sess.id)
}
