package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/logger"
)

// EventNewAlarm is the push event carrying a freshly raised alarm.
const EventNewAlarm = "new_alarm"

// Defaults of a Subscriber.
const (
	DefaultReconnectInterval = 2 * time.Second
	defaultHandshakeTimeout  = 10 * time.Second
	closeGracePeriod         = time.Second
)

var errPushURLRequired = errors.New("push URL must be provided")

// Handler receives every decoded new_alarm event.
type Handler func(ctx context.Context, a *alarm.Alarm)

// Subscriber follows the Socket.IO push channel, reconnecting at a bounded pace.
type Subscriber struct {
	// url is the Engine.IO websocket endpoint.
	url string
	// dialer opens connections.
	dialer *websocket.Dialer
	// token supplies the Authorization header and the connect auth data.
	token TokenSource
	// limiter paces reconnect attempts.
	limiter *rate.Limiter
	// onState is told when a connection opens or closes.
	onState func(connected bool)

	// mu guards cancel and closed.
	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithReconnectInterval sets the minimum spacing between connection attempts.
func WithReconnectInterval(d time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithSubscriberToken sets the bearer token sent with the handshake.
func WithSubscriberToken(ts TokenSource) SubscriberOption {
	return func(s *Subscriber) {
		s.token = ts
	}
}

// WithConnectionState registers a callback for connection changes.
func WithConnectionState(fn func(connected bool)) SubscriberOption {
	return func(s *Subscriber) {
		s.onState = fn
	}
}

// NewSubscriber creates a subscriber for the Socket.IO server at pushURL.
func NewSubscriber(pushURL string, opts ...SubscriberOption) (*Subscriber, error) {
	if pushURL == "" {
		return nil, errPushURLRequired
	}

	endpoint, err := socketIOURL(pushURL)
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		url: endpoint,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(DefaultReconnectInterval), 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Run delivers new_alarm events to handler until ctx is cancelled or Close is
// called, reconnecting after every dropped connection. It returns nil on
// either kind of shutdown.
func (s *Subscriber) Run(ctx context.Context, handler Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.cancel = cancel
	s.mu.Unlock()

	ctx = logger.WithName(ctx, "push")

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil //nolint:nilerr // Wait only fails once ctx is done.
		}

		err := s.follow(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}

		logger.WarnKV(ctx, "Push channel dropped, reconnecting", "error", err)
	}
}

// Close unsubscribes: the open connection is closed and Run returns.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}

	return nil
}

// follow holds one Socket.IO session open and dispatches its events.
func (s *Subscriber) follow(ctx context.Context, handler Handler) error {
	var token string
	if s.token != nil {
		token, _ = s.token()
	}

	header := http.Header{}
	if token != "" {
		header.Set(headerAuthorization, "Bearer "+token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial push channel: %s: %w", resp.Status, err)
		}

		return fmt.Errorf("dial push channel: %w", err)
	}

	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		deadline := time.Now().Add(closeGracePeriod)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	})
	defer stop()

	hs, err := open(conn, token)
	if err != nil {
		return err
	}

	var connected bool

	defer func() {
		if connected {
			s.setState(false)
		}
	}()

	for {
		if err = conn.SetReadDeadline(time.Now().Add(hs.readTimeout())); err != nil {
			return fmt.Errorf("set push read deadline: %w", err)
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read push channel: %w", err)
		}

		if len(data) == 0 {
			continue
		}

		switch data[0] {
		case eioPing:
			data[0] = eioPong
			if err = conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("answer push ping: %w", err)
			}
		case eioClose:
			return errServerDisconnect
		case eioMessage:
			if len(data) < 2 {
				continue
			}

			switch data[1] {
			case sioConnect:
				if !connected {
					connected = true

					logger.InfoKV(ctx, "Push channel connected", "url", s.url, "sid", hs.SID)
					s.setState(true)
				}
			case sioDisconnect:
				return errServerDisconnect
			case sioConnectError:
				return fmt.Errorf("%w: %s", errConnectRefused, data[2:])
			case sioEvent:
				s.dispatch(ctx, data[2:], handler)
			}
		}
	}
}

// open reads the Engine.IO open packet and joins the default namespace.
func open(conn *websocket.Conn, token string) (handshake, error) {
	if err := conn.SetReadDeadline(time.Now().Add(defaultHandshakeTimeout)); err != nil {
		return handshake{}, fmt.Errorf("set push read deadline: %w", err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return handshake{}, fmt.Errorf("read push handshake: %w", err)
	}

	if len(data) == 0 || data[0] != eioOpen {
		return handshake{}, fmt.Errorf("%w: %q", errHandshake, data)
	}

	var hs handshake
	if err = json.Unmarshal(data[1:], &hs); err != nil {
		return handshake{}, fmt.Errorf("decode push handshake: %w", err)
	}

	if hs.readTimeout() <= 0 {
		return handshake{}, fmt.Errorf("%w: no ping interval", errHandshake)
	}

	packet, err := connectPacket(token)
	if err != nil {
		return handshake{}, err
	}

	if err = conn.WriteMessage(websocket.TextMessage, packet); err != nil {
		return handshake{}, fmt.Errorf("join push namespace: %w", err)
	}

	return hs, nil
}

// dispatch decodes one event; malformed and unrelated events are skipped.
func (s *Subscriber) dispatch(ctx context.Context, payload []byte, handler Handler) {
	name, data, err := decodeEvent(payload)
	if err != nil {
		logger.WarnKV(ctx, "Skipping malformed push event", "error", err)

		return
	}

	if name != EventNewAlarm {
		logger.DebugKV(ctx, "Skipping push event", "event", name)

		return
	}

	var a alarm.Alarm
	if err = json.Unmarshal(data, &a); err != nil {
		logger.WarnKV(ctx, "Skipping undecodable alarm", "error", err)

		return
	}

	handler(ctx, &a)
}

func (s *Subscriber) setState(connected bool) {
	if s.onState != nil {
		s.onState(connected)
	}
}
