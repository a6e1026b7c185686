package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Engine.IO v4 packet types. Every websocket frame starts with one.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO v5 packet types, carried right after eioMessage.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// socketIOPath is the default mount point of a Socket.IO server.
const socketIOPath = "socket.io"

var (
	errHandshake        = errors.New("unexpected push handshake")
	errServerDisconnect = errors.New("push server ended the session")
	errConnectRefused   = errors.New("push server refused the connection")
	errMalformedEvent   = errors.New("malformed push event")
)

// handshake is the payload of the Engine.IO open packet.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// readTimeout is the longest silence allowed before the server is considered
// gone: one ping interval plus the time the server grants for the pong.
func (h handshake) readTimeout() time.Duration {
	return time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
}

// socketIOURL points pushURL at the Engine.IO websocket transport. A URL
// without a socket.io segment is given the default path.
func socketIOURL(pushURL string) (string, error) {
	u, err := url.Parse(pushURL)
	if err != nil {
		return "", fmt.Errorf("parse push URL: %w", err)
	}

	if !strings.Contains(u.Path, "/"+socketIOPath) {
		u = u.JoinPath(socketIOPath)
	}

	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}

	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	u.RawPath = ""

	query := u.Query()
	query.Set("EIO", "4")
	query.Set("transport", "websocket")
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// connectPacket joins the default namespace, passing the token as auth data.
func connectPacket(token string) ([]byte, error) {
	packet := []byte{eioMessage, sioConnect}
	if token == "" {
		return packet, nil
	}

	auth, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, fmt.Errorf("encode push auth: %w", err)
	}

	return append(packet, auth...), nil
}

// decodeEvent splits the payload of a Socket.IO event packet into the event
// name and its first argument. A namespace prefix and an ack id are skipped.
func decodeEvent(payload []byte) (string, json.RawMessage, error) {
	if len(payload) > 0 && payload[0] == '/' {
		_, rest, found := bytes.Cut(payload, []byte{','})
		if !found {
			return "", nil, errMalformedEvent
		}

		payload = rest
	}

	payload = bytes.TrimLeft(payload, "0123456789")

	var args []json.RawMessage
	if err := json.Unmarshal(payload, &args); err != nil {
		return "", nil, fmt.Errorf("%w: %w", errMalformedEvent, err)
	}

	if len(args) == 0 {
		return "", nil, errMalformedEvent
	}

	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("%w: %w", errMalformedEvent, err)
	}

	if len(args) < 2 {
		return name, nil, nil
	}

	return name, args[1], nil
}
