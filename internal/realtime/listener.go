package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"estate-inbox/internal/casing"
	"estate-inbox/internal/inbox"
	"estate-inbox/pkg/logger"

	"github.com/gorilla/websocket"
)

// Frame types pushed by the backend inbox feed.
const (
	TypeMessageNew          = "message.new"
	TypeMessageStatus       = "message.status"
	TypeAccountDisconnected = "account.disconnected"
	TypePing                = "ping"
)

// Conversations receives message frames.
type Conversations interface {
	ApplyIncoming(ctx context.Context, m inbox.Message) bool
	ApplyStatus(messageID string, status inbox.MessageStatus) bool
}

// Accounts receives account state frames.
type Accounts interface {
	MarkDisconnected(ctx context.Context, id, reason string) bool
}

type TokenSource interface {
	Token() (string, uint64)
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type statusData struct {
	MessageID string              `json:"messageId"`
	Status    inbox.MessageStatus `json:"status"`
}

type disconnectData struct {
	AccountID string `json:"accountId"`
	Reason    string `json:"reason"`
}

// Listener keeps one websocket to the backend inbox feed and folds its frames
// into the local caches. It reconnects with backoff until its context ends.
type Listener struct {
	url           string
	tokens        TokenSource
	conversations Conversations
	accounts      Accounts
	dialer        *websocket.Dialer

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// New builds a listener for baseURL+path. http(s) schemes become ws(s).
func New(baseURL, path string, tokens TokenSource, conversations Conversations, accounts Accounts) (*Listener, error) {
	u, err := SocketURL(baseURL, path)
	if err != nil {
		return nil, err
	}
	return &Listener{
		url:           u,
		tokens:        tokens,
		conversations: conversations,
		accounts:      accounts,
		dialer:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		MinBackoff:    time.Second,
		MaxBackoff:    30 * time.Second,
	}, nil
}

// SocketURL joins baseURL and path and swaps the scheme to ws or wss.
func SocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/") + path)
	if err != nil {
		return "", fmt.Errorf("realtime: base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("realtime: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func (l *Listener) URL() string { return l.url }

// Run blocks until ctx ends. A session without a token waits for one.
func (l *Listener) Run(ctx context.Context) error {
	log := logger.From(ctx).With("component", "realtime")
	backoff := l.MinBackoff
	for {
		token, _ := l.tokens.Token()
		if token != "" {
			connected, err := l.session(ctx, token)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if connected {
				backoff = l.MinBackoff
			}
			log.Warn("inbox feed disconnected", "err", err, "retry_in", backoff.String())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > l.MaxBackoff {
			backoff = l.MaxBackoff
		}
	}
}

// session runs one connection; connected reports whether the dial succeeded.
func (l *Listener) session(ctx context.Context, token string) (connected bool, err error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := l.dialer.DialContext(ctx, l.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, err
	}
	defer conn.Close()
	logger.From(ctx).Info("inbox feed connected", "url", l.url)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		if err := l.Dispatch(ctx, raw); err != nil {
			logger.From(ctx).Warn("inbox frame dropped", "err", err)
		}
	}
}

var ErrUnknownFrame = errors.New("realtime: unknown frame type")

// Dispatch applies one frame.
func (l *Listener) Dispatch(ctx context.Context, raw []byte) error {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("realtime: frame: %w", err)
	}
	switch f.Type {
	case TypeMessageNew:
		var m inbox.Message
		if err := casing.Default.Decode(f.Data, &m); err != nil {
			return err
		}
		l.conversations.ApplyIncoming(ctx, m)
	case TypeMessageStatus:
		var s statusData
		if err := casing.Default.Decode(f.Data, &s); err != nil {
			return err
		}
		l.conversations.ApplyStatus(s.MessageID, s.Status)
	case TypeAccountDisconnected:
		var d disconnectData
		if err := casing.Default.Decode(f.Data, &d); err != nil {
			return err
		}
		if l.accounts != nil {
			l.accounts.MarkDisconnected(ctx, d.AccountID, d.Reason)
		}
	case TypePing:
	default:
		return fmt.Errorf("%w %q", ErrUnknownFrame, f.Type)
	}
	return nil
}
