package marketfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"RiskDesk/internal/domain/models"
	drepo "RiskDesk/internal/domain/repository"
	applogger "RiskDesk/pkg/logger"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when the stream is used before Connect.
var ErrNotConnected = errors.New("marketfeed: not connected")

// frame is one message from the feed: {"type":"snapshot","data":{...MarketView...}}.
type frame struct {
	Type string            `json:"type"`
	Data models.MarketView `json:"data"`
}

type subscribeMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// Client is a MarketFeed over a WebSocket stream of market snapshots.
type Client struct {
	apiKey         string
	url            string
	symbol         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	writeMu   sync.Mutex
	mu        sync.RWMutex
	conn      *websocket.Conn
	connected atomic.Bool
	dropped   atomic.Int64
}

var _ drepo.MarketFeed = (*Client)(nil)

// New creates a market feed client for one symbol.
func New(apiKey, wsURL, symbol string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) *Client {
	if l == nil {
		l = applogger.NewNop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		apiKey:         apiKey,
		url:            wsURL,
		symbol:         symbol,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("marketfeed url: %w", err)
	}
	if c.apiKey != "" {
		q := u.Query()
		q.Set("token", c.apiKey)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("marketfeed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.l.Info("marketfeed connected", applogger.String("host", u.Host))
	return nil
}

// Subscribe asks the feed for snapshots of the configured symbol.
func (c *Client) Subscribe(_ context.Context) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	if err := c.writeJSON(subscribeMsg{Type: "subscribe", Symbol: c.symbol}); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.symbol, err)
	}
	c.l.Info("marketfeed subscribed", applogger.String("symbol", c.symbol))
	return nil
}

// Read streams snapshots until ctx ends or the connection fails. A full output
// buffer drops the newest frame rather than stalling the socket.
func (c *Client) Read(ctx context.Context) (<-chan *models.MarketView, <-chan error) {
	views := make(chan *models.MarketView, 64)
	errs := make(chan error, 1)

	conn := c.current()
	if conn == nil {
		errs <- ErrNotConnected
		close(views)
		close(errs)
		return views, errs
	}

	stop := make(chan struct{})
	go c.pingLoop(ctx, stop)

	go func() {
		defer close(views)
		defer close(errs)
		defer close(stop)

		// unblock ReadMessage on cancellation
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.SetReadDeadline(time.Now())
			case <-stop:
			}
		}()

		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("marketfeed read: %w", err)
				}
				return
			}
			var f frame
			if err := json.Unmarshal(b, &f); err != nil || f.Type != "snapshot" {
				continue
			}
			if f.Data.Symbol != "" && f.Data.Symbol != c.symbol {
				continue
			}
			if f.Data.Symbol == "" {
				f.Data.Symbol = c.symbol
			}
			v := f.Data
			select {
			case views <- &v:
			case <-ctx.Done():
				return
			default:
				c.dropped.Add(1)
			}
		}
	}()

	return views, errs
}

func (c *Client) pingLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := c.writeControl(websocket.PingMessage); err != nil {
				c.l.Warn("marketfeed ping failed", applogger.Error(err))
			}
		}
	}
}

// Reconnect closes, waits reconnectDelay and dials again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// Dropped reports frames discarded because the consumer fell behind.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

func (c *Client) current() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) writeJSON(v interface{}) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *Client) writeControl(messageType int) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteControl(messageType, nil, time.Now().Add(5*time.Second))
}
