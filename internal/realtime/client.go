package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"tutor_chat/internal/domain"
	apperrors "tutor_chat/pkg/errors"
	"tutor_chat/pkg/logger"
)

const (
	writeWait = 10 * time.Second
	closeWait = time.Second
)

type ClientOptions struct {
	SendBufferSize int
	PingInterval   time.Duration
	PongWait       time.Duration
	MaxFrameBytes  int64
}

// Client - websocket соединение участника. Запись идет только из writePump,
// чтение только из readPump (gorilla допускает по одному писателю и читателю).
type Client struct {
	id            string
	participantID string
	conn          *websocket.Conn
	send          chan domain.ServerEvent
	done          chan struct{}
	closeOnce     sync.Once
	opts          ClientOptions
	log           logger.Logger
}

func NewClient(conn *websocket.Conn, participantID string, opts ClientOptions, log logger.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:            id,
		participantID: participantID,
		conn:          conn,
		send:          make(chan domain.ServerEvent, opts.SendBufferSize),
		done:          make(chan struct{}),
		opts:          opts,
		log:           log.With("connection_id", id, "participant_id", participantID),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) ParticipantID() string {
	return c.participantID
}

// Send ставит событие в очередь без блокировки
func (c *Client) Send(event domain.ServerEvent) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection %s closed: %w", c.id, apperrors.ErrTransport)
	default:
	}

	select {
	case c.send <- event:
		return nil
	case <-c.done:
		return fmt.Errorf("connection %s closed: %w", c.id, apperrors.ErrTransport)
	default:
		return fmt.Errorf("connection %s send buffer full: %w", c.id, apperrors.ErrTransport)
	}
}

// Close не блокируется и безопасен для повторного и конкурентного вызова.
// WriteControl ждет блокировку записи, которую держит застрявший в WriteMessage
// writePump, поэтому close-фрейм и закрытие сокета уходят в фон.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		go c.shutdown()
	})
	return nil
}

func (c *Client) shutdown() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeWait))
	if err := c.conn.Close(); err != nil {
		c.log.Debug("Failed to close websocket", "error", err)
	}
}

// Run запускает writePump и читает фреймы до разрыва соединения.
// onFrame вызывается последовательно в порядке прихода фреймов.
func (c *Client) Run(ctx context.Context, onFrame func(ctx context.Context, frame []byte)) {
	go c.writePump()
	defer c.Close()

	c.conn.SetReadLimit(c.opts.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Warn("Websocket closed unexpectedly", "error", err)
			}
			return
		}
		onFrame(ctx, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			payload, err := json.Marshal(event)
			if err != nil {
				c.log.Error("Failed to encode event", "event", event.Event, "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Failed to write event", "event", event.Event, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
