// Package realtimetest содержит соединение-заглушку для тестов рассылки
package realtimetest

import (
	"fmt"
	"sync"

	"tutor_chat/internal/domain"
	apperrors "tutor_chat/pkg/errors"
)

// Conn записывает отправленные события в память
type Conn struct {
	id            string
	participantID string

	mu     sync.Mutex
	events []domain.ServerEvent
	closed bool
	// FailSends имитирует переполненный буфер
	FailSends bool
}

func NewConn(id, participantID string) *Conn {
	return &Conn{id: id, participantID: participantID}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) ParticipantID() string {
	return c.participantID
}

func (c *Conn) Send(event domain.ServerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection %s closed: %w", c.id, apperrors.ErrTransport)
	}
	if c.FailSends {
		return fmt.Errorf("connection %s send buffer full: %w", c.id, apperrors.ErrTransport)
	}
	c.events = append(c.events, event)
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Events возвращает копию полученных событий
func (c *Conn) Events() []domain.ServerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ServerEvent, len(c.events))
	copy(out, c.events)
	return out
}

// EventsNamed фильтрует события по имени
func (c *Conn) EventsNamed(name string) []domain.ServerEvent {
	var out []domain.ServerEvent
	for _, e := range c.Events() {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}
