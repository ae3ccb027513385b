package realtime

import (
	"sync"

	"github.com/samber/lo"
	"tutor_chat/internal/domain"
	"tutor_chat/pkg/logger"
)

// Conn - живое соединение участника. Send не блокирует:
// переполненный буфер или закрытое соединение возвращают ErrTransport.
type Conn interface {
	ID() string
	ParticipantID() string
	Send(event domain.ServerEvent) error
	Close() error
}

// Registry хранит эфемерные привязки: участник -> соединения,
// соединение -> диалоги. Все выборки возвращают копии,
// отправка идет уже вне блокировки.
type Registry struct {
	mu            sync.RWMutex
	conns         map[string]Conn
	participants  map[string]map[string]struct{}
	conversations map[domain.ConversationKey]map[string]struct{}
	joined        map[string]map[domain.ConversationKey]struct{}
	log           logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		conns:         make(map[string]Conn),
		participants:  make(map[string]map[string]struct{}),
		conversations: make(map[domain.ConversationKey]map[string]struct{}),
		joined:        make(map[string]map[domain.ConversationKey]struct{}),
		log:           log,
	}
}

// Attach регистрирует соединение за участником при подключении
func (r *Registry) Attach(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachLocked(conn)
}

func (r *Registry) attachLocked(conn Conn) {
	if _, ok := r.conns[conn.ID()]; ok {
		return
	}
	r.conns[conn.ID()] = conn
	addToSet(r.participants, conn.ParticipantID(), conn.ID())
}

// Join подписывает соединение на диалог. Соединение может быть в нескольких диалогах.
func (r *Registry) Join(conn Conn, key domain.ConversationKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attachLocked(conn)
	addToSet(r.conversations, key, conn.ID())
	addToSet(r.joined, conn.ID(), key)

	r.log.Debug("Connection joined conversation",
		"connection_id", conn.ID(), "participant_id", conn.ParticipantID(), "conversation_key", key)
}

// Leave - no-op для неизвестных соединений и диалогов
func (r *Registry) Leave(conn Conn, key domain.ConversationKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removeFromSet(r.conversations, key, conn.ID())
	removeFromSet(r.joined, conn.ID(), key)
}

// Disconnect убирает все привязки соединения. Повторный вызов безопасен.
func (r *Registry) Disconnect(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnectLocked(conn.ID(), conn.ParticipantID())
}

func (r *Registry) disconnectLocked(connID, participantID string) {
	for key := range r.joined[connID] {
		removeFromSet(r.conversations, key, connID)
	}
	delete(r.joined, connID)
	removeFromSet(r.participants, participantID, connID)
	delete(r.conns, connID)
}

// ConversationConnections - снимок соединений, подписанных на диалог
func (r *Registry) ConversationConnections(key domain.ConversationKey) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(r.conversations[key])
}

// ParticipantConnections - снимок всех соединений участника
func (r *Registry) ParticipantConnections(participantID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(r.participants[participantID])
}

func (r *Registry) snapshotLocked(ids map[string]struct{}) []Conn {
	return lo.FilterMap(lo.Keys(ids), func(id string, _ int) (Conn, bool) {
		conn, ok := r.conns[id]
		return conn, ok
	})
}

func (r *Registry) IsJoined(conn Conn, key domain.ConversationKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.joined[conn.ID()][key]
	return ok
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) ConversationCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}

// Close снимает все привязки и закрывает соединения (при остановке сервера)
func (r *Registry) Close() {
	r.mu.Lock()
	conns := lo.Values(r.conns)
	r.conns = make(map[string]Conn)
	r.participants = make(map[string]map[string]struct{})
	r.conversations = make(map[domain.ConversationKey]map[string]struct{})
	r.joined = make(map[string]map[domain.ConversationKey]struct{})
	r.mu.Unlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			r.log.Debug("Failed to close connection", "connection_id", conn.ID(), "error", err)
		}
	}
	r.log.Info("Connection registry closed", "connections", len(conns))
}

func addToSet[K comparable, V comparable](m map[K]map[V]struct{}, key K, value V) {
	set, ok := m[key]
	if !ok {
		set = make(map[V]struct{})
		m[key] = set
	}
	set[value] = struct{}{}
}

func removeFromSet[K comparable, V comparable](m map[K]map[V]struct{}, key K, value V) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, value)
	if len(set) == 0 {
		delete(m, key)
	}
}
