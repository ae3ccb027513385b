package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"tutor_chat/internal/domain"
	"tutor_chat/internal/realtime/realtimetest"
	"tutor_chat/pkg/logger"
)

func connIDs(conns []Conn) []string {
	return lo.Map(conns, func(c Conn, _ int) string { return c.ID() })
}

func TestRegistryJoinAndSnapshots(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(logger.NewNop())

	key := domain.ResolveConversation("u1", "u2")
	other := domain.ResolveConversation("u1", "u3")

	tab1 := realtimetest.NewConn("c1", "u1")
	tab2 := realtimetest.NewConn("c2", "u1")
	peer := realtimetest.NewConn("c3", "u2")

	registry.Attach(tab2)
	registry.Join(tab1, key)
	registry.Join(tab1, other)
	registry.Join(peer, key)

	req.ElementsMatch([]string{"c1", "c3"}, connIDs(registry.ConversationConnections(key)))
	req.ElementsMatch([]string{"c1"}, connIDs(registry.ConversationConnections(other)))
	req.ElementsMatch([]string{"c1", "c2"}, connIDs(registry.ParticipantConnections("u1")))
	req.True(registry.IsJoined(tab1, other))
	req.False(registry.IsJoined(tab2, key))
	req.Equal(3, registry.ConnectionCount())
	req.Equal(2, registry.ConversationCount())
}

func TestRegistryLeaveAndDisconnect(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(logger.NewNop())

	key := domain.ResolveConversation("u1", "u2")
	conn := realtimetest.NewConn("c1", "u1")

	registry.Join(conn, key)
	registry.Leave(conn, key)
	req.Empty(registry.ConversationConnections(key))
	req.Len(registry.ParticipantConnections("u1"), 1, "leave keeps the connection attached")

	registry.Join(conn, key)
	registry.Disconnect(conn)
	req.Empty(registry.ConversationConnections(key))
	req.Empty(registry.ParticipantConnections("u1"))
	req.Zero(registry.ConnectionCount())
	req.Zero(registry.ConversationCount())
}

func TestRegistryUnknownHandlesAreNoOps(t *testing.T) {
	registry := NewRegistry(logger.NewNop())
	ghost := realtimetest.NewConn("ghost", "u9")

	require.NotPanics(t, func() {
		registry.Leave(ghost, domain.ResolveConversation("u9", "u1"))
		registry.Disconnect(ghost)
		registry.Disconnect(ghost)
	})
	require.Empty(t, registry.ConversationConnections("nobody:nowhere"))
}

func TestRegistrySnapshotIsDetached(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(logger.NewNop())
	key := domain.ResolveConversation("u1", "u2")

	c1 := realtimetest.NewConn("c1", "u1")
	registry.Join(c1, key)

	snapshot := registry.ConversationConnections(key)
	registry.Disconnect(c1)

	req.Len(snapshot, 1)
	req.Empty(registry.ConversationConnections(key))
}

func TestRegistryClose(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(logger.NewNop())

	c1 := realtimetest.NewConn("c1", "u1")
	c2 := realtimetest.NewConn("c2", "u2")
	registry.Join(c1, domain.ResolveConversation("u1", "u2"))
	registry.Attach(c2)

	registry.Close()

	req.True(c1.Closed())
	req.True(c2.Closed())
	req.Zero(registry.ConnectionCount())
	req.Zero(registry.ConversationCount())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry(logger.NewNop())
	key := domain.ResolveConversation("u1", "u2")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		conn := realtimetest.NewConn(fmt.Sprintf("c%d", i), "u1")
		go func() {
			defer wg.Done()
			registry.Join(conn, key)
			registry.Disconnect(conn)
		}()
		go func() {
			defer wg.Done()
			for _, c := range registry.ConversationConnections(key) {
				_ = c.Send(domain.NewMessageDeletedEvent("m1"))
			}
		}()
	}
	wg.Wait()

	require.Empty(t, registry.ConversationConnections(key))
}
