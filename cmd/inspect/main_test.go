package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"sodeclick-chat/domain"
	"sodeclick-chat/repositories"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInspect_Rooms_And_History(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	rooms := repositories.NewRoomRepository(db)
	messages := repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug), 10)
	now := time.Now().UTC()

	req.NoError(rooms.SaveRoom(domain.ChatRoom{
		ID: "lobby", Name: "Lobby", Type: domain.PublicRoomType, CreatedAt: now,
		Members: []domain.Member{{UserID: "alice", Role: domain.OwnerRole}},
		Stats:   domain.RoomStats{TotalMessages: 1234},
	}))
	live := domain.Message{ID: uuid.New(), Address: "lobby", SenderID: "alice", Type: domain.TextMessage,
		Content: "welcome everyone", CreatedAt: now,
		Reactions: []domain.Reaction{{UserID: "bob", Type: domain.ReactionHeart}}, ReadBy: []string{"bob"}}
	deleted := domain.Message{ID: uuid.New(), Address: "lobby", SenderID: "bob", Type: domain.TextMessage,
		Content: "secret", CreatedAt: now.Add(time.Second), IsDeleted: true}
	req.NoError(messages.StoreMessage(live))
	req.NoError(messages.StoreMessage(deleted))

	var out bytes.Buffer
	req.NoError(printRooms(&out, rooms))
	req.Contains(out.String(), "lobby")
	req.Contains(out.String(), "1,234")

	out.Reset()
	req.NoError(printHistory(&out, messages, "lobby", 10))
	req.Contains(out.String(), "welcome everyone")
	req.Contains(out.String(), "heart:1")
	req.NotContains(out.String(), "secret")

	out.Reset()
	req.NoError(printKeys(&out, db, "msg:lobby:", 10))
	req.Contains(out.String(), fmt.Sprintf("%019d", now.UnixNano()))
}
