package repositories

import (
	stderrors "errors"
	"sodeclick-chat/domain"
	"sodeclick-chat/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const roomPrefix = "room:"

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) RoomRepository {
	return RoomRepository{db: db}
}

func (r RoomRepository) GetRoom(roomID string) (domain.ChatRoom, error) {
	var room domain.ChatRoom
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(roomPrefix+roomID), &room)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.ChatRoom{}, errors.ErrRoomNotFound
	}
	return room, err
}

func (r RoomRepository) SaveRoom(room domain.ChatRoom) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(roomPrefix+room.ID), room)
	})
}

// AddMember returns false when the user was already a member.
func (r RoomRepository) AddMember(roomID, userID string, role domain.MemberRole, at time.Time) (bool, error) {
	var added bool
	err := r.mutate(roomID, func(room *domain.ChatRoom) bool {
		added = room.AddMember(userID, role, at)
		return added
	})
	return added, err
}

func (r RoomRepository) IncrementTotalMessages(roomID string) error {
	return r.mutate(roomID, func(room *domain.ChatRoom) bool {
		room.Stats.TotalMessages++
		return true
	})
}

func (r RoomRepository) mutate(roomID string, fn func(*domain.ChatRoom) bool) error {
	key := []byte(roomPrefix + roomID)
	err := update(r.db, func(txn *badger.Txn) error {
		var room domain.ChatRoom
		if err := getJSON(txn, key, &room); err != nil {
			return err
		}
		if !fn(&room) {
			return nil
		}
		return setJSON(txn, key, room)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrRoomNotFound
	}
	return err
}

// ListRooms returns every stored room, ordered by id.
func (r RoomRepository) ListRooms() ([]domain.ChatRoom, error) {
	var rooms []domain.ChatRoom
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(roomPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var room domain.ChatRoom
			if err := getJSON(txn, it.Item().KeyCopy(nil), &room); err != nil {
				return err
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	return rooms, err
}
