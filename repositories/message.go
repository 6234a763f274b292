package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sodeclick-chat/domain"
	"sodeclick-chat/errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	messagePrefix = "msg:"
	indexPrefix   = "msgidx:"
)

// streamEscaper keeps ':' out of the stream component, so that the prefix
// of one stream is never the prefix of another ("general" vs "general:vip").
var streamEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// stream returns the key prefix holding the history behind an address.
// Every variant of a direct conversation shares the canonical stream; the
// address is then used as a visibility filter.
func stream(raw string) (string, domain.Address, error) {
	if !domain.IsDirect(raw) {
		return streamPrefix(raw), domain.RoomAddress(raw, domain.PublicRoom), nil
	}
	addr, err := domain.ParseDirectAddress(raw)
	if err != nil {
		return "", domain.Address{}, err
	}
	return streamPrefix(addr.Canonical().String()), addr, nil
}

func streamPrefix(name string) string {
	return messagePrefix + streamEscaper.Replace(name) + ":"
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{stream}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
//
// A secondary "msgidx:{uuid}" entry points back to the primary key.
func (m MessageRepository) StoreMessage(msg domain.Message) error {
	prefix, _, err := stream(msg.Address)
	if err != nil {
		return err
	}
	key := []byte(fmt.Sprintf("%s%019d:%s", prefix, msg.CreatedAt.UnixNano(), msg.ID))
	return m.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, key, msg); err != nil {
			return err
		}
		return txn.Set([]byte(indexPrefix+msg.ID.String()), key)
	})
}

func (m MessageRepository) GetMessage(id uuid.UUID) (domain.Message, error) {
	var msg domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		key, err := primaryKey(txn, id)
		if err != nil {
			return err
		}
		return getJSON(txn, key, &msg)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	return msg, err
}

func primaryKey(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get([]byte(indexPrefix + id.String()))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (m MessageRepository) MutateMessage(id uuid.UUID, fn func(*domain.Message) bool) (domain.Message, error) {
	var msg domain.Message
	err := update(m.db, func(txn *badger.Txn) error {
		msg = domain.Message{}
		key, err := primaryKey(txn, id)
		if err != nil {
			return err
		}
		if err := getJSON(txn, key, &msg); err != nil {
			return err
		}
		if !fn(&msg) {
			return nil
		}
		return setJSON(txn, key, msg)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	return msg, err
}

// ListMessages pages backwards through the history visible from an address,
// newest first. The returned cursor resumes after the last message.
func (m MessageRepository) ListMessages(address string, cursor *string, limit int) ([]domain.Message, *string, error) {
	prefix, view, err := stream(address)
	if err != nil {
		return nil, nil, err
	}
	if limit <= 0 || (m.limitMessages > 0 && limit > m.limitMessages) {
		limit = m.limitMessages
	}

	var messages []domain.Message
	var lastKey string
	err = m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			seekKey = []byte(prefix + "9999999999999999999")
		default:
			seekKey = []byte(prefix + *cursor)
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix([]byte(prefix)) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix([]byte(prefix)); it.Next() {
			if limit > 0 && len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			item := it.Item()
			var msg domain.Message
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &msg) }); err != nil {
				return err
			}
			if !view.Shows(msg.CreatedAt) {
				// older than the deletion: nothing further back is visible
				break
			}
			lastKey = string(item.Key()[len(prefix):])
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// CountUnread counts visible messages the user did not send, did not read
// and that are not soft-deleted.
func (m MessageRepository) CountUnread(address, userID string) (int, error) {
	count := 0
	err := m.scan(address, func(msg domain.Message) {
		if msg.IsUnreadFor(userID) {
			count++
		}
	})
	return count, err
}

// MarkRead adds the user to ReadBy on every visible unread message and
// returns how many were updated. Running it twice changes nothing.
func (m MessageRepository) MarkRead(address, userID string) (int, error) {
	prefix, view, err := stream(address)
	if err != nil {
		return 0, err
	}
	var updated int
	err = update(m.db, func(txn *badger.Txn) error {
		type pending struct {
			key []byte
			msg domain.Message
		}
		var changes []pending

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			var msg domain.Message
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &msg) }); err != nil {
				it.Close()
				return err
			}
			if view.Shows(msg.CreatedAt) && msg.MarkReadBy(userID) {
				changes = append(changes, pending{key: item.KeyCopy(nil), msg: msg})
			}
		}
		it.Close()

		for _, c := range changes {
			if err := setJSON(txn, c.key, c.msg); err != nil {
				return err
			}
		}
		updated = len(changes)
		return nil
	})
	return updated, err
}

func (m MessageRepository) scan(address string, fn func(domain.Message)) error {
	prefix, view, err := stream(address)
	if err != nil {
		return err
	}
	return m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			var msg domain.Message
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &msg) }); err != nil {
				return err
			}
			if view.Shows(msg.CreatedAt) {
				fn(msg)
			}
		}
		return nil
	})
}
