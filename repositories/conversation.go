package repositories

import (
	stderrors "errors"

	"github.com/dgraph-io/badger/v4"
)

const conversationPrefix = "conv:"

// ConversationRepository remembers, per user, the deleter-scoped address
// that replaced a direct conversation after a soft delete.
type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) ConversationRepository {
	return ConversationRepository{db: db}
}

func conversationKey(userID, canonical string) []byte {
	return []byte(conversationPrefix + userID + ":" + canonical)
}

func (c ConversationRepository) GetScopedAddress(userID, canonical string) (string, bool, error) {
	var scoped string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(userID, canonical))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		scoped = string(value)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return scoped, true, nil
}

func (c ConversationRepository) SetScopedAddress(userID, canonical, scoped string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(conversationKey(userID, canonical), []byte(scoped))
	})
}
