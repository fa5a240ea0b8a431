package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/chitamrita/chatd/chat"
)

var (
	bucketMessages = []byte("messages") // seq -> message json, seq is commit order
	bucketIds      = []byte("ids")      // message id -> seq
)

// BoltStore implements chat.MessageStore on an embedded bbolt file. It is
// meant for standalone and dev deployments; queries are linear scans over
// the commit-ordered messages bucket.
type BoltStore struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", chat.ErrStoreUnavailable, path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketIds)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init buckets: %v", chat.ErrStoreUnavailable, err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Insert(ctx context.Context, m *chat.Message) (*chat.Message, error) {
	saved := *m
	saved.ID = newID()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := seqKey(seq)
		value, err := json.Marshal(&saved)
		if err != nil {
			return err
		}
		if err := b.Put(key, value); err != nil {
			return err
		}
		return tx.Bucket(bucketIds).Put([]byte(saved.ID), key)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return &saved, nil
}

func (s *BoltStore) Get(ctx context.Context, id string) (*chat.Message, error) {
	var m *chat.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		m, err = getByID(tx, id)
		return err
	})
	if err == chat.ErrNotFound {
		return nil, err
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return m, nil
}

// QueryByPair walks the commit-ordered bucket forward, so the result is
// ascending by store commit order.
func (s *BoltStore) QueryByPair(ctx context.Context, userA, userB string) ([]*chat.Message, error) {
	out := []*chat.Message{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMessages).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var m chat.Message
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			if (m.SenderID == userA && m.ReceiverID == userB) ||
				(m.SenderID == userB && m.ReceiverID == userA) {
				mm := m
				out = append(out, &mm)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// QueryAllForUser walks the commit-ordered bucket backward, so the result is
// descending by store commit order.
func (s *BoltStore) QueryAllForUser(ctx context.Context, userID string) ([]*chat.Message, error) {
	out := []*chat.Message{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMessages).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var m chat.Message
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			if m.SenderID == userID || m.ReceiverID == userID {
				mm := m
				out = append(out, &mm)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *BoltStore) MarkRead(ctx context.Context, id string, readAt time.Time) (*chat.Message, bool, error) {
	var m *chat.Message
	var changed bool

	err := s.db.Update(func(tx *bbolt.Tx) error {
		found, err := getByID(tx, id)
		if err != nil {
			return err
		}
		m = found
		if m.Read {
			return nil
		}
		m.Read = true
		t := readAt
		m.ReadTime = &t
		changed = true

		value, err := json.Marshal(m)
		if err != nil {
			return err
		}
		key := tx.Bucket(bucketIds).Get([]byte(id))
		return tx.Bucket(bucketMessages).Put(key, value)
	})
	if err == chat.ErrNotFound {
		return nil, false, err
	}
	if err != nil {
		return nil, false, storeErr(err)
	}
	return m, changed, nil
}

func getByID(tx *bbolt.Tx, id string) (*chat.Message, error) {
	key := tx.Bucket(bucketIds).Get([]byte(id))
	if key == nil {
		return nil, chat.ErrNotFound
	}
	value := tx.Bucket(bucketMessages).Get(key)
	if value == nil {
		return nil, chat.ErrNotFound
	}
	var m chat.Message
	if err := json.Unmarshal(value, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
