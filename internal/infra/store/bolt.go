package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ocentra/matchproof/internal/domain"
)

const objectsBucket = "objects"

// Bolt keeps objects in a single bbolt file, the storage mode for
// standalone deployments and the CLI.
type Bolt struct {
	db *bolt.DB
}

func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(objectsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init store bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Put(ctx context.Context, key string, data []byte) (string, error) {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(objectsBucket)).Put([]byte(key), data)
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

func (b *Bolt) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(objectsBucket)).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%w: object %s", domain.ErrNotFound, key)
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
