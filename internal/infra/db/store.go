// Package db persists the queryable side of the pipeline in Postgres:
// match index rows, batch rows, anchor attempts and receipts, and the
// signer registry. Records and manifests themselves live in the object
// store; these tables only index them.
package db

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ocentra/matchproof/internal/config"
)

type Store struct {
	DB *gorm.DB
}

// NewStore connects to Postgres and migrates the schema. An empty DSN
// starts the daemon in no-db mode; repositories built on a nil handle
// report errDBUnavailable instead of panicking.
func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Printf("POSTGRES_DSN not set; starting in no-db mode.")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return &Store{DB: gdb}, nil
}

func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&MatchIndexModel{},
		&BatchModel{},
		&AnchorAttemptModel{},
		&AnchorReceiptModel{},
		&SignerModel{},
	)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
