package db

import "time"

type MatchIndexModel struct {
	MatchID     string    `gorm:"type:uuid;primaryKey"`
	MatchHash   string    `gorm:"size:64;index;not null"`
	GameName    string    `gorm:"size:20;not null"`
	HotURL      string    `gorm:"size:200"`
	Status      string    `gorm:"size:16;index;not null"`
	BatchID     *string   `gorm:"type:uuid;index"`
	TxSignature *string   `gorm:"size:128"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (MatchIndexModel) TableName() string { return "match_index" }

type BatchModel struct {
	BatchID     string    `gorm:"type:uuid;primaryKey"`
	MerkleRoot  string    `gorm:"size:64;not null"`
	MatchCount  int       `gorm:"not null"`
	ManifestURL string    `gorm:"size:512"`
	TxSignature *string   `gorm:"size:128"`
	Status      string    `gorm:"size:16;index;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (BatchModel) TableName() string { return "batches" }

type AnchorAttemptModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Ref         string    `gorm:"size:64;index;not null"`
	Kind        string    `gorm:"size:8;not null"`
	Attempt     int       `gorm:"not null"`
	Stage       string    `gorm:"size:16;not null"`
	Status      string    `gorm:"size:16;not null"`
	ErrorCode   *string   `gorm:"size:32"`
	PayloadHash string    `gorm:"size:64;not null"`
	CreatedAt   time.Time `gorm:"index;not null"`
}

func (AnchorAttemptModel) TableName() string { return "anchor_attempts" }

type AnchorReceiptModel struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"`
	Ref         string  `gorm:"size:64;uniqueIndex;not null"`
	Kind        string  `gorm:"size:8;not null"`
	Status      string  `gorm:"size:16;not null"`
	ErrorCode   *string `gorm:"size:32"`
	PayloadHash string  `gorm:"size:64;not null"`
	TxSignature string  `gorm:"size:128;index"`
	Slot        uint64
	Commitment  string `gorm:"size:16"`

	LedgerReceiptJSON      []byte `gorm:"type:bytea"`
	LedgerReceiptTruncated bool
	LedgerReceiptSizeBytes int

	CreatedAt time.Time `gorm:"not null"`
}

func (AnchorReceiptModel) TableName() string { return "anchor_receipts" }

type SignerModel struct {
	PublicKey string `gorm:"size:64;primaryKey"`
	Label     string `gorm:"size:128"`
	Role      string `gorm:"size:16;not null"`
	Status    string `gorm:"size:16;index;not null"`
	AddedAt   time.Time
	RevokedAt *time.Time
}

func (SignerModel) TableName() string { return "signers" }
