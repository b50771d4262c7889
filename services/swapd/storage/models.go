package storage

import "time"

// KVEntry holds one RLP-encoded ledger value.
type KVEntry struct {
	Key   string `gorm:"primaryKey;size:191"`
	Value []byte
}

// KVListItem holds one element of an append-only ledger list.
type KVListItem struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement"`
	Key   string `gorm:"size:191;index"`
	Value []byte
}

// OracleSample stores a raw rate observation.
type OracleSample struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Pair       string `gorm:"size:64;index:idx_oracle_samples_pair_ts"`
	Source     string `gorm:"size:64"`
	Rate       string `gorm:"size:80"`
	ObservedAt int64  `gorm:"index:idx_oracle_samples_pair_ts"`
	RecordedAt time.Time
}

// OracleSnapshot stores an aggregated median rate.
type OracleSnapshot struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Pair       string `gorm:"size:64;index:idx_oracle_snapshots_pair_ts"`
	MedianRate string `gorm:"size:80"`
	Feeders    string `gorm:"type:text"`
	ProofID    string `gorm:"size:80"`
	ObservedAt int64  `gorm:"index:idx_oracle_snapshots_pair_ts"`
	RecordedAt time.Time
}

// IdempotencyKey stores the first response returned for a client key.
type IdempotencyKey struct {
	Key       string `gorm:"primaryKey;size:128"`
	Caller    string `gorm:"primaryKey;size:42"`
	RequestID string `gorm:"size:64"`
	Method    string `gorm:"size:8"`
	Path      string `gorm:"size:255"`
	Status    int
	Response  string `gorm:"type:text"`
	CreatedAt time.Time
}

// AuditRun records a completed or failed swap export.
type AuditRun struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Format     string `gorm:"size:16"`
	Path       string `gorm:"size:512"`
	WindowFrom time.Time
	WindowTo   time.Time
	Records    int
	Error      string `gorm:"type:text"`
	StartedAt  time.Time
	FinishedAt time.Time
}

func allModels() []any {
	return []any{
		&KVEntry{},
		&KVListItem{},
		&OracleSample{},
		&OracleSnapshot{},
		&IdempotencyKey{},
		&AuditRun{},
	}
}
