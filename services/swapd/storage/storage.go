package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
)

// Storage wraps the swapd persistence layer.
type Storage struct {
	db *gorm.DB
}

var (
	// ErrPathRequired is returned when the backing store path is missing.
	ErrPathRequired = errors.New("swapd storage path must be configured")
	// ErrSnapshotNotFound is returned when no snapshot exists for a pair.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrReadOnly is returned for writes attempted inside View.
	ErrReadOnly = errors.New("storage: write attempted in read-only transaction")
)

var _ swapledger.Store = (*Storage)(nil)

// Open initialises the backing store. DSNs starting with postgres:// use the
// postgres driver, everything else is treated as a sqlite DSN.
func Open(dsn string) (*Storage, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	var dialector gorm.Dialector
	if IsPostgresDSN(trimmed) {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if !IsPostgresDSN(trimmed) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("database handle: %w", err)
		}
		// sqlite permits a single writer; serialising connections keeps
		// transactions from failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(allModels()...); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// OpenPath accepts either a filesystem path or a raw DSN.
func OpenPath(path string) (*Storage, error) {
	dsn, err := ResolveDSN(path)
	if err != nil {
		return nil, err
	}
	return Open(dsn)
}

// DB exposes the underlying gorm handle.
func (s *Storage) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Ping verifies the database connection is usable.
func (s *Storage) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrPathRequired
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases database resources.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return closeDB(s.db)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// View runs fn inside a transaction that rejects writes.
func (s *Storage) View(ctx context.Context, fn func(swapledger.Storage) error) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&kvTxn{tx: tx, readOnly: true})
	})
}

// Update runs fn inside a single database transaction. Any error rolls back
// every write fn performed.
func (s *Storage) Update(ctx context.Context, fn func(swapledger.Storage) error) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&kvTxn{tx: tx})
	})
}

type kvTxn struct {
	tx       *gorm.DB
	readOnly bool
}

func (t *kvTxn) KVGet(key []byte, out interface{}) (bool, error) {
	var entries []KVEntry
	if err := t.tx.Where("key = ?", string(key)).Limit(1).Find(&entries).Error; err != nil {
		return false, fmt.Errorf("query kv: %w", err)
	}
	if len(entries) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(entries[0].Value, out); err != nil {
		return false, fmt.Errorf("decode kv %s: %w", key, err)
	}
	return true, nil
}

func (t *kvTxn) KVPut(key []byte, value interface{}) error {
	if t.readOnly {
		return ErrReadOnly
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("encode kv %s: %w", key, err)
	}
	entry := KVEntry{Key: string(key), Value: encoded}
	err = t.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("upsert kv: %w", err)
	}
	return nil
}

func (t *kvTxn) KVAppend(key []byte, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	item := KVListItem{Key: string(key), Value: append([]byte(nil), value...)}
	if err := t.tx.Create(&item).Error; err != nil {
		return fmt.Errorf("append kv list: %w", err)
	}
	return nil
}

func (t *kvTxn) KVGetList(key []byte, out interface{}) error {
	var items []KVListItem
	if err := t.tx.Where("key = ?", string(key)).Order("id ASC").Find(&items).Error; err != nil {
		return fmt.Errorf("query kv list: %w", err)
	}
	values := make([][]byte, 0, len(items))
	for _, item := range items {
		values = append(values, item.Value)
	}
	encoded, err := rlp.EncodeToBytes(values)
	if err != nil {
		return err
	}
	return rlp.DecodeBytes(encoded, out)
}

// RecordSample persists a raw oracle observation.
func (s *Storage) RecordSample(ctx context.Context, base, quote, source, rate string, observed, recorded time.Time) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	if strings.TrimSpace(rate) == "" {
		return fmt.Errorf("sample missing rate")
	}
	sample := OracleSample{
		Pair:       PairKey(base, quote),
		Source:     strings.ToLower(strings.TrimSpace(source)),
		Rate:       strings.TrimSpace(rate),
		ObservedAt: observed.UTC().Unix(),
		RecordedAt: recorded.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&sample).Error; err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// RecordSnapshot stores the aggregated median snapshot.
func (s *Storage) RecordSnapshot(ctx context.Context, base, quote, median string, feeders []string, proofID string, ts time.Time) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	snap := OracleSnapshot{
		Pair:       PairKey(base, quote),
		MedianRate: strings.TrimSpace(median),
		Feeders:    strings.Join(feeders, ","),
		ProofID:    proofID,
		ObservedAt: ts.UTC().Unix(),
		RecordedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&snap).Error; err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent aggregated median for the pair.
func (s *Storage) LatestSnapshot(ctx context.Context, base, quote string) (Snapshot, error) {
	result := Snapshot{}
	if s == nil {
		return result, fmt.Errorf("storage not configured")
	}
	var rows []OracleSnapshot
	err := s.db.WithContext(ctx).
		Where("pair = ?", PairKey(base, quote)).
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return result, fmt.Errorf("query snapshot: %w", err)
	}
	if len(rows) == 0 {
		return result, ErrSnapshotNotFound
	}
	row := rows[0]
	result = Snapshot{
		MedianRate:     row.MedianRate,
		ProofID:        row.ProofID,
		ObservedAtUnix: row.ObservedAt,
		RecordedAt:     row.RecordedAt,
	}
	if row.Feeders != "" {
		result.Feeders = strings.Split(row.Feeders, ",")
	}
	return result, nil
}

// Snapshot captures the latest oracle aggregate.
type Snapshot struct {
	MedianRate     string
	Feeders        []string
	ProofID        string
	ObservedAtUnix int64
	RecordedAt     time.Time
}

// ObservedAt returns the observation time of the snapshot.
func (s Snapshot) ObservedAt() time.Time {
	return time.Unix(s.ObservedAtUnix, 0).UTC()
}

// LookupIdempotency returns the stored response for key scoped to caller.
func (s *Storage) LookupIdempotency(ctx context.Context, key, caller string) (IdempotencyKey, bool, error) {
	if s == nil {
		return IdempotencyKey{}, false, fmt.Errorf("storage not configured")
	}
	var rows []IdempotencyKey
	err := s.db.WithContext(ctx).
		Where("key = ? AND caller = ?", key, strings.ToLower(caller)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return IdempotencyKey{}, false, fmt.Errorf("query idempotency key: %w", err)
	}
	if len(rows) == 0 {
		return IdempotencyKey{}, false, nil
	}
	return rows[0], true, nil
}

// SaveIdempotency stores the first response for a key. Later saves for the
// same key and caller are ignored.
func (s *Storage) SaveIdempotency(ctx context.Context, record IdempotencyKey) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	record.Caller = strings.ToLower(record.Caller)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("save idempotency key: %w", err)
	}
	return nil
}

// PruneIdempotency removes keys created before cutoff.
func (s *Storage) PruneIdempotency(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("storage not configured")
	}
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&IdempotencyKey{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune idempotency keys: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RecordAuditRun persists the outcome of an export.
func (s *Storage) RecordAuditRun(ctx context.Context, run AuditRun) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("record audit run: %w", err)
	}
	return nil
}

// AuditRuns returns the most recent audit runs, newest first.
func (s *Storage) AuditRuns(ctx context.Context, limit int) ([]AuditRun, error) {
	if s == nil {
		return nil, fmt.Errorf("storage not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	var runs []AuditRun
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("query audit runs: %w", err)
	}
	return runs, nil
}

// PairKey returns the canonical "BASE/QUOTE" key.
func PairKey(base, quote string) string {
	b := strings.ToUpper(strings.TrimSpace(base))
	q := strings.ToUpper(strings.TrimSpace(quote))
	if b == "" && q == "" {
		return ""
	}
	return b + "/" + q
}
