// Package journal keeps an audit trail of relay dispatches in a SQL database.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	relay "github.com/metaswap/relay/go"
)

// Supported drivers
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// ErrNotFound is returned when no record matches
var ErrNotFound = errors.New("dispatch record not found")

// DispatchRecord is one dispatched operation and its outcome
type DispatchRecord struct {
	gorm.Model
	Operation    string `gorm:"size:64;index"`
	Path         string `gorm:"size:16"`
	ChainID      string `gorm:"size:78"`
	From         string `gorm:"size:42;index:idx_from_nonce"`
	Nonce        string `gorm:"size:78;index:idx_from_nonce"`
	FeeToken     string `gorm:"size:42"`
	MaxTokenFee  string `gorm:"size:78"`
	GasLimit     uint64
	GasPrice     string `gorm:"size:78"`
	Success      bool
	TxnHash      string `gorm:"size:66;index"`
	ErrorMessage string `gorm:"size:1024"`
	ErrorCode    string `gorm:"size:64"`
	DurationMs   int64
	DispatchedAt time.Time
}

// Store writes and queries dispatch records
type Store struct {
	db *gorm.DB
}

// Open connects with driver and dsn and migrates the schema
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverMySQL, "":
		dialector = mysql.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// a second connection to :memory: would see an empty database
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

// New wraps an open database and migrates the schema
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&DispatchRecord{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordResult stores a dispatch that produced a Response
func (s *Store) RecordResult(ctx context.Context, rc relay.DispatchResultContext) error {
	rec := newRecord(rc.DispatchContext, rc.Duration)
	if rc.Response != nil {
		rec.Success = rc.Response.Result.Success
		rec.TxnHash = rc.Response.Result.TxnHash
		rec.ErrorMessage = rc.Response.Result.ErrorMessage
	}
	if !rec.Success {
		rec.ErrorCode = relay.ErrCodeRelayExecution
		if rc.Path == relay.PathDirect {
			rec.ErrorCode = relay.ErrCodeDirectSubmission
		}
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// RecordFailure stores a dispatch that ended in an error
func (s *Store) RecordFailure(ctx context.Context, fc relay.DispatchFailureContext) error {
	rec := newRecord(fc.DispatchContext, fc.Duration)
	rec.ErrorCode = relay.ErrorCode(fc.Error)
	if fc.Error != nil {
		rec.ErrorMessage = fc.Error.Error()
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// Recent returns up to limit records, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]DispatchRecord, error) {
	var records []DispatchRecord
	err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&records).Error
	return records, err
}

// ByTxnHash returns the record carrying hash
func (s *Store) ByTxnHash(ctx context.Context, hash string) (*DispatchRecord, error) {
	var rec DispatchRecord
	err := s.db.WithContext(ctx).Where("txn_hash = ?", hash).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ByNonce returns every attempt made by from with nonce, oldest first
func (s *Store) ByNonce(ctx context.Context, from, nonce string) ([]DispatchRecord, error) {
	var records []DispatchRecord
	err := s.db.WithContext(ctx).Where(&DispatchRecord{From: from, Nonce: nonce}).Order("id").Find(&records).Error
	return records, err
}

// ClientOptions wires the journal into a relay client. Write failures are
// reported to the client, which logs and ignores them.
func (s *Store) ClientOptions() []relay.ClientOption {
	return []relay.ClientOption{
		relay.WithAfterDispatchHook(func(rc relay.DispatchResultContext) error {
			return s.RecordResult(hookContext(rc.Ctx), rc)
		}),
		relay.WithDispatchFailureHook(func(fc relay.DispatchFailureContext) error {
			return s.RecordFailure(hookContext(fc.Ctx), fc)
		}),
	}
}

func hookContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	// the record outlives a cancelled request
	return context.WithoutCancel(ctx)
}

func newRecord(dc relay.DispatchContext, duration time.Duration) *DispatchRecord {
	rec := &DispatchRecord{
		Operation:    dc.Operation,
		Path:         dc.Path,
		From:         dc.From,
		FeeToken:     dc.Fee.Token,
		GasLimit:     dc.GasLimit,
		DurationMs:   duration.Milliseconds(),
		DispatchedAt: dc.Timestamp,
	}
	if dc.ChainID != nil {
		rec.ChainID = dc.ChainID.String()
	}
	if dc.Nonce != nil {
		rec.Nonce = dc.Nonce.String()
	}
	if dc.Fee.MaxTokenFee != nil {
		rec.MaxTokenFee = dc.Fee.MaxTokenFee.String()
	}
	if dc.GasPrice != nil {
		rec.GasPrice = dc.GasPrice.String()
	}
	return rec
}
