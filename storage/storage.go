package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/finchinslc/openclaw-board/domain"
)

// DefaultDSN is used when no database URL is configured.
const DefaultDSN = "openclaw.db"

// Config describes how to open the relational store.
type Config struct {
	DSN           string
	Logger        *log.Logger
	SlowThreshold time.Duration
}

// Storage provides access to the relational task store.
type Storage struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to the database named by cfg.DSN. postgres:// and
// postgresql:// URLs select the postgres driver, anything else is treated
// as a sqlite path.
func Open(cfg Config) (*Storage, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = DefaultDSN
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	level := gormlogger.Warn
	if logger.IsLevelEnabled(log.DebugLevel) {
		level = gormlogger.Info
	}

	dialector, isSQLite := dialectorFor(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}
	if isSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}
	return &Storage{db: db, now: time.Now}, nil
}

func dialectorFor(dsn string) (gorm.Dialector, bool) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn), false
	}
	return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), true
}

// Migrate creates or updates the schema.
func (s *Storage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&taskRow{},
		&subtaskRow{},
		&commentRow{},
		&activityRow{},
		&statusHistoryRow{},
		&attachmentRow{},
		&taskBlockRow{},
	)
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Storage) clock() time.Time {
	return s.now().UTC()
}

// translate maps gorm errors onto domain sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case isDuplicate(err):
		return domain.ErrConflict
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
