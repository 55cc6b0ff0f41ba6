package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/pkg/logger"
)

// DefaultHistoryLimit caps GetBalanceSnapshots when no limit is given.
const DefaultHistoryLimit = 50

type HistoryDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

// NewPostgresDB connects to PostgreSQL and migrates the history tables.
func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	db, err := NewHistoryDB(postgres.Open(dsn), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return db, nil
}

// NewHistoryDB opens the history store on any gorm dialector.
func NewHistoryDB(dialector gorm.Dialector, logger *logger.Logger) (*HistoryDB, error) {
	// Configure GORM logger to suppress "record not found" messages and to
	// write through our logger, so it follows LOG_FILE.
	gormLogger := gormLogger.New(
		logger,
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&models.Session{}, &models.BalanceSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return &HistoryDB{Conn: db, logger: logger}, nil
}

func (db *HistoryDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func (db *HistoryDB) OpenSession(session *models.Session) error {
	if err := db.Conn.Create(session).Error; err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	db.logger.Debug("Session opened ", "id ", session.ID, " account ", session.Account)
	return nil
}

func (db *HistoryDB) CloseSession(id int64, timestamp int64) error {
	res := db.Conn.Model(&models.Session{}).
		Where("id = ? AND disconnected_at = ?", id, 0).
		Update("disconnected_at", timestamp)
	if res.Error != nil {
		return fmt.Errorf("failed to close session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to close session %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

func (db *HistoryDB) GetOpenSessions() ([]*models.Session, error) {
	var sessions []*models.Session
	if err := db.Conn.Where("disconnected_at = ?", 0).Order("connected_at").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to get open sessions: %w", err)
	}
	return sessions, nil
}

func (db *HistoryDB) AddBalanceSnapshot(snapshot *models.BalanceSnapshot) error {
	if err := db.Conn.Create(snapshot).Error; err != nil {
		return fmt.Errorf("failed to add balance snapshot: %w", err)
	}
	return nil
}

// GetBalanceSnapshots returns the latest snapshots for account, newest first.
func (db *HistoryDB) GetBalanceSnapshots(account string, limit int) ([]*models.BalanceSnapshot, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var snapshots []*models.BalanceSnapshot
	if err := db.Conn.Where("account = ?", account).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to get balance snapshots: %w", err)
	}
	return snapshots, nil
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
