package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fabriqs/wedding-pix/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Open connects gorm to a sqlite file or a postgres server.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if driver == DriverPostgres {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

type activePayment struct {
	Slot        string `gorm:"primaryKey"`
	PaymentID   string
	Code        string
	ImageData   string
	ExpiresAt   time.Time
	TotalAmount int64
	SavedAt     int64
	UpdatedAt   time.Time
}

func (activePayment) TableName() string {
	return "active_payments"
}

// GormRepository stores the slot as a single row keyed by SlotKey.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Save(ctx context.Context, record Record) error {
	row := activePayment{
		Slot:        SlotKey,
		PaymentID:   record.PaymentData.ID,
		Code:        record.PaymentData.Code,
		ImageData:   record.PaymentData.ImageData,
		ExpiresAt:   record.PaymentData.ExpiresAt.UTC(),
		TotalAmount: record.TotalAmount,
		SavedAt:     record.Timestamp,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save active payment: %w", err)
	}
	return nil
}

func (r *GormRepository) Load(ctx context.Context) (*Record, error) {
	var row activePayment
	err := r.db.WithContext(ctx).First(&row, "slot = ?", SlotKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active payment: %w", err)
	}

	record := Record{
		PaymentData: PaymentData{
			ID:        row.PaymentID,
			Code:      row.Code,
			ImageData: row.ImageData,
			ExpiresAt: row.ExpiresAt,
		},
		TotalAmount: row.TotalAmount,
		Timestamp:   row.SavedAt,
	}
	if !record.Valid() {
		logger.Warn("Discarding active payment without id", map[string]interface{}{"slot": SlotKey})
		return nil, r.Clear(ctx)
	}
	return &record, nil
}

func (r *GormRepository) Clear(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Delete(&activePayment{}, "slot = ?", SlotKey).Error; err != nil {
		return fmt.Errorf("clear active payment: %w", err)
	}
	return nil
}
