package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
	"github.com/i474232898/itinerary-elevation/internal/store"
)

// ReportModel is the GORM model for the elevation_reports table.
type ReportModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Itinerary    string          `gorm:"size:200;not null;index:idx_reports_itinerary_ts,priority:1"`
	Provider     string          `gorm:"size:50;not null"`
	Timestamp    time.Time       `gorm:"not null;index:idx_reports_itinerary_ts,priority:2"`
	TotalPoints  int             `gorm:"not null"`
	SuccessCount int             `gorm:"not null"`
	FailCount    int             `gorm:"not null"`
	Records      json.RawMessage `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ReportModel) TableName() string {
	return "elevation_reports"
}

// Open connects to PostgreSQL and migrates the reports table.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&ReportModel{}); err != nil {
		return nil, fmt.Errorf("migrate elevation_reports: %w", err)
	}
	return db, nil
}

// GormReportRepository persists elevation reports with GORM. It is used as a
// report sink and to warm the in-memory store at startup.
type GormReportRepository struct {
	db *gorm.DB
}

// NewGormReportRepository creates a new GormReportRepository.
func NewGormReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{db: db}
}

// Publish implements elevation.ReportSink by inserting the report.
func (r *GormReportRepository) Publish(ctx context.Context, report elevation.ElevationReport) error {
	model, err := toReportModel(report)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert elevation report: %w", err)
	}
	return nil
}

// FindLatest returns the newest report of an itinerary.
func (r *GormReportRepository) FindLatest(ctx context.Context, itinerary string) (elevation.ElevationReport, error) {
	var model ReportModel
	err := r.db.WithContext(ctx).
		Where("itinerary = ?", itinerary).
		Order("timestamp DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return elevation.ElevationReport{}, store.ErrNotFound
		}
		return elevation.ElevationReport{}, err
	}
	return toReport(&model)
}

// FindRange returns the reports of an itinerary between from and to (inclusive), oldest first.
func (r *GormReportRepository) FindRange(ctx context.Context, itinerary string, from, to time.Time) ([]elevation.ElevationReport, error) {
	var models []ReportModel
	err := r.db.WithContext(ctx).
		Where("itinerary = ? AND timestamp >= ? AND timestamp <= ?", itinerary, from, to).
		Order("timestamp ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, store.ErrNotFound
	}

	reports := make([]elevation.ElevationReport, len(models))
	for i := range models {
		report, err := toReport(&models[i])
		if err != nil {
			return nil, err
		}
		reports[i] = report
	}
	return reports, nil
}

func toReportModel(report elevation.ElevationReport) (ReportModel, error) {
	id, err := uuid.Parse(report.ID)
	if err != nil {
		id = uuid.New()
	}
	records := report.Records
	if records == nil {
		records = []elevation.ElevationRecord{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return ReportModel{}, fmt.Errorf("encode records: %w", err)
	}
	return ReportModel{
		ID:           id,
		Itinerary:    report.Itinerary,
		Provider:     report.Provider,
		Timestamp:    report.Timestamp.UTC(),
		TotalPoints:  report.TotalPoints,
		SuccessCount: report.SuccessCount,
		FailCount:    report.FailCount,
		Records:      raw,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func toReport(m *ReportModel) (elevation.ElevationReport, error) {
	var records []elevation.ElevationRecord
	if err := json.Unmarshal(m.Records, &records); err != nil {
		return elevation.ElevationReport{}, fmt.Errorf("decode records of report %s: %w", m.ID, err)
	}
	return elevation.ElevationReport{
		ID:           m.ID.String(),
		Itinerary:    m.Itinerary,
		Provider:     m.Provider,
		Timestamp:    m.Timestamp.UTC(),
		TotalPoints:  m.TotalPoints,
		SuccessCount: m.SuccessCount,
		FailCount:    m.FailCount,
		Records:      records,
	}, nil
}
