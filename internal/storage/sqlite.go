package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "notegram.sqlite3"
const errDBClientNil = "db client is nil"

var ErrRunNotFound = errors.New("run not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Run records one processed file: where it came from, the shape of the
// spectrogram produced and where the outputs were written.
type Run struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Source       string `gorm:"index:idx_run_source" json:"source"`
	SampleRate   int    `json:"sample_rate"`
	BitDepth     int    `json:"bit_depth"`
	WindowLength int    `json:"window_length"`
	Windows      int    `json:"windows"`
	Notes        int    `json:"notes"`
	CropBudget   int    `json:"crop_budget"`
	JSONPath     string `json:"json_path"`
	ImagePath    string `json:"image_path"`
	CreatedAt    time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("NOTEGRAM_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// one writer at a time keeps sqlite from returning SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Run{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterRun stores run under a fresh ID, which it returns. A zero
// CreatedAt is filled in by gorm.
func (c *DBClient) RegisterRun(run *Run) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	run.ID = uuid.NewString()
	if err := c.DB.Create(run).Error; err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	return run.ID, nil
}

func (c *DBClient) GetRun(id string) (*Run, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var run Run
	err := c.DB.Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return &run, nil
}

// ListRuns returns every run, newest first.
func (c *DBClient) ListRuns() ([]Run, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var runs []Run
	if err := c.DB.Order("created_at DESC").Order("id").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// ListRunsBySource returns the runs recorded for one source file.
func (c *DBClient) ListRunsBySource(source string) ([]Run, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var runs []Run
	if err := c.DB.Where("source = ?", source).Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs for %s: %w", source, err)
	}
	return runs, nil
}

func (c *DBClient) DeleteRun(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}

	res := c.DB.Where("id = ?", id).Delete(&Run{})
	if res.Error != nil {
		return fmt.Errorf("deleting run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func (c *DBClient) CountRuns() (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}

	var count int64
	if err := c.DB.Model(&Run{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return int(count), nil
}
