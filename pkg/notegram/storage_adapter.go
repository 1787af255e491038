package notegram

import (
	"github.com/himanishpuri/NoteGram/internal/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) RegisterRun(run Run) (string, error) {
	return s.db.RegisterRun(&storage.Run{
		Source:       run.Source,
		SampleRate:   run.SampleRate,
		BitDepth:     run.BitDepth,
		WindowLength: run.WindowLength,
		Windows:      run.Windows,
		Notes:        run.Notes,
		CropBudget:   run.CropBudget,
		JSONPath:     run.JSONPath,
		ImagePath:    run.ImagePath,
		CreatedAt:    run.CreatedAt,
	})
}

func (s *storageAdapter) GetRun(id string) (*Run, error) {
	dbRun, err := s.db.GetRun(id)
	if err != nil {
		return nil, err
	}
	run := fromStorage(*dbRun)
	return &run, nil
}

func (s *storageAdapter) ListRuns() ([]Run, error) {
	dbRuns, err := s.db.ListRuns()
	if err != nil {
		return nil, err
	}

	runs := make([]Run, len(dbRuns))
	for i, r := range dbRuns {
		runs[i] = fromStorage(r)
	}
	return runs, nil
}

func (s *storageAdapter) DeleteRun(id string) error {
	return s.db.DeleteRun(id)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func fromStorage(r storage.Run) Run {
	return Run{
		ID:           r.ID,
		Source:       r.Source,
		SampleRate:   r.SampleRate,
		BitDepth:     r.BitDepth,
		WindowLength: r.WindowLength,
		Windows:      r.Windows,
		Notes:        r.Notes,
		CropBudget:   r.CropBudget,
		JSONPath:     r.JSONPath,
		ImagePath:    r.ImagePath,
		CreatedAt:    r.CreatedAt,
	}
}
