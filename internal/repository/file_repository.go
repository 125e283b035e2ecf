package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// FileTicketRepository stores all tickets as one JSON array on disk. Every
// mutation is a read-modify-write of the whole file under a mutex.
type FileTicketRepository struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFileTicketRepository prepares the data file, creating it (and its
// directory) when missing and resetting it when empty or not valid JSON.
func NewFileTicketRepository(path string, logger *zap.Logger) (*FileTicketRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &FileTicketRepository{path: path, logger: logger}
	if err := r.init(); err != nil {
		return nil, err
	}
	logger.Info("file datastore initialized", zap.String("path", path))
	return r, nil
}

func (r *FileTicketRepository) init() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	content, err := os.ReadFile(r.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return r.write(nil)
	case err != nil:
		return fmt.Errorf("read data file: %w", err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return r.write(nil)
	}
	var decoded []domain.TicketRecord
	if err := json.Unmarshal(content, &decoded); err != nil {
		r.logger.Warn("invalid JSON in data file, resetting", zap.String("path", r.path), zap.Error(err))
		return r.write(nil)
	}
	return nil
}

func (r *FileTicketRepository) read() ([]domain.TicketRecord, error) {
	content, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}
	var records []domain.TicketRecord
	if err := json.Unmarshal(content, &records); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}
	return records, nil
}

// write replaces the file through a temp file so readers never see a
// partially written array.
func (r *FileTicketRepository) write(records []domain.TicketRecord) error {
	if records == nil {
		records = []domain.TicketRecord{}
	}
	content, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write data file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write data file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write data file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write data file: %w", err)
	}
	return nil
}

func (r *FileTicketRepository) FindByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.read()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return domain.Reconstruct(rec), nil
		}
	}
	return nil, nil
}

func (r *FileTicketRepository) FindAll(ctx context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.read()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Ticket, 0, len(records))
	for _, rec := range records {
		out = append(out, *domain.Reconstruct(rec))
	}
	return out, nil
}

func (r *FileTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.read()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == ticket.ID {
			return nil, fmt.Errorf("ticket %s already exists", ticket.ID)
		}
	}
	records = append(records, ticket.Record())
	if err := r.write(records); err != nil {
		return nil, err
	}
	return ticket.Clone(), nil
}

func (r *FileTicketRepository) Update(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.read()
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		if rec.ID != id {
			continue
		}
		ticket := domain.Reconstruct(rec)
		if !patch.Matches(ticket) {
			return nil, nil
		}
		patch.Apply(ticket)
		records[i] = ticket.Record()
		if err := r.write(records); err != nil {
			return nil, err
		}
		return ticket, nil
	}
	return nil, nil
}

// UpdatePositions rewrites the file once for the whole batch.
func (r *FileTicketRepository) UpdatePositions(ctx context.Context, assignments []domain.PositionAssignment, touchedAt *time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.read()
	if err != nil {
		return 0, err
	}
	index := make(map[string]int, len(records))
	for i, rec := range records {
		index[rec.ID] = i
	}
	updated := 0
	for _, a := range assignments {
		i, ok := index[a.TicketID]
		if !ok {
			continue
		}
		ticket := domain.Reconstruct(records[i])
		if !assignmentMatches(a, ticket) {
			continue
		}
		pos := a.Position
		TicketPatch{Position: &pos, UpdatedAt: touchedAt}.Apply(ticket)
		records[i] = ticket.Record()
		updated++
	}
	if updated == 0 {
		return 0, nil
	}
	if err := r.write(records); err != nil {
		return 0, err
	}
	return updated, nil
}
