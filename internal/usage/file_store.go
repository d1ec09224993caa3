package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/benvon/focus-companion/internal/fsutil"
	"github.com/benvon/focus-companion/internal/models"
	"go.uber.org/zap"
)

// DefaultUsageFile is where the file store keeps its document.
const DefaultUsageFile = "data/usage_tracking.json"

// FileStore keeps the usage record in a JSON file. A process-wide mutex makes
// each Update atomic; writes go through a temp file and rename.
type FileStore struct {
	path   string
	mu     sync.Mutex
	now    func() time.Time
	logger *zap.Logger
}

// NewFileStore creates a file store at path (DefaultUsageFile when empty).
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if path == "" {
		path = DefaultUsageFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, now: time.Now, logger: logger}
}

// SetLocation stamps the reset keys of fresh records in loc.
func (s *FileStore) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	base := s.now
	s.now = func() time.Time { return base().In(loc) }
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the current record.
func (s *FileStore) Load(_ context.Context) (*models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() (*models.UsageRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.NewUsageRecord(s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read usage file: %w", err)
	}

	var rec models.UsageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("usage_state_corrupt_starting_fresh",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return models.NewUsageRecord(s.now()), nil
	}
	rec.Normalize()
	return &rec, nil
}

// Update applies fn under the store lock and writes the result.
func (s *FileStore) Update(_ context.Context, fn func(*models.UsageRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("write usage file: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}
