package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/authz"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/logging"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/session"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/storage"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

const (
	exportPrefix      = "exports/"
	exportContentType = "text/csv"
)

// ObjectStore is the subset of object storage used for exports.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]storage.Object, error)
}

// ExportService writes filtered log listings to object storage as CSV.
type ExportService struct {
	repo    LogRepository
	objects ObjectStore
	log     logging.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService. objects may be nil, in which
// case every call returns ErrExportDisabled.
func NewExportService(repo LogRepository, objects ObjectStore, log logging.Logger) *ExportService {
	return &ExportService{
		repo:    repo,
		objects: objects,
		log:     log.With("service", "exports"),
		now:     time.Now,
	}
}

// ExportResult describes a stored export.
type ExportResult struct {
	Key  string `json:"key"`
	Rows int    `json:"rows"`
}

var exportHeader = []string{
	"id", "server_name", "maintenance_date", "start_time", "end_time",
	"maintenance_type", "status", "description", "outcome",
	"performed_by", "performed_by_name", "created_at", "updated_at",
}

// Export renders every log matching filter, newest maintenance first, and
// stores the CSV. Admins only.
func (s *ExportService) Export(ctx context.Context, sess session.Session, filter types.LogFilter) (ExportResult, error) {
	if err := authz.RequireExport(sess); err != nil {
		return ExportResult{}, err
	}
	if s.objects == nil {
		return ExportResult{}, ErrExportDisabled
	}

	logs, err := s.repo.List(ctx, filter, types.Page{}, "maintenance_date", types.OrderDesc)
	if err != nil {
		s.log.Error(ctx, "list logs for export failed", "err", err)
		return ExportResult{}, fmt.Errorf("%w: %v", ErrStore, err)
	}

	data, err := renderCSV(logs)
	if err != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", ErrStore, err)
	}

	now := s.now()
	key := exportPrefix + now.Format("20060102") + "-" + uuid.NewString() + ".csv"
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), exportContentType); err != nil {
		s.log.Error(ctx, "store export failed", "key", key, "err", err)
		return ExportResult{}, fmt.Errorf("%w: %v", ErrStore, err)
	}

	s.log.Info(ctx, "export stored", "key", key, "rows", len(logs), "user_id", sess.UserID)
	return ExportResult{Key: key, Rows: len(logs)}, nil
}

// Open streams a stored export back. The caller closes the reader.
func (s *ExportService) Open(ctx context.Context, sess session.Session, key string) (io.ReadCloser, error) {
	if err := authz.RequireExport(sess); err != nil {
		return nil, err
	}
	if s.objects == nil {
		return nil, ErrExportDisabled
	}
	if !validExportKey(key) {
		return nil, invalid("key", "Invalid export key")
	}
	r, err := s.objects.Get(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.log.Error(ctx, "open export failed", "key", key, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return r, nil
}

// ExportInfo describes an export already in storage.
type ExportInfo struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the stored exports, newest first.
func (s *ExportService) List(ctx context.Context, sess session.Session) ([]ExportInfo, error) {
	if err := authz.RequireExport(sess); err != nil {
		return nil, err
	}
	if s.objects == nil {
		return nil, ErrExportDisabled
	}
	objects, err := s.objects.List(ctx, exportPrefix)
	if err != nil {
		s.log.Error(ctx, "list exports failed", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	exports := make([]ExportInfo, 0, len(objects))
	for _, obj := range objects {
		if !validExportKey(obj.Key) {
			continue
		}
		exports = append(exports, ExportInfo{Key: obj.Key, Size: obj.Size, CreatedAt: obj.ModifiedAt})
	}
	return exports, nil
}

func validExportKey(key string) bool {
	if !strings.HasPrefix(key, exportPrefix) || !strings.HasSuffix(key, ".csv") {
		return false
	}
	return path.Clean(key) == key && !strings.Contains(key, "..")
}

func renderCSV(logs []types.MaintenanceLog) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, entry := range logs {
		record := []string{
			strconv.Itoa(entry.ID),
			entry.ServerName,
			entry.MaintenanceDate.Format(types.DateLayout),
			timeOfDayCell(entry.StartTime),
			timeOfDayCell(entry.EndTime),
			string(entry.MaintenanceType),
			string(entry.Status),
			entry.Description,
			stringCell(entry.Outcome),
			strconv.Itoa(entry.PerformedBy),
			stringCell(entry.PerformedByName),
			entry.CreatedAt.Format(time.RFC3339),
			entry.UpdatedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func timeOfDayCell(t *types.TimeOfDay) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func stringCell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
