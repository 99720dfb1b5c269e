package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
	telemetryDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/telemetry"
	"github.com/google/uuid"
)

const DownloadPath = "/api/reports/download/"

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	reportName  = regexp.MustCompile(`^[A-Za-z0-9_-]+_(meter|alarm)_[0-9]{14}_[0-9a-f-]{36}\.xlsx$`)
)

// MeterGate resolves a device id and checks telemetry visibility.
type MeterGate interface {
	AuthorizeMeter(ctx context.Context, p *auth.Principal, deviceID string) (*meterDatamodel.Meter, error)
}

type RowReader interface {
	Rows(ctx context.Context, meterID int64, start, end time.Time, limit int) ([]*telemetryDatamodel.MeterData, error)
}

type Service struct {
	gate     MeterGate
	reader   RowReader
	blobs    BlobStore
	registry Registry
	policy   *auth.Policy
	cfg      internal.ReportsConfig
	baseURL  string
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(gate MeterGate, reader RowReader, blobs BlobStore, registry Registry, policy *auth.Policy, cfg internal.ReportsConfig, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		gate:     gate,
		reader:   reader,
		blobs:    blobs,
		registry: registry,
		policy:   policy,
		cfg:      cfg,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Generate renders the window into a workbook, stores it and registers a
// single-use download.
func (s *Service) Generate(ctx context.Context, p *auth.Principal, kind Kind, dto GenerateDTO) (*Result, error) {
	if err := s.policy.Allow(p, auth.ActionReportsGenerate, nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	start, end, appErr := dto.Window(now, s.cfg.DefaultWindow)
	if appErr != nil {
		return nil, appErr
	}

	m, err := s.gate.AuthorizeMeter(ctx, p, strings.TrimSpace(dto.MeterID))
	if err != nil {
		return nil, err
	}

	rows, err := s.reader.Rows(ctx, m.ID, start, end, s.cfg.MaxRows)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load meter data", err)
	}
	if kind == KindAlarm {
		rows = WithAlarms(rows)
	}
	if len(rows) == 0 {
		return nil, internal.NewNotFoundError("No data found for the given time range", internal.ErrCodeNoTelemetry)
	}

	var buf *bytes.Buffer
	switch kind {
	case KindAlarm:
		buf, err = AlarmWorkbook(rows)
	default:
		buf, err = MeterWorkbook(rows)
	}
	if err != nil {
		return nil, internal.NewInternalError("Failed to build report", err)
	}

	name := fmt.Sprintf("%s_%s_%s_%s.xlsx", unsafeChars.ReplaceAllString(m.DeviceID, "-"), kind, now.Format("20060102150405"), uuid.NewString())
	if err := s.blobs.Put(ctx, name, buf.Bytes()); err != nil {
		return nil, internal.NewInternalError("Failed to store report", err)
	}
	expiresAt := now.Add(s.cfg.TTL)
	if err := s.registry.Register(ctx, name, expiresAt); err != nil {
		_ = s.blobs.Delete(ctx, name)
		return nil, internal.NewInternalError("Failed to register report", err)
	}

	s.logger.Info("report generated", "file_name", name, "kind", kind, "rows", len(rows), "by", p.ID)
	return &Result{
		FileName:    name,
		DownloadURL: s.baseURL + DownloadPath + name,
		ExpiresAt:   expiresAt,
	}, nil
}

// Download claims name and returns its content. Closing the reader deletes
// the blob, so a name can be fetched once.
func (s *Service) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	notFound := internal.NewNotFoundError("Report not found or already downloaded", internal.ErrCodeReportNotFound)
	if !reportName.MatchString(name) {
		return nil, notFound
	}

	ok, err := s.registry.Claim(ctx, name, s.now())
	if err != nil {
		return nil, internal.NewInternalError("Failed to claim report", err)
	}
	if !ok {
		return nil, notFound
	}

	body, err := s.blobs.Open(ctx, name)
	if errors.Is(err, ErrBlobNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, internal.NewInternalError("Failed to open report", err)
	}
	return &claimedBlob{ReadCloser: body, ctx: ctx, name: name, svc: s}, nil
}

type claimedBlob struct {
	io.ReadCloser
	ctx  context.Context
	name string
	svc  *Service
}

func (b *claimedBlob) Close() error {
	err := b.ReadCloser.Close()
	if derr := b.svc.blobs.Delete(context.WithoutCancel(b.ctx), b.name); derr != nil {
		b.svc.logger.Error("failed to delete downloaded report", "file_name", b.name, "error", derr)
	}
	return err
}

// Sweep deletes the blobs of expired registrations and returns how many went.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	names, err := s.registry.Expired(ctx, s.now())
	for _, name := range names {
		if derr := s.blobs.Delete(ctx, name); derr != nil {
			s.logger.Error("failed to delete expired report", "file_name", name, "error", derr)
		}
	}
	if len(names) > 0 {
		s.logger.Info("expired reports removed", "count", len(names))
	}
	return len(names), err
}

// RunJanitor sweeps every interval until ctx is cancelled.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("report sweep failed", "error", err)
			}
		}
	}
}
