package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/incidentdesk/apiserver/internal/logger"
	"github.com/incidentdesk/apiserver/internal/metrics"
	"github.com/incidentdesk/apiserver/types"
)

// UnknownActor is stored as the actor name when the acting user cannot be
// resolved at write time.
const UnknownActor = "unknown user"

// DefaultAuditChannel is the queue/topic audit events are published to.
const DefaultAuditChannel = "audit.records"

// AuditRepository defines persistence operations for the audit log.
type AuditRepository interface {
	Append(ctx context.Context, record types.AuditRecord) (types.AuditRecord, error)
	List(ctx context.Context, filter types.AuditFilter) ([]types.AuditRecord, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]types.AuditRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActorLookup resolves a principal id to its current account.
type ActorLookup interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// EventPublisher sends audit events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ArchiveStore receives audit records before they are purged.
type ArchiveStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// AuditEntry describes a completed mutation. ActorID is the principal id;
// the service resolves the display name.
type AuditEntry struct {
	ResourceID   string
	ResourceType string
	Action       string
	Description  string
	ActorID      string
}

// AuditService writes and reads the append-only audit log.
type AuditService struct {
	repo          AuditRepository
	users         ActorLookup
	publisher     EventPublisher
	channel       string
	archive       ArchiveStore
	archivePrefix string
	logger        *slog.Logger
	now           func() time.Time
}

type AuditOption func(*AuditService)

// WithPublisher publishes every appended record to channel.
func WithPublisher(p EventPublisher, channel string) AuditOption {
	return func(s *AuditService) {
		s.publisher = p
		if strings.TrimSpace(channel) != "" {
			s.channel = channel
		}
	}
}

// WithArchive makes purges copy the records to object storage first.
func WithArchive(a ArchiveStore, prefix string) AuditOption {
	return func(s *AuditService) {
		s.archive = a
		if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
			s.archivePrefix = p
		}
	}
}

func WithAuditLogger(l *slog.Logger) AuditOption {
	return func(s *AuditService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithAuditClock(now func() time.Time) AuditOption {
	return func(s *AuditService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAuditService(repo AuditRepository, users ActorLookup, opts ...AuditOption) *AuditService {
	s := &AuditService{
		repo:          repo,
		users:         users,
		channel:       DefaultAuditChannel,
		archivePrefix: "audit-archive",
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends one audit record for a mutation that has already been
// committed. It never fails the caller: lookup, write and publish errors are
// logged and counted.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	log := logger.FromContext(ctx, s.logger)

	actor := UnknownActor
	if entry.ActorID != "" && s.users != nil {
		user, err := s.users.GetByID(ctx, entry.ActorID)
		if err != nil {
			log.Warn("resolve audit actor", "actor_id", entry.ActorID, "error", err)
		} else if name := strings.TrimSpace(user.Name); name != "" {
			actor = name
		}
	}

	record := types.AuditRecord{
		ResourceID:   entry.ResourceID,
		ResourceType: entry.ResourceType,
		Action:       entry.Action,
		Description:  entry.Description,
		Actor:        actor,
		Timestamp:    s.now().UTC(),
	}

	saved, err := s.repo.Append(ctx, record)
	if err != nil {
		metrics.AuditWritesTotal.WithLabelValues("failed").Inc()
		log.Error("write audit record",
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"action", entry.Action,
			"error", err,
		)
		return
	}
	metrics.AuditWritesTotal.WithLabelValues("ok").Inc()
	s.publish(ctx, log, saved)
}

// RecordManual appends a caller-supplied record. The timestamp is always
// assigned by the server.
func (s *AuditService) RecordManual(ctx context.Context, record types.AuditRecord) (types.AuditRecord, error) {
	record.ID = ""
	record.ResourceID = strings.TrimSpace(record.ResourceID)
	record.ResourceType = strings.TrimSpace(record.ResourceType)
	record.Action = strings.TrimSpace(record.Action)
	record.Actor = strings.TrimSpace(record.Actor)
	if record.ResourceID == "" || record.ResourceType == "" || record.Action == "" || record.Actor == "" {
		return types.AuditRecord{}, fmt.Errorf("%w: resourceId, resourceType, action and actor are required", ErrValidation)
	}
	record.Timestamp = s.now().UTC()

	saved, err := s.repo.Append(ctx, record)
	if err != nil {
		metrics.AuditWritesTotal.WithLabelValues("failed").Inc()
		return types.AuditRecord{}, err
	}
	metrics.AuditWritesTotal.WithLabelValues("ok").Inc()
	s.publish(ctx, logger.FromContext(ctx, s.logger), saved)
	return saved, nil
}

// List returns matching records, most recent first.
func (s *AuditService) List(ctx context.Context, filter types.AuditFilter) ([]types.AuditRecord, error) {
	filter.ResourceID = strings.TrimSpace(filter.ResourceID)
	filter.ResourceType = strings.TrimSpace(filter.ResourceType)
	return s.repo.List(ctx, filter)
}

type auditArchive struct {
	Cutoff  time.Time           `json:"cutoff"`
	Records []types.AuditRecord `json:"records"`
}

// PurgeOlderThan deletes records with a timestamp strictly before cutoff and
// returns how many were removed. With an archive configured the records are
// uploaded first and an upload failure aborts the purge.
func (s *AuditService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.archive != nil {
		records, err := s.repo.ListOlderThan(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("list expired audit records: %w", err)
		}
		if len(records) > 0 {
			if err := s.upload(ctx, cutoff, records); err != nil {
				return 0, fmt.Errorf("archive audit records: %w", err)
			}
		}
	}

	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit records: %w", err)
	}
	logger.FromContext(ctx, s.logger).Info("purged audit records", "cutoff", cutoff, "deleted", deleted)
	return deleted, nil
}

func (s *AuditService) upload(ctx context.Context, cutoff time.Time, records []types.AuditRecord) error {
	data, err := json.Marshal(auditArchive{Cutoff: cutoff.UTC(), Records: records})
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s/%s-%s.json", s.archivePrefix, cutoff.UTC().Format(time.RFC3339), uuid.NewString())
	return s.archive.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json")
}

func (s *AuditService) publish(ctx context.Context, log *slog.Logger, record types.AuditRecord) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		log.Error("encode audit event", "error", err)
		return
	}
	attrs := map[string]string{
		"resourceType": record.ResourceType,
		"action":       record.Action,
	}
	if _, err := s.publisher.Publish(ctx, s.channel, data, attrs); err != nil {
		log.Warn("publish audit event", "channel", s.channel, "audit_id", record.ID, "error", err)
	}
}

// Cutoff returns now minus the given number of months and days.
func Cutoff(now time.Time, months, days int) (time.Time, error) {
	if months < 0 || days < 0 {
		return time.Time{}, fmt.Errorf("%w: months and days must not be negative", ErrValidation)
	}
	return now.AddDate(0, -months, -days), nil
}
