package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to softphone
//   clients by default.
// - The typed Log helpers are best-effort: a failed append is logged and
//   swallowed so device flows never block on audit.

type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogVendorSelected records a selection change. An empty vendor means the
// selection was cleared.
func (s *Service) LogVendorSelected(ctx context.Context, vendor string) {
	s.best(ctx, Event{
		Type:    EventTypeVendorSelected,
		Vendor:  vendor,
		Message: "vendor selection changed",
	})
}

// LogConnectFailed records a failed adapter connect attempt.
func (s *Service) LogConnectFailed(ctx context.Context, vendor string, err error) {
	msg := "connect failed"
	if err != nil {
		msg = err.Error()
	}
	s.best(ctx, Event{
		Type:    EventTypeConnectFailed,
		Vendor:  vendor,
		Message: msg,
	})
}

// LogDeviceAttached records a device attach or detach.
func (s *Service) LogDeviceAttached(ctx context.Context, vendor, deviceID string, attached bool) {
	t := EventTypeDeviceAttached
	msg := "device attached"
	if !attached {
		t = EventTypeDeviceDetached
		msg = "device detached"
	}
	s.best(ctx, Event{
		Type:     t,
		Vendor:   vendor,
		DeviceID: deviceID,
		Message:  msg,
	})
}

func (s *Service) best(ctx context.Context, e Event) {
	if err := s.Append(ctx, e); err != nil {
		s.log.Warn("audit append failed", "type", e.Type, "err", err)
	}
}
