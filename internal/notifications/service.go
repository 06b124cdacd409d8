package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
)

const defaultRetryBatch = 200

type deliverer interface {
	Deliver(ctx context.Context, delivery models.NotificationDelivery) (enums.DeliveryStatus, error)
}

// ServiceParams wires the notification service.
type ServiceParams struct {
	Repo       Repository
	Catalog    *Catalog
	Dispatcher deliverer
	Logger     *logger.Logger
	Now        func() time.Time
	RetryBatch int
}

// Service turns notification requests into persisted deliveries and sends them.
type Service struct {
	repo       Repository
	catalog    *Catalog
	dispatcher deliverer
	logg       *logger.Logger
	now        func() time.Time
	retryBatch int
}

// NewService validates params and returns a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("template catalog required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	batch := params.RetryBatch
	if batch <= 0 {
		batch = defaultRetryBatch
	}
	return &Service{
		repo:       params.Repo,
		catalog:    params.Catalog,
		dispatcher: params.Dispatcher,
		logg:       params.Logger,
		now:        now,
		retryBatch: batch,
	}, nil
}

// DispatchReport counts delivery outcomes.
type DispatchReport struct {
	Deliveries int `json:"deliveries"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Dead       int `json:"dead"`
	Skipped    int `json:"skipped"`
}

func (r *DispatchReport) record(status enums.DeliveryStatus) {
	switch status {
	case enums.DeliveryStatusSent:
		r.Sent++
	case enums.DeliveryStatusFailed:
		r.Failed++
	case enums.DeliveryStatusDead:
		r.Dead++
	default:
		r.Skipped++
	}
}

// HandleRequest records one delivery per recipient and attempts each once.
// Provider failures are kept on the delivery rows for the retry job; only storage failures are returned.
func (s *Service) HandleRequest(ctx context.Context, eventID uuid.UUID, req payloads.NotificationRequestedEvent) (*DispatchReport, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if !s.catalog.Has(req.Template) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown template %s", req.Template)
	}

	rows := make([]models.NotificationDelivery, 0, len(req.Recipients))
	for _, recipient := range req.Recipients {
		if !recipient.Channel.IsValid() || recipient.Address == "" {
			continue
		}
		vars := make(map[string]string, len(req.Vars)+1)
		for k, v := range req.Vars {
			vars[k] = v
		}
		if _, ok := vars["recipient_name"]; !ok {
			vars["recipient_name"] = recipient.Name
		}
		rendered, err := s.catalog.Render(req.Template, recipient.Channel, vars)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "render notification")
		}
		rows = append(rows, models.NotificationDelivery{
			ID:        uuid.New(),
			EventID:   eventID,
			AgencyID:  req.AgencyID,
			Template:  string(req.Template),
			Channel:   recipient.Channel,
			Recipient: recipient.Address,
			Subject:   rendered.Subject,
			Body:      rendered.Body,
			Status:    enums.DeliveryStatusPending,
			CreatedAt: s.now().UTC(),
		})
	}
	if err := s.repo.CreateIgnoreDuplicates(ctx, rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record deliveries")
	}

	// redelivered events find the rows written by the first attempt
	persisted, err := s.repo.ListForEvent(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load deliveries")
	}
	report, errs := s.dispatch(ctx, persisted)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":   eventID.String(),
		"template":   req.Template,
		"deliveries": report.Deliveries,
		"sent":       report.Sent,
		"failed":     report.Failed,
		"dead":       report.Dead,
	})
	if errs != nil {
		s.logg.Error(logCtx, "notification request dispatched with errors", errs)
		return report, pkgerrors.Wrap(pkgerrors.CodeInternal, errs, "dispatch deliveries")
	}
	s.logg.Info(logCtx, "notification request dispatched")
	return report, nil
}

// RetryDue resends pending and failed deliveries whose backoff has elapsed.
func (s *Service) RetryDue(ctx context.Context) (*DispatchReport, error) {
	due, err := s.repo.ListDue(ctx, s.now().UTC(), s.retryBatch)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list due deliveries")
	}
	report, errs := s.dispatch(ctx, due)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"deliveries": report.Deliveries,
		"sent":       report.Sent,
		"failed":     report.Failed,
		"dead":       report.Dead,
	})
	if errs != nil {
		s.logg.Error(logCtx, "notification retry finished with errors", errs)
		return report, pkgerrors.Wrap(pkgerrors.CodeInternal, errs, "retry deliveries")
	}
	s.logg.Info(logCtx, "notification retry complete")
	return report, nil
}

// PurgeSent deletes delivered rows older than cutoff.
func (s *Service) PurgeSent(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete sent deliveries")
	}
	return deleted, nil
}

func (s *Service) dispatch(ctx context.Context, deliveries []models.NotificationDelivery) (*DispatchReport, error) {
	report := &DispatchReport{}
	var errs error
	for _, delivery := range deliveries {
		if delivery.Status != enums.DeliveryStatusPending && delivery.Status != enums.DeliveryStatusFailed {
			continue
		}
		report.Deliveries++
		status, err := s.dispatcher.Deliver(ctx, delivery)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delivery %s: %w", delivery.ID, err))
			continue
		}
		report.record(status)
	}
	return report, errs
}
