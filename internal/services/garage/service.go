// Package garage is the vehicle service lifecycle engine: plate-keyed
// creation, status transitions with a terminal delivery state, and the
// signature gate that closes a delivered service.
package garage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/PlateWorks/ServiceBox/internal/broker/messages"
	"github.com/PlateWorks/ServiceBox/internal/models"
	"github.com/PlateWorks/ServiceBox/internal/plates"
	"github.com/PlateWorks/ServiceBox/internal/storage/pggarage"
	"github.com/PlateWorks/ServiceBox/internal/storage/sigstore"
)

const (
	ensureAttempts = 3
	ensureBackoff  = 100 * time.Millisecond
)

type Repository interface {
	EnsureVehicle(ctx context.Context, plate string) (uint64, error)
	GetVehicle(ctx context.Context, id uint64) (*models.Vehicle, error)
	EnsureMechanic(ctx context.Context, name string) (uint64, error)
	CreateService(ctx context.Context, in pggarage.ServiceCreate) (*models.Service, error)
	GetService(ctx context.Context, id uint64) (*models.Service, error)
	PatchService(ctx context.Context, id uint64, upd pggarage.ServiceUpdate) (*models.Service, error)
	AttachSignature(ctx context.Context, id uint64, url string, signerName *string, signedAt time.Time) (*models.Service, error)
	QueryByPlate(ctx context.Context, plate string) (*models.PlateView, error)
	QueryOpenAcrossFleet(ctx context.Context) ([]*models.PlateView, error)
}

// Sessions is the auth collaborator: a boolean gate in front of every write.
type Sessions interface {
	Authenticated(ctx context.Context, token string) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Options struct {
	SignatureBucket string
	UpdatedTopic    string
}

type Service struct {
	repo     Repository
	sessions Sessions
	blobs    sigstore.Client
	pub      Publisher
	opts     Options
}

func New(repo Repository, sessions Sessions, blobs sigstore.Client, pub Publisher, opts Options) *Service {
	if opts.SignatureBucket == "" {
		opts.SignatureBucket = "signatures"
	}
	if opts.UpdatedTopic == "" {
		opts.UpdatedTopic = "service.updated"
	}
	return &Service{repo: repo, sessions: sessions, blobs: blobs, pub: pub, opts: opts}
}

// Create opens a new service for a plate. Fails when the vehicle already has
// an open one; the store's partial unique index is the arbiter, so two
// concurrent creates cannot both win.
func (s *Service) Create(ctx context.Context, token string, in models.ServiceCreateInput) (*models.Service, error) {
	if err := s.requireSession(ctx, token); err != nil {
		return nil, err
	}
	plate, err := canonicalPlate(in.Plate)
	if err != nil {
		return nil, err
	}
	if !in.Status.AllowedAtCreate() {
		return nil, errors.Wrapf(models.ErrInvalidStatusForCreate, "status %q", in.Status)
	}

	vehicleID, err := s.ensureVehicle(ctx, plate)
	if err != nil {
		return nil, err
	}
	mechanicID, err := s.ensureMechanicByName(ctx, in.MechanicName)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now().UTC()
	if in.StartedAt != nil {
		startedAt = in.StartedAt.UTC()
	}
	description := ""
	if in.Description != nil {
		description = *in.Description
	}

	svc, err := s.repo.CreateService(ctx, pggarage.ServiceCreate{
		VehicleID:   vehicleID,
		MechanicID:  mechanicID,
		Description: description,
		Status:      in.Status,
		StartedAt:   startedAt,
	})
	if err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, svc)
	return svc, nil
}

// Transition applies a partial update to an open service. Reaching ENTREGUE
// without an explicit finish time stamps the transition time; once ENTREGUE,
// further transitions fail with ErrServiceClosed.
func (s *Service) Transition(ctx context.Context, token string, serviceID uint64, patch models.ServicePatch) (*models.Service, error) {
	if err := s.requireSession(ctx, token); err != nil {
		return nil, err
	}
	return s.applyPatch(ctx, serviceID, patch)
}

// TransitionCurrentByPlate resolves the plate's current service through the
// view and patches it.
func (s *Service) TransitionCurrentByPlate(ctx context.Context, token, rawPlate string, patch models.ServicePatch) (*models.Service, error) {
	if err := s.requireSession(ctx, token); err != nil {
		return nil, err
	}
	plate, err := canonicalPlate(rawPlate)
	if err != nil {
		return nil, err
	}
	view, err := s.repo.QueryByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	if view == nil || view.Current == nil {
		return nil, errors.Wrapf(models.ErrNoCurrentService, "plate %s", plate)
	}
	return s.applyPatch(ctx, view.Current.ServiceID, patch)
}

func (s *Service) applyPatch(ctx context.Context, serviceID uint64, patch models.ServicePatch) (*models.Service, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, errors.Wrapf(models.ErrInvalidStatus, "status %q", *patch.Status)
	}

	upd := pggarage.ServiceUpdate{Status: patch.Status}

	if patch.MechanicName.Set {
		upd.SetMechanic = true
		id, err := s.ensureMechanicByName(ctx, patch.MechanicName.Value)
		if err != nil {
			return nil, err
		}
		upd.MechanicID = id
	}
	if patch.Description.Set {
		upd.SetDescription = true
		upd.Description = patch.Description.Value
	}
	if patch.StartedAt.Set {
		if patch.StartedAt.Value == nil {
			return nil, errors.Wrap(models.ErrInvalidPatch, "started_at cannot be null")
		}
		upd.SetStartedAt = true
		upd.StartedAt = patch.StartedAt.Value
	}
	if patch.FinishedAt.Set {
		upd.SetFinishedAt = true
		upd.FinishedAt = patch.FinishedAt.Value
	} else if patch.Status != nil && patch.Status.Terminal() {
		now := time.Now().UTC()
		upd.AutoFinish = &now
	}

	svc, err := s.repo.PatchService(ctx, serviceID, upd)
	if err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, svc)
	return svc, nil
}

// AttachSignature finalizes a delivered service: the image goes to the blob
// store at a deterministic path (retries overwrite, never duplicate), then
// the metadata write closes the record exactly once.
func (s *Service) AttachSignature(ctx context.Context, token string, serviceID uint64, image []byte, signerName *string) (*models.Service, error) {
	if err := s.requireSession(ctx, token); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, errors.Wrapf(models.ErrEmptySignatureImage, "service %d", serviceID)
	}

	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Status.Terminal() {
		return nil, errors.Wrapf(models.ErrServiceNotDelivered, "service %d is %s", serviceID, svc.Status)
	}
	if svc.SignedAt != nil {
		return nil, errors.Wrapf(models.ErrAlreadySigned, "service %d", serviceID)
	}

	url, err := s.blobs.Put(ctx, s.opts.SignatureBucket, sigstore.ObjectPath(serviceID), image, "image/png")
	if err != nil {
		return nil, errors.Wrap(err, "store signature image")
	}

	signed, err := s.repo.AttachSignature(ctx, serviceID, url, signerName, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, signed)
	return signed, nil
}

// QueryByPlate returns the current/last pair for a plate. A vehicle that was
// never referenced yields an empty row, not an error.
func (s *Service) QueryByPlate(ctx context.Context, rawPlate string) (*models.PlateView, error) {
	plate, err := canonicalPlate(rawPlate)
	if err != nil {
		return nil, err
	}
	view, err := s.repo.QueryByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return &models.PlateView{Plate: plate}, nil
	}
	return view, nil
}

// OpenAcrossFleet lists all in-progress work, most recently started first.
func (s *Service) OpenAcrossFleet(ctx context.Context) ([]*models.PlateView, error) {
	return s.repo.QueryOpenAcrossFleet(ctx)
}

func (s *Service) requireSession(ctx context.Context, token string) error {
	if token == "" {
		return models.ErrUnauthenticated
	}
	ok, err := s.sessions.Authenticated(ctx, token)
	if err != nil {
		return errors.Wrap(err, "check session")
	}
	if !ok {
		return models.ErrUnauthenticated
	}
	return nil
}

func canonicalPlate(raw string) (string, error) {
	p := plates.Normalize(raw)
	if !plates.IsValid(p) {
		return "", errors.Wrapf(models.ErrInvalidPlate, "plate %q", raw)
	}
	return p, nil
}

func (s *Service) ensureVehicle(ctx context.Context, plate string) (uint64, error) {
	return ensureWithRetry(ctx, func() (uint64, error) {
		return s.repo.EnsureVehicle(ctx, plate)
	})
}

func (s *Service) ensureMechanicByName(ctx context.Context, name *string) (*uint64, error) {
	if name == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil, nil
	}
	id, err := ensureWithRetry(ctx, func() (uint64, error) {
		return s.repo.EnsureMechanic(ctx, trimmed)
	})
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ensureWithRetry retries the idempotent upserts a few times: they are safe
// to repeat and their failures are usually transient.
func ensureWithRetry(ctx context.Context, fn func() (uint64, error)) (uint64, error) {
	var lastErr error
	for attempt := 0; attempt < ensureAttempts; attempt++ {
		id, err := fn()
		if err == nil {
			return id, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(ensureBackoff * time.Duration(attempt+1)):
		}
	}
	return 0, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, lastErr)
}

// publishUpdated is best effort: a broker outage must not fail a committed
// mutation.
func (s *Service) publishUpdated(ctx context.Context, svc *models.Service) {
	if s.pub == nil {
		return
	}

	plate := ""
	if v, err := s.repo.GetVehicle(ctx, svc.VehicleID); err == nil {
		plate = v.Plate
	}

	msg := messages.ServiceUpdated{
		ServiceID:  svc.ID,
		VehicleID:  svc.VehicleID,
		Plate:      plate,
		Status:     string(svc.Status),
		ChangedAt:  time.Now().UTC(),
		FinishedAt: svc.FinishedAt,
		Signed:     svc.SignedAt != nil,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("marshal service.updated", "err", err)
		return
	}
	if err := s.pub.Publish(ctx, s.opts.UpdatedTopic, []byte(plate), b); err != nil {
		slog.Warn("publish service.updated", "service_id", svc.ID, "err", err)
	}
}
