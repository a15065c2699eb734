package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/addwise/addwise-hub/internal/authz"
	"github.com/addwise/addwise-hub/internal/metrics"
	"github.com/addwise/addwise-hub/internal/model"
	"github.com/addwise/addwise-hub/internal/queue"
	"github.com/addwise/addwise-hub/internal/repository"
)

// LocationInput is a position reading as sent by clients.  Coordinates are
// pointers so a missing value can be told apart from zero.
type LocationInput struct {
	Latitude  *float64
	Longitude *float64
	Address   string
}

// usable reports whether both coordinates are present.
func (l *LocationInput) usable() bool {
	return l != nil && l.Latitude != nil && l.Longitude != nil
}

func (l *LocationInput) inRange() bool {
	return l.usable() &&
		*l.Latitude >= -90 && *l.Latitude <= 90 &&
		*l.Longitude >= -180 && *l.Longitude <= 180
}

// moveTo archives the current location of q, if any, and replaces it with
// a reading stamped at ts.  The archived entry keeps its own timestamp.
func moveTo(q *model.QRCode, in LocationInput, ts model.Location) {
	if q.Location != nil {
		q.LocationHistory = append(q.LocationHistory, *q.Location)
	}
	ts.Latitude = *in.Latitude
	ts.Longitude = *in.Longitude
	ts.Address = in.Address
	q.Location = &ts
}

// Assign claims an unassigned active code for the caller.  The optional
// location becomes the code's current location; a partial one is ignored
// and an out of range one is rejected.  Two callers racing for
// the same code are serialized by the store; the loser gets ErrConflict.
func (s *QRService) Assign(ctx context.Context, p authz.Principal, qrValue string, loc *LocationInput) (*model.QRCode, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	if !ValidCode(qrValue) {
		return nil, ErrInvalidFormat
	}
	if loc.usable() && !loc.inRange() {
		return nil, ErrInvalidLocation
	}
	now := s.clock()
	updated, err := s.codes.Mutate(ctx, repository.Lookup{Value: qrValue, ActiveOnly: true}, func(q *model.QRCode) error {
		switch owner := q.OwnerID(); {
		case owner == p.UserID:
			return ErrAssignedToSelf
		case owner != "":
			return ErrAssignedToOther
		}
		uid := p.UserID
		q.CreatedBy = &uid
		q.AssignedAt = &now
		if loc.usable() {
			moveTo(q, *loc, model.Location{Timestamp: now})
		}
		return nil
	})
	metrics.Assignments.WithLabelValues(assignResult(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.log.Info("qr code assigned", zap.String("qr_code_id", updated.ID), zap.String("user_id", p.UserID))
	s.publish(ctx, queue.Event{
		Type:     queue.EventCodeAssigned,
		QRCodeID: updated.ID,
		QRValue:  updated.Value,
		OwnerID:  p.UserID,
		ActorID:  p.UserID,
		Location: updated.Location,
	})
	return updated, nil
}

func assignResult(err error) string {
	switch {
	case err == nil:
		return "assigned"
	case errors.Is(err, ErrAssignedToSelf):
		return "already_yours"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return string(KindOf(err))
	}
}

// PushLocation records a device reading for the code identified by ref.
// A 16 digit ref is treated as a QR value, anything else as an id.  It
// requires no principal, never changes ownership and works on inactive
// codes.
func (s *QRService) PushLocation(ctx context.Context, ref string, in LocationInput) (*model.QRCode, error) {
	if !in.inRange() {
		return nil, ErrInvalidLocation
	}
	lk := repository.Lookup{ID: ref}
	if ValidCode(ref) {
		lk = repository.Lookup{Value: ref}
	}
	now := s.clock()
	updated, err := s.codes.Mutate(ctx, lk, func(q *model.QRCode) error {
		moveTo(q, in, model.Location{Timestamp: now})
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.LocationPushes.Inc()
	s.publish(ctx, queue.Event{
		Type:     queue.EventLocationPushed,
		QRCodeID: updated.ID,
		QRValue:  updated.Value,
		OwnerID:  updated.OwnerID(),
		Location: updated.Location,
	})
	return updated, nil
}
