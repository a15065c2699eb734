package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/addwise/addwise-hub/internal/authz"
	"github.com/addwise/addwise-hub/internal/model"
	"github.com/addwise/addwise-hub/internal/queue"
	"github.com/addwise/addwise-hub/internal/repository"
)

// DefaultMaxIssue caps the number of codes issued per user in one request.
const DefaultMaxIssue = 1000

// QRService implements the registry, assignment and issuance operations.
// Every operation except Get and PushLocation takes the caller's principal
// and checks it before touching storage.
type QRService struct {
	codes    QRStore
	users    UserStore
	gen      *Generator
	events   EventPublisher
	log      *zap.Logger
	maxIssue int
	now      func() time.Time
}

// QROption customizes a QRService.
type QROption func(*QRService)

// WithMaxIssue overrides DefaultMaxIssue.  Values below 1 are ignored.
func WithMaxIssue(n int) QROption {
	return func(s *QRService) {
		if n > 0 {
			s.maxIssue = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) QROption {
	return func(s *QRService) { s.now = now }
}

// NewQRService wires a QRService.  A nil publisher or logger is replaced by
// a no-op.
func NewQRService(codes QRStore, users UserStore, events EventPublisher, log *zap.Logger, opts ...QROption) *QRService {
	if events == nil {
		events = queue.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &QRService{
		codes:    codes,
		users:    users,
		gen:      NewGenerator(codes),
		events:   events,
		log:      log,
		maxIssue: DefaultMaxIssue,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *QRService) clock() time.Time { return s.now().UTC().Truncate(time.Microsecond) }

func (s *QRService) publish(ctx context.Context, ev queue.Event) {
	ev.OccurredAt = s.clock()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

// Get returns a code by id.  It is public and requires no principal.
func (s *QRService) Get(ctx context.Context, id string) (*model.QRCode, error) {
	return s.codes.GetByID(ctx, id)
}

// ListAll returns every code with owners populated, newest first.
func (s *QRService) ListAll(ctx context.Context, p authz.Principal) ([]*model.QRCode, error) {
	if err := authz.RequireRole(p, model.RoleAdmin, model.RoleSuperAdmin); err != nil {
		return nil, err
	}
	return s.codes.ListAll(ctx)
}

// ListForOwner returns the caller's active codes, newest first.
func (s *QRService) ListForOwner(ctx context.Context, p authz.Principal) ([]*model.QRCode, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	return s.codes.ListForOwner(ctx, p.UserID)
}

// UpdateInput is the administrative patch of a code.  QRValue nil leaves
// the value unchanged.  CreatedBy is only applied when SetCreatedBy is
// true; nil or "" then unassigns.
type UpdateInput struct {
	QRValue      *string
	CreatedBy    *string
	SetCreatedBy bool
}

// Update applies an administrative patch.  It is allowed for the current
// owner and for admins.  assignedAt and the location history are left
// untouched.
func (s *QRService) Update(ctx context.Context, p authz.Principal, id string, in UpdateInput) (*model.QRCode, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	current, err := s.codes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireOwnerOrRole(p, current.OwnerID(), model.RoleAdmin, model.RoleSuperAdmin); err != nil {
		return nil, err
	}

	upd := repository.QRUpdate{}
	if in.QRValue != nil {
		if !ValidCode(*in.QRValue) {
			return nil, ErrInvalidFormat
		}
		if *in.QRValue != current.Value {
			exists, err := s.codes.ValueExists(ctx, *in.QRValue)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, ErrDuplicateValue
			}
			v := *in.QRValue
			upd.Value = &v
		}
	}
	if in.SetCreatedBy {
		upd.SetOwner = true
		if in.CreatedBy != nil && *in.CreatedBy != "" {
			if _, err := s.users.GetByID(ctx, *in.CreatedBy); err != nil {
				return nil, err
			}
			v := *in.CreatedBy
			upd.Owner = &v
		}
	}

	// The unique index still rejects a value taken after the pre-check.
	updated, err := s.codes.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.Event{
		Type:     queue.EventCodeUpdated,
		QRCodeID: updated.ID,
		QRValue:  updated.Value,
		OwnerID:  updated.OwnerID(),
		ActorID:  p.UserID,
	})
	return updated, nil
}

// Delete hard-deletes a code together with its history.
func (s *QRService) Delete(ctx context.Context, p authz.Principal, id string) error {
	if err := authz.RequireAuthenticated(p); err != nil {
		return err
	}
	current, err := s.codes.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.RequireOwnerOrRole(p, current.OwnerID(), model.RoleAdmin, model.RoleSuperAdmin); err != nil {
		return err
	}
	if err := s.codes.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, queue.Event{
		Type:     queue.EventCodeDeleted,
		QRCodeID: current.ID,
		QRValue:  current.Value,
		OwnerID:  current.OwnerID(),
		ActorID:  p.UserID,
	})
	return nil
}

// DeleteAll removes every code and returns the number deleted.
func (s *QRService) DeleteAll(ctx context.Context, p authz.Principal) (int64, error) {
	if err := authz.RequireRole(p, model.RoleAdmin, model.RoleSuperAdmin); err != nil {
		return 0, err
	}
	n, err := s.codes.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("all qr codes deleted", zap.String("actor", p.UserID), zap.Int64("count", n))
	s.publish(ctx, queue.Event{Type: queue.EventCodesCleared, ActorID: p.UserID, Count: int(n)})
	return n, nil
}
