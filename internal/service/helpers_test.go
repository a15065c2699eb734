package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/addwise/addwise-hub/internal/authz"
	"github.com/addwise/addwise-hub/internal/model"
	"github.com/addwise/addwise-hub/internal/queue"
	"github.com/addwise/addwise-hub/internal/repository"
)

type recorder struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *recorder) Publish(_ context.Context, ev queue.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	ctx    context.Context
	store  *repository.MemoryStore
	qr     *QRService
	users  *UserService
	events *recorder
	super  authz.Principal
	admin  authz.Principal
}

func newFixture(t *testing.T, opts ...QROption) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	events := &recorder{}
	opts = append([]QROption{WithClock(stepClock())}, opts...)
	f := &fixture{
		ctx:    context.Background(),
		store:  store,
		qr:     NewQRService(store.QRCodes, store.Users, events, nil, opts...),
		users:  NewUserService(store.Users, store.Tokens, 4, nil),
		events: events,
	}
	f.super = f.addUser(t, "root", model.RoleSuperAdmin)
	f.admin = f.addUser(t, "ops", model.RoleAdmin)
	return f
}

// addUser stores an account directly and returns its principal.
func (f *fixture) addUser(t *testing.T, name, role string) authz.Principal {
	t.Helper()
	now := time.Now().UTC()
	u := &model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.store.Users.Create(f.ctx, u))
	return authz.Principal{UserID: u.ID, Role: role}
}

// addCode stores a code directly.  owner may be empty.
func (f *fixture) addCode(t *testing.T, value, owner string, active bool) *model.QRCode {
	t.Helper()
	c := &model.QRCode{
		ID:        uuid.NewString(),
		Value:     value,
		IsActive:  active,
		CreatedAt: time.Now().UTC(),
	}
	if owner != "" {
		c.CreatedBy = &owner
	}
	require.NoError(t, f.store.QRCodes.CreateBatch(f.ctx, []*model.QRCode{c}))
	got, err := f.store.QRCodes.GetByID(f.ctx, c.ID)
	require.NoError(t, err)
	return got
}

func ptr[T any](v T) *T { return &v }
