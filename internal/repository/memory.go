package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/addwise/addwise-hub/internal/model"
)

// MemoryStore is an in-process implementation of the user, QR code and
// refresh token repositories.  It backs STORAGE=memory and the package
// tests.  A single mutex serializes every operation, which gives the same
// uniqueness and check-and-set guarantees as the MySQL store.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[string]*model.User
	codes   map[string]*model.QRCode
	byValue map[string]string
	tokens  map[string]memToken

	Users   *MemoryUserRepo
	QRCodes *MemoryQRCodeRepo
	Tokens  *MemoryTokenRepo
}

type memToken struct {
	userID    string
	expiresAt time.Time
	revoked   bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		users:   map[string]*model.User{},
		codes:   map[string]*model.QRCode{},
		byValue: map[string]string{},
		tokens:  map[string]memToken{},
	}
	s.Users = &MemoryUserRepo{s: s}
	s.QRCodes = &MemoryQRCodeRepo{s: s}
	s.Tokens = &MemoryTokenRepo{s: s}
	return s
}

// ---- Users ----

// MemoryUserRepo is the user view of a MemoryStore.
type MemoryUserRepo struct{ s *MemoryStore }

func (r *MemoryUserRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return ErrEmailExists
		}
	}
	c := *u
	r.s.users[u.ID] = &c
	return nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range r.s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepo) ListByRole(_ context.Context, role string) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role = model.NormalizeRole(role)
	out := []*model.User{}
	for _, u := range r.s.users {
		if u.Role == role {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryUserRepo) Update(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	for id, existing := range r.s.users {
		if id != u.ID && existing.Email == u.Email {
			return ErrEmailExists
		}
	}
	cur.Name, cur.Email, cur.Role, cur.PasswordHash, cur.UpdatedAt = u.Name, u.Email, u.Role, u.PasswordHash, u.UpdatedAt
	return nil
}

func (r *MemoryUserRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.users, id)
	for _, q := range r.s.codes {
		if q.OwnerID() == id {
			q.CreatedBy = nil
		}
	}
	for hash, t := range r.s.tokens {
		if t.userID == id {
			delete(r.s.tokens, hash)
		}
	}
	return nil
}

// ---- QR codes ----

// MemoryQRCodeRepo is the QR code view of a MemoryStore.
type MemoryQRCodeRepo struct{ s *MemoryStore }

// view returns a copy of q with the owner populated.  Callers hold the lock.
func (r *MemoryQRCodeRepo) view(q *model.QRCode) *model.QRCode {
	c := q.Clone()
	c.Owner = nil
	if u, ok := r.s.users[q.OwnerID()]; ok {
		c.Owner = &model.Owner{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	if c.LocationHistory == nil {
		c.LocationHistory = []model.Location{}
	}
	return c
}

func (r *MemoryQRCodeRepo) CreateBatch(_ context.Context, codes []*model.QRCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if _, dup := r.s.byValue[c.Value]; dup {
			return ErrDuplicateValue
		}
		if _, dup := seen[c.Value]; dup {
			return ErrDuplicateValue
		}
		seen[c.Value] = struct{}{}
	}
	for _, c := range codes {
		stored := c.Clone()
		stored.Owner = nil
		stored.LocationHistory = nil
		r.s.codes[c.ID] = stored
		r.s.byValue[c.Value] = c.ID
	}
	return nil
}

func (r *MemoryQRCodeRepo) GetByID(_ context.Context, id string) (*model.QRCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.codes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.view(q), nil
}

func (r *MemoryQRCodeRepo) GetByValue(_ context.Context, value string) (*model.QRCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.byValue[value]
	if !ok {
		return nil, ErrNotFound
	}
	return r.view(r.s.codes[id]), nil
}

func (r *MemoryQRCodeRepo) ValueExists(_ context.Context, value string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.byValue[value]
	return ok, nil
}

func (r *MemoryQRCodeRepo) filter(keep func(q *model.QRCode) bool) []*model.QRCode {
	out := []*model.QRCode{}
	for _, q := range r.s.codes {
		if keep(q) {
			out = append(out, r.view(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *MemoryQRCodeRepo) ListAll(_ context.Context) ([]*model.QRCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(*model.QRCode) bool { return true }), nil
}

func (r *MemoryQRCodeRepo) ListForOwner(_ context.Context, ownerID string) ([]*model.QRCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.filter(func(q *model.QRCode) bool { return q.IsActive && q.OwnerID() == ownerID }), nil
}

func (r *MemoryQRCodeRepo) ListByIDs(_ context.Context, ids []string) ([]*model.QRCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return r.filter(func(q *model.QRCode) bool { _, ok := want[q.ID]; return ok }), nil
}

func (r *MemoryQRCodeRepo) Update(_ context.Context, id string, upd QRUpdate) (*model.QRCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.codes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Value != nil && *upd.Value != q.Value {
		if _, dup := r.s.byValue[*upd.Value]; dup {
			return nil, ErrDuplicateValue
		}
	}
	if upd.SetOwner && upd.Owner != nil && *upd.Owner != "" {
		// mirrors the foreign key on created_by
		if _, ok := r.s.users[*upd.Owner]; !ok {
			return nil, ErrNotFound
		}
	}
	if upd.Value != nil && *upd.Value != q.Value {
		delete(r.s.byValue, q.Value)
		q.Value = *upd.Value
		r.s.byValue[q.Value] = q.ID
	}
	if upd.SetOwner {
		if upd.Owner == nil || *upd.Owner == "" {
			q.CreatedBy = nil
		} else {
			v := *upd.Owner
			q.CreatedBy = &v
		}
	}
	return r.view(q), nil
}

func (r *MemoryQRCodeRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.codes[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.s.byValue, q.Value)
	delete(r.s.codes, id)
	return nil
}

func (r *MemoryQRCodeRepo) DeleteAll(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := int64(len(r.s.codes))
	r.s.codes = map[string]*model.QRCode{}
	r.s.byValue = map[string]string{}
	return n, nil
}

func (r *MemoryQRCodeRepo) Mutate(_ context.Context, lk Lookup, fn MutateFunc) (*model.QRCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id := lk.ID
	if id == "" {
		id = r.s.byValue[lk.Value]
	}
	q, ok := r.s.codes[id]
	if !ok || (lk.ActiveOnly && !q.IsActive) {
		return nil, ErrNotFound
	}
	work := q.Clone()
	work.Owner = nil
	work.LocationHistory = nil
	if err := fn(work); err != nil {
		return nil, err
	}
	if o := work.OwnerID(); o != "" && o != q.OwnerID() {
		// mirrors the foreign key on created_by
		if _, ok := r.s.users[o]; !ok {
			return nil, ErrNotFound
		}
	}
	q.CreatedBy = work.CreatedBy
	q.AssignedAt = work.AssignedAt
	q.Location = work.Location
	q.LocationHistory = append(q.LocationHistory, work.LocationHistory...)
	return r.view(q), nil
}

// ---- Refresh tokens ----

// MemoryTokenRepo is the refresh token view of a MemoryStore.
type MemoryTokenRepo struct{ s *MemoryStore }

func (r *MemoryTokenRepo) StoreRefresh(_ context.Context, userID, tokenHash string, exp time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tokens[tokenHash] = memToken{userID: userID, expiresAt: exp}
	return nil
}

func (r *MemoryTokenRepo) ValidateRefresh(_ context.Context, tokenHash string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[tokenHash]
	if !ok || t.revoked || time.Now().UTC().After(t.expiresAt) {
		return "", ErrNotFound
	}
	return t.userID, nil
}

func (r *MemoryTokenRepo) RevokeByHash(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[tokenHash]
	if !ok || t.revoked {
		return ErrNotFound
	}
	t.revoked = true
	r.s.tokens[tokenHash] = t
	return nil
}

func (r *MemoryTokenRepo) RevokeAllForUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for h, t := range r.s.tokens {
		if t.userID == userID {
			t.revoked = true
			r.s.tokens[h] = t
		}
	}
	return nil
}
