package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/addwise/addwise-hub/internal/model"
)

// Lookup selects a single QR code either by id or by value.  When
// ActiveOnly is set, inactive codes are treated as missing.
type Lookup struct {
	ID         string
	Value      string
	ActiveOnly bool
}

// QRUpdate is the administrative patch applied by Update.  A nil Value
// leaves qr_value untouched; SetOwner with a nil Owner unassigns.
type QRUpdate struct {
	Value    *string
	SetOwner bool
	Owner    *string
}

// MutateFunc edits a locked QR code in place.  The record passed in has an
// empty LocationHistory; every entry the function appends is persisted as a
// new history row after the existing ones.  Only ownership, assignedAt and
// location changes are written back.
type MutateFunc func(q *model.QRCode) error

// QRCodeRepo provides data access to the qr_codes and qr_location_history
// tables.
type QRCodeRepo struct {
	db *sql.DB
}

// NewQRCodeRepo returns a QRCodeRepo bound to db.
func NewQRCodeRepo(db *sql.DB) *QRCodeRepo { return &QRCodeRepo{db: db} }

const qrColumns = `q.id, q.qr_value, q.created_by, q.is_active, q.created_at, q.assigned_at,
       q.loc_latitude, q.loc_longitude, q.loc_address, q.loc_timestamp`

const qrSelectWithOwner = `SELECT ` + qrColumns + `, u.id, u.name, u.email
FROM qr_codes q LEFT JOIN users u ON u.id = q.created_by`

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanQRCode(s rowScanner, withOwner bool) (*model.QRCode, error) {
	var (
		q                    model.QRCode
		createdBy            sql.NullString
		assignedAt, locTS    sql.NullTime
		lat, lng             sql.NullFloat64
		addr                 sql.NullString
		ownerID, name, email sql.NullString
	)
	dest := []any{&q.ID, &q.Value, &createdBy, &q.IsActive, &q.CreatedAt, &assignedAt, &lat, &lng, &addr, &locTS}
	if withOwner {
		dest = append(dest, &ownerID, &name, &email)
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if createdBy.Valid && createdBy.String != "" {
		v := createdBy.String
		q.CreatedBy = &v
	}
	if assignedAt.Valid {
		t := assignedAt.Time.UTC()
		q.AssignedAt = &t
	}
	q.CreatedAt = q.CreatedAt.UTC()
	if lat.Valid && lng.Valid {
		q.Location = &model.Location{
			Latitude:  lat.Float64,
			Longitude: lng.Float64,
			Address:   addr.String,
			Timestamp: locTS.Time.UTC(),
		}
	}
	if ownerID.Valid {
		q.Owner = &model.Owner{ID: ownerID.String, Name: name.String, Email: email.String}
	}
	q.LocationHistory = []model.Location{}
	return &q, nil
}

func (r *QRCodeRepo) list(ctx context.Context, where string, args ...any) ([]*model.QRCode, error) {
	rows, err := r.db.QueryContext(ctx, qrSelectWithOwner+" "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.QRCode{}
	for rows.Next() {
		q, err := scanQRCode(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachHistory(ctx, r.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachHistory loads history rows for codes, one query per chunk of ids,
// ordered by the history sequence so entries come back in write order.
func attachHistory(ctx context.Context, db queryer, codes []*model.QRCode) error {
	byID := make(map[string]*model.QRCode, len(codes))
	for _, c := range codes {
		byID[c.ID] = c
	}
	for start := 0; start < len(codes); start += batchSize {
		end := min(start+batchSize, len(codes))
		args := make([]any, 0, end-start)
		for _, c := range codes[start:end] {
			args = append(args, c.ID)
		}
		if err := loadHistory(ctx, db, byID, args); err != nil {
			return err
		}
	}
	return nil
}

func loadHistory(ctx context.Context, db queryer, byID map[string]*model.QRCode, ids []any) error {
	query := `SELECT qr_code_id, latitude, longitude, address, recorded_at
FROM qr_location_history WHERE qr_code_id IN (` + placeholders(len(ids)) + `) ORDER BY seq`
	rows, err := db.QueryContext(ctx, query, ids...)
	if err != nil {
		return fmt.Errorf("load location history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			l  model.Location
		)
		if err := rows.Scan(&id, &l.Latitude, &l.Longitude, &l.Address, &l.Timestamp); err != nil {
			return err
		}
		l.Timestamp = l.Timestamp.UTC()
		if c, ok := byID[id]; ok {
			c.LocationHistory = append(c.LocationHistory, l)
		}
	}
	return rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// CreateBatch inserts all codes inside one transaction.  Either every row
// is written or none is; a unique-index violation on qr_value is reported
// as ErrDuplicateValue.
func (r *QRCodeRepo) CreateBatch(ctx context.Context, codes []*model.QRCode) error {
	if len(codes) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for start := 0; start < len(codes); start += batchSize {
		end := min(start+batchSize, len(codes))
		if err := insertCodes(ctx, tx, codes[start:end]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// batchSize bounds multi-row INSERTs and IN lists well below the 65535
// placeholder limit of the MySQL protocol.
const batchSize = 500

func insertCodes(ctx context.Context, tx *sql.Tx, codes []*model.QRCode) error {
	query := `INSERT INTO qr_codes (id, qr_value, created_by, is_active, created_at) VALUES `
	args := make([]any, 0, len(codes)*5)
	for i, c := range codes {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, c.ID, c.Value, nullString(c.CreatedBy), c.IsActive, c.CreatedAt.UTC())
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		switch {
		case isDuplicateEntry(err):
			return ErrDuplicateValue
		case isMissingReference(err):
			return ErrNotFound
		}
		return fmt.Errorf("insert qr codes: %w", err)
	}
	return nil
}

// GetByID fetches a code with its owner and full location history.
func (r *QRCodeRepo) GetByID(ctx context.Context, id string) (*model.QRCode, error) {
	return r.getOne(ctx, "WHERE q.id = ?", id)
}

// GetByValue fetches a code by its 16 digit value.
func (r *QRCodeRepo) GetByValue(ctx context.Context, value string) (*model.QRCode, error) {
	return r.getOne(ctx, "WHERE q.qr_value = ?", value)
}

func (r *QRCodeRepo) getOne(ctx context.Context, where string, arg any) (*model.QRCode, error) {
	q, err := scanQRCode(r.db.QueryRowContext(ctx, qrSelectWithOwner+" "+where, arg), true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := attachHistory(ctx, r.db, []*model.QRCode{q}); err != nil {
		return nil, err
	}
	return q, nil
}

// ValueExists reports whether any code already uses value.
func (r *QRCodeRepo) ValueExists(ctx context.Context, value string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM qr_codes WHERE qr_value = ?)`, value).Scan(&exists)
	return exists, err
}

// ListAll returns every code, newest first.
func (r *QRCodeRepo) ListAll(ctx context.Context) ([]*model.QRCode, error) {
	return r.list(ctx, "ORDER BY q.created_at DESC, q.id")
}

// ListForOwner returns the active codes owned by ownerID, newest first.
func (r *QRCodeRepo) ListForOwner(ctx context.Context, ownerID string) ([]*model.QRCode, error) {
	return r.list(ctx, "WHERE q.created_by = ? AND q.is_active = 1 ORDER BY q.created_at DESC, q.id", ownerID)
}

// ListByIDs returns the codes with the given ids in unspecified order.
func (r *QRCodeRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.QRCode, error) {
	out := []*model.QRCode{}
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		args := make([]any, 0, end-start)
		for _, id := range ids[start:end] {
			args = append(args, id)
		}
		part, err := r.list(ctx, "WHERE q.id IN ("+placeholders(len(args))+")", args...)
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

// Update applies an administrative patch.  It does not touch assigned_at
// or the location history.
func (r *QRCodeRepo) Update(ctx context.Context, id string, upd QRUpdate) (*model.QRCode, error) {
	sets := []string{}
	args := []any{}
	if upd.Value != nil {
		sets = append(sets, "qr_value = ?")
		args = append(args, *upd.Value)
	}
	if upd.SetOwner {
		sets = append(sets, "created_by = ?")
		args = append(args, nullString(upd.Owner))
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, "UPDATE qr_codes SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, ErrDuplicateValue
		}
		if isMissingReference(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update qr code: %w", err)
	}
	// clientFoundRows=true makes this the matched row count.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a code and, through the foreign key, its history.
func (r *QRCodeRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM qr_codes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete qr code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every code and returns how many were deleted.
func (r *QRCodeRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM qr_codes`)
	if err != nil {
		return 0, fmt.Errorf("delete all qr codes: %w", err)
	}
	return res.RowsAffected()
}

// Mutate locks one code with SELECT ... FOR UPDATE, lets fn edit it and
// writes the result back in the same transaction.  The write is
// conditional on the owner read under the lock, so a concurrent owner
// change surfaces as ErrConflict instead of a lost update.
func (r *QRCodeRepo) Mutate(ctx context.Context, lk Lookup, fn MutateFunc) (*model.QRCode, error) {
	where, arg := "id = ?", lk.ID
	if lk.ID == "" {
		where, arg = "qr_value = ?", lk.Value
	}
	if lk.ActiveOnly {
		where += " AND is_active = 1"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	current, err := scanQRCode(tx.QueryRowContext(ctx,
		`SELECT `+qrColumns+` FROM qr_codes q WHERE q.`+where+` FOR UPDATE`, arg), false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock qr code: %w", err)
	}

	work := current.Clone()
	work.LocationHistory = nil
	if err := fn(work); err != nil {
		return nil, err
	}

	var (
		lat, lng sql.NullFloat64
		addr     sql.NullString
		locTS    sql.NullTime
	)
	if work.Location != nil {
		lat = sql.NullFloat64{Float64: work.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: work.Location.Longitude, Valid: true}
		addr = sql.NullString{String: work.Location.Address, Valid: true}
		locTS = sql.NullTime{Time: work.Location.Timestamp.UTC(), Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE qr_codes SET created_by = ?, assigned_at = ?, loc_latitude = ?, loc_longitude = ?, loc_address = ?, loc_timestamp = ?
WHERE id = ? AND created_by <=> ?`,
		nullString(work.CreatedBy), nullTime(work.AssignedAt), lat, lng, addr, locTS,
		current.ID, nullString(current.CreatedBy))
	if err != nil {
		if isMissingReference(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update qr code: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrConflict
	}

	if len(work.LocationHistory) > 0 {
		query := `INSERT INTO qr_location_history (qr_code_id, latitude, longitude, address, recorded_at) VALUES `
		args := make([]any, 0, len(work.LocationHistory)*5)
		for i, l := range work.LocationHistory {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, current.ID, l.Latitude, l.Longitude, l.Address, l.Timestamp.UTC())
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("append location history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return r.GetByID(ctx, current.ID)
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
