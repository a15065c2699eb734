package model

import "time"

// Location is a single position reading attached to a QR code.  The
// Timestamp is assigned by the server when the reading is stored.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
}

// Owner is the populated view of a QR code's owner returned on admin
// listings and issuance responses.
type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// QRCode mirrors a row in the `qr_codes` table together with its
// location history rows.
//
// Fields:
//  ID              – UUID primary key, immutable.
//  Value           – 16 decimal digits, unique across the registry.
//  CreatedBy       – owner user id; nil means unassigned.
//  Owner           – populated owner details (list and issue responses only).
//  IsActive        – soft-disable flag; inactive codes cannot be assigned.
//  CreatedAt       – set once on insert.
//  AssignedAt      – set on every ownership transition through assignment.
//  Location        – most recent reading, nil when none was ever recorded.
//  LocationHistory – superseded readings, oldest first.
type QRCode struct {
	ID              string     `json:"id"`
	Value           string     `json:"qrValue"`
	CreatedBy       *string    `json:"createdBy"`
	Owner           *Owner     `json:"owner,omitempty"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
	AssignedAt      *time.Time `json:"assignedAt,omitempty"`
	Location        *Location  `json:"location,omitempty"`
	LocationHistory []Location `json:"locationHistory"`
}

// IsAssigned reports whether the code currently has an owner.
func (q *QRCode) IsAssigned() bool {
	return q.CreatedBy != nil && *q.CreatedBy != ""
}

// OwnerID returns the owner id or "" when unassigned.
func (q *QRCode) OwnerID() string {
	if q.CreatedBy == nil {
		return ""
	}
	return *q.CreatedBy
}

// State names derived from a code's ownership and activity.
const (
	StateUnassigned = "unassigned"
	StateAssigned   = "assigned"
	StateInactive   = "inactive"
)

// State derives the assignment state.  Inactive wins over ownership.
func (q *QRCode) State() string {
	switch {
	case !q.IsActive:
		return StateInactive
	case q.IsAssigned():
		return StateAssigned
	default:
		return StateUnassigned
	}
}

// Clone returns a deep copy so callers may mutate it without touching
// shared state.
func (q *QRCode) Clone() *QRCode {
	c := *q
	if q.CreatedBy != nil {
		v := *q.CreatedBy
		c.CreatedBy = &v
	}
	if q.Owner != nil {
		o := *q.Owner
		c.Owner = &o
	}
	if q.AssignedAt != nil {
		t := *q.AssignedAt
		c.AssignedAt = &t
	}
	if q.Location != nil {
		l := *q.Location
		c.Location = &l
	}
	c.LocationHistory = append([]Location(nil), q.LocationHistory...)
	return &c
}
