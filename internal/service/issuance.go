package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/addwise/addwise-hub/internal/authz"
	"github.com/addwise/addwise-hub/internal/metrics"
	"github.com/addwise/addwise-hub/internal/model"
	"github.com/addwise/addwise-hub/internal/queue"
)

// Issuance targets besides a concrete user id.
const (
	TargetAll  = "all"
	TargetNone = "none"
)

// IssueResult is returned by Issue.  UserCount is the number of distinct
// users codes were issued to; it is 0 for TargetNone.
type IssueResult struct {
	Codes     []*model.QRCode `json:"codes"`
	UserCount int             `json:"userCount"`
}

// Issue generates count codes for every user selected by target and
// persists the whole batch in one transaction: either every code is
// created or none is.  Only a superadmin may issue.
func (s *QRService) Issue(ctx context.Context, p authz.Principal, count int, target string) (*IssueResult, error) {
	if err := authz.RequireSuperAdmin(p); err != nil {
		return nil, err
	}
	if count <= 0 || count > s.maxIssue {
		return nil, ErrInvalidCount
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, ErrInvalidTarget
	}

	owners, err := s.resolveTargets(ctx, target)
	if err != nil {
		return nil, err
	}

	slots := len(owners)
	if slots == 0 {
		slots = 1
	}
	values, err := s.gen.GenerateBatch(ctx, count*slots)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	codes := make([]*model.QRCode, 0, len(values))
	for i, v := range values {
		c := &model.QRCode{
			ID:        uuid.NewString(),
			Value:     v,
			IsActive:  true,
			CreatedAt: now,
		}
		if len(owners) > 0 {
			owner := owners[i/count]
			c.CreatedBy = &owner
		}
		codes = append(codes, c)
	}
	if err := s.codes.CreateBatch(ctx, codes); err != nil {
		return nil, err
	}

	ids := make([]string, len(codes))
	for i, c := range codes {
		ids[i] = c.ID
	}
	stored, err := s.codes.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.QRCode, len(stored))
	for _, c := range stored {
		byID[c.ID] = c
	}
	out := make([]*model.QRCode, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}

	metrics.CodesIssued.Add(float64(len(out)))
	s.log.Info("qr codes issued",
		zap.String("actor", p.UserID),
		zap.String("target", target),
		zap.Int("count", len(out)),
		zap.Int("users", len(owners)))
	s.publish(ctx, queue.Event{Type: queue.EventCodesIssued, ActorID: p.UserID, Count: len(out)})

	return &IssueResult{Codes: out, UserCount: len(owners)}, nil
}

// resolveTargets maps target to the owner ids to issue for.  TargetNone
// yields no owners.
func (s *QRService) resolveTargets(ctx context.Context, target string) ([]string, error) {
	switch strings.ToLower(target) {
	case TargetNone:
		return nil, nil
	case TargetAll:
		users, err := s.users.ListByRole(ctx, model.RoleUser)
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			return nil, ErrNoEligibleUsers
		}
		ids := make([]string, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		return ids, nil
	}
	u, err := s.users.GetByID(ctx, target)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoEligibleUsers
		}
		return nil, err
	}
	return []string{u.ID}, nil
}
