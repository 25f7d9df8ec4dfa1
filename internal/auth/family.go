package auth

import (
	"context"

	"github.com/agenthands/kindred/internal/core/model"
	"github.com/agenthands/kindred/internal/driver"
)

// FamilyAdmin answers role questions about family membership.
type FamilyAdmin interface {
	IsAdmin(ctx context.Context, familyID, userID string) (bool, error)
	IsMember(ctx context.Context, familyID, userID string) (bool, error)
}

// GraphFamilyAdmin reads MEMBER_OF edges from the graph store.
type GraphFamilyAdmin struct {
	store driver.GraphStore
}

func NewGraphFamilyAdmin(store driver.GraphStore) *GraphFamilyAdmin {
	return &GraphFamilyAdmin{store: store}
}

func (a *GraphFamilyAdmin) IsAdmin(ctx context.Context, familyID, userID string) (bool, error) {
	role, ok, err := a.role(ctx, familyID, userID)
	if err != nil || !ok {
		return false, err
	}
	return role == model.RoleAdmin, nil
}

func (a *GraphFamilyAdmin) IsMember(ctx context.Context, familyID, userID string) (bool, error) {
	_, ok, err := a.role(ctx, familyID, userID)
	return ok, err
}

func (a *GraphFamilyAdmin) role(ctx context.Context, familyID, userID string) (string, bool, error) {
	if familyID == "" || userID == "" {
		return "", false, nil
	}
	var (
		role string
		ok   bool
	)
	err := a.store.ExecuteRead(ctx, func(tx driver.Tx) error {
		var err error
		role, ok, err = tx.MemberRole(ctx, familyID, userID)
		return err
	})
	return role, ok, err
}

// MemberJoinPolicy lets only family members subscribe to a family room.
func MemberJoinPolicy(admin FamilyAdmin) func(ctx context.Context, userID, familyID string) (bool, error) {
	return func(ctx context.Context, userID, familyID string) (bool, error) {
		return admin.IsMember(ctx, familyID, userID)
	}
}
