package kinship

import (
	"context"

	"go.uber.org/zap"

	"github.com/agenthands/kindred/internal/apperror"
	"github.com/agenthands/kindred/internal/core/model"
)

// createParent inserts p as a parent of childID only if the child is still
// below the parent limit when the write executes.
func (e *Engine) createParent(ctx context.Context, m *mutation, p model.Person, childID string) error {
	ok, err := m.tx.CreateParentBelowCap(ctx, p, childID, model.ParentLimit, m.audit)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Limit("Person already has two parents")
	}
	m.created = append(m.created, p)
	m.parentTargets = append(m.parentTargets, childID)
	return nil
}

// claimSpouseSlot writes the spouse marker on personID before reading its
// spouse count, so concurrent writers on the same person queue on that row.
func (e *Engine) claimSpouseSlot(ctx context.Context, m *mutation, personID string) error {
	if err := m.tx.MarkSpouseLock(ctx, personID, e.newID()); err != nil {
		return err
	}
	n, err := m.tx.CountSpouses(ctx, personID)
	if err != nil {
		return err
	}
	if n >= model.SpouseLimit {
		return apperror.Limit("Person already has a spouse")
	}
	return nil
}

// verifyCaps re-reads every person that gained an edge. A violation fails the
// transaction so nothing written by this request survives.
func (e *Engine) verifyCaps(ctx context.Context, m *mutation, rt model.RelationType) error {
	for _, id := range unique(m.parentTargets) {
		n, err := m.tx.CountParents(ctx, id)
		if err != nil {
			return err
		}
		if n > model.ParentLimit {
			e.logger.Warn("parent limit exceeded after write",
				zap.String("relationType", string(rt)),
				zap.String("personId", id),
				zap.Int("parents", n))
			return apperror.Limit("Person already has two parents")
		}
	}
	for _, id := range unique(m.spouseTargets) {
		n, err := m.tx.CountSpouses(ctx, id)
		if err != nil {
			return err
		}
		if n > model.SpouseLimit {
			e.logger.Warn("spouse limit exceeded after write",
				zap.String("relationType", string(rt)),
				zap.String("personId", id),
				zap.Int("spouses", n))
			return apperror.Limit("Person already has a spouse")
		}
	}
	return nil
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
