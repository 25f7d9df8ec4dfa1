package kinship

import (
	"context"

	"github.com/agenthands/kindred/internal/apperror"
	"github.com/agenthands/kindred/internal/core/model"
)

func (e *Engine) addParent(ctx context.Context, m *mutation, req *model.AddRelationRequest) error {
	p, err := e.newPerson(m, req.Person)
	if err != nil {
		return err
	}
	if err := e.createParent(ctx, m, p, m.ref.ID); err != nil {
		return err
	}
	return nil
}

func (e *Engine) addChild(ctx context.Context, m *mutation, req *model.AddRelationRequest) error {
	child, err := e.insert(ctx, m, req.Person)
	if err != nil {
		return err
	}
	return e.linkToParentAndSpouse(ctx, m, m.ref.ID, child.ID)
}

func (e *Engine) addSpouse(ctx context.Context, m *mutation, req *model.AddRelationRequest) error {
	if err := e.claimSpouseSlot(ctx, m, m.ref.ID); err != nil {
		return err
	}
	spouse, err := e.insert(ctx, m, req.Person)
	if err != nil {
		return err
	}
	return e.pair(ctx, m, m.ref.ID, spouse.ID)
}

func (e *Engine) addSibling(ctx context.Context, m *mutation, req *model.AddRelationRequest) error {
	parents, err := m.tx.Parents(ctx, m.ref.ID)
	if err != nil {
		return err
	}
	if len(parents) == 0 {
		return apperror.MissingParent("Reference has no parents to share")
	}
	sibling, err := e.insert(ctx, m, req.Person)
	if err != nil {
		return err
	}
	for _, parent := range parents {
		if err := m.tx.AddParentOf(ctx, parent.ID, sibling.ID, m.audit); err != nil {
			return err
		}
	}
	m.parentTargets = append(m.parentTargets, sibling.ID)
	return nil
}

func (e *Engine) addGrandparents(ctx context.Context, m *mutation, req *model.AddRelationRequest) error {
	side := model.SidePaternal
	if req.RelationType == model.RelationMaternalGrandparents {
		side = model.SideMaternal
	}
	parent, err := e.parentOnSide(ctx, m, side)
	if err != nil {
		return err
	}
	existing, err := m.tx.Parents(ctx, parent.ID)
	if err != nil {
		return err
	}

	switch len(existing) {
	case 0:
		if req.CreatePair() && req.Partner == nil {
			return apperror.Validation("partner is required when createPair is true")
		}
		first, err := e.newPerson(m, req.Person)
		if err != nil {
			return err
		}
		if err := e.createParent(ctx, m, first, parent.ID); err != nil {
			return err
		}
		if !req.CreatePair() {
			return nil
		}
		second, err := e.newPerson(m, req.Partner)
		if err != nil {
			return err
		}
		if err := e.createParent(ctx, m, second, parent.ID); err != nil {
			return err
		}
		return e.pair(ctx, m, first.ID, second.ID)

	case 1:
		if req.Partner != nil {
			return apperror.Validation("partner must be omitted when one grandparent already exists")
		}
		other := existing[0]
		if err := e.claimSpouseSlot(ctx, m, other.ID); err != nil {
			return err
		}
		gp, err := e.newPerson(m, req.Person)
		if err != nil {
			return err
		}
		if err := e.createParent(ctx, m, gp, parent.ID); err != nil {
			return err
		}
		return e.pair(ctx, m, other.ID, gp.ID)

	default:
		return apperror.Limit("Parent already has two parents recorded")
	}
}

// addAuntUncle reuses an existing person with the same email instead of
// always inserting.
func (e *Engine) addAuntUncle(ctx context.Context, m *mutation, req *model.AddRelationRequest) error {
	side := req.Side()
	if side == "" {
		return apperror.Validation("options.side is required for aunt_uncle")
	}
	parent, err := e.parentOnSide(ctx, m, side)
	if err != nil {
		return err
	}
	grandparents, err := m.tx.Parents(ctx, parent.ID)
	if err != nil {
		return err
	}
	if len(grandparents) == 0 {
		return apperror.MissingGrandparent("No grandparent recorded on the " + string(side) + " side")
	}

	candidate, err := e.newPerson(m, req.Person)
	if err != nil {
		return err
	}
	person, _, err := m.tx.MergePersonByEmail(ctx, candidate)
	if err != nil {
		return err
	}
	if person.ID == m.ref.ID || person.ID == parent.ID {
		return apperror.Validation("Email belongs to the reference or their parent")
	}
	for _, gp := range grandparents {
		if person.ID == gp.ID {
			return apperror.Validation("Email belongs to a grandparent")
		}
	}
	for _, gp := range grandparents {
		if err := m.tx.AddParentOf(ctx, gp.ID, person.ID, m.audit); err != nil {
			return err
		}
	}
	m.created = append(m.created, person)
	m.parentTargets = append(m.parentTargets, person.ID)
	return nil
}

func (e *Engine) addCousin(ctx context.Context, m *mutation, req *model.AddRelationRequest) error {
	uncleAuntID := req.UncleAuntID()
	if uncleAuntID == "" {
		return apperror.Validation("options.uncleAuntId is required for cousin")
	}
	ok, err := m.tx.IsParentSibling(ctx, m.ref.ID, uncleAuntID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Validation("uncleAuntId is not an aunt or uncle of the reference")
	}
	cousin, err := e.insert(ctx, m, req.Person)
	if err != nil {
		return err
	}
	return e.linkToParentAndSpouse(ctx, m, uncleAuntID, cousin.ID)
}

// parentOnSide finds the parent whose gender selects the side: FEMALE for
// maternal, MALE for paternal.
func (e *Engine) parentOnSide(ctx context.Context, m *mutation, side model.Side) (model.Person, error) {
	parents, err := m.tx.Parents(ctx, m.ref.ID)
	if err != nil {
		return model.Person{}, err
	}
	want := side.ParentGender()
	for _, p := range parents {
		if p.Gender == want {
			return p, nil
		}
	}
	return model.Person{}, apperror.Newf(apperror.KindMissingParent, "No %s parent recorded for the %s side", want, side)
}

// linkToParentAndSpouse makes parentID and their spouse, if any, parents of childID.
func (e *Engine) linkToParentAndSpouse(ctx context.Context, m *mutation, parentID, childID string) error {
	if err := m.tx.AddParentOf(ctx, parentID, childID, m.audit); err != nil {
		return err
	}
	spouses, err := m.tx.Spouses(ctx, parentID)
	if err != nil {
		return err
	}
	for _, sp := range spouses {
		if err := m.tx.AddParentOf(ctx, sp.ID, childID, m.audit); err != nil {
			return err
		}
	}
	m.parentTargets = append(m.parentTargets, childID)
	return nil
}

func (e *Engine) pair(ctx context.Context, m *mutation, aID, bID string) error {
	if err := m.tx.AddSpousePair(ctx, aID, bID, m.audit); err != nil {
		return err
	}
	m.spouseTargets = append(m.spouseTargets, aID, bID)
	return nil
}
