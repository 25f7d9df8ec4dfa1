// Package kinship turns an add-relation request into the graph writes it
// implies, enforcing the two-parent and one-spouse limits.
package kinship

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/kindred/internal/apperror"
	"github.com/agenthands/kindred/internal/core/model"
	"github.com/agenthands/kindred/internal/driver"
)

// CreationPolicy decides whether a relation type creates a fresh person or
// reuses one with the same email.
type CreationPolicy int

const (
	AlwaysInsert CreationPolicy = iota
	UpsertByIdentity
)

func CreationPolicyFor(rt model.RelationType) CreationPolicy {
	if rt == model.RelationAuntUncle {
		return UpsertByIdentity
	}
	return AlwaysInsert
}

type Engine struct {
	hasher Hasher
	newID  func() string
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Engine)

func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

func NewEngine(hasher Hasher, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		hasher: hasher,
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// mutation collects what one request wrote so the caps can be re-verified
// and the response assembled.
type mutation struct {
	tx     driver.Tx
	userID string
	audit  model.Audit
	ref    model.Person

	created       []model.Person
	parentTargets []string
	spouseTargets []string
}

type handler func(e *Engine, ctx context.Context, m *mutation, req *model.AddRelationRequest) error

var handlers = map[model.RelationType]handler{
	model.RelationParent:               (*Engine).addParent,
	model.RelationChild:                (*Engine).addChild,
	model.RelationSpouse:               (*Engine).addSpouse,
	model.RelationSibling:              (*Engine).addSibling,
	model.RelationMaternalGrandparents: (*Engine).addGrandparents,
	model.RelationPaternalGrandparents: (*Engine).addGrandparents,
	model.RelationAuntUncle:            (*Engine).addAuntUncle,
	model.RelationCousin:               (*Engine).addCousin,
}

// Apply runs req inside tx. Any returned error must abort the transaction.
func (e *Engine) Apply(ctx context.Context, tx driver.Tx, userID string, req *model.AddRelationRequest) (*model.RelationResult, error) {
	h, ok := handlers[req.RelationType]
	if !ok {
		return nil, apperror.Validation("Unsupported relationType")
	}

	ref, err := tx.GetPerson(ctx, req.ReferenceID)
	if err != nil {
		return nil, classify(err)
	}
	if ref == nil {
		return nil, apperror.NotFound("Reference person not found")
	}
	if req.Person == nil {
		return nil, apperror.Validation("person is required")
	}
	if err := e.checkInputs(ctx, tx, req); err != nil {
		return nil, classify(err)
	}

	now := e.now()
	m := &mutation{
		tx:     tx,
		userID: userID,
		audit:  model.Audit{CreatedAt: now, CreatedBy: userID},
		ref:    *ref,
	}
	if err := h(e, ctx, m, req); err != nil {
		return nil, classify(err)
	}
	if err := e.verifyCaps(ctx, m, req.RelationType); err != nil {
		return nil, classify(err)
	}

	result, err := e.assemble(ctx, m)
	if err != nil {
		return nil, classify(err)
	}
	return result, nil
}

func (e *Engine) checkInputs(ctx context.Context, tx driver.Tx, req *model.AddRelationRequest) error {
	if err := CheckCredential(req.Person.TempPassword); err != nil {
		return err
	}
	if req.Partner != nil {
		if err := CheckCredential(req.Partner.TempPassword); err != nil {
			return err
		}
		if normalizeEmail(req.Partner.Email) == normalizeEmail(req.Person.Email) {
			return apperror.Duplicate("Person and partner share an email")
		}
	}

	if CreationPolicyFor(req.RelationType) == AlwaysInsert {
		if err := ensureEmailFree(ctx, tx, req.Person.Email); err != nil {
			return err
		}
	}
	if req.Partner != nil {
		if err := ensureEmailFree(ctx, tx, req.Partner.Email); err != nil {
			return err
		}
	}
	return nil
}

func ensureEmailFree(ctx context.Context, tx driver.Tx, email string) error {
	existing, err := tx.FindPersonByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if existing != nil {
		return apperror.Duplicate("Email already exists for another person")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) newPerson(m *mutation, in *model.PersonInput) (model.Person, error) {
	hash, err := e.hasher.Hash(in.TempPassword)
	if err != nil {
		return model.Person{}, fmt.Errorf("hash credential: %w", err)
	}
	return model.Person{
		ID:           e.newID(),
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		Gender:       in.Gender,
		BirthDate:    in.BirthDate,
		PasswordHash: hash,
		CreatedAt:    m.audit.CreatedAt,
		CreatedBy:    m.userID,
	}, nil
}

// insert creates a detached person.
func (e *Engine) insert(ctx context.Context, m *mutation, in *model.PersonInput) (model.Person, error) {
	p, err := e.newPerson(m, in)
	if err != nil {
		return model.Person{}, err
	}
	if err := m.tx.CreatePerson(ctx, p); err != nil {
		return model.Person{}, err
	}
	m.created = append(m.created, p)
	return p, nil
}

func (e *Engine) assemble(ctx context.Context, m *mutation) (*model.RelationResult, error) {
	familyID, err := m.tx.FamilyOf(ctx, m.ref.ID)
	if err != nil {
		return nil, err
	}
	ids := []string{m.ref.ID}
	for _, p := range m.created {
		ids = append(ids, p.ID)
		if familyID != "" {
			if err := m.tx.AttachToFamily(ctx, familyID, p.ID, model.RoleMember); err != nil {
				return nil, err
			}
		}
	}

	touching, err := m.tx.EdgesTouching(ctx, ids)
	if err != nil {
		return nil, err
	}
	kin := make([]model.Edge, 0, len(touching))
	for _, edge := range touching {
		if edge.Type == model.EdgeParentOf || edge.Type == model.EdgeSpouseOf {
			kin = append(kin, edge)
		}
	}

	result := &model.RelationResult{
		Nodes: append([]model.Person{}, m.created...),
		Edges: model.NormalizeEdges(kin),
	}
	if familyID != "" {
		result.FamilyID = &familyID
	}
	return result, nil
}

// classify maps store failures onto the error taxonomy. Domain errors pass
// through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	if errors.Is(err, driver.ErrConstraintViolation) {
		return apperror.Duplicate("Email already exists for another person").WithInternal(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperror.Internal(err)
}
