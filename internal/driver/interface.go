package driver

import (
	"context"

	"github.com/agenthands/kindred/internal/core/model"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// QueryRunner runs a single auto-committed statement.
type QueryRunner interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
}

// GraphStore is a transactional person graph. A write transaction either
// commits every statement or none: returning an error from fn rolls back.
type GraphStore interface {
	ExecuteWrite(ctx context.Context, fn func(Tx) error) error
	ExecuteRead(ctx context.Context, fn func(Tx) error) error
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx is the set of statements the kinship engine issues inside one
// transaction. Lookups return a nil person (or empty id) with a nil error
// when nothing matches.
type Tx interface {
	GetPerson(ctx context.Context, id string) (*model.Person, error)
	FindPersonByEmail(ctx context.Context, email string) (*model.Person, error)
	Parents(ctx context.Context, id string) ([]model.Person, error)
	Spouses(ctx context.Context, id string) ([]model.Person, error)
	CountParents(ctx context.Context, id string) (int, error)
	CountSpouses(ctx context.Context, id string) (int, error)
	// IsParentSibling reports whether candidate is a child of a grandparent
	// of ref, other than ref's own parent.
	IsParentSibling(ctx context.Context, refID, candidateID string) (bool, error)
	FamilyOf(ctx context.Context, personID string) (string, error)
	MemberRole(ctx context.Context, familyID, personID string) (string, bool, error)

	CreatePerson(ctx context.Context, p model.Person) error
	// CreateParentBelowCap creates parent and links it to child only when the
	// child has fewer than limit parents at write time.
	CreateParentBelowCap(ctx context.Context, parent model.Person, childID string, limit int, audit model.Audit) (bool, error)
	MergePersonByEmail(ctx context.Context, p model.Person) (model.Person, bool, error)
	AddParentOf(ctx context.Context, parentID, childID string, audit model.Audit) error
	AddSpousePair(ctx context.Context, aID, bID string, audit model.Audit) error
	MarkSpouseLock(ctx context.Context, personID, marker string) error
	CreateFamily(ctx context.Context, f model.Family) error
	AttachToFamily(ctx context.Context, familyID, personID, role string) error
	EdgesTouching(ctx context.Context, ids []string) ([]model.Edge, error)
}
