package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/kindred/internal/core/model"
)

func person(id, email string, g model.Gender) model.Person {
	return model.Person{ID: id, Name: id, Email: email, Gender: g, CreatedAt: time.Unix(0, 0).UTC()}
}

func TestMemoryStore_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	audit := model.Audit{CreatedBy: "u1"}

	require.NoError(t, s.ExecuteWrite(ctx, func(tx Tx) error {
		return tx.CreatePerson(ctx, person("ref", "ref@example.com", model.GenderFemale))
	}))

	boom := errors.New("boom")
	err := s.ExecuteWrite(ctx, func(tx Tx) error {
		require.NoError(t, tx.CreatePerson(ctx, person("p1", "p1@example.com", model.GenderMale)))
		require.NoError(t, tx.AddParentOf(ctx, "p1", "ref", audit))
		require.NoError(t, tx.MarkSpouseLock(ctx, "ref", "m1"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	nodes, edges := s.Counts()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 0, edges)

	require.NoError(t, s.ExecuteRead(ctx, func(tx Tx) error {
		p, err := tx.FindPersonByEmail(ctx, "p1@example.com")
		assert.Nil(t, p)
		return err
	}))
}

func TestMemoryStore_UniqueEmail(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.ExecuteWrite(ctx, func(tx Tx) error {
		return tx.CreatePerson(ctx, person("a", "Same@Example.com", ""))
	}))
	err := s.ExecuteWrite(ctx, func(tx Tx) error {
		return tx.CreatePerson(ctx, person("b", "same@example.com", ""))
	})
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func TestMemoryStore_CreateParentBelowCap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	audit := model.Audit{CreatedBy: "u1"}

	require.NoError(t, s.ExecuteWrite(ctx, func(tx Tx) error {
		return tx.CreatePerson(ctx, person("child", "", ""))
	}))

	for i, id := range []string{"p1", "p2", "p3"} {
		var created bool
		require.NoError(t, s.ExecuteWrite(ctx, func(tx Tx) error {
			var err error
			created, err = tx.CreateParentBelowCap(ctx, person(id, "", ""), "child", model.ParentLimit, audit)
			return err
		}))
		assert.Equal(t, i < 2, created, id)
	}

	nodes, edges := s.Counts()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, edges)
}

func TestMemoryStore_IsParentSibling(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	audit := model.Audit{}

	require.NoError(t, s.ExecuteWrite(ctx, func(tx Tx) error {
		for _, id := range []string{"gp", "mom", "aunt", "ref", "stranger"} {
			if err := tx.CreatePerson(ctx, person(id, "", "")); err != nil {
				return err
			}
		}
		for _, e := range [][2]string{{"gp", "mom"}, {"gp", "aunt"}, {"mom", "ref"}} {
			if err := tx.AddParentOf(ctx, e[0], e[1], audit); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.ExecuteRead(ctx, func(tx Tx) error {
		ok, err := tx.IsParentSibling(ctx, "ref", "aunt")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.IsParentSibling(ctx, "ref", "mom")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = tx.IsParentSibling(ctx, "ref", "stranger")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

func TestMemoryStore_EdgesTouchingExpandsSpouses(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	audit := model.Audit{}

	require.NoError(t, s.ExecuteWrite(ctx, func(tx Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			if err := tx.CreatePerson(ctx, person(id, "", "")); err != nil {
				return err
			}
		}
		if err := tx.AddSpousePair(ctx, "a", "b", audit); err != nil {
			return err
		}
		return tx.AddParentOf(ctx, "a", "c", audit)
	}))

	require.NoError(t, s.ExecuteRead(ctx, func(tx Tx) error {
		edges, err := tx.EdgesTouching(ctx, []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, []model.Edge{
			{Type: model.EdgeParentOf, SourceID: "a", TargetID: "c"},
			{Type: model.EdgeSpouseOf, SourceID: "a", TargetID: "b"},
			{Type: model.EdgeSpouseOf, SourceID: "b", TargetID: "a"},
		}, edges)
		return nil
	}))
}

func TestMemoryStore_ReadOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	err := s.ExecuteRead(ctx, func(tx Tx) error {
		return tx.CreatePerson(ctx, person("x", "", ""))
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestMemoryStore_FamilyMembership(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.ExecuteWrite(ctx, func(tx Tx) error {
		if err := tx.CreatePerson(ctx, person("a", "", "")); err != nil {
			return err
		}
		if err := tx.CreateFamily(ctx, model.Family{ID: "f1", Name: "Doe"}); err != nil {
			return err
		}
		if err := tx.AttachToFamily(ctx, "f1", "a", ""); err != nil {
			return err
		}
		// second attach keeps the first role
		return tx.AttachToFamily(ctx, "f1", "a", model.RoleMember)
	}))

	require.NoError(t, s.ExecuteRead(ctx, func(tx Tx) error {
		fam, err := tx.FamilyOf(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "f1", fam)

		role, ok, err := tx.MemberRole(ctx, "f1", "a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, model.RoleAdmin, role)
		return nil
	}))
}
