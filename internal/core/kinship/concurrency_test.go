package kinship

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/kindred/internal/apperror"
	"github.com/agenthands/kindred/internal/core/model"
)

func race(t *testing.T, n int, run func(i int) error) map[apperror.Kind]int {
	t.Helper()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		start   = make(chan struct{})
		results = make(map[apperror.Kind]int)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := run(i)
			kind := apperror.Kind("OK")
			if err != nil {
				kind = apperror.KindOf(err)
			}
			mu.Lock()
			results[kind]++
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()
	return results
}

func TestConcurrentParents(t *testing.T) {
	g := newGraph(t).person("ref", "")
	e := NewEngine(plainHasher{}, zap.NewNop())

	results := race(t, 8, func(i int) error {
		_, err := apply(g, e, &model.AddRelationRequest{
			ReferenceID: "ref", RelationType: model.RelationParent, Person: input(fmt.Sprintf("parent%d", i)),
		})
		return err
	})

	assert.Equal(t, model.ParentLimit, results["OK"])
	assert.Equal(t, 8-model.ParentLimit, results[apperror.KindLimit])
	assert.Equal(t, model.ParentLimit, g.parents("ref"))
}

func TestConcurrentSpouses(t *testing.T) {
	g := newGraph(t).person("ref", "")
	e := NewEngine(plainHasher{}, zap.NewNop())

	results := race(t, 2, func(i int) error {
		_, err := apply(g, e, &model.AddRelationRequest{
			ReferenceID: "ref", RelationType: model.RelationSpouse, Person: input(fmt.Sprintf("spouse%d", i)),
		})
		return err
	})

	assert.Equal(t, 1, results["OK"])
	assert.Equal(t, 1, results[apperror.KindLimit])
	assert.Equal(t, 1, g.spouseCount("ref"))
}

func TestConcurrentSameEmail(t *testing.T) {
	g := newGraph(t).person("a", "").person("b", "")
	e := NewEngine(plainHasher{}, zap.NewNop())
	refs := []string{"a", "b"}

	results := race(t, 2, func(i int) error {
		_, err := apply(g, e, &model.AddRelationRequest{
			ReferenceID: refs[i], RelationType: model.RelationChild, Person: input("twin"),
		})
		return err
	})

	assert.Equal(t, 1, results["OK"])
	assert.Equal(t, 1, results[apperror.KindDuplicate])

	nodes, _ := g.s.Counts()
	require.Equal(t, 3, nodes)
}
