package driver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agenthands/kindred/internal/core/model"
)

type set map[string]struct{}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MemoryStore is an adjacency-indexed GraphStore. Write transactions are
// serialized and undone on error; reads run concurrently against committed
// state only.
type MemoryStore struct {
	mu sync.RWMutex

	persons  map[string]model.Person
	byEmail  map[string]string
	parents  map[string]set // child -> parents
	children map[string]set // parent -> children
	spouses  map[string]set
	families map[string]model.Family
	members  map[string]map[string]string // person -> family -> role
	locks    map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		persons:  make(map[string]model.Person),
		byEmail:  make(map[string]string),
		parents:  make(map[string]set),
		children: make(map[string]set),
		spouses:  make(map[string]set),
		families: make(map[string]model.Family),
		members:  make(map[string]map[string]string),
		locks:    make(map[string]string),
	}
}

func (s *MemoryStore) ExecuteWrite(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) ExecuteRead(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{s: s, readOnly: true})
}

func (s *MemoryStore) BuildIndices(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// Counts returns the number of persons and directed kinship edges.
func (s *MemoryStore) Counts() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ps := range s.parents {
		edges += len(ps)
	}
	for _, sp := range s.spouses {
		edges += len(sp)
	}
	return len(s.persons), edges
}

type memTx struct {
	s        *MemoryStore
	readOnly bool
	undo     []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (t *memTx) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	p, ok := t.s.persons[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) FindPersonByEmail(ctx context.Context, email string) (*model.Person, error) {
	id, ok := t.s.byEmail[emailKey(email)]
	if !ok {
		return nil, nil
	}
	return t.GetPerson(ctx, id)
}

func (t *memTx) lookup(ids set) []model.Person {
	out := make([]model.Person, 0, len(ids))
	for _, id := range ids.sorted() {
		if p, ok := t.s.persons[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (t *memTx) Parents(ctx context.Context, id string) ([]model.Person, error) {
	return t.lookup(t.s.parents[id]), nil
}

func (t *memTx) Spouses(ctx context.Context, id string) ([]model.Person, error) {
	return t.lookup(t.s.spouses[id]), nil
}

func (t *memTx) CountParents(ctx context.Context, id string) (int, error) {
	return len(t.s.parents[id]), nil
}

func (t *memTx) CountSpouses(ctx context.Context, id string) (int, error) {
	return len(t.s.spouses[id]), nil
}

// ref <- parent <- grandparent -> candidate
func (t *memTx) IsParentSibling(ctx context.Context, refID, candidateID string) (bool, error) {
	for parent := range t.s.parents[refID] {
		if parent == candidateID {
			continue
		}
		for gp := range t.s.parents[parent] {
			if _, ok := t.s.children[gp][candidateID]; ok {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *memTx) FamilyOf(ctx context.Context, personID string) (string, error) {
	fams := t.s.members[personID]
	if len(fams) == 0 {
		return "", nil
	}
	ids := make([]string, 0, len(fams))
	for id := range fams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids[0], nil
}

func (t *memTx) MemberRole(ctx context.Context, familyID, personID string) (string, bool, error) {
	role, ok := t.s.members[personID][familyID]
	if !ok {
		return "", false, nil
	}
	if role == "" {
		role = model.RoleAdmin
	}
	return role, true, nil
}

func (t *memTx) CreatePerson(ctx context.Context, p model.Person) error {
	if err := t.writable(); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("create person: empty id")
	}
	if _, ok := t.s.persons[p.ID]; ok {
		return fmt.Errorf("%w: person id %s", ErrConstraintViolation, p.ID)
	}
	key := emailKey(p.Email)
	if key != "" {
		if _, ok := t.s.byEmail[key]; ok {
			return fmt.Errorf("%w: person email", ErrConstraintViolation)
		}
		t.s.byEmail[key] = p.ID
	}
	t.s.persons[p.ID] = p
	t.undo = append(t.undo, func() {
		delete(t.s.persons, p.ID)
		if key != "" {
			delete(t.s.byEmail, key)
		}
	})
	return nil
}

func (t *memTx) CreateParentBelowCap(ctx context.Context, parent model.Person, childID string, limit int, audit model.Audit) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	if _, ok := t.s.persons[childID]; !ok {
		return false, nil
	}
	if len(t.s.parents[childID]) >= limit {
		return false, nil
	}
	if err := t.CreatePerson(ctx, parent); err != nil {
		return false, err
	}
	if err := t.AddParentOf(ctx, parent.ID, childID, audit); err != nil {
		return false, err
	}
	return true, nil
}

func (t *memTx) MergePersonByEmail(ctx context.Context, p model.Person) (model.Person, bool, error) {
	if err := t.writable(); err != nil {
		return model.Person{}, false, err
	}
	if id, ok := t.s.byEmail[emailKey(p.Email)]; ok {
		return t.s.persons[id], false, nil
	}
	if err := t.CreatePerson(ctx, p); err != nil {
		return model.Person{}, false, err
	}
	return p, true, nil
}

func (t *memTx) link(index map[string]set, from, to string) {
	if _, ok := index[from][to]; ok {
		return
	}
	if index[from] == nil {
		index[from] = make(set)
	}
	index[from][to] = struct{}{}
	t.undo = append(t.undo, func() {
		delete(index[from], to)
		if len(index[from]) == 0 {
			delete(index, from)
		}
	})
}

func (t *memTx) requirePersons(ids ...string) error {
	for _, id := range ids {
		if _, ok := t.s.persons[id]; !ok {
			return fmt.Errorf("%s: %w", id, ErrPersonNotFound)
		}
	}
	return nil
}

func (t *memTx) AddParentOf(ctx context.Context, parentID, childID string, audit model.Audit) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.requirePersons(parentID, childID); err != nil {
		return fmt.Errorf("add parent edge: %w", err)
	}
	t.link(t.s.parents, childID, parentID)
	t.link(t.s.children, parentID, childID)
	return nil
}

func (t *memTx) AddSpousePair(ctx context.Context, aID, bID string, audit model.Audit) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.requirePersons(aID, bID); err != nil {
		return fmt.Errorf("add spouse pair: %w", err)
	}
	t.link(t.s.spouses, aID, bID)
	t.link(t.s.spouses, bID, aID)
	return nil
}

func (t *memTx) MarkSpouseLock(ctx context.Context, personID, marker string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.requirePersons(personID); err != nil {
		return fmt.Errorf("mark spouse lock: %w", err)
	}
	if _, ok := t.s.locks[personID]; ok {
		return nil
	}
	t.s.locks[personID] = marker
	t.undo = append(t.undo, func() { delete(t.s.locks, personID) })
	return nil
}

func (t *memTx) CreateFamily(ctx context.Context, f model.Family) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.s.families[f.ID]; ok {
		return fmt.Errorf("%w: family id %s", ErrConstraintViolation, f.ID)
	}
	t.s.families[f.ID] = f
	t.undo = append(t.undo, func() { delete(t.s.families, f.ID) })
	return nil
}

func (t *memTx) AttachToFamily(ctx context.Context, familyID, personID, role string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.s.families[familyID]; !ok {
		return fmt.Errorf("attach %s: %w", familyID, ErrFamilyNotFound)
	}
	if err := t.requirePersons(personID); err != nil {
		return fmt.Errorf("attach to family: %w", err)
	}
	if _, ok := t.s.members[personID][familyID]; ok {
		return nil
	}
	if t.s.members[personID] == nil {
		t.s.members[personID] = make(map[string]string)
	}
	t.s.members[personID][familyID] = role
	t.undo = append(t.undo, func() {
		delete(t.s.members[personID], familyID)
		if len(t.s.members[personID]) == 0 {
			delete(t.s.members, personID)
		}
	})
	return nil
}

func (t *memTx) EdgesTouching(ctx context.Context, ids []string) ([]model.Edge, error) {
	var edges []model.Edge
	for _, id := range ids {
		for p := range t.s.parents[id] {
			edges = append(edges, model.Edge{Type: model.EdgeParentOf, SourceID: p, TargetID: id})
		}
		for c := range t.s.children[id] {
			edges = append(edges, model.Edge{Type: model.EdgeParentOf, SourceID: id, TargetID: c})
		}
		for sp := range t.s.spouses[id] {
			edges = append(edges, model.Edge{Type: model.EdgeSpouseOf, SourceID: id, TargetID: sp})
			edges = append(edges, model.Edge{Type: model.EdgeSpouseOf, SourceID: sp, TargetID: id})
		}
	}
	return model.NormalizeEdges(edges), nil
}
