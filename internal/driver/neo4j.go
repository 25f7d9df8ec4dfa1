package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthands/kindred/internal/core/model"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

type Neo4jStore struct {
	Driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

func NewNeo4jStore(ctx context.Context, uri, username, password, database string, logger *zap.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	logger.Info("connected to neo4j", zap.String("uri", uri), zap.String("database", database))
	return &Neo4jStore{Driver: driver, database: database, logger: logger}, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.Driver.Close(ctx)
}

func (s *Neo4jStore) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.Driver, query, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", translateError(err))
	}
	return *result, nil
}

func (s *Neo4jStore) ExecuteWrite(ctx context.Context, fn func(Tx) error) error {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&neo4jTx{run: managedRunner(tx)})
	})
	return translateError(err)
}

func (s *Neo4jStore) ExecuteRead(ctx context.Context, fn func(Tx) error) error {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&neo4jTx{run: managedRunner(tx), readOnly: true})
	})
	return translateError(err)
}

func (s *Neo4jStore) BuildIndices(ctx context.Context) error {
	for _, q := range SchemaQueries {
		if _, err := s.ExecuteQuery(ctx, q, nil); err != nil {
			// An equivalent constraint under another name is not fatal.
			s.logger.Warn("failed to create constraint", zap.String("query", q), zap.Error(err))
		}
	}
	return nil
}

type runner func(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)

func managedRunner(tx neo4j.ManagedTransaction) runner {
	return func(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, translateError(err)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, translateError(err)
		}
		return records, nil
	}
}

type neo4jTx struct {
	run      runner
	readOnly bool
}

func (t *neo4jTx) write(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	if t.readOnly {
		return nil, ErrReadOnly
	}
	return t.run(ctx, query, params)
}

func (t *neo4jTx) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	records, err := t.run(ctx, GetPersonQuery, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get person %s: %w", id, err)
	}
	return firstPerson(records), nil
}

// FindPersonByEmail matches the stored email exactly so the unique index
// serves the lookup. Emails are lowercased on every write and here.
func (t *neo4jTx) FindPersonByEmail(ctx context.Context, email string) (*model.Person, error) {
	records, err := t.run(ctx, FindPersonByEmailQuery, map[string]any{"email": emailKey(email)})
	if err != nil {
		return nil, fmt.Errorf("find person by email: %w", err)
	}
	return firstPerson(records), nil
}

func (t *neo4jTx) Parents(ctx context.Context, id string) ([]model.Person, error) {
	return t.people(ctx, GetParentsQuery, id)
}

func (t *neo4jTx) Spouses(ctx context.Context, id string) ([]model.Person, error) {
	return t.people(ctx, GetSpousesQuery, id)
}

func (t *neo4jTx) people(ctx context.Context, query, id string) ([]model.Person, error) {
	records, err := t.run(ctx, query, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("list relatives of %s: %w", id, err)
	}
	out := make([]model.Person, 0, len(records))
	for _, rec := range records {
		if p := personFromRecord(rec); p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (t *neo4jTx) CountParents(ctx context.Context, id string) (int, error) {
	return t.count(ctx, CountParentsQuery, map[string]any{"id": id})
}

func (t *neo4jTx) CountSpouses(ctx context.Context, id string) (int, error) {
	return t.count(ctx, CountSpousesQuery, map[string]any{"id": id})
}

func (t *neo4jTx) count(ctx context.Context, query string, params map[string]any) (int, error) {
	records, err := t.run(ctx, query, params)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	n, _ := records[0].Get("n")
	return int(asInt64(n)), nil
}

func (t *neo4jTx) IsParentSibling(ctx context.Context, refID, candidateID string) (bool, error) {
	records, err := t.run(ctx, IsParentSiblingQuery, map[string]any{"refId": refID, "candidateId": candidateID})
	if err != nil {
		return false, fmt.Errorf("check aunt/uncle path: %w", err)
	}
	if len(records) == 0 {
		return false, nil
	}
	ok, _ := records[0].Get("ok")
	b, _ := ok.(bool)
	return b, nil
}

func (t *neo4jTx) FamilyOf(ctx context.Context, personID string) (string, error) {
	records, err := t.run(ctx, FamilyOfQuery, map[string]any{"id": personID})
	if err != nil {
		return "", fmt.Errorf("resolve family of %s: %w", personID, err)
	}
	if len(records) == 0 {
		return "", nil
	}
	id, _ := records[0].Get("id")
	return asString(id), nil
}

func (t *neo4jTx) MemberRole(ctx context.Context, familyID, personID string) (string, bool, error) {
	records, err := t.run(ctx, MemberRoleQuery, map[string]any{"familyId": familyID, "personId": personID})
	if err != nil {
		return "", false, fmt.Errorf("resolve member role: %w", err)
	}
	if len(records) == 0 {
		return "", false, nil
	}
	role, _ := records[0].Get("role")
	return asString(role), true, nil
}

func (t *neo4jTx) CreatePerson(ctx context.Context, p model.Person) error {
	if _, err := t.write(ctx, CreatePersonQuery, personParams(p)); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

func (t *neo4jTx) CreateParentBelowCap(ctx context.Context, parent model.Person, childID string, limit int, audit model.Audit) (bool, error) {
	params := personParams(parent)
	params["childId"] = childID
	params["cap"] = limit
	params["createdAt"] = formatTime(audit.CreatedAt)
	params["createdBy"] = audit.CreatedBy
	records, err := t.write(ctx, CreateParentBelowCapQuery, params)
	if err != nil {
		return false, fmt.Errorf("create parent: %w", err)
	}
	return len(records) > 0, nil
}

func (t *neo4jTx) MergePersonByEmail(ctx context.Context, p model.Person) (model.Person, bool, error) {
	records, err := t.write(ctx, MergePersonByEmailQuery, personParams(p))
	if err != nil {
		return model.Person{}, false, fmt.Errorf("merge person: %w", err)
	}
	if len(records) == 0 {
		return model.Person{}, false, fmt.Errorf("merge person: no row returned")
	}
	merged := personFromRecord(records[0])
	if merged == nil {
		return model.Person{}, false, fmt.Errorf("merge person: malformed row")
	}
	created, _ := records[0].Get("created")
	isNew, _ := created.(bool)
	return *merged, isNew, nil
}

func (t *neo4jTx) AddParentOf(ctx context.Context, parentID, childID string, audit model.Audit) error {
	records, err := t.write(ctx, AddParentOfQuery, map[string]any{
		"parentId":  parentID,
		"childId":   childID,
		"createdAt": formatTime(audit.CreatedAt),
		"createdBy": audit.CreatedBy,
	})
	if err != nil {
		return fmt.Errorf("add parent edge: %w", err)
	}
	if !hasCount(records) {
		return fmt.Errorf("add parent edge %s->%s: %w", parentID, childID, ErrPersonNotFound)
	}
	return nil
}

func (t *neo4jTx) AddSpousePair(ctx context.Context, aID, bID string, audit model.Audit) error {
	records, err := t.write(ctx, AddSpousePairQuery, map[string]any{
		"aId":       aID,
		"bId":       bID,
		"createdAt": formatTime(audit.CreatedAt),
		"createdBy": audit.CreatedBy,
	})
	if err != nil {
		return fmt.Errorf("add spouse pair: %w", err)
	}
	if !hasCount(records) {
		return fmt.Errorf("add spouse pair %s<->%s: %w", aID, bID, ErrPersonNotFound)
	}
	return nil
}

func (t *neo4jTx) MarkSpouseLock(ctx context.Context, personID, marker string) error {
	records, err := t.write(ctx, MarkSpouseLockQuery, map[string]any{"id": personID, "marker": marker})
	if err != nil {
		return fmt.Errorf("mark spouse lock: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("mark spouse lock %s: %w", personID, ErrPersonNotFound)
	}
	return nil
}

func (t *neo4jTx) CreateFamily(ctx context.Context, f model.Family) error {
	_, err := t.write(ctx, CreateFamilyQuery, map[string]any{
		"id":        f.ID,
		"name":      f.Name,
		"createdAt": formatTime(f.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("create family: %w", err)
	}
	return nil
}

func (t *neo4jTx) AttachToFamily(ctx context.Context, familyID, personID, role string) error {
	records, err := t.write(ctx, AttachToFamilyQuery, map[string]any{
		"familyId": familyID,
		"personId": personID,
		"role":     role,
	})
	if err != nil {
		return fmt.Errorf("attach to family: %w", err)
	}
	if !hasCount(records) {
		return fmt.Errorf("attach %s to %s: %w", personID, familyID, ErrFamilyNotFound)
	}
	return nil
}

func (t *neo4jTx) EdgesTouching(ctx context.Context, ids []string) ([]model.Edge, error) {
	records, err := t.run(ctx, EdgesTouchingQuery, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	edges := make([]model.Edge, 0, len(records))
	for _, rec := range records {
		typ, _ := rec.Get("type")
		src, _ := rec.Get("sourceId")
		dst, _ := rec.Get("targetId")
		edges = append(edges, model.Edge{
			Type:     model.EdgeType(asString(typ)),
			SourceID: asString(src),
			TargetID: asString(dst),
		})
	}
	return edges, nil
}

func personParams(p model.Person) map[string]any {
	return map[string]any{
		"id":           p.ID,
		"name":         p.Name,
		"email":        nilIfEmpty(emailKey(p.Email)),
		"gender":       nilIfEmpty(string(p.Gender)),
		"birthDate":    nilIfEmpty(p.BirthDate),
		"deathDate":    nilIfEmpty(p.DeathDate),
		"passwordHash": nilIfEmpty(p.PasswordHash),
		"createdAt":    formatTime(p.CreatedAt),
		"createdBy":    nilIfEmpty(p.CreatedBy),
	}
}

func firstPerson(records []*neo4j.Record) *model.Person {
	if len(records) == 0 {
		return nil
	}
	return personFromRecord(records[0])
}

func personFromRecord(rec *neo4j.Record) *model.Person {
	raw, ok := rec.Get("person")
	if !ok {
		return nil
	}
	props, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	p := model.Person{
		ID:           asString(props["id"]),
		Name:         asString(props["name"]),
		Email:        asString(props["email"]),
		Gender:       model.Gender(asString(props["gender"])),
		BirthDate:    asString(props["birthDate"]),
		DeathDate:    asString(props["deathDate"]),
		PasswordHash: asString(props["passwordHash"]),
		CreatedBy:    asString(props["createdBy"]),
	}
	if ts := asString(props["createdAt"]); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			p.CreatedAt = parsed
		}
	}
	return &p
}

func hasCount(records []*neo4j.Record) bool {
	if len(records) == 0 {
		return false
	}
	n, _ := records[0].Get("n")
	return asInt64(n) > 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
