package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/kindred/internal/core/model"
)

func sampleResult(familyID *string) *model.RelationResult {
	return &model.RelationResult{
		FamilyID: familyID,
		Nodes:    []model.Person{{ID: "p2", Name: "Mom"}},
		Edges: []model.Edge{
			{Type: model.EdgeParentOf, SourceID: "p2", TargetID: "p1"},
			{Type: model.EdgeSpouseOf, SourceID: "p2", TargetID: "p3"},
		},
	}
}

func TestChangeSetEvents(t *testing.T) {
	evs := ChangeSetEvents(sampleResult(nil))
	require.Len(t, evs, 3)
	assert.Equal(t, TypeNodeUpsert, evs[0].Type)
	assert.Equal(t, TypeEdgeCreated, evs[1].Type)
	assert.Equal(t, EdgeCreated{ID: "p2-p1-PARENT_OF", SourceID: "p2", TargetID: "p1", Type: model.EdgeParentOf, Label: "PARENT"}, evs[1].Data)
	assert.Equal(t, "SPOUSE", evs[2].Data.(EdgeCreated).Label)
}

func TestEdgeCreatedWireShape(t *testing.T) {
	evs := ChangeSetEvents(sampleResult(nil))
	raw, err := json.Marshal(evs[1].Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p2-p1-PARENT_OF","sourceId":"p2","targetId":"p1","type":"PARENT_OF","label":"PARENT"}`, string(raw))
}

func TestRoomFor(t *testing.T) {
	fam := "f1"
	assert.Equal(t, "family:f1", RoomFor(sampleResult(&fam)))
	assert.Equal(t, GlobalRoom, RoomFor(sampleResult(nil)))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "kindred.family.f1.edge.created", Subject("kindred", FamilyRoom("f1"), TypeEdgeCreated))
	assert.Equal(t, "kindred.global.node.upsert", Subject("kindred", GlobalRoom, TypeNodeUpsert))
	assert.Equal(t, "kindred.family.a_b.node.upsert", Subject("kindred", FamilyRoom("a.b"), TypeNodeUpsert))
}

type failing struct{ err error }

func (f failing) Publish(context.Context, string, Event) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{Noop{}, failing{boom}}
	assert.ErrorIs(t, m.Publish(context.Background(), GlobalRoom, Event{Type: TypeNodeUpsert}), boom)
	assert.NoError(t, Multi{Noop{}}.Publish(context.Background(), GlobalRoom, Event{}))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubRoomsAndGlobal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policy := func(_ context.Context, userID, familyID string) (bool, error) {
		return familyID == "f1", nil
	}
	hub := NewHub(policy, zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	member := dial(t, srv)
	outsider := dial(t, srv)

	require.NoError(t, member.WriteJSON(map[string]string{"type": "join-family", "familyId": "f1"}))
	joined := readJSON(t, member)
	assert.Equal(t, "joined-family", joined["type"])
	assert.Equal(t, "f1", joined["familyId"])

	require.NoError(t, outsider.WriteJSON(map[string]string{"type": "join-family", "familyId": "f2"}))
	denied := readJSON(t, outsider)
	assert.Equal(t, "error", denied["type"])

	require.NoError(t, hub.Publish(ctx, FamilyRoom("f1"), Event{Type: TypeNodeUpsert, Data: map[string]string{"id": "p1"}}))
	got := readJSON(t, member)
	assert.Equal(t, TypeNodeUpsert, got["type"])

	require.NoError(t, hub.Publish(ctx, GlobalRoom, Event{Type: TypeEdgeCreated}))
	assert.Equal(t, TypeEdgeCreated, readJSON(t, member)["type"])
	assert.Equal(t, TypeEdgeCreated, readJSON(t, outsider)["type"])
}
