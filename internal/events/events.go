// Package events turns a committed relation change into client notifications
// and fans them out to realtime transports.
package events

import (
	"context"
	"errors"

	"github.com/agenthands/kindred/internal/core/model"
)

const (
	TypeNodeUpsert  = "node:upsert"
	TypeEdgeCreated = "edge:created"
)

// GlobalRoom addresses every connected client.
const GlobalRoom = ""

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type EdgeCreated struct {
	ID       string         `json:"id"`
	SourceID string         `json:"sourceId"`
	TargetID string         `json:"targetId"`
	Type     model.EdgeType `json:"type"`
	Label    string         `json:"label"`
}

type Emitter interface {
	Publish(ctx context.Context, room string, ev Event) error
}

func FamilyRoom(familyID string) string {
	return "family:" + familyID
}

// RoomFor picks the family room of a result, or the global room when the
// reference person is not grouped.
func RoomFor(res *model.RelationResult) string {
	if res == nil || res.FamilyID == nil || *res.FamilyID == "" {
		return GlobalRoom
	}
	return FamilyRoom(*res.FamilyID)
}

// ChangeSetEvents lists one node:upsert per returned person followed by one
// edge:created per returned edge.
func ChangeSetEvents(res *model.RelationResult) []Event {
	if res == nil {
		return nil
	}
	out := make([]Event, 0, len(res.Nodes)+len(res.Edges))
	for _, p := range res.Nodes {
		out = append(out, Event{Type: TypeNodeUpsert, Data: p})
	}
	for _, e := range res.Edges {
		out = append(out, Event{Type: TypeEdgeCreated, Data: EdgeCreated{
			ID:       e.Key(),
			SourceID: e.SourceID,
			TargetID: e.TargetID,
			Type:     e.Type,
			Label:    e.Label(),
		}})
	}
	return out
}

// Multi publishes to every emitter and joins their errors.
type Multi []Emitter

func (m Multi) Publish(ctx context.Context, room string, ev Event) error {
	var errs []error
	for _, e := range m {
		if err := e.Publish(ctx, room, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Noop struct{}

func (Noop) Publish(context.Context, string, Event) error { return nil }
