package model

import (
	"sort"
	"time"
)

type EdgeType string

const (
	EdgeParentOf EdgeType = "PARENT_OF"
	EdgeSpouseOf EdgeType = "SPOUSE_OF"
	EdgeMemberOf EdgeType = "MEMBER_OF"
)

// Edge is a directed relationship between two persons. SPOUSE_OF is stored
// as two edges, one per direction.
type Edge struct {
	Type     EdgeType `json:"type"`
	SourceID string   `json:"sourceId"`
	TargetID string   `json:"targetId"`
}

func (e Edge) Reversed() Edge {
	return Edge{Type: e.Type, SourceID: e.TargetID, TargetID: e.SourceID}
}

// Key identifies an edge in change-set events.
func (e Edge) Key() string {
	return e.SourceID + "-" + e.TargetID + "-" + string(e.Type)
}

// Label is the short name clients render for the edge.
func (e Edge) Label() string {
	switch e.Type {
	case EdgeSpouseOf:
		return "SPOUSE"
	case EdgeParentOf:
		return "PARENT"
	default:
		return string(e.Type)
	}
}

// Audit is stamped on every edge the engine writes.
type Audit struct {
	CreatedAt time.Time
	CreatedBy string
}

// NormalizeEdges expands SPOUSE_OF into both directions, drops duplicates and
// sorts by type, source and target.
func NormalizeEdges(edges []Edge) []Edge {
	seen := make(map[Edge]struct{}, len(edges)*2)
	out := make([]Edge, 0, len(edges)*2)
	add := func(e Edge) {
		if e.SourceID == "" || e.TargetID == "" {
			return
		}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	for _, e := range edges {
		add(e)
		if e.Type == EdgeSpouseOf {
			add(e.Reversed())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}
