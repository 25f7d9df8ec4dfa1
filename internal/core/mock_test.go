package core

import (
	"context"
	"sync"

	"github.com/agenthands/kindred/internal/events"
)

type published struct {
	Room  string
	Event events.Event
}

type MockEmitter struct {
	mu     sync.Mutex
	Events []published
	Err    error
}

func (m *MockEmitter) Publish(ctx context.Context, room string, ev events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, published{Room: room, Event: ev})
	return nil
}

func (m *MockEmitter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// gateEmitter parks the first Publish until release is closed.
type gateEmitter struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGateEmitter() *gateEmitter {
	return &gateEmitter{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateEmitter) Publish(ctx context.Context, room string, ev events.Event) error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return nil
}

// MockAdmin grants admin to the listed "family/user" pairs.
type MockAdmin struct {
	Admins map[string]bool
	Calls  int
	Err    error
}

func (m *MockAdmin) IsAdmin(ctx context.Context, familyID, userID string) (bool, error) {
	m.Calls++
	if m.Err != nil {
		return false, m.Err
	}
	return m.Admins[familyID+"/"+userID], nil
}

func (m *MockAdmin) IsMember(ctx context.Context, familyID, userID string) (bool, error) {
	return m.IsAdmin(ctx, familyID, userID)
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}
