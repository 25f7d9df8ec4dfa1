package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/agenthands/kindred/internal/apperror"
	"github.com/agenthands/kindred/internal/auth"
	"github.com/agenthands/kindred/internal/core/idempotency"
	"github.com/agenthands/kindred/internal/core/kinship"
	"github.com/agenthands/kindred/internal/core/model"
	"github.com/agenthands/kindred/internal/driver"
	"github.com/agenthands/kindred/internal/events"
	"github.com/agenthands/kindred/internal/metrics"
)

// Outcome is what the transport writes back. Body holds the exact bytes that
// were recorded for the idempotency key, so replays are byte-identical.
type Outcome struct {
	Status   int
	Body     []byte
	Replayed bool
	Result   *model.RelationResult
}

type Deps struct {
	Store       driver.GraphStore
	Engine      *kinship.Engine
	Idempotency *idempotency.Store
	Emitter     events.Emitter
	Admin       auth.FamilyAdmin
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	// RelationLog turns on the per-write relation_created log line.
	RelationLog bool
}

// Relations is the add-relation use case: validate, authorize, deduplicate,
// write, publish and record.
type Relations struct {
	store       driver.GraphStore
	engine      *kinship.Engine
	idem        *idempotency.Store
	emitter     events.Emitter
	admin       auth.FamilyAdmin
	metrics     *metrics.Metrics
	logger      *zap.Logger
	relationLog bool

	flight singleflight.Group
	now    func() time.Time
}

func NewRelations(d Deps) *Relations {
	r := &Relations{
		store:       d.Store,
		engine:      d.Engine,
		idem:        d.Idempotency,
		emitter:     d.Emitter,
		admin:       d.Admin,
		metrics:     d.Metrics,
		logger:      d.Logger,
		relationLog: d.RelationLog,
		now:         time.Now,
	}
	if r.emitter == nil {
		r.emitter = events.Noop{}
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// AddRelation adds the relation described by req on behalf of userID. A
// non-empty idemKey makes the call safe to retry: a stored success is
// returned verbatim without touching the graph. Failures are never stored.
func (r *Relations) AddRelation(ctx context.Context, userID, idemKey string, req *model.AddRelationRequest) (*Outcome, error) {
	start := r.now()

	out, err := r.addRelation(ctx, userID, idemKey, req)
	if err != nil {
		r.failed(userID, req, err)
		return nil, err
	}
	if !out.Replayed {
		r.succeeded(userID, req, out, r.now().Sub(start))
	}
	return out, nil
}

func (r *Relations) addRelation(ctx context.Context, userID, idemKey string, req *model.AddRelationRequest) (*Outcome, error) {
	if req == nil {
		return nil, apperror.Validation("Validation failed")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := r.authorize(ctx, userID, req.ReferenceID); err != nil {
		return nil, err
	}

	if idemKey == "" {
		return r.write(ctx, userID, idemKey, req)
	}

	// The shared write serves every caller joined on the key, so one caller
	// going away must not abort it for the rest.
	v, err, _ := r.flight.Do(idempotency.Key(userID, idemKey), func() (any, error) {
		return r.write(context.WithoutCancel(ctx), userID, idemKey, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Outcome), nil
}

// authorize requires an admin role in the reference person's family. A
// reference that belongs to no family is not checked.
func (r *Relations) authorize(ctx context.Context, userID, referenceID string) error {
	var familyID string
	err := r.store.ExecuteRead(ctx, func(tx driver.Tx) error {
		var err error
		familyID, err = tx.FamilyOf(ctx, referenceID)
		return err
	})
	if err != nil {
		return classify(err)
	}
	if familyID == "" {
		r.logger.Debug("authorization skipped for ungrouped reference",
			zap.String("referenceId", referenceID),
			zap.String("userId", userID))
		return nil
	}
	if r.admin == nil {
		return apperror.Forbidden("Only family admins can add relations")
	}

	ok, err := r.admin.IsAdmin(ctx, familyID, userID)
	if err != nil {
		return classify(err)
	}
	if !ok {
		return apperror.Forbidden("Only family admins can add relations")
	}
	return nil
}

func (r *Relations) write(ctx context.Context, userID, idemKey string, req *model.AddRelationRequest) (*Outcome, error) {
	if r.idem != nil {
		rec, hit, err := r.idem.Get(ctx, userID, idemKey)
		if err != nil {
			return nil, classify(err)
		}
		if hit {
			r.metrics.IdempotencyReplayed()
			r.logger.Info("idempotency replay",
				zap.String("evt", "idempotency_replay"),
				zap.String("userId", userID),
				zap.String("key", idemKey))
			return &Outcome{Status: rec.Status, Body: rec.Payload, Replayed: true}, nil
		}
	}

	var res *model.RelationResult
	err := r.store.ExecuteWrite(ctx, func(tx driver.Tx) error {
		var err error
		res, err = r.engine.Apply(ctx, tx, userID, req)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	body, err := json.Marshal(res)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	r.emit(ctx, res)

	if r.idem != nil {
		if err := r.idem.Put(ctx, userID, idemKey, http.StatusCreated, body); err != nil {
			r.logger.Warn("failed to record idempotency result",
				zap.String("userId", userID),
				zap.String("key", idemKey),
				zap.Error(err))
		}
	}

	return &Outcome{Status: http.StatusCreated, Body: body, Result: res}, nil
}

func (r *Relations) emit(ctx context.Context, res *model.RelationResult) {
	room := events.RoomFor(res)
	for _, ev := range events.ChangeSetEvents(res) {
		if err := r.emitter.Publish(ctx, room, ev); err != nil {
			r.metrics.EmitFailed()
			r.logger.Warn("relation emit failed",
				zap.String("evt", "relation_emit_failed"),
				zap.String("room", room),
				zap.String("type", ev.Type),
				zap.Error(err))
		}
	}
}

func (r *Relations) succeeded(userID string, req *model.AddRelationRequest, out *Outcome, took time.Duration) {
	rt := string(req.RelationType)
	r.metrics.RelationWritten(rt, took)
	r.logger.Info("relation added",
		zap.String("evt", "relation_add_success"),
		zap.String("relationType", rt),
		zap.String("referenceId", req.ReferenceID),
		zap.String("userId", userID),
		zap.Int("nodes", len(out.Result.Nodes)),
		zap.Int("edges", len(out.Result.Edges)))

	if r.relationLog {
		ids := make([]string, 0, len(out.Result.Nodes))
		for _, p := range out.Result.Nodes {
			ids = append(ids, p.ID)
		}
		r.logger.Info("relation created",
			zap.String("evt", "relation_created"),
			zap.String("relationType", rt),
			zap.Strings("createdIds", ids),
			zap.Int64("ms", took.Milliseconds()))
	}
}

func (r *Relations) failed(userID string, req *model.AddRelationRequest, err error) {
	kind := apperror.KindOf(err)
	r.metrics.MutationFailed(string(kind))

	var rt, ref string
	if req != nil {
		rt, ref = string(req.RelationType), req.ReferenceID
	}
	fields := []zap.Field{
		zap.String("evt", "relation_add_failure"),
		zap.String("relationType", rt),
		zap.String("referenceId", ref),
		zap.String("userId", userID),
		zap.String("code", string(kind)),
	}
	if kind == apperror.KindInternal {
		r.logger.Error("relation add failed", append(fields, zap.Error(err))...)
		return
	}
	r.logger.Info("relation add rejected", fields...)
}

// classify converts errors raised outside the engine, such as a unique
// constraint reported at commit time.
func classify(err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	if errors.Is(err, driver.ErrConstraintViolation) {
		return apperror.Duplicate("Email already exists for another person").WithInternal(err)
	}
	return apperror.Internal(err)
}
