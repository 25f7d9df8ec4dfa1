package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthands/kindred/internal/driver"
)

// Neo4jDurable keeps records as :Idem nodes next to the graph.
type Neo4jDurable struct {
	runner driver.QueryRunner
}

func NewNeo4jDurable(runner driver.QueryRunner) *Neo4jDurable {
	return &Neo4jDurable{runner: runner}
}

func (d *Neo4jDurable) Get(ctx context.Context, key string, now time.Time) (*Record, error) {
	res, err := d.runner.ExecuteQuery(ctx, driver.GetIdempotencyQuery, map[string]interface{}{
		"key": key,
		"now": now.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, nil
	}
	rec := res.Records[0]
	status, _ := rec.Get("status")
	payload, _ := rec.Get("payload")

	code, ok := status.(int64)
	if !ok {
		return nil, fmt.Errorf("get idempotency record: unexpected status %T", status)
	}
	body, ok := payload.(string)
	if !ok {
		return nil, fmt.Errorf("get idempotency record: unexpected payload %T", payload)
	}
	return &Record{Status: int(code), Payload: []byte(body)}, nil
}

func (d *Neo4jDurable) Put(ctx context.Context, key, userID string, rec Record, now, expiresAt time.Time) error {
	_, err := d.runner.ExecuteQuery(ctx, driver.PutIdempotencyQuery, map[string]interface{}{
		"key":       key,
		"userId":    userID,
		"status":    int64(rec.Status),
		"payload":   string(rec.Payload),
		"route":     Route,
		"now":       now.UnixMilli(),
		"expiresAt": expiresAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("put idempotency record: %w", err)
	}
	return nil
}
