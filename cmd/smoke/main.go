// Command smoke drives a running server through the add-relation flow. It
// seeds a reference person straight into Neo4j, signs a token with the
// server's JWT secret and then talks HTTP only.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agenthands/kindred/internal/auth"
	"github.com/agenthands/kindred/internal/config"
	"github.com/agenthands/kindred/internal/core/model"
	"github.com/agenthands/kindred/internal/driver"
)

func main() {
	_ = godotenv.Load()

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fail("load config: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		fail("JWT_SECRET must match the server's")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := driver.NewNeo4jStore(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database, zap.NewNop())
	if err != nil {
		fail("connect neo4j: %v", err)
	}
	defer store.Close(context.Background())

	run := uuid.NewString()[:8]
	refID := "smoke-" + run
	err = store.ExecuteWrite(ctx, func(tx driver.Tx) error {
		return tx.CreatePerson(ctx, model.Person{ID: refID, Name: "Smoke " + run, CreatedAt: time.Now().UTC()})
	})
	if err != nil {
		fail("seed reference: %v", err)
	}

	tokens := auth.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.TokenTTL())
	token, err := tokens.Issue("smoke-user")
	if err != nil {
		fail("issue token: %v", err)
	}
	c := &client{baseURL: baseURL, token: token, http: &http.Client{Timeout: 10 * time.Second}}

	fmt.Println("Starting smoke test against", baseURL)

	step("1. Add mother", func() error {
		_, err := c.expect(http.StatusCreated, "k-mom-"+run, relation(refID, model.RelationParent, "mom-"+run, model.GenderFemale))
		return err
	})

	step("2. Add father and replay with the same key", func() error {
		first, err := c.expect(http.StatusCreated, "k-dad-"+run, relation(refID, model.RelationParent, "dad-"+run, model.GenderMale))
		if err != nil {
			return err
		}
		again, err := c.expect(http.StatusCreated, "k-dad-"+run, relation(refID, model.RelationParent, "dad-"+run, model.GenderMale))
		if err != nil {
			return err
		}
		if !bytes.Equal(first, again) {
			return fmt.Errorf("replay body differs:\n%s\n%s", first, again)
		}
		return nil
	})

	step("3. Third parent is rejected", func() error {
		_, err := c.expect(http.StatusBadRequest, "", relation(refID, model.RelationParent, "extra-"+run, ""))
		return err
	})

	step("4. Add sibling", func() error {
		_, err := c.expect(http.StatusCreated, "", relation(refID, model.RelationSibling, "sib-"+run, ""))
		return err
	})

	step("5. Add maternal grandparents as a pair", func() error {
		req := relation(refID, model.RelationMaternalGrandparents, "gma-"+run, model.GenderFemale)
		req.Options = &model.Options{CreatePair: true}
		req.Partner = person("gpa-"+run, model.GenderMale)
		_, err := c.expect(http.StatusCreated, "", req)
		return err
	})

	fmt.Println("Smoke test passed")
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *client) expect(status int, key string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/relations/add", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != status {
		return nil, fmt.Errorf("status %d, want %d: %s", resp.StatusCode, status, respBody)
	}
	fmt.Printf("   %d %s\n", resp.StatusCode, respBody)
	return respBody, nil
}

func relation(ref string, rt model.RelationType, name string, gender model.Gender) *model.AddRelationRequest {
	return &model.AddRelationRequest{ReferenceID: ref, RelationType: rt, Person: person(name, gender)}
}

func person(name string, gender model.Gender) *model.PersonInput {
	return &model.PersonInput{Name: name, Email: name + "@smoke.test", Gender: gender, TempPassword: "smoke1234"}
}

func step(name string, fn func() error) {
	fmt.Println(name + "...")
	if err := fn(); err != nil {
		fail("FAILED: %s: %v", name, err)
	}
	fmt.Println("PASSED:", name)
}

func fail(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}
