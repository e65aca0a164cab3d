// Package credentials keeps third-party API keys in the integration_tokens
// table so they can be rotated without redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/sqlinline"
)

const (
	ProviderZhipu = "zhipu"
)

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// LLMAPIKey returns the stored completion API key, or "" if none is stored.
func (s *Store) LLMAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderZhipu)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetLLMAPIKey stores key for the completion provider, recording the model
// it was issued for when known.
func (s *Store) SetLLMAPIKey(ctx context.Context, key, model string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("llm api key is required")
	}
	var props map[string]any
	if model = strings.TrimSpace(model); model != "" {
		props = map[string]any{"model": model}
	}
	return s.upsert(ctx, ProviderZhipu, key, props)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
