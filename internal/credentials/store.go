package credentials

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/models"
	"github.com/wolfeidau/studiodesk/internal/store"
)

// Store persists the bearer token and the last known user profile.
//
// None of its methods fail: storage errors are logged and the store degrades
// to in-memory behaviour for the affected key.
type Store struct {
	b *boundary
}

// NewStore creates a credential store on top of kv.
func NewStore(kv store.KV) *Store {
	return &Store{b: newBoundary(kv)}
}

// Token returns the stored bearer token, or "" when there is none.
func (s *Store) Token(ctx context.Context) string {
	value, ok := s.b.get(ctx, store.KeyToken)
	if !ok {
		return ""
	}
	return string(value)
}

// SaveToken persists the bearer token. An empty token removes it.
func (s *Store) SaveToken(ctx context.Context, token string) {
	if token == "" {
		s.b.del(ctx, store.KeyToken)
		return
	}
	s.b.put(ctx, store.KeyToken, []byte(token))
}

// User returns the cached profile. Missing or corrupt payloads return nil.
func (s *Store) User(ctx context.Context) *models.Profile {
	value, ok := s.b.get(ctx, store.KeyUser)
	if !ok {
		return nil
	}

	var profile models.Profile
	if err := json.Unmarshal(value, &profile); err != nil {
		log.Warn().Err(err).Msg("cached user is corrupt, ignoring it")
		return nil
	}

	return &profile
}

// SaveUser persists the profile. A nil profile removes it.
func (s *Store) SaveUser(ctx context.Context, profile *models.Profile) {
	if profile == nil {
		s.RemoveUser(ctx)
		return
	}

	data, err := json.Marshal(profile)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal user")
		return
	}

	s.b.put(ctx, store.KeyUser, data)
}

// RemoveUser deletes the cached profile.
func (s *Store) RemoveUser(ctx context.Context) {
	s.b.del(ctx, store.KeyUser)
}

// Clear removes both the token and the cached profile.
func (s *Store) Clear(ctx context.Context) {
	s.b.del(ctx, store.KeyToken)
	s.b.del(ctx, store.KeyUser)
}
