//go:build integration

package kv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"convrelay/internal/kv"
	"convrelay/internal/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *kv.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = kv.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestGetMissingKey() {
	_, err := s.store.Get(context.Background(), "visitor_contact_id")
	s.ErrorIs(err, kv.ErrNotFound)
}

func (s *RedisStoreSuite) TestSetThenGet() {
	ctx := context.Background()

	s.Require().NoError(s.store.Set(ctx, "visitor_email", "a@example.com"))

	v, err := s.store.Get(ctx, "visitor_email")
	s.Require().NoError(err)
	s.Equal("a@example.com", v)
}

func (s *RedisStoreSuite) TestSetMultiRoundTrip() {
	ctx := context.Background()

	err := s.store.SetMulti(ctx, map[string]string{
		"visitor_contact_id": "abc123",
		"visitor_email":      "a@example.com",
	})
	s.Require().NoError(err)

	id, err := s.store.Get(ctx, "visitor_contact_id")
	s.Require().NoError(err)
	email, err := s.store.Get(ctx, "visitor_email")
	s.Require().NoError(err)
	s.Equal("abc123", id)
	s.Equal("a@example.com", email)
}
