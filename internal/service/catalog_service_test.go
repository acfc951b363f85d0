package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/livecast-io/livecast-api/internal/dto"
	"github.com/livecast-io/livecast-api/internal/models"
)

func TestCatalogServiceCachesListings(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	repo := newCatalogRepoStub(models.Gift{Slug: "rose", Name: "Rose", CoinCost: 100, Rarity: "common", Active: true})
	svc := NewCatalogService(repo, redisClient, "livecast", time.Minute, nil, validator.New(), testLogger())

	gifts, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, gifts, 1)

	// Second read must come from the cache, surviving a repo wipe.
	repo.gifts = map[string]models.Gift{}
	cached, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 1)
	require.Equal(t, "rose", cached[0].Slug)
}

func TestCatalogServiceUpsertInvalidatesCache(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	repo := newCatalogRepoStub(models.Gift{Slug: "rose", Name: "Rose", CoinCost: 100, Active: true})
	svc := NewCatalogService(repo, redisClient, "livecast", time.Minute, nil, validator.New(), testLogger())

	_, err = svc.List(context.Background())
	require.NoError(t, err)

	_, err = svc.Upsert(context.Background(), dto.AdminGiftUpsertRequest{
		Slug:     "diamond",
		Name:     "Diamond",
		CoinCost: 500,
		Rarity:   "epic",
	}, "", nil)
	require.NoError(t, err)

	gifts, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, gifts, 2)
}

func TestCatalogServiceUpsertDefaultsRarity(t *testing.T) {
	repo := newCatalogRepoStub()
	svc := NewCatalogService(repo, nil, "", time.Minute, nil, validator.New(), testLogger())

	gift, err := svc.Upsert(context.Background(), dto.AdminGiftUpsertRequest{
		Slug:     "star",
		Name:     "Star",
		CoinCost: 25,
	}, "", nil)
	require.NoError(t, err)
	require.Equal(t, "common", gift.Rarity)
}

func TestCatalogServiceSetActiveUnknownSlug(t *testing.T) {
	svc := NewCatalogService(newCatalogRepoStub(), nil, "", time.Minute, nil, validator.New(), testLogger())

	err := svc.SetActive(context.Background(), "ghost", false)
	require.ErrorIs(t, err, ErrGiftNotFound)
}

func TestCatalogServiceValidatesUpsert(t *testing.T) {
	svc := NewCatalogService(newCatalogRepoStub(), nil, "", time.Minute, nil, validator.New(), testLogger())

	_, err := svc.Upsert(context.Background(), dto.AdminGiftUpsertRequest{Slug: "", Name: "", CoinCost: 0}, "", nil)
	require.Error(t, err)
}
