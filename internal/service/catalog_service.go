package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/livecast-io/livecast-api/internal/dto"
	"github.com/livecast-io/livecast-api/internal/models"
	"github.com/livecast-io/livecast-api/internal/repository"
)

// FileUploader pushes artwork to external storage and returns a public URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// CatalogService serves the public gift catalog and the admin mutations behind
// it. Listings are cached in Redis because every client fetches the catalog on
// room join.
type CatalogService interface {
	List(ctx context.Context) ([]dto.GiftResponse, error)
	Upsert(ctx context.Context, req dto.AdminGiftUpsertRequest, artworkName string, artwork io.Reader) (dto.GiftResponse, error)
	SetActive(ctx context.Context, slug string, active bool) error
}

type catalogService struct {
	repo      repository.GiftCatalogRepository
	redis     *redis.Client
	cacheKey  string
	cacheTTL  time.Duration
	uploader  FileUploader
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCatalogService constructs the catalog service. The uploader may be nil
// when artwork uploads are disabled.
func NewCatalogService(repo repository.GiftCatalogRepository, redisClient *redis.Client, cachePrefix string, cacheTTL time.Duration, uploader FileUploader, validate *validator.Validate, logger zerolog.Logger) CatalogService {
	cacheKey := ""
	if cachePrefix != "" {
		cacheKey = cachePrefix + ":gifts:catalog"
	}

	return &catalogService{
		repo:      repo,
		redis:     redisClient,
		cacheKey:  cacheKey,
		cacheTTL:  cacheTTL,
		uploader:  uploader,
		validator: validate,
		logger:    logger.With().Str("component", "catalog_service").Logger(),
	}
}

func (s *catalogService) List(ctx context.Context) ([]dto.GiftResponse, error) {
	if cached := s.fetchCached(ctx); cached != nil {
		return cached, nil
	}

	gifts, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	response := dto.NewGiftResponseSlice(gifts)
	s.cache(ctx, response)
	return response, nil
}

func (s *catalogService) Upsert(ctx context.Context, req dto.AdminGiftUpsertRequest, artworkName string, artwork io.Reader) (dto.GiftResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.GiftResponse{}, err
	}

	gift := models.Gift{
		Slug:     req.Slug,
		Name:     req.Name,
		CoinCost: req.CoinCost,
		Rarity:   req.Rarity,
		Active:   true,
	}
	if req.Rarity == "" {
		gift.Rarity = "common"
	}
	if req.Active != nil {
		gift.Active = *req.Active
	}

	if artwork != nil && s.uploader != nil {
		url, err := s.uploader.Upload(ctx, artworkName, artwork)
		if err != nil {
			return dto.GiftResponse{}, err
		}
		gift.ArtworkURL = url
	}

	if err := s.repo.Upsert(ctx, &gift); err != nil {
		return dto.GiftResponse{}, err
	}

	s.invalidate(ctx)
	return dto.NewGiftResponse(gift), nil
}

func (s *catalogService) SetActive(ctx context.Context, slug string, active bool) error {
	if err := s.repo.SetActive(ctx, slug, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGiftNotFound
		}
		return err
	}

	s.invalidate(ctx)
	return nil
}

func (s *catalogService) fetchCached(ctx context.Context) []dto.GiftResponse {
	if s.redis == nil || s.cacheKey == "" {
		return nil
	}

	result, err := s.redis.Get(ctx, s.cacheKey).Result()
	if err != nil {
		return nil
	}

	var gifts []dto.GiftResponse
	if err := json.Unmarshal([]byte(result), &gifts); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached catalog")
		return nil
	}

	return gifts
}

func (s *catalogService) cache(ctx context.Context, gifts []dto.GiftResponse) {
	if s.redis == nil || s.cacheKey == "" {
		return
	}

	payload, err := json.Marshal(gifts)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal catalog for cache")
		return
	}

	if err := s.redis.Set(ctx, s.cacheKey, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache catalog")
	}
}

func (s *catalogService) invalidate(ctx context.Context) {
	if s.redis == nil || s.cacheKey == "" {
		return
	}

	if err := s.redis.Del(ctx, s.cacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate catalog cache")
	}
}
