// Package provider реализует каталог проверенных организаторов
// каникулярных активностей. Чтение каталога кэшируется в Redis,
// создание нового организатора сбрасывает кэш списка.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/models"
	"github.com/holidayheroes/holiday-heroes/internal/storage/repository"
)

// ErrProviderNotFound возвращается, когда организатор не существует.
var ErrProviderNotFound = errors.New("provider not found")

const (
	listCacheKey = "providers:list"
	cacheTTL     = 10 * time.Minute
)

// Storage описывает операции хранилища каталога.
type Storage interface {
	CreateProvider(ctx context.Context, p models.Provider) (int, error)
	ReadProvider(ctx context.Context, id int) (*models.Provider, error)
	ListProviders(ctx context.Context, limit, offset int) ([]*models.Provider, error)
}

// Cache описывает кэш каталога. Ошибки кэша не фатальны:
// при недоступном Redis каталог читается из базы напрямую.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует каталог организаторов.
type Service struct {
	storage Storage
	cache   Cache
	log     *slog.Logger
}

// New создает сервис каталога.
func New(storage Storage, cache Cache, log *slog.Logger) *Service {
	return &Service{storage: storage, cache: cache, log: log}
}

// List возвращает страницу проверенных организаторов. Первая страница
// с размером по умолчанию кэшируется, остальные читаются из базы.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.Provider, error) {
	const op = "services.provider.List"

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cacheable := offset == 0 && s.cache != nil
	if cacheable {
		var cached []*models.Provider
		found, err := s.cache.Get(listCacheKey, &cached)
		if err != nil {
			s.log.Error("provider list cache read failed", sl.Err(err))
		} else if found {
			if limit < len(cached) {
				return cached[:limit], nil
			}
			return cached, nil
		}
	}

	providers, err := s.storage.ListProviders(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cacheable {
		if err := s.cache.Set(listCacheKey, providers, cacheTTL); err != nil {
			s.log.Error("provider list cache write failed", sl.Err(err))
		}
	}
	return providers, nil
}

// Read возвращает одного организатора по ID.
func (s *Service) Read(ctx context.Context, id int) (*models.Provider, error) {
	const op = "services.provider.Read"

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p, err := s.storage.ReadProvider(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrProviderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Create добавляет организатора в каталог (операция администратора).
// Новый организатор сразу помечается проверенным: ручная проверка
// предшествует внесению в каталог. Кэш списка сбрасывается.
func (s *Service) Create(ctx context.Context, dummy models.DummyProvider) (int, error) {
	const op = "services.provider.Create"

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	id, err := s.storage.CreateProvider(ctx, models.Provider{
		Name:        dummy.Name,
		Description: dummy.Description,
		Location:    dummy.Location,
		Category:    dummy.Category,
		AgeMin:      dummy.AgeMin,
		AgeMax:      dummy.AgeMax,
		Website:     dummy.Website,
		Vetted:      true,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(listCacheKey); err != nil {
			s.log.Error("provider list cache invalidation failed", sl.Err(err))
		}
	}

	s.log.Info("provider created", slog.Int("provider_id", id), slog.String("name", dummy.Name))
	return id, nil
}
