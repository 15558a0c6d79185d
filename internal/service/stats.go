// stats.go — агрегированная статистика по всем записям.
// Результат кэшируется в hashicorp/golang-lru/v2/expirable; кэш
// сбрасывается после каждой успешной загрузки и очистки.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-organizer/internal/domain/model"
	"github.com/bigkaa/goartstore/file-organizer/internal/repository"
)

var (
	statsCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fo_stats_cache_hits_total",
		Help: "Количество попаданий в кэш статистики.",
	})
	statsCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fo_stats_cache_misses_total",
		Help: "Количество промахов кэша статистики.",
	})
)

const statsCacheKey = "all"

// StatsService — статистика по записям хранилища.
type StatsService struct {
	repo   repository.FileRepository
	cache  *expirable.LRU[string, *model.Stats]
	logger *slog.Logger

	// gen увеличивается при каждой инвалидации; результат, посчитанный
	// до инвалидации, в кэш не попадает
	mu  sync.Mutex
	gen uint64
}

// NewStatsService создаёт сервис статистики. ttl == 0 выключает кэш.
func NewStatsService(repo repository.FileRepository, ttl time.Duration, logger *slog.Logger) *StatsService {
	s := &StatsService{
		repo:   repo,
		logger: logger.With(slog.String("component", "stats")),
	}
	if ttl > 0 {
		s.cache = expirable.NewLRU[string, *model.Stats](1, nil, ttl)
	}
	return s
}

// Get возвращает статистику по всем записям.
func (s *StatsService) Get(ctx context.Context) (*model.Stats, error) {
	if s.cache != nil {
		if st, ok := s.cache.Get(statsCacheKey); ok {
			statsCacheHitsTotal.Inc()
			return st, nil
		}
		statsCacheMissesTotal.Inc()
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	records, err := s.repo.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("получение записей для статистики: %w", err)
	}

	st := ComputeStats(records)
	if s.cache != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.cache.Add(statsCacheKey, st)
		}
		s.mu.Unlock()
	}
	return st, nil
}

// Invalidate сбрасывает кэш статистики.
func (s *StatsService) Invalidate() {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.gen++
	s.cache.Purge()
	s.mu.Unlock()
}

// ComputeStats считает агрегаты по записям: количество, объём,
// разбивку по меткам категорий и время последней загрузки.
func ComputeStats(records []*model.FileRecord) *model.Stats {
	st := &model.Stats{
		Categories: make(map[string]model.CategoryStats),
	}
	for _, r := range records {
		st.TotalFiles++
		st.TotalSize += r.Size

		c := st.Categories[r.Category]
		c.Count++
		c.Size += r.Size
		st.Categories[r.Category] = c

		if st.LastOrganized == nil || r.CreatedAt.After(*st.LastOrganized) {
			t := r.CreatedAt
			st.LastOrganized = &t
		}
	}
	return st
}
