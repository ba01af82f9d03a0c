package news

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// FallbackStore reads and writes through Primary and falls back to
// Secondary when the primary fails. A nil Primary means the document store
// is not configured and Secondary is used alone.
type FallbackStore struct {
	Primary   Store
	Secondary Store
	Logger    *slog.Logger

	fallbacks atomic.Int64
}

// Fallbacks reports how many operations were served by the secondary after a
// primary failure.
func (s *FallbackStore) Fallbacks() int64 { return s.fallbacks.Load() }

func (s *FallbackStore) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *FallbackStore) fallback(op string, err error) {
	s.fallbacks.Add(1)
	s.logger().Warn("news primary store failed, using fallback", "op", op, "err", err)
}

func (s *FallbackStore) List(ctx context.Context) ([]Article, error) {
	if s.Primary != nil {
		articles, err := s.Primary.List(ctx)
		if err == nil {
			return articles, nil
		}
		s.fallback("list", err)
	}
	return s.Secondary.List(ctx)
}

// All reads every retained article with the same fallback as List.
func (s *FallbackStore) All(ctx context.Context) ([]Article, error) {
	if s.Primary != nil {
		articles, err := All(ctx, s.Primary)
		if err == nil {
			return articles, nil
		}
		s.fallback("all", err)
	}
	return All(ctx, s.Secondary)
}

func (s *FallbackStore) Get(ctx context.Context, id string) (Article, error) {
	if s.Primary != nil {
		a, err := s.Primary.Get(ctx, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, ErrNotFound) {
			s.fallback("get", err)
		}
	}
	return s.Secondary.Get(ctx, id)
}

func (s *FallbackStore) Add(ctx context.Context, a Article) error {
	if s.Primary != nil {
		err := s.Primary.Add(ctx, a)
		if err == nil {
			return nil
		}
		s.fallback("add", err)
	}
	return s.Secondary.Add(ctx, a)
}
