package quota

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// BytesPerMB is the decimal megabyte used for every size in this package.
const BytesPerMB = 1_000_000

func BytesToMB(b int64) float64 {
	return float64(b) / BytesPerMB
}

// RoundMB is the single display rounding rule for megabyte values.
func RoundMB(mb float64) int64 {
	return int64(math.Round(mb))
}

// UsageStore runs the live aggregate queries.
type UsageStore interface {
	CountFiles(ctx context.Context, ownerID string) (int64, error)
	CountShortLinks(ctx context.Context, ownerID string) (int64, error)
	SumFileBytes(ctx context.Context, ownerID string) (int64, error)
	SumFileBytesCreatedBetween(ctx context.Context, ownerID string, from, to time.Time) (int64, error)
}

type Accountant struct {
	store UsageStore
	now   func() time.Time
	loc   *time.Location
}

type AccountantOption func(*Accountant)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AccountantOption {
	return func(a *Accountant) { a.now = now }
}

// WithLocation sets the zone that defines a calendar day.
func WithLocation(loc *time.Location) AccountantOption {
	return func(a *Accountant) {
		if loc != nil {
			a.loc = loc
		}
	}
}

func NewAccountant(store UsageStore, opts ...AccountantOption) *Accountant {
	a := &Accountant{store: store, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Usage returns the number of live entities of kind owned by userID.
func (a *Accountant) Usage(ctx context.Context, userID string, kind Kind) (int64, error) {
	switch kind {
	case KindFiles:
		return a.store.CountFiles(ctx, userID)
	case KindShortLinks:
		return a.store.CountShortLinks(ctx, userID)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func (a *Accountant) StorageUsedMB(ctx context.Context, userID string) (float64, error) {
	b, err := a.store.SumFileBytes(ctx, userID)
	if err != nil {
		return 0, err
	}
	return BytesToMB(b), nil
}

// TodayUploadedMB sums files created during the current calendar day.
func (a *Accountant) TodayUploadedMB(ctx context.Context, userID string) (float64, error) {
	from, to := DayBounds(a.now(), a.loc)
	b, err := a.store.SumFileBytesCreatedBetween(ctx, userID, from, to)
	if err != nil {
		return 0, err
	}
	return BytesToMB(b), nil
}

// UploadUsage returns today's uploaded MB and total stored MB.
func (a *Accountant) UploadUsage(ctx context.Context, userID string) (todayMB, storageMB float64, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := a.TodayUploadedMB(gctx, userID)
		if err != nil {
			return fmt.Errorf("daily upload usage: %w", err)
		}
		todayMB = v
		return nil
	})
	g.Go(func() error {
		v, err := a.StorageUsedMB(gctx, userID)
		if err != nil {
			return fmt.Errorf("storage usage: %w", err)
		}
		storageMB = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return todayMB, storageMB, nil
}

// DayBounds returns 00:00:00.000 and 23:59:59.999 of the calendar day that
// contains now in loc.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start, end
}
