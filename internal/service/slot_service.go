package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/pkg/clock"
	"github.com/spayyavula/campuspandit-sub007/pkg/config"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
)

type slotRuleReader interface {
	ListActiveByTutor(ctx context.Context, tutorID string) ([]models.AvailabilityRule, error)
}

type slotBlockReader interface {
	ListInRange(ctx context.Context, tutorID string, from, to time.Time) ([]models.TimeBlock, error)
}

type slotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// MinSlotGranularity is the smallest slice width the resolver accepts.
const MinSlotGranularity = 5 * time.Minute

// SlotService materialises a tutor's recurring rules and exception blocks
// into concrete bookable slots.
type SlotService struct {
	rules  slotRuleReader
	blocks slotBlockReader
	cache  slotCache
	clock  clock.Clock
	cfg    config.SlotsConfig
	logger *zap.Logger
}

// NewSlotService builds the resolver. cache may be nil to disable caching.
func NewSlotService(rules slotRuleReader, blocks slotBlockReader, cache slotCache, clk clock.Clock, cfg config.SlotsConfig, logger *zap.Logger) *SlotService {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultGranularity <= 0 {
		cfg.DefaultGranularity = time.Hour
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 60
	}
	return &SlotService{
		rules:  rules,
		blocks: blocks,
		cache:  cache,
		clock:  clk,
		cfg:    cfg,
		logger: logger,
	}
}

// SlotIterator walks resolved slots in chronological order. It is finite and
// restartable via Reset.
type SlotIterator struct {
	slots []models.Slot
	pos   int
}

// Next returns the next slot, or false when the sequence is exhausted.
func (it *SlotIterator) Next() (models.Slot, bool) {
	if it.pos >= len(it.slots) {
		return models.Slot{}, false
	}
	slot := it.slots[it.pos]
	it.pos++
	return slot, true
}

// Reset rewinds the iterator to the first slot.
func (it *SlotIterator) Reset() {
	it.pos = 0
}

// Collect drains the remaining slots into a slice.
func (it *SlotIterator) Collect() []models.Slot {
	out := make([]models.Slot, 0, len(it.slots)-it.pos)
	for {
		slot, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, slot)
	}
}

// Resolve computes the slot grid for a tutor over [from, to). Slots starting
// in the past are dropped; slots overlapping a blocked or booked block are
// reported with Available=false.
func (s *SlotService) Resolve(ctx context.Context, tutorID string, from, to time.Time, granularity time.Duration) (*SlotIterator, error) {
	if granularity <= 0 {
		granularity = s.cfg.DefaultGranularity
	}
	if granularity < MinSlotGranularity {
		return nil, appErrors.Clone(appErrors.ErrValidation, "granularity is too fine")
	}
	if !to.After(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must be after from")
	}
	if to.Sub(from) > time.Duration(s.cfg.MaxRangeDays)*24*time.Hour {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("range exceeds %d days", s.cfg.MaxRangeDays))
	}

	rules, err := s.rules.ListActiveByTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability rules")
	}
	blocks, err := s.blocks.ListInRange(ctx, tutorID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time blocks")
	}

	slots := resolveSlots(rules, blocks, from, to, granularity, s.clock.Now())
	return &SlotIterator{slots: slots}, nil
}

// ResolveCached resolves through the short-TTL cache when one is configured.
// The second return reports a cache hit.
func (s *SlotService) ResolveCached(ctx context.Context, tutorID string, from, to time.Time, granularity time.Duration) ([]models.Slot, bool, error) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		it, err := s.Resolve(ctx, tutorID, from, to, granularity)
		if err != nil {
			return nil, false, err
		}
		return it.Collect(), false, nil
	}

	if granularity <= 0 {
		granularity = s.cfg.DefaultGranularity
	}
	key := fmt.Sprintf("slots:%s:%d:%d:%d", tutorID, from.Unix(), to.Unix(), int64(granularity.Seconds()))

	var cached []models.Slot
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, true, nil
	}

	it, err := s.Resolve(ctx, tutorID, from, to, granularity)
	if err != nil {
		return nil, false, err
	}
	slots := it.Collect()
	if err := s.cache.Set(ctx, key, slots, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache resolved slots", zap.String("tutor_id", tutorID), zap.Error(err))
	}
	return slots, false, nil
}

// InvalidateTutor drops cached slot grids for a tutor after a schedule change.
func (s *SlotService) InvalidateTutor(ctx context.Context, tutorID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "slots:"+tutorID+":*"); err != nil {
		s.logger.Warn("failed to invalidate slot cache", zap.String("tutor_id", tutorID), zap.Error(err))
	}
}

// IsBookable reports whether the exact interval can be booked right now: it
// must lie inside the union of rule windows and available blocks, overlap no
// blocked or booked block, and start in the future.
func (s *SlotService) IsBookable(ctx context.Context, tutorID string, iv models.Interval) (bool, error) {
	if !iv.Valid() {
		return false, appErrors.Clone(appErrors.ErrValidation, "invalid interval")
	}
	if !iv.Start.After(s.clock.Now()) {
		return false, nil
	}

	rules, err := s.rules.ListActiveByTutor(ctx, tutorID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability rules")
	}
	blocks, err := s.blocks.ListInRange(ctx, tutorID, iv.Start, iv.End)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time blocks")
	}

	var coverage []models.Interval
	for i := range blocks {
		if blocks[i].Excludes() && blocks[i].Interval().Overlaps(iv) {
			return false, nil
		}
		if blocks[i].Kind == models.BlockAvailable {
			coverage = append(coverage, blocks[i].Interval())
		}
	}
	windows, err := ruleWindows(rules, iv.Start.Add(-24*time.Hour), iv.End.Add(24*time.Hour))
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to materialise availability rules")
	}
	coverage = append(coverage, windows...)

	return covers(coverage, iv), nil
}

// ruleWindows materialises every rule window whose calendar day falls within
// [from, to], evaluated in each rule's own timezone.
func ruleWindows(rules []models.AvailabilityRule, from, to time.Time) ([]models.Interval, error) {
	var windows []models.Interval
	for i := range rules {
		rule := &rules[i]
		loc := rule.Location()
		day := from.In(loc)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		for !day.After(to.In(loc)) {
			if int(day.Weekday()) == rule.DayOfWeek {
				window, err := rule.WindowOn(day.Year(), day.Month(), day.Day())
				if err != nil {
					return nil, err
				}
				windows = append(windows, window)
			}
			day = day.AddDate(0, 0, 1)
		}
	}
	return windows, nil
}

// covers reports whether the union of the given intervals contains iv.
func covers(intervals []models.Interval, iv models.Interval) bool {
	sort.Slice(intervals, func(a, b int) bool {
		return intervals[a].Start.Before(intervals[b].Start)
	})
	cursor := iv.Start
	for _, in := range intervals {
		if in.Start.After(cursor) {
			break
		}
		if in.End.After(cursor) {
			cursor = in.End
		}
		if !cursor.Before(iv.End) {
			return true
		}
	}
	return !cursor.Before(iv.End)
}

// resolveSlots slices rule windows and available blocks into granularity-wide
// candidates, marks candidates touched by an excluding block unavailable, and
// returns a sorted, non-overlapping grid. Rule-derived candidates win over
// extra-availability candidates when both cover the same instant.
func resolveSlots(rules []models.AvailabilityRule, blocks []models.TimeBlock, from, to time.Time, granularity time.Duration, now time.Time) []models.Slot {
	type candidate struct {
		slot models.Slot
		rank int // 0 = rule window, 1 = available block
	}

	windows, err := ruleWindows(rules, from, to)
	if err != nil {
		windows = nil
	}

	var candidates []candidate
	slice := func(window models.Interval, rank int) {
		for start := window.Start; !start.Add(granularity).After(window.End); start = start.Add(granularity) {
			end := start.Add(granularity)
			if start.Before(from) || end.After(to) {
				continue
			}
			if !start.After(now) {
				continue
			}
			candidates = append(candidates, candidate{
				slot: models.Slot{Start: start, End: end, Available: true},
				rank: rank,
			})
		}
	}

	for _, window := range windows {
		slice(window, 0)
	}
	for i := range blocks {
		if blocks[i].Kind == models.BlockAvailable {
			slice(blocks[i].Interval(), 1)
		}
	}

	for i := range candidates {
		for j := range blocks {
			if blocks[j].Excludes() && blocks[j].Interval().Overlaps(candidates[i].slot.Interval()) {
				candidates[i].slot.Available = false
				break
			}
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		if !candidates[a].slot.Start.Equal(candidates[b].slot.Start) {
			return candidates[a].slot.Start.Before(candidates[b].slot.Start)
		}
		return candidates[a].rank < candidates[b].rank
	})

	slots := make([]models.Slot, 0, len(candidates))
	var lastEnd time.Time
	for _, c := range candidates {
		if !lastEnd.IsZero() && c.slot.Start.Before(lastEnd) {
			continue
		}
		slots = append(slots, c.slot)
		lastEnd = c.slot.End
	}
	return slots
}
