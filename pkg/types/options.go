package types

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Search option defaults.
const (
	DefaultLimit          = 10
	DefaultMaxBfsDepth    = 4
	DefaultScoreThreshold = 0.7
	DefaultMinResults     = 10
)

// ErrInvalidTimeRange is returned when StartTime is after EndTime.
var ErrInvalidTimeRange = errors.New("start_time must not be after end_time")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// SearchOptions controls a single search. Every field is optional.
type SearchOptions struct {
	Limit       int `json:"limit,omitempty" yaml:"limit,omitempty" validate:"gte=0,lte=1000"`
	MaxBfsDepth int `json:"max_bfs_depth,omitempty" yaml:"max_bfs_depth,omitempty" validate:"gte=0"`

	// ValidAt is the instant invalidation is checked against. When nil the
	// check uses EndTime.
	ValidAt   *time.Time `json:"valid_at,omitempty" yaml:"valid_at,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty" yaml:"end_time,omitempty"`

	IncludeInvalidated bool `json:"include_invalidated,omitempty" yaml:"include_invalidated,omitempty"`

	EntityTypes    []string `json:"entity_types,omitempty" yaml:"entity_types,omitempty" validate:"dive,required"`
	PredicateTypes []string `json:"predicate_types,omitempty" yaml:"predicate_types,omitempty" validate:"dive,required"`
	SpaceIDs       []string `json:"space_ids,omitempty" yaml:"space_ids,omitempty" validate:"dive,required"`

	ScoreThreshold float64 `json:"score_threshold,omitempty" yaml:"score_threshold,omitempty" validate:"gte=0,lte=1"`
	MinResults     int     `json:"min_results,omitempty" yaml:"min_results,omitempty" validate:"gte=0"`
}

// WithDefaults returns a copy of o with zero values replaced by defaults.
// A nil receiver yields the full default set.
func (o *SearchOptions) WithDefaults(now time.Time) *SearchOptions {
	out := SearchOptions{}
	if o != nil {
		out = *o
	}
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	if out.MaxBfsDepth <= 0 {
		out.MaxBfsDepth = DefaultMaxBfsDepth
	}
	if out.EndTime == nil {
		end := now
		out.EndTime = &end
	}
	if out.ScoreThreshold <= 0 {
		out.ScoreThreshold = DefaultScoreThreshold
	}
	if out.MinResults <= 0 {
		out.MinResults = DefaultMinResults
	}
	return &out
}

// Validate checks field ranges and the time window.
func (o *SearchOptions) Validate() error {
	if err := getValidator().Struct(o); err != nil {
		return fmt.Errorf("invalid search options: %w", err)
	}
	if o.StartTime != nil && o.EndTime != nil && o.StartTime.After(*o.EndTime) {
		return ErrInvalidTimeRange
	}
	return nil
}

// ReferenceTime is the instant a statement must still be valid at when
// invalidated facts are excluded.
func (o *SearchOptions) ReferenceTime() time.Time {
	if o.ValidAt != nil {
		return *o.ValidAt
	}
	if o.EndTime != nil {
		return *o.EndTime
	}
	return time.Now()
}

// Filter builds the store-level statement filter for userID.
func (o *SearchOptions) Filter(userID string) StatementFilter {
	f := StatementFilter{
		UserID:             userID,
		EndTime:            o.ReferenceTime(),
		InvalidationCutoff: o.ReferenceTime(),
		IncludeInvalidated: o.IncludeInvalidated,
		StartTime:          o.StartTime,
		SpaceIDs:           o.SpaceIDs,
		EntityTypes:        o.EntityTypes,
		PredicateTypes:     o.PredicateTypes,
	}
	if o.EndTime != nil {
		f.EndTime = *o.EndTime
	}
	return f
}

// StatementFilter is the temporal, space and type restriction every
// retriever applies to the statements it returns.
type StatementFilter struct {
	UserID string

	// EndTime bounds ValidAt from above.
	EndTime time.Time
	// StartTime bounds ValidAt from below when set.
	StartTime *time.Time
	// InvalidationCutoff is the instant a statement must still be valid at
	// unless IncludeInvalidated is set.
	InvalidationCutoff time.Time
	IncludeInvalidated bool

	SpaceIDs       []string
	EntityTypes    []string
	PredicateTypes []string
}

// MatchesTime applies the temporal part of the filter in memory.
func (f StatementFilter) MatchesTime(s *Statement) bool {
	if s.ValidAt.After(f.EndTime) {
		return false
	}
	if f.StartTime != nil && s.ValidAt.Before(*f.StartTime) {
		return false
	}
	if !f.IncludeInvalidated && s.InvalidAt != nil && !s.InvalidAt.After(f.InvalidationCutoff) {
		return false
	}
	return true
}
