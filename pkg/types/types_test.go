package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestStatementIsValidAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		validAt   time.Time
		invalidAt *time.Time
		want      bool
	}{
		{"valid and open", now.Add(-time.Hour), nil, true},
		{"valid exactly now", now, nil, true},
		{"not yet valid", now.Add(time.Hour), nil, false},
		{"invalidated later", now.Add(-time.Hour), timePtr(now.Add(time.Hour)), true},
		{"invalidated at instant", now.Add(-time.Hour), timePtr(now), false},
		{"invalidated earlier", now.Add(-2 * time.Hour), timePtr(now.Add(-time.Hour)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Statement{Uuid: "s1", Fact: "f", ValidAt: tt.validAt, InvalidAt: tt.invalidAt}
			assert.Equal(t, tt.want, s.IsValidAt(now))
		})
	}
}

func TestStatementValidate(t *testing.T) {
	assert.ErrorIs(t, (&Statement{Fact: "x"}).Validate(), ErrEmptyUUID)
	assert.ErrorIs(t, (&Statement{Uuid: "x"}).Validate(), ErrEmptyFact)
	assert.NoError(t, (&Statement{Uuid: "x", Fact: "y"}).Validate())
}

func TestSearchOptionsWithDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("nil receiver", func(t *testing.T) {
		var o *SearchOptions
		d := o.WithDefaults(now)
		assert.Equal(t, DefaultLimit, d.Limit)
		assert.Equal(t, DefaultMaxBfsDepth, d.MaxBfsDepth)
		assert.Equal(t, DefaultScoreThreshold, d.ScoreThreshold)
		assert.Equal(t, DefaultMinResults, d.MinResults)
		require.NotNil(t, d.EndTime)
		assert.Equal(t, now, *d.EndTime)
		assert.Nil(t, d.ValidAt)
		assert.False(t, d.IncludeInvalidated)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		end := now.Add(-time.Hour)
		o := &SearchOptions{Limit: 3, MaxBfsDepth: 2, EndTime: &end, ScoreThreshold: 0.4, MinResults: 1}
		d := o.WithDefaults(now)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, 2, d.MaxBfsDepth)
		assert.Equal(t, end, *d.EndTime)
		assert.Equal(t, 0.4, d.ScoreThreshold)
		assert.Equal(t, 1, d.MinResults)
	})

	t.Run("does not mutate receiver", func(t *testing.T) {
		o := &SearchOptions{}
		_ = o.WithDefaults(now)
		assert.Zero(t, o.Limit)
		assert.Nil(t, o.EndTime)
	})
}

func TestSearchOptionsValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		opts    SearchOptions
		wantErr bool
	}{
		{"zero value", SearchOptions{}, false},
		{"negative limit", SearchOptions{Limit: -1}, true},
		{"threshold above one", SearchOptions{ScoreThreshold: 1.5}, true},
		{"empty space id", SearchOptions{SpaceIDs: []string{""}}, true},
		{"inverted window", SearchOptions{StartTime: timePtr(now), EndTime: timePtr(now.Add(-time.Hour))}, true},
		{"ordered window", SearchOptions{StartTime: timePtr(now.Add(-time.Hour)), EndTime: timePtr(now)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSearchOptionsReferenceTime(t *testing.T) {
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := end.Add(-24 * time.Hour)

	o := &SearchOptions{EndTime: &end}
	assert.Equal(t, end, o.ReferenceTime())

	o.ValidAt = &valid
	assert.Equal(t, valid, o.ReferenceTime())
}

func TestStatementFilterMatchesTime(t *testing.T) {
	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opts := (&SearchOptions{EndTime: &end}).WithDefaults(end)

	current := &Statement{Uuid: "a", Fact: "a", ValidAt: end.Add(-48 * time.Hour)}
	future := &Statement{Uuid: "b", Fact: "b", ValidAt: end.Add(time.Hour)}
	superseded := &Statement{Uuid: "c", Fact: "c", ValidAt: end.Add(-48 * time.Hour), InvalidAt: timePtr(end.Add(-time.Hour))}

	f := opts.Filter("u1")
	assert.Equal(t, "u1", f.UserID)
	assert.True(t, f.MatchesTime(current))
	assert.False(t, f.MatchesTime(future))
	assert.False(t, f.MatchesTime(superseded))

	opts.IncludeInvalidated = true
	f = opts.Filter("u1")
	assert.True(t, f.MatchesTime(superseded))
	assert.False(t, f.MatchesTime(future))

	start := end.Add(-24 * time.Hour)
	opts.StartTime = &start
	f = opts.Filter("u1")
	assert.False(t, f.MatchesTime(current))
}
