package datetime_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/paveg/kwdata/internal/datetime"
	"github.com/paveg/kwdata/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var defaultOrder = []string{"year", "month", "day", "hour", "minute", "second"}

func newParser(t *testing.T, order []string, opts ...datetime.Option) *datetime.Parser {
	t.Helper()
	opts = append([]datetime.Option{datetime.WithInputLocation(time.UTC)}, opts...)
	p, err := datetime.NewParser(order, "UTC", opts...)
	require.NoError(t, err)
	return p
}

func TestNewParser(t *testing.T) {
	tests := []struct {
		name  string
		order []string
		zone  string
	}{
		{"incomplete order", []string{"year", "month", "day"}, "UTC"},
		{"duplicate component", []string{"year", "year", "day", "hour", "minute", "second"}, "UTC"},
		{"unknown zone", defaultOrder, "Nowhere/Special"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := datetime.NewParser(tt.order, tt.zone)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidSetting)
		})
	}

	t.Run("order is case-insensitive", func(t *testing.T) {
		_, err := datetime.NewParser([]string{"Day", "MONTH", "year", "hour", "minute", "second"}, "UTC")
		assert.NoError(t, err)
	})
}

func TestParse(t *testing.T) {
	p := newParser(t, defaultOrder)

	tests := []struct {
		input    string
		expected time.Time
	}{
		{"2021-03-04", time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"2021-03-04 05:06:07", time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)},
		{"2021-03-04T05:06:07Z", time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)},
		{"2021-03-04 05:06:07+0100", time.Date(2021, 3, 4, 4, 6, 7, 0, time.UTC)},
		{"2021.3.4", time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"2021/03/04 05:06", time.Date(2021, 3, 4, 5, 6, 0, 0, time.UTC)},
		{"2021.03.04.05.06.07.250", time.Date(2021, 3, 4, 5, 6, 7, 250000, time.UTC)},
		{"2021.03.04 12:00 Europe/Amsterdam", time.Date(2021, 3, 4, 11, 0, 0, 0, time.UTC)},
		{"2021.03.04 12:00 EST", time.Date(2021, 3, 4, 17, 0, 0, 0, time.UTC)},
		{"Europe/Amsterdam 2021.03.04 12:00", time.Date(2021, 3, 4, 11, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := p.Parse(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseOrder(t *testing.T) {
	p := newParser(t, []string{"day", "month", "year", "hour", "minute", "second"})

	got, err := p.Parse("04/03/2021 10:30")
	require.NoError(t, err)
	assert.True(t, time.Date(2021, 3, 4, 10, 30, 0, 0, time.UTC).Equal(got))
}

func TestParseRelative(t *testing.T) {
	now := time.Date(2024, 1, 31, 15, 45, 30, 0, time.UTC)
	p := newParser(t, defaultOrder, datetime.WithNow(func() time.Time { return now }))

	tests := []struct {
		input    string
		expected time.Time
	}{
		{"+0.+0.+0", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"+0.+1.+0", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"-1.6.1", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"+0.+0.-1.+0.+0.+0", time.Date(2024, 1, 30, 15, 45, 30, 0, time.UTC)},
		{"+0.+0.+0.+2.0.0", time.Date(2024, 1, 31, 17, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := p.Parse(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	p := newParser(t, defaultOrder)

	for _, input := range []string{"", "2021.03", "abc", "2021.13.01", "2021.02.30", "hello world foo", "1.2.3.4.5.6.7.8"} {
		t.Run(input, func(t *testing.T) {
			_, err := p.Parse(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrParse)
		})
	}
}

func TestParseZoneLookups(t *testing.T) {
	p := newParser(t, defaultOrder)

	t.Run("words are not zones", func(t *testing.T) {
		for _, input := range []string{"hello world 2020", "Amsterdam 2021.03.04", "utc 2021.03.04"} {
			_, err := p.Parse(input)
			assert.ErrorIs(t, err, errors.ErrParse, input)
		}
	})

	t.Run("unknown zone names", func(t *testing.T) {
		for range 3 {
			_, err := p.Parse("2021.03.04 Nowhere/Special")
			assert.ErrorIs(t, err, errors.ErrParse)
		}
	})

	t.Run("same zone across goroutines", func(t *testing.T) {
		expected := time.Date(2021, 3, 4, 11, 0, 0, 0, time.UTC)
		var g errgroup.Group
		for range 16 {
			g.Go(func() error {
				got, err := p.Parse("2021.03.04 12:00 Europe/Amsterdam")
				if err != nil {
					return err
				}
				if !expected.Equal(got) {
					return fmt.Errorf("expected %s, got %s", expected, got)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
	})
}

func TestParseOrReturn(t *testing.T) {
	p := newParser(t, defaultOrder)

	assert.Equal(t, "text", p.ParseOrReturn("text", "ev:"))
	assert.Equal(t, 42, p.ParseOrReturn(42, "ev:"))
	assert.Equal(t, "ev:2021.01.01", p.ParseOrReturn("ev:2021.01.01", "ev:"))

	got, ok := p.ParseOrReturn("2021.01.01", "ev:").(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2021, got.Year())
}

func TestRange(t *testing.T) {
	p := newParser(t, defaultOrder)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("till is exclusive", func(t *testing.T) {
		got, err := p.Range(start, "2024-01-01 00:03:00", nil, 1, "minutes")
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("through is inclusive", func(t *testing.T) {
		got, err := p.Range(start, nil, "2024-01-01 00:03:00", 1, "minute")
		require.NoError(t, err)
		assert.Len(t, got, 4)
		assert.True(t, got[3].Equal(start.Add(3*time.Minute)))
	})

	t.Run("months keep day within month", func(t *testing.T) {
		got, err := p.Range("2024-01-31", nil, "2024-04-30", 1, "months")
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, 29, got[1].Day())
		assert.Equal(t, 31, got[2].Day())
	})

	t.Run("bounds", func(t *testing.T) {
		_, err := p.Range(start, nil, nil, 1, "days")
		assert.ErrorIs(t, err, errors.ErrType)

		_, err = p.Range(start, start, start, 1, "days")
		assert.ErrorIs(t, err, errors.ErrType)
	})

	t.Run("unit", func(t *testing.T) {
		_, err := p.Range(start, start, nil, 1, "fortnights")
		assert.ErrorIs(t, err, errors.ErrType)
	})

	t.Run("unparsable bound", func(t *testing.T) {
		_, err := p.Range("never", start, nil, 1, "days")
		assert.ErrorIs(t, err, errors.ErrParse)
	})
}
