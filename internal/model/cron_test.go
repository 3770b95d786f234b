package model_test

import (
	"testing"
	"time"

	"github.com/getherald/herald/internal/model"

	"github.com/stretchr/testify/require"
)

func TestParseCron(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		given    string
		valid    bool
	}{
		{"valid_5_fields", "*/15 * * * *", true},
		{"macro_hourly", "@hourly", true},
		{"macro_every", "@every 5m", true},
		{"six_fields", "0 */2 * * * *", false},
		{"out_of_range", "* * 32 * *", false},
		{"empty", "", false},
		{"spaces_only", "   ", false},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			err := model.ParseCron(tc.given)
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestParseCueDuration(t *testing.T) {
	t.Parallel()
	type then struct {
		duration time.Duration
		valid    bool
	}
	cases := []struct {
		scenario string
		given    string
		then     then
	}{
		{"seconds", "30s", then{30 * time.Second, true}},
		{"minutes", "10m", then{10 * time.Minute, true}},
		{"hours_minutes", "12h30m", then{12*time.Hour + 30*time.Minute, true}},
		{"days", "2d", then{48 * time.Hour, true}},
		{"all_segments", "1d2h3m4s", then{26*time.Hour + 3*time.Minute + 4*time.Second, true}},
		{"empty", "", then{0, false}},
		{"unordered", "30s12h", then{0, false}},
		{"milliseconds", "500ms", then{0, false}},
		{"bare_unit", "d", then{0, false}},
		{"garbage", "soon", then{0, false}},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			d, err := model.ParseCueDuration(tc.given)
			if tc.then.valid {
				require.NoError(t, err)
				require.Equal(t, tc.then.duration, d)
			} else {
				require.Error(t, err)
			}
		})
	}
}
