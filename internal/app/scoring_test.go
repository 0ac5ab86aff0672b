package app_test

import (
	"testing"

	"github.com/SweetVinegar/021up-game/internal/app"
)

func TestScoreIncorrectEarnsNothing(t *testing.T) {
	for _, ms := range []int64{0, 1, 500, 1000, 60000} {
		score, tokens := app.Score(false, ms, 100)
		if score != 0 || tokens != 0 {
			t.Fatalf("incorrect answer at %dms: got (%d, %d), want (0, 0)", ms, score, tokens)
		}
	}
}

func TestScoreSpeedBonus(t *testing.T) {
	cases := []struct {
		ms        int64
		wantScore int
	}{
		{0, 1100},     // full bonus
		{1, 1099},     // bonus floor(999/10)
		{200, 1080},
		{995, 1000}, // floor(5/10) == 0
		{1000, 1000},
		{5000, 1000},
	}
	for _, tc := range cases {
		score, tokens := app.Score(true, tc.ms, 100)
		if score != tc.wantScore {
			t.Fatalf("correct answer at %dms: got score %d, want %d", tc.ms, score, tc.wantScore)
		}
		if tokens != 100 {
			t.Fatalf("correct answer at %dms: got tokens %d, want 100", tc.ms, tokens)
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	s1, t1 := app.Score(true, 337, 42)
	s2, t2 := app.Score(true, 337, 42)
	if s1 != s2 || t1 != t2 {
		t.Fatalf("same inputs produced different outputs: (%d,%d) vs (%d,%d)", s1, t1, s2, t2)
	}
}
