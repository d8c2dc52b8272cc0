package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/swipesafe/backend/internal/analysis/disclosure"
)

func TestScorePolicyTable(t *testing.T) {
	cases := []struct {
		name      string
		in        Input
		points    int
		accuracy  int
		isCorrect bool
	}{
		{"legit disclosed", Input{CallType: Legitimate, DurationSeconds: 90, Disclosed: true}, 0, 0, false},
		{"legit long", Input{CallType: Legitimate, DurationSeconds: 60}, 200, 95, true},
		{"legit moderate lower bound", Input{CallType: Legitimate, DurationSeconds: 30}, 150, 85, true},
		{"legit moderate upper bound", Input{CallType: Legitimate, DurationSeconds: 59}, 150, 85, true},
		{"legit short", Input{CallType: Legitimate, DurationSeconds: 29}, 50, 60, false},
		{"legit declined", Input{CallType: Legitimate, Declined: true}, 0, 0, false},
		{"scam disclosed", Input{CallType: Scam, DurationSeconds: 5, Disclosed: true}, 0, 0, false},
		{"scam fast", Input{CallType: Scam, DurationSeconds: 10}, 300, 100, true},
		{"scam 30", Input{CallType: Scam, DurationSeconds: 30}, 250, 90, true},
		{"scam 45", Input{CallType: Scam, DurationSeconds: 45}, 250, 90, true},
		{"scam 60", Input{CallType: Scam, DurationSeconds: 60}, 150, 70, true},
		{"scam 90", Input{CallType: Scam, DurationSeconds: 90}, 150, 70, true},
		{"scam 120", Input{CallType: Scam, DurationSeconds: 120}, 50, 50, false},
		{"scam 150", Input{CallType: Scam, DurationSeconds: 150}, 50, 50, false},
		{"scam declined", Input{CallType: Scam, Declined: true}, 300, 100, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.in)
			assert.Equal(t, tc.points, got.Points)
			assert.Equal(t, tc.accuracy, got.Accuracy)
			assert.Equal(t, tc.isCorrect, got.IsCorrect)
			assert.NotEmpty(t, got.Title)
			assert.NotEmpty(t, got.Tip)
		})
	}
}

func TestScoreDisclosureAlwaysZero(t *testing.T) {
	for _, ct := range []CallType{Scam, Legitimate} {
		for _, d := range []int{0, 15, 30, 59, 60, 119, 120, 600} {
			got := Score(Input{CallType: ct, DurationSeconds: d, Disclosed: true})
			assert.Zero(t, got.Points, "%s/%d", ct, d)
			assert.Zero(t, got.Accuracy, "%s/%d", ct, d)
			assert.False(t, got.IsCorrect, "%s/%d", ct, d)
		}
	}
}

func TestScoreScamIsNonIncreasingInDuration(t *testing.T) {
	prev := Score(Input{CallType: Scam}).Points
	for d := 1; d <= 300; d++ {
		cur := Score(Input{CallType: Scam, DurationSeconds: d}).Points
		assert.LessOrEqual(t, cur, prev, "duration %d", d)
		prev = cur
	}
}

func TestScoreTipMentionsRequestedCategories(t *testing.T) {
	got := Score(Input{
		CallType:  Scam,
		Disclosed: true,
		Requested: []disclosure.Category{disclosure.SSN, disclosure.Password},
	})
	assert.Contains(t, got.Tip, "Social Security Number, Password/PIN")
}

func TestScoreLongScamTipShowsDuration(t *testing.T) {
	got := Score(Input{CallType: Scam, DurationSeconds: 185})
	assert.Contains(t, got.Tip, "3:05")
	assert.Equal(t, 185, got.DurationSeconds)
}

func TestScoreNegativeDurationClamped(t *testing.T) {
	got := Score(Input{CallType: Scam, DurationSeconds: -4})
	assert.Equal(t, 300, got.Points)
	assert.Equal(t, 0, got.DurationSeconds)
}

func TestParseCallType(t *testing.T) {
	ct, ok := ParseCallType(" Legitimate ")
	assert.True(t, ok)
	assert.Equal(t, Legitimate, ct)

	ct, ok = ParseCallType("robocall")
	assert.False(t, ok)
	assert.Equal(t, Scam, ct)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00", FormatDuration(0))
	assert.Equal(t, "1:09", FormatDuration(69))
}
