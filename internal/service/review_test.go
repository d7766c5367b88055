package service

import (
	"testing"

	"edulink_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	assert.Equal(t, 45.0, Percentage(45, 100))
	assert.Equal(t, 50.0, Percentage(10, 20))
	// 满分为 0 不除零
	assert.Equal(t, 0.0, Percentage(10, 0))
}

func TestFormattedPercentage(t *testing.T) {
	assert.Equal(t, "45%", FormattedPercentage(45, 100))
	assert.Equal(t, "67%", FormattedPercentage(2, 3))
	assert.Equal(t, "0%", FormattedPercentage(5, 0))
}

func TestScoreColorBandBoundaries(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, BandSuccess},
		{80, BandSuccess}, // 区间下界含在高档
		{79.999, BandWarning},
		{60, BandWarning},
		{59.999, BandError},
		{0, BandError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScoreColorBand(tt.pct), "pct=%v", tt.pct)
	}
}

func TestBuildAttemptReview(t *testing.T) {
	r := BuildAttemptReview(&model.AssignmentAttempt{
		Score:    45,
		MaxScore: 100,
		Status:   model.AttemptFailed,
		Checked:  true,
		Feedback: "needs work",
	})

	assert.Equal(t, 45.0, r.Percentage)
	assert.Equal(t, "45%", r.FormattedPercentage)
	assert.Equal(t, BandError, r.Band)
	assert.Equal(t, "Failed", r.StatusLabel)
	assert.Equal(t, "Checked", r.CheckedLabel)
	assert.Equal(t, "needs work", r.Feedback)
}

func TestBuildAttemptReviewPending(t *testing.T) {
	r := BuildAttemptReview(&model.AssignmentAttempt{
		Score:    0,
		MaxScore: 100,
		Status:   model.AttemptSubmitted,
		Checked:  false,
	})

	assert.Equal(t, "Submitted", r.StatusLabel)
	assert.Equal(t, "Pending Review", r.CheckedLabel)
}

func TestBuildQuizReview(t *testing.T) {
	passed := BuildQuizReview(&model.QuizAttempt{Score: 85, Passed: true})
	assert.Equal(t, "85%", passed.FormattedPercentage)
	assert.Equal(t, BandSuccess, passed.Band)
	assert.Equal(t, "Graded", passed.StatusLabel)

	failed := BuildQuizReview(&model.QuizAttempt{Score: 40, Passed: false})
	assert.Equal(t, BandError, failed.Band)
	assert.Equal(t, "Failed", failed.StatusLabel)
}
