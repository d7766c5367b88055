package service

import (
	"context"
	"testing"

	"edulink_backend/internal/gateway"
	"edulink_backend/internal/model"
	"edulink_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quizRequest(correct, total int) SubmitQuizRequest {
	answers := make([]model.QuizAnswer, total)
	for i := 0; i < total; i++ {
		answers[i] = model.QuizAnswer{
			QuestionID: model.GenerateUUID(),
			IsCorrect:  i < correct,
		}
	}
	return SubmitQuizRequest{
		QuizID:       "quiz-1",
		CourseID:     "course-1",
		Answers:      answers,
		PassingScore: 60,
		StartTime:    1000,
		EndTime:      61000,
	}
}

func TestBuildAttemptScoring(t *testing.T) {
	s := NewQuizService(gateway.NewMemoryGateway())

	tests := []struct {
		name       string
		correct    int
		total      int
		wantScore  int
		wantPassed bool
	}{
		{name: "seven of ten", correct: 7, total: 10, wantScore: 70, wantPassed: true},
		{name: "all correct", correct: 10, total: 10, wantScore: 100, wantPassed: true},
		{name: "none correct", correct: 0, total: 10, wantScore: 0, wantPassed: false},
		{name: "exactly passing", correct: 6, total: 10, wantScore: 60, wantPassed: true},
		{name: "just below passing", correct: 5, total: 10, wantScore: 50, wantPassed: false},
		{name: "rounds to nearest", correct: 2, total: 3, wantScore: 67, wantPassed: true},
		{name: "no questions", correct: 0, total: 0, wantScore: 0, wantPassed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt, err := s.BuildAttempt("alice@test.dev", quizRequest(tt.correct, tt.total))
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, attempt.Score)
			assert.Equal(t, tt.wantPassed, attempt.Passed)
			assert.Equal(t, tt.correct, attempt.CorrectAnswers)
			assert.Equal(t, tt.total, attempt.TotalQuestions)
		})
	}
}

func TestBuildAttemptDerivesMetadata(t *testing.T) {
	s := NewQuizService(gateway.NewMemoryGateway())

	attempt, err := s.BuildAttempt("alice@test.dev", quizRequest(7, 10))
	require.NoError(t, err)

	assert.Equal(t, model.AttemptKey("quiz-1", "alice@test.dev", 61000), attempt.AttemptID)
	assert.Equal(t, int64(60000), attempt.TimeTaken)
	assert.Equal(t, "alice@test.dev", attempt.UserEmail)
}

func TestBuildAttemptValidation(t *testing.T) {
	s := NewQuizService(gateway.NewMemoryGateway())

	_, err := s.BuildAttempt("", quizRequest(5, 10))
	assert.True(t, util.IsValidation(err))

	req := quizRequest(5, 10)
	req.EndTime = req.StartTime - 1
	_, err = s.BuildAttempt("alice@test.dev", req)
	assert.True(t, util.IsValidation(err))
}

func TestSubmitQuizOnce(t *testing.T) {
	s := NewQuizService(gateway.NewMemoryGateway())
	ctx := context.Background()

	attempt, err := s.BuildAttempt("alice@test.dev", quizRequest(7, 10))
	require.NoError(t, err)
	require.NoError(t, s.Submit(ctx, attempt))

	got, err := s.GetResult(ctx, "quiz-1", "alice@test.dev")
	require.NoError(t, err)
	assert.Equal(t, 70, got.Score)
	assert.True(t, got.Passed)

	// 同一测验二次提交被拒绝
	again, err := s.BuildAttempt("alice@test.dev", quizRequest(10, 10))
	require.NoError(t, err)
	err = s.Submit(ctx, again)
	assert.True(t, util.IsInvalidTransition(err))
}

func TestSubmitQuizPerUser(t *testing.T) {
	s := NewQuizService(gateway.NewMemoryGateway())
	ctx := context.Background()

	a, err := s.BuildAttempt("alice@test.dev", quizRequest(7, 10))
	require.NoError(t, err)
	require.NoError(t, s.Submit(ctx, a))

	b, err := s.BuildAttempt("bob@test.dev", quizRequest(4, 10))
	require.NoError(t, err)
	require.NoError(t, s.Submit(ctx, b))

	got, err := s.GetResult(ctx, "quiz-1", "bob@test.dev")
	require.NoError(t, err)
	assert.Equal(t, 40, got.Score)
	assert.False(t, got.Passed)
}

func TestGetResultNotFound(t *testing.T) {
	s := NewQuizService(gateway.NewMemoryGateway())

	_, err := s.GetResult(context.Background(), "quiz-404", "alice@test.dev")
	assert.True(t, util.IsNotFound(err))
}
