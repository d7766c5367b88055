package service

import (
	"context"
	"encoding/base64"
	"testing"

	"edulink_backend/internal/config"
	"edulink_backend/internal/gateway"
	"edulink_backend/internal/model"
	"edulink_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// PNG 文件签名，足以让 MIME 嗅探识别为 image/png
var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func pngBase64() string {
	return base64.StdEncoding.EncodeToString(pngBytes)
}

func newTestSubmissionService(t *testing.T) *SubmissionService {
	t.Helper()
	storage := &StorageService{Provider: &LocalStorageProvider{
		Config: &config.StorageConfig{LocalPath: t.TempDir()},
	}}
	return NewSubmissionService(gateway.NewMemoryGateway(), storage, nil)
}

func validRequest() SubmitAssignmentRequest {
	return SubmitAssignmentRequest{
		AssignmentID: "hw-1",
		CourseID:     "course-1",
		Images:       []string{pngBase64()},
	}
}

func TestSubmitCreatesAttempt(t *testing.T) {
	s := newTestSubmissionService(t)

	attempt, err := s.Submit(context.Background(), "alice@test.dev", validRequest())
	require.NoError(t, err)

	assert.Equal(t, model.AttemptSubmitted, attempt.Status)
	assert.Equal(t, "hw-1", attempt.AssignmentID)
	assert.Equal(t, "alice@test.dev", attempt.UserEmail)
	assert.Equal(t, 100, attempt.MaxScore) // 未指定时默认满分 100
	assert.False(t, attempt.Checked)
	assert.Positive(t, attempt.SubmissionTimestamp)
	assert.Len(t, attempt.ImageURLs, 1)
	assert.Equal(t, model.AttemptKey("hw-1", "alice@test.dev", attempt.SubmissionTimestamp), attempt.AttemptID)
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	s := newTestSubmissionService(t)

	_, err := s.Submit(context.Background(), "alice@test.dev", validRequest())
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), "alice@test.dev", validRequest())
	assert.True(t, util.IsInvalidTransition(err))
}

func TestSubmitAllowsDifferentUsers(t *testing.T) {
	s := newTestSubmissionService(t)

	_, err := s.Submit(context.Background(), "alice@test.dev", validRequest())
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), "bob@test.dev", validRequest())
	require.NoError(t, err)
}

func TestSubmitValidation(t *testing.T) {
	s := newTestSubmissionService(t)
	ctx := context.Background()

	_, err := s.Submit(ctx, "", validRequest())
	assert.True(t, util.IsValidation(err), "missing identity")

	req := validRequest()
	req.Images = nil
	_, err = s.Submit(ctx, "alice@test.dev", req)
	assert.True(t, util.IsValidation(err), "no images")

	req = validRequest()
	req.Images = []string{"not-base64!!!"}
	_, err = s.Submit(ctx, "alice@test.dev", req)
	assert.True(t, util.IsValidation(err), "invalid base64")

	req = validRequest()
	req.Images = []string{base64.StdEncoding.EncodeToString([]byte("plain text payload"))}
	_, err = s.Submit(ctx, "alice@test.dev", req)
	assert.True(t, util.IsValidation(err), "non-image payload")
}

func TestCurrentStateDefaultsToNotStarted(t *testing.T) {
	s := newTestSubmissionService(t)

	state, err := s.CurrentState(context.Background(), "hw-404", "alice@test.dev")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptNotStarted, state)
}

func TestGradePassed(t *testing.T) {
	s := newTestSubmissionService(t)
	ctx := context.Background()

	submitted, err := s.Submit(ctx, "alice@test.dev", validRequest())
	require.NoError(t, err)

	graded, err := s.Grade(ctx, submitted.AttemptID, 85, "well done", true)
	require.NoError(t, err)

	assert.Equal(t, model.AttemptGraded, graded.Status)
	assert.Equal(t, 85, graded.Score)
	assert.True(t, graded.Checked)
	assert.Equal(t, "well done", graded.Feedback)
	assert.Greater(t, graded.GradedAt, graded.SubmissionTimestamp)

	state, err := s.CurrentState(ctx, "hw-1", "alice@test.dev")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptGraded, state)
}

func TestGradeFailedFlagIsAuthoritative(t *testing.T) {
	s := newTestSubmissionService(t)
	ctx := context.Background()

	submitted, err := s.Submit(ctx, "alice@test.dev", validRequest())
	require.NoError(t, err)

	// 高分但批改方判未通过：标志优先于分数
	graded, err := s.Grade(ctx, submitted.AttemptID, 95, "plagiarism", false)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptFailed, graded.Status)
	assert.Equal(t, 95, graded.Score)
}

func TestGradeRequiresSubmittedState(t *testing.T) {
	s := newTestSubmissionService(t)
	ctx := context.Background()

	submitted, err := s.Submit(ctx, "alice@test.dev", validRequest())
	require.NoError(t, err)

	_, err = s.Grade(ctx, submitted.AttemptID, 80, "", true)
	require.NoError(t, err)

	// 终态不可重复批改
	_, err = s.Grade(ctx, submitted.AttemptID, 60, "", true)
	assert.True(t, util.IsInvalidTransition(err))
}

func TestGradeScoreBounds(t *testing.T) {
	s := newTestSubmissionService(t)
	ctx := context.Background()

	submitted, err := s.Submit(ctx, "alice@test.dev", validRequest())
	require.NoError(t, err)

	_, err = s.Grade(ctx, submitted.AttemptID, -1, "", true)
	assert.True(t, util.IsValidation(err))

	_, err = s.Grade(ctx, submitted.AttemptID, 101, "", true)
	assert.True(t, util.IsValidation(err))
}

// 未提交过的作业没有尝试文档，批改它等同于从 NotStarted 出发的非法迁移
func TestGradeUnsubmittedAttemptIsInvalidTransition(t *testing.T) {
	s := newTestSubmissionService(t)

	_, err := s.Grade(context.Background(), "missing", 50, "", true)
	assert.True(t, util.IsInvalidTransition(err))
}

func TestListPendingFiltersByCourseAndStatus(t *testing.T) {
	s := newTestSubmissionService(t)
	ctx := context.Background()

	a1, err := s.Submit(ctx, "alice@test.dev", validRequest())
	require.NoError(t, err)
	_, err = s.Submit(ctx, "bob@test.dev", validRequest())
	require.NoError(t, err)

	other := validRequest()
	other.CourseID = "course-2"
	other.AssignmentID = "hw-2"
	_, err = s.Submit(ctx, "carol@test.dev", other)
	require.NoError(t, err)

	// 已批改的不再出现在待批改列表
	_, err = s.Grade(ctx, a1.AttemptID, 90, "", true)
	require.NoError(t, err)

	pending, err := s.ListPending(ctx, "course-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "bob@test.dev", pending[0].UserEmail)
}
