package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"edulink_backend/internal/gateway"
	"edulink_backend/internal/model"
	"edulink_backend/internal/repository"
	"edulink_backend/internal/util"
	"edulink_backend/pkg/logger"
	"edulink_backend/pkg/monitoring"

	"go.uber.org/zap"
)

const propagateTimeout = 10 * time.Second

// SubmissionService 作业尝试的状态机:
// NotStarted -> Submitted -> {Graded, Failed}（终态，不回退）。
// 单实体单写入者假设下不做乐观并发控制，远端为 last-writer-wins
type SubmissionService struct {
	Gateway     gateway.Gateway
	Storage     *StorageService
	AttemptRepo *repository.AttemptRepository
}

func NewSubmissionService(gw gateway.Gateway, storage *StorageService, attemptRepo *repository.AttemptRepository) *SubmissionService {
	return &SubmissionService{Gateway: gw, Storage: storage, AttemptRepo: attemptRepo}
}

type SubmitAssignmentRequest struct {
	AssignmentID string   `json:"assignmentId" binding:"required"`
	CourseID     string   `json:"courseId" binding:"required"`
	MaxScore     int      `json:"maxScore"`
	Images       []string `json:"images" binding:"required"` // base64 编码的图片
}

type GradeRequest struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
	Passed   *bool  `json:"passed" binding:"required"` // 批改方显式给出，不由分数推断
}

// Submit 仅允许从 NotStarted 提交。图片为空或身份缺失同步返回 ValidationError；
// 主写入（尝试文档）失败向调用方返回网关错误；
// 向用户作业列表的追加是 best-effort 副作用，失败只记日志不回滚
func (s *SubmissionService) Submit(ctx context.Context, userEmail string, req SubmitAssignmentRequest) (*model.AssignmentAttempt, error) {
	if userEmail == "" {
		return nil, util.NewValidationError("identity", "caller identity cannot be resolved")
	}
	if len(req.Images) == 0 {
		return nil, util.NewValidationError("images", "at least one image is required")
	}

	// 重复提交守卫：已有尝试时拒绝
	current, err := s.CurrentState(ctx, req.AssignmentID, userEmail)
	if err != nil {
		return nil, err
	}
	if current != model.AttemptNotStarted {
		return nil, util.NewInvalidTransitionError(string(current), "submit")
	}

	now := model.NowMillis()
	attemptID := model.AttemptKey(req.AssignmentID, userEmail, now)

	urls, err := s.storeImages(ctx, attemptID, req.Images)
	if err != nil {
		return nil, err
	}

	maxScore := req.MaxScore
	if maxScore <= 0 {
		maxScore = 100
	}

	attempt := &model.AssignmentAttempt{
		AttemptID:           attemptID,
		AssignmentID:        req.AssignmentID,
		CourseID:            req.CourseID,
		UserEmail:           userEmail,
		ImageURLs:           urls,
		Status:              model.AttemptSubmitted,
		Score:               0,
		MaxScore:            maxScore,
		Checked:             false,
		SubmissionTimestamp: now,
	}

	if err := s.Gateway.Set(ctx, gateway.CollectionAttempts, attempt.AttemptID, attempt); err != nil {
		return nil, err
	}
	monitoring.SubmissionCounter.WithLabelValues("assignment").Inc()

	// best-effort：把作业 ID 追加到用户的作业列表
	go func() {
		bctx, cancel := context.WithTimeout(context.Background(), propagateTimeout)
		defer cancel()
		if err := s.Gateway.Append(bctx, gateway.CollectionUsers, userEmail, "assignmentIds", req.AssignmentID); err != nil {
			logger.Log.Error("appending to user assignment list failed",
				zap.String("email", userEmail),
				zap.String("assignmentId", req.AssignmentID),
				zap.Error(err))
		}
	}()

	return attempt, nil
}

// Grade 仅允许从 Submitted 批改。Graded/Failed 由批改方的显式标志决定，
// 分数只做边界校验，不参与判定
func (s *SubmissionService) Grade(ctx context.Context, attemptID string, score int, feedback string, passed bool) (*model.AssignmentAttempt, error) {
	attempt, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		// 无尝试文档即 NotStarted，批改同样算非法状态迁移
		if util.IsNotFound(err) {
			return nil, util.NewInvalidTransitionError(string(model.AttemptNotStarted), "grade")
		}
		return nil, err
	}

	if attempt.Status != model.AttemptSubmitted {
		return nil, util.NewInvalidTransitionError(string(attempt.Status), "grade")
	}
	if score < 0 || score > attempt.MaxScore {
		return nil, util.NewValidationError("score",
			fmt.Sprintf("score %d out of range [0, %d]", score, attempt.MaxScore))
	}

	gradedAt := model.NowMillis()
	if gradedAt <= attempt.SubmissionTimestamp {
		gradedAt = attempt.SubmissionTimestamp + 1
	}

	status := model.AttemptGraded
	if !passed {
		status = model.AttemptFailed
	}

	fields := map[string]interface{}{
		"status":   string(status),
		"score":    score,
		"checked":  true,
		"feedback": feedback,
		"gradedAt": gradedAt,
	}
	if err := s.Gateway.Update(ctx, gateway.CollectionAttempts, attemptID, fields); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return nil, util.NewNotFoundError("attempt", attemptID)
		}
		return nil, err
	}
	monitoring.GradingCounter.WithLabelValues(string(status)).Inc()

	attempt.Status = status
	attempt.Score = score
	attempt.Checked = true
	attempt.Feedback = feedback
	attempt.GradedAt = gradedAt

	// 已批改结果写入本地缓存，供离线查看成绩；失败不影响批改本身
	if s.AttemptRepo != nil {
		if err := s.AttemptRepo.Upsert(attempt); err != nil {
			logger.Log.Error("caching graded attempt failed", zap.String("attemptId", attemptID), zap.Error(err))
		}
	}

	return attempt, nil
}

// CurrentState 按作业与用户查询当前状态；无尝试文档即 NotStarted
func (s *SubmissionService) CurrentState(ctx context.Context, assignmentID, userEmail string) (model.AttemptStatus, error) {
	attempt, err := s.FindAttempt(ctx, assignmentID, userEmail)
	if err != nil {
		if util.IsNotFound(err) {
			return model.AttemptNotStarted, nil
		}
		return "", err
	}
	return attempt.Status, nil
}

// FindAttempt 按作业与用户查找尝试
func (s *SubmissionService) FindAttempt(ctx context.Context, assignmentID, userEmail string) (*model.AssignmentAttempt, error) {
	docs, err := s.Gateway.Query(ctx, gateway.CollectionAttempts,
		gateway.Filter{"assignmentId": assignmentID, "userEmail": userEmail}, "submissionTimestamp")
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, util.NewNotFoundError("attempt", assignmentID+"/"+userEmail)
	}

	var attempt model.AssignmentAttempt
	if err := gateway.Decode(docs[0], &attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (s *SubmissionService) GetAttempt(ctx context.Context, attemptID string) (*model.AssignmentAttempt, error) {
	raw, err := s.Gateway.Get(ctx, gateway.CollectionAttempts, attemptID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return nil, util.NewNotFoundError("attempt", attemptID)
		}
		return nil, err
	}

	var attempt model.AssignmentAttempt
	if err := gateway.Decode(raw, &attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

// ListPending 某课程下等待批改的尝试，按提交时间升序
func (s *SubmissionService) ListPending(ctx context.Context, courseID string) ([]model.AssignmentAttempt, error) {
	docs, err := s.Gateway.Query(ctx, gateway.CollectionAttempts,
		gateway.Filter{"courseId": courseID, "status": string(model.AttemptSubmitted)}, "submissionTimestamp")
	if err != nil {
		return nil, err
	}
	return gateway.DecodeAll[model.AssignmentAttempt](docs)
}

func (s *SubmissionService) storeImages(ctx context.Context, attemptID string, images []string) ([]string, error) {
	urls := make([]string, 0, len(images))
	for i, encoded := range images {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, util.NewValidationError("images", fmt.Sprintf("image %d is not valid base64", i))
		}
		mimeType, err := util.ValidateMimeType(bytes.NewReader(data), []string{util.MimeImage})
		if err != nil {
			return nil, util.NewValidationError("images", fmt.Sprintf("image %d: %v", i, err))
		}

		filename := fmt.Sprintf("submissions/%s/%d%s", attemptID, i, util.ExtensionForMime(mimeType))
		url, err := s.Storage.Upload(ctx, filename, bytes.NewReader(data), int64(len(data)), mimeType)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}
