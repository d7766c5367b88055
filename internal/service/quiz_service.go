package service

import (
	"context"
	"math"

	"edulink_backend/internal/gateway"
	"edulink_backend/internal/model"
	"edulink_backend/internal/util"
	"edulink_backend/pkg/monitoring"
)

// QuizService 测验记录在客户端完成作答后一次性构建并写入，之后不可变
type QuizService struct {
	Gateway gateway.Gateway
}

func NewQuizService(gw gateway.Gateway) *QuizService {
	return &QuizService{Gateway: gw}
}

type SubmitQuizRequest struct {
	QuizID       string             `json:"quizId" binding:"required"`
	CourseID     string             `json:"courseId" binding:"required"`
	Answers      []model.QuizAnswer `json:"answers" binding:"required"`
	PassingScore int                `json:"passingScore"`
	StartTime    int64              `json:"startTime"`
	EndTime      int64              `json:"endTime"`
}

// BuildAttempt 由一轮完整作答推导测验记录:
// correctAnswers = 答对题数; score = round(100*correct/total)，无题时为 0;
// passed = score >= passingScore; timeTaken = endTime - startTime
func (s *QuizService) BuildAttempt(userEmail string, req SubmitQuizRequest) (*model.QuizAttempt, error) {
	if userEmail == "" {
		return nil, util.NewValidationError("identity", "caller identity cannot be resolved")
	}
	if req.EndTime < req.StartTime {
		return nil, util.NewValidationError("endTime", "end time precedes start time")
	}

	correct := 0
	for _, a := range req.Answers {
		if a.IsCorrect {
			correct++
		}
	}

	total := len(req.Answers)
	score := 0
	if total > 0 {
		score = int(math.Round(100 * float64(correct) / float64(total)))
	}

	return &model.QuizAttempt{
		AttemptID:      model.AttemptKey(req.QuizID, userEmail, req.EndTime),
		QuizID:         req.QuizID,
		CourseID:       req.CourseID,
		UserEmail:      userEmail,
		Answers:        req.Answers,
		CorrectAnswers: correct,
		TotalQuestions: total,
		Score:          score,
		PassingScore:   req.PassingScore,
		Passed:         score >= req.PassingScore,
		TimeTaken:      req.EndTime - req.StartTime,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	}, nil
}

// Submit 写入一次，重复写入拒绝（应用内没有重新批改路径）
func (s *QuizService) Submit(ctx context.Context, attempt *model.QuizAttempt) error {
	docs, err := s.Gateway.Query(ctx, gateway.CollectionQuizAttempts,
		gateway.Filter{"quizId": attempt.QuizID, "userEmail": attempt.UserEmail}, "")
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		return util.NewInvalidTransitionError("recorded", "submit quiz")
	}

	if err := s.Gateway.Set(ctx, gateway.CollectionQuizAttempts, attempt.AttemptID, attempt); err != nil {
		return err
	}
	monitoring.SubmissionCounter.WithLabelValues("quiz").Inc()
	return nil
}

// GetResult 用户在某测验的记录
func (s *QuizService) GetResult(ctx context.Context, quizID, userEmail string) (*model.QuizAttempt, error) {
	docs, err := s.Gateway.Query(ctx, gateway.CollectionQuizAttempts,
		gateway.Filter{"quizId": quizID, "userEmail": userEmail}, "")
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, util.NewNotFoundError("quiz attempt", quizID+"/"+userEmail)
	}

	var attempt model.QuizAttempt
	if err := gateway.Decode(docs[0], &attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}
