package repository

import (
	"edulink_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttemptRepository 已批改作业的本地镜像，供离线查看成绩
type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Upsert(attempt *model.AssignmentAttempt) error {
	cached := &model.CachedAttempt{
		AttemptID:    attempt.AttemptID,
		AssignmentID: attempt.AssignmentID,
		UserEmail:    attempt.UserEmail,
		Status:       string(attempt.Status),
		Score:        attempt.Score,
		MaxScore:     attempt.MaxScore,
		Feedback:     attempt.Feedback,
		GradedAt:     attempt.GradedAt,
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "score", "max_score", "feedback", "graded_at"}),
	}).Create(cached).Error
}

func (r *AttemptRepository) ListByUser(userEmail string) ([]model.CachedAttempt, error) {
	var cached []model.CachedAttempt
	err := r.DB.Where("user_email = ?", userEmail).
		Order("graded_at DESC").
		Find(&cached).Error
	return cached, err
}
