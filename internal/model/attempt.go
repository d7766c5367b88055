package model

import "fmt"

// AttemptStatus 作业尝试的状态机状态
type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not_started"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
	AttemptFailed     AttemptStatus = "failed"
)

// Terminal Graded/Failed 为终态，不允许回退
func (s AttemptStatus) Terminal() bool {
	return s == AttemptGraded || s == AttemptFailed
}

func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptNotStarted, AttemptSubmitted, AttemptGraded, AttemptFailed:
		return true
	}
	return false
}

// AssignmentAttempt 一次作业提交记录
// 不变量: Status==Submitted => Checked==false;
// Checked==true => Status 终态 且 GradedAt > SubmissionTimestamp
type AssignmentAttempt struct {
	AttemptID           string        `bson:"_id" json:"attemptId"`
	AssignmentID        string        `bson:"assignmentId" json:"assignmentId"`
	CourseID            string        `bson:"courseId" json:"courseId"`
	UserEmail           string        `bson:"userEmail" json:"userEmail"`
	ImageURLs           []string      `bson:"imageUrls" json:"imageUrls"`
	Status              AttemptStatus `bson:"status" json:"status"`
	Score               int           `bson:"score" json:"score"`
	MaxScore            int           `bson:"maxScore" json:"maxScore"`
	Checked             bool          `bson:"checked" json:"checked"`
	Feedback            string        `bson:"feedback" json:"feedback,omitempty"`
	SubmissionTimestamp int64         `bson:"submissionTimestamp" json:"submissionTimestamp"`
	GradedAt            int64         `bson:"gradedAt" json:"gradedAt"` // 0 表示未批改
}

// AttemptKey AttemptID 由作业ID、提交者和提交时间戳派生。
// 提交者参与派生是因为集合被所有用户共享，同一毫秒的提交不能互相覆盖
func AttemptKey(assignmentID, userEmail string, submittedAt int64) string {
	return fmt.Sprintf("%s_%s_%d", assignmentID, userEmail, submittedAt)
}

// CachedAttempt 已批改作业的本地镜像，供离线查看成绩
type CachedAttempt struct {
	BaseModel
	AttemptID    string `gorm:"size:191;uniqueIndex" json:"attemptId"`
	AssignmentID string `gorm:"size:64;index" json:"assignmentId"`
	UserEmail    string `gorm:"size:128;index" json:"userEmail"`
	Status       string `gorm:"size:20" json:"status"`
	Score        int    `json:"score"`
	MaxScore     int    `json:"maxScore"`
	Feedback     string `gorm:"type:text" json:"feedback"`
	GradedAt     int64  `json:"gradedAt"`
}

func (CachedAttempt) TableName() string {
	return "cached_attempts"
}
