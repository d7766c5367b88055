package service

import (
	"fmt"
	"math"

	"edulink_backend/internal/model"
)

// 成绩三段分级，同时用于前端配色与总结文案
const (
	BandSuccess = "success"
	BandWarning = "warning"
	BandError   = "error"
)

// Percentage 得分百分比；maxScore 为 0 时返回 0，避免除零
func Percentage(score, maxScore int) float64 {
	if maxScore == 0 {
		return 0
	}
	return 100 * float64(score) / float64(maxScore)
}

// FormattedPercentage 渲染为 "<n>%"
func FormattedPercentage(score, maxScore int) string {
	return fmt.Sprintf("%d%%", int(math.Round(Percentage(score, maxScore))))
}

// ScoreColorBand 上边界取闭区间: >=80 success, >=60 warning, 否则 error
func ScoreColorBand(pct float64) string {
	switch {
	case pct >= 80:
		return BandSuccess
	case pct >= 60:
		return BandWarning
	default:
		return BandError
	}
}

func StatusLabel(status model.AttemptStatus) string {
	switch status {
	case model.AttemptSubmitted:
		return "Submitted"
	case model.AttemptGraded:
		return "Graded"
	case model.AttemptFailed:
		return "Failed"
	default:
		return "Not Started"
	}
}

func CheckedLabel(checked bool) string {
	if checked {
		return "Checked"
	}
	return "Pending Review"
}

// AttemptReview 已完成尝试的展示聚合，attempt 状态的纯函数
type AttemptReview struct {
	Percentage          float64 `json:"percentage"`
	FormattedPercentage string  `json:"formattedPercentage"`
	Band                string  `json:"band"`
	StatusLabel         string  `json:"statusLabel"`
	CheckedLabel        string  `json:"checkedLabel"`
	Feedback            string  `json:"feedback,omitempty"`
}

func BuildAttemptReview(a *model.AssignmentAttempt) AttemptReview {
	pct := Percentage(a.Score, a.MaxScore)
	return AttemptReview{
		Percentage:          pct,
		FormattedPercentage: FormattedPercentage(a.Score, a.MaxScore),
		Band:                ScoreColorBand(pct),
		StatusLabel:         StatusLabel(a.Status),
		CheckedLabel:        CheckedLabel(a.Checked),
		Feedback:            a.Feedback,
	}
}

// BuildQuizReview 测验分数本身就是 0-100 百分比
func BuildQuizReview(q *model.QuizAttempt) AttemptReview {
	pct := float64(q.Score)
	status := model.AttemptGraded
	if !q.Passed {
		status = model.AttemptFailed
	}
	return AttemptReview{
		Percentage:          pct,
		FormattedPercentage: fmt.Sprintf("%d%%", q.Score),
		Band:                ScoreColorBand(pct),
		StatusLabel:         StatusLabel(status),
		CheckedLabel:        CheckedLabel(true),
	}
}
