package model

// QuizAnswer 单题作答记录，批改结果在客户端完成作答时即确定
type QuizAnswer struct {
	QuestionID    string `bson:"questionId" json:"questionId"`
	UserAnswer    string `bson:"userAnswer" json:"userAnswer"`
	CorrectAnswer string `bson:"correctAnswer" json:"correctAnswer"`
	IsCorrect     bool   `bson:"isCorrect" json:"isCorrect"`
}

// QuizAttempt 一次测验记录，构建后一次性写入，之后不可变（应用内无重新批改路径）
// 不变量: CorrectAnswers == count(Answers where IsCorrect);
// Score == round(100*CorrectAnswers/TotalQuestions)，TotalQuestions==0 时为 0;
// EndTime - StartTime == TimeTaken
type QuizAttempt struct {
	AttemptID      string       `bson:"_id" json:"attemptId"`
	QuizID         string       `bson:"quizId" json:"quizId"`
	CourseID       string       `bson:"courseId" json:"courseId"`
	UserEmail      string       `bson:"userEmail" json:"userEmail"`
	Answers        []QuizAnswer `bson:"answers" json:"answers"`
	CorrectAnswers int          `bson:"correctAnswers" json:"correctAnswers"`
	TotalQuestions int          `bson:"totalQuestions" json:"totalQuestions"`
	Score          int          `bson:"score" json:"score"` // 0-100 整数百分比
	PassingScore   int          `bson:"passingScore" json:"passingScore"`
	Passed         bool         `bson:"passed" json:"passed"`
	TimeTaken      int64        `bson:"timeTaken" json:"timeTaken"`
	StartTime      int64        `bson:"startTime" json:"startTime"`
	EndTime        int64        `bson:"endTime" json:"endTime"`
}
