package model

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// User 远端用户文档，以邮箱为主键
type User struct {
	Email         string   `bson:"_id" json:"email"`
	Name          string   `bson:"name" json:"name"`
	Role          UserRole `bson:"role" json:"role"`
	AvatarURL     string   `bson:"avatarUrl" json:"avatarUrl,omitempty"`
	AssignmentIDs []string `bson:"assignmentIds" json:"assignmentIds"`
	CourseIDs     []string `bson:"courseIds" json:"courseIds"`
	CreatedAt     int64    `bson:"createdAt" json:"createdAt"`
}
