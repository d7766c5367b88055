package model

// Course 课程的本地缓存表，供离线浏览
type Course struct {
	BaseModel
	RemoteID    string  `gorm:"size:64;uniqueIndex" json:"remoteId"`
	Title       string  `gorm:"size:255;not null" json:"title"`
	Description string  `gorm:"type:text" json:"description"`
	Instructor  string  `gorm:"size:128" json:"instructor"`
	ImageURL    string  `gorm:"size:255" json:"imageUrl"`
	Topics      []Topic `gorm:"foreignKey:CourseID" json:"topics,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

type Topic struct {
	BaseModel
	CourseID uint   `gorm:"index" json:"courseId"`
	RemoteID string `gorm:"size:64;index" json:"remoteId"`
	Title    string `gorm:"size:255;not null" json:"title"`
	Content  string `gorm:"type:text" json:"content"`
	VideoURL string `gorm:"size:255" json:"videoUrl"`
	Order    int    `gorm:"column:sort_order;default:0" json:"order"`
}

func (Topic) TableName() string {
	return "topics"
}
