package repository

import (
	"edulink_backend/internal/model"

	"gorm.io/gorm"
)

// CourseRepository 课程与主题的本地缓存表（离线浏览）
type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) GetByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.Preload("Topics", func(db *gorm.DB) *gorm.DB {
		return db.Order("topics.sort_order ASC")
	}).First(&course, id).Error
	return &course, err
}

func (r *CourseRepository) List(limit, offset int) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64

	db := r.DB.Model(&model.Course{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&courses).Error
	return courses, total, err
}

func (r *CourseRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.Topic{}, "course_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Course{}, id).Error
	})
}

func (r *CourseRepository) AddTopic(topic *model.Topic) error {
	return r.DB.Create(topic).Error
}

func (r *CourseRepository) DeleteTopic(id uint) error {
	return r.DB.Delete(&model.Topic{}, id).Error
}
