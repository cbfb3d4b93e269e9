package repository

import (
	"errors"

	"askdocs-go/internal/model"

	"gorm.io/gorm"
)

// DailyRepository 接口定义了每日知识条目的持久化操作。
type DailyRepository interface {
	Upsert(nugget *model.DailyNugget) error
	FindByDate(date string) ([]model.DailyNugget, error)
	FindArchive(limit int) ([]model.DailyNugget, error)
}

type dailyRepository struct {
	db *gorm.DB
}

// NewDailyRepository 创建一个新的 DailyRepository 实例。
func NewDailyRepository(db *gorm.DB) DailyRepository {
	return &dailyRepository{db: db}
}

// Upsert 按 (date, field) 维度写入条目，已存在时覆盖内容。
func (r *dailyRepository) Upsert(nugget *model.DailyNugget) error {
	var existing model.DailyNugget
	err := r.db.Where("date = ? AND field = ?", nugget.Date, nugget.Field).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(nugget).Error
	}
	if err != nil {
		return err
	}
	return r.db.Model(&existing).Update("content", nugget.Content).Error
}

// FindByDate 返回指定日期的全部条目。
func (r *dailyRepository) FindByDate(date string) ([]model.DailyNugget, error) {
	var nuggets []model.DailyNugget
	err := r.db.Where("date = ?", date).Find(&nuggets).Error
	return nuggets, err
}

// FindArchive 返回最近的历史条目，按日期倒序。
func (r *dailyRepository) FindArchive(limit int) ([]model.DailyNugget, error) {
	var nuggets []model.DailyNugget
	err := r.db.Order("date desc").Limit(limit).Find(&nuggets).Error
	return nuggets, err
}
