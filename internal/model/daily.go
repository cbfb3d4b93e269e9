package model

import "time"

// DailyNugget 对应于数据库中的 daily_nuggets 表。
// 每天每个领域生成一条简短的知识卡片，由 LLM 一次性生成后落库。
type DailyNugget struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Date      string    `gorm:"type:varchar(10);not null;index:idx_date_field,unique" json:"date"` // YYYY-MM-DD
	Field     string    `gorm:"type:varchar(32);not null;index:idx_date_field,unique" json:"field"`
	Title     string    `gorm:"type:varchar(255)" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DailyNugget) TableName() string {
	return "daily_nuggets"
}
