package models

import (
	"time"
)

// HighScoreTable 高分榜表名
const HighScoreTable = "high_scores"

// HighScore 高分记录表
//
// 记录只追加写入，不提供更新和删除。
type HighScore struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Score     int       `gorm:"type:integer;not null;check:score >= 0" json:"score"`
	CreatedAt time.Time `gorm:"autoCreateTime;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (HighScore) TableName() string {
	return HighScoreTable
}

// HighScoreInput 创建高分记录的输入
type HighScoreInput struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}
