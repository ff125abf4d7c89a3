package models

import (
	"gorm.io/gorm"
)

// TaskCursor is a persisted rotation cursor, one row per task name.
// The settlement tasks round-robin currencies (and the compactor also
// users) through these so fairness survives restarts and failures.
type TaskCursor struct {
	gorm.Model
	Name     string `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Position int    `gorm:"default:0" json:"position"`
}

func (TaskCursor) TableName() string {
	return "task_cursors"
}
