package models

import "gorm.io/gorm"

type ExerciseCategory struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;size:120;not null"`
	Description string
	IsActive    bool `gorm:"not null"`
}
