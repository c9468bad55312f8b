package assignment

import (
	"time"
)

// Assignment 教师布置的写作任务，id为对外分享的不透明短串
type Assignment struct {
	ID           string    `bson:"_id" json:"id" mapstructure:"_id"`
	TeacherID    string    `bson:"teacher_id" json:"teacherId" mapstructure:"teacher_id"`
	Name         string    `bson:"name,omitempty" json:"name,omitempty" mapstructure:"name"`
	PromptText   string    `bson:"prompt_text" json:"promptText" mapstructure:"prompt_text"`
	StrikeLimit  int64     `bson:"strike_limit" json:"strikeLimit" mapstructure:"strike_limit"`
	ActiveStatus string    `bson:"active_status" json:"activeStatus" mapstructure:"active_status"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt" mapstructure:"created_at"`
}
