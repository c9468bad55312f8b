package session

import (
	"time"
)

// Session 一个学生对一次作业的唯一答卷，_id 固定为 assignmentId_studentId
type Session struct {
	ID           string     `bson:"_id" json:"id" mapstructure:"_id"`
	AssignmentID string     `bson:"assignment_id" json:"assignmentId" mapstructure:"assignment_id"`
	StudentID    string     `bson:"student_id" json:"studentId" mapstructure:"student_id"`
	StudentName  string     `bson:"student_name,omitempty" json:"studentName,omitempty" mapstructure:"student_name"`
	TeacherID    string     `bson:"teacher_id,omitempty" json:"teacherId,omitempty" mapstructure:"teacher_id"`
	Content      string     `bson:"content" json:"content" mapstructure:"content"`
	WordCount    int64      `bson:"word_count" json:"wordCount" mapstructure:"word_count"`
	StrikeCount  int64      `bson:"strike_count" json:"strikeCount" mapstructure:"strike_count"`
	Status       string     `bson:"status" json:"status" mapstructure:"status"`
	CreatedAt    time.Time  `bson:"created_at" json:"createdAt" mapstructure:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updatedAt" mapstructure:"updated_at"`
	SubmittedAt  *time.Time `bson:"submitted_at,omitempty" json:"submittedAt,omitempty" mapstructure:"submitted_at"`
}
