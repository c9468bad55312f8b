package util

import (
	"encoding/json"
	"focus-write/biz/infrastructure/consts"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JSONF 序列化为json字符串，用于日志
func JSONF(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// CountWords 统计正文词数，空白分隔
func CountWords(content string) int64 {
	return int64(len(strings.Fields(content)))
}

// NormalizeStudentId 去除学号中的全部空白
func NormalizeStudentId(studentId string) string {
	return strings.Join(strings.Fields(studentId), "")
}

// SessionId 会话文档id，协议规定为 assignmentId_studentId
func SessionId(assignmentId string, studentId string) string {
	return assignmentId + consts.SessionIdSeparator + studentId
}

// NormalizeDoc mongo解码出的时间是primitive.DateTime，统一转回time.Time
func NormalizeDoc(doc bson.M) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if dt, ok := v.(primitive.DateTime); ok {
			out[k] = dt.Time()
			continue
		}
		out[k] = v
	}
	return out
}
