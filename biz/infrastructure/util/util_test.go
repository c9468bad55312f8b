package util

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCountWords(t *testing.T) {
	tests := []struct {
		content string
		want    int64
	}{
		{"", 0},
		{"   ", 0},
		{"hello", 1},
		{"hello world", 2},
		{"  one\ttwo\nthree  ", 3},
		{"word,word word", 2},
	}
	for _, tt := range tests {
		if got := CountWords(tt.content); got != tt.want {
			t.Fatalf("CountWords(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func TestNormalizeStudentId(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"s001", "s001"},
		{"  s001  ", "s001"},
		{"s0 01", "s001"},
		{"\ts0\n01 ", "s001"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeStudentId(tt.in); got != tt.want {
			t.Fatalf("NormalizeStudentId(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSessionId(t *testing.T) {
	if got := SessionId("abc123", "s001"); got != "abc123_s001" {
		t.Fatalf("SessionId = %q", got)
	}
}

func TestNormalizeDoc(t *testing.T) {
	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	doc := NormalizeDoc(bson.M{
		"_id":        "x",
		"created_at": primitive.NewDateTimeFromTime(at),
		"count":      int64(2),
	})
	got, ok := doc["created_at"].(time.Time)
	if !ok || !got.Equal(at) {
		t.Fatalf("created_at = %v (%T), want %v", doc["created_at"], doc["created_at"], at)
	}
	if doc["count"] != int64(2) || doc["_id"] != "x" {
		t.Fatalf("non-time fields mangled: %v", doc)
	}
	if NormalizeDoc(nil) != nil {
		t.Fatal("nil doc should stay nil")
	}
}
