package model

import (
	"math"
	"time"
)

// QuestionSet is the payload of getQuestions.
type QuestionSet struct {
	Data  []Question     `json:"data"`
	Count *int           `json:"count,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// ReviewQueue is the payload of getEcsQueue.
type ReviewQueue struct {
	Data []Question  `json:"data"`
	Meta *ReviewMeta `json:"meta,omitempty"`
}

// ReviewMeta describes the remaining review backlog.
type ReviewMeta struct {
	TotalActive *int `json:"total_active,omitempty"`
}

// AnswerResult is the payload of submitAnswer.
type AnswerResult struct {
	IsCorrect    bool   `json:"is_correct"`
	Explanation  string `json:"explanation,omitempty"`
	Recorded     bool   `json:"recorded"`
	NeedRemedial bool   `json:"need_remedial"`
	ECSStatus    string `json:"ecs_status,omitempty"`
	ECSStreak    *int   `json:"ecs_streak,omitempty"`
}

// Pong is the payload of ping.
type Pong struct {
	TS       string `json:"ts"`
	TSTaipei string `json:"ts_taipei,omitempty"`
}

// Summary records one finished session.
type Summary struct {
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id,omitempty"`
	Mode         string    `json:"mode,omitempty"`
	Total        int       `json:"total"`
	Done         int       `json:"done"`
	Correct      int       `json:"correct"`
	Accuracy     int       `json:"acc"`
	FinishedAt   time.Time `json:"finishedAt"`
	AutoFinished bool      `json:"autoFinished"`
}

// Accuracy returns round(correct/max(1,done)*100), or 0 when nothing was answered.
func Accuracy(correct, done int) int {
	if done <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(done) * 100))
}

// ProgressPercent returns round(done/max(1,total)*100) clamped to 0..100.
func ProgressPercent(done, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(done) / float64(total) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
