package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestion_OptionsShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Options
	}{
		{"comma joined", `{"options":"Sun, Moon ,,Mars"}`, Options{"Sun", "Moon", "Mars"}},
		{"array", `{"options":["Sun"," Moon ",""]}`, Options{"Sun", "Moon"}},
		{"numeric array", `{"options":[1,2,3]}`, Options{"1", "2", "3"}},
		{"null", `{"options":null}`, nil},
		{"missing", `{}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Question
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &q))
			assert.Equal(t, tt.want, q.Options)
		})
	}
}

func TestQuestion_LooseGrade(t *testing.T) {
	var q Question
	require.NoError(t, json.Unmarshal([]byte(`{"question_id":"Q1","grade":5,"unit":"Light"}`), &q))
	assert.Equal(t, Scalar("5"), q.Grade)

	require.NoError(t, json.Unmarshal([]byte(`{"grade":"5A"}`), &q))
	assert.Equal(t, Scalar("5A"), q.Grade)

	assert.Error(t, json.Unmarshal([]byte(`{"grade":{}}`), &q))
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0, Accuracy(0, 0))
	assert.Equal(t, 100, Accuracy(1, 1))
	assert.Equal(t, 50, Accuracy(1, 2))
	assert.Equal(t, 67, Accuracy(2, 3))
	assert.Equal(t, 33, Accuracy(1, 3))
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0, ProgressPercent(0, 0))
	assert.Equal(t, 33, ProgressPercent(1, 3))
	assert.Equal(t, 100, ProgressPercent(5, 3))
}

func TestFilters_Normalize(t *testing.T) {
	f := Filters{UserID: "  ", Grade: " 5 ", Unit: "Light "}.Normalize("u001")
	assert.Equal(t, Filters{UserID: "u001", Grade: "5", Unit: "Light"}, f)
}
