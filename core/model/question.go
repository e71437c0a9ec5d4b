// Package model holds the data exchanged with the quiz backend and the
// summaries the client keeps locally.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Question is one quiz item as served by getQuestions / getEcsQueue.
type Question struct {
	ID          string  `json:"question_id"`
	Stem        string  `json:"stem"`
	Grade       Scalar  `json:"grade"`
	Unit        string  `json:"unit"`
	Difficulty  string  `json:"difficulty"`
	Options     Options `json:"options"`
	Explanation string  `json:"explanation,omitempty"`
}

// Options accepts either a comma-joined string or a JSON array.
type Options []string

// UnmarshalJSON implements json.Unmarshaler.
func (o *Options) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var raw []Scalar
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("options: %w", err)
		}
		out := make(Options, 0, len(raw))
		for _, s := range raw {
			if v := strings.TrimSpace(string(s)); v != "" {
				out = append(out, v)
			}
		}
		*o = out
		return nil
	}
	var joined Scalar
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	*o = SplitOptions(string(joined))
	return nil
}

// SplitOptions splits a comma-joined option list, trimming and dropping blanks.
func SplitOptions(joined string) Options {
	var out Options
	for _, part := range strings.Split(joined, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Scalar is a string that also accepts JSON numbers and booleans, since
// spreadsheet-backed payloads are loose about cell types.
type Scalar string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = Scalar(v)
		return nil
	}
	var v json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err == nil {
		*s = Scalar(v.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("scalar: unsupported value %s", data)
	}
	if b {
		*s = "true"
	} else {
		*s = "false"
	}
	return nil
}

// Filters narrows getQuestions. UserID is always sent.
type Filters struct {
	UserID     string `json:"user_id"`
	Grade      string `json:"grade,omitempty"`
	Unit       string `json:"unit,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// Normalize trims every field and falls back to defaultUser for an empty user.
func (f Filters) Normalize(defaultUser string) Filters {
	f.UserID = strings.TrimSpace(f.UserID)
	if f.UserID == "" {
		f.UserID = defaultUser
	}
	f.Grade = strings.TrimSpace(f.Grade)
	f.Unit = strings.TrimSpace(f.Unit)
	f.Difficulty = strings.TrimSpace(f.Difficulty)
	return f
}
