package form

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ScheduleValue is the answer of a schedule field: an ISO calendar date and
// a zone-naive HH:mm time. The time zone is applied only when an
// appointment is created.
type ScheduleValue struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func (s ScheduleValue) empty() bool {
	return strings.TrimSpace(s.Date) == "" && strings.TrimSpace(s.Time) == ""
}

func (s ScheduleValue) complete() bool {
	return strings.TrimSpace(s.Date) != "" && strings.TrimSpace(s.Time) != ""
}

// In returns the instant the schedule denotes in loc.
func (s ScheduleValue) In(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.Time, loc)
}

// Invalid holds an answer whose JSON shape matches no supported value.
type Invalid struct {
	Raw json.RawMessage
}

func (v Invalid) MarshalJSON() ([]byte, error) {
	return v.Raw, nil
}

// Value is one answer: string, bool, []string, ScheduleValue or Invalid.
type Value any

// AnswerSet maps field ids to submitted values. A nil value is the same as
// a missing key.
type AnswerSet map[string]Value

func (a *AnswerSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(AnswerSet, len(raw))
	for id, msg := range raw {
		v := decodeValue(msg)
		if v == nil {
			continue
		}
		out[id] = v
	}
	*a = out
	return nil
}

func decodeValue(msg json.RawMessage) Value {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return nil
	}

	switch msg[0] {
	case '"':
		var s string
		if json.Unmarshal(msg, &s) == nil {
			return s
		}
	case 't', 'f':
		var b bool
		if json.Unmarshal(msg, &b) == nil {
			return b
		}
	case '[':
		var l []string
		if json.Unmarshal(msg, &l) == nil {
			if l == nil {
				l = []string{}
			}
			return l
		}
	case '{':
		var fields map[string]json.RawMessage
		if json.Unmarshal(msg, &fields) == nil && onlyKeys(fields, "date", "time") {
			var s ScheduleValue
			if json.Unmarshal(msg, &s) == nil {
				return s
			}
		}
	}
	return Invalid{Raw: append(json.RawMessage(nil), msg...)}
}

func onlyKeys(m map[string]json.RawMessage, keys ...string) bool {
	for k := range m {
		found := false
		for _, key := range keys {
			if k == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// String returns the answer for id when it is a string.
func (a AnswerSet) String(id string) (string, bool) {
	s, ok := a[id].(string)
	return s, ok
}

// Schedule returns the answer for id when it is a schedule.
func (a AnswerSet) Schedule(id string) (ScheduleValue, bool) {
	s, ok := a[id].(ScheduleValue)
	return s, ok
}

// Clone returns a copy of a that shares no slices with it.
func (a AnswerSet) Clone() AnswerSet {
	if a == nil {
		return nil
	}
	out := make(AnswerSet, len(a))
	for k, v := range a {
		if l, ok := v.([]string); ok {
			v = append([]string{}, l...)
		}
		out[k] = v
	}
	return out
}

// Declared returns a copy of a holding only the answers of input fields
// declared by cfg. Unknown keys and header ids are dropped.
func (a AnswerSet) Declared(cfg Config) AnswerSet {
	out := AnswerSet{}
	for _, f := range cfg.AllFields() {
		if f.Type == Header {
			continue
		}
		v, ok := a[f.ID]
		if !ok {
			continue
		}
		if l, ok := v.([]string); ok {
			v = append([]string{}, l...)
		}
		out[f.ID] = v
	}
	return out
}

func isEmpty(v Value) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case ScheduleValue:
		return v.empty()
	}
	return false
}
