package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp: время отчета. Бэкенд отдает ISO-8601 (с зоной или без, как
// datetime.isoformat()) либо epoch в секундах числом или строкой.
// Raw хранит исходный текст: его показываем, если разобрать не удалось.
type Timestamp struct {
	Time time.Time
	Raw  string
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp разбирает строковое представление времени.
// Строки без зоны считаются UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	raw := strings.TrimSpace(s)
	ts := Timestamp{Raw: raw}
	if raw == "" {
		return ts, fmt.Errorf("empty timestamp")
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			ts.Time = t
			return ts, nil
		}
	}

	if sec, err := strconv.ParseFloat(raw, 64); err == nil && Finite(sec) {
		ts.Time = epoch(sec)
		return ts, nil
	}

	return ts, fmt.Errorf("unrecognized timestamp %q", raw)
}

func epoch(sec float64) time.Time {
	whole := int64(sec)
	nanos := int64((sec - float64(whole)) * float64(time.Second))
	return time.Unix(whole, nanos).UTC()
}

// Valid: удалось ли получить время.
func (t Timestamp) Valid() bool {
	return !t.Time.IsZero()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		// Неразборчивая строка: не ошибка формы документа: сохраняем как есть.
		parsed, _ := ParseTimestamp(s)
		*t = parsed
		return nil
	}

	sec, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("report_timestamp: %w", err)
	}
	*t = Timestamp{Time: epoch(sec), Raw: string(data)}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Valid() {
		return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
	}
	if t.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(t.Raw)
}
