package validation

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/mediatheque/mediatheque/internal/matcher"
)

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return int64(value)
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func marshalCandidates(candidates []matcher.Candidate) (string, error) {
	if len(candidates) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalCandidates(raw string) []matcher.Candidate {
	if raw == "" || raw == "[]" {
		return nil
	}
	var candidates []matcher.Candidate
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return nil
	}
	return candidates
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
