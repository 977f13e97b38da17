package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"time"
)

// CreateRequest is the decoded body of an event submission.
type CreateRequest struct {
	What    string
	Tags    []string
	When    *time.Time
	Data    string
	hasWhat bool
}

type rawCreateRequest struct {
	What json.RawMessage `json:"what"`
	Tags json.RawMessage `json:"tags"`
	When json.RawMessage `json:"when"`
	Data json.RawMessage `json:"data"`
}

// DecodeCreateRequest reads a JSON event submission. Tags may be a list of
// strings or a space-separated string; when is optional epoch seconds; data
// may be any JSON value and is kept as text.
func DecodeCreateRequest(body io.Reader) (CreateRequest, error) {
	var raw rawCreateRequest
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(&raw); err != nil {
		return CreateRequest{}, FilterError{Field: "body", Message: "must be a JSON object"}
	}

	req := CreateRequest{}
	if !isNull(raw.What) {
		if err := json.Unmarshal(raw.What, &req.What); err != nil {
			return CreateRequest{}, FilterError{Field: "what", Message: "must be a string"}
		}
		req.hasWhat = true
	}

	tags, err := decodeTags(raw.Tags)
	if err != nil {
		return CreateRequest{}, err
	}
	req.Tags = tags

	if !isNull(raw.When) {
		var seconds float64
		if err := json.Unmarshal(raw.When, &seconds); err != nil {
			return CreateRequest{}, FilterError{Field: "when", Message: "must be epoch seconds"}
		}
		when, ok := epochToTime(seconds)
		if !ok {
			return CreateRequest{}, FilterError{Field: "when", Message: "out of range"}
		}
		req.When = &when
	}

	data, err := decodeData(raw.Data)
	if err != nil {
		return CreateRequest{}, err
	}
	req.Data = data

	return req, nil
}

func decodeTags(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}

	switch raw[0] {
	case '"':
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, ErrInvalidTags
		}
		return ParseTags(value), nil
	case '[':
		var values []string
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, ErrInvalidTags
		}
		return ParseTags(JoinTags(values)), nil
	default:
		return nil, ErrInvalidTags
	}
}

func decodeData(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	if raw[0] == '"' {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return "", FilterError{Field: "data", Message: "must be valid JSON"}
		}
		return value, nil
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, raw); err != nil {
		return "", FilterError{Field: "data", Message: "must be valid JSON"}
	}
	return compacted.String(), nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Epoch bounds of 0001-01-01T00:00:00Z and 9999-12-31T23:59:59Z.
const (
	minEpochSeconds = -62135596800
	maxEpochSeconds = 253402300799
)

func epochToTime(seconds float64) (time.Time, bool) {
	if math.IsNaN(seconds) || seconds < minEpochSeconds || seconds > maxEpochSeconds {
		return time.Time{}, false
	}
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC(), true
}

// EpochSeconds renders t as fractional Unix seconds.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

var errMissingWhat = errors.New(`"what" is required`)

// Params turns the request into storage parameters, defaulting when to now.
func (r CreateRequest) Params(now time.Time) (CreateParams, error) {
	if !r.hasWhat {
		return CreateParams{}, ValidationError{Err: errMissingWhat}
	}
	when := now.UTC()
	if r.When != nil {
		when = *r.When
	}
	return CreateParams{
		What: r.What,
		Tags: r.Tags,
		When: when,
		Data: r.Data,
	}, nil
}
