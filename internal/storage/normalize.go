package storage

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/vedsharma/analyze-request/internal/model"
)

// Everything read from a medium is untrusted: it may come from an older
// generation or a hand-edited file. The functions below never panic and
// degrade wrong shapes to defaults or reject the record.

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asInt(v any) int64 {
	f, ok := asNumber(v)
	if !ok || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

// stringify renders a header value the way a browser would before sending it
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// NormalizeHeaders rebuilds a header mapping, stringifying values and
// dropping null entries. Anything but an object yields an empty mapping.
func NormalizeHeaders(v any) map[string]string {
	headers := make(map[string]string)
	obj, ok := asObject(v)
	if !ok {
		return headers
	}
	for k, val := range obj {
		if val == nil {
			continue
		}
		headers[k] = stringify(val)
	}
	return headers
}

// canonicalISO normalizes a stored timestamp, falling back to now
func canonicalISO(v any, now time.Time) string {
	s := asString(v)
	if s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return model.FormatISO(t)
		}
	}
	return model.FormatISO(now)
}

// normalizeResponse validates a stored lastResponse. It returns nil when the
// variant cannot be determined or misses required fields.
func normalizeResponse(v any) *model.ResponseRecord {
	obj, ok := asObject(v)
	if !ok {
		return nil
	}

	isOK, ok := obj["ok"].(bool)
	if !ok {
		return nil
	}

	savedAt := asString(obj["savedAtIso"])
	duration := asInt(obj["durationMs"])
	if duration < 0 {
		duration = 0
	}

	if !isOK {
		msg := asString(obj["error"])
		if savedAt == "" || msg == "" {
			return nil
		}
		return &model.ResponseRecord{
			OK:         false,
			Error:      msg,
			DurationMs: duration,
			SavedAtISO: savedAt,
		}
	}

	requested, _ := asObject(obj["requested"])
	res := &model.ResponseRecord{
		OK: true,
		Requested: model.Requested{
			URL:    asString(requested["url"]),
			Method: asString(requested["method"]),
		},
		Status:      int(asInt(obj["status"])),
		StatusText:  asString(obj["statusText"]),
		Headers:     NormalizeHeaders(obj["headers"]),
		ContentType: asString(obj["contentType"]),
		BodyText:    asString(obj["bodyText"]),
		BodyJSON:    obj["bodyJson"],
		DurationMs:  duration,
		SavedAtISO:  savedAt,
	}

	if res.Requested.URL == "" || res.Requested.Method == "" || savedAt == "" || res.Status == 0 {
		return nil
	}
	return res
}

// normalizeRecord converts one stored record, reporting false when the
// record must be dropped
func normalizeRecord(v any, now time.Time) (model.SavedRequest, bool) {
	obj, ok := asObject(v)
	if !ok {
		return model.SavedRequest{}, false
	}

	req, ok := asObject(obj["request"])
	if !ok {
		return model.SavedRequest{}, false
	}

	timeout := asInt(req["timeoutMs"])
	if timeout < 0 || int64(int(timeout)) != timeout {
		timeout = 0
	}

	item := model.SavedRequest{
		ID:          asString(obj["id"]),
		Name:        asString(obj["name"]),
		Description: asString(obj["description"]),
		Request: model.RequestSpec{
			URL:       asString(req["url"]),
			Method:    asString(req["method"]),
			Headers:   NormalizeHeaders(req["headers"]),
			Body:      asString(req["body"]),
			TimeoutMs: int(timeout),
		},
		LastResponse: normalizeResponse(obj["lastResponse"]),
		CreatedAtISO: canonicalISO(obj["createdAtIso"], now),
		UpdatedAtISO: canonicalISO(obj["updatedAtIso"], now),
	}

	if item.ID == "" || item.Name == "" || item.Request.URL == "" || item.Request.Method == "" {
		return model.SavedRequest{}, false
	}

	if item.UpdatedAtISO < item.CreatedAtISO {
		item.UpdatedAtISO = item.CreatedAtISO
	}

	return item, true
}

// normalizeCollection converts a decoded collection, dropping invalid and
// duplicate-id records (first occurrence wins)
func normalizeCollection(raw []any, now time.Time) []model.SavedRequest {
	out := make([]model.SavedRequest, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, v := range raw {
		item, ok := normalizeRecord(v, now)
		if !ok || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}
