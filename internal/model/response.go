package model

import (
	"encoding/json"
	"fmt"
)

// Requested echoes the target of an executed request
type Requested struct {
	URL    string `json:"url"`
	Method string `json:"method"`
}

// ResponseRecord is the outcome of a proxied request. OK selects the variant:
// when true the status fields are set, otherwise Error is.
// SavedAtISO is only set on copies held by the store.
type ResponseRecord struct {
	OK          bool
	Requested   Requested
	Status      int
	StatusText  string
	Headers     map[string]string
	ContentType string
	BodyText    string
	BodyJSON    any // nil when the body was not JSON
	Error       string
	DurationMs  int64
	SavedAtISO  string
}

// NewErrorResponse builds the Err variant.
func NewErrorResponse(msg string, durationMs int64) ResponseRecord {
	return ResponseRecord{OK: false, Error: msg, DurationMs: durationMs}
}

// Stamped returns a copy of r marked as persisted at ts.
func (r ResponseRecord) Stamped(ts string) ResponseRecord {
	c := r
	c.SavedAtISO = ts
	return c
}

// Live returns a copy of r without the persistence timestamp.
func (r ResponseRecord) Live() ResponseRecord {
	c := r
	c.SavedAtISO = ""
	return c
}

type okWire struct {
	OK          bool              `json:"ok"`
	Requested   Requested         `json:"requested"`
	Status      int               `json:"status"`
	StatusText  string            `json:"statusText"`
	Headers     map[string]string `json:"headers"`
	ContentType string            `json:"contentType"`
	BodyText    string            `json:"bodyText"`
	BodyJSON    any               `json:"bodyJson"`
	DurationMs  int64             `json:"durationMs"`
	SavedAtISO  string            `json:"savedAtIso,omitempty"`
}

type errWire struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error"`
	DurationMs int64  `json:"durationMs"`
	SavedAtISO string `json:"savedAtIso,omitempty"`
}

// MarshalJSON emits only the fields of the active variant.
func (r ResponseRecord) MarshalJSON() ([]byte, error) {
	if !r.OK {
		return json.Marshal(errWire{
			OK:         false,
			Error:      r.Error,
			DurationMs: r.DurationMs,
			SavedAtISO: r.SavedAtISO,
		})
	}

	headers := r.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	return json.Marshal(okWire{
		OK:          true,
		Requested:   r.Requested,
		Status:      r.Status,
		StatusText:  r.StatusText,
		Headers:     headers,
		ContentType: r.ContentType,
		BodyText:    r.BodyText,
		BodyJSON:    r.BodyJSON,
		DurationMs:  r.DurationMs,
		SavedAtISO:  r.SavedAtISO,
	})
}

// UnmarshalJSON decodes either variant. It is strict about the
// discriminator; lenient decoding of stored data lives in the storage package.
func (r *ResponseRecord) UnmarshalJSON(data []byte) error {
	var probe struct {
		OK *bool `json:"ok"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.OK == nil {
		return fmt.Errorf("response record: missing ok discriminator")
	}

	if !*probe.OK {
		var w errWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*r = ResponseRecord{
			OK:         false,
			Error:      w.Error,
			DurationMs: w.DurationMs,
			SavedAtISO: w.SavedAtISO,
		}
		return nil
	}

	var w okWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Headers == nil {
		w.Headers = map[string]string{}
	}
	*r = ResponseRecord{
		OK:          true,
		Requested:   w.Requested,
		Status:      w.Status,
		StatusText:  w.StatusText,
		Headers:     w.Headers,
		ContentType: w.ContentType,
		BodyText:    w.BodyText,
		BodyJSON:    w.BodyJSON,
		DurationMs:  w.DurationMs,
		SavedAtISO:  w.SavedAtISO,
	}
	return nil
}
