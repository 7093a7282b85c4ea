package format_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/vedsharma/analyze-request/internal/format"
	"github.com/vedsharma/analyze-request/internal/model"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestBuildCurl(t *testing.T) {
	testCases := []struct {
		Name     string
		Request  model.RequestSpec
		Expected string
	}{
		{
			Name:     "get_omits_body",
			Request:  model.RequestSpec{URL: "https://a.test/x?q=1&r=2", Method: "GET", Body: "ignored"},
			Expected: `curl -X "GET" "https://a.test/x?q=1&r=2"`,
		},
		{
			Name: "headers_sorted_and_body_quoted",
			Request: model.RequestSpec{
				URL:     "https://a.test",
				Method:  "post",
				Headers: map[string]string{"X-B": "2", "Accept": "application/json"},
				Body:    `{"msg":"say \"hi\" <b>"}`,
			},
			Expected: `curl -X "POST" -H "Accept: application/json" -H "X-B: 2" --data "{\"msg\":\"say \\\"hi\\\" <b>\"}" "https://a.test"`,
		},
		{
			Name:     "head_omits_body",
			Request:  model.RequestSpec{URL: "https://a.test", Method: "HEAD", Body: "x"},
			Expected: `curl -X "HEAD" "https://a.test"`,
		},
		{
			Name:     "default_method",
			Request:  model.RequestSpec{URL: "https://a.test"},
			Expected: `curl -X "GET" "https://a.test"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Expected, format.BuildCurl(tc.Request))
		})
	}
}

func TestPrintResponseOk(t *testing.T) {
	var buf bytes.Buffer
	format.PrintResponse(&buf, &model.ResponseRecord{
		OK:          true,
		Status:      200,
		StatusText:  "OK",
		Headers:     map[string]string{"b": "2", "a": "1"},
		ContentType: "application/json",
		BodyText:    `{"a":"<x>"}`,
		BodyJSON:    map[string]any{"a": "<x>"},
		DurationMs:  7,
	}, format.ResponseOptions{ShowHeaders: true})

	out := buf.String()
	assert.Contains(t, out, "200 OK")
	assert.Contains(t, out, "Time: 7ms")
	assert.Contains(t, out, "Type: application/json")
	assert.Contains(t, out, "  a: 1\n  b: 2\n")
	assert.Contains(t, out, "{\n  \"a\": \"<x>\"\n}")
	assert.NotContains(t, out, "saved response")
}

func TestPrintResponseSavedAndError(t *testing.T) {
	var buf bytes.Buffer
	res := model.NewErrorResponse("timeout", 15000).Stamped("2024-01-01T00:00:00.000Z")
	format.PrintResponse(&buf, &res, format.ResponseOptions{})

	out := buf.String()
	assert.Contains(t, out, "saved response from 2024-01-01T00:00:00.000Z")
	assert.Contains(t, out, "✗ timeout")
	assert.Contains(t, out, "Time: 15000ms")
}

func TestPrintResponseNil(t *testing.T) {
	var buf bytes.Buffer
	format.PrintResponse(&buf, nil, format.ResponseOptions{})
	assert.Equal(t, "(no response)\n", buf.String())
}

func TestOutputIsSanitized(t *testing.T) {
	var buf bytes.Buffer
	format.PrintResponse(&buf, &model.ResponseRecord{
		OK:         true,
		Status:     200,
		StatusText: "OK",
		BodyText:   "evil\x1b[31m\x07",
	}, format.ResponseOptions{})

	assert.Contains(t, buf.String(), `evil\x1b[31m\x07`)
}

func TestPrintSavedList(t *testing.T) {
	var buf bytes.Buffer
	format.PrintSavedList(&buf, []model.SavedRequest{
		{
			ID:           "one",
			Name:         "Users",
			Description:  "list users",
			Request:      model.RequestSpec{URL: "https://a.test/users", Method: "GET"},
			LastResponse: &model.ResponseRecord{OK: true, Status: 404, DurationMs: 3},
			UpdatedAtISO: "2024-06-01T00:00:00.000Z",
		},
		{
			ID:           "two",
			Name:         "Broken",
			Request:      model.RequestSpec{URL: "https://a.test/b", Method: "POST"},
			LastResponse: &model.ResponseRecord{OK: false, Error: "timeout"},
			UpdatedAtISO: "2024-01-01T00:00:00.000Z",
		},
	}, "two")

	out := buf.String()
	assert.Contains(t, out, "  one Users — list users GET https://a.test/users 404 (3ms) 2024-06-01T00:00:00.000Z\n")
	assert.Contains(t, out, "* two Broken POST https://a.test/b error (0ms) 2024-01-01T00:00:00.000Z\n")
}

func TestPrintSavedListEmpty(t *testing.T) {
	var buf bytes.Buffer
	format.PrintSavedList(&buf, nil, "")
	assert.Equal(t, "No saved requests\n", buf.String())
}

func TestPrintSavedDetailRedacts(t *testing.T) {
	item := &model.SavedRequest{
		ID:   "x",
		Name: "secret",
		Request: model.RequestSpec{
			URL:     "https://a.test",
			Method:  "GET",
			Headers: map[string]string{"Authorization": "Bearer abc", "Accept": "*/*"},
		},
	}

	var buf bytes.Buffer
	format.PrintSavedDetail(&buf, item, false)
	assert.Contains(t, buf.String(), "Authorization: [REDACTED]")
	assert.NotContains(t, buf.String(), "Bearer abc")
	assert.Contains(t, buf.String(), "(no response)")

	buf.Reset()
	format.PrintSavedDetail(&buf, item, true)
	assert.Contains(t, buf.String(), "Authorization: Bearer abc")
}

func TestLooksSensitive(t *testing.T) {
	assert.True(t, format.LooksSensitive(`{"Password":"x"}`))
	assert.False(t, format.LooksSensitive(`{"name":"x"}`))
	assert.False(t, format.LooksSensitive(""))
}
