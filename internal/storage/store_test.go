package storage_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsharma/analyze-request/internal/model"
	"github.com/vedsharma/analyze-request/internal/storage"
)

const (
	keyV1 = "analyze-request:savedRequests:v1"
	keyV2 = "analyze-request:savedRequests:v2"
)

// testClock returns a clock advancing one second per call
func testClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(t *testing.T) (*storage.Store, *storage.MemoryMedium) {
	t.Helper()
	medium := storage.NewMemoryMedium()
	s := storage.NewStore(medium,
		storage.WithClock(testClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))),
		storage.WithIDGenerator(sequentialIDs()),
	)
	return s, medium
}

func sampleRequest() model.RequestSpec {
	return model.RequestSpec{
		URL:       "https://httpbin.org/anything",
		Method:    "GET",
		Headers:   map[string]string{"Accept": "application/json"},
		Body:      "",
		TimeoutMs: 15000,
	}
}

func sampleResponse() model.ResponseRecord {
	return model.ResponseRecord{
		OK:          true,
		Requested:   model.Requested{URL: "https://httpbin.org/anything", Method: "GET"},
		Status:      200,
		StatusText:  "OK",
		Headers:     map[string]string{"content-type": "application/json"},
		ContentType: "application/json",
		BodyText:    `{"a":[1,"x"]}`,
		BodyJSON:    map[string]any{"a": []any{float64(1), "x"}},
		DurationMs:  42,
	}
}

func TestRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	res := sampleResponse().Stamped("2024-03-01T10:00:00.000Z")
	errRes := model.NewErrorResponse("timeout", 15000).Stamped("2024-03-02T10:00:00.000Z")
	items := []model.SavedRequest{
		{
			ID:           "a",
			Name:         "first",
			Description:  "with ok response",
			Request:      sampleRequest(),
			LastResponse: &res,
			CreatedAtISO: "2024-01-01T00:00:00.000Z",
			UpdatedAtISO: "2024-03-01T10:00:00.000Z",
		},
		{
			ID:           "b",
			Name:         "second",
			Request:      model.RequestSpec{URL: "http://example.com", Method: "POST", Headers: map[string]string{}, Body: "x", TimeoutMs: 1},
			LastResponse: &errRes,
			CreatedAtISO: "2024-01-01T00:00:00.000Z",
			UpdatedAtISO: "2024-03-02T10:00:00.000Z",
		},
		{
			ID:           "c",
			Name:         "third",
			Request:      model.RequestSpec{URL: "http://example.com", Method: "DELETE", Headers: map[string]string{}},
			CreatedAtISO: "2024-01-01T00:00:00.000Z",
			UpdatedAtISO: "2024-01-01T00:00:00.000Z",
		},
	}

	require.NoError(t, s.WriteAll(items))

	got, err := s.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestReadAllEmpty(t *testing.T) {
	s, medium := newTestStore(t)

	items, err := s.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, medium.Keys())
}

func TestGenerationFallback(t *testing.T) {
	s, medium := newTestStore(t)

	v1 := `[
		{"id":"1","name":"one","description":"","request":{"url":"https://a","method":"GET","headers":{},"body":"","timeoutMs":1000},"createdAtIso":"2023-01-01T00:00:00.000Z","updatedAtIso":"2023-01-01T00:00:00.000Z"},
		{"id":"2","name":"two","description":"d","request":{"url":"https://b","method":"POST","headers":{"X":"1"},"body":"{}","timeoutMs":2000},"createdAtIso":"2023-01-02T00:00:00.000Z","updatedAtIso":"2023-01-02T00:00:00.000Z"}
	]`
	require.NoError(t, medium.Set(keyV1, v1))

	items, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Nil(t, item.LastResponse)
	}

	_, ok, _ := medium.Get(keyV2)
	assert.False(t, ok, "reading must not create the newest generation")

	// The next write persists the collection under the newest generation
	// and leaves the old key alone
	_, err = s.UpdateLastResponse("1", model.NewErrorResponse("boom", 3))
	require.NoError(t, err)

	_, ok, _ = medium.Get(keyV2)
	assert.True(t, ok)
	old, _, _ := medium.Get(keyV1)
	assert.Equal(t, v1, old)

	items, err = s.ReadAll()
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].LastResponse)
	assert.Equal(t, "boom", items[0].LastResponse.Error)
}

func TestNewestGenerationWins(t *testing.T) {
	s, medium := newTestStore(t)

	require.NoError(t, medium.Set(keyV1, `[{"id":"old","name":"old","request":{"url":"https://a","method":"GET"}}]`))
	require.NoError(t, medium.Set(keyV2, `[{"id":"new","name":"new","request":{"url":"https://a","method":"GET"}}]`))

	items, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].ID)
}

func TestEmptyNewestGenerationFallsBack(t *testing.T) {
	s, medium := newTestStore(t)

	require.NoError(t, medium.Set(keyV1, `[{"id":"old","name":"old","request":{"url":"https://a","method":"GET"}}]`))
	require.NoError(t, medium.Set(keyV2, ""))

	items, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "old", items[0].ID)
}

func TestUnparseableCollectionReadsEmpty(t *testing.T) {
	s, medium := newTestStore(t)

	require.NoError(t, medium.Set(keyV1, `[{"id":"old","name":"old","request":{"url":"https://a","method":"GET"}}]`))
	require.NoError(t, medium.Set(keyV2, `{not json`))

	items, err := s.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestThirdGenerationChain(t *testing.T) {
	medium := storage.NewMemoryMedium()
	gens := append(append([]storage.Generation{}, storage.Generations...), storage.Generation{
		Version: 3,
		Upgrade: func(raw []any) []any {
			for _, r := range raw {
				if obj, ok := r.(map[string]any); ok {
					obj["description"] = "upgraded"
				}
			}
			return raw
		},
	})
	s := storage.NewStore(medium, storage.WithGenerations(gens))

	require.NoError(t, medium.Set(keyV1, `[{"id":"1","name":"one","request":{"url":"https://a","method":"GET"}}]`))

	items, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "upgraded", items[0].Description)

	require.NoError(t, s.WriteAll(items))
	_, ok, _ := medium.Get("analyze-request:savedRequests:v3")
	assert.True(t, ok)
}

func TestListSortsByUpdatedDescending(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.WriteAll([]model.SavedRequest{
		{ID: "early", Name: "early", Request: sampleRequest(), CreatedAtISO: "2024-01-01T00:00:00.000Z", UpdatedAtISO: "2024-01-01T00:00:00.000Z"},
		{ID: "late", Name: "late", Request: sampleRequest(), CreatedAtISO: "2024-01-01T00:00:00.000Z", UpdatedAtISO: "2024-06-01T00:00:00.000Z"},
	}))

	items, err := s.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "late", items[0].ID)
	assert.Equal(t, "early", items[1].ID)
}

func TestCreate(t *testing.T) {
	s, _ := newTestStore(t)

	first, err := s.Create(model.SaveArgs{Name: "first", Request: sampleRequest()})
	require.NoError(t, err)
	assert.Equal(t, "id-1", first.ID)
	assert.Equal(t, first.CreatedAtISO, first.UpdatedAtISO)
	assert.Nil(t, first.LastResponse)

	res := sampleResponse()
	second, err := s.Create(model.SaveArgs{Name: "second", Description: "d", Request: sampleRequest(), LastResponse: &res})
	require.NoError(t, err)
	require.NotNil(t, second.LastResponse)
	assert.Equal(t, second.CreatedAtISO, second.LastResponse.SavedAtISO)
	assert.Empty(t, res.SavedAtISO, "caller's response must stay live")

	all, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "id-2", all[0].ID, "new items are prepended")
}

func TestGetByID(t *testing.T) {
	s, _ := newTestStore(t)

	created, err := s.Create(model.SaveArgs{Name: "x", Request: sampleRequest()})
	require.NoError(t, err)

	got, err := s.GetByID(created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *created, *got)

	missing, err := s.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdate(t *testing.T) {
	s, medium := newTestStore(t)

	res := sampleResponse()
	created, err := s.Create(model.SaveArgs{Name: "x", Request: sampleRequest(), LastResponse: &res})
	require.NoError(t, err)

	req := sampleRequest()
	req.Method = "POST"
	updated, err := s.Update(created.ID, model.SaveArgs{Name: "y", Description: "new", Request: req})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAtISO, updated.CreatedAtISO)
	assert.Greater(t, updated.UpdatedAtISO, created.UpdatedAtISO)
	assert.Equal(t, "y", updated.Name)
	assert.Equal(t, "new", updated.Description)
	assert.Equal(t, "POST", updated.Request.Method)
	assert.Nil(t, updated.LastResponse, "update replaces the response too")

	t.Run("unknown_id_does_not_write", func(t *testing.T) {
		before, _, _ := medium.Get(keyV2)
		missing, err := s.Update("nope", model.SaveArgs{Name: "z", Request: sampleRequest()})
		require.NoError(t, err)
		assert.Nil(t, missing)
		after, _, _ := medium.Get(keyV2)
		assert.Equal(t, before, after)
	})
}

func TestUpdateLastResponse(t *testing.T) {
	s, _ := newTestStore(t)

	created, err := s.Create(model.SaveArgs{Name: "x", Description: "d", Request: sampleRequest()})
	require.NoError(t, err)

	updated, err := s.UpdateLastResponse(created.ID, sampleResponse())
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.NotNil(t, updated.LastResponse)

	assert.Equal(t, updated.UpdatedAtISO, updated.LastResponse.SavedAtISO)
	assert.Equal(t, sampleResponse(), updated.LastResponse.Live())
	assert.Equal(t, created.Name, updated.Name)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.Request, updated.Request)
	assert.Equal(t, created.CreatedAtISO, updated.CreatedAtISO)

	missing, err := s.UpdateLastResponse("nope", sampleResponse())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, medium := newTestStore(t)

	created, err := s.Create(model.SaveArgs{Name: "x", Request: sampleRequest()})
	require.NoError(t, err)
	_, err = s.Create(model.SaveArgs{Name: "y", Request: sampleRequest()})
	require.NoError(t, err)

	before, _, _ := medium.Get(keyV2)
	require.NoError(t, s.Delete("nope"))
	after, _, _ := medium.Get(keyV2)
	assert.Equal(t, before, after)

	require.NoError(t, s.Delete(created.ID))
	require.NoError(t, s.Delete(created.ID))

	items, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "y", items[0].Name)
}

type failingMedium struct{ err error }

func (m failingMedium) Get(string) (string, bool, error) { return "", false, m.err }
func (m failingMedium) Set(string, string) error         { return m.err }

func TestMediumErrorsPropagate(t *testing.T) {
	boom := errors.New("disk on fire")
	s := storage.NewStore(failingMedium{err: boom})

	_, err := s.ReadAll()
	assert.ErrorIs(t, err, boom)

	_, err = s.Create(model.SaveArgs{Name: "x", Request: sampleRequest()})
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, s.Delete("x"), boom)
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := storage.NewID()
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestConcurrentCreatesAreSerialized(t *testing.T) {
	s := storage.NewStore(storage.NewMemoryMedium())

	const writers = 32
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(model.SaveArgs{Name: fmt.Sprintf("req-%d", i), Request: sampleRequest()})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, items, writers)

	ids := make(map[string]struct{}, writers)
	names := make(map[string]struct{}, writers)
	for _, item := range items {
		ids[item.ID] = struct{}{}
		names[item.Name] = struct{}{}
	}
	assert.Len(t, ids, writers)
	assert.Len(t, names, writers)
}
