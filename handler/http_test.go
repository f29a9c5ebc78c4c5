package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"video-chapters/dto"
	"video-chapters/handler"
	"video-chapters/repository/testutil"
	"video-chapters/service"
)

type memBlobs struct {
	objects map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, path string, body io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[path] = b
	return nil
}

type fixture struct {
	router  *gin.Engine
	blobs   *memBlobs
	quizID  int64
	viewer  uuid.UUID
	attachA int64
}

func setupRouter(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := testutil.Repo(t)
	quiz := testutil.SeedQuiz(t, r, "Checkpoint", nil)
	viewer := uuid.New()
	testutil.SeedScore(t, r, quiz.ID, viewer, 9, 10)
	a := testutil.SeedAttachment(t, r, 3, "topics/3/seed.mp4")

	blobs := &memBlobs{objects: map[string][]byte{}}
	api := handler.NewAPI(handler.HTTPDependencies{
		Chapters: service.NewChapterService(r, nil, nil),
		Quizzes:  service.NewQuizService(r),
		Blobs:    blobs,
	})
	router := gin.New()
	api.Register(router)
	return &fixture{router: router, blobs: blobs, quizID: quiz.ID, viewer: viewer, attachA: a.ID}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) dto.Envelope[T] {
	t.Helper()
	var env dto.Envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestCreateAttachment_ReturnsEnvelopeID(t *testing.T) {
	f := setupRouter(t)
	w := f.do(t, http.MethodPost, "/topics/3/attachments", map[string]any{
		"path":    "topics/3/lecture.mp4",
		"kind":    "interactive",
		"trigger": map[string]any{"quiz_id": f.quizID, "timestamp": 45},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode[dto.IDResponse](t, w)
	assert.Equal(t, dto.StatusSuccess, env.Status)
	assert.Greater(t, env.Data.ID, int64(0))

	w = f.do(t, http.MethodGet, "/attachments/"+strconv.FormatInt(env.Data.ID, 10), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	got := decode[dto.Attachment](t, w)
	require.NotNil(t, got.Data.Trigger)
	assert.Equal(t, 45, got.Data.Trigger.Timestamp)
}

func TestCreateAttachment_ValidatesPayload(t *testing.T) {
	f := setupRouter(t)
	w := f.do(t, http.MethodPost, "/topics/3/attachments", map[string]any{"path": "topics/3/a.mp4", "kind": "odd"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[any](t, w).Errors)

	w = f.do(t, http.MethodPost, "/topics/3/attachments", map[string]any{"path": "topics/3/a.mp4", "kind": "interactive"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "missing trigger")

	w = f.do(t, http.MethodPost, "/topics/x/attachments", map[string]any{"path": "topics/3/a.mp4", "kind": "normal"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "bad topic")
}

func TestEntries_CreateListConflictReorderDelete(t *testing.T) {
	f := setupRouter(t)
	base := "/attachments/" + strconv.FormatInt(f.attachA, 10) + "/entries"

	var ids []int64
	for _, e := range []dto.Entry{
		{ContentName: "Intro", StartTimestamp: 10, EndTimestamp: 40, OrderIndex: 1},
		{ContentName: "Body", StartTimestamp: 40, EndTimestamp: 90},
	} {
		w := f.do(t, http.MethodPost, base, e)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		ids = append(ids, decode[dto.IDResponse](t, w).Data.ID)
	}

	w := f.do(t, http.MethodPost, base, dto.Entry{ContentName: "Clash", StartTimestamp: 30, EndTimestamp: 50})
	assert.Equal(t, http.StatusConflict, w.Code, "overlap")
	w = f.do(t, http.MethodPost, base, dto.Entry{ContentName: "Backwards", StartTimestamp: 95, EndTimestamp: 91})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "bad range")

	w = f.do(t, http.MethodGet, base, nil)
	list := decode[[]dto.Entry](t, w).Data
	require.Len(t, list, 2)
	assert.Equal(t, "Intro", list[0].ContentName)
	assert.Equal(t, 10, list[0].StartTimestamp)
	assert.Equal(t, 40, list[0].EndTimestamp)
	assert.Equal(t, 1, list[0].OrderIndex)

	w = f.do(t, http.MethodPut, base+"/order", dto.ReorderRequest{OrderedIDs: []int64{ids[1], ids[0]}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reordered := decode[[]dto.Entry](t, w).Data
	require.Len(t, reordered, 2)
	assert.Equal(t, ids[1], reordered[0].ID)
	assert.Equal(t, 1, reordered[0].OrderIndex)
	assert.Equal(t, 2, reordered[1].OrderIndex)

	w = f.do(t, http.MethodPut, base+"/order", dto.ReorderRequest{OrderedIDs: []int64{ids[0]}})
	assert.Equal(t, http.StatusConflict, w.Code, "stale order")

	name := "Opening"
	w = f.do(t, http.MethodPatch, "/entries/"+strconv.FormatInt(ids[0], 10), dto.EntryPatch{ContentName: &name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Opening", decode[dto.Entry](t, w).Data.ContentName)

	w = f.do(t, http.MethodDelete, "/entries/"+strconv.FormatInt(ids[1], 10), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, base, nil)
	list = decode[[]dto.Entry](t, w).Data
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].OrderIndex)

	w = f.do(t, http.MethodGet, "/attachments/999/entries", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuizCompletion_Endpoint(t *testing.T) {
	f := setupRouter(t)
	path := "/quizzes/" + strconv.FormatInt(f.quizID, 10) + "/completion?viewer_id="

	w := f.do(t, http.MethodGet, path+f.viewer.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[dto.QuizCompletion](t, w).Data
	assert.True(t, res.Completed)
	require.NotNil(t, res.Score)
	assert.Equal(t, 9, *res.Score)

	w = f.do(t, http.MethodGet, path+uuid.NewString(), nil)
	assert.False(t, decode[dto.QuizCompletion](t, w).Data.Completed, "unknown viewer")

	w = f.do(t, http.MethodGet, path+"nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_StoresBlobAtPath(t *testing.T) {
	f := setupRouter(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("path", "topics/3/clip.mp4"))
	part, err := mw.CreateFormFile("file", "clip.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("video-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "video-bytes", string(f.blobs.objects["topics/3/clip.mp4"]))
}

func TestTocChangedHandler_Invalidates(t *testing.T) {
	c := &countingCache{}
	body, err := json.Marshal(dto.TocChangedMessage{MessageID: uuid.New(), AttachmentID: 12, Action: "created"})
	require.NoError(t, err)
	err = handler.TocChangedHandler(context.Background(), amqp.Delivery{Body: body}, handler.EventDependencies{Entries: c})
	require.NoError(t, err)
	assert.Equal(t, []int64{12}, c.invalidated)

	err = handler.TocChangedHandler(context.Background(), amqp.Delivery{Body: []byte("{")}, handler.EventDependencies{Entries: c})
	assert.Error(t, err, "malformed body")
}

type countingCache struct {
	invalidated []int64
}

func (c *countingCache) Get(context.Context, int64) ([]dto.Entry, bool, error) { return nil, false, nil }
func (c *countingCache) Version(context.Context, int64) (int64, error)         { return 0, nil }
func (c *countingCache) Set(context.Context, int64, int64, []dto.Entry) error  { return nil }
func (c *countingCache) Invalidate(_ context.Context, id int64) error {
	c.invalidated = append(c.invalidated, id)
	return nil
}
