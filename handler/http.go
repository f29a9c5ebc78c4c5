package handler

import (
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"net/http"
	"strconv"
	"video-chapters/dto"
	"video-chapters/service"
	"video-chapters/storage"
	"video-chapters/toc"
)

const maxUploadBytes = 2 << 30

type HTTPDependencies struct {
	Chapters service.ChapterService
	Quizzes  service.QuizService
	Blobs    storage.BlobStore
}

type API struct {
	deps HTTPDependencies
}

func NewAPI(deps HTTPDependencies) *API {
	return &API{deps: deps}
}

func (a *API) Register(r gin.IRouter) {
	r.POST("/uploads", a.upload)

	r.POST("/topics/:topicId/attachments", a.createAttachment)
	r.GET("/topics/:topicId/attachments", a.listAttachments)
	r.GET("/attachments/:id", a.getAttachment)

	r.GET("/attachments/:id/entries", a.listEntries)
	r.POST("/attachments/:id/entries", a.createEntry)
	r.PUT("/attachments/:id/entries/order", a.reorderEntries)
	r.PATCH("/entries/:id", a.updateEntry)
	r.DELETE("/entries/:id", a.deleteEntry)

	r.GET("/quizzes/:id/completion", a.quizCompletion)
}

func respond[T any](c *gin.Context, status int, data T) {
	c.JSON(status, dto.Envelope[T]{Status: dto.StatusSuccess, Data: data})
}

func respondError(c *gin.Context, status int, message string, details ...string) {
	c.AbortWithStatusJSON(status, dto.Envelope[any]{Status: dto.StatusError, Message: message, Errors: details})
}

// fail maps service and validation errors onto HTTP statuses.
func fail(c *gin.Context, err error) {
	var verr *toc.ValidationError
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &fieldErrs):
		respondError(c, http.StatusBadRequest, "validation failed", formatValidationErrors(fieldErrs)...)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrQuizNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrStaleOrder), errors.Is(err, toc.ErrOverlap):
		respondError(c, http.StatusConflict, err.Error())
	case errors.As(err, &verr), errors.Is(err, service.ErrInvalidTrigger), errors.Is(err, service.ErrInvalidPath), errors.Is(err, storage.ErrInvalidPath):
		respondError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		element := fmt.Sprintf("Field '%s' failed on the '%s' tag", err.Field(), err.Tag())
		if err.Param() != "" {
			element = fmt.Sprintf("%s (value: %s)", element, err.Param())
		}
		out = append(out, element)
	}
	return out
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fail(c, err)
			return false
		}
		respondError(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (a *API) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	objectPath := c.PostForm("path")
	if err := storage.ValidatePath(objectPath); err != nil {
		fail(c, err)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "missing file")
		return
	}
	file, err := header.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentType(header.Filename)
	}
	if err := a.deps.Blobs.Put(c.Request.Context(), objectPath, file, header.Size, contentType); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, dto.UploadResponse{Path: objectPath})
}

func (a *API) createAttachment(c *gin.Context) {
	topicId, ok := idParam(c, "topicId")
	if !ok {
		return
	}
	var req dto.CreateAttachmentRequest
	if !bind(c, &req) {
		return
	}
	attachment, err := a.deps.Chapters.CreateAttachment(c.Request.Context(), topicId, req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, dto.IDResponse{ID: attachment.ID})
}

func (a *API) listAttachments(c *gin.Context) {
	topicId, ok := idParam(c, "topicId")
	if !ok {
		return
	}
	list, err := a.deps.Chapters.ListAttachments(c.Request.Context(), topicId)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (a *API) getAttachment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	attachment, err := a.deps.Chapters.GetAttachment(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, attachment)
}

func (a *API) listEntries(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	entries, err := a.deps.Chapters.ListEntries(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, entries)
}

func (a *API) createEntry(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.Entry
	if !bind(c, &req) {
		return
	}
	if req.AttachmentID != 0 && req.AttachmentID != id {
		respondError(c, http.StatusBadRequest, "attachment_id does not match the path")
		return
	}
	entryId, err := a.deps.Chapters.CreateEntry(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, dto.IDResponse{ID: entryId})
}

func (a *API) reorderEntries(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.ReorderRequest
	if !bind(c, &req) {
		return
	}
	entries, err := a.deps.Chapters.ReorderEntries(c.Request.Context(), id, req.OrderedIDs)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, entries)
}

func (a *API) updateEntry(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var patch dto.EntryPatch
	if !bind(c, &patch) {
		return
	}
	entry, err := a.deps.Chapters.UpdateEntry(c.Request.Context(), id, patch)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, entry)
}

func (a *API) deleteEntry(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := a.deps.Chapters.DeleteEntry(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) quizCompletion(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	viewerId, err := uuid.Parse(c.Query("viewer_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid viewer_id")
		return
	}
	res, err := a.deps.Quizzes.Completion(c.Request.Context(), id, viewerId)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}
