package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
	"video-chapters/dto"
	"video-chapters/toc"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrRejected = errors.New("rejected by backend")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("backend %d: %s (%s)", e.StatusCode, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("backend %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return ErrConflict
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return ErrRejected
	}
	return nil
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the chapters HTTP API.
type Client struct {
	base string
	http *http.Client
}

var _ Gateway = (*Client)(nil)

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		base: strings.TrimSuffix(opts.BaseURL, "/"),
		http: hc,
	}
}

func (c *Client) newRequest(ctx context.Context, method, p string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+p, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// send performs req and returns the raw body of a 2xx response.
func (c *Client) send(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", req.Method, req.URL.Path, err)
	}
	zerolog.Ctx(req.Context()).Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var env dto.Envelope[json.RawMessage]
		if json.Unmarshal(raw, &env) == nil && env.Message != "" {
			apiErr.Message = env.Message
			apiErr.Details = env.Errors
		}
		return nil, apiErr
	}
	return raw, nil
}

func call[T any](ctx context.Context, c *Client, method, p string, body any) (T, error) {
	var zero T
	req, err := c.newRequest(ctx, method, p, body)
	if err != nil {
		return zero, err
	}
	raw, err := c.send(req)
	if err != nil {
		return zero, err
	}
	if len(raw) == 0 {
		return zero, nil
	}
	var env dto.Envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, fmt.Errorf("%s %s: decode response: %w", method, p, err)
	}
	return env.Data, nil
}

func (c *Client) CreateAttachment(ctx context.Context, in CreateAttachmentRequest) (CreateAttachmentResult, error) {
	p := fmt.Sprintf("/topics/%d/attachments", in.TopicID)
	req, err := c.newRequest(ctx, http.MethodPost, p, dto.CreateAttachmentRequest{
		Path:    in.Path,
		Kind:    in.Kind,
		Trigger: in.Trigger,
	})
	if err != nil {
		return CreateAttachmentResult{}, err
	}
	raw, err := c.send(req)
	if err != nil {
		return CreateAttachmentResult{}, err
	}

	res := CreateAttachmentResult{Raw: json.RawMessage(raw)}
	var env dto.Envelope[dto.IDResponse]
	if json.Unmarshal(raw, &env) == nil && env.Data.ID > 0 {
		res.ID = env.Data.ID
	}
	return res, nil
}

func (c *Client) ListAttachments(ctx context.Context, topicID int64) ([]dto.Attachment, error) {
	return call[[]dto.Attachment](ctx, c, http.MethodGet, fmt.Sprintf("/topics/%d/attachments", topicID), nil)
}

func (c *Client) GetAttachment(ctx context.Context, id int64) (dto.Attachment, error) {
	return call[dto.Attachment](ctx, c, http.MethodGet, fmt.Sprintf("/attachments/%d", id), nil)
}

func (c *Client) ListEntries(ctx context.Context, attachmentID int64) ([]toc.Entry, error) {
	list, err := call[[]dto.Entry](ctx, c, http.MethodGet, fmt.Sprintf("/attachments/%d/entries", attachmentID), nil)
	if err != nil {
		return nil, err
	}
	out := make([]toc.Entry, 0, len(list))
	for _, e := range list {
		out = append(out, e.Toc())
	}
	return out, nil
}

func (c *Client) CreateEntry(ctx context.Context, entry toc.Entry) (int64, error) {
	body := dto.EntryFromToc(entry)
	body.ID = 0
	res, err := call[dto.IDResponse](ctx, c, http.MethodPost, fmt.Sprintf("/attachments/%d/entries", entry.AttachmentID), body)
	if err != nil {
		return 0, err
	}
	if res.ID <= 0 {
		return 0, fmt.Errorf("create chapter %q: response carried no id", entry.Name)
	}
	return res.ID, nil
}

func (c *Client) UpdateEntry(ctx context.Context, id int64, patch dto.EntryPatch) error {
	_, err := call[dto.Entry](ctx, c, http.MethodPatch, fmt.Sprintf("/entries/%d", id), patch)
	return err
}

func (c *Client) DeleteEntry(ctx context.Context, id int64) error {
	_, err := call[json.RawMessage](ctx, c, http.MethodDelete, fmt.Sprintf("/entries/%d", id), nil)
	return err
}

func (c *Client) ReorderEntries(ctx context.Context, attachmentID int64, orderedIDs []int64) error {
	_, err := call[[]dto.Entry](ctx, c, http.MethodPut, fmt.Sprintf("/attachments/%d/entries/order", attachmentID), dto.ReorderRequest{OrderedIDs: orderedIDs})
	return err
}

func (c *Client) GetQuizCompletion(ctx context.Context, quizID int64, viewerID uuid.UUID) (dto.QuizCompletion, error) {
	q := url.Values{"viewer_id": []string{viewerID.String()}}
	return call[dto.QuizCompletion](ctx, c, http.MethodGet, fmt.Sprintf("/quizzes/%d/completion?%s", quizID, q.Encode()), nil)
}

// Put uploads a blob to objectPath through the backend.
func (c *Client) Put(ctx context.Context, objectPath string, body io.Reader, size int64, contentType string) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUpload(mw, objectPath, body, contentType)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/uploads", pr)
	if err != nil {
		pr.CloseWithError(err)
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	zerolog.Ctx(ctx).Debug().Str("object", objectPath).Int64("size", size).Msg("uploading video")
	_, err = c.send(req)
	if err != nil {
		pr.CloseWithError(err)
	}
	return err
}

func writeUpload(mw *multipart.Writer, objectPath string, body io.Reader, contentType string) error {
	if err := mw.WriteField("path", objectPath); err != nil {
		return err
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%s`, strconv.Quote(path.Base(objectPath)))}
	if contentType != "" {
		header["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, body)
	return err
}
