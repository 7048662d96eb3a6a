package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lpr-dashboard/internal/domain/lpr"
)

const maxFrameBytes = 20 << 20

var ErrNotFound = errors.New("backend: resource not found")

// StatusError is returned for any non-2xx answer from the backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Detail     string
}

func (e *StatusError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("backend %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Message is the text shown to the operator.
func (e *StatusError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if body := strings.TrimSpace(e.Body); body != "" && len(body) < 300 {
		return body
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the recognition backend. It performs no retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// uploadClient has no overall timeout. Uploads are bounded only by the
	// caller's context.
	uploadClient *http.Client
}

// NewClient applies timeout to every call except UploadFile.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		uploadClient: &http.Client{},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func cameraPath(id int, suffix string) string {
	return fmt.Sprintf("/api/v1/cameras/%d/%s", id, suffix)
}

func (c *Client) ListCameras(ctx context.Context) ([]lpr.Camera, error) {
	var cameras []lpr.Camera
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/cameras/", nil, nil, &cameras); err != nil {
		return nil, err
	}
	if cameras == nil {
		cameras = []lpr.Camera{}
	}
	return cameras, nil
}

func (c *Client) GetCamera(ctx context.Context, id int) (*lpr.Camera, error) {
	var camera lpr.Camera
	if err := c.doJSON(ctx, http.MethodGet, cameraPath(id, ""), nil, nil, &camera); err != nil {
		return nil, err
	}
	return &camera, nil
}

func (c *Client) CreateCamera(ctx context.Context, input lpr.CameraPatch) (*lpr.Camera, error) {
	var camera lpr.Camera
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/cameras/", nil, input, &camera); err != nil {
		return nil, err
	}
	return &camera, nil
}

func (c *Client) UpdateCamera(ctx context.Context, id int, patch lpr.CameraPatch) (*lpr.Camera, error) {
	var camera lpr.Camera
	if err := c.doJSON(ctx, http.MethodPut, cameraPath(id, ""), nil, patch, &camera); err != nil {
		return nil, err
	}
	return &camera, nil
}

func (c *Client) DeleteCamera(ctx context.Context, id int) error {
	return c.doJSON(ctx, http.MethodDelete, cameraPath(id, ""), nil, nil, nil)
}

func (c *Client) DecodeStatus(ctx context.Context, id int) (lpr.DecodeStatus, error) {
	var status lpr.DecodeStatus
	err := c.doJSON(ctx, http.MethodGet, cameraPath(id, "decode-status/"), nil, nil, &status)
	return status, err
}

// LatestFrame downloads the most recent decoded frame of a camera.
func (c *Client) LatestFrame(ctx context.Context, id int) (lpr.Frame, error) {
	now := time.Now()
	query := url.Values{"_ts": {strconv.FormatInt(now.UnixMilli(), 10)}}
	path := cameraPath(id, "latest-frame/")

	resp, err := c.send(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return lpr.Frame{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes+1))
	if err != nil {
		return lpr.Frame{}, fmt.Errorf("read frame for camera %d: %w", id, err)
	}
	if len(data) > maxFrameBytes {
		return lpr.Frame{}, fmt.Errorf("frame for camera %d exceeds %dMB", id, maxFrameBytes>>20)
	}
	if len(data) == 0 {
		return lpr.Frame{}, fmt.Errorf("camera %d returned an empty frame", id)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return lpr.Frame{Data: data, ContentType: contentType, FetchedAt: now}, nil
}

type DetectionQuery struct {
	Skip       int
	Limit      int
	SourceType lpr.SourceType
}

// ListDetections returns one page as cut by the backend. total is nil when
// the backend answers with a bare array.
func (c *Client) ListDetections(ctx context.Context, q DetectionQuery) (items []lpr.Detection, total *int, err error) {
	query := url.Values{
		"skip":  {strconv.Itoa(q.Skip)},
		"limit": {strconv.Itoa(q.Limit)},
	}
	if q.SourceType != "" {
		query.Set("source_type", string(q.SourceType))
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/license-plates", query, nil, &raw); err != nil {
		return nil, nil, err
	}

	return decodeDetectionList(raw)
}

func decodeDetectionList(raw json.RawMessage) ([]lpr.Detection, *int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []lpr.Detection{}, nil, nil
	}

	if trimmed[0] == '[' {
		var items []lpr.Detection
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, nil, fmt.Errorf("decode detections: %w", err)
		}
		return items, nil, nil
	}

	var envelope struct {
		Items []lpr.Detection `json:"items"`
		Total *int            `json:"total"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, nil, fmt.Errorf("decode detections: %w", err)
	}
	if envelope.Items == nil {
		envelope.Items = []lpr.Detection{}
	}
	return envelope.Items, envelope.Total, nil
}

func (c *Client) RepeatedPlates(ctx context.Context, hours int) ([]lpr.RepeatedPlateGroup, error) {
	var groups []lpr.RepeatedPlateGroup
	path := fmt.Sprintf("/api/v1/license-plates/repeated/%d", hours)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &groups); err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []lpr.RepeatedPlateGroup{}
	}
	return groups, nil
}

type UploadRequest struct {
	Filename        string
	ContentType     string
	Body            io.Reader
	StartTimeOffset string
	Location        string
}

// UploadFile streams the video to the backend as multipart form data with
// the parts file, start_time_offset and location.
func (c *Client) UploadFile(ctx context.Context, req UploadRequest) (json.RawMessage, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(writeUploadForm(writer, req))
	}()
	// The caller may reuse req.Body once the writer has let go of it.
	defer func() {
		pr.Close()
		<-done
	}()

	resp, err := c.sendWith(ctx, c.uploadClient, http.MethodPost, "/api/v1/license-plates/upload-file", nil, pr, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	return json.RawMessage(body), nil
}

func writeUploadForm(writer *multipart.Writer, req UploadRequest) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(req.Filename)))
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, req.Body); err != nil {
		return fmt.Errorf("copy upload body: %w", err)
	}
	if err := writer.WriteField("start_time_offset", req.StartTimeOffset); err != nil {
		return err
	}
	if err := writer.WriteField("location", req.Location); err != nil {
		return err
	}
	return writer.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// Ping checks that the backend answers the camera listing.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/api/v1/cameras/", nil, nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// send performs the request and converts non-2xx answers into *StatusError.
// On success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	return c.sendWith(ctx, c.httpClient, method, path, query, body, contentType)
}

func (c *Client) sendWith(ctx context.Context, hc *http.Client, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			Detail:     extractDetail(raw),
		}
	}

	return resp, nil
}

// extractDetail pulls a human readable message out of an error body shaped
// like {"detail": "..."} or {"error": "..."}.
func extractDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		return string(body.Detail)
	}
	return body.Error
}
