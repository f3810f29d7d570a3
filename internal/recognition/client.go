// Package recognition talks to the remote face recognition service.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/eventlens/internal/apperr"
	"github.com/your-org/eventlens/internal/config"
)

const defaultTimeout = 60 * time.Second

// ErrNoFace is returned by Encode when the image contains no face.
var ErrNoFace = errors.New("no face detected")

// RecognitionError is a transport or protocol failure of the recognition
// service. Zero detected faces is not an error.
type RecognitionError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *RecognitionError) Error() string {
	msg := "recognition: " + e.Reason
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RecognitionError) Unwrap() error { return e.Err }

func (e *RecognitionError) ErrorKind() apperr.Kind { return apperr.KindUpstream }

// DetectedFace is one face found in an image. UserID is nil when the face
// did not match any enrolled attendee.
type DetectedFace struct {
	UserID   *uuid.UUID
	Email    string
	Encoding []float32
	Distance *float64
}

type faceResult struct {
	UserID   *string   `json:"user_id"`
	Email    *string   `json:"email"`
	Encoding []float32 `json:"encoding"`
	Distance *float64  `json:"distance"`
}

type recognizeResponse struct {
	Results *[]faceResult `json:"results"`
}

// Client is stateless and safe for concurrent use.
type Client struct {
	url     string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

func NewClient(cfg config.RecognitionConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// Recognize sends image to the service and returns every detected face.
func (c *Client) Recognize(ctx context.Context, image []byte) ([]DetectedFace, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.postImage(ctx, image)
	if err != nil {
		return nil, err
	}

	var resp recognizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &RecognitionError{Reason: "decode response", Err: err}
	}
	if resp.Results == nil {
		return nil, &RecognitionError{Reason: "response has no results array"}
	}

	faces := make([]DetectedFace, 0, len(*resp.Results))
	for _, r := range *resp.Results {
		f := DetectedFace{Encoding: r.Encoding, Distance: r.Distance}
		if r.UserID != nil && *r.UserID != "" {
			id, err := uuid.Parse(*r.UserID)
			if err != nil {
				slog.Warn("recognition returned non-uuid user_id", "user_id", *r.UserID)
			} else {
				f.UserID = &id
			}
		}
		if r.Email != nil {
			f.Email = *r.Email
		}
		faces = append(faces, f)
	}
	return faces, nil
}

// Encode returns the encoding of the first face in image.
func (c *Client) Encode(ctx context.Context, image []byte) ([]float32, error) {
	faces, err := c.Recognize(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 || len(faces[0].Encoding) == 0 {
		return nil, ErrNoFace
	}
	return faces[0].Encoding, nil
}

func (c *Client) postImage(ctx context.Context, image []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", "photo.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return nil, &RecognitionError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RecognitionError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RecognitionError{StatusCode: resp.StatusCode, Reason: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RecognitionError{StatusCode: resp.StatusCode, Reason: "unexpected status", Err: errors.New(truncate(string(body), 256))}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
