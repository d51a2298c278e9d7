// Package analyzer talks to the vitals analysis service. The station uploads
// a captured clip and gets back the measured vitals; every failure mode of
// that exchange is reported as an *AnalysisError so callers can surface one
// consistent error kind.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Response is the analyzer's result payload. Decoding is permissive: fields
// the service omits stay at their zero value rather than failing the scan.
type Response struct {
	Success         bool          `json:"success"`
	HeartRate       float64       `json:"heart_rate"`
	HRV             float64       `json:"hrv"`
	BloodPressure   BloodPressure `json:"blood_pressure"`
	StressIndex     float64       `json:"stress_index"`
	Quality         string        `json:"quality"`
	Confidence      float64       `json:"confidence"`
	DurationSeconds float64       `json:"duration_seconds"`
	FramesProcessed int           `json:"frames_processed"`
	FaceFrames      int           `json:"face_frames"`
	Error           string        `json:"error"`

	QualityScore       float64 `json:"quality_score"`
	DetectionRate      float64 `json:"detection_rate"`
	ActualFaceDuration float64 `json:"actual_face_duration"`
	RequiredDuration   float64 `json:"required_duration"`
}

type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// AnalysisError reports a failed analysis exchange. StatusCode is zero when
// the request never reached the service.
type AnalysisError struct {
	StatusCode int
	Reason     string
}

func (e *AnalysisError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis failed (status %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("analysis failed: %s", e.Reason)
}

// Client uploads clips to the analyzer over HTTP.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	proxyOrigin string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EnableProxy routes requests through a CORS-relay origin. The relay expects
// the target URL appended to its own and an X-Requested-With header.
func (c *Client) EnableProxy(origin string) {
	c.proxyOrigin = origin
}

func (c *Client) endpoint(path string) string {
	url := c.baseURL + path
	if c.proxyOrigin != "" {
		return c.proxyOrigin + url
	}
	return url
}

// Analyze uploads one captured clip and decodes the measured vitals.
func (c *Client) Analyze(ctx context.Context, clip []byte, filename string) (*Response, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build upload form")
	}
	if _, err := part.Write(clip); err != nil {
		return nil, errors.Wrap(err, "failed to write clip payload")
	}
	if err := form.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/analyze"), &body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create analyze request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.proxyOrigin != "" {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AnalysisError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AnalysisError{StatusCode: resp.StatusCode, Reason: "failed to read analyzer response"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AnalysisError{StatusCode: resp.StatusCode, Reason: errorReason(raw, resp.Status)}
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &AnalysisError{StatusCode: resp.StatusCode, Reason: "invalid analyzer response: " + err.Error()}
	}
	return &out, nil
}

// errorReason pulls a human-readable message out of an analyzer error body,
// falling back to the HTTP status line.
func errorReason(raw []byte, fallback string) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fallback
}
