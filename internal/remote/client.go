// Package remote is the HTTP client for the authoritative clinic service.
// Every call resolves to the success / application error / transport error
// trichotomy the scheduling service and sync worker decide on.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-sync/internal/schedule"
	"github.com/carebridge/clinic-sync/internal/vitals"
)

const maxBodyBytes = 8 << 20

// TokenSource supplies the bearer credential attached to every request. It
// is the injection point for the device credential store; a source that fails
// aborts the call before any I/O happens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource is a TokenSource over a fixed credential.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("auth token is empty")
	}
	return string(s), nil
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, e.g. to install a
// pinned-TLS transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds each request; an expired deadline surfaces as a
// TransportError.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchDay retrieves the appointments for one UTC day, optionally filtered by
// clinic and location.
func (c *Client) FetchDay(ctx context.Context, day time.Time, clinic, location string) ([]schedule.Appointment, error) {
	q := url.Values{}
	q.Set("date", day.UTC().Format("2006-01-02"))
	if clinic != "" {
		q.Set("clinic", clinic)
	}
	if location != "" {
		q.Set("location", location)
	}

	var dtos []AppointmentDTO
	if err := c.do(ctx, http.MethodGet, "/appointments", q, nil, &dtos); err != nil {
		return nil, err
	}

	appts := make([]schedule.Appointment, 0, len(dtos))
	for _, dto := range dtos {
		appt, err := dto.ToDomain()
		if err != nil {
			return nil, &TransportError{Cause: fmt.Errorf("malformed appointment in response: %w", err)}
		}
		appts = append(appts, appt)
	}
	return appts, nil
}

// Book creates the appointment remotely and returns it with the
// server-assigned id.
func (c *Client) Book(ctx context.Context, appt schedule.Appointment) (schedule.Appointment, error) {
	var created AppointmentDTO
	if err := c.do(ctx, http.MethodPost, "/appointments", nil, AppointmentToDTO(appt), &created); err != nil {
		return schedule.Appointment{}, err
	}
	out, err := created.ToDomain()
	if err != nil {
		return schedule.Appointment{}, &TransportError{Cause: fmt.Errorf("malformed booking response: %w", err)}
	}
	return out, nil
}

func (c *Client) Reschedule(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) error {
	body := RescheduleDTO{
		StartTime: newStart.UTC().Format(time.RFC3339Nano),
		EndTime:   newEnd.UTC().Format(time.RFC3339Nano),
	}
	return c.do(ctx, http.MethodPut, "/appointments/"+id.String(), nil, body, nil)
}

func (c *Client) Cancel(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/appointments/"+id.String(), nil, nil, nil)
}

// UploadReadings bulk-uploads captured readings. Re-sending a batch is safe:
// the service dedups by reading id.
func (c *Client) UploadReadings(ctx context.Context, readings []vitals.Reading) error {
	dtos := make([]ReadingDTO, len(readings))
	for i, r := range readings {
		dtos[i] = ReadingToDTO(r)
	}
	return c.do(ctx, http.MethodPost, "/vitals/bulk", nil, dtos, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("auth token: %w", err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &TransportError{Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return applicationError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
			return &TransportError{Cause: fmt.Errorf("decode response: %w", err)}
		}
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	}
	return nil
}

// applicationError maps a non-2xx response. The response did arrive, so this
// is a decided outcome even when the error body is unreadable.
func applicationError(resp *http.Response) error {
	appErr := &ApplicationError{Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		appErr.Message = resp.Status
		return appErr
	}

	var env ErrorEnvelope
	if jsonErr := json.Unmarshal(data, &env); jsonErr == nil && env.Error != "" {
		appErr.Code = env.Error
		appErr.Message = env.Details
	} else {
		appErr.Message = strings.TrimSpace(string(data))
	}
	return appErr
}
