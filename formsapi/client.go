// Package formsapi is a client for a remote Forms API and its catalog
// endpoints. It serves the same contracts as the local store so the service
// can run as a front for another deployment.
package formsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mbolis/mediflow/form"
	"github.com/mbolis/mediflow/model"
	"github.com/mbolis/mediflow/submission"
)

// APIError is a non-2xx answer of the remote API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("forms api: %d %s", e.Status, e.Message)
}

// Is makes a 404 match model.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return e.Status == http.StatusNotFound && target == model.ErrNotFound
}

type Client struct {
	base  string
	token string
	http  *http.Client
}

// New returns a client for the API rooted at baseURL. A nil hc gets a
// client without timeout: requests end when their context does. Nothing is
// retried.
func New(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("forms api: decode %s %s: %w", method, path, err)
	}
	return nil
}

// Form fetches GET /forms/:id.
func (c *Client) Form(ctx context.Context, id string) (model.FormRecord, error) {
	var f model.FormRecord
	err := c.do(ctx, http.MethodGet, "/forms/"+url.PathEscape(id), nil, &f)
	return f, err
}

type submissionRequest struct {
	Data     form.AnswerSet `json:"data"`
	ClinicID string         `json:"clinicId,omitempty"`
	UserID   string         `json:"userId,omitempty"`
}

type submissionResponse struct {
	ID         string `json:"id"`
	Submission *struct {
		ID string `json:"id"`
	} `json:"submission"`
	Appointment *submission.Appointment `json:"appointment"`
	MeetingLink string                  `json:"meetingLink"`
}

// CreateSubmission posts the answers to POST /forms/:id/submissions. The
// remote API owns appointment creation.
func (c *Client) CreateSubmission(ctx context.Context, p submission.Payload) (submission.Receipt, error) {
	var resp submissionResponse
	err := c.do(ctx, http.MethodPost, "/forms/"+url.PathEscape(p.FormID)+"/submissions", submissionRequest{
		Data:     p.Data,
		ClinicID: p.ClinicID,
		UserID:   p.UserID,
	}, &resp)
	if err != nil {
		return submission.Receipt{}, err
	}

	id := resp.ID
	if id == "" && resp.Submission != nil {
		id = resp.Submission.ID
	}
	return submission.Receipt{
		SubmissionID: id,
		Appointment:  resp.Appointment,
		MeetingLink:  resp.MeetingLink,
	}, nil
}

// ListSubmissions fetches GET /forms/:id/submissions.
func (c *Client) ListSubmissions(ctx context.Context, formID string) ([]model.Submission, error) {
	var list []model.Submission
	if err := c.do(ctx, http.MethodGet, "/forms/"+url.PathEscape(formID)+"/submissions", nil, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Submission{}
	}
	return list, nil
}

type service struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type user struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (u user) entry() form.Entry {
	name := u.Name
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return form.Entry{ID: u.ID, Label: name}
}

func (c *Client) Services(ctx context.Context, clinicID string) ([]form.Entry, error) {
	var list []service
	q := url.Values{}
	if clinicID != "" {
		q.Set("clinicId", clinicID)
	}
	if err := c.do(ctx, http.MethodGet, "/services?"+q.Encode(), nil, &list); err != nil {
		return nil, err
	}
	entries := make([]form.Entry, len(list))
	for i, s := range list {
		entries[i] = form.Entry{ID: s.ID, Label: s.Name}
	}
	return entries, nil
}

func (c *Client) Practitioners(ctx context.Context, clinicID string, role string) ([]form.Entry, error) {
	var list []user
	q := url.Values{}
	if clinicID != "" {
		q.Set("clinicId", clinicID)
	}
	if role != "" {
		q.Set("role", role)
	}
	if err := c.do(ctx, http.MethodGet, "/users?"+q.Encode(), nil, &list); err != nil {
		return nil, err
	}
	entries := make([]form.Entry, len(list))
	for i, u := range list {
		entries[i] = u.entry()
	}
	return entries, nil
}

// Service fetches GET /services/:id.
func (c *Client) Service(ctx context.Context, id string) (form.Entry, error) {
	var s service
	err := c.do(ctx, http.MethodGet, "/services/"+url.PathEscape(id), nil, &s)
	return form.Entry{ID: s.ID, Label: s.Name}, err
}

// Practitioner fetches GET /users/:id.
func (c *Client) Practitioner(ctx context.Context, id string) (form.Entry, error) {
	var u user
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &u)
	return u.entry(), err
}
