package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/adhera-labs/adhera-backend/pkg/config"
	"github.com/adhera-labs/adhera-backend/pkg/enums"
	pkgerrors "github.com/adhera-labs/adhera-backend/pkg/errors"
)

// Client talks to the subject directory service that owns member status
// rows and contact details. All writes are best-effort from the caller's
// point of view; the client itself just reports errors.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a directory client from configuration.
func NewClient(cfg config.DirectoryConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("directory base url is required")
	}
	return &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type statusPayload struct {
	SubjectID string `json:"subject_id"`
	Status    string `json:"status"`
}

type emailResponse struct {
	Email string `json:"email"`
}

type statusListResponse struct {
	Statuses []string `json:"statuses"`
}

// SetStatusForMembership grants the subject the status a membership tier confers.
func (c *Client) SetStatusForMembership(ctx context.Context, subjectID string, status enums.MemberStatus) error {
	return c.post(ctx, "/internal/status", statusPayload{SubjectID: subjectID, Status: status.String()})
}

// SetStatusConnected marks the subject as connected to an association.
func (c *Client) SetStatusConnected(ctx context.Context, subjectID string) error {
	return c.post(ctx, "/internal/status", statusPayload{SubjectID: subjectID, Status: enums.MemberStatusConnected.String()})
}

// RemoveStatus deletes one status row for the subject.
func (c *Client) RemoveStatus(ctx context.Context, subjectID string, status enums.MemberStatus) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/internal/status/%s/%s", subjectID, status), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Email returns the subject's contact address.
func (c *Client) Email(ctx context.Context, subjectID string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/internal/subjects/%s/email", subjectID), nil)
	if err != nil {
		return "", err
	}
	var out emailResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Email, nil
}

// HasActiveMemberStatus reports whether the subject currently holds any of
// the statuses that grant member pricing. Point-in-time check; nothing is
// stored on the entitlement.
func (c *Client) HasActiveMemberStatus(ctx context.Context, subjectID string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/internal/status/%s", subjectID), nil)
	if err != nil {
		return false, err
	}
	var out statusListResponse
	if err := c.do(req, &out); err != nil {
		return false, err
	}
	for _, raw := range out.Statuses {
		if enums.MemberStatus(raw).IsActiveMember() {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding directory payload: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building directory request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "directory request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "directory resource not found")
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("directory responded %d", resp.StatusCode)).
			WithDetails(string(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding directory response")
	}
	return nil
}
