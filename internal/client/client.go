// Package client provides a Go SDK for talking to a replica of the
// collaborative document service.
//
// Big idea:
//
// Instead of writing raw HTTP requests everywhere,
// we wrap them inside a clean Go API.
//
// So instead of:
//
//	http.NewRequest(...)
//	json.Marshal(...)
//
// Users can simply call:
//
//	client.Insert(ctx, docID, value, left, right)
//	client.Read(ctx, docID)
//
// This is called a "client library" or "SDK". It hides HTTP details, JSON
// encoding/decoding, and error handling behind a clean Go interface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hayley-d/collaborative-coding-backend/internal/s4vector"
)

// Client talks to ONE replica.
//
// Important: the replica it talks to is responsible for serializing local
// operations against that document and broadcasting to its peers. The
// client does not implement any of that — it just performs HTTP calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Client. timeout protects us from hanging forever — in a
// distributed system, never call the network without a timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateDocumentResponse is returned after successfully activating a new
// document.
type CreateDocumentResponse struct {
	DocumentID string `json:"document_id"`
	Ssn        uint64 `json:"ssn"`
}

// OperationResponse describes the outcome of a local operation: the minted
// S4Vector, and whether the operation is still pending a missing anchor.
type OperationResponse struct {
	ID      s4vector.S4Vector `json:"id"`
	Pending bool              `json:"pending"`
}

// ReadResponse is the live, tombstone-filtered sequence of values.
type ReadResponse struct {
	DocumentID string   `json:"document_id"`
	Values     []string `json:"values"`
}

// CreateDocument activates a new document on the replica and returns its ID.
func (c *Client) CreateDocument(ctx context.Context) (*CreateDocumentResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/documents", c.baseURL), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create document request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out CreateDocumentResponse
	return &out, json.NewDecoder(resp.Body).Decode(&out)
}

// Read fetches the current live sequence of a document.
func (c *Client) Read(ctx context.Context, documentID string) (*ReadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/documents/%s", c.baseURL, documentID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrDocumentNotFound
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out ReadResponse
	return &out, json.NewDecoder(resp.Body).Decode(&out)
}

type insertRequest struct {
	Value  string             `json:"value"`
	LeftID *s4vector.S4Vector `json:"left_id,omitempty"`
	RightID *s4vector.S4Vector `json:"right_id,omitempty"`
}

// Insert asks the replica to insert value anchored between left and right
// (either may be nil for a head insert).
func (c *Client) Insert(ctx context.Context, documentID, value string, left, right *s4vector.S4Vector) (*OperationResponse, error) {
	body, _ := json.Marshal(insertRequest{Value: value, LeftID: left, RightID: right})
	return c.postOperation(ctx, fmt.Sprintf("/documents/%s/insert", documentID), body)
}

type updateRequest struct {
	ID    s4vector.S4Vector `json:"id"`
	Value string            `json:"value"`
}

// Update asks the replica to change the value stored at id.
func (c *Client) Update(ctx context.Context, documentID string, id s4vector.S4Vector, value string) (*OperationResponse, error) {
	body, _ := json.Marshal(updateRequest{ID: id, Value: value})
	return c.postOperation(ctx, fmt.Sprintf("/documents/%s/update", documentID), body)
}

type deleteRequest struct {
	ID s4vector.S4Vector `json:"id"`
}

// Delete asks the replica to tombstone id.
func (c *Client) Delete(ctx context.Context, documentID string, id s4vector.S4Vector) (*OperationResponse, error) {
	body, _ := json.Marshal(deleteRequest{ID: id})
	return c.postOperation(ctx, fmt.Sprintf("/documents/%s/delete", documentID), body)
}

func (c *Client) postOperation(ctx context.Context, path string, body []byte) (*OperationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s%s", c.baseURL, path), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("operation request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out OperationResponse
	return &out, json.NewDecoder(resp.Body).Decode(&out)
}

// JoinCluster registers a replica into the cluster. This triggers a
// membership update and a hash ring rebuild on the receiving node.
func (c *Client) JoinCluster(ctx context.Context, nodeID, address string) error {
	body, _ := json.Marshal(map[string]string{"id": nodeID, "address": address})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/cluster/join", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// LeaveCluster removes a replica from the cluster.
func (c *Client) LeaveCluster(ctx context.Context, nodeID string) error {
	body, _ := json.Marshal(map[string]string{"id": nodeID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/cluster/leave", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// ─── Errors ───────────────────────────────────────────────────────────────────

// ErrDocumentNotFound is returned when a document does not exist on the replica.
var ErrDocumentNotFound = fmt.Errorf("document not found")

// APIError carries the HTTP status and the error message from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// checkStatus converts HTTP error responses into Go errors.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
