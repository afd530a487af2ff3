package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RemoteClient posts captured documents to the configured analysis API.
// Authentication is a pre-shared key in the X-API-Key header.
type RemoteClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewRemoteClient(endpoint, apiKey string, timeout time.Duration) *RemoteClient {
	return &RemoteClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type remoteRequest struct {
	Image            string `json:"image"`
	DocumentTypeHint string `json:"document_type_hint"`
}

type remoteResponse struct {
	Labels      []string  `json:"labels"`
	Confidences []float64 `json:"confidences"`
	Narrative   string    `json:"narrative"`
	Error       string    `json:"error,omitempty"`
}

// Analyze posts the image at imagePath with docType as the hint. Transport
// errors get one retry; HTTP and payload errors are returned as ordinary
// failures.
func (c *RemoteClient) Analyze(ctx context.Context, docType DocumentType, imagePath string) (*Finding, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan: %w", err)
	}

	reqBody := remoteRequest{
		Image:            base64.StdEncoding.EncodeToString(imageData),
		DocumentTypeHint: string(docType),
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.post(ctx, jsonData)
	if err != nil {
		var netErr net.Error
		if ctx.Err() == nil && errors.As(err, &netErr) {
			log.Warn().Err(err).Msg("analysis API request failed, retrying once")
			body, err = c.post(ctx, jsonData)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to reach analysis API: %w", err)
		}
	}

	var remoteResp remoteResponse
	if err := json.Unmarshal(body, &remoteResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if remoteResp.Error != "" {
		return nil, fmt.Errorf("analysis API error: %s", remoteResp.Error)
	}
	if len(remoteResp.Labels) != len(remoteResp.Confidences) {
		return nil, fmt.Errorf("analysis API returned %d labels with %d confidences", len(remoteResp.Labels), len(remoteResp.Confidences))
	}

	finding := &Finding{
		DocumentType: docType,
		Narrative:    remoteResp.Narrative,
		Source:       SourceRemote,
		AnalyzedAt:   time.Now(),
	}
	for i, name := range remoteResp.Labels {
		finding.Labels = append(finding.Labels, Label{Name: name, Confidence: remoteResp.Confidences[i]})
	}
	finding.Normalize()
	return finding, nil
}

func (c *RemoteClient) post(ctx context.Context, jsonData []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
