package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// errIndexNotFound marks a describe call against an index that does not exist
// yet. Internal to the provisioning flow.
var errIndexNotFound = errors.New("index not found")

// readyPollInterval is how often a provisioning wait re-describes the index.
const readyPollInterval = 2 * time.Second

// Provisioner manages index lifecycle through the Pinecone control plane.
// It is used once at startup; the data plane (Store) takes over from the
// host the provisioner returns.
type Provisioner struct {
	controlURL string
	apiKey     string
	cloud      string
	region     string
	httpClient *http.Client
	logger     *slog.Logger

	// readyTimeout bounds the wait for a freshly created index to come up.
	readyTimeout time.Duration
}

// ProvisionerConfig holds Pinecone control-plane configuration.
type ProvisionerConfig struct {
	// ControlURL is the control-plane endpoint.
	ControlURL string

	// APIKey authenticates control-plane requests.
	APIKey string

	// Cloud and Region place serverless indexes created by EnsureIndex.
	Cloud  string
	Region string

	// Timeout for individual HTTP requests.
	Timeout time.Duration

	// ReadyTimeout bounds the readiness wait after index creation.
	ReadyTimeout time.Duration
}

// DefaultProvisionerConfig returns sensible defaults.
func DefaultProvisionerConfig(apiKey string) ProvisionerConfig {
	return ProvisionerConfig{
		ControlURL:   "https://api.pinecone.io",
		APIKey:       apiKey,
		Cloud:        "aws",
		Region:       "us-east-1",
		Timeout:      30 * time.Second,
		ReadyTimeout: 2 * time.Minute,
	}
}

// NewProvisioner creates a control-plane client.
func NewProvisioner(cfg ProvisionerConfig, logger *slog.Logger) (*Provisioner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone API key is required")
	}
	if cfg.ControlURL == "" {
		cfg.ControlURL = "https://api.pinecone.io"
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Provisioner{
		controlURL: strings.TrimSuffix(cfg.ControlURL, "/"),
		apiKey:     cfg.APIKey,
		cloud:      cfg.Cloud,
		region:     cfg.Region,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:       logger,
		readyTimeout: cfg.ReadyTimeout,
	}, nil
}

type indexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type createIndexRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Spec      struct {
		Serverless struct {
			Cloud  string `json:"cloud"`
			Region string `json:"region"`
		} `json:"serverless"`
	} `json:"spec"`
}

// EnsureIndex makes sure the named index exists with the given dimension and
// returns its data-plane host. A missing index is created as a serverless
// cosine index and awaited until ready; an existing index with a different
// dimension is an error, not something to silently reuse.
func (p *Provisioner) EnsureIndex(ctx context.Context, name string, dimension int) (string, error) {
	if name == "" {
		return "", fmt.Errorf("index name is required")
	}
	if dimension <= 0 {
		return "", fmt.Errorf("index dimension must be positive, got %d", dimension)
	}

	desc, err := p.describeIndex(ctx, name)
	switch {
	case err == nil:
		if desc.Dimension != dimension {
			return "", fmt.Errorf("index %q has dimension %d, expected %d", name, desc.Dimension, dimension)
		}
		if desc.Status.Ready {
			return desc.Host, nil
		}
		p.logger.Info("index exists but is not ready, waiting",
			"index", name,
			"state", desc.Status.State,
		)
		return p.waitReady(ctx, name)

	case errors.Is(err, errIndexNotFound):
		p.logger.Info("creating index",
			"index", name,
			"dimension", dimension,
			"cloud", p.cloud,
			"region", p.region,
		)
		if err := p.createIndex(ctx, name, dimension); err != nil {
			return "", err
		}
		return p.waitReady(ctx, name)

	default:
		return "", err
	}
}

func (p *Provisioner) describeIndex(ctx context.Context, name string) (*indexDescription, error) {
	body, status, err := p.doRequest(ctx, http.MethodGet, "/indexes/"+name, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, errIndexNotFound
	}
	if status != http.StatusOK {
		return nil, controlPlaneError(status, body)
	}

	var desc indexDescription
	if err := json.Unmarshal(body, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse index description: %w", err)
	}
	return &desc, nil
}

func (p *Provisioner) createIndex(ctx context.Context, name string, dimension int) error {
	req := createIndexRequest{
		Name:      name,
		Dimension: dimension,
		Metric:    "cosine",
	}
	req.Spec.Serverless.Cloud = p.cloud
	req.Spec.Serverless.Region = p.region

	body, status, err := p.doRequest(ctx, http.MethodPost, "/indexes", req)
	if err != nil {
		return err
	}
	// 409 means another instance created it between describe and create.
	if status != http.StatusCreated && status != http.StatusOK && status != http.StatusConflict {
		return controlPlaneError(status, body)
	}
	return nil
}

// waitReady polls the index until the control plane reports it ready.
func (p *Provisioner) waitReady(ctx context.Context, name string) (string, error) {
	deadline := time.Now().Add(p.readyTimeout)
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		desc, err := p.describeIndex(ctx, name)
		if err != nil && !errors.Is(err, errIndexNotFound) {
			return "", err
		}
		if err == nil && desc.Status.Ready {
			p.logger.Info("index ready", "index", name, "host", desc.Host)
			return desc.Host, nil
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("index %q not ready after %s", name, p.readyTimeout)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func controlPlaneError(status int, body []byte) error {
	return &domain.ProviderError{
		Provider:   "pinecone",
		Status:     status,
		StatusText: http.StatusText(status),
		Body:       string(body),
	}
}

// doRequest performs a control-plane call and returns the raw body and status
// so callers can branch on 404 and 409 without string matching.
func (p *Provisioner) doRequest(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.controlURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("control plane request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
