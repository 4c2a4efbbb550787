package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/modelforge-ai/platform/pkg/common/httpclient"
	"github.com/modelforge-ai/platform/pkg/common/models"
)

// RemoteClient talks to the managed training API for cloud-mode runs.
// Requests authenticate with OAuth client credentials when a token URL is
// configured.
type RemoteClient struct {
	baseURL string
	client  *http.Client
}

// NewRemoteClient returns nil when no base URL is configured, which keeps
// every run on the local trainer.
func NewRemoteClient(baseURL, tokenURL, clientID, clientSecret string, timeout time.Duration) *RemoteClient {
	if baseURL == "" {
		return nil
	}

	base := httpclient.New(timeout)
	client := base
	if tokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		}
		client = cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	}

	return &RemoteClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type trainRequest struct {
	Category       models.ModelCategory    `json:"category"`
	TrainingData   []models.TrainingRecord `json:"training_data"`
	Params         map[string]interface{}  `json:"params,omitempty"`
	Mode           models.TrainingMode     `json:"mode"`
	ValidationData []models.TrainingRecord `json:"validation_data,omitempty"`
}

type optimizeRequest struct {
	ModelID string                 `json:"model_id"`
	Options map[string]interface{} `json:"options,omitempty"`
}

func (r *RemoteClient) Train(ctx context.Context, category models.ModelCategory, data []models.TrainingRecord, params map[string]interface{}, mode models.TrainingMode, validation []models.TrainingRecord) (*models.TrainingOutput, error) {
	return r.post(ctx, "/api/v1/train", trainRequest{
		Category:       category,
		TrainingData:   data,
		Params:         params,
		Mode:           mode,
		ValidationData: validation,
	})
}

func (r *RemoteClient) Optimize(ctx context.Context, modelID string, options map[string]interface{}) (*models.TrainingOutput, error) {
	return r.post(ctx, "/api/v1/optimize", optimizeRequest{ModelID: modelID, Options: options})
}

func (r *RemoteClient) post(ctx context.Context, path string, body interface{}) (*models.TrainingOutput, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("remote training API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var output models.TrainingOutput
	if err := json.NewDecoder(resp.Body).Decode(&output); err != nil {
		return nil, fmt.Errorf("failed to decode training output: %w", err)
	}
	if output.ModelID == "" {
		return nil, fmt.Errorf("remote training API returned no model id")
	}
	return &output, nil
}
