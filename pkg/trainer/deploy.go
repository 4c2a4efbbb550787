package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelforge-ai/platform/pkg/common/httpclient"
	"github.com/modelforge-ai/platform/pkg/common/logger"
)

// edgeQuantum rounds coefficients to three decimals for edge artifacts.
const edgeQuantum = 1000

// Deployer moves trained artifacts into serving locations. Local and edge
// targets are directories on this host, cloud is a remote serving API.
type Deployer struct {
	artifactDir string
	localDir    string
	edgeDir     string
	cloudURL    string
	client      *http.Client
}

func NewDeployer(artifactDir, localDir, edgeDir, cloudURL string, timeout time.Duration) *Deployer {
	return &Deployer{
		artifactDir: artifactDir,
		localDir:    localDir,
		edgeDir:     edgeDir,
		cloudURL:    strings.TrimRight(cloudURL, "/"),
		client:      httpclient.New(timeout),
	}
}

// DeployLocal copies the artifact into the local serving directory.
func (d *Deployer) DeployLocal(ctx context.Context, modelID string, options map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := os.ReadFile(d.artifactFile(modelID))
	if err != nil {
		return fmt.Errorf("artifact for model %s not found: %w", modelID, err)
	}
	if err := os.MkdirAll(d.localDir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(d.localDir, fmt.Sprintf("%s.json", modelID))
	if err := os.WriteFile(target, payload, 0o644); err != nil {
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"model_id": modelID,
		"target":   target,
	}).Info("Model deployed locally")
	return nil
}

// DeployEdge writes a trimmed artifact for constrained targets: training
// params are dropped and coefficients rounded to three decimals.
func (d *Deployer) DeployEdge(ctx context.Context, modelID string, options map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := os.ReadFile(d.artifactFile(modelID))
	if err != nil {
		return fmt.Errorf("artifact for model %s not found: %w", modelID, err)
	}
	var art artifact
	if err := json.Unmarshal(payload, &art); err != nil {
		return fmt.Errorf("corrupt artifact for model %s: %w", modelID, err)
	}

	art.Params = nil
	if art.Weights != nil {
		for i, c := range art.Weights.Coefficients {
			art.Weights.Coefficients[i] = math.Round(c*edgeQuantum) / edgeQuantum
		}
		art.Weights.Bias = math.Round(art.Weights.Bias*edgeQuantum) / edgeQuantum
	}

	trimmed, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.edgeDir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(d.edgeDir, fmt.Sprintf("%s.json", modelID))
	if err := os.WriteFile(target, trimmed, 0o644); err != nil {
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"model_id":   modelID,
		"target":     target,
		"size_bytes": len(trimmed),
	}).Info("Model deployed to edge")
	return nil
}

// DeployCloud uploads the artifact to the remote serving API.
func (d *Deployer) DeployCloud(ctx context.Context, modelID string, options map[string]interface{}) error {
	if d.cloudURL == "" {
		return fmt.Errorf("cloud deployment not configured")
	}

	payload, err := os.ReadFile(d.artifactFile(modelID))
	if err != nil {
		return fmt.Errorf("artifact for model %s not found: %w", modelID, err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"model_id": modelID,
		"artifact": json.RawMessage(payload),
		"options":  options,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cloudURL+"/api/v1/deploy", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("cloud deploy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	logger.Log.WithField("model_id", modelID).Info("Model deployed to cloud")
	return nil
}

func (d *Deployer) artifactFile(modelID string) string {
	return filepath.Join(d.artifactDir, fmt.Sprintf("%s.json", modelID))
}
