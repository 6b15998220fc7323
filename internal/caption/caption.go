package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/stepcanvas/stepcanvas/pkg/logger"
	"github.com/stepcanvas/stepcanvas/pkg/metrics"
)

// Fallback is what a failed caption call yields. The image record stores it
// instead of surfacing the upstream failure; absence of an original image
// uses the same sentinel without any call being made.
const Fallback = ""

// Captioner is the image-caption collaborator contract.
type Captioner interface {
	Caption(ctx context.Context, image []byte) string
}

// HuggingFace calls an image-to-text inference endpoint. Failures are logged
// and swallowed; the caller always gets a usable string back.
type HuggingFace struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewHuggingFace(endpoint, token string) *HuggingFace {
	if endpoint == "" {
		endpoint = "https://api-inference.huggingface.co/models/Salesforce/blip-image-captioning-base"
	}
	return &HuggingFace{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (h *HuggingFace) Caption(ctx context.Context, image []byte) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(image))
	if err != nil {
		return h.failed(err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return h.failed(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		logger.Warnf("caption endpoint returned %d: %s", resp.StatusCode, string(b))
		metrics.UpstreamCalls.WithLabelValues("huggingface", "error").Inc()
		return Fallback
	}

	// response shape: [{"generated_text": "..."}]
	var out []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out) == 0 {
		return h.failed(err)
	}
	metrics.UpstreamCalls.WithLabelValues("huggingface", "ok").Inc()
	return out[0].GeneratedText
}

func (h *HuggingFace) failed(err error) string {
	logger.Warnf("caption call failed: %v", err)
	metrics.UpstreamCalls.WithLabelValues("huggingface", "error").Inc()
	return Fallback
}
