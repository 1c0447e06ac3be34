package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"session-capture/dto"
)

// HTTPUploader delivers chunks to the ingestion endpoint as JSON.
type HTTPUploader struct {
	baseURL string
	client  *http.Client
}

func NewHTTPUploader(baseURL string) *HTTPUploader {
	return &HTTPUploader{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (u *HTTPUploader) UploadChunk(ctx context.Context, chunk Chunk) error {
	idx := chunk.ChunkIndex
	body, err := json.Marshal(dto.UploadChunkRequest{
		RecordingId: chunk.RecordingId,
		SessionId:   chunk.SessionId,
		ChunkIndex:  &idx,
		Events:      chunk.Events,
	})
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/api/v1/chunks", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chunk upload rejected: %s: %s", resp.Status, detail)
	}
	return nil
}
