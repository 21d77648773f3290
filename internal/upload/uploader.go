// Package upload transfers chat attachments to the platform with progress
// reporting and cancellation.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/logging"
)

// Response is the platform's answer to a chat file upload.
type Response struct {
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	FileType    string `json:"file_type,omitempty"`
	FileURL     string `json:"file_url,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
	ChannelType int    `json:"channel_type,omitempty"`
	UploadedAt  string `json:"uploaded_at,omitempty"`
}

// Progress receives upload progress as a 0-100 percentage.
type Progress func(percent int, sent, total int64)

// File is an attachment selected for upload, held in memory so a failed
// transfer can be retried without re-selection.
type File struct {
	Name    string
	Mime    string
	Content []byte
}

// IsImage reports whether the file should produce an image payload.
func (f File) IsImage() bool { return strings.HasPrefix(f.Mime, "image/") }

// Uploader posts attachments to /v1/chat/upload. Uploads are bounded only
// by the caller's context; large files may legitimately exceed the standard
// network timeout.
type Uploader struct {
	base   string
	apiKey string
	httpc  *http.Client
	log    *logging.Logger
}

// New creates an uploader for the given API base.
func New(apiBase, platformAPIKey string, log *logging.Logger) *Uploader {
	return &Uploader{
		base:   strings.TrimRight(apiBase, "/"),
		apiKey: platformAPIKey,
		httpc:  &http.Client{},
		log:    log.Sub("upload"),
	}
}

// Upload transfers one file, reporting progress as the request body drains.
// Cancel via ctx; the failure maps to the abort taxonomy, not a remote error.
func (u *Uploader) Upload(ctx context.Context, channelID string, channelType int, f File, onProgress Progress) (*Response, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return nil, domain.UploadError(err)
	}
	if _, err := part.Write(f.Content); err != nil {
		return nil, domain.UploadError(err)
	}
	if err := mw.WriteField("channel_id", channelID); err != nil {
		return nil, domain.UploadError(err)
	}
	if err := mw.WriteField("channel_type", strconv.Itoa(channelType)); err != nil {
		return nil, domain.UploadError(err)
	}
	if err := mw.Close(); err != nil {
		return nil, domain.UploadError(err)
	}

	total := int64(body.Len())
	reader := &progressReader{r: &body, total: total, onProgress: onProgress}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.base+"/v1/chat/upload", reader)
	if err != nil {
		return nil, domain.UploadError(err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u.apiKey != "" {
		req.Header.Set("X-Platform-API-Key", u.apiKey)
	}

	resp, err := u.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("upload: %w", ctx.Err())
		}
		return nil, domain.UploadError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.UploadError(fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.UploadError(fmt.Errorf("decoding response: %w", err))
	}
	if out.FileID == "" {
		return nil, domain.UploadError(fmt.Errorf("invalid response: missing file_id"))
	}

	u.log.Debug().Str("file", f.Name).Str("fileId", out.FileID).Msg("upload complete")
	return &out, nil
}

// progressReader reports percentage as the HTTP client drains the body.
type progressReader struct {
	r          io.Reader
	total      int64
	sent       int64
	onProgress Progress
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.onProgress != nil {
		p.sent += int64(n)
		percent := 0
		if p.total > 0 {
			percent = int(p.sent * 100 / p.total)
			if percent > 100 {
				percent = 100
			}
		}
		p.onProgress(percent, p.sent, p.total)
	}
	return n, err
}
