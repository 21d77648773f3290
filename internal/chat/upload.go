package chat

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tgolabs/chatkit/internal/api"
	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/transport"
	"github.com/tgolabs/chatkit/internal/upload"
)

// UploadFiles starts one independent upload per file. Each gets its own
// placeholder message whose id stays stable across retries; progress and
// failures land on that placeholder.
func (e *Engine) UploadFiles(files ...upload.File) {
	for _, f := range files {
		id := "f-" + strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + uuid.New().String()[:8]
		clientMsgNo := uuid.New().String()

		e.store.Append(domain.ChatMessage{
			ID:          id,
			Role:        domain.RoleUser,
			Payload:     placeholderPayload(f),
			Time:        time.Now(),
			ClientMsgNo: clientMsgNo,
			Status:      domain.StatusUploading,
		})

		e.startUpload(id, clientMsgNo, f)
	}
}

// RetryUpload re-runs a failed upload. The message keeps its id so the UI
// entry is continuous, but the correlation id is fresh: the old one may
// still be attached to a half-delivered send on the platform side.
func (e *Engine) RetryUpload(ctx context.Context, messageID string) error {
	e.mu.Lock()
	f, ok := e.uploadFiles[messageID]
	e.mu.Unlock()
	if !ok {
		return nil
	}

	clientMsgNo := uuid.New().String()
	e.store.Update(messageID, func(m *domain.ChatMessage) {
		m.ClientMsgNo = clientMsgNo
		m.Status = domain.StatusUploading
		m.UploadProgress = 0
		m.UploadError = ""
		m.ReasonCode = domain.ReasonUnknown
	})

	e.startUpload(messageID, clientMsgNo, f)
	return nil
}

// CancelUpload aborts an in-flight upload. With no task running (already
// settled or never started) the message is marked canceled directly.
func (e *Engine) CancelUpload(messageID string) {
	e.mu.Lock()
	cancel, ok := e.uploadCancels[messageID]
	if ok {
		delete(e.uploadCancels, messageID)
	}
	e.mu.Unlock()

	if ok {
		// The running task observes the abort and records the canceled state.
		cancel()
		return
	}
	e.store.Update(messageID, func(m *domain.ChatMessage) {
		m.Status = domain.StatusNone
		m.UploadError = "canceled"
	})
}

// startUpload registers the task and runs the transfer in the background.
// The context is detached from any caller so navigating on does not abort
// the transfer; only CancelUpload and Close do.
func (e *Engine) startUpload(messageID, clientMsgNo string, f upload.File) {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.uploadFiles[messageID] = f
	e.uploadCancels[messageID] = cancel
	e.mu.Unlock()

	go e.runUpload(ctx, messageID, clientMsgNo, f)
}

func (e *Engine) runUpload(ctx context.Context, messageID, clientMsgNo string, f upload.File) {
	_, channelID, channelType, err := e.sessionInfo()
	if err != nil {
		e.failUpload(messageID, err)
		return
	}

	onProgress := func(percent int, sent, total int64) {
		e.store.Update(messageID, func(m *domain.ChatMessage) {
			m.UploadProgress = percent
		})
	}

	res, err := e.uploads.Upload(ctx, channelID, channelType, f, onProgress)
	if err != nil {
		e.failUpload(messageID, err)
		return
	}

	payload := e.uploadedPayload(f, res)
	e.store.Update(messageID, func(m *domain.ChatMessage) {
		m.Payload = payload
		m.Status = domain.StatusSending
		m.UploadProgress = 0
		m.UploadError = ""
	})

	sctx, scancel := e.netCtx(ctx)
	result, err := e.tr.Send(sctx, payload, transport.SendOptions{ClientMsgNo: clientMsgNo})
	scancel()

	reason := domain.ReasonUnknown
	if err == nil {
		reason = result.ReasonCode
	}
	e.store.Update(messageID, func(m *domain.ChatMessage) {
		m.Status = domain.StatusNone
		m.ReasonCode = reason
		if err != nil {
			m.ErrorMessage = err.Error()
		}
	})

	e.mu.Lock()
	delete(e.uploadCancels, messageID)
	if err == nil && reason == domain.ReasonSuccess {
		delete(e.uploadFiles, messageID)
	}
	e.mu.Unlock()

	if err == nil && reason == domain.ReasonSuccess {
		e.recordActivity(api.ActivityFileUploaded, "File uploaded", f.Name)
	}
}

// failUpload records a transfer failure. The file stays registered so the
// visitor can retry without re-selecting it; an abort reads as "canceled"
// rather than an error.
func (e *Engine) failUpload(messageID string, err error) {
	e.mu.Lock()
	delete(e.uploadCancels, messageID)
	e.mu.Unlock()

	msg := "canceled"
	if !domain.IsAbort(err) {
		msg = err.Error()
		e.recordErr(err)
		e.log.Warn().Err(err).Str("message", messageID).Msg("upload failed")
	}
	e.store.Update(messageID, func(m *domain.ChatMessage) {
		m.Status = domain.StatusNone
		m.UploadError = msg
	})
}

// placeholderPayload is what the message shows while the transfer runs.
func placeholderPayload(f upload.File) domain.MessagePayload {
	if f.IsImage() {
		return domain.ImagePayload("", 1, 1)
	}
	return domain.FilePayload("[file] "+f.Name, domain.FileDescriptor{
		Name: f.Name,
		Size: int64(len(f.Content)),
	})
}

// uploadedPayload derives the final payload from the platform's response.
// Image dimensions come from decoding the bytes we already hold; a failed
// probe degrades to 1x1 rather than blocking the send.
func (e *Engine) uploadedPayload(f upload.File, res *upload.Response) domain.MessagePayload {
	url := e.platform.FileURL(res.FileID)
	if f.IsImage() {
		w, h, ok := upload.ProbeDimensions(f.Content)
		if !ok {
			w, h = 1, 1
		}
		return domain.ImagePayload(url, w, h)
	}

	name := res.FileName
	if name == "" {
		name = f.Name
	}
	size := res.FileSize
	if size == 0 {
		size = int64(len(f.Content))
	}
	return domain.FilePayload("[file] "+name, domain.FileDescriptor{URL: url, Name: name, Size: size})
}
