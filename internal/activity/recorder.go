// Package activity records visitor telemetry with fire-and-forget semantics.
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/tgolabs/chatkit/internal/api"
	"github.com/tgolabs/chatkit/internal/logging"
)

// Recorder posts visitor activities in the background. Failures are logged
// and never surfaced; telemetry must not affect the session.
type Recorder struct {
	client *api.Client
	log    *logging.Logger
	wg     sync.WaitGroup
}

// NewRecorder creates an activity recorder.
func NewRecorder(client *api.Client, log *logging.Logger) *Recorder {
	return &Recorder{client: client, log: log.Sub("activity")}
}

// Record posts one activity asynchronously. The call is detached from the
// caller's lifecycle so a record issued during teardown still completes,
// bounded by the standard network timeout.
func (r *Recorder) Record(visitorID, activityType, title, description string, actx *api.ActivityContext) {
	if visitorID == "" {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := r.client.CreateActivity(ctx, api.ActivityRequest{
			VisitorID:    visitorID,
			ActivityType: activityType,
			Title:        title,
			Description:  description,
			Context:      actx,
		})
		if err != nil {
			r.log.Debug().Err(err).Str("type", activityType).Msg("activity record failed")
		}
	}()
}

// Flush waits for in-flight records, up to the given timeout.
func (r *Recorder) Flush(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
