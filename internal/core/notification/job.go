package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quicknet-il/support-bot-be/internal/core/jobs"
)

// JobTypeAdminNotify is the queue job type for admin notifications.
const JobTypeAdminNotify = "admin_notify"

// AdminNotifyPayload is the persisted job body.
type AdminNotifyPayload struct {
	Text string `json:"text"`
}

// JobHandler delivers queued admin notifications through a Sender.
type JobHandler struct {
	sender Sender
}

func NewJobHandler(sender Sender) *JobHandler {
	return &JobHandler{sender: sender}
}

func (h *JobHandler) Type() string {
	return JobTypeAdminNotify
}

func (h *JobHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var payload AdminNotifyPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("bad admin_notify payload: %w", err)
	}
	if payload.Text == "" {
		return nil
	}
	return h.sender.Send(ctx, payload.Text)
}

// QueueSender satisfies Sender by enqueueing instead of delivering inline.
// The escalation path uses it so a down gateway cannot slow a reply.
type QueueSender struct {
	queue *jobs.Queue
}

func NewQueueSender(queue *jobs.Queue) *QueueSender {
	return &QueueSender{queue: queue}
}

func (s *QueueSender) Send(ctx context.Context, text string) error {
	_, err := s.queue.Enqueue(ctx, JobTypeAdminNotify, AdminNotifyPayload{Text: text})
	return err
}
