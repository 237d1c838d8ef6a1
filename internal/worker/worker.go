package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/internal/notify"
	"github.com/gatherly/backend/internal/polls"
	"github.com/gatherly/backend/internal/wishlists"
	"github.com/gatherly/backend/pkg/queue"
	"github.com/gatherly/backend/pkg/storage"
)

// Processor consumes background jobs: poll reminders and wishlist image
// ingest. It also runs the periodic poll expiry sweep.
type Processor struct {
	store     polls.Store
	wishRepo  *wishlists.Repository
	s3        *storage.S3
	queue     *queue.Queue
	publisher notify.RedisPublisher
	logger    *zap.Logger

	maxRemindersPerInvite int
}

// NewProcessor creates a job processor. s3 and publisher may be nil.
func NewProcessor(store polls.Store, wishRepo *wishlists.Repository, s3 *storage.S3, q *queue.Queue, publisher notify.RedisPublisher, maxRemindersPerInvite int, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRemindersPerInvite <= 0 {
		maxRemindersPerInvite = 3
	}
	return &Processor{
		store:                 store,
		wishRepo:              wishRepo,
		s3:                    s3,
		queue:                 q,
		publisher:             publisher,
		logger:                logger,
		maxRemindersPerInvite: maxRemindersPerInvite,
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeReminder:
		var payload queue.ReminderPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processReminder(ctx, payload)
	case queue.JobTypeImageFetch:
		var payload queue.ImageFetchPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processImageFetch(ctx, payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// processReminder nudges one invitee. Reminders are skipped (not failed) when
// the poll has closed, the invitee has voted meanwhile, or the per-invite cap
// is reached.
func (p *Processor) processReminder(ctx context.Context, payload queue.ReminderPayload) error {
	poll, err := p.store.GetPoll(ctx, payload.PollID)
	if err != nil {
		return fmt.Errorf("load poll: %w", err)
	}
	if poll.Status != models.StatusVoting {
		p.logger.Info("skipping reminder: poll not open",
			zap.String("poll_id", payload.PollID.String()), zap.String("status", string(poll.Status)))
		return nil
	}
	var invite *models.PollInvite
	for i := range poll.Invites {
		if poll.Invites[i].UserID == payload.UserID {
			invite = &poll.Invites[i]
			break
		}
	}
	if invite == nil || invite.HasVoted {
		return nil
	}
	if invite.RemindersSent >= p.maxRemindersPerInvite {
		p.logger.Info("skipping reminder: cap reached",
			zap.String("poll_id", payload.PollID.String()), zap.String("user_id", payload.UserID.String()))
		return nil
	}

	if err := p.store.BumpReminder(ctx, payload.PollID, payload.UserID, time.Now()); err != nil {
		return fmt.Errorf("bump reminder: %w", err)
	}
	p.publish(payload.PollID, "vote_reminder", map[string]string{
		"poll_id": payload.PollID.String(),
		"user_id": payload.UserID.String(),
		"title":   poll.Title,
	})
	p.logger.Info("reminder sent",
		zap.String("poll_id", payload.PollID.String()), zap.String("user_id", payload.UserID.String()))
	return nil
}

// processImageFetch downloads a wishlist item's source image and stores it.
func (p *Processor) processImageFetch(ctx context.Context, payload queue.ImageFetchPayload) error {
	if p.s3 == nil {
		p.logger.Warn("image fetch skipped: storage not configured", zap.String("item_id", payload.ItemID.String()))
		return nil
	}
	item, err := p.wishRepo.GetItem(ctx, payload.ItemID)
	if err != nil {
		return fmt.Errorf("item not found: %s", payload.ItemID)
	}
	if item.ImageKey != "" {
		p.logger.Info("image already ingested", zap.String("item_id", item.ID.String()))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !storage.ValidImageType(contentType) {
		p.logger.Warn("image fetch skipped: unsupported content type",
			zap.String("item_id", payload.ItemID.String()), zap.String("content_type", contentType))
		return nil
	}
	if resp.ContentLength > storage.MaxImageSize {
		p.logger.Warn("image fetch skipped: too large",
			zap.String("item_id", payload.ItemID.String()), zap.Int64("size", resp.ContentLength))
		return nil
	}

	key := storage.ItemImageKey(payload.ItemID.String(), contentType)
	body := io.LimitReader(resp.Body, storage.MaxImageSize)
	if _, err := p.s3.Upload(ctx, key, contentType, body, resp.ContentLength); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.wishRepo.SetItemImageKey(ctx, payload.ItemID, key); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	p.logger.Info("image ingested", zap.String("item_id", payload.ItemID.String()), zap.String("key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

// RunExpirySweep periodically moves polls whose voting deadline has passed to
// the expired state.
func (p *Processor) RunExpirySweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("expiry sweep stopping")
			return
		case <-ticker.C:
			n, err := p.store.ExpireDue(ctx, time.Now())
			if err != nil {
				p.logger.Warn("expiry sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				p.logger.Info("polls expired", zap.Int64("count", n))
			}
		}
	}
}

func (p *Processor) publish(pollID uuid.UUID, event string, payload interface{}) {
	if p.publisher == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := p.publisher.PublishPollEvent(pollID, event, data); err != nil {
		p.logger.Warn("publish failed", zap.Error(err), zap.String("event", event))
	}
}
