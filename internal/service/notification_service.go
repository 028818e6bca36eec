package service

import (
	"context"
	"encoding/json"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type NotificationResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	ActionURL string `json:"action_url,omitempty"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// --- Interface ---

type NotificationService interface {
	// Notify is fire-and-forget: persistence or broadcast failures are logged
	// and swallowed so a notification can never fail the transition that
	// produced it.
	Notify(ctx context.Context, userID uuid.UUID, kind, title, message, actionURL string)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]NotificationResponse, int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Archive(ctx context.Context, userID, notificationID uuid.UUID) error

	RecordSecurityEvent(ctx context.Context, userID *uuid.UUID, eventType, description, ip, userAgent string, details map[string]interface{})
	ListSecurityEvents(ctx context.Context, eventType string, page, limit int) ([]model.SecurityEvent, int64, error)
	CleanupSecurityEvents(ctx context.Context, olderThanDays int, dryRun bool) (int64, error)
}

type notificationService struct {
	notifRepo repository.NotificationRepository
	eventRepo repository.SecurityEventRepository
	hub       *ws.Hub
	log       *zap.SugaredLogger
}

func NewNotificationService(
	notifRepo repository.NotificationRepository,
	eventRepo repository.SecurityEventRepository,
	hub *ws.Hub,
	log *zap.SugaredLogger,
) NotificationService {
	return &notificationService{
		notifRepo: notifRepo,
		eventRepo: eventRepo,
		hub:       hub,
		log:       log,
	}
}

// --- Implementation ---

func (s *notificationService) Notify(ctx context.Context, userID uuid.UUID, kind, title, message, actionURL string) {
	n := model.Notification{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
	}
	if err := s.notifRepo.Create(ctx, &n); err != nil {
		s.log.Warnw("failed to persist notification", "user_id", userID, "title", title, "error", err)
		return
	}

	if s.hub != nil {
		payload, err := json.Marshal(ws.NotificationEvent{
			Event:  "notification",
			UserID: userID.String(),
			Data: map[string]interface{}{
				"id":         n.ID.String(),
				"kind":       n.Kind,
				"title":      n.Title,
				"message":    n.Message,
				"action_url": n.ActionURL,
			},
		})
		if err == nil {
			s.hub.Publish(payload)
		}
	}
}

func (s *notificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]NotificationResponse, int64, error) {
	notifications, total, err := s.notifRepo.ListByUser(ctx, userID, unreadOnly, page, limit)
	if err != nil {
		return nil, 0, err
	}

	result := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		result = append(result, NotificationResponse{
			ID:        n.ID.String(),
			Kind:      n.Kind,
			Title:     n.Title,
			Message:   n.Message,
			ActionURL: n.ActionURL,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}
	return result, total, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notifRepo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	n, err := s.notifRepo.FindByID(ctx, notificationID)
	if err != nil {
		return notFound("notification")
	}
	if n.UserID != userID {
		return notFound("notification")
	}
	if n.IsRead {
		return nil
	}
	n.IsRead = true
	return s.notifRepo.Update(ctx, n)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.notifRepo.MarkAllRead(ctx, userID)
}

func (s *notificationService) Archive(ctx context.Context, userID, notificationID uuid.UUID) error {
	n, err := s.notifRepo.FindByID(ctx, notificationID)
	if err != nil {
		return notFound("notification")
	}
	if n.UserID != userID {
		return notFound("notification")
	}
	n.IsArchived = true
	n.IsRead = true
	return s.notifRepo.Update(ctx, n)
}

func (s *notificationService) RecordSecurityEvent(ctx context.Context, userID *uuid.UUID, eventType, description, ip, userAgent string, details map[string]interface{}) {
	var detailsJSON string
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}
	event := model.SecurityEvent{
		UserID:      userID,
		EventType:   eventType,
		Description: description,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Details:     detailsJSON,
	}
	if err := s.eventRepo.Create(ctx, &event); err != nil {
		s.log.Warnw("failed to record security event", "event_type", eventType, "error", err)
	}
}

func (s *notificationService) ListSecurityEvents(ctx context.Context, eventType string, page, limit int) ([]model.SecurityEvent, int64, error) {
	return s.eventRepo.List(ctx, eventType, page, limit)
}

// CleanupSecurityEvents deletes events older than the retention window. Safe
// to rerun: it only ever matches rows past the cutoff.
func (s *notificationService) CleanupSecurityEvents(ctx context.Context, olderThanDays int, dryRun bool) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	if dryRun {
		return s.eventRepo.CountOlderThan(ctx, cutoff)
	}
	deleted, err := s.eventRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Infow("cleaned up security events", "deleted", deleted, "older_than_days", olderThanDays)
	return deleted, nil
}
