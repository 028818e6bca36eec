package service

import (
	"context"
	"fmt"
	"time"

	"backend/internal/mail"
	"backend/internal/model"
	"backend/internal/permission"
	"backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateApprovalRequest struct {
	App            string `json:"app" binding:"required"`
	RequestedLevel string `json:"requested_level" binding:"required,oneof=view edit admin"`
	Reason         string `json:"reason" binding:"required"`
}

type ReviewApprovalRequest struct {
	Notes string `json:"notes"`
}

type ApprovalResponse struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Username       string  `json:"username,omitempty"`
	App            string  `json:"app"`
	RequestedLevel string  `json:"requested_level"`
	Reason         string  `json:"reason"`
	Status         string  `json:"status"`
	ReviewedBy     *string `json:"reviewed_by"`
	ReviewedAt     *string `json:"reviewed_at"`
	ReviewNotes    string  `json:"review_notes,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

type ApprovalService interface {
	CreateRequest(ctx context.Context, userID uuid.UUID, req CreateApprovalRequest) (ApprovalResponse, error)
	ListRequests(ctx context.Context, status string, page, limit int) ([]ApprovalResponse, int64, error)
	GetRequest(ctx context.Context, id string) (ApprovalResponse, error)
	Approve(ctx context.Context, id string, reviewer *model.User, notes string) (ApprovalResponse, error)
	Reject(ctx context.Context, id string, reviewer *model.User, notes string) (ApprovalResponse, error)

	// AutoApproveOld grants pending employee requests older than the given age.
	AutoApproveOld(ctx context.Context, age time.Duration, dryRun bool) (int, error)
}

type approvalService struct {
	approvalRepo   repository.ApprovalRepository
	permissionRepo repository.PermissionRepository
	userRepo       repository.UserRepository
	txManager      repository.TransactionManager
	resolver       *permission.Resolver
	notifier       NotificationService
	mailer         mail.Mailer
	log            *zap.SugaredLogger
	now            func() time.Time
}

func NewApprovalService(
	approvalRepo repository.ApprovalRepository,
	permissionRepo repository.PermissionRepository,
	userRepo repository.UserRepository,
	txManager repository.TransactionManager,
	resolver *permission.Resolver,
	notifier NotificationService,
	mailer mail.Mailer,
	log *zap.SugaredLogger,
) ApprovalService {
	return &approvalService{
		approvalRepo:   approvalRepo,
		permissionRepo: permissionRepo,
		userRepo:       userRepo,
		txManager:      txManager,
		resolver:       resolver,
		notifier:       notifier,
		mailer:         mailer,
		log:            log,
		now:            time.Now,
	}
}

func (s *approvalService) CreateRequest(ctx context.Context, userID uuid.UUID, req CreateApprovalRequest) (ApprovalResponse, error) {
	if !validApp(req.App) {
		return ApprovalResponse{}, policyErrorf("unknown application area %q", req.App)
	}
	requested := permission.ParseLevel(req.RequestedLevel)
	if requested == permission.LevelNone {
		return ApprovalResponse{}, policyErrorf("cannot request %q access", req.RequestedLevel)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return ApprovalResponse{}, notFound("user")
	}

	current, err := s.resolver.Resolve(ctx, user, req.App)
	if err != nil {
		return ApprovalResponse{}, fmt.Errorf("failed to resolve current access: %w", err)
	}
	if current.Satisfies(requested) {
		return ApprovalResponse{}, policyErrorf("you already have %s access to %s", current, req.App)
	}

	// One open request per user+app; a second submission is a no-op conflict.
	if pending, pendErr := s.approvalRepo.FindPending(ctx, userID, req.App); pendErr != nil {
		return ApprovalResponse{}, fmt.Errorf("failed to check pending requests: %w", pendErr)
	} else if pending != nil {
		return ApprovalResponse{}, policyErrorf("a pending request for %s access already exists", req.App)
	}

	request := model.ApprovalRequest{
		UserID:         userID,
		App:            req.App,
		RequestedLevel: requested.String(),
		Reason:         req.Reason,
		Status:         model.ApprovalPending,
	}
	if err := s.approvalRepo.Create(ctx, &request); err != nil {
		return ApprovalResponse{}, fmt.Errorf("failed to create approval request: %w", err)
	}

	s.notifyReviewers(ctx, user, &request)
	return toApprovalResponse(&request), nil
}

func (s *approvalService) ListRequests(ctx context.Context, status string, page, limit int) ([]ApprovalResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	requests, total, err := s.approvalRepo.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch approval requests: %w", err)
	}

	result := make([]ApprovalResponse, 0, len(requests))
	for i := range requests {
		result = append(result, toApprovalResponse(&requests[i]))
	}
	return result, total, nil
}

func (s *approvalService) GetRequest(ctx context.Context, id string) (ApprovalResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return ApprovalResponse{}, fmt.Errorf("invalid request id: %w", err)
	}
	request, err := s.approvalRepo.FindByID(ctx, requestID)
	if err != nil {
		return ApprovalResponse{}, notFound("approval request")
	}
	return toApprovalResponse(request), nil
}

func (s *approvalService) Approve(ctx context.Context, id string, reviewer *model.User, notes string) (ApprovalResponse, error) {
	return s.review(ctx, id, reviewer, notes, true)
}

func (s *approvalService) Reject(ctx context.Context, id string, reviewer *model.User, notes string) (ApprovalResponse, error) {
	return s.review(ctx, id, reviewer, notes, false)
}

// review settles a pending request. An approval writes the explicit permission
// override and invalidates the requester's cached levels before returning, so
// the grant is visible on the next resolution.
func (s *approvalService) review(ctx context.Context, id string, reviewer *model.User, notes string, approve bool) (ApprovalResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return ApprovalResponse{}, fmt.Errorf("invalid request id: %w", err)
	}

	var reviewed *model.ApprovalRequest
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, findErr := s.approvalRepo.FindByID(txCtx, requestID)
		if findErr != nil {
			return notFound("approval request")
		}
		if request.Status != model.ApprovalPending {
			return policyErrorf("request has already been %s", request.Status)
		}
		if request.UserID == reviewer.ID {
			return policyErrorf("you cannot review your own request")
		}

		now := s.now()
		request.ReviewedBy = &reviewer.ID
		request.ReviewedAt = &now
		request.ReviewNotes = notes
		if approve {
			request.Status = model.ApprovalApproved
			perm := model.AppPermission{
				UserID:    request.UserID,
				App:       request.App,
				Level:     request.RequestedLevel,
				GrantedBy: &reviewer.ID,
			}
			if upsertErr := s.permissionRepo.Upsert(txCtx, &perm); upsertErr != nil {
				return fmt.Errorf("failed to write permission override: %w", upsertErr)
			}
		} else {
			request.Status = model.ApprovalRejected
		}

		if updateErr := s.approvalRepo.Update(txCtx, request); updateErr != nil {
			return fmt.Errorf("failed to update approval request: %w", updateErr)
		}
		reviewed = request
		return nil
	})
	if err != nil {
		return ApprovalResponse{}, err
	}

	// Invalidate before returning: a stale cached level must never outlive
	// the review response.
	s.resolver.Invalidate(reviewed.UserID)

	verb := "rejected"
	kind := model.NotifyWarning
	if approve {
		verb = "approved"
		kind = model.NotifySuccess
	}
	s.notifier.Notify(ctx, reviewed.UserID, kind,
		fmt.Sprintf("Access request %s", verb),
		fmt.Sprintf("Your request for %s access to %s was %s", reviewed.RequestedLevel, reviewed.App, verb),
		"/account/permissions")
	if reviewed.User != nil && reviewed.User.Email != "" {
		subject := fmt.Sprintf("Access request %s", verb)
		body := fmt.Sprintf("Your request for %s access to %s was %s by %s.\n",
			reviewed.RequestedLevel, reviewed.App, verb, reviewer.Username)
		if notes != "" {
			body += "Notes: " + notes + "\n"
		}
		if mailErr := s.mailer.SendApprovalNotification(reviewed.User.Email, subject, body); mailErr != nil {
			s.log.Warnw("failed to email review outcome", "request", reviewed.ID, "error", mailErr)
		}
	}
	s.notifier.RecordSecurityEvent(ctx, &reviewed.UserID, model.EventApprovalReviewed,
		fmt.Sprintf("Access request for %s %s by %s", reviewed.App, verb, reviewer.Username),
		"", "", map[string]interface{}{
			"request_id": reviewed.ID.String(),
			"app":        reviewed.App,
			"level":      reviewed.RequestedLevel,
			"decision":   verb,
		})

	return toApprovalResponse(reviewed), nil
}

// AutoApproveOld settles stale pending requests from employees. Customer and
// blogger requests always wait for a human reviewer.
func (s *approvalService) AutoApproveOld(ctx context.Context, age time.Duration, dryRun bool) (int, error) {
	cutoff := s.now().Add(-age)
	stale, err := s.approvalRepo.ListPendingOlderThan(ctx, model.UserTypeEmployee, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale requests: %w", err)
	}
	if dryRun {
		return len(stale), nil
	}

	approved := 0
	for i := range stale {
		request := &stale[i]
		err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			current, findErr := s.approvalRepo.FindByID(txCtx, request.ID)
			if findErr != nil {
				return findErr
			}
			if current.Status != model.ApprovalPending {
				return policyErrorf("already reviewed")
			}
			now := s.now()
			current.Status = model.ApprovalApproved
			current.ReviewedAt = &now
			current.ReviewNotes = "Auto-approved after review window elapsed"
			perm := model.AppPermission{
				UserID: current.UserID,
				App:    current.App,
				Level:  current.RequestedLevel,
			}
			if upsertErr := s.permissionRepo.Upsert(txCtx, &perm); upsertErr != nil {
				return upsertErr
			}
			return s.approvalRepo.Update(txCtx, current)
		})
		if err != nil {
			s.log.Debugw("skipping approval request during auto-approve", "request", request.ID, "error", err)
			continue
		}

		s.resolver.Invalidate(request.UserID)
		s.notifier.Notify(ctx, request.UserID, model.NotifySuccess, "Access request approved",
			fmt.Sprintf("Your request for %s access to %s was approved", request.RequestedLevel, request.App),
			"/account/permissions")
		approved++
	}
	return approved, nil
}

// notifyReviewers fans a new request out to users who can grant it.
func (s *approvalService) notifyReviewers(ctx context.Context, requester *model.User, request *model.ApprovalRequest) {
	reviewers, err := s.userRepo.ListByRoles(ctx, []string{model.RoleBusinessOwner, model.RoleSystemAdmin})
	if err != nil {
		s.log.Warnw("failed to load reviewers for approval request", "error", err)
		return
	}
	for _, reviewer := range reviewers {
		if reviewer.ID == requester.ID {
			continue
		}
		s.notifier.Notify(ctx, reviewer.ID, model.NotifyApproval, "Access request pending",
			fmt.Sprintf("%s requested %s access to %s", requester.Username, request.RequestedLevel, request.App),
			"/admin/approvals/"+request.ID.String())
	}
}

func validApp(app string) bool {
	for _, known := range model.KnownApps {
		if known == app {
			return true
		}
	}
	return false
}

func toApprovalResponse(request *model.ApprovalRequest) ApprovalResponse {
	resp := ApprovalResponse{
		ID:             request.ID.String(),
		UserID:         request.UserID.String(),
		App:            request.App,
		RequestedLevel: request.RequestedLevel,
		Reason:         request.Reason,
		Status:         request.Status,
		ReviewNotes:    request.ReviewNotes,
		CreatedAt:      request.CreatedAt.Format(time.RFC3339),
	}
	if request.User != nil {
		resp.Username = request.User.Username
	}
	if request.ReviewedBy != nil {
		v := request.ReviewedBy.String()
		resp.ReviewedBy = &v
	}
	resp.ReviewedAt = formatTimePtr(request.ReviewedAt)
	return resp
}
