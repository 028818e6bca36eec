package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/cache"
	"backend/internal/model"
	"backend/internal/permission"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeApprovalRepo struct {
	requests map[uuid.UUID]*model.ApprovalRequest
}

func newFakeApprovalRepo() *fakeApprovalRepo {
	return &fakeApprovalRepo{requests: map[uuid.UUID]*model.ApprovalRequest{}}
}

func (r *fakeApprovalRepo) Create(_ context.Context, req *model.ApprovalRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	copied := *req
	r.requests[req.ID] = &copied
	return nil
}

func (r *fakeApprovalRepo) FindByID(_ context.Context, id uuid.UUID) (*model.ApprovalRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, errFakeNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *fakeApprovalRepo) FindPending(_ context.Context, userID uuid.UUID, app string) (*model.ApprovalRequest, error) {
	for _, req := range r.requests {
		if req.UserID == userID && req.App == app && req.Status == model.ApprovalPending {
			copied := *req
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeApprovalRepo) List(_ context.Context, status string, _, _ int) ([]model.ApprovalRequest, int64, error) {
	var out []model.ApprovalRequest
	for _, req := range r.requests {
		if status == "" || req.Status == status {
			out = append(out, *req)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeApprovalRepo) Update(_ context.Context, req *model.ApprovalRequest) error {
	if _, ok := r.requests[req.ID]; !ok {
		return errFakeNotFound
	}
	copied := *req
	r.requests[req.ID] = &copied
	return nil
}

func (r *fakeApprovalRepo) ListPendingOlderThan(_ context.Context, userType string, cutoff time.Time) ([]model.ApprovalRequest, error) {
	var out []model.ApprovalRequest
	for _, req := range r.requests {
		if req.Status != model.ApprovalPending || !req.CreatedAt.Before(cutoff) {
			continue
		}
		if userType != "" {
			if req.User == nil || req.User.Profile == nil || req.User.Profile.UserType != userType {
				continue
			}
		}
		out = append(out, *req)
	}
	return out, nil
}

type fakePermissionRepo struct {
	grants map[string]model.AppPermission
}

func newFakePermissionRepo() *fakePermissionRepo {
	return &fakePermissionRepo{grants: map[string]model.AppPermission{}}
}

func permKey(userID uuid.UUID, app string) string { return userID.String() + ":" + app }

func (r *fakePermissionRepo) PermissionLevel(_ context.Context, userID uuid.UUID, app string) (string, bool, error) {
	perm, ok := r.grants[permKey(userID, app)]
	if !ok {
		return "", false, nil
	}
	return perm.Level, true, nil
}

func (r *fakePermissionRepo) Upsert(_ context.Context, perm *model.AppPermission) error {
	r.grants[permKey(perm.UserID, perm.App)] = *perm
	return nil
}

func (r *fakePermissionRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.AppPermission, error) {
	var out []model.AppPermission
	for _, perm := range r.grants {
		if perm.UserID == userID {
			out = append(out, perm)
		}
	}
	return out, nil
}

func (r *fakePermissionRepo) Delete(_ context.Context, userID uuid.UUID, app string) error {
	delete(r.grants, permKey(userID, app))
	return nil
}

type approvalFixture struct {
	svc       *approvalService
	repo      *fakeApprovalRepo
	permRepo  *fakePermissionRepo
	userRepo  *fakeUserRepo
	notifier  *fakeNotifier
	mailer    *fakeMailer
	resolver  *permission.Resolver
	requester *model.User
	reviewer  *model.User
}

func newApprovalFixture(t *testing.T) *approvalFixture {
	t.Helper()

	repo := newFakeApprovalRepo()
	permRepo := newFakePermissionRepo()
	userRepo := newFakeUserRepo()
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	resolver := permission.NewResolver(cache.NewMemoryStore(), permRepo, nil)

	requester := &model.User{
		ID:       uuid.New(),
		Username: "rep",
		Email:    "rep@store.test",
		IsActive: true,
		Profile: &model.UserProfile{
			UserType:   model.UserTypeEmployee,
			Department: model.DeptSales,
			Role:       model.RoleSalesRep,
		},
	}
	reviewer := &model.User{
		ID:       uuid.New(),
		Username: "owner",
		Email:    "owner@store.test",
		IsActive: true,
		Profile: &model.UserProfile{
			UserType: model.UserTypeEmployee,
			Role:     model.RoleBusinessOwner,
		},
	}
	userRepo.users[requester.ID] = requester
	userRepo.users[reviewer.ID] = reviewer
	userRepo.managers = []model.User{*reviewer}

	svc := NewApprovalService(repo, permRepo, userRepo, fakeTxManager{},
		resolver, notifier, mailer, zap.NewNop().Sugar()).(*approvalService)

	return &approvalFixture{
		svc:       svc,
		repo:      repo,
		permRepo:  permRepo,
		userRepo:  userRepo,
		notifier:  notifier,
		mailer:    mailer,
		resolver:  resolver,
		requester: requester,
		reviewer:  reviewer,
	}
}

func (f *approvalFixture) submit(t *testing.T) ApprovalResponse {
	t.Helper()
	resp, err := f.svc.CreateRequest(context.Background(), f.requester.ID, CreateApprovalRequest{
		App:            model.AppInventory,
		RequestedLevel: "edit",
		Reason:         "need to adjust stock counts",
	})
	require.NoError(t, err)

	// The real repository preloads the requester on reads.
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	f.repo.requests[id].User = f.requester

	return resp
}

func TestCreateRequestNotifiesReviewers(t *testing.T) {
	f := newApprovalFixture(t)

	resp := f.submit(t)
	assert.Equal(t, model.ApprovalPending, resp.Status)
	assert.Equal(t, model.AppInventory, resp.App)
	assert.Equal(t, "edit", resp.RequestedLevel)

	var reviewerNotified bool
	for _, n := range f.notifier.notifications {
		if n.UserID == f.reviewer.ID && n.Kind == model.NotifyApproval {
			reviewerNotified = true
		}
	}
	assert.True(t, reviewerNotified)
}

func TestCreateRequestRejectsUnknownAppAndLevel(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()

	var policyErr *PolicyError
	_, err := f.svc.CreateRequest(ctx, f.requester.ID, CreateApprovalRequest{
		App: "warehouse", RequestedLevel: "edit", Reason: "x",
	})
	require.ErrorAs(t, err, &policyErr)

	_, err = f.svc.CreateRequest(ctx, f.requester.ID, CreateApprovalRequest{
		App: model.AppInventory, RequestedLevel: "nonsense", Reason: "x",
	})
	require.ErrorAs(t, err, &policyErr)
}

func TestCreateRequestConflictsWhenAlreadySatisfied(t *testing.T) {
	f := newApprovalFixture(t)

	// Employee baseline for inventory is already view.
	_, err := f.svc.CreateRequest(context.Background(), f.requester.ID, CreateApprovalRequest{
		App: model.AppInventory, RequestedLevel: "view", Reason: "x",
	})
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Reason, "already have")
}

func TestCreateRequestDedupesPending(t *testing.T) {
	f := newApprovalFixture(t)

	f.submit(t)
	_, err := f.svc.CreateRequest(context.Background(), f.requester.ID, CreateApprovalRequest{
		App: model.AppInventory, RequestedLevel: "admin", Reason: "second try",
	})
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Reason, "pending request")
}

func TestApproveWritesOverrideAndInvalidatesCache(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()

	// Warm the cache at the baseline level first.
	before, err := f.resolver.Resolve(ctx, f.requester, model.AppInventory)
	require.NoError(t, err)
	assert.Equal(t, permission.LevelView, before)

	resp := f.submit(t)
	approved, err := f.svc.Approve(ctx, resp.ID, f.reviewer, "fine by me")
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, f.reviewer.ID.String(), *approved.ReviewedBy)
	require.NotNil(t, approved.ReviewedAt)

	// The grant is effective immediately, not after cache expiry.
	after, err := f.resolver.Resolve(ctx, f.requester, model.AppInventory)
	require.NoError(t, err)
	assert.Equal(t, permission.LevelEdit, after)

	assert.Contains(t, f.notifier.events, model.EventApprovalReviewed)

	var requesterNotified bool
	for _, n := range f.notifier.notifications {
		if n.UserID == f.requester.ID && n.Kind == model.NotifySuccess {
			requesterNotified = true
		}
	}
	assert.True(t, requesterNotified)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "approval", f.mailer.sent[0].kind)
	assert.Equal(t, f.requester.Email, f.mailer.sent[0].to)
}

func TestRejectLeavesPermissionsUntouched(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()

	resp := f.submit(t)
	rejected, err := f.svc.Reject(ctx, resp.ID, f.reviewer, "not needed for this role")
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalRejected, rejected.Status)
	assert.Equal(t, "not needed for this role", rejected.ReviewNotes)

	assert.Empty(t, f.permRepo.grants)
	level, err := f.resolver.Resolve(ctx, f.requester, model.AppInventory)
	require.NoError(t, err)
	assert.Equal(t, permission.LevelView, level)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, f.requester.Email, f.mailer.sent[0].to)
}

func TestSelfReviewForbidden(t *testing.T) {
	f := newApprovalFixture(t)

	resp := f.submit(t)
	_, err := f.svc.Approve(context.Background(), resp.ID, f.requester, "approving myself")
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Reason, "own request")
}

func TestReviewIsTerminal(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()

	resp := f.submit(t)
	_, err := f.svc.Approve(ctx, resp.ID, f.reviewer, "")
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, resp.ID, f.reviewer, "again")
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Reason, "already been")

	_, err = f.svc.Reject(ctx, resp.ID, f.reviewer, "flip it")
	require.ErrorAs(t, err, &policyErr)
}

func TestAutoApproveOldEmployeeRequests(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()

	stale := &model.ApprovalRequest{
		UserID:         f.requester.ID,
		User:           f.requester,
		App:            model.AppInventory,
		RequestedLevel: "edit",
		Status:         model.ApprovalPending,
		CreatedAt:      time.Now().Add(-96 * time.Hour),
	}
	require.NoError(t, f.repo.Create(ctx, stale))

	customer := &model.User{
		ID:       uuid.New(),
		Username: "shopper",
		IsActive: true,
		Profile:  &model.UserProfile{UserType: model.UserTypeCustomer},
	}
	customerReq := &model.ApprovalRequest{
		UserID:         customer.ID,
		User:           customer,
		App:            model.AppBlog,
		RequestedLevel: "edit",
		Status:         model.ApprovalPending,
		CreatedAt:      time.Now().Add(-96 * time.Hour),
	}
	require.NoError(t, f.repo.Create(ctx, customerReq))

	// Dry run reports without mutating.
	count, err := f.svc.AutoApproveOld(ctx, 72*time.Hour, true)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, f.permRepo.grants)

	count, err = f.svc.AutoApproveOld(ctx, 72*time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	settled, err := f.repo.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, settled.Status)

	level, _, err := f.permRepo.PermissionLevel(ctx, f.requester.ID, model.AppInventory)
	require.NoError(t, err)
	assert.Equal(t, "edit", level)

	// Customer requests wait for a human.
	waiting, err := f.repo.FindByID(ctx, customerReq.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalPending, waiting.Status)
}
