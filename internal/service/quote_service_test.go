package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/quote"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- In-memory fakes ---

type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeQuoteRepo struct {
	quotes map[uuid.UUID]*model.Quote
	items  map[uuid.UUID]*model.QuoteItem
}

func newFakeQuoteRepo() *fakeQuoteRepo {
	return &fakeQuoteRepo{
		quotes: map[uuid.UUID]*model.Quote{},
		items:  map[uuid.UUID]*model.QuoteItem{},
	}
}

var errFakeNotFound = errors.New("record not found")

func (r *fakeQuoteRepo) Create(_ context.Context, q *model.Quote) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	q.CreatedAt = time.Now()
	copied := *q
	r.quotes[q.ID] = &copied
	return nil
}

func (r *fakeQuoteRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return nil, errFakeNotFound
	}
	copied := *q
	return &copied, nil
}

func (r *fakeQuoteRepo) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	q, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, _ := r.ListItems(ctx, id)
	q.Items = items
	return q, nil
}

func (r *fakeQuoteRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeQuoteRepo) FindByAccessToken(_ context.Context, token string) (*model.Quote, error) {
	for _, q := range r.quotes {
		if q.AccessToken == token && token != "" {
			copied := *q
			return &copied, nil
		}
	}
	return nil, errFakeNotFound
}

func (r *fakeQuoteRepo) List(_ context.Context, _ repository.QuoteListFilter) ([]model.Quote, int64, error) {
	var out []model.Quote
	for _, q := range r.quotes {
		out = append(out, *q)
	}
	return out, int64(len(out)), nil
}

func (r *fakeQuoteRepo) Update(_ context.Context, q *model.Quote) error {
	if _, ok := r.quotes[q.ID]; !ok {
		return errFakeNotFound
	}
	copied := *q
	r.quotes[q.ID] = &copied
	return nil
}

func (r *fakeQuoteRepo) CountByPrefix(_ context.Context, prefix string) (int64, error) {
	var n int64
	for _, q := range r.quotes {
		if strings.HasPrefix(q.QuoteNumber, prefix) {
			n++
		}
	}
	return n, nil
}

func (r *fakeQuoteRepo) AdvisoryLock(_ context.Context, _ string) error { return nil }

func (r *fakeQuoteRepo) CreateItem(_ context.Context, item *model.QuoteItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *fakeQuoteRepo) FindItem(_ context.Context, quoteID, itemID uuid.UUID) (*model.QuoteItem, error) {
	item, ok := r.items[itemID]
	if !ok || item.QuoteID != quoteID {
		return nil, errFakeNotFound
	}
	copied := *item
	return &copied, nil
}

func (r *fakeQuoteRepo) UpdateItem(_ context.Context, item *model.QuoteItem) error {
	if _, ok := r.items[item.ID]; !ok {
		return errFakeNotFound
	}
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *fakeQuoteRepo) DeleteItem(_ context.Context, quoteID, itemID uuid.UUID) error {
	item, ok := r.items[itemID]
	if !ok || item.QuoteID != quoteID {
		return errFakeNotFound
	}
	delete(r.items, itemID)
	return nil
}

func (r *fakeQuoteRepo) ListItems(_ context.Context, quoteID uuid.UUID) ([]model.QuoteItem, error) {
	var out []model.QuoteItem
	for _, item := range r.items {
		if item.QuoteID == quoteID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (r *fakeQuoteRepo) ListOpenPastValidity(_ context.Context, openStatuses []string, before time.Time) ([]model.Quote, error) {
	var out []model.Quote
	for _, q := range r.quotes {
		for _, status := range openStatuses {
			if q.Status == status && q.ValidityDate.Before(before) {
				out = append(out, *q)
			}
		}
	}
	return out, nil
}

func (r *fakeQuoteRepo) ListDueFollowups(_ context.Context, openStatuses []string, due time.Time) ([]model.Quote, error) {
	var out []model.Quote
	for _, q := range r.quotes {
		if q.NextFollowup == nil || q.NextFollowup.After(due) {
			continue
		}
		for _, status := range openStatuses {
			if q.Status == status {
				out = append(out, *q)
			}
		}
	}
	return out, nil
}

type fakeClientRepo struct {
	clients      map[uuid.UUID]*model.Client
	interactions []model.CustomerInteraction
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: map[uuid.UUID]*model.Client{}}
}

func (r *fakeClientRepo) Create(_ context.Context, c *model.Client) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	copied := *c
	r.clients[c.ID] = &copied
	return nil
}

func (r *fakeClientRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, errFakeNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeClientRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeClientRepo) List(_ context.Context, _, _ string, _, _ int) ([]model.Client, int64, error) {
	return nil, 0, nil
}

func (r *fakeClientRepo) Update(_ context.Context, c *model.Client) error {
	copied := *c
	r.clients[c.ID] = &copied
	return nil
}

func (r *fakeClientRepo) CreateInteraction(_ context.Context, interaction *model.CustomerInteraction) error {
	r.interactions = append(r.interactions, *interaction)
	return nil
}

func (r *fakeClientRepo) ListInteractions(_ context.Context, clientID uuid.UUID, _, _ int) ([]model.CustomerInteraction, int64, error) {
	var out []model.CustomerInteraction
	for _, i := range r.interactions {
		if i.ClientID == clientID {
			out = append(out, i)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeClientRepo) interactionTypes() []string {
	var types []string
	for _, i := range r.interactions {
		types = append(types, i.Type)
	}
	return types
}

type fakeUserRepo struct {
	users    map[uuid.UUID]*model.User
	managers []model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*model.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = u
	return nil
}
func (r *fakeUserRepo) CreateProfile(_ context.Context, _ *model.UserProfile) error { return nil }
func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return u, nil
}
func (r *fakeUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, errFakeNotFound
}
func (r *fakeUserRepo) FindByUsername(_ context.Context, _ string) (*model.User, error) {
	return nil, errFakeNotFound
}
func (r *fakeUserRepo) List(_ context.Context, _ string, _, _ int) ([]model.User, int64, error) {
	return nil, 0, nil
}
func (r *fakeUserRepo) Update(_ context.Context, _ *model.User) error        { return nil }
func (r *fakeUserRepo) UpdateProfile(_ context.Context, _ *model.UserProfile) error { return nil }
func (r *fakeUserRepo) ListByRoles(_ context.Context, _ []string) ([]model.User, error) {
	return r.managers, nil
}

type notifiedEvent struct {
	UserID uuid.UUID
	Kind   string
	Title  string
}

type fakeNotifier struct {
	notifications []notifiedEvent
	events        []string
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, kind, title, _, _ string) {
	f.notifications = append(f.notifications, notifiedEvent{UserID: userID, Kind: kind, Title: title})
}
func (f *fakeNotifier) List(_ context.Context, _ uuid.UUID, _ bool, _, _ int) ([]NotificationResponse, int64, error) {
	return nil, 0, nil
}
func (f *fakeNotifier) UnreadCount(_ context.Context, _ uuid.UUID) (int64, error) { return 0, nil }
func (f *fakeNotifier) MarkRead(_ context.Context, _, _ uuid.UUID) error          { return nil }
func (f *fakeNotifier) MarkAllRead(_ context.Context, _ uuid.UUID) error          { return nil }
func (f *fakeNotifier) Archive(_ context.Context, _, _ uuid.UUID) error           { return nil }
func (f *fakeNotifier) RecordSecurityEvent(_ context.Context, _ *uuid.UUID, eventType, _, _, _ string, _ map[string]interface{}) {
	f.events = append(f.events, eventType)
}
func (f *fakeNotifier) ListSecurityEvents(_ context.Context, _ string, _, _ int) ([]model.SecurityEvent, int64, error) {
	return nil, 0, nil
}
func (f *fakeNotifier) CleanupSecurityEvents(_ context.Context, _ int, _ bool) (int64, error) {
	return 0, nil
}

type sentMail struct {
	kind      string
	quoteNum  string
	portalURL string
	to        string
}

type fakeMailer struct {
	sent []sentMail
}

func (m *fakeMailer) SendQuote(q *model.Quote, _ *model.Client, portalURL string) error {
	m.sent = append(m.sent, sentMail{kind: "quote", quoteNum: q.QuoteNumber, portalURL: portalURL})
	return nil
}
func (m *fakeMailer) SendQuoteStatusNotification(q *model.Quote, _ *model.Client, change string, _ []string) error {
	m.sent = append(m.sent, sentMail{kind: change, quoteNum: q.QuoteNumber})
	return nil
}
func (m *fakeMailer) SendApprovalNotification(to, _, _ string) error {
	m.sent = append(m.sent, sentMail{kind: "approval", to: to})
	return nil
}

// --- Test harness ---

type quoteFixture struct {
	svc        *quoteService
	quoteRepo  *fakeQuoteRepo
	clientRepo *fakeClientRepo
	userRepo   *fakeUserRepo
	notifier   *fakeNotifier
	mailer     *fakeMailer
	client     *model.Client
	staff      uuid.UUID
	now        time.Time
}

func newQuoteFixture(t *testing.T) *quoteFixture {
	t.Helper()

	quoteRepo := newFakeQuoteRepo()
	clientRepo := newFakeClientRepo()
	userRepo := newFakeUserRepo()
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}

	client := &model.Client{
		Name:   "Acme Hardware",
		Email:  "buyer@acme.test",
		Status: model.ClientStatusLead,
	}
	require.NoError(t, clientRepo.Create(context.Background(), client))

	svc := NewQuoteService(quoteRepo, clientRepo, userRepo, fakeTxManager{},
		notifier, mailer, quote.DefaultApprovalPolicy(), "http://localhost:8080",
		zap.NewNop().Sugar()).(*quoteService)

	fixed := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	return &quoteFixture{
		svc:        svc,
		quoteRepo:  quoteRepo,
		clientRepo: clientRepo,
		userRepo:   userRepo,
		notifier:   notifier,
		mailer:     mailer,
		client:     client,
		staff:      uuid.New(),
		now:        fixed,
	}
}

func (f *quoteFixture) createDraft(t *testing.T, discount string) QuoteResponse {
	t.Helper()
	resp, err := f.svc.CreateQuote(context.Background(), CreateQuoteRequest{
		ClientID:           f.client.ID.String(),
		Title:              "Server rack refresh",
		DiscountPercentage: discount,
		ValidityDate:       "2026-06-30",
	}, f.staff)
	require.NoError(t, err)
	return resp
}

func (f *quoteFixture) addItem(t *testing.T, quoteID string, qty int, price string) QuoteResponse {
	t.Helper()
	resp, err := f.svc.AddItem(context.Background(), quoteID, QuoteItemRequest{
		Description: "line item",
		Quantity:    qty,
		UnitPrice:   price,
	})
	require.NoError(t, err)
	return resp
}

// --- Tests ---

func TestCreateQuoteAssignsSequentialNumbers(t *testing.T) {
	f := newQuoteFixture(t)

	first := f.createDraft(t, "")
	second := f.createDraft(t, "")

	assert.Equal(t, "QUO-2026-00001", first.QuoteNumber)
	assert.Equal(t, "QUO-2026-00002", second.QuoteNumber)
	assert.Equal(t, string(quote.StatusDraft), first.Status)
	assert.Equal(t, 1, first.Version)
	assert.Contains(t, f.clientRepo.interactionTypes(), model.InteractionQuoteDraft)
}

func TestItemMutationsRecomputeTotals(t *testing.T) {
	f := newQuoteFixture(t)
	draft := f.createDraft(t, "5")

	resp := f.addItem(t, draft.ID, 2, "50.00")
	resp = f.addItem(t, resp.ID, 1, "200.00")

	assert.Equal(t, "300.00", resp.Subtotal)
	assert.Equal(t, "15.00", resp.DiscountAmount)
	assert.Equal(t, "42.75", resp.TaxAmount)
	assert.Equal(t, "327.75", resp.TotalAmount)
	assert.Equal(t, 3, resp.Version)

	itemID := resp.Items[0].ID
	removed, err := f.svc.RemoveItem(context.Background(), resp.ID, itemID)
	require.NoError(t, err)
	assert.Equal(t, 4, removed.Version)
	assert.Len(t, removed.Items, 1)
}

func TestApprovalGateTripsOnThresholds(t *testing.T) {
	f := newQuoteFixture(t)
	draft := f.createDraft(t, "")

	resp := f.addItem(t, draft.ID, 1, "12000.00")
	assert.True(t, resp.RequiresApproval)
	assert.Contains(t, resp.ApprovalReason, "high value")

	// Shrinking the quote below the threshold clears the gate.
	itemID := resp.Items[0].ID
	updated, err := f.svc.UpdateItem(context.Background(), resp.ID, itemID, QuoteItemRequest{
		Description: "line item",
		Quantity:    1,
		UnitPrice:   "900.00",
	})
	require.NoError(t, err)
	assert.False(t, updated.RequiresApproval)
	assert.Empty(t, updated.ApprovalReason)
}

func TestSendQuoteGates(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	// No items.
	empty := f.createDraft(t, "")
	_, err := f.svc.SendQuote(ctx, empty.ID, f.staff)
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Reason, "at least one item")

	// Unapproved high-value quote.
	gated := f.createDraft(t, "")
	resp := f.addItem(t, gated.ID, 1, "15000.00")
	_, err = f.svc.SendQuote(ctx, resp.ID, f.staff)
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Reason, "requires approval")

	// Approval unblocks sending.
	_, err = f.svc.ApproveQuote(ctx, resp.ID, uuid.New())
	require.NoError(t, err)
	sent, err := f.svc.SendQuote(ctx, resp.ID, f.staff)
	require.NoError(t, err)
	assert.Equal(t, string(quote.StatusSent), sent.Status)
	require.NotNil(t, sent.SentDate)
	require.NotNil(t, sent.NextFollowup)

	// High-value quotes get the short follow-up window.
	followup, err := time.Parse(time.RFC3339, *sent.NextFollowup)
	require.NoError(t, err)
	assert.True(t, followup.Equal(f.now.AddDate(0, 0, 2)))

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "quote", f.mailer.sent[0].kind)
	assert.Contains(t, f.mailer.sent[0].portalURL, "/portal/quotes/")
	assert.Contains(t, f.clientRepo.interactionTypes(), model.InteractionQuoteSent)
}

func TestSendRefusedOnPastValidity(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	resp, err := f.svc.CreateQuote(ctx, CreateQuoteRequest{
		ClientID:     f.client.ID.String(),
		Title:        "Stale offer",
		ValidityDate: "2026-05-01",
	}, f.staff)
	require.NoError(t, err)
	resp = f.addItem(t, resp.ID, 1, "100.00")

	_, err = f.svc.SendQuote(ctx, resp.ID, f.staff)
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Reason, "already passed")
}

func TestTrackClientViewIsIdempotentOnStatus(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	draft := f.createDraft(t, "")
	resp := f.addItem(t, draft.ID, 1, "100.00")
	sent, err := f.svc.SendQuote(ctx, resp.ID, f.staff)
	require.NoError(t, err)

	stored, err := f.quoteRepo.FindByID(ctx, uuid.MustParse(sent.ID))
	require.NoError(t, err)
	token := stored.AccessToken
	require.NotEmpty(t, token)

	first, err := f.svc.TrackClientView(ctx, token, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, string(quote.StatusViewed), first.Status)
	assert.Equal(t, 1, first.ViewCount)
	require.NotNil(t, first.ViewedDate)

	second, err := f.svc.TrackClientView(ctx, token, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, string(quote.StatusViewed), second.Status)
	assert.Equal(t, 2, second.ViewCount)
	assert.Equal(t, *first.ViewedDate, *second.ViewedDate)
}

func TestAcceptQuoteUpdatesClientAggregates(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	draft := f.createDraft(t, "")
	resp := f.addItem(t, draft.ID, 2, "50.00")
	resp = f.addItem(t, resp.ID, 1, "200.00")
	sent, err := f.svc.SendQuote(ctx, resp.ID, f.staff)
	require.NoError(t, err)

	accepted, err := f.svc.AcceptQuote(ctx, sent.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, string(quote.StatusAccepted), accepted.Status)
	require.NotNil(t, accepted.ResponseDate)
	assert.Nil(t, accepted.NextFollowup)

	client, err := f.clientRepo.FindByID(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, client.TotalOrders)
	assert.Equal(t, "345.00", client.TotalValue.StringFixed(2)) // 300 - 0% + 15% tax
	assert.Equal(t, "345.00", client.AverageOrderValue.StringFixed(2))
	assert.Equal(t, model.ClientStatusActive, client.Status)

	assert.Contains(t, f.clientRepo.interactionTypes(), model.InteractionQuoteAccepted)
}

func TestAcceptHighValueQuoteNotifiesManagement(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	manager := model.User{ID: uuid.New(), IsActive: true}
	f.userRepo.managers = []model.User{manager}

	draft := f.createDraft(t, "")
	resp := f.addItem(t, draft.ID, 1, "11000.00")
	_, err := f.svc.ApproveQuote(ctx, resp.ID, uuid.New())
	require.NoError(t, err)
	sent, err := f.svc.SendQuote(ctx, resp.ID, f.staff)
	require.NoError(t, err)

	_, err = f.svc.AcceptQuote(ctx, sent.ID, nil)
	require.NoError(t, err)

	var managerNotified bool
	for _, n := range f.notifier.notifications {
		if n.UserID == manager.ID && n.Title == "High-value quote accepted" {
			managerNotified = true
		}
	}
	assert.True(t, managerNotified)
}

func TestRejectSchedulesDistantFollowup(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	draft := f.createDraft(t, "")
	resp := f.addItem(t, draft.ID, 1, "100.00")
	sent, err := f.svc.SendQuote(ctx, resp.ID, f.staff)
	require.NoError(t, err)

	rejected, err := f.svc.RejectQuote(ctx, sent.ID, nil, "price too high")
	require.NoError(t, err)
	assert.Equal(t, string(quote.StatusRejected), rejected.Status)
	require.NotNil(t, rejected.NextFollowup)

	followup, err := time.Parse(time.RFC3339, *rejected.NextFollowup)
	require.NoError(t, err)
	assert.True(t, followup.Equal(f.now.AddDate(0, 0, 30)))

	assert.Contains(t, f.clientRepo.interactionTypes(), model.InteractionQuoteRejected)
}

func TestTerminalQuotesAreImmutable(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	draft := f.createDraft(t, "")
	resp := f.addItem(t, draft.ID, 1, "100.00")
	sent, err := f.svc.SendQuote(ctx, resp.ID, f.staff)
	require.NoError(t, err)
	rejected, err := f.svc.RejectQuote(ctx, sent.ID, nil, "")
	require.NoError(t, err)

	var policyErr *PolicyError

	_, err = f.svc.AddItem(ctx, rejected.ID, QuoteItemRequest{
		Description: "late addition", Quantity: 1, UnitPrice: "10.00",
	})
	require.ErrorAs(t, err, &policyErr)

	_, err = f.svc.AcceptQuote(ctx, rejected.ID, nil)
	require.ErrorAs(t, err, &policyErr)

	_, err = f.svc.SendQuote(ctx, rejected.ID, f.staff)
	require.ErrorAs(t, err, &policyErr)

	title := "renamed"
	_, err = f.svc.UpdateQuote(ctx, rejected.ID, UpdateQuoteRequest{Title: &title, Version: rejected.Version})
	require.ErrorAs(t, err, &policyErr)
}

func TestAcceptedQuoteLocksItemsButAllowsConvert(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	draft := f.createDraft(t, "")
	resp := f.addItem(t, draft.ID, 1, "100.00")
	sent, err := f.svc.SendQuote(ctx, resp.ID, f.staff)
	require.NoError(t, err)
	accepted, err := f.svc.AcceptQuote(ctx, sent.ID, nil)
	require.NoError(t, err)

	var policyErr *PolicyError
	_, err = f.svc.AddItem(ctx, accepted.ID, QuoteItemRequest{
		Description: "extra", Quantity: 1, UnitPrice: "10.00",
	})
	require.ErrorAs(t, err, &policyErr)

	converted, err := f.svc.ConvertQuote(ctx, accepted.ID, f.staff)
	require.NoError(t, err)
	assert.Equal(t, string(quote.StatusConverted), converted.Status)
}

func TestStaleVersionIsRejected(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	draft := f.createDraft(t, "")
	resp := f.addItem(t, draft.ID, 1, "100.00") // version now 2

	title := "updated title"
	_, err := f.svc.UpdateQuote(ctx, resp.ID, UpdateQuoteRequest{Title: &title, Version: 1})
	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Reason, "modified concurrently")

	updated, err := f.svc.UpdateQuote(ctx, resp.ID, UpdateQuoteRequest{Title: &title, Version: resp.Version})
	require.NoError(t, err)
	assert.Equal(t, "updated title", updated.Title)
}

func TestExpireOpenQuotesSweep(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	draft := f.createDraft(t, "")
	resp := f.addItem(t, draft.ID, 1, "100.00")
	sent, err := f.svc.SendQuote(ctx, resp.ID, f.staff)
	require.NoError(t, err)

	// Validity elapses.
	f.svc.now = func() time.Time { return time.Date(2026, 7, 15, 9, 0, 0, 0, time.UTC) }

	count, err := f.svc.ExpireOpenQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := f.quoteRepo.FindByID(ctx, uuid.MustParse(sent.ID))
	require.NoError(t, err)
	assert.Equal(t, string(quote.StatusExpired), stored.Status)
	assert.Nil(t, stored.NextFollowup)
	assert.Contains(t, f.clientRepo.interactionTypes(), model.InteractionQuoteExpired)

	// Rerun finds nothing new.
	count, err = f.svc.ExpireOpenQuotes(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSendFollowupRemindersReschedules(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	assignee := uuid.New()
	resp, err := f.svc.CreateQuote(ctx, CreateQuoteRequest{
		ClientID:     f.client.ID.String(),
		Title:        "Patience test",
		ValidityDate: "2026-12-31",
		AssignedTo:   assignee.String(),
	}, f.staff)
	require.NoError(t, err)
	resp = f.addItem(t, resp.ID, 1, "100.00")
	_, err = f.svc.SendQuote(ctx, resp.ID, f.staff)
	require.NoError(t, err)

	// Three days later the follow-up is due.
	f.svc.now = func() time.Time { return time.Date(2026, 6, 5, 9, 0, 0, 0, time.UTC) }

	count, err := f.svc.SendFollowupReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var reminded bool
	for _, n := range f.notifier.notifications {
		if n.UserID == assignee && n.Title == "Quote follow-up due" {
			reminded = true
		}
	}
	assert.True(t, reminded)

	// Rescheduled into the future: immediate rerun is quiet.
	count, err = f.svc.SendFollowupReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPortalLookupByToken(t *testing.T) {
	f := newQuoteFixture(t)
	ctx := context.Background()

	draft := f.createDraft(t, "")
	resp := f.addItem(t, draft.ID, 1, "100.00")
	sent, err := f.svc.SendQuote(ctx, resp.ID, f.staff)
	require.NoError(t, err)

	stored, err := f.quoteRepo.FindByID(ctx, uuid.MustParse(sent.ID))
	require.NoError(t, err)

	found, err := f.svc.GetQuoteByToken(ctx, stored.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, found.ID)

	_, err = f.svc.GetQuoteByToken(ctx, "bogus")
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}
