package permission

import (
	"context"
	"testing"
	"time"

	"backend/internal/cache"
	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOverrides is an in-memory OverrideSource keyed by user+app.
type fakeOverrides struct {
	grants map[string]string
	calls  int
}

func (f *fakeOverrides) PermissionLevel(_ context.Context, userID uuid.UUID, app string) (string, bool, error) {
	f.calls++
	level, ok := f.grants[userID.String()+":"+app]
	return level, ok, nil
}

func newTestResolver(overrides *fakeOverrides) *Resolver {
	if overrides == nil {
		overrides = &fakeOverrides{grants: map[string]string{}}
	}
	return NewResolver(cache.NewMemoryStore(), overrides, nil)
}

func employee(role, department string) *model.User {
	return &model.User{
		ID:       uuid.New(),
		IsActive: true,
		Profile: &model.UserProfile{
			UserType:   model.UserTypeEmployee,
			Role:       role,
			Department: department,
		},
	}
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, LevelAdmin.Satisfies(LevelEdit))
	assert.True(t, LevelEdit.Satisfies(LevelView))
	assert.True(t, LevelView.Satisfies(LevelNone))
	assert.False(t, LevelView.Satisfies(LevelEdit))
	assert.False(t, LevelNone.Satisfies(LevelView))

	// Reflexive at every level.
	for _, l := range []Level{LevelNone, LevelView, LevelEdit, LevelAdmin} {
		assert.True(t, l.Satisfies(l))
	}
}

func TestParseLevelRoundTrip(t *testing.T) {
	for _, l := range []Level{LevelNone, LevelView, LevelEdit, LevelAdmin} {
		assert.Equal(t, l, ParseLevel(l.String()))
	}
	assert.Equal(t, LevelNone, ParseLevel("garbage"))
}

func TestResolveSuperuser(t *testing.T) {
	r := newTestResolver(nil)
	user := &model.User{ID: uuid.New(), IsActive: true, IsSuperuser: true}

	for _, app := range model.KnownApps {
		level, err := r.Resolve(context.Background(), user, app)
		require.NoError(t, err)
		assert.Equal(t, LevelAdmin, level, "superuser should be admin on %s", app)
	}
}

func TestResolveAdminProfile(t *testing.T) {
	r := newTestResolver(nil)

	owner := employee(model.RoleBusinessOwner, "")
	level, err := r.Resolve(context.Background(), owner, model.AppFinancial)
	require.NoError(t, err)
	assert.Equal(t, LevelAdmin, level)

	adminDept := employee(model.RoleSalesRep, model.DeptAdmin)
	level, err = r.Resolve(context.Background(), adminDept, model.AppAdmin)
	require.NoError(t, err)
	assert.Equal(t, LevelAdmin, level)
}

func TestResolveRoleDefaults(t *testing.T) {
	r := newTestResolver(nil)
	ctx := context.Background()

	cases := []struct {
		role string
		app  string
		want Level
	}{
		{model.RoleSalesManager, model.AppCRM, LevelAdmin},
		{model.RoleSalesManager, model.AppQuotes, LevelAdmin},
		{model.RoleSalesManager, model.AppReports, LevelView},
		{model.RoleSalesRep, model.AppQuotes, LevelEdit},
		{model.RoleSalesRep, model.AppCRM, LevelEdit},
		{model.RoleSalesRep, model.AppFinancial, LevelNone},
		{model.RoleSalesRep, model.AppInventory, LevelView}, // employee baseline
		{model.RoleProcurementOfficer, model.AppInventory, LevelAdmin},
		{model.RoleProcurementOfficer, model.AppQuotes, LevelView}, // employee baseline
		{model.RoleAccounting, model.AppFinancial, LevelAdmin},
		{model.RoleAccounting, model.AppQuotes, LevelView},
	}
	for _, tc := range cases {
		level, err := r.Resolve(ctx, employee(tc.role, ""), tc.app)
		require.NoError(t, err)
		assert.Equal(t, tc.want, level, "%s on %s", tc.role, tc.app)
	}
}

func TestResolveBloggerAndCustomer(t *testing.T) {
	r := newTestResolver(nil)
	ctx := context.Background()

	blogger := &model.User{ID: uuid.New(), IsActive: true,
		Profile: &model.UserProfile{UserType: model.UserTypeBlogger}}
	level, err := r.Resolve(ctx, blogger, model.AppBlog)
	require.NoError(t, err)
	assert.Equal(t, LevelEdit, level)
	level, err = r.Resolve(ctx, blogger, model.AppQuotes)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)

	customer := &model.User{ID: uuid.New(), IsActive: true,
		Profile: &model.UserProfile{UserType: model.UserTypeCustomer}}
	for _, app := range model.KnownApps {
		level, err := r.Resolve(ctx, customer, app)
		require.NoError(t, err)
		assert.Equal(t, LevelNone, level, "customer should have none on %s", app)
	}
}

func TestResolveMissingProfileAndInactive(t *testing.T) {
	r := newTestResolver(nil)
	ctx := context.Background()

	noProfile := &model.User{ID: uuid.New(), IsActive: true}
	level, err := r.Resolve(ctx, noProfile, model.AppQuotes)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)

	inactive := employee(model.RoleSalesManager, "")
	inactive.IsActive = false
	level, err = r.Resolve(ctx, inactive, model.AppQuotes)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)

	level, err = r.Resolve(ctx, nil, model.AppQuotes)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)
}

func TestResolveExplicitOverride(t *testing.T) {
	user := &model.User{ID: uuid.New(), IsActive: true,
		Profile: &model.UserProfile{UserType: model.UserTypeCustomer}}
	overrides := &fakeOverrides{grants: map[string]string{
		user.ID.String() + ":" + model.AppBlog: "edit",
	}}
	r := newTestResolver(overrides)

	level, err := r.Resolve(context.Background(), user, model.AppBlog)
	require.NoError(t, err)
	assert.Equal(t, LevelEdit, level)
}

func TestOverrideBeatsRoleDefault(t *testing.T) {
	rep := employee(model.RoleSalesRep, "")
	overrides := &fakeOverrides{grants: map[string]string{
		rep.ID.String() + ":" + model.AppInventory: "edit",
	}}
	r := newTestResolver(overrides)

	// Employee baseline would answer view; the reviewed grant wins.
	level, err := r.Resolve(context.Background(), rep, model.AppInventory)
	require.NoError(t, err)
	assert.Equal(t, LevelEdit, level)
}

func TestResolveCachesResults(t *testing.T) {
	user := &model.User{ID: uuid.New(), IsActive: true,
		Profile: &model.UserProfile{UserType: model.UserTypeCustomer}}
	overrides := &fakeOverrides{grants: map[string]string{
		user.ID.String() + ":" + model.AppQuotes: "view",
	}}
	r := newTestResolver(overrides)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		level, err := r.Resolve(ctx, user, model.AppQuotes)
		require.NoError(t, err)
		assert.Equal(t, LevelView, level)
	}
	assert.Equal(t, 1, overrides.calls, "repeated resolutions must hit the cache")
}

func TestInvalidateEvictsCachedLevels(t *testing.T) {
	user := &model.User{ID: uuid.New(), IsActive: true,
		Profile: &model.UserProfile{UserType: model.UserTypeCustomer}}
	overrides := &fakeOverrides{grants: map[string]string{}}
	r := newTestResolver(overrides)
	ctx := context.Background()

	level, err := r.Resolve(ctx, user, model.AppQuotes)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)

	// Grant lands, cache still says none until invalidated.
	overrides.grants[user.ID.String()+":"+model.AppQuotes] = "edit"
	level, err = r.Resolve(ctx, user, model.AppQuotes)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)

	r.Invalidate(user.ID)

	level, err = r.Resolve(ctx, user, model.AppQuotes)
	require.NoError(t, err)
	assert.Equal(t, LevelEdit, level)
}

func TestCacheTTLExpiry(t *testing.T) {
	user := &model.User{ID: uuid.New(), IsActive: true,
		Profile: &model.UserProfile{UserType: model.UserTypeCustomer}}
	overrides := &fakeOverrides{grants: map[string]string{}}
	r := newTestResolver(overrides).WithTTL(time.Millisecond)
	ctx := context.Background()

	_, err := r.Resolve(ctx, user, model.AppQuotes)
	require.NoError(t, err)

	overrides.grants[user.ID.String()+":"+model.AppQuotes] = "admin"
	time.Sleep(5 * time.Millisecond)

	level, err := r.Resolve(ctx, user, model.AppQuotes)
	require.NoError(t, err)
	assert.Equal(t, LevelAdmin, level)
}

func TestCheckReturnsPermissionError(t *testing.T) {
	r := newTestResolver(nil)
	rep := employee(model.RoleSalesRep, "")

	err := r.Check(context.Background(), rep, model.AppQuotes, LevelEdit)
	assert.NoError(t, err)

	err = r.Check(context.Background(), rep, model.AppQuotes, LevelAdmin)
	require.Error(t, err)
	permErr, ok := err.(*PermissionError)
	require.True(t, ok)
	assert.Equal(t, model.AppQuotes, permErr.App)
	assert.Equal(t, LevelAdmin, permErr.Required)
	assert.Equal(t, LevelEdit, permErr.Actual)
}
