package permission

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
)

// Provider answers the access question for one rule source. ok=false means the
// source has no opinion and resolution falls through to the next provider.
type Provider interface {
	Resolve(ctx context.Context, user *model.User, app string) (level Level, ok bool, err error)
}

// superuserProvider grants admin everywhere to superusers and to admin-type
// employee profiles. First in the chain.
type superuserProvider struct{}

func (superuserProvider) Resolve(_ context.Context, user *model.User, _ string) (Level, bool, error) {
	if user.IsSuperuser || user.Profile.IsAdmin() {
		return LevelAdmin, true, nil
	}
	return LevelNone, false, nil
}

// roleDefaults maps employee role -> app -> default level. Roles not listed
// for an app fall through to the general employee default.
var roleDefaults = map[string]map[string]Level{
	model.RoleSalesManager: {
		model.AppCRM:     LevelAdmin,
		model.AppQuotes:  LevelAdmin,
		model.AppReports: LevelView,
		model.AppWebsite: LevelEdit,
	},
	model.RoleSalesRep: {
		model.AppCRM:    LevelEdit,
		model.AppQuotes: LevelEdit,
	},
	model.RoleProcurementOfficer: {
		model.AppInventory: LevelAdmin,
		model.AppCRM:       LevelView,
		model.AppReports:   LevelView,
	},
	model.RoleAccounting: {
		model.AppFinancial: LevelAdmin,
		model.AppReports:   LevelAdmin,
		model.AppCRM:       LevelView,
		model.AppInventory: LevelView,
		model.AppQuotes:    LevelView,
	},
}

// employeeDefaults are the baseline levels any employee gets regardless of role.
var employeeDefaults = map[string]Level{
	model.AppCRM:       LevelView,
	model.AppQuotes:    LevelView,
	model.AppInventory: LevelView,
}

// roleDefaultProvider applies the per-role heuristics for employee profiles.
// Customers and bloggers have no role defaults; bloggers get edit on blog.
type roleDefaultProvider struct{}

func (roleDefaultProvider) Resolve(_ context.Context, user *model.User, app string) (Level, bool, error) {
	p := user.Profile
	if p == nil {
		return LevelNone, false, nil
	}

	if p.UserType == model.UserTypeBlogger && app == model.AppBlog {
		return LevelEdit, true, nil
	}

	if !p.IsEmployee() {
		return LevelNone, false, nil
	}

	if perApp, ok := roleDefaults[p.Role]; ok {
		if level, ok := perApp[app]; ok {
			return level, true, nil
		}
	}
	if level, ok := employeeDefaults[app]; ok {
		return level, true, nil
	}
	return LevelNone, false, nil
}

// OverrideSource looks up explicit per-(user, app) permission rows. Implemented
// by the app_permissions repository.
type OverrideSource interface {
	PermissionLevel(ctx context.Context, userID uuid.UUID, app string) (string, bool, error)
}

// overrideProvider consults explicit grant rows written by the approval
// workflow. Ahead of role defaults in the chain so a reviewed grant is
// effective even where the role would answer with a lower level.
type overrideProvider struct {
	source OverrideSource
}

func (p overrideProvider) Resolve(ctx context.Context, user *model.User, app string) (Level, bool, error) {
	level, found, err := p.source.PermissionLevel(ctx, user.ID, app)
	if err != nil {
		return LevelNone, false, err
	}
	if !found {
		return LevelNone, false, nil
	}
	return ParseLevel(level), true, nil
}
