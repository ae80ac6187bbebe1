package quota

import (
	"context"
	"fmt"

	"github.com/SecuShare/filevault/internal/models"
)

// Source records which tier produced a resolution.
type Source string

const (
	SourceOverride     Source = "override"
	SourceRoleDefault  Source = "role_default"
	SourceGlobal       Source = "global_default"
	SourceUnlimited    Source = "unlimited"
	SourceUnconfigured Source = "unconfigured"
)

// Resolution is the outcome of walking the override chain for one kind.
type Resolution struct {
	Kind   Kind
	Limit  Limit
	Source Source
}

// Open maps an unconfigured default to Unlimited. Count ceilings use this so
// a missing row cannot block entity creation.
func (r Resolution) Open() Limit {
	if r.Source == SourceUnconfigured {
		return Unlimited()
	}
	return r.Limit
}

// Closed maps an unconfigured default to 0. Byte-volume and per-request
// ceilings use this so a missing row never grants unlimited uploads.
func (r Resolution) Closed() Limit {
	if r.Source == SourceUnconfigured {
		return LimitOf(0)
	}
	return r.Limit
}

// Resolve walks override → role default (owner as admin) → unconfigured.
// It does no I/O.
func Resolve(defaults ServerDefaults, overrides models.LimitOverrides, kind Kind, role models.Role) Resolution {
	if v := overrideFor(overrides, kind); v != nil && *v > 0 {
		return Resolution{Kind: kind, Limit: LimitOf(*v), Source: SourceOverride}
	}

	roleDefaults := defaults.ForRole(role)
	var setting Setting
	source := SourceRoleDefault
	switch kind {
	case KindFiles:
		setting = roleDefaults.Files
	case KindShortLinks:
		setting = roleDefaults.ShortLinks
	case KindStorage:
		setting = roleDefaults.StorageMB
	case KindDailyUpload:
		setting = roleDefaults.DailyUploadMB
	case KindUploadSize:
		setting, source = defaults.MaxUploadMB, SourceGlobal
	case KindFilesPerUpload:
		setting, source = defaults.MaxFilesPerUpload, SourceGlobal
	}

	switch {
	case !setting.Configured:
		return Resolution{Kind: kind, Source: SourceUnconfigured}
	case setting.Unlimited:
		return Resolution{Kind: kind, Limit: Unlimited(), Source: SourceUnlimited}
	default:
		return Resolution{Kind: kind, Limit: LimitOf(setting.Value), Source: source}
	}
}

func overrideFor(o models.LimitOverrides, kind Kind) *int64 {
	switch kind {
	case KindFiles:
		return o.FilesLimit
	case KindShortLinks:
		return o.ShortLinksLimit
	case KindStorage:
		return o.MaxStorageMB
	case KindUploadSize:
		return o.MaxUploadMB
	default:
		return nil
	}
}

// OverrideSource reads a user's limit overrides.
type OverrideSource interface {
	GetLimitOverrides(ctx context.Context, userID string) (models.LimitOverrides, error)
}

type Resolver struct {
	overrides OverrideSource
	defaults  DefaultsSource
}

func NewResolver(overrides OverrideSource, defaults DefaultsSource) *Resolver {
	return &Resolver{overrides: overrides, defaults: defaults}
}

// Snapshot loads the defaults and the user's overrides for one check.
func (r *Resolver) Snapshot(ctx context.Context, userID string) (ServerDefaults, models.LimitOverrides, error) {
	defaults, err := LoadServerDefaults(ctx, r.defaults)
	if err != nil {
		return ServerDefaults{}, models.LimitOverrides{}, err
	}
	overrides, err := r.overrides.GetLimitOverrides(ctx, userID)
	if err != nil {
		return ServerDefaults{}, models.LimitOverrides{}, fmt.Errorf("load limit overrides: %w", err)
	}
	return defaults, overrides, nil
}

// EffectiveLimit returns the ceiling that applies to userID for kind. A
// missing default resolves to Unlimited.
func (r *Resolver) EffectiveLimit(ctx context.Context, userID string, kind Kind, role models.Role) (Limit, error) {
	defaults, overrides, err := r.Snapshot(ctx, userID)
	if err != nil {
		return Limit{}, err
	}
	return Resolve(defaults, overrides, kind, role).Open(), nil
}
