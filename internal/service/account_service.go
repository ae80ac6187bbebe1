package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/internal/quota"
	"github.com/SecuShare/filevault/internal/repository"
)

const maxDisplayNameLength = 100

// UsageLine is one "X of Y used" row. MB values are rounded to whole MB.
type UsageLine struct {
	Kind  quota.Kind   `json:"kind"`
	Used  int64        `json:"used"`
	Limit quota.Limit  `json:"limit"`
	Unit  string       `json:"unit"`
	From  quota.Source `json:"source"`
}

type QuotaOverview struct {
	Files             UsageLine   `json:"files"`
	ShortLinks        UsageLine   `json:"short_links"`
	Storage           UsageLine   `json:"storage"`
	DailyUpload       UsageLine   `json:"daily_upload"`
	MaxUploadMB       quota.Limit `json:"max_upload_mb"`
	MaxFilesPerUpload quota.Limit `json:"max_files_per_upload"`
	DailyResetsAt     time.Time   `json:"daily_resets_at"`
}

type AccountService struct {
	userRepo *repository.UserRepository
	resolver *quota.Resolver
	usage    *quota.Accountant
	loc      *time.Location
	now      func() time.Time
}

func NewAccountService(
	userRepo *repository.UserRepository,
	resolver *quota.Resolver,
	usage *quota.Accountant,
	loc *time.Location,
) *AccountService {
	if loc == nil {
		loc = time.Local
	}
	return &AccountService{userRepo: userRepo, resolver: resolver, usage: usage, loc: loc, now: time.Now}
}

func (s *AccountService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AccountService) UpdateDisplayName(ctx context.Context, userID, displayName string) (*models.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		return nil, fmt.Errorf("%w: display name must be 1 to %d characters", ErrInvalidInput, maxDisplayNameLength)
	}
	if err := s.userRepo.UpdateDisplayName(ctx, userID, displayName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

// Overview reports current usage against the limits that would be enforced
// right now.
func (s *AccountService) Overview(ctx context.Context, userID string, role models.Role) (*QuotaOverview, error) {
	defaults, overrides, err := s.resolver.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	files, err := s.usage.Usage(ctx, userID, quota.KindFiles)
	if err != nil {
		return nil, err
	}
	links, err := s.usage.Usage(ctx, userID, quota.KindShortLinks)
	if err != nil {
		return nil, err
	}
	todayMB, storageMB, err := s.usage.UploadUsage(ctx, userID)
	if err != nil {
		return nil, err
	}

	open := func(kind quota.Kind, used int64, unit string) UsageLine {
		r := quota.Resolve(defaults, overrides, kind, role)
		return UsageLine{Kind: kind, Used: used, Limit: r.Open(), Unit: unit, From: r.Source}
	}
	closed := func(kind quota.Kind, usedMB float64) UsageLine {
		r := quota.Resolve(defaults, overrides, kind, role)
		return UsageLine{Kind: kind, Used: quota.RoundMB(usedMB), Limit: r.Closed(), Unit: "MB", From: r.Source}
	}

	_, endOfDay := quota.DayBounds(s.now(), s.loc)

	return &QuotaOverview{
		Files:             open(quota.KindFiles, files, "files"),
		ShortLinks:        open(quota.KindShortLinks, links, "links"),
		Storage:           closed(quota.KindStorage, storageMB),
		DailyUpload:       closed(quota.KindDailyUpload, todayMB),
		MaxUploadMB:       quota.Resolve(defaults, overrides, quota.KindUploadSize, role).Closed(),
		MaxFilesPerUpload: quota.Resolve(defaults, overrides, quota.KindFilesPerUpload, role).Closed(),
		DailyResetsAt:     endOfDay.Add(time.Millisecond),
	}, nil
}
