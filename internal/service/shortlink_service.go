package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/internal/quota"
	"github.com/SecuShare/filevault/internal/repository"
	"github.com/SecuShare/filevault/pkg/logger"
)

const (
	slugLength      = 8
	slugAlphabet    = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	slugMaxAttempts = 5
	maxTargetURLLen = 2048
	minLinkPassword = 4
	maxLinkPassword = 72
)

type ShortLinkService struct {
	linkRepo *repository.ShortLinkRepository
	policy   *quota.Policy
	now      func() time.Time
}

func NewShortLinkService(linkRepo *repository.ShortLinkRepository, policy *quota.Policy) *ShortLinkService {
	return &ShortLinkService{linkRepo: linkRepo, policy: policy, now: time.Now}
}

type CreateShortLinkRequest struct {
	TargetURL string
	Password  *string
	ExpiresAt *time.Time
}

// Create admits the link against the owner's short link limit, then stores
// it under a fresh random slug.
func (s *ShortLinkService) Create(ctx context.Context, userID string, role models.Role, req CreateShortLinkRequest) (*models.ShortLink, error) {
	target, err := validateTargetURL(req.TargetURL)
	if err != nil {
		return nil, err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: expiry must be in the future", ErrInvalidInput)
	}

	var passwordHash *string
	if req.Password != nil && *req.Password != "" {
		pw := *req.Password
		if len(pw) < minLinkPassword || len(pw) > maxLinkPassword {
			return nil, fmt.Errorf("%w: password must be %d to %d characters", ErrInvalidInput, minLinkPassword, maxLinkPassword)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		h := string(hash)
		passwordHash = &h
	}

	if err := s.policy.AssertCanCreate(ctx, userID, quota.KindShortLinks, role, 1); err != nil {
		return nil, err
	}

	link := &models.ShortLink{
		ID:           uuid.New().String(),
		OwnerID:      userID,
		TargetURL:    target,
		PasswordHash: passwordHash,
		ExpiresAt:    req.ExpiresAt,
		CreatedAt:    s.now(),
	}

	for attempt := 0; attempt < slugMaxAttempts; attempt++ {
		slug, err := generateSlug()
		if err != nil {
			return nil, err
		}
		link.Slug = slug
		err = s.linkRepo.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !strings.Contains(err.Error(), "UNIQUE constraint failed: short_links.slug") {
			return nil, err
		}
	}
	return nil, errors.New("could not allocate a unique slug")
}

func (s *ShortLinkService) List(ctx context.Context, userID string) ([]*models.ShortLink, error) {
	return s.linkRepo.GetByOwnerID(ctx, userID)
}

func (s *ShortLinkService) Delete(ctx context.Context, slug, userID string) error {
	if err := s.linkRepo.DeleteOwned(ctx, slug, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLinkNotFound
		}
		return err
	}
	logger.Audit("short_link_deleted", userID, map[string]string{"slug": slug})
	return nil
}

// Resolve returns the target of an unprotected link and counts the click.
func (s *ShortLinkService) Resolve(ctx context.Context, slug string) (string, error) {
	link, err := s.lookup(ctx, slug)
	if err != nil {
		return "", err
	}
	if link.HasPassword() {
		return "", ErrPasswordRequired
	}
	return s.click(ctx, link)
}

// Unlock checks the password of a protected link and returns its target.
func (s *ShortLinkService) Unlock(ctx context.Context, slug, password string) (string, error) {
	link, err := s.lookup(ctx, slug)
	if err != nil {
		return "", err
	}
	if link.HasPassword() {
		if password == "" {
			return "", ErrPasswordRequired
		}
		if bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)) != nil {
			return "", ErrInvalidPassword
		}
	}
	return s.click(ctx, link)
}

// DeleteExpired removes links whose expiry has passed.
func (s *ShortLinkService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.linkRepo.DeleteExpired(ctx, s.now())
}

func (s *ShortLinkService) lookup(ctx context.Context, slug string) (*models.ShortLink, error) {
	link, err := s.linkRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	if link.ExpiresAt != nil && !link.ExpiresAt.After(s.now()) {
		return nil, ErrLinkExpired
	}
	return link, nil
}

func (s *ShortLinkService) click(ctx context.Context, link *models.ShortLink) (string, error) {
	if err := s.linkRepo.IncrementClicks(ctx, link.ID); err != nil {
		logger.Warn().Err(err).Str("slug", link.Slug).Msg("Failed to count short link click")
	}
	return link.TargetURL, nil
}

func validateTargetURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxTargetURLLen {
		return "", fmt.Errorf("%w: target URL is required and must be at most %d characters", ErrInvalidInput, maxTargetURLLen)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: target URL must be an absolute http(s) URL", ErrInvalidInput)
	}
	return u.String(), nil
}

func generateSlug() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(slugAlphabet)))
	for i := 0; i < slugLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(slugAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
