package quota

import (
	"context"
	"fmt"

	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/pkg/logger"
)

// Notifier receives breach reports. Implementations must not block.
type Notifier interface {
	Notify(userID, limitName, details string)
}

// Policy gates entity creation and uploads. It only decides; the caller
// performs the write afterwards and no capacity is held in between.
type Policy struct {
	resolver *Resolver
	usage    *Accountant
	notifier Notifier
}

func NewPolicy(resolver *Resolver, usage *Accountant, notifier Notifier) *Policy {
	return &Policy{resolver: resolver, usage: usage, notifier: notifier}
}

// AssertCanCreate checks that userID may add incoming more entities of kind.
// An incoming below 1 counts as 1.
func (p *Policy) AssertCanCreate(ctx context.Context, userID string, kind Kind, role models.Role, incoming int64) error {
	if !kind.IsCount() {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if incoming < 1 {
		incoming = 1
	}

	limit, err := p.resolver.EffectiveLimit(ctx, userID, kind, role)
	if err != nil {
		return err
	}
	if limit.IsUnlimited() {
		return nil
	}

	used, err := p.usage.Usage(ctx, userID, kind)
	if err != nil {
		return fmt.Errorf("%s usage: %w", kind, err)
	}
	if !limit.Exceeded(float64(used), float64(incoming)) {
		return nil
	}

	return p.reject(userID, &LimitExceededError{
		Kind:     kind,
		Used:     float64(used),
		Limit:    limit,
		Incoming: float64(incoming),
		Message: fmt.Sprintf("You have reached your %s limit (%d of %d used)",
			kind.Label(), used, limit.Value()),
	}, true)
}

// AssertUploadAllowed checks a whole batch of file sizes in MB. A single
// failing file rejects the batch.
func (p *Policy) AssertUploadAllowed(ctx context.Context, userID string, role models.Role, fileSizesMB []float64) error {
	defaults, overrides, err := p.resolver.Snapshot(ctx, userID)
	if err != nil {
		return err
	}

	perFile := Resolve(defaults, overrides, KindUploadSize, role).Closed()
	perRequest := Resolve(defaults, overrides, KindFilesPerUpload, role).Closed()
	storageRes := Resolve(defaults, overrides, KindStorage, role)
	dailyRes := Resolve(defaults, overrides, KindDailyUpload, role)
	storageCap, dailyCap := storageRes.Closed(), dailyRes.Closed()

	count := float64(len(fileSizesMB))
	if perRequest.Exceeded(count, 0) {
		return p.reject(userID, &LimitExceededError{
			Kind:     KindFilesPerUpload,
			Incoming: count,
			Limit:    perRequest,
			Message:  fmt.Sprintf("Too many files in one upload (maximum %d)", perRequest.Value()),
		}, false)
	}

	var incoming float64
	for _, size := range fileSizesMB {
		if perFile.Exceeded(size, 0) {
			return p.reject(userID, &LimitExceededError{
				Kind:     KindUploadSize,
				Incoming: size,
				Limit:    perFile,
				Message:  fmt.Sprintf("File exceeds the maximum upload size of %d MB", perFile.Value()),
			}, false)
		}
		incoming += size
	}

	// A missing volume default is an operator problem: reject every batch,
	// empty ones included, and do not mail the user about it.
	for _, res := range []Resolution{dailyRes, storageRes} {
		if res.Source != SourceUnconfigured {
			continue
		}
		logger.Warn().
			Str("component", "quota").
			Str("user_id", userID).
			Str("role", string(role)).
			Str("kind", string(res.Kind)).
			Msg("Upload rejected: volume limit is not configured for role")
		return p.reject(userID, &LimitExceededError{
			Kind:     res.Kind,
			Incoming: incoming,
			Limit:    res.Closed(),
			Message:  fmt.Sprintf("Uploads are unavailable: no %s limit is configured", res.Kind.Label()),
		}, false)
	}

	todayMB, storageMB, err := p.usage.UploadUsage(ctx, userID)
	if err != nil {
		return err
	}

	if dailyCap.Exceeded(todayMB, incoming) {
		return p.reject(userID, &LimitExceededError{
			Kind:     KindDailyUpload,
			Used:     todayMB,
			Incoming: incoming,
			Limit:    dailyCap,
			Message: fmt.Sprintf("Daily upload limit reached (%d of %d MB used today)",
				RoundMB(todayMB), dailyCap.Value()),
		}, true)
	}

	if storageCap.Exceeded(storageMB, incoming) {
		return p.reject(userID, &LimitExceededError{
			Kind:     KindStorage,
			Used:     storageMB,
			Incoming: incoming,
			Limit:    storageCap,
			Message: fmt.Sprintf("Storage limit reached (%d of %d MB used)",
				RoundMB(storageMB), storageCap.Value()),
		}, true)
	}

	return nil
}

func (p *Policy) reject(userID string, e *LimitExceededError, notify bool) error {
	admissionRejections.WithLabelValues(string(e.Kind)).Inc()
	logger.Info().
		Str("component", "quota").
		Str("user_id", userID).
		Str("kind", string(e.Kind)).
		Str("limit", e.Limit.String()).
		Msg("Admission rejected")

	if notify && p.notifier != nil {
		p.notifier.Notify(userID, e.Kind.Label(), e.Message)
	}
	return e
}
