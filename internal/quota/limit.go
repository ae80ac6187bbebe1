// Package quota decides whether a user may create more entities or upload
// more bytes. It resolves effective ceilings from per-user overrides and
// per-role server defaults, measures live usage from the store, and reports
// breaches to the user through a background notifier.
//
// Checks read usage and then decide. Nothing is reserved, so two concurrent
// requests from one user can both pass a check that only one of them fits.
package quota

import (
	"encoding/json"
	"strconv"
)

// Kind names a governed resource.
type Kind string

const (
	KindFiles      Kind = "files"
	KindShortLinks Kind = "short_links"

	// Byte-volume kinds, all in decimal megabytes.
	KindStorage     Kind = "storage"
	KindUploadSize  Kind = "upload_size"
	KindDailyUpload Kind = "daily_upload"

	KindFilesPerUpload Kind = "files_per_upload"
)

// IsCount reports whether the kind limits a number of live entities.
func (k Kind) IsCount() bool {
	return k == KindFiles || k == KindShortLinks
}

// Label is the human-readable name used in messages.
func (k Kind) Label() string {
	switch k {
	case KindFiles:
		return "file"
	case KindShortLinks:
		return "short link"
	case KindStorage:
		return "storage"
	case KindUploadSize:
		return "upload size"
	case KindDailyUpload:
		return "daily upload"
	case KindFilesPerUpload:
		return "files per upload"
	default:
		return string(k)
	}
}

// Limit is either a non-negative ceiling or Unlimited. The zero value is a
// ceiling of 0.
type Limit struct {
	value     int64
	unlimited bool
}

func Unlimited() Limit {
	return Limit{unlimited: true}
}

// LimitOf returns a finite ceiling. Negative input is clamped to 0.
func LimitOf(n int64) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{value: n}
}

func (l Limit) IsUnlimited() bool {
	return l.unlimited
}

// Value is the ceiling; meaningless when IsUnlimited.
func (l Limit) Value() int64 {
	return l.value
}

// Exceeded reports whether used+incoming goes past the ceiling.
func (l Limit) Exceeded(used, incoming float64) bool {
	if l.unlimited {
		return false
	}
	return used+incoming > float64(l.value)
}

func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(l.value, 10)
}

// MarshalJSON renders a number, or the string "unlimited".
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return json.Marshal("unlimited")
	}
	return json.Marshal(l.value)
}
