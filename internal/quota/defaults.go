package quota

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/SecuShare/filevault/internal/models"
	"github.com/SecuShare/filevault/pkg/sanitize"
)

// Setting keys in the app_settings table. Role-scoped keys carry a
// "_user" or "_admin" suffix.
const (
	KeyDailyUploadMBPrefix   = "daily_upload_mb"
	KeyStorageQuotaMBPrefix  = "storage_quota_mb"
	KeyFilesLimitPrefix      = "files_limit"
	KeyShortLinksLimitPrefix = "short_links_limit"

	KeyMaxUploadMB          = "max_upload_mb"
	KeyMaxFilesPerUpload    = "max_files_per_upload"
	KeyAllowedMIMEPrefixes  = "allowed_mime_prefixes"
	KeyDisallowedExtensions = "disallowed_extensions"

	// UnlimitedValue is the explicit "no ceiling" sentinel.
	UnlimitedValue = "unlimited"
)

// RoleKeyPrefixes lists the role-scoped setting prefixes.
var RoleKeyPrefixes = []string{
	KeyDailyUploadMBPrefix,
	KeyStorageQuotaMBPrefix,
	KeyFilesLimitPrefix,
	KeyShortLinksLimitPrefix,
}

// RoleKey builds the settings key for prefix and role. Owners share the
// admin row.
func RoleKey(prefix string, role models.Role) string {
	if role.IsAdmin() {
		return prefix + "_admin"
	}
	return prefix + "_user"
}

// Setting is one parsed numeric server default. Configured is false when
// the row is missing or malformed; that is distinct from Unlimited.
type Setting struct {
	Value      int64
	Unlimited  bool
	Configured bool
}

// ParseSetting accepts a non-negative integer or "unlimited".
func ParseSetting(raw string) (Setting, error) {
	v := strings.TrimSpace(raw)
	if strings.EqualFold(v, UnlimitedValue) {
		return Setting{Unlimited: true, Configured: true}, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return Setting{}, fmt.Errorf("must be a non-negative integer or %q", UnlimitedValue)
	}
	if n < 0 {
		return Setting{}, fmt.Errorf("must not be negative")
	}
	return Setting{Value: n, Configured: true}, nil
}

func settingFrom(values map[string]string, key string) Setting {
	raw, ok := values[key]
	if !ok {
		return Setting{}
	}
	s, err := ParseSetting(raw)
	if err != nil {
		return Setting{}
	}
	return s
}

type RoleDefaults struct {
	DailyUploadMB Setting
	StorageMB     Setting
	Files         Setting
	ShortLinks    Setting
}

// ServerDefaults is a snapshot of the global configuration taken for one
// check. It is never cached across requests.
type ServerDefaults struct {
	User  RoleDefaults
	Admin RoleDefaults

	MaxUploadMB       Setting
	MaxFilesPerUpload Setting

	AllowedMIMEPrefixes  []string
	DisallowedExtensions []string
}

func ParseServerDefaults(values map[string]string) ServerDefaults {
	roleDefaults := func(role models.Role) RoleDefaults {
		return RoleDefaults{
			DailyUploadMB: settingFrom(values, RoleKey(KeyDailyUploadMBPrefix, role)),
			StorageMB:     settingFrom(values, RoleKey(KeyStorageQuotaMBPrefix, role)),
			Files:         settingFrom(values, RoleKey(KeyFilesLimitPrefix, role)),
			ShortLinks:    settingFrom(values, RoleKey(KeyShortLinksLimitPrefix, role)),
		}
	}

	return ServerDefaults{
		User:                 roleDefaults(models.RoleUser),
		Admin:                roleDefaults(models.RoleAdmin),
		MaxUploadMB:          settingFrom(values, KeyMaxUploadMB),
		MaxFilesPerUpload:    settingFrom(values, KeyMaxFilesPerUpload),
		AllowedMIMEPrefixes:  SplitList(values[KeyAllowedMIMEPrefixes]),
		DisallowedExtensions: normalizeExtensions(SplitList(values[KeyDisallowedExtensions])),
	}
}

func (d ServerDefaults) ForRole(role models.Role) RoleDefaults {
	if role.IsAdmin() {
		return d.Admin
	}
	return d.User
}

// MIMEAllowed reports whether mimeType matches one of the allowed prefixes.
// An empty allow-list permits everything.
func (d ServerDefaults) MIMEAllowed(mimeType string) bool {
	if len(d.AllowedMIMEPrefixes) == 0 {
		return true
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, prefix := range d.AllowedMIMEPrefixes {
		if strings.HasPrefix(mimeType, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// ExtensionAllowed checks filename against the disallowed extension list.
func (d ServerDefaults) ExtensionAllowed(filename string) bool {
	ext := sanitize.Extension(filename)
	if ext == "" {
		return true
	}
	for _, blocked := range d.DisallowedExtensions {
		if ext == blocked {
			return false
		}
	}
	return true
}

// SplitList splits a comma-separated setting, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// DefaultsSource reads the raw settings rows.
type DefaultsSource interface {
	GetAllMap(ctx context.Context) (map[string]string, error)
}

// LoadServerDefaults fetches a fresh snapshot.
func LoadServerDefaults(ctx context.Context, src DefaultsSource) (ServerDefaults, error) {
	values, err := src.GetAllMap(ctx)
	if err != nil {
		return ServerDefaults{}, fmt.Errorf("load server defaults: %w", err)
	}
	return ParseServerDefaults(values), nil
}

// NumericSettingKeys lists every key parsed with ParseSetting.
func NumericSettingKeys() []string {
	keys := make([]string, 0, len(RoleKeyPrefixes)*2+2)
	for _, prefix := range RoleKeyPrefixes {
		keys = append(keys, RoleKey(prefix, models.RoleUser), RoleKey(prefix, models.RoleAdmin))
	}
	return append(keys, KeyMaxUploadMB, KeyMaxFilesPerUpload)
}

// ListSettingKeys lists the comma-separated upload filter keys.
func ListSettingKeys() []string {
	return []string{KeyAllowedMIMEPrefixes, KeyDisallowedExtensions}
}
