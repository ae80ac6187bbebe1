package models

import "time"

type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole maps unknown values to RoleUser.
func ParseRole(value string) Role {
	switch Role(value) {
	case RoleOwner:
		return RoleOwner
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// IsAdmin reports whether the role has admin privileges. Owners are admins.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleOwner
}

// LimitOverrides are per-user ceilings set by an admin. A nil field means
// "use the role default".
type LimitOverrides struct {
	MaxStorageMB    *int64 `json:"max_storage_mb"`
	MaxUploadMB     *int64 `json:"max_upload_mb"`
	FilesLimit      *int64 `json:"files_limit"`
	ShortLinksLimit *int64 `json:"short_links_limit"`
}

type User struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name"`
	Role        Role           `json:"role"`
	Overrides   LimitOverrides `json:"overrides"`
	CreatedAt   time.Time      `json:"created_at"`
}

type File struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	OriginalFilename string    `json:"original_filename"`
	StoredFilename   string    `json:"-"`
	MimeType         string    `json:"mime_type"`
	SizeBytes        int64     `json:"size_bytes"`
	CreatedAt        time.Time `json:"created_at"`
}

type ShortLink struct {
	ID           string     `json:"id"`
	Slug         string     `json:"slug"`
	OwnerID      string     `json:"owner_id"`
	TargetURL    string     `json:"target_url"`
	PasswordHash *string    `json:"-"`
	Clicks       int64      `json:"clicks"`
	ExpiresAt    *time.Time `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HasPassword reports whether resolving the link requires a password.
func (l *ShortLink) HasPassword() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

type AppSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AdminUserInfo struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	Role           Role           `json:"role"`
	Overrides      LimitOverrides `json:"overrides"`
	FileCount      int64          `json:"file_count"`
	ShortLinkCount int64          `json:"short_link_count"`
	StorageBytes   int64          `json:"storage_bytes"`
	CreatedAt      time.Time      `json:"created_at"`
}
