package models

import "time"

// User is the identity-provider account an audited write is attributed to.
// Rows are created or refreshed on the first authenticated request that carries
// the identity, never through the product endpoints.
type User struct {
	ID           string     `json:"id" gorm:"type:varchar(128);primaryKey" validate:"required,max=128"`
	Email        string     `json:"email" gorm:"type:varchar(256);not null;index" validate:"max=256"`
	Name         string     `json:"name" gorm:"type:varchar(256);not null" validate:"max=256"`
	CreatedAtUtc time.Time  `json:"created_at_utc" gorm:"not null"`
	UpdatedAtUtc *time.Time `json:"updated_at_utc,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	IsActive     bool       `json:"is_active" gorm:"not null"`

	CreatedProducts  []Product `json:"-" gorm:"foreignKey:CreatedByID;constraint:OnDelete:RESTRICT"`
	ModifiedProducts []Product `json:"-" gorm:"foreignKey:ModifiedByID;constraint:OnDelete:RESTRICT"`
}

// TableName returns the table name for User model.
func (User) TableName() string {
	return "users"
}

// Clone returns a copy that shares no pointers with u.
func (u User) Clone() User {
	out := u
	out.CreatedProducts = nil
	out.ModifiedProducts = nil
	if u.UpdatedAtUtc != nil {
		v := *u.UpdatedAtUtc
		out.UpdatedAtUtc = &v
	}
	if u.LastLoginAt != nil {
		v := *u.LastLoginAt
		out.LastLoginAt = &v
	}
	return out
}

// User columns refreshed by the login sync.
const (
	UserFieldEmail       = "email"
	UserFieldName        = "name"
	UserFieldLastLoginAt = "last_login_at"
	UserFieldIsActive    = "is_active"
)

// ChangedFields lists the mutable columns whose values differ between u and other.
func (u User) ChangedFields(other User) []string {
	var changed []string
	if u.Email != other.Email {
		changed = append(changed, UserFieldEmail)
	}
	if u.Name != other.Name {
		changed = append(changed, UserFieldName)
	}
	if !equalTimePtr(u.LastLoginAt, other.LastLoginAt) {
		changed = append(changed, UserFieldLastLoginAt)
	}
	if u.IsActive != other.IsActive {
		changed = append(changed, UserFieldIsActive)
	}
	return changed
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
