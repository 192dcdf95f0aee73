package models

import (
	"time"

	"github.com/google/uuid"
)

// Member roles within a group.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Group is a community circle that organizes paid meetups.
// Username is the globally unique handle used in public join links;
// UniqueID is the short human-readable public id (AL-####).
type Group struct {
	BaseModel
	Name      string    `json:"name"`
	Username  string    `gorm:"uniqueIndex" json:"username"`
	UniqueID  string    `json:"unique_id"`
	Hcode     string    `json:"hcode"`
	CreatedBy uuid.UUID `gorm:"type:uuid;index" json:"created_by"`
}

// GroupMember links a user to a group with a role.
// At most one row may exist per (group, user).
type GroupMember struct {
	BaseModel
	GroupID  uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_group_member" json:"group_id"`
	UserID   uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_group_member" json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
