package domain

import "time"

// Role names the coarse capability set of a user.
type Role string

const (
	RoleCreator  Role = "creator"
	RoleExecutor Role = "executor"
)

// User represents an authenticated identity in the platform.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == "active"
}

func (u *User) IsCreator() bool {
	return u != nil && u.Role == RoleCreator
}
