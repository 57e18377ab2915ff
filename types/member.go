package types

import "time"

const (
	// RoleOwner is assigned to the first member of a room. Privileged actions (bulk-clear)
	// check this role explicitly instead of inferring it from the roster position.
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Member is one (connection, display name) pair of a room's membership. The roster is kept
// in join order.
type Member struct {
	ConnId   string    `json:"socketId"`
	Nick     string    `json:"username"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"-"`
}
