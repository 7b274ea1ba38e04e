package models

import (
	"time"

	"github.com/google/uuid"
)

// TeamRole is a member's role within a team.
type TeamRole string

const (
	RoleOwner  TeamRole = "owner"
	RoleMember TeamRole = "member"
)

// Team is an administrative group owning a namespace.
// Maps to: teams table
type Team struct {
	TeamID    uuid.UUID `db:"team_id" json:"team_id"`
	Name      string    `db:"name" json:"name"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TeamMember is a user's membership in a team.
// Maps to: team_members table
type TeamMember struct {
	TeamID   uuid.UUID `db:"team_id" json:"team_id"`
	Username string    `db:"username" json:"username"`
	Role     TeamRole  `db:"role" json:"role"`
}

// Namespace is the unique name-prefix owned by a team. Immutable after
// creation.
// Maps to: namespaces table
type Namespace struct {
	NamespaceID uuid.UUID `db:"namespace_id" json:"namespace_id"`
	Name        string    `db:"name" json:"name"`
	TeamID      uuid.UUID `db:"team_id" json:"team_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
