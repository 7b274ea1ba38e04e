package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/models"
)

// TeamRepository handles database operations for teams and namespaces
type TeamRepository struct {
	q db.Querier
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(q db.Querier) *TeamRepository {
	return &TeamRepository{q: q}
}

// WithTx returns a copy bound to the given transaction
func (r *TeamRepository) WithTx(tx pgx.Tx) *TeamRepository {
	return &TeamRepository{q: tx}
}

// GetTeamByName retrieves a team by case-insensitive name
func (r *TeamRepository) GetTeamByName(ctx context.Context, name string) (*models.Team, error) {
	query := `
		SELECT team_id, name, is_active, created_at
		FROM teams
		WHERE lower(name) = lower($1)
	`

	team := &models.Team{}
	err := r.q.QueryRow(ctx, query, name).Scan(
		&team.TeamID,
		&team.Name,
		&team.IsActive,
		&team.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	return team, nil
}

// CreateTeam inserts a team; a concurrent create of the same name loses to
// the unique index and the caller retries the lookup.
func (r *TeamRepository) CreateTeam(ctx context.Context, team *models.Team) error {
	query := `
		INSERT INTO teams (team_id, name, is_active, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.q.Exec(ctx, query, team.TeamID, team.Name, team.IsActive, team.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

// AddMember inserts a membership row; existing memberships are left intact
func (r *TeamRepository) AddMember(ctx context.Context, teamID uuid.UUID, username string, role models.TeamRole) error {
	query := `
		INSERT INTO team_members (team_id, username, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, username) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, teamID, username, role); err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return nil
}

// GetMemberRole returns the member's role, or nil when not a member
func (r *TeamRepository) GetMemberRole(ctx context.Context, teamID uuid.UUID, username string) (*models.TeamRole, error) {
	query := `SELECT role FROM team_members WHERE team_id = $1 AND username = $2`

	var role models.TeamRole
	err := r.q.QueryRow(ctx, query, teamID, username).Scan(&role)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member role: %w", err)
	}
	return &role, nil
}

// GetNamespaceByName retrieves a namespace by case-insensitive name
func (r *TeamRepository) GetNamespaceByName(ctx context.Context, name string) (*models.Namespace, error) {
	query := `
		SELECT namespace_id, name, team_id, created_at
		FROM namespaces
		WHERE lower(name) = lower($1)
	`

	ns := &models.Namespace{}
	err := r.q.QueryRow(ctx, query, name).Scan(
		&ns.NamespaceID,
		&ns.Name,
		&ns.TeamID,
		&ns.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get namespace: %w", err)
	}

	return ns, nil
}

// CreateNamespace inserts a namespace owned by a team
func (r *TeamRepository) CreateNamespace(ctx context.Context, ns *models.Namespace) error {
	query := `
		INSERT INTO namespaces (namespace_id, name, team_id, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.q.Exec(ctx, query, ns.NamespaceID, ns.Name, ns.TeamID, ns.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create namespace: %w", err)
	}
	return nil
}

// EnsureTeamWithNamespace returns the team and its primary namespace for
// name, creating both when absent. The creating user becomes the team owner.
func (r *TeamRepository) EnsureTeamWithNamespace(ctx context.Context, name, creator string) (*models.Team, *models.Namespace, error) {
	team, err := r.GetTeamByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if team == nil {
		team = &models.Team{
			TeamID:    uuid.New(),
			Name:      name,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}
		if err := r.CreateTeam(ctx, team); err != nil {
			return nil, nil, err
		}
		if err := r.AddMember(ctx, team.TeamID, creator, models.RoleOwner); err != nil {
			return nil, nil, err
		}
	}

	ns, err := r.GetNamespaceByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if ns == nil {
		ns = &models.Namespace{
			NamespaceID: uuid.New(),
			Name:        team.Name,
			TeamID:      team.TeamID,
			CreatedAt:   time.Now().UTC(),
		}
		if err := r.CreateNamespace(ctx, ns); err != nil {
			return nil, nil, err
		}
	}

	return team, ns, nil
}
