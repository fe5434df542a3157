package usecase

import (
	"context"
	"log/slog"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"

	"github.com/sshdeck/sshdeck/internal/database"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
	appValidation "github.com/sshdeck/sshdeck/internal/validation"
)

// RoleUseCase manages roles and memberships. Roles exist to carry host
// grants, so deleting one also deletes every grant issued to it.
type RoleUseCase struct {
	roleRepo  RoleRepository
	grantRepo GrantRepository
	share     *ShareUseCase
	txManager database.TxManager
	logger    *slog.Logger
}

func NewRoleUseCase(
	roleRepo RoleRepository,
	grantRepo GrantRepository,
	share *ShareUseCase,
	txManager database.TxManager,
	logger *slog.Logger,
) *RoleUseCase {
	return &RoleUseCase{
		roleRepo:  roleRepo,
		grantRepo: grantRepo,
		share:     share,
		txManager: txManager,
		logger:    logger,
	}
}

// Create adds a role. Names are unique.
func (r *RoleUseCase) Create(ctx context.Context, name string) (*hostsDomain.Role, error) {
	err := validation.Errors{
		"name": validation.Validate(name,
			validation.Required, appValidation.NotBlank, validation.Length(1, 255)),
	}.Filter()
	if err != nil {
		return nil, appValidation.WrapValidationError(err)
	}

	role := &hostsDomain.Role{
		ID:        uuid.Must(uuid.NewV7()),
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := r.roleRepo.Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Get returns a role by ID.
func (r *RoleUseCase) Get(ctx context.Context, roleID uuid.UUID) (*hostsDomain.Role, error) {
	return r.roleRepo.Get(ctx, roleID)
}

// List returns all roles.
func (r *RoleUseCase) List(ctx context.Context) ([]*hostsDomain.Role, error) {
	return r.roleRepo.List(ctx)
}

// Delete removes a role, its memberships, and every grant issued to it.
// Members lose access through the role immediately; their shared-secret
// rows from other grants are untouched.
func (r *RoleUseCase) Delete(ctx context.Context, roleID uuid.UUID) error {
	if _, err := r.roleRepo.Get(ctx, roleID); err != nil {
		return err
	}

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := r.grantRepo.DeleteForPrincipal(ctx, hostsDomain.PrincipalRole, roleID); err != nil {
			return err
		}
		return r.roleRepo.Delete(ctx, roleID)
	})
	if err != nil {
		return err
	}

	r.logger.Info("role deleted", slog.String("role_id", roleID.String()))
	return nil
}

// AssignUser adds a user to a role and materializes the role's existing
// host grants for the new member. Already a member is a no-op.
func (r *RoleUseCase) AssignUser(ctx context.Context, roleID, userID uuid.UUID) error {
	if _, err := r.roleRepo.Get(ctx, roleID); err != nil {
		return err
	}
	if err := r.roleRepo.AssignUser(ctx, roleID, userID); err != nil {
		return err
	}
	return r.share.MaterializeRoleGrants(ctx, roleID, userID)
}

// UnassignUser removes a user from a role.
func (r *RoleUseCase) UnassignUser(ctx context.Context, roleID, userID uuid.UUID) error {
	if _, err := r.roleRepo.Get(ctx, roleID); err != nil {
		return err
	}
	return r.roleRepo.UnassignUser(ctx, roleID, userID)
}

// Members returns the user IDs assigned to a role.
func (r *RoleUseCase) Members(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	if _, err := r.roleRepo.Get(ctx, roleID); err != nil {
		return nil, err
	}
	return r.roleRepo.ListMemberIDs(ctx, roleID)
}
