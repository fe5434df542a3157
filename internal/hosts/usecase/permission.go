package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
)

// PermissionResolver answers whether a user may access a host with a given
// intent, considering ownership, direct grants, role grants, and expiry.
type PermissionResolver struct {
	hostRepo  HostRepository
	grantRepo GrantRepository
	roleRepo  RoleRepository
}

func NewPermissionResolver(
	hostRepo HostRepository,
	grantRepo GrantRepository,
	roleRepo RoleRepository,
) *PermissionResolver {
	return &PermissionResolver{
		hostRepo:  hostRepo,
		grantRepo: grantRepo,
		roleRepo:  roleRepo,
	}
}

// Resolve decides access for (user, host, intent). Ownership allows
// everything. A non-owner needs an unexpired grant reaching the host either
// directly or through a role, and write intent needs a write-level grant.
// Direct grants win over role grants when reporting the source.
//
// Returns ErrHostNotFound when the host does not exist; a refusal for an
// existing host is a decision with Allowed false, not an error.
func (p *PermissionResolver) Resolve(
	ctx context.Context,
	userID uuid.UUID,
	hostID uuid.UUID,
	intent hostsDomain.Intent,
) (*hostsDomain.PermissionDecision, error) {
	host, err := p.hostRepo.Get(ctx, hostID)
	if err != nil {
		return nil, err
	}

	if host.UserID == userID {
		return &hostsDomain.PermissionDecision{Allowed: true, IsOwner: true}, nil
	}

	roleIDs, err := p.roleRepo.ListRoleIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	grants, err := p.grantRepo.ListActiveForPrincipals(ctx, hostID, userID, roleIDs, time.Now())
	if err != nil {
		return nil, err
	}

	decision := &hostsDomain.PermissionDecision{}
	for _, grant := range grants {
		if intent == hostsDomain.IntentWrite && grant.Level != hostsDomain.LevelWrite {
			continue
		}

		source := hostsDomain.SourceRole
		if grant.PrincipalKind == hostsDomain.PrincipalUser {
			source = hostsDomain.SourceDirect
		}

		if !decision.Allowed || source == hostsDomain.SourceDirect {
			decision.Allowed = true
			decision.GrantSource = source
		}
	}

	return decision, nil
}
