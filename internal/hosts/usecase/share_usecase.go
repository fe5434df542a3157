package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
	cryptoService "github.com/sshdeck/sshdeck/internal/crypto/service"
	cryptoUsecase "github.com/sshdeck/sshdeck/internal/crypto/usecase"
	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
)

// secretRecord is one record's worth of plaintext secrets during share
// materialization. The plaintext exists only for the duration of the grant
// or flush call.
type secretRecord struct {
	kind     cryptoDomain.EntityKind
	recordID string
	fields   map[string]string
}

// ShareUseCase re-wraps credential secrets from an owner's DEK to each
// grantee's DEK. Grantees without a resident DEK get pending rows wrapped
// under the system pending-share key, promoted at their next unlock.
type ShareUseCase struct {
	hostRepo       HostRepository
	credentialRepo CredentialRepository
	grantRepo      GrantRepository
	roleRepo       RoleRepository
	sharedRepo     SharedSecretRepository
	pendingRepo    PendingShareRepository
	vault          *cryptoUsecase.DekVault
	recordCrypto   *cryptoUsecase.RecordCrypto
	fieldCipher    cryptoService.FieldCipher
	systemKeys     cryptoService.SystemKeys
	txManager      database.TxManager
	logger         *slog.Logger
}

func NewShareUseCase(
	hostRepo HostRepository,
	credentialRepo CredentialRepository,
	grantRepo GrantRepository,
	roleRepo RoleRepository,
	sharedRepo SharedSecretRepository,
	pendingRepo PendingShareRepository,
	vault *cryptoUsecase.DekVault,
	recordCrypto *cryptoUsecase.RecordCrypto,
	fieldCipher cryptoService.FieldCipher,
	systemKeys cryptoService.SystemKeys,
	txManager database.TxManager,
	logger *slog.Logger,
) *ShareUseCase {
	return &ShareUseCase{
		hostRepo:       hostRepo,
		credentialRepo: credentialRepo,
		grantRepo:      grantRepo,
		roleRepo:       roleRepo,
		sharedRepo:     sharedRepo,
		pendingRepo:    pendingRepo,
		vault:          vault,
		recordCrypto:   recordCrypto,
		fieldCipher:    fieldCipher,
		systemKeys:     systemKeys,
		txManager:      txManager,
		logger:         logger,
	}
}

// CreateGrant shares a host with a principal. The grantor must own the host
// and be unlocked: the host's secrets are decrypted with the grantor's DEK
// and re-encrypted for every grantee, immediately for grantees whose DEK is
// resident and as pending rows otherwise.
func (s *ShareUseCase) CreateGrant(ctx context.Context, grantorID uuid.UUID, input *hostsDomain.CreateGrantInput) (*hostsDomain.HostGrant, error) {
	if !input.PrincipalKind.Valid() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid principal kind")
	}
	if !input.Level.Valid() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid grant level")
	}

	host, err := s.hostRepo.Get(ctx, input.HostID)
	if err != nil {
		return nil, err
	}
	if host.UserID != grantorID {
		return nil, hostsDomain.ErrNotOwner
	}

	switch input.PrincipalKind {
	case hostsDomain.PrincipalUser:
		if input.PrincipalID == grantorID {
			return nil, hostsDomain.ErrSelfGrant
		}
	case hostsDomain.PrincipalRole:
		if _, err := s.roleRepo.Get(ctx, input.PrincipalID); err != nil {
			return nil, err
		}
	}

	records, err := s.decryptHostRecords(ctx, host, grantorID)
	if err != nil {
		return nil, err
	}

	grant := &hostsDomain.HostGrant{
		ID:            uuid.Must(uuid.NewV7()),
		HostID:        input.HostID,
		PrincipalKind: input.PrincipalKind,
		PrincipalID:   input.PrincipalID,
		Level:         input.Level,
		ExpiresAt:     input.ExpiresAt,
		CreatedAt:     time.Now(),
	}

	grantees, err := s.resolveGrantees(ctx, grant, host.UserID)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := s.grantRepo.Create(ctx, grant); err != nil {
			return err
		}
		for _, granteeID := range grantees {
			if err := s.materializeForGrantee(ctx, grant, granteeID, records); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("host shared",
		slog.String("host_id", host.ID.String()),
		slog.String("grant_id", grant.ID.String()),
		slog.String("principal_kind", string(grant.PrincipalKind)),
		slog.String("level", string(grant.Level)),
	)
	return grant, nil
}

// RevokeGrant removes a grant. The grantee-wrapped rows and any pending
// rows go with it; the owner's own ciphertext is untouched.
func (s *ShareUseCase) RevokeGrant(ctx context.Context, grantorID, grantID uuid.UUID) error {
	grant, err := s.grantRepo.Get(ctx, grantID)
	if err != nil {
		return err
	}

	host, err := s.hostRepo.Get(ctx, grant.HostID)
	if err != nil {
		return err
	}
	if host.UserID != grantorID {
		return hostsDomain.ErrNotOwner
	}

	return s.grantRepo.Delete(ctx, grantID)
}

// ListByHost returns the grants on a host. Owner only.
func (s *ShareUseCase) ListByHost(ctx context.Context, callerID, hostID uuid.UUID) ([]*hostsDomain.HostGrant, error) {
	host, err := s.hostRepo.Get(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if host.UserID != callerID {
		return nil, hostsDomain.ErrNotOwner
	}
	return s.grantRepo.ListByHost(ctx, hostID)
}

// FlushPendingShares promotes every pending row addressed to the user into a
// grantee-wrapped row under the freshly resident DEK. Called by the login
// path right after a successful unlock. A single bad row is logged and
// skipped; the next unlock retries it.
func (s *ShareUseCase) FlushPendingShares(ctx context.Context, userID uuid.UUID, dek []byte) error {
	pendings, err := s.pendingRepo.ListByGrantee(ctx, userID)
	if err != nil {
		return err
	}

	pendingKey := s.systemKeys.PendingShareWrapKey()
	for _, pending := range pendings {
		plaintext, err := s.fieldCipher.DecryptField(pending.Ciphertext, pendingKey, cryptoService.FieldRef{
			Kind:     cryptoDomain.KindPendingShare,
			RecordID: pending.GrantID.String(),
			Field:    pending.Field,
			UserID:   userID,
		})
		if err != nil {
			s.logger.Error("pending share unwrap failed, skipping",
				slog.String("pending_id", pending.ID.String()),
				slog.Any("error", err),
			)
			continue
		}

		ciphertext, err := s.fieldCipher.EncryptField(plaintext, dek, cryptoService.FieldRef{
			Kind:     cryptoDomain.KindSharedSecret,
			RecordID: pending.RecordID,
			Field:    pending.Field,
			UserID:   userID,
		})
		if err != nil {
			s.logger.Error("pending share rewrap failed, skipping",
				slog.String("pending_id", pending.ID.String()),
				slog.Any("error", err),
			)
			continue
		}

		now := time.Now()
		err = s.txManager.WithTx(ctx, func(ctx context.Context) error {
			if err := s.sharedRepo.Upsert(ctx, &hostsDomain.SharedSecret{
				ID:            uuid.Must(uuid.NewV7()),
				GrantID:       pending.GrantID,
				HostID:        pending.HostID,
				GranteeUserID: userID,
				EntityKind:    pending.EntityKind,
				RecordID:      pending.RecordID,
				Field:         pending.Field,
				Ciphertext:    ciphertext,
				CreatedAt:     now,
				UpdatedAt:     now,
			}); err != nil {
				return err
			}
			return s.pendingRepo.Delete(ctx, pending.ID)
		})
		if err != nil {
			s.logger.Error("pending share promotion failed, skipping",
				slog.String("pending_id", pending.ID.String()),
				slog.Any("error", err),
			)
		}
	}

	if len(pendings) > 0 {
		s.logger.Info("pending shares flushed",
			slog.String("user_id", userID.String()),
			slog.Int("count", len(pendings)),
		)
	}
	return nil
}

// GranteeSecrets decrypts the caller's shared-secret rows for one host,
// keyed by entity kind then field. Requires the grantee's DEK to be
// resident; rows that have not been promoted yet simply do not appear.
func (s *ShareUseCase) GranteeSecrets(ctx context.Context, granteeID, hostID uuid.UUID) (map[string]map[string]string, error) {
	dek := s.vault.Get(granteeID)
	if dek == nil {
		return nil, apperrors.ErrDataLocked
	}

	rows, err := s.sharedRepo.ListByGranteeAndHost(ctx, granteeID, hostID)
	if err != nil {
		return nil, err
	}

	secrets := make(map[string]map[string]string)
	for _, row := range rows {
		plaintext, err := s.fieldCipher.DecryptField(row.Ciphertext, dek, cryptoService.FieldRef{
			Kind:     cryptoDomain.KindSharedSecret,
			RecordID: row.RecordID,
			Field:    row.Field,
			UserID:   granteeID,
		})
		if err != nil {
			return nil, apperrors.Wrapf(err, "decrypt shared secret: host_id=%s field=%s", hostID, row.Field)
		}

		if secrets[row.EntityKind] == nil {
			secrets[row.EntityKind] = make(map[string]string)
		}
		secrets[row.EntityKind][row.Field] = plaintext
	}
	return secrets, nil
}

// RefreshHostSecrets re-materializes every active grant on a host after the
// owner changed its secrets, so grantees keep observing the same plaintext
// as the owner. The owner must be unlocked.
func (s *ShareUseCase) RefreshHostSecrets(ctx context.Context, host *hostsDomain.Host) error {
	grants, err := s.grantRepo.ListByHost(ctx, host.ID)
	if err != nil {
		return err
	}
	if len(grants) == 0 {
		return nil
	}

	records, err := s.decryptHostRecords(ctx, host, host.UserID)
	if err != nil {
		return err
	}

	now := time.Now()
	return s.txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, grant := range grants {
			if !grant.Active(now) {
				continue
			}
			grantees, err := s.resolveGrantees(ctx, grant, host.UserID)
			if err != nil {
				return err
			}
			for _, granteeID := range grantees {
				if err := s.materializeForGrantee(ctx, grant, granteeID, records); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// MaterializeRoleGrants gives a freshly assigned role member a view of the
// hosts the role already carries. Grants whose owner is locked are skipped:
// their secrets cannot be opened, so the member waits for the owner's next
// secret refresh.
func (s *ShareUseCase) MaterializeRoleGrants(ctx context.Context, roleID, memberID uuid.UUID) error {
	grants, err := s.grantRepo.ListForPrincipal(ctx, hostsDomain.PrincipalRole, roleID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, grant := range grants {
		if !grant.Active(now) {
			continue
		}

		host, err := s.hostRepo.Get(ctx, grant.HostID)
		if err != nil {
			return err
		}
		if host.UserID == memberID {
			continue
		}

		records, err := s.decryptHostRecords(ctx, host, host.UserID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrDataLocked) {
				s.logger.Warn("grant owner locked, skipping materialization",
					slog.String("grant_id", grant.ID.String()),
					slog.String("member_id", memberID.String()),
				)
				continue
			}
			return err
		}

		err = s.txManager.WithTx(ctx, func(ctx context.Context) error {
			return s.materializeForGrantee(ctx, grant, memberID, records)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// decryptHostRecords opens the host's secrets (and its linked credential's)
// with the owner's resident DEK.
func (s *ShareUseCase) decryptHostRecords(ctx context.Context, host *hostsDomain.Host, ownerID uuid.UUID) ([]secretRecord, error) {
	dek := s.vault.Get(ownerID)
	if dek == nil {
		return nil, apperrors.ErrDataLocked
	}

	hostFields, err := s.recordCrypto.DecryptRecord(
		cryptoDomain.KindHost, host.ID.String(), ownerID, dek, host.SecretFields(), false)
	if err != nil {
		return nil, err
	}

	records := []secretRecord{{
		kind:     cryptoDomain.KindHost,
		recordID: host.ID.String(),
		fields:   hostFields,
	}}

	if host.CredentialID != nil {
		credential, err := s.credentialRepo.Get(ctx, *host.CredentialID)
		if err != nil {
			return nil, err
		}
		credentialFields, err := s.recordCrypto.DecryptRecord(
			cryptoDomain.KindCredential, credential.ID.String(), ownerID, dek, credential.SecretFields(), false)
		if err != nil {
			return nil, err
		}
		records = append(records, secretRecord{
			kind:     cryptoDomain.KindCredential,
			recordID: credential.ID.String(),
			fields:   credentialFields,
		})
	}
	return records, nil
}

// resolveGrantees expands a grant's principal into user IDs, excluding the
// host owner.
func (s *ShareUseCase) resolveGrantees(ctx context.Context, grant *hostsDomain.HostGrant, ownerID uuid.UUID) ([]uuid.UUID, error) {
	if grant.PrincipalKind == hostsDomain.PrincipalUser {
		return []uuid.UUID{grant.PrincipalID}, nil
	}

	members, err := s.roleRepo.ListMemberIDs(ctx, grant.PrincipalID)
	if err != nil {
		return nil, err
	}

	grantees := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		if member != ownerID {
			grantees = append(grantees, member)
		}
	}
	return grantees, nil
}

// materializeForGrantee writes one grantee's view of the records: under the
// grantee's DEK when it is resident, under the pending-share key otherwise.
// Empty fields carry no secret and are skipped.
func (s *ShareUseCase) materializeForGrantee(ctx context.Context, grant *hostsDomain.HostGrant, granteeID uuid.UUID, records []secretRecord) error {
	granteeDek := s.vault.Get(granteeID)
	now := time.Now()

	for _, record := range records {
		for field, plaintext := range record.fields {
			if plaintext == "" {
				continue
			}

			if granteeDek != nil {
				ciphertext, err := s.fieldCipher.EncryptField(plaintext, granteeDek, cryptoService.FieldRef{
					Kind:     cryptoDomain.KindSharedSecret,
					RecordID: record.recordID,
					Field:    field,
					UserID:   granteeID,
				})
				if err != nil {
					return err
				}
				if err := s.sharedRepo.Upsert(ctx, &hostsDomain.SharedSecret{
					ID:            uuid.Must(uuid.NewV7()),
					GrantID:       grant.ID,
					HostID:        grant.HostID,
					GranteeUserID: granteeID,
					EntityKind:    string(record.kind),
					RecordID:      record.recordID,
					Field:         field,
					Ciphertext:    ciphertext,
					CreatedAt:     now,
					UpdatedAt:     now,
				}); err != nil {
					return err
				}
				continue
			}

			ciphertext, err := s.fieldCipher.EncryptField(plaintext, s.systemKeys.PendingShareWrapKey(), cryptoService.FieldRef{
				Kind:     cryptoDomain.KindPendingShare,
				RecordID: grant.ID.String(),
				Field:    field,
				UserID:   granteeID,
			})
			if err != nil {
				return err
			}
			if err := s.pendingRepo.Upsert(ctx, &hostsDomain.PendingShare{
				ID:            uuid.Must(uuid.NewV7()),
				GrantID:       grant.ID,
				HostID:        grant.HostID,
				GranteeUserID: granteeID,
				EntityKind:    string(record.kind),
				RecordID:      record.recordID,
				Field:         field,
				Ciphertext:    ciphertext,
				CreatedAt:     now,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
