package usecase

import (
	"context"
	"log/slog"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
	cryptoUsecase "github.com/sshdeck/sshdeck/internal/crypto/usecase"
	"github.com/sshdeck/sshdeck/internal/database"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
	appValidation "github.com/sshdeck/sshdeck/internal/validation"
)

// HostUseCase implements host management on top of the permission resolver
// and the record cipher. Owners read their own ciphertext; grantees read
// through their shared-secret rows and never touch the owner's.
type HostUseCase struct {
	hostRepo       HostRepository
	credentialRepo CredentialRepository
	sharedRepo     SharedSecretRepository
	pendingRepo    PendingShareRepository
	userDataRepo   UserDataRepository
	grantRepo      GrantRepository
	resolver       *PermissionResolver
	share          *ShareUseCase
	vault          *cryptoUsecase.DekVault
	recordCrypto   *cryptoUsecase.RecordCrypto
	txManager      database.TxManager
	logger         *slog.Logger
}

func NewHostUseCase(
	hostRepo HostRepository,
	credentialRepo CredentialRepository,
	sharedRepo SharedSecretRepository,
	pendingRepo PendingShareRepository,
	userDataRepo UserDataRepository,
	grantRepo GrantRepository,
	resolver *PermissionResolver,
	share *ShareUseCase,
	vault *cryptoUsecase.DekVault,
	recordCrypto *cryptoUsecase.RecordCrypto,
	txManager database.TxManager,
	logger *slog.Logger,
) *HostUseCase {
	return &HostUseCase{
		hostRepo:       hostRepo,
		credentialRepo: credentialRepo,
		sharedRepo:     sharedRepo,
		pendingRepo:    pendingRepo,
		userDataRepo:   userDataRepo,
		grantRepo:      grantRepo,
		resolver:       resolver,
		share:          share,
		vault:          vault,
		recordCrypto:   recordCrypto,
		txManager:      txManager,
		logger:         logger,
	}
}

func validateCreateHostInput(input *hostsDomain.CreateHostInput) error {
	err := validation.Errors{
		"name": validation.Validate(input.Name,
			validation.Required, appValidation.NotBlank, validation.Length(1, 255)),
		"address": validation.Validate(input.Address,
			validation.Required, appValidation.NotBlank, validation.Length(1, 255)),
		"port": validation.Validate(input.Port,
			validation.Min(0), validation.Max(65535)),
	}.Filter()
	if err != nil {
		return appValidation.WrapValidationError(err)
	}
	if !input.AuthType.Valid() {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "invalid auth type")
	}
	return nil
}

// Create adds a host owned by the caller, encrypting its secret fields
// under the caller's resident DEK.
func (h *HostUseCase) Create(ctx context.Context, ownerID uuid.UUID, input *hostsDomain.CreateHostInput) (*hostsDomain.Host, error) {
	if err := validateCreateHostInput(input); err != nil {
		return nil, err
	}

	if input.AuthType == hostsDomain.AuthCredential {
		if input.CredentialID == nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "credential auth requires a credential")
		}
		credential, err := h.credentialRepo.Get(ctx, *input.CredentialID)
		if err != nil {
			return nil, err
		}
		if credential.UserID != ownerID {
			return nil, hostsDomain.ErrCredentialNotFound
		}
	}

	dek := h.vault.Get(ownerID)
	if dek == nil {
		return nil, apperrors.ErrDataLocked
	}

	now := time.Now()
	port := input.Port
	if port == 0 {
		port = 22
	}

	host := &hostsDomain.Host{
		ID:                     uuid.Must(uuid.NewV7()),
		UserID:                 ownerID,
		Name:                   input.Name,
		Address:                input.Address,
		Port:                   port,
		Username:               input.Username,
		AuthType:               input.AuthType,
		CredentialID:           input.CredentialID,
		Password:               input.Password,
		PrivateKey:             input.PrivateKey,
		KeyPassphrase:          input.KeyPassphrase,
		SudoPassword:           input.SudoPassword,
		ProxyHost:              input.ProxyHost,
		ProxyPort:              input.ProxyPort,
		ProxyUsername:          input.ProxyUsername,
		ProxyPassword:          input.ProxyPassword,
		Autostart:              input.Autostart,
		AutostartPassword:      input.AutostartPassword,
		AutostartPrivateKey:    input.AutostartPrivateKey,
		AutostartKeyPassphrase: input.AutostartKeyPassphrase,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	encrypted, err := h.recordCrypto.EncryptRecord(
		cryptoDomain.KindHost, host.ID.String(), ownerID, dek, host.SecretFields())
	if err != nil {
		return nil, err
	}
	host.ApplySecretFields(encrypted)

	if err := h.hostRepo.Create(ctx, host); err != nil {
		return nil, err
	}
	return host, nil
}

// Get returns a host with its non-lazy secrets decrypted. Owners decrypt
// their own ciphertext; grantees get their shared view overlaid onto the
// host metadata. A host the caller cannot read at all is indistinguishable
// from a missing one.
func (h *HostUseCase) Get(ctx context.Context, callerID, hostID uuid.UUID) (*hostsDomain.Host, error) {
	decision, err := h.resolver.Resolve(ctx, callerID, hostID, hostsDomain.IntentRead)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, hostsDomain.ErrHostAccessDenied
	}

	host, err := h.hostRepo.Get(ctx, hostID)
	if err != nil {
		return nil, err
	}

	if decision.IsOwner {
		dek := h.vault.Get(callerID)
		if dek == nil {
			return nil, apperrors.ErrDataLocked
		}
		decrypted, err := h.recordCrypto.DecryptRecord(
			cryptoDomain.KindHost, host.ID.String(), callerID, dek, host.SecretFields(), true)
		if err != nil {
			return nil, err
		}
		host.ApplySecretFields(decrypted)
		return host, nil
	}

	return h.overlaySharedView(ctx, callerID, host)
}

// List returns the caller's own hosts with non-lazy secrets decrypted.
func (h *HostUseCase) List(ctx context.Context, callerID uuid.UUID) ([]*hostsDomain.Host, error) {
	dek := h.vault.Get(callerID)
	if dek == nil {
		return nil, apperrors.ErrDataLocked
	}

	hosts, err := h.hostRepo.ListByUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	for _, host := range hosts {
		decrypted, err := h.recordCrypto.DecryptRecord(
			cryptoDomain.KindHost, host.ID.String(), callerID, dek, host.SecretFields(), true)
		if err != nil {
			return nil, err
		}
		host.ApplySecretFields(decrypted)
	}
	return hosts, nil
}

// ListAutostart returns the user's autostart-enabled hosts with every
// secret field decrypted, lazy ones included. Co-located workers use this
// to bring tunnels up after the user unlocks; it needs the user's data key
// resident.
func (h *HostUseCase) ListAutostart(ctx context.Context, userID uuid.UUID) ([]*hostsDomain.Host, error) {
	dek := h.vault.Get(userID)
	if dek == nil {
		return nil, apperrors.ErrDataLocked
	}

	hosts, err := h.hostRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	autostart := make([]*hostsDomain.Host, 0)
	for _, host := range hosts {
		if !host.Autostart {
			continue
		}
		decrypted, err := h.recordCrypto.DecryptRecord(
			cryptoDomain.KindHost, host.ID.String(), userID, dek, host.SecretFields(), false)
		if err != nil {
			return nil, err
		}
		host.ApplySecretFields(decrypted)
		autostart = append(autostart, host)
	}
	return autostart, nil
}

// ListShared returns the hosts shared with the caller through unexpired
// grants. Secrets come from the caller's shared view; a host whose pending
// rows have not been promoted yet appears with empty secret fields.
func (h *HostUseCase) ListShared(ctx context.Context, callerID uuid.UUID) ([]*hostsDomain.Host, error) {
	roleIDs, err := h.share.roleRepo.ListRoleIDsForUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	hostIDs, err := h.grantRepo.ListHostIDsForPrincipals(ctx, callerID, roleIDs, time.Now())
	if err != nil {
		return nil, err
	}

	hosts, err := h.hostRepo.ListByIDs(ctx, hostIDs)
	if err != nil {
		return nil, err
	}

	for _, host := range hosts {
		shared, err := h.overlaySharedView(ctx, callerID, host)
		if err != nil {
			return nil, err
		}
		*host = *shared
	}
	return hosts, nil
}

// GetSecret resolves one secret field on demand, for lazy material like
// private keys. Owners decrypt their ciphertext; grantees read their shared
// row, and a grantee whose rows are still pending gets ErrDataLocked.
func (h *HostUseCase) GetSecret(ctx context.Context, callerID, hostID uuid.UUID, field string) (string, error) {
	decision, err := h.resolver.Resolve(ctx, callerID, hostID, hostsDomain.IntentRead)
	if err != nil {
		return "", err
	}
	if !decision.Allowed {
		return "", hostsDomain.ErrHostAccessDenied
	}

	dek := h.vault.Get(callerID)
	if dek == nil {
		return "", apperrors.ErrDataLocked
	}

	host, err := h.hostRepo.Get(ctx, hostID)
	if err != nil {
		return "", err
	}

	if decision.IsOwner {
		fields := host.SecretFields()
		value, ok := fields[field]
		if !ok {
			return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown secret field %q", field)
		}
		if value == "" {
			return "", nil
		}
		return h.recordCrypto.DecryptSingleField(
			cryptoDomain.KindHost, host.ID.String(), field, callerID, dek, value)
	}

	secrets, err := h.share.GranteeSecrets(ctx, callerID, hostID)
	if err != nil {
		return "", err
	}
	value, ok := secrets[string(cryptoDomain.KindHost)][field]
	if !ok {
		// The grant exists but this field has not been promoted for the
		// caller yet.
		return "", apperrors.ErrDataLocked
	}
	return value, nil
}

// Update modifies a host. Owners may change everything; shared writers may
// change connection metadata but never the authentication configuration or
// any secret field.
func (h *HostUseCase) Update(ctx context.Context, callerID, hostID uuid.UUID, input *hostsDomain.UpdateHostInput) (*hostsDomain.Host, error) {
	decision, err := h.resolver.Resolve(ctx, callerID, hostID, hostsDomain.IntentWrite)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, hostsDomain.ErrHostAccessDenied
	}

	host, err := h.hostRepo.Get(ctx, hostID)
	if err != nil {
		return nil, err
	}

	if !decision.IsOwner {
		if input.AuthType != host.AuthType || !uuidPtrEqual(input.CredentialID, host.CredentialID) ||
			hasSecretChanges(input) {
			return nil, hostsDomain.ErrAuthConfigLocked
		}
	}

	host.Name = input.Name
	host.Address = input.Address
	if input.Port != 0 {
		host.Port = input.Port
	}
	host.Username = input.Username
	host.ProxyHost = input.ProxyHost
	host.ProxyPort = input.ProxyPort
	host.ProxyUsername = input.ProxyUsername
	host.Autostart = input.Autostart
	host.UpdatedAt = time.Now()

	secretsChanged := false
	if decision.IsOwner {
		host.AuthType = input.AuthType
		host.CredentialID = input.CredentialID

		dek := h.vault.Get(callerID)
		changes := map[string]*string{
			"password":                 input.Password,
			"private_key":              input.PrivateKey,
			"key_passphrase":           input.KeyPassphrase,
			"sudo_password":            input.SudoPassword,
			"proxy_password":           input.ProxyPassword,
			"autostart_password":       input.AutostartPassword,
			"autostart_private_key":    input.AutostartPrivateKey,
			"autostart_key_passphrase": input.AutostartKeyPassphrase,
		}

		plainChanges := make(map[string]string)
		for field, value := range changes {
			if value != nil {
				plainChanges[field] = *value
				secretsChanged = true
			}
		}

		if secretsChanged {
			if dek == nil {
				return nil, apperrors.ErrDataLocked
			}
			encrypted, err := h.recordCrypto.EncryptRecord(
				cryptoDomain.KindHost, host.ID.String(), host.UserID, dek, plainChanges)
			if err != nil {
				return nil, err
			}
			fields := host.SecretFields()
			for field, value := range encrypted {
				fields[field] = value
			}
			host.ApplySecretFields(fields)
		}
	}

	if err := h.hostRepo.Update(ctx, host); err != nil {
		return nil, err
	}

	// Changed secrets must propagate to every grantee's shared view.
	if secretsChanged {
		if err := h.share.RefreshHostSecrets(ctx, host); err != nil {
			return nil, err
		}
	}
	return h.Get(ctx, callerID, hostID)
}

// Delete removes a host. Owner only; grants and shared rows cascade.
func (h *HostUseCase) Delete(ctx context.Context, callerID, hostID uuid.UUID) error {
	host, err := h.hostRepo.Get(ctx, hostID)
	if err != nil {
		return err
	}
	if host.UserID != callerID {
		return hostsDomain.ErrHostAccessDenied
	}
	return h.hostRepo.Delete(ctx, hostID)
}

// WipeUserSecrets destroys every payload encrypted under the user's DEK:
// owned hosts and credentials, the user's shared views, pending rows, and
// the ancillary encrypted tables. Runs inside the caller's transaction and
// backs the destructive password reset.
func (h *HostUseCase) WipeUserSecrets(ctx context.Context, userID uuid.UUID) error {
	if err := h.hostRepo.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	if err := h.credentialRepo.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	if err := h.sharedRepo.DeleteByGrantee(ctx, userID); err != nil {
		return err
	}
	if err := h.pendingRepo.DeleteByGrantee(ctx, userID); err != nil {
		return err
	}
	if err := h.userDataRepo.WipeByUser(ctx, userID); err != nil {
		return err
	}

	h.logger.Warn("user secrets wiped", slog.String("user_id", userID.String()))
	return nil
}

// overlaySharedView blanks the owner's ciphertext on a host and overlays
// the grantee's decrypted shared fields. Fields with no promoted row stay
// empty.
func (h *HostUseCase) overlaySharedView(ctx context.Context, granteeID uuid.UUID, host *hostsDomain.Host) (*hostsDomain.Host, error) {
	secrets, err := h.share.GranteeSecrets(ctx, granteeID, host.ID)
	if err != nil {
		return nil, err
	}

	blank := make(map[string]string, len(host.SecretFields()))
	for field := range host.SecretFields() {
		blank[field] = ""
	}
	for field, value := range secrets[string(cryptoDomain.KindHost)] {
		blank[field] = value
	}
	host.ApplySecretFields(blank)
	return host, nil
}

func hasSecretChanges(input *hostsDomain.UpdateHostInput) bool {
	return input.Password != nil || input.PrivateKey != nil || input.KeyPassphrase != nil ||
		input.SudoPassword != nil || input.ProxyPassword != nil || input.AutostartPassword != nil ||
		input.AutostartPrivateKey != nil || input.AutostartKeyPassphrase != nil
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
