package usecase

import (
	"context"
	"log/slog"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"

	cryptoDomain "github.com/sshdeck/sshdeck/internal/crypto/domain"
	cryptoUsecase "github.com/sshdeck/sshdeck/internal/crypto/usecase"
	apperrors "github.com/sshdeck/sshdeck/internal/errors"
	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
	appValidation "github.com/sshdeck/sshdeck/internal/validation"
)

// CredentialUseCase manages reusable SSH credentials. Credentials are
// strictly owner-scoped; sharing happens at the host level, where linked
// credential secrets travel with the host grant.
type CredentialUseCase struct {
	credentialRepo CredentialRepository
	vault          *cryptoUsecase.DekVault
	recordCrypto   *cryptoUsecase.RecordCrypto
	logger         *slog.Logger
}

func NewCredentialUseCase(
	credentialRepo CredentialRepository,
	vault *cryptoUsecase.DekVault,
	recordCrypto *cryptoUsecase.RecordCrypto,
	logger *slog.Logger,
) *CredentialUseCase {
	return &CredentialUseCase{
		credentialRepo: credentialRepo,
		vault:          vault,
		recordCrypto:   recordCrypto,
		logger:         logger,
	}
}

func validateCreateCredentialInput(input *hostsDomain.CreateCredentialInput) error {
	err := validation.Errors{
		"name": validation.Validate(input.Name,
			validation.Required, appValidation.NotBlank, validation.Length(1, 255)),
	}.Filter()
	if err != nil {
		return appValidation.WrapValidationError(err)
	}
	if !input.AuthType.Valid() || input.AuthType == hostsDomain.AuthCredential {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "invalid auth type")
	}
	return nil
}

// Create adds a credential owned by the caller, encrypting its secret
// fields under the caller's resident DEK.
func (c *CredentialUseCase) Create(ctx context.Context, ownerID uuid.UUID, input *hostsDomain.CreateCredentialInput) (*hostsDomain.Credential, error) {
	if err := validateCreateCredentialInput(input); err != nil {
		return nil, err
	}

	dek := c.vault.Get(ownerID)
	if dek == nil {
		return nil, apperrors.ErrDataLocked
	}

	now := time.Now()
	credential := &hostsDomain.Credential{
		ID:            uuid.Must(uuid.NewV7()),
		UserID:        ownerID,
		Name:          input.Name,
		AuthType:      input.AuthType,
		Username:      input.Username,
		Password:      input.Password,
		PrivateKey:    input.PrivateKey,
		KeyPassphrase: input.KeyPassphrase,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	encrypted, err := c.recordCrypto.EncryptRecord(
		cryptoDomain.KindCredential, credential.ID.String(), ownerID, dek, credential.SecretFields())
	if err != nil {
		return nil, err
	}
	credential.ApplySecretFields(encrypted)

	if err := c.credentialRepo.Create(ctx, credential); err != nil {
		return nil, err
	}
	return credential, nil
}

// Get returns one of the caller's credentials with non-lazy secrets
// decrypted.
func (c *CredentialUseCase) Get(ctx context.Context, callerID, credentialID uuid.UUID) (*hostsDomain.Credential, error) {
	credential, err := c.ownedCredential(ctx, callerID, credentialID)
	if err != nil {
		return nil, err
	}

	dek := c.vault.Get(callerID)
	if dek == nil {
		return nil, apperrors.ErrDataLocked
	}

	decrypted, err := c.recordCrypto.DecryptRecord(
		cryptoDomain.KindCredential, credential.ID.String(), callerID, dek, credential.SecretFields(), true)
	if err != nil {
		return nil, err
	}
	credential.ApplySecretFields(decrypted)
	return credential, nil
}

// List returns the caller's credentials with non-lazy secrets decrypted.
func (c *CredentialUseCase) List(ctx context.Context, callerID uuid.UUID) ([]*hostsDomain.Credential, error) {
	dek := c.vault.Get(callerID)
	if dek == nil {
		return nil, apperrors.ErrDataLocked
	}

	credentials, err := c.credentialRepo.ListByUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	for _, credential := range credentials {
		decrypted, err := c.recordCrypto.DecryptRecord(
			cryptoDomain.KindCredential, credential.ID.String(), callerID, dek, credential.SecretFields(), true)
		if err != nil {
			return nil, err
		}
		credential.ApplySecretFields(decrypted)
	}
	return credentials, nil
}

// GetSecret resolves one secret field on demand, for the lazily fetched
// private key.
func (c *CredentialUseCase) GetSecret(ctx context.Context, callerID, credentialID uuid.UUID, field string) (string, error) {
	credential, err := c.ownedCredential(ctx, callerID, credentialID)
	if err != nil {
		return "", err
	}

	dek := c.vault.Get(callerID)
	if dek == nil {
		return "", apperrors.ErrDataLocked
	}

	value, ok := credential.SecretFields()[field]
	if !ok {
		return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown secret field %q", field)
	}
	if value == "" {
		return "", nil
	}
	return c.recordCrypto.DecryptSingleField(
		cryptoDomain.KindCredential, credential.ID.String(), field, callerID, dek, value)
}

// Update replaces a credential's fields. Nil secret pointers keep the
// stored ciphertext; non-nil values are re-encrypted.
func (c *CredentialUseCase) Update(ctx context.Context, callerID, credentialID uuid.UUID, input *hostsDomain.CreateCredentialInput, password, privateKey, keyPassphrase *string) (*hostsDomain.Credential, error) {
	if err := validateCreateCredentialInput(input); err != nil {
		return nil, err
	}

	credential, err := c.ownedCredential(ctx, callerID, credentialID)
	if err != nil {
		return nil, err
	}

	credential.Name = input.Name
	credential.AuthType = input.AuthType
	credential.Username = input.Username
	credential.UpdatedAt = time.Now()

	changes := make(map[string]string)
	if password != nil {
		changes["password"] = *password
	}
	if privateKey != nil {
		changes["private_key"] = *privateKey
	}
	if keyPassphrase != nil {
		changes["key_passphrase"] = *keyPassphrase
	}

	if len(changes) > 0 {
		dek := c.vault.Get(callerID)
		if dek == nil {
			return nil, apperrors.ErrDataLocked
		}
		encrypted, err := c.recordCrypto.EncryptRecord(
			cryptoDomain.KindCredential, credential.ID.String(), callerID, dek, changes)
		if err != nil {
			return nil, err
		}
		fields := credential.SecretFields()
		for field, value := range encrypted {
			fields[field] = value
		}
		credential.ApplySecretFields(fields)
	}

	if err := c.credentialRepo.Update(ctx, credential); err != nil {
		return nil, err
	}
	return c.Get(ctx, callerID, credentialID)
}

// Delete removes a credential. Hosts referencing it fall back to their own
// embedded secrets.
func (c *CredentialUseCase) Delete(ctx context.Context, callerID, credentialID uuid.UUID) error {
	if _, err := c.ownedCredential(ctx, callerID, credentialID); err != nil {
		return err
	}
	return c.credentialRepo.Delete(ctx, credentialID)
}

func (c *CredentialUseCase) ownedCredential(ctx context.Context, callerID, credentialID uuid.UUID) (*hostsDomain.Credential, error) {
	credential, err := c.credentialRepo.Get(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if credential.UserID != callerID {
		return nil, hostsDomain.ErrCredentialNotFound
	}
	return credential, nil
}
