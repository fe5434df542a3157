// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
	customValidation "github.com/sshdeck/sshdeck/internal/validation"
)

// PasswordLoginRequest contains the credentials for a password login.
type PasswordLoginRequest struct {
	Name        string `json:"name"`
	Password    string `json:"password"`
	DeviceClass string `json:"device_class"`
	DeviceDesc  string `json:"device_desc"`
}

// Validate checks if the password login request is valid.
func (r *PasswordLoginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.Password,
			validation.Required,
		),
		validation.Field(&r.DeviceClass,
			validation.Required,
			validation.By(validateDeviceClass),
		),
		validation.Field(&r.DeviceDesc,
			validation.Length(0, 255),
		),
	)
}

// ExternalLoginRequest contains the provider authorization code for an
// external identity login.
type ExternalLoginRequest struct {
	Code        string `json:"code"`
	DeviceClass string `json:"device_class"`
	DeviceDesc  string `json:"device_desc"`
}

// Validate checks if the external login request is valid.
func (r *ExternalLoginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Code,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.DeviceClass,
			validation.Required,
			validation.By(validateDeviceClass),
		),
		validation.Field(&r.DeviceDesc,
			validation.Length(0, 255),
		),
	)
}

// validateDeviceClass checks the device class against the known values.
func validateDeviceClass(value interface{}) error {
	class, ok := value.(string)
	if !ok {
		return validation.NewError("validation_device_class", "must be a string")
	}
	if !authDomain.DeviceClass(class).Valid() {
		return validation.NewError("validation_device_class",
			"must be one of: browser, desktop, mobile")
	}
	return nil
}

// TOTPRequest contains a one-time code for the second login step.
type TOTPRequest struct {
	Code string `json:"code"`
}

// Validate checks if the TOTP request is valid.
func (r *TOTPRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Code,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}

// UnlockRequest contains the password for re-unlocking a locked session.
type UnlockRequest struct {
	Password string `json:"password"`
}

// Validate checks if the unlock request is valid.
func (r *UnlockRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Password,
			validation.Required,
		),
	)
}

// CreateUserRequest contains the parameters for registering a new user.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// Validate checks if the create user request is valid.
// Password length is enforced again by the use case.
func (r *CreateUserRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(8, 128),
		),
	)
}

// ChangePasswordRequest contains the parameters for a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Validate checks if the change password request is valid.
func (r *ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.OldPassword,
			validation.Required,
		),
		validation.Field(&r.NewPassword,
			validation.Required,
			validation.Length(8, 128),
		),
	)
}

// ResetPasswordRequest contains the parameters for a password reset.
// Destructive resets mint a fresh data key and wipe all encrypted payloads;
// recovery resets re-wrap the existing key via the external identity and
// preserve data.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
	Destructive bool   `json:"destructive"`
}

// Validate checks if the reset password request is valid.
func (r *ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.NewPassword,
			validation.Required,
			validation.Length(8, 128),
		),
	)
}

// SelfResetPasswordRequest sets a new password from an unlocked session
// without knowing the old one; the resident data key already proves access.
type SelfResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// Validate checks if the self reset request is valid.
func (r *SelfResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.NewPassword,
			validation.Required,
			validation.Length(8, 128),
		),
	)
}

// SetAdminRequest contains the parameters for granting or revoking the
// administrator role.
type SetAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}
