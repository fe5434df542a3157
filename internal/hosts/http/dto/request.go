// Package dto defines the request and response shapes of the host API.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
	customValidation "github.com/sshdeck/sshdeck/internal/validation"
)

// CreateHostRequest carries the payload for creating a host. Secret fields
// arrive in plaintext over TLS and are encrypted before they hit storage.
type CreateHostRequest struct {
	Name                   string  `json:"name"`
	Address                string  `json:"address"`
	Port                   int     `json:"port"`
	Username               string  `json:"username"`
	AuthType               string  `json:"auth_type"`
	CredentialID           *string `json:"credential_id"`
	Password               string  `json:"password"`
	PrivateKey             string  `json:"private_key"`
	KeyPassphrase          string  `json:"key_passphrase"`
	SudoPassword           string  `json:"sudo_password"`
	ProxyHost              string  `json:"proxy_host"`
	ProxyPort              int     `json:"proxy_port"`
	ProxyUsername          string  `json:"proxy_username"`
	ProxyPassword          string  `json:"proxy_password"`
	Autostart              bool    `json:"autostart"`
	AutostartPassword      string  `json:"autostart_password"`
	AutostartPrivateKey    string  `json:"autostart_private_key"`
	AutostartKeyPassphrase string  `json:"autostart_key_passphrase"`
}

// Validate checks the request fields.
func (r CreateHostRequest) Validate() error {
	return validation.Errors{
		"name": validation.Validate(r.Name,
			validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		"address": validation.Validate(r.Address,
			validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		"port":      validation.Validate(r.Port, validation.Min(0), validation.Max(65535)),
		"auth_type": validateAuthType(r.AuthType),
	}.Filter()
}

// UpdateHostRequest carries the payload for updating a host. Nil secret
// pointers keep the stored value; non-nil values replace it.
type UpdateHostRequest struct {
	Name                   string  `json:"name"`
	Address                string  `json:"address"`
	Port                   int     `json:"port"`
	Username               string  `json:"username"`
	AuthType               string  `json:"auth_type"`
	CredentialID           *string `json:"credential_id"`
	Password               *string `json:"password"`
	PrivateKey             *string `json:"private_key"`
	KeyPassphrase          *string `json:"key_passphrase"`
	SudoPassword           *string `json:"sudo_password"`
	ProxyHost              string  `json:"proxy_host"`
	ProxyPort              int     `json:"proxy_port"`
	ProxyUsername          string  `json:"proxy_username"`
	ProxyPassword          *string `json:"proxy_password"`
	Autostart              bool    `json:"autostart"`
	AutostartPassword      *string `json:"autostart_password"`
	AutostartPrivateKey    *string `json:"autostart_private_key"`
	AutostartKeyPassphrase *string `json:"autostart_key_passphrase"`
}

// Validate checks the request fields.
func (r UpdateHostRequest) Validate() error {
	return validation.Errors{
		"name": validation.Validate(r.Name,
			validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		"address": validation.Validate(r.Address,
			validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		"port":      validation.Validate(r.Port, validation.Min(0), validation.Max(65535)),
		"auth_type": validateAuthType(r.AuthType),
	}.Filter()
}

// CreateCredentialRequest carries the payload for creating a reusable
// credential.
type CreateCredentialRequest struct {
	Name          string `json:"name"`
	AuthType      string `json:"auth_type"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	PrivateKey    string `json:"private_key"`
	KeyPassphrase string `json:"key_passphrase"`
}

// Validate checks the request fields.
func (r CreateCredentialRequest) Validate() error {
	return validation.Errors{
		"name": validation.Validate(r.Name,
			validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		"auth_type": validation.Validate(r.AuthType,
			validation.Required, validation.In("password", "key")),
	}.Filter()
}

// UpdateCredentialRequest carries the payload for updating a credential.
type UpdateCredentialRequest struct {
	Name          string  `json:"name"`
	AuthType      string  `json:"auth_type"`
	Username      string  `json:"username"`
	Password      *string `json:"password"`
	PrivateKey    *string `json:"private_key"`
	KeyPassphrase *string `json:"key_passphrase"`
}

// Validate checks the request fields.
func (r UpdateCredentialRequest) Validate() error {
	return validation.Errors{
		"name": validation.Validate(r.Name,
			validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		"auth_type": validation.Validate(r.AuthType,
			validation.Required, validation.In("password", "key")),
	}.Filter()
}

// CreateGrantRequest carries the payload for sharing a host.
type CreateGrantRequest struct {
	PrincipalKind string     `json:"principal_kind"`
	PrincipalID   string     `json:"principal_id"`
	Level         string     `json:"level"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// Validate checks the request fields.
func (r CreateGrantRequest) Validate() error {
	return validation.Errors{
		"principal_kind": validation.Validate(r.PrincipalKind,
			validation.Required, validation.In("user", "role")),
		"principal_id": validation.Validate(r.PrincipalID,
			validation.Required, customValidation.NotBlank),
		"level": validation.Validate(r.Level,
			validation.Required, validation.In("read", "write")),
	}.Filter()
}

// CreateRoleRequest carries the payload for creating a role.
type CreateRoleRequest struct {
	Name string `json:"name"`
}

// Validate checks the request fields.
func (r CreateRoleRequest) Validate() error {
	return validation.Errors{
		"name": validation.Validate(r.Name,
			validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
	}.Filter()
}

// RoleMemberRequest carries the payload for assigning or removing a role
// member.
type RoleMemberRequest struct {
	UserID string `json:"user_id"`
}

// Validate checks the request fields.
func (r RoleMemberRequest) Validate() error {
	return validation.Errors{
		"user_id": validation.Validate(r.UserID,
			validation.Required, customValidation.NotBlank),
	}.Filter()
}

func validateAuthType(value string) error {
	return validation.Validate(value,
		validation.Required,
		validation.By(func(v interface{}) error {
			if !hostsDomain.AuthType(value).Valid() {
				return validation.NewError("validation_auth_type", "must be password, key, or credential")
			}
			return nil
		}),
	)
}
