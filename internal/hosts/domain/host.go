// Package domain defines the entities of the host inventory: hosts, reusable
// credentials, roles, share grants, and the shared-secret forms a grant
// produces.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuthType says how a host authenticates its SSH connection.
type AuthType string

const (
	AuthPassword   AuthType = "password"
	AuthKey        AuthType = "key"
	AuthCredential AuthType = "credential"
)

// Valid reports whether the auth type is one of the known values.
func (a AuthType) Valid() bool {
	switch a {
	case AuthPassword, AuthKey, AuthCredential:
		return true
	}
	return false
}

// Host is an SSH target owned by a user. Secret-bearing fields hold
// ciphertext at rest and plaintext only inside an unlocked request.
type Host struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	Name                   string
	Address                string
	Port                   int
	Username               string
	AuthType               AuthType
	CredentialID           *uuid.UUID
	Password               string
	PrivateKey             string
	KeyPassphrase          string
	SudoPassword           string
	ProxyHost              string
	ProxyPort              int
	ProxyUsername          string
	ProxyPassword          string
	Autostart              bool
	AutostartPassword      string
	AutostartPrivateKey    string
	AutostartKeyPassphrase string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// SecretFields returns the host's secret-bearing columns as a field map for
// the record cipher.
func (h *Host) SecretFields() map[string]string {
	return map[string]string{
		"password":                 h.Password,
		"private_key":              h.PrivateKey,
		"key_passphrase":           h.KeyPassphrase,
		"sudo_password":            h.SudoPassword,
		"proxy_password":           h.ProxyPassword,
		"autostart_password":       h.AutostartPassword,
		"autostart_private_key":    h.AutostartPrivateKey,
		"autostart_key_passphrase": h.AutostartKeyPassphrase,
	}
}

// ApplySecretFields writes a field map back onto the host's secret-bearing
// columns.
func (h *Host) ApplySecretFields(fields map[string]string) {
	h.Password = fields["password"]
	h.PrivateKey = fields["private_key"]
	h.KeyPassphrase = fields["key_passphrase"]
	h.SudoPassword = fields["sudo_password"]
	h.ProxyPassword = fields["proxy_password"]
	h.AutostartPassword = fields["autostart_password"]
	h.AutostartPrivateKey = fields["autostart_private_key"]
	h.AutostartKeyPassphrase = fields["autostart_key_passphrase"]
}

// CreateHostInput carries the fields for creating a host. Secret fields
// arrive in plaintext and never leave the handler unencrypted.
type CreateHostInput struct {
	Name                   string
	Address                string
	Port                   int
	Username               string
	AuthType               AuthType
	CredentialID           *uuid.UUID
	Password               string
	PrivateKey             string
	KeyPassphrase          string
	SudoPassword           string
	ProxyHost              string
	ProxyPort              int
	ProxyUsername          string
	ProxyPassword          string
	Autostart              bool
	AutostartPassword      string
	AutostartPrivateKey    string
	AutostartKeyPassphrase string
}

// UpdateHostInput carries the fields for updating a host. Nil secret
// pointers mean "keep the stored ciphertext"; non-nil values replace it.
type UpdateHostInput struct {
	Name                   string
	Address                string
	Port                   int
	Username               string
	AuthType               AuthType
	CredentialID           *uuid.UUID
	Password               *string
	PrivateKey             *string
	KeyPassphrase          *string
	SudoPassword           *string
	ProxyHost              string
	ProxyPort              int
	ProxyUsername          string
	ProxyPassword          *string
	Autostart              bool
	AutostartPassword      *string
	AutostartPrivateKey    *string
	AutostartKeyPassphrase *string
}

// Credential is a reusable SSH credential owned by a user, referenced by
// hosts with AuthCredential.
type Credential struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Name          string
	AuthType      AuthType
	Username      string
	Password      string
	PrivateKey    string
	KeyPassphrase string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SecretFields returns the credential's secret-bearing columns as a field
// map for the record cipher.
func (c *Credential) SecretFields() map[string]string {
	return map[string]string{
		"password":       c.Password,
		"private_key":    c.PrivateKey,
		"key_passphrase": c.KeyPassphrase,
	}
}

// ApplySecretFields writes a field map back onto the credential's
// secret-bearing columns.
func (c *Credential) ApplySecretFields(fields map[string]string) {
	c.Password = fields["password"]
	c.PrivateKey = fields["private_key"]
	c.KeyPassphrase = fields["key_passphrase"]
}

// CreateCredentialInput carries the fields for creating a credential.
type CreateCredentialInput struct {
	Name          string
	AuthType      AuthType
	Username      string
	Password      string
	PrivateKey    string
	KeyPassphrase string
}
