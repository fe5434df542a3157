package dto

import (
	"time"

	hostsDomain "github.com/sshdeck/sshdeck/internal/hosts/domain"
)

// HostResponse is the API shape of a host. Secret fields are plaintext for
// the caller's own view; lazy fields stay empty until fetched through the
// secret endpoint.
type HostResponse struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"user_id"`
	Name                   string     `json:"name"`
	Address                string     `json:"address"`
	Port                   int        `json:"port"`
	Username               string     `json:"username"`
	AuthType               string     `json:"auth_type"`
	CredentialID           *string    `json:"credential_id,omitempty"`
	Password               string     `json:"password,omitempty"`
	KeyPassphrase          string     `json:"key_passphrase,omitempty"`
	SudoPassword           string     `json:"sudo_password,omitempty"`
	ProxyHost              string     `json:"proxy_host,omitempty"`
	ProxyPort              int        `json:"proxy_port,omitempty"`
	ProxyUsername          string     `json:"proxy_username,omitempty"`
	ProxyPassword          string     `json:"proxy_password,omitempty"`
	Autostart              bool       `json:"autostart"`
	AutostartPassword      string     `json:"autostart_password,omitempty"`
	AutostartKeyPassphrase string     `json:"autostart_key_passphrase,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// MapHostToResponse converts a host to its API shape. Lazy fields that
// still carry ciphertext are blanked rather than exposed.
func MapHostToResponse(host *hostsDomain.Host) HostResponse {
	var credentialID *string
	if host.CredentialID != nil {
		id := host.CredentialID.String()
		credentialID = &id
	}

	return HostResponse{
		ID:                     host.ID.String(),
		UserID:                 host.UserID.String(),
		Name:                   host.Name,
		Address:                host.Address,
		Port:                   host.Port,
		Username:               host.Username,
		AuthType:               string(host.AuthType),
		CredentialID:           credentialID,
		Password:               blankCiphertext(host.Password),
		KeyPassphrase:          blankCiphertext(host.KeyPassphrase),
		SudoPassword:           blankCiphertext(host.SudoPassword),
		ProxyHost:              host.ProxyHost,
		ProxyPort:              host.ProxyPort,
		ProxyUsername:          host.ProxyUsername,
		ProxyPassword:          blankCiphertext(host.ProxyPassword),
		Autostart:              host.Autostart,
		AutostartPassword:      blankCiphertext(host.AutostartPassword),
		AutostartKeyPassphrase: blankCiphertext(host.AutostartKeyPassphrase),
		CreatedAt:              host.CreatedAt,
		UpdatedAt:              host.UpdatedAt,
	}
}

// ListHostsResponse wraps a host collection.
type ListHostsResponse struct {
	Hosts []HostResponse `json:"hosts"`
}

// MapHostsToListResponse converts hosts to the list shape.
func MapHostsToListResponse(hosts []*hostsDomain.Host) ListHostsResponse {
	out := ListHostsResponse{Hosts: make([]HostResponse, 0, len(hosts))}
	for _, host := range hosts {
		out.Hosts = append(out.Hosts, MapHostToResponse(host))
	}
	return out
}

// AutostartHostResponse is the loopback-only shape of an autostart host.
// Unlike HostResponse it carries the full connection material, private keys
// included, so a co-located worker can open the tunnel without further
// round trips.
type AutostartHostResponse struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	Address                string  `json:"address"`
	Port                   int     `json:"port"`
	Username               string  `json:"username"`
	AuthType               string  `json:"auth_type"`
	CredentialID           *string `json:"credential_id,omitempty"`
	Password               string  `json:"password,omitempty"`
	PrivateKey             string  `json:"private_key,omitempty"`
	KeyPassphrase          string  `json:"key_passphrase,omitempty"`
	ProxyHost              string  `json:"proxy_host,omitempty"`
	ProxyPort              int     `json:"proxy_port,omitempty"`
	ProxyUsername          string  `json:"proxy_username,omitempty"`
	ProxyPassword          string  `json:"proxy_password,omitempty"`
	AutostartPassword      string  `json:"autostart_password,omitempty"`
	AutostartPrivateKey    string  `json:"autostart_private_key,omitempty"`
	AutostartKeyPassphrase string  `json:"autostart_key_passphrase,omitempty"`
}

// ListAutostartHostsResponse wraps the autostart host collection.
type ListAutostartHostsResponse struct {
	Hosts []AutostartHostResponse `json:"hosts"`
}

// MapHostsToAutostartResponse converts decrypted hosts to the loopback
// shape.
func MapHostsToAutostartResponse(hosts []*hostsDomain.Host) ListAutostartHostsResponse {
	out := ListAutostartHostsResponse{Hosts: make([]AutostartHostResponse, 0, len(hosts))}
	for _, host := range hosts {
		var credentialID *string
		if host.CredentialID != nil {
			id := host.CredentialID.String()
			credentialID = &id
		}
		out.Hosts = append(out.Hosts, AutostartHostResponse{
			ID:                     host.ID.String(),
			Name:                   host.Name,
			Address:                host.Address,
			Port:                   host.Port,
			Username:               host.Username,
			AuthType:               string(host.AuthType),
			CredentialID:           credentialID,
			Password:               host.Password,
			PrivateKey:             host.PrivateKey,
			KeyPassphrase:          host.KeyPassphrase,
			ProxyHost:              host.ProxyHost,
			ProxyPort:              host.ProxyPort,
			ProxyUsername:          host.ProxyUsername,
			ProxyPassword:          host.ProxyPassword,
			AutostartPassword:      host.AutostartPassword,
			AutostartPrivateKey:    host.AutostartPrivateKey,
			AutostartKeyPassphrase: host.AutostartKeyPassphrase,
		})
	}
	return out
}

// SecretResponse carries one lazily fetched secret value.
type SecretResponse struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// CredentialResponse is the API shape of a reusable credential.
type CredentialResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	AuthType      string    `json:"auth_type"`
	Username      string    `json:"username"`
	Password      string    `json:"password,omitempty"`
	KeyPassphrase string    `json:"key_passphrase,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MapCredentialToResponse converts a credential to its API shape.
func MapCredentialToResponse(credential *hostsDomain.Credential) CredentialResponse {
	return CredentialResponse{
		ID:            credential.ID.String(),
		UserID:        credential.UserID.String(),
		Name:          credential.Name,
		AuthType:      string(credential.AuthType),
		Username:      credential.Username,
		Password:      blankCiphertext(credential.Password),
		KeyPassphrase: blankCiphertext(credential.KeyPassphrase),
		CreatedAt:     credential.CreatedAt,
		UpdatedAt:     credential.UpdatedAt,
	}
}

// ListCredentialsResponse wraps a credential collection.
type ListCredentialsResponse struct {
	Credentials []CredentialResponse `json:"credentials"`
}

// MapCredentialsToListResponse converts credentials to the list shape.
func MapCredentialsToListResponse(credentials []*hostsDomain.Credential) ListCredentialsResponse {
	out := ListCredentialsResponse{Credentials: make([]CredentialResponse, 0, len(credentials))}
	for _, credential := range credentials {
		out.Credentials = append(out.Credentials, MapCredentialToResponse(credential))
	}
	return out
}

// GrantResponse is the API shape of a host share grant.
type GrantResponse struct {
	ID            string     `json:"id"`
	HostID        string     `json:"host_id"`
	PrincipalKind string     `json:"principal_kind"`
	PrincipalID   string     `json:"principal_id"`
	Level         string     `json:"level"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MapGrantToResponse converts a grant to its API shape.
func MapGrantToResponse(grant *hostsDomain.HostGrant) GrantResponse {
	return GrantResponse{
		ID:            grant.ID.String(),
		HostID:        grant.HostID.String(),
		PrincipalKind: string(grant.PrincipalKind),
		PrincipalID:   grant.PrincipalID.String(),
		Level:         string(grant.Level),
		ExpiresAt:     grant.ExpiresAt,
		CreatedAt:     grant.CreatedAt,
	}
}

// ListGrantsResponse wraps a grant collection.
type ListGrantsResponse struct {
	Grants []GrantResponse `json:"grants"`
}

// MapGrantsToListResponse converts grants to the list shape.
func MapGrantsToListResponse(grants []*hostsDomain.HostGrant) ListGrantsResponse {
	out := ListGrantsResponse{Grants: make([]GrantResponse, 0, len(grants))}
	for _, grant := range grants {
		out.Grants = append(out.Grants, MapGrantToResponse(grant))
	}
	return out
}

// RoleResponse is the API shape of a role.
type RoleResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MapRoleToResponse converts a role to its API shape.
func MapRoleToResponse(role *hostsDomain.Role) RoleResponse {
	return RoleResponse{
		ID:        role.ID.String(),
		Name:      role.Name,
		CreatedAt: role.CreatedAt,
	}
}

// ListRolesResponse wraps a role collection.
type ListRolesResponse struct {
	Roles []RoleResponse `json:"roles"`
}

// MapRolesToListResponse converts roles to the list shape.
func MapRolesToListResponse(roles []*hostsDomain.Role) ListRolesResponse {
	out := ListRolesResponse{Roles: make([]RoleResponse, 0, len(roles))}
	for _, role := range roles {
		out.Roles = append(out.Roles, MapRoleToResponse(role))
	}
	return out
}

// RoleMembersResponse wraps a role's member IDs.
type RoleMembersResponse struct {
	Members []string `json:"members"`
}

// blankCiphertext hides values that are still encrypted, so lazy fields
// never leak ciphertext through the API.
func blankCiphertext(value string) string {
	if len(value) >= 3 && value[:3] == "v1:" {
		return ""
	}
	return value
}
