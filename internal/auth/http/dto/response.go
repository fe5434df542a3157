package dto

import (
	"time"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
)

// LoginResponse contains the result of a login step.
// SECURITY: The token is only returned once and must be saved securely.
type LoginResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MapLoginToResponse converts a login output to an API response.
func MapLoginToResponse(output *authDomain.LoginOutput) LoginResponse {
	return LoginResponse{
		Token:     output.Token,
		SessionID: output.SessionID.String(),
		UserID:    output.UserID.String(),
		State:     string(output.State),
		ExpiresAt: output.ExpiresAt,
	}
}

// UserResponse represents a user in API responses. Verifier and TOTP
// material never leave the server.
type UserResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsAdmin     bool      `json:"is_admin"`
	IsExternal  bool      `json:"is_external"`
	TOTPEnabled bool      `json:"totp_enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

// MapUserToResponse converts a domain user to an API response.
func MapUserToResponse(user *authDomain.User) UserResponse {
	return UserResponse{
		ID:          user.ID.String(),
		Name:        user.Name,
		IsAdmin:     user.IsAdmin,
		IsExternal:  user.IsExternal,
		TOTPEnabled: user.TOTPEnabled,
		CreatedAt:   user.CreatedAt,
	}
}

// ListUsersResponse represents a paginated list of users in API responses.
type ListUsersResponse struct {
	Data []UserResponse `json:"data"`
}

// MapUsersToListResponse converts a slice of domain users to a list API response.
func MapUsersToListResponse(users []*authDomain.User) ListUsersResponse {
	userResponses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		userResponses = append(userResponses, MapUserToResponse(user))
	}
	return ListUsersResponse{
		Data: userResponses,
	}
}

// SessionResponse represents a session in API responses. Unlocked reflects
// the in-memory key residency at the time of the request.
type SessionResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id,omitempty"`
	DeviceClass    string    `json:"device_class"`
	DeviceDesc     string    `json:"device_desc"`
	Unlocked       bool      `json:"unlocked"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// MapSessionToResponse converts a domain session to an API response.
func MapSessionToResponse(session *authDomain.Session, unlocked bool) SessionResponse {
	return SessionResponse{
		ID:             session.ID.String(),
		DeviceClass:    string(session.DeviceClass),
		DeviceDesc:     session.DeviceDesc,
		Unlocked:       unlocked,
		CreatedAt:      session.CreatedAt,
		ExpiresAt:      session.ExpiresAt,
		LastActivityAt: session.LastActivityAt,
	}
}

// MapSessionToAdminResponse is MapSessionToResponse plus the owning user,
// for the cross-user admin listing.
func MapSessionToAdminResponse(session *authDomain.Session, unlocked bool) SessionResponse {
	response := MapSessionToResponse(session, unlocked)
	response.UserID = session.UserID.String()
	return response
}

// ListSessionsResponse represents a list of live sessions in API responses.
type ListSessionsResponse struct {
	Data []SessionResponse `json:"data"`
}

// TOTPEnrollmentResponse contains the provisioning material for a started
// TOTP enrollment. SECURITY: shown once; the secret is stored server-side
// but never returned again.
type TOTPEnrollmentResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// BackupCodesResponse contains the plain backup codes produced when TOTP
// enrollment is confirmed. SECURITY: shown once, stored only as hashes.
type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}
