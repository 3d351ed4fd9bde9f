package authapi

import (
	"time"

	"agora/cmd/identity"
)

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Theme       *string `json:"theme"`
	Password    *string `json:"password"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Theme       string    `json:"theme,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type authResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		Theme:       u.Theme,
		CreatedAt:   u.CreatedAt,
	}
}
