package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/domain"
)

type UserResponse struct {
	ID        uuid.UUID         `json:"id"`
	Username  string            `json:"username"`
	Email     string            `json:"email"`
	Status    domain.UserStatus `json:"status"`
	Avatar    string            `json:"avatar"`
	CreatedAt time.Time         `json:"createdAt"`
}

func UserToApi(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Status:    u.Status,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}
