package handler

import (
	"time"

	"github.com/marketlens/account-service/internal/domain"
	"github.com/marketlens/account-service/internal/dto"
	"github.com/marketlens/account-service/internal/service"
)

func toAuthResponse(result *service.LoginResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     result.Token,
		TokenType: result.TokenType,
		ExpiresIn: result.ExpiresIn,
		User: dto.UserInfo{
			ID:        result.User.ID,
			Name:      result.User.Name,
			Email:     result.User.Email,
			Role:      result.User.Role,
			IsPremium: result.User.IsPremium,
		},
		Session: toSessionResponse(result.Session, result.Session.ID),
	}
}

func toSessionResponse(s *domain.Session, currentSessionID string) dto.SessionResponse {
	return dto.SessionResponse{
		SessionID:    s.ID,
		Platform:     s.Device.Platform,
		Browser:      s.Device.Browser,
		DeviceType:   s.Device.DeviceType,
		IPAddress:    s.Device.IPAddress,
		IsOnline:     s.IsOnline,
		IsCurrent:    s.ID == currentSessionID,
		LoginTime:    s.LoginTime,
		LastActivity: s.LastActivity,
		ExpiresAt:    s.ExpiresAt,
	}
}

func toSessionResponses(sessions []*domain.Session, currentSessionID string) []dto.SessionResponse {
	out := make([]dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s, currentSessionID))
	}
	return out
}

func toUserResponse(u *domain.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Phone:           u.Phone,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
		IsPremium:       u.IsPremium,
		CreatedAt:       u.CreatedAt.Format(time.RFC3339),
	}

	if u.PremiumExpiresAt != nil {
		v := u.PremiumExpiresAt.Format(time.RFC3339)
		resp.PremiumExpiresAt = &v
	}
	if u.LastLoginAt != nil {
		v := u.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &v
	}

	return resp
}
