package dto

type RegisterDTO struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginDTO struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshDTO carries the value of the refreshToken cookie.
type RefreshDTO struct {
	RefreshToken string `json:"-"`
}

type ValidateDTO struct {
	AccessToken string `json:"access_token" validate:"required"`
}
