package dto

import "time"

// RegisterForm is the body of POST /register.
type RegisterForm struct {
	Username string `form:"username"`
	Name     string `form:"name"`
	Age      int    `form:"age"`
	Email    string `form:"email"`
	Password string `form:"password"`
}

// LoginForm is the body of POST /login.
type LoginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

// AuthorResponse is the public part of a user.
type AuthorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// ProfileResponse is returned by GET /profile.
type ProfileResponse struct {
	ID        string         `json:"id"`
	Username  string         `json:"username"`
	Name      string         `json:"name"`
	Age       int            `json:"age"`
	Email     string         `json:"email"`
	CreatedAt time.Time      `json:"created_at"`
	Posts     []PostResponse `json:"posts"`
	Feed      []PostResponse `json:"feed"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries a session token for the Authorization header.
type TokenResponse struct {
	Token string         `json:"token"`
	User  AuthorResponse `json:"user"`
}
