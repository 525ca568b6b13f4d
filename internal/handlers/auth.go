package handlers

import (
	"errors"
	"net/http"

	"miniblog/internal/dto"
	"miniblog/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler renders and handles register, login and logout.
type AuthHandler struct {
	*Views
	userSvc *service.UserService
}

// NewAuthHandler returns a new AuthHandler.
func NewAuthHandler(v *Views, userSvc *service.UserService) *AuthHandler {
	return &AuthHandler{Views: v, userSvc: userSvc}
}

type registerPage struct {
	Error string
	Form  dto.RegisterForm
}

func (h *AuthHandler) RegisterForm(c *gin.Context) {
	h.render(c, http.StatusOK, "register", "Register", registerPage{})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var form dto.RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "register", "Register", registerPage{Error: "Please check the form and try again", Form: form})
		return
	}

	sess, err := h.userSvc.Register(c.Request.Context(), service.RegisterInput{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		Name:     form.Name,
		Age:      form.Age,
	})
	if err != nil {
		form.Password = ""
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			h.render(c, http.StatusConflict, "register", "Register", registerPage{Error: "User already registered", Form: form})
		case errors.Is(err, service.ErrInvalidInput):
			h.render(c, http.StatusBadRequest, "register", "Register", registerPage{Error: "Email and password are required", Form: form})
		default:
			h.serverError(c, err)
		}
		return
	}

	h.setSessionCookie(c, sess.Token)
	h.InfoLog.Printf("registered %s", sess.User.Email)
	h.redirect(c, "/")
}

func (h *AuthHandler) LoginForm(c *gin.Context) {
	h.render(c, http.StatusOK, "login", "Login", nil)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var form dto.LoginForm
	_ = c.ShouldBind(&form)

	sess, err := h.userSvc.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			h.ErrorLog.Printf("login %s: %v", form.Email, err)
		}
		h.addFlash(c, "Invalid email or password")
		h.redirect(c, "/login")
		return
	}

	h.setSessionCookie(c, sess.Token)
	h.addFlash(c, "You were logged in")
	h.redirect(c, "/profile")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.clearSessionCookie(c)
	h.addFlash(c, "You were logged out")
	h.redirect(c, "/login")
}
