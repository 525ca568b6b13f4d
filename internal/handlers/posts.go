package handlers

import (
	"errors"
	"net/http"

	"miniblog/internal/auth"
	"miniblog/internal/dto"
	"miniblog/internal/service"

	"github.com/gin-gonic/gin"
)

// PostHandler serves the feed, the profile page and the post mutations.
type PostHandler struct {
	*Views
	postSvc *service.PostService
}

// NewPostHandler returns a new PostHandler.
func NewPostHandler(v *Views, postSvc *service.PostService) *PostHandler {
	return &PostHandler{Views: v, postSvc: postSvc}
}

func (h *PostHandler) Home(c *gin.Context) {
	feed, err := h.postSvc.ListAll(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.render(c, http.StatusOK, "show", "All posts", feed)
}

func (h *PostHandler) Profile(c *gin.Context) {
	profile, err := h.postSvc.GetProfile(c.Request.Context(), mustClaims(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "profile", "Profile", profile)
}

func (h *PostHandler) Like(c *gin.Context) {
	if _, _, err := h.postSvc.ToggleLike(c.Request.Context(), mustClaims(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, "/profile")
}

func (h *PostHandler) Edit(c *gin.Context) {
	post, err := h.postSvc.EditForm(c.Request.Context(), mustClaims(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "edit", "Edit post", post)
}

func (h *PostHandler) Update(c *gin.Context) {
	var form dto.PostForm
	_ = c.ShouldBind(&form)

	id := c.Param("id")
	_, err := h.postSvc.UpdatePost(c.Request.Context(), mustClaims(c), id, form.Content)
	if errors.Is(err, service.ErrInvalidInput) {
		h.addFlash(c, "Post content must not be empty")
		h.redirect(c, "/edit/"+id)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.redirect(c, "/profile")
}

func (h *PostHandler) Create(c *gin.Context) {
	var form dto.PostForm
	_ = c.ShouldBind(&form)

	_, err := h.postSvc.CreatePost(c.Request.Context(), mustClaims(c), form.Content)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		h.addFlash(c, "Post content must not be empty")
	case err != nil:
		h.fail(c, err)
		return
	default:
		h.addFlash(c, "Your post was published")
	}
	h.redirect(c, "/profile")
}

// fail maps service errors onto the HTML error responses.
func (h *PostHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		h.clientError(c, http.StatusForbidden, "Unauthorized")
	case errors.Is(err, service.ErrNotFound):
		h.clientError(c, http.StatusNotFound, "")
	default:
		h.serverError(c, err)
	}
}

// mustClaims reads the claims set by the login guard; routes using it are always guarded.
func mustClaims(c *gin.Context) auth.Claims {
	claims, _ := auth.ClaimsFromContext(c)
	return claims
}
