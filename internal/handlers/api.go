package handlers

import (
	"errors"
	"log"
	"net/http"

	"miniblog/internal/auth"
	dom "miniblog/internal/domain"
	"miniblog/internal/dto"
	"miniblog/internal/service"

	"github.com/gin-gonic/gin"
)

// APIHandler serves the JSON API under /api/v1.
type APIHandler struct {
	userSvc  *service.UserService
	postSvc  *service.PostService
	errorLog *log.Logger
}

// NewAPIHandler returns a new APIHandler.
func NewAPIHandler(userSvc *service.UserService, postSvc *service.PostService, errorLog *log.Logger) *APIHandler {
	return &APIHandler{userSvc: userSvc, postSvc: postSvc, errorLog: errorLog}
}

// Register godoc
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      dto.RegisterRequest  true  "New user"
// @Success      201   {object}  dto.TokenResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/register [post]
func (h *APIHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.userSvc.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Age:      req.Age,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.TokenResponse{Token: sess.Token, User: authorToResponse(sess.User.Author())})
}

// Login godoc
// @Summary      Login
// @Description  Returns a token for the Authorization: Bearer header.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      dto.LoginRequest  true  "Credentials"
// @Success      200   {object}  dto.TokenResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/login [post]
func (h *APIHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.userSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TokenResponse{Token: sess.Token, User: authorToResponse(sess.User.Author())})
}

// ListPosts godoc
// @Summary      List all posts, newest first
// @Tags         posts
// @Produce      json
// @Success      200  {object}  dto.ListPostsResponse
// @Failure      500  {object}  map[string]string
// @Router       /posts [get]
func (h *APIHandler) ListPosts(c *gin.Context) {
	feed, err := h.postSvc.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListPostsResponse{Items: viewsToResponses(feed)})
}

// CreatePost godoc
// @Summary      Create a post
// @Tags         posts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      dto.CreatePostRequest  true  "Post body"
// @Success      201   {object}  dto.PostResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /posts [post]
func (h *APIHandler) CreatePost(c *gin.Context) {
	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.postSvc.CreatePost(c.Request.Context(), mustClaims(c), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, postToResponse(p))
}

// UpdatePost godoc
// @Summary      Replace the content of an own post
// @Tags         posts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                 true  "Post ID"
// @Param        body  body      dto.UpdatePostRequest  true  "New content"
// @Success      200   {object}  dto.PostResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /posts/{id} [patch]
func (h *APIHandler) UpdatePost(c *gin.Context) {
	var req dto.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.postSvc.UpdatePost(c.Request.Context(), mustClaims(c), c.Param("id"), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, postToResponse(p))
}

// ToggleLike godoc
// @Summary      Like or unlike a post
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Post ID"
// @Success      200  {object}  dto.LikeResponse
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /posts/{id}/like [post]
func (h *APIHandler) ToggleLike(c *gin.Context) {
	p, liked, err := h.postSvc.ToggleLike(c.Request.Context(), mustClaims(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.LikeResponse{Post: postToResponse(p), Liked: liked})
}

// Profile godoc
// @Summary      Current user with own posts and the full feed
// @Tags         profile
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.ProfileResponse
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /profile [get]
func (h *APIHandler) Profile(c *gin.Context) {
	profile, err := h.postSvc.GetProfile(c.Request.Context(), mustClaims(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profileToResponse(profile))
}

func (h *APIHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = h.errorLog.Output(2, err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}

func authorToResponse(a dom.Author) dto.AuthorResponse {
	return dto.AuthorResponse{ID: a.ID, Username: a.Username, Name: a.Name, Email: a.Email}
}

func postToResponse(p dom.Post) dto.PostResponse {
	likes := p.Likes
	if likes == nil {
		likes = []string{}
	}
	return dto.PostResponse{
		ID:        p.ID,
		Content:   p.Content,
		Likes:     likes,
		CreatedAt: p.CreatedAt,
		AuthorID:  p.AuthorID,
	}
}

func viewsToResponses(list []dom.PostView) []dto.PostResponse {
	out := make([]dto.PostResponse, len(list))
	for i, v := range list {
		out[i] = postToResponse(v.Post)
		author := authorToResponse(v.Author)
		out[i].Author = &author
	}
	return out
}

func profileToResponse(p dom.Profile) dto.ProfileResponse {
	posts := make([]dto.PostResponse, len(p.Posts))
	for i, post := range p.Posts {
		posts[i] = postToResponse(post)
	}
	return dto.ProfileResponse{
		ID:        p.User.ID,
		Username:  p.User.Username,
		Name:      p.User.Name,
		Age:       p.User.Age,
		Email:     p.User.Email,
		CreatedAt: p.User.CreatedAt,
		Posts:     posts,
		Feed:      viewsToResponses(p.Feed),
	}
}
