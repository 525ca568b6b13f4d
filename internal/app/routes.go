package app

import (
	"fmt"
	"net/http"

	"miniblog/internal/auth"
	"miniblog/internal/cache"
	"miniblog/internal/handlers"
	"miniblog/internal/service"
	"miniblog/web"

	_ "miniblog/docs"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

// setup registers all routes on the given engine.
func (a *App) setup(r *gin.Engine) error {
	cfg := a.cfg

	r.GET("/health", healthHandler(cfg.App.Env))
	r.GET("/version", versionHandler(cfg.App.Version))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	templates, err := web.ParseTemplates(handlers.TemplateFuncs())
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}

	tokens := auth.NewTokens(cfg.Session.Secret, cfg.Session.TTL.Duration())
	userSvc := service.NewUserService(a.users, auth.NewHasher(cfg.Session.BcryptCost), tokens)

	var feedCache *cache.FeedCache
	if a.redis != nil {
		feedCache = cache.NewFeedCache(a.redis, cfg.Redis.DefaultTTL.Duration())
	}
	postSvc := service.NewPostService(a.users, a.posts, feedCache, a.errorLog)

	views := &handlers.Views{
		Templates:    templates,
		Flashes:      handlers.NewFlashStore(cfg.Session.Secret, cfg.Session.CookieSecure),
		CookieSecure: cfg.Session.CookieSecure,
		SessionTTL:   cfg.Session.TTL.Duration(),
		InfoLog:      a.infoLog,
		ErrorLog:     a.errorLog,
	}
	registerAuthRoutes(r, tokens, handlers.NewAuthHandler(views, userSvc))
	registerPostRoutes(r, tokens, handlers.NewPostHandler(views, postSvc))

	api := r.Group("/api/v1")
	registerAPIRoutes(api, tokens, handlers.NewAPIHandler(userSvc, postSvc, a.errorLog))
	return nil
}

func healthHandler(env string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "env": env})
	}
}

func versionHandler(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerAuthRoutes(r *gin.Engine, tokens *auth.Tokens, h *handlers.AuthHandler) {
	public := r.Group("", auth.Identify(tokens))
	public.GET("/register", h.RegisterForm)
	public.POST("/register", h.Register)
	public.GET("/login", h.LoginForm)
	public.POST("/login", h.Login)
	public.GET("/logout", h.Logout)
}

func registerPostRoutes(r *gin.Engine, tokens *auth.Tokens, h *handlers.PostHandler) {
	r.GET("/", auth.Identify(tokens), h.Home)

	protected := r.Group("", auth.RequireLogin(tokens))
	protected.GET("/profile", h.Profile)
	protected.GET("/like/:id", h.Like)
	protected.GET("/edit/:id", h.Edit)
	protected.POST("/update/:id", h.Update)
	protected.POST("/post", h.Create)
}

func registerAPIRoutes(api *gin.RouterGroup, tokens *auth.Tokens, h *handlers.APIHandler) {
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/posts", h.ListPosts)

	protected := api.Group("", auth.RequireToken(tokens))
	protected.POST("/posts", h.CreatePost)
	protected.PATCH("/posts/:id", h.UpdatePost)
	protected.POST("/posts/:id/like", h.ToggleLike)
	protected.GET("/profile", h.Profile)
}
