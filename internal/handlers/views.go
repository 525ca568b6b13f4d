package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"miniblog/internal/auth"
	"miniblog/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const flashSessionName = "flash"

// Views carries what every HTML handler needs: templates, flash store, cookie policy and loggers.
type Views struct {
	Templates    map[string]*template.Template
	Flashes      sessions.Store
	CookieSecure bool
	// SessionTTL becomes the token cookie's Max-Age; 0 keeps it a browser-session cookie.
	SessionTTL time.Duration
	InfoLog    *log.Logger
	ErrorLog   *log.Logger
}

type viewModel struct {
	Title   string
	User    *auth.Claims
	Flashes []interface{}
	Yield   interface{}
}

// TemplateFuncs are the helpers available to every page.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"gravatar":       func(email string) string { return utils.Gravatar(email, 48) },
		"datetimeformat": utils.DateTimeFormat,
	}
}

// NewFlashStore returns the signed cookie store used for flash messages.
func NewFlashStore(secret string, secure bool) *sessions.CookieStore {
	s := sessions.NewCookieStore([]byte(secret))
	s.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return s
}

func (v *Views) render(c *gin.Context, status int, name, title string, data interface{}) {
	ts, ok := v.Templates[name]
	if !ok {
		v.serverError(c, fmt.Errorf("template %s does not exist", name))
		return
	}

	vm := viewModel{Title: title, Flashes: v.popFlashes(c), Yield: data}
	if claims, ok := auth.ClaimsFromContext(c); ok {
		vm.User = &claims
	}

	buf := bytes.Buffer{}
	if err := ts.ExecuteTemplate(&buf, "layout", vm); err != nil {
		v.serverError(c, err)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (v *Views) clientError(c *gin.Context, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	c.String(status, message)
	c.Abort()
}

func (v *Views) serverError(c *gin.Context, err error) {
	trace := fmt.Sprintf("%s\n%s", err.Error(), debug.Stack())
	_ = v.ErrorLog.Output(2, trace)

	c.String(http.StatusInternalServerError, "Server error")
	c.Abort()
}

func (v *Views) addFlash(c *gin.Context, message string) {
	session, _ := v.Flashes.Get(c.Request, flashSessionName)
	session.AddFlash(message)
	if err := session.Save(c.Request, c.Writer); err != nil {
		v.ErrorLog.Printf("save flash: %v", err)
	}
}

func (v *Views) popFlashes(c *gin.Context) []interface{} {
	session, _ := v.Flashes.Get(c.Request, flashSessionName)
	flashes := session.Flashes()
	if len(flashes) > 0 {
		if err := session.Save(c.Request, c.Writer); err != nil {
			v.ErrorLog.Printf("save flash: %v", err)
		}
	}
	return flashes
}

// redirect sends a 302 like the browser flows expect.
func (v *Views) redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

func (v *Views) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(v.SessionTTL/time.Second), "/", "", v.CookieSecure, true)
}

func (v *Views) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", v.CookieSecure, true)
}
