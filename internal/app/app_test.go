package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"miniblog/internal/config"
	"miniblog/internal/dto"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() config.Config {
	var cfg config.Config
	cfg.App.Env = "test"
	cfg.App.Version = "test-version"
	cfg.Store.Driver = config.DriverMemory
	cfg.HTTP.CORSAllowOrigins = "*"
	cfg.Session.Secret = "test-secret"
	cfg.Session.BcryptCost = bcrypt.MinCost
	return cfg
}

// setupTestServer starts the full app on a fresh memory store.
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	quiet := log.New(io.Discard, "", 0)

	a, err := New(testConfig(), quiet, quiet)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(a.Router())
	t.Cleanup(func() {
		ts.Close()
		_ = a.Close(context.Background())
	})
	return ts
}

// newClient returns a client with its own cookie jar. It follows redirects unless noFollow is set.
func newClient(t *testing.T, ts *httptest.Server, noFollow bool) *http.Client {
	t.Helper()
	jar, _ := cookiejar.New(nil)
	client := ts.Client()
	client.Jar = jar
	if noFollow {
		client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	}
	return client
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func postForm(t *testing.T, client *http.Client, u string, values url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := client.PostForm(u, values)
	if err != nil {
		t.Fatal(err)
	}
	return resp, readBody(t, resp)
}

func get(t *testing.T, client *http.Client, u string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(u)
	if err != nil {
		t.Fatal(err)
	}
	return resp, readBody(t, resp)
}

func register(t *testing.T, ts *httptest.Server, client *http.Client, email, password string) (*http.Response, string) {
	t.Helper()
	return postForm(t, client, ts.URL+"/register", url.Values{
		"username": {strings.Split(email, "@")[0]},
		"name":     {"Name " + email},
		"age":      {"30"},
		"email":    {email},
		"password": {password},
	})
}

func login(t *testing.T, ts *httptest.Server, client *http.Client, email, password string) (*http.Response, string) {
	t.Helper()
	return postForm(t, client, ts.URL+"/login", url.Values{"email": {email}, "password": {password}})
}

func listPosts(t *testing.T, ts *httptest.Server) []dto.PostResponse {
	t.Helper()
	resp, body := get(t, ts.Client(), ts.URL+"/api/v1/posts")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list posts: %d %s", resp.StatusCode, body)
	}
	var list dto.ListPostsResponse
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		t.Fatal(err)
	}
	return list.Items
}

func hasCookie(client *http.Client, ts *httptest.Server, name string) bool {
	u, _ := url.Parse(ts.URL)
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}

func TestRegisterLoginAndPost(t *testing.T) {
	ts := setupTestServer(t)
	client := newClient(t, ts, false)

	resp, body := register(t, ts, client, "a@x.com", "pw")
	if resp.StatusCode != http.StatusOK || resp.Request.URL.Path != "/" {
		t.Fatalf("register landed on %s with %d", resp.Request.URL.Path, resp.StatusCode)
	}
	if !strings.Contains(body, "a@x.com") {
		t.Error("home page does not show the logged in user")
	}

	get(t, client, ts.URL+"/logout")
	resp, body = login(t, ts, client, "a@x.com", "pw")
	if resp.Request.URL.Path != "/profile" {
		t.Fatalf("login landed on %s", resp.Request.URL.Path)
	}
	if !strings.Contains(body, "You were logged in") {
		t.Error("missing login flash")
	}

	resp, body = postForm(t, client, ts.URL+"/post", url.Values{"content": {"hello"}})
	if resp.Request.URL.Path != "/profile" || !strings.Contains(body, "hello") {
		t.Fatalf("post not shown on profile: %s", resp.Request.URL.Path)
	}

	_, body = get(t, client, ts.URL+"/")
	if !strings.Contains(body, "hello") || !strings.Contains(body, "gravatar.com/avatar/") {
		t.Error("home page does not list the post")
	}

	posts := listPosts(t, ts)
	if len(posts) != 1 || posts[0].Content != "hello" || posts[0].Author == nil || posts[0].Author.Email != "a@x.com" {
		t.Fatalf("posts = %+v", posts)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ts := setupTestServer(t)
	register(t, ts, newClient(t, ts, false), "a@x.com", "pw")

	client := newClient(t, ts, true)
	resp, body := register(t, ts, client, "a@x.com", "other")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if !strings.Contains(body, "User already registered") {
		t.Error("missing conflict message")
	}
	if hasCookie(client, ts, "token") {
		t.Error("session issued for duplicate registration")
	}

	resp, _ = login(t, ts, newClient(t, ts, true), "a@x.com", "other")
	if resp.Header.Get("Location") != "/login" {
		t.Error("second password was stored")
	}
}

func TestLoginFailureRedirectsToLogin(t *testing.T) {
	ts := setupTestServer(t)
	register(t, ts, newClient(t, ts, false), "a@x.com", "pw")

	for _, email := range []string{"a@x.com", "nobody@x.com"} {
		client := newClient(t, ts, true)
		resp, _ := login(t, ts, client, email, "wrong")
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
			t.Fatalf("%s: got %d to %q", email, resp.StatusCode, resp.Header.Get("Location"))
		}
		if hasCookie(client, ts, "token") {
			t.Fatalf("%s: session issued on failed login", email)
		}
		_, body := get(t, client, ts.URL+"/login")
		if !strings.Contains(body, "Invalid email or password") {
			t.Errorf("%s: missing failure flash", email)
		}
	}
}

func TestGuards(t *testing.T) {
	ts := setupTestServer(t)
	client := newClient(t, ts, true)

	for _, path := range []string{"/profile", "/like/1", "/edit/1"} {
		resp, _ := get(t, client, ts.URL+path)
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
			t.Errorf("GET %s: %d to %q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}
	resp, _ := postForm(t, client, ts.URL+"/post", url.Values{"content": {"x"}})
	if resp.Header.Get("Location") != "/login" {
		t.Errorf("POST /post: %d to %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, _ = get(t, client, ts.URL+"/api/v1/profile")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("api profile: %d, want 401", resp.StatusCode)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	ts := setupTestServer(t)
	client := newClient(t, ts, false)
	register(t, ts, client, "a@x.com", "pw")

	resp, body := get(t, client, ts.URL+"/logout")
	if resp.Request.URL.Path != "/login" || !strings.Contains(body, "You were logged out") {
		t.Fatalf("logout landed on %s", resp.Request.URL.Path)
	}
	resp, _ = get(t, client, ts.URL+"/profile")
	if resp.Request.URL.Path != "/login" {
		t.Fatal("profile reachable after logout")
	}
}

func TestEditAndUpdateOwnership(t *testing.T) {
	ts := setupTestServer(t)
	owner := newClient(t, ts, false)
	register(t, ts, owner, "a@x.com", "pw")
	postForm(t, owner, ts.URL+"/post", url.Values{"content": {"original"}})
	id := listPosts(t, ts)[0].ID

	other := newClient(t, ts, true)
	register(t, ts, other, "b@x.com", "pw")

	resp, body := get(t, other, ts.URL+"/edit/"+id)
	if resp.StatusCode != http.StatusForbidden || body != "Unauthorized" {
		t.Fatalf("non-owner edit form: %d %q", resp.StatusCode, body)
	}
	resp, _ = postForm(t, other, ts.URL+"/update/"+id, url.Values{"content": {"hijacked"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner update: %d", resp.StatusCode)
	}
	if got := listPosts(t, ts)[0].Content; got != "original" {
		t.Fatalf("content changed by non-owner: %q", got)
	}

	resp, body = get(t, owner, ts.URL+"/edit/"+id)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "original") {
		t.Fatalf("owner edit form: %d", resp.StatusCode)
	}
	resp, _ = postForm(t, owner, ts.URL+"/update/"+id, url.Values{"content": {"edited"}})
	if resp.Request.URL.Path != "/profile" {
		t.Fatalf("update landed on %s", resp.Request.URL.Path)
	}
	if got := listPosts(t, ts)[0].Content; got != "edited" {
		t.Fatalf("content = %q", got)
	}

	resp, _ = get(t, owner, ts.URL+"/edit/does-not-exist")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing post: %d", resp.StatusCode)
	}
}

func TestLikeTogglesTwice(t *testing.T) {
	ts := setupTestServer(t)
	a := newClient(t, ts, false)
	register(t, ts, a, "a@x.com", "pw")
	postForm(t, a, ts.URL+"/post", url.Values{"content": {"P"}})
	id := listPosts(t, ts)[0].ID

	b := newClient(t, ts, false)
	register(t, ts, b, "b@x.com", "pw")

	resp, _ := get(t, b, ts.URL+"/like/"+id)
	if resp.Request.URL.Path != "/profile" {
		t.Fatalf("like landed on %s", resp.Request.URL.Path)
	}
	if likes := listPosts(t, ts)[0].Likes; len(likes) != 1 {
		t.Fatalf("likes after first toggle = %v", likes)
	}
	get(t, b, ts.URL+"/like/"+id)
	if likes := listPosts(t, ts)[0].Likes; len(likes) != 0 {
		t.Fatalf("likes after second toggle = %v", likes)
	}
}

func TestEmptyPostIsRejected(t *testing.T) {
	ts := setupTestServer(t)
	client := newClient(t, ts, false)
	register(t, ts, client, "a@x.com", "pw")

	_, body := postForm(t, client, ts.URL+"/post", url.Values{"content": {"  "}})
	if !strings.Contains(body, "Post content must not be empty") {
		t.Error("missing validation flash")
	}
	if posts := listPosts(t, ts); len(posts) != 0 {
		t.Fatalf("empty post stored: %+v", posts)
	}
}

func apiCall(t *testing.T, ts *httptest.Server, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, ts.URL+path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func apiToken(t *testing.T, ts *httptest.Server, email string) string {
	t.Helper()
	status, body := apiCall(t, ts, http.MethodPost, "/api/v1/auth/register", "", dto.RegisterRequest{Email: email, Password: "pw"})
	if status != http.StatusCreated {
		t.Fatalf("api register: %d %s", status, body)
	}
	var tok dto.TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		t.Fatal(err)
	}
	return tok.Token
}

func TestAPI(t *testing.T) {
	ts := setupTestServer(t)
	alice := apiToken(t, ts, "a@x.com")
	bob := apiToken(t, ts, "b@x.com")

	status, body := apiCall(t, ts, http.MethodPost, "/api/v1/posts", alice, dto.CreatePostRequest{Content: "hi"})
	if status != http.StatusCreated {
		t.Fatalf("create: %d %s", status, body)
	}
	var post dto.PostResponse
	_ = json.Unmarshal(body, &post)

	status, _ = apiCall(t, ts, http.MethodPatch, "/api/v1/posts/"+post.ID, bob, dto.UpdatePostRequest{Content: "mine now"})
	if status != http.StatusForbidden {
		t.Fatalf("non-owner patch: %d", status)
	}

	status, body = apiCall(t, ts, http.MethodPost, "/api/v1/posts/"+post.ID+"/like", bob, nil)
	var like dto.LikeResponse
	_ = json.Unmarshal(body, &like)
	if status != http.StatusOK || !like.Liked || len(like.Post.Likes) != 1 {
		t.Fatalf("like: %d %s", status, body)
	}

	status, body = apiCall(t, ts, http.MethodGet, "/api/v1/profile", alice, nil)
	var profile dto.ProfileResponse
	_ = json.Unmarshal(body, &profile)
	if status != http.StatusOK || profile.Email != "a@x.com" || len(profile.Posts) != 1 || len(profile.Feed) != 1 {
		t.Fatalf("profile: %d %s", status, body)
	}

	status, _ = apiCall(t, ts, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: "a@x.com", Password: "nope"})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", status)
	}
	status, _ = apiCall(t, ts, http.MethodPost, "/api/v1/auth/register", "", dto.RegisterRequest{Email: "a@x.com", Password: "pw"})
	if status != http.StatusConflict {
		t.Fatalf("duplicate register: %d", status)
	}
	status, _ = apiCall(t, ts, http.MethodPost, "/api/v1/posts", "garbage", dto.CreatePostRequest{Content: "x"})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", status)
	}
}

func TestOperationalRoutes(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := get(t, ts.Client(), ts.URL+"/version")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "test-version") {
		t.Fatalf("version: %d %s", resp.StatusCode, body)
	}
	resp, _ = get(t, ts.Client(), ts.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", resp.StatusCode)
	}
	resp, body = get(t, ts.Client(), ts.URL+"/swagger-doc.json")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "/posts/{id}/like") {
		t.Fatalf("swagger doc: %d", resp.StatusCode)
	}
}

func TestAPIPreflight(t *testing.T) {
	ts := setupTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/posts", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing Access-Control-Allow-Origin")
	}
}

func TestCloseReleasesPartiallyOpenedStores(t *testing.T) {
	ctx := context.Background()

	// Neither client dials until used, so nothing needs to listen on these ports.
	pool, err := pgxpool.New(ctx, "postgres://u:p@127.0.0.1:1/miniblog")
	if err != nil {
		t.Fatal(err)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	if err != nil {
		t.Fatal(err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})

	a := &App{db: pool, mongo: client, redis: rdb}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := pool.Acquire(ctx); err == nil {
		t.Fatal("pg pool still open")
	}
	if err := client.Disconnect(ctx); !errors.Is(err, mongo.ErrClientDisconnected) {
		t.Fatalf("mongo client still connected: %v", err)
	}
	if err := rdb.Ping(ctx).Err(); !errors.Is(err, redis.ErrClosed) {
		t.Fatalf("redis client still open: %v", err)
	}
}

func TestNewFailsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.Redis.Addr = addr
	quiet := log.New(io.Discard, "", 0)
	if _, err := New(cfg, quiet, quiet); err == nil || !strings.Contains(err.Error(), "redis ping") {
		t.Fatalf("want redis ping error, got %v", err)
	}
}
