package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"miniblog/internal/auth"
	"miniblog/internal/cache"
	dom "miniblog/internal/domain"
	"miniblog/internal/repo"

	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("not the owner of this post")
	ErrInvalidInput = errors.New("required field missing")
)

type PostService struct {
	users repo.UserRepo
	posts repo.PostRepo
	cache *cache.FeedCache
	sf    singleflight.Group
	log   *log.Logger
}

// NewPostService creates a PostService. If c is nil, caching is disabled.
func NewPostService(users repo.UserRepo, posts repo.PostRepo, c *cache.FeedCache, logger *log.Logger) *PostService {
	if logger == nil {
		logger = log.Default()
	}
	return &PostService{users: users, posts: posts, cache: c, log: logger}
}

// ListAll returns every post joined with its author, newest first.
// Loads are shared per cache generation, so a caller arriving after a write never
// joins a load that started before it.
func (s *PostService) ListAll(ctx context.Context) ([]dom.PostView, error) {
	if s.cache == nil {
		return s.posts.List(ctx)
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.log.Printf("feed cache generation: %v", err)
		return s.posts.List(ctx)
	}
	v, err, _ := s.sf.Do("feed:"+strconv.FormatInt(gen, 10), func() (interface{}, error) {
		if list, err := s.cache.Get(ctx, gen); err == nil && list != nil {
			return list, nil
		} else if err != nil {
			s.log.Printf("feed cache get: %v", err)
		}
		list, err := s.posts.List(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, gen, list); err != nil {
			s.log.Printf("feed cache set: %v", err)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]dom.PostView), nil
}

// GetProfile returns the user behind claims with their own posts and the full feed.
func (s *PostService) GetProfile(ctx context.Context, claims auth.Claims) (dom.Profile, error) {
	u, err := s.userByClaims(ctx, claims)
	if err != nil {
		return dom.Profile{}, err
	}
	owned, err := s.posts.ListByAuthor(ctx, u)
	if err != nil {
		return dom.Profile{}, mapRepoErr(err)
	}
	feed, err := s.ListAll(ctx)
	if err != nil {
		return dom.Profile{}, err
	}
	return dom.Profile{User: u, Posts: owned, Feed: feed}, nil
}

// CreatePost stores a post authored by the user behind claims.
func (s *PostService) CreatePost(ctx context.Context, claims auth.Claims, content string) (dom.Post, error) {
	if strings.TrimSpace(content) == "" {
		return dom.Post{}, ErrInvalidInput
	}
	u, err := s.userByClaims(ctx, claims)
	if err != nil {
		return dom.Post{}, err
	}
	p, err := s.posts.Create(ctx, dom.Post{AuthorID: u.ID, Content: content})
	if err != nil {
		return dom.Post{}, mapRepoErr(err)
	}
	s.invalidateCache(ctx)
	return p, nil
}

// EditForm returns the post for editing if claims identify its author.
func (s *PostService) EditForm(ctx context.Context, claims auth.Claims, postID string) (dom.PostView, error) {
	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return dom.PostView{}, mapRepoErr(err)
	}
	if !p.IsOwnedBy(claims.UserID) {
		return dom.PostView{}, ErrForbidden
	}
	return p, nil
}

// UpdatePost overwrites the content of a post owned by the user behind claims.
func (s *PostService) UpdatePost(ctx context.Context, claims auth.Claims, postID, content string) (dom.Post, error) {
	existing, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return dom.Post{}, mapRepoErr(err)
	}
	if !existing.IsOwnedBy(claims.UserID) {
		return dom.Post{}, ErrForbidden
	}
	if strings.TrimSpace(content) == "" {
		return dom.Post{}, ErrInvalidInput
	}
	p, err := s.posts.UpdateContent(ctx, postID, claims.UserID, content)
	if err != nil {
		return dom.Post{}, mapRepoErr(err)
	}
	s.invalidateCache(ctx)
	return p, nil
}

// ToggleLike flips the like of the user behind claims on a post. Two calls cancel out.
func (s *PostService) ToggleLike(ctx context.Context, claims auth.Claims, postID string) (dom.Post, bool, error) {
	p, err := s.posts.ToggleLike(ctx, postID, claims.UserID)
	if err != nil {
		return dom.Post{}, false, mapRepoErr(err)
	}
	s.invalidateCache(ctx)
	return p, p.LikedBy(claims.UserID), nil
}

func (s *PostService) userByClaims(ctx context.Context, claims auth.Claims) (dom.User, error) {
	u, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		return dom.User{}, mapRepoErr(err)
	}
	return u, nil
}

func (s *PostService) invalidateCache(ctx context.Context) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Printf("feed cache invalidate: %v", err)
		}
	}
}

func mapRepoErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
