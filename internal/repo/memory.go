package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	dom "miniblog/internal/domain"

	"github.com/google/uuid"
)

// MemStore keeps users and posts in process memory. It backs STORE_DRIVER=memory and tests.
type MemStore struct {
	lock    sync.RWMutex
	users   map[string]dom.User
	byEmail map[string]string
	posts   map[string]dom.Post
	now     func() time.Time
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users:   make(map[string]dom.User),
		byEmail: make(map[string]string),
		posts:   make(map[string]dom.Post),
		now:     time.Now,
	}
}

// MemUserRepo implements UserRepo on a MemStore.
type MemUserRepo struct{ s *MemStore }

// MemPostRepo implements PostRepo on a MemStore.
type MemPostRepo struct{ s *MemStore }

func NewMemUserRepo(s *MemStore) *MemUserRepo { return &MemUserRepo{s: s} }
func NewMemPostRepo(s *MemStore) *MemPostRepo { return &MemPostRepo{s: s} }

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (r *MemUserRepo) GetByEmail(ctx context.Context, email string) (dom.User, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	id, ok := r.s.byEmail[emailKey(email)]
	if !ok {
		return dom.User{}, ErrNotFound
	}
	return copyUser(r.s.users[id]), nil
}

func (r *MemUserRepo) Create(ctx context.Context, u dom.User) (dom.User, error) {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	key := emailKey(u.Email)
	if _, taken := r.s.byEmail[key]; taken {
		return dom.User{}, ErrDuplicate
	}
	u.ID = uuid.NewString()
	u.PostIDs = nil
	u.CreatedAt = r.s.now().UTC()
	r.s.users[u.ID] = u
	r.s.byEmail[key] = u.ID
	return copyUser(u), nil
}

func (r *MemPostRepo) Create(ctx context.Context, p dom.Post) (dom.Post, error) {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	author, ok := r.s.users[p.AuthorID]
	if !ok {
		return dom.Post{}, ErrNotFound
	}
	p.ID = uuid.NewString()
	p.Likes = []string{}
	p.CreatedAt = r.s.now().UTC()
	r.s.posts[p.ID] = p

	author.PostIDs = append(append([]string(nil), author.PostIDs...), p.ID)
	r.s.users[author.ID] = author
	return copyPost(p), nil
}

func (r *MemPostRepo) GetByID(ctx context.Context, id string) (dom.PostView, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	p, ok := r.s.posts[id]
	if !ok {
		return dom.PostView{}, ErrNotFound
	}
	return r.view(p), nil
}

func (r *MemPostRepo) List(ctx context.Context) ([]dom.PostView, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	list := make([]dom.PostView, 0, len(r.s.posts))
	for _, p := range r.s.posts {
		list = append(list, r.view(p))
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (r *MemPostRepo) ListByAuthor(ctx context.Context, u dom.User) ([]dom.Post, error) {
	r.s.lock.RLock()
	defer r.s.lock.RUnlock()

	stored, ok := r.s.users[u.ID]
	if !ok {
		return nil, ErrNotFound
	}
	list := make([]dom.Post, 0, len(stored.PostIDs))
	for _, id := range stored.PostIDs {
		if p, ok := r.s.posts[id]; ok {
			list = append(list, copyPost(p))
		}
	}
	return list, nil
}

func (r *MemPostRepo) UpdateContent(ctx context.Context, id, authorID, content string) (dom.Post, error) {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	p, ok := r.s.posts[id]
	if !ok || p.AuthorID != authorID {
		return dom.Post{}, ErrNotFound
	}
	p.Content = content
	r.s.posts[id] = p
	return copyPost(p), nil
}

func (r *MemPostRepo) ToggleLike(ctx context.Context, id, userID string) (dom.Post, error) {
	r.s.lock.Lock()
	defer r.s.lock.Unlock()

	p, ok := r.s.posts[id]
	if !ok {
		return dom.Post{}, ErrNotFound
	}
	p.ToggleLike(userID)
	r.s.posts[id] = p
	return copyPost(p), nil
}

// view joins p with its author; callers hold the lock.
func (r *MemPostRepo) view(p dom.Post) dom.PostView {
	return dom.PostView{Post: copyPost(p), Author: r.s.users[p.AuthorID].Author()}
}

func copyPost(p dom.Post) dom.Post {
	p.Likes = append([]string{}, p.Likes...)
	return p
}

func copyUser(u dom.User) dom.User {
	u.PostIDs = append([]string(nil), u.PostIDs...)
	return u
}
