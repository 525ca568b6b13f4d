package domain

import "time"

// Post is a short text entry. AuthorID is fixed at creation.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Likes     []string  `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

// PostView is a post joined with its author.
type PostView struct {
	Post
	Author Author `json:"author"`
}

// IsOwnedBy reports whether userID authored the post.
func (p Post) IsOwnedBy(userID string) bool {
	return userID != "" && p.AuthorID == userID
}

// LikedBy reports whether userID is in the likers set.
func (p Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// ToggleLike removes userID from the likers set if present, otherwise appends it.
// It returns true when the post is liked after the call.
func (p *Post) ToggleLike(userID string) bool {
	for i, id := range p.Likes {
		if id == userID {
			likes := make([]string, 0, len(p.Likes)-1)
			likes = append(likes, p.Likes[:i]...)
			p.Likes = append(likes, p.Likes[i+1:]...)
			return false
		}
	}
	p.Likes = append(p.Likes, userID)
	return true
}
