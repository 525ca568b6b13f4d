package dto

import "time"

// PostForm is the body of POST /post and POST /update/:id.
type PostForm struct {
	Content string `form:"content"`
}

type CreatePostRequest struct {
	Content string `json:"content" binding:"required"`
}

type UpdatePostRequest struct {
	Content string `json:"content" binding:"required"`
}

type PostResponse struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	Likes     []string        `json:"likes"`
	CreatedAt time.Time       `json:"created_at"`
	AuthorID  string          `json:"author_id"`
	Author    *AuthorResponse `json:"author,omitempty"`
}

type LikeResponse struct {
	Post  PostResponse `json:"post"`
	Liked bool         `json:"liked"`
}

type ListPostsResponse struct {
	Items []PostResponse `json:"items"`
}
