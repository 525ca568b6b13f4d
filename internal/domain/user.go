package domain

import "time"

// User is the domain entity for a registered account.
// PostIDs is the ordered list of posts the user authored; it only grows.
type User struct {
	ID           string
	Username     string
	Name         string
	Age          int
	Email        string
	PasswordHash string
	PostIDs      []string
	CreatedAt    time.Time
}

// Author holds the public fields of a user shown next to a post.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// Author returns the public projection of u.
func (u User) Author() Author {
	return Author{ID: u.ID, Username: u.Username, Name: u.Name, Email: u.Email}
}

// Profile is the combined profile + feed view of a user.
type Profile struct {
	User  User
	Posts []Post
	Feed  []PostView
}
