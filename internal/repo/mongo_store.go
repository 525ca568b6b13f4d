package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	dom "miniblog/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection = "users"
	postsCollection = "posts"
)

// Field names match the existing miniBlog collections so their data loads as is.
type userDoc struct {
	ID       primitive.ObjectID   `bson:"_id,omitempty"`
	Username string               `bson:"username"`
	Name     string               `bson:"name"`
	Age      int                  `bson:"age"`
	Email    string               `bson:"email"`
	Password string               `bson:"password"`
	Posts    []primitive.ObjectID `bson:"posts"`
}

type postDoc struct {
	ID      primitive.ObjectID   `bson:"_id,omitempty"`
	User    primitive.ObjectID   `bson:"user"`
	Content string               `bson:"content"`
	Likes   []primitive.ObjectID `bson:"likes"`
	Date    time.Time            `bson:"date"`
}

type postWithAuthorDoc struct {
	Post   postDoc  `bson:",inline"`
	Author *userDoc `bson:"author,omitempty"`
}

func (d userDoc) toDomain() dom.User {
	return dom.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Name:         d.Name,
		Age:          d.Age,
		Email:        d.Email,
		PasswordHash: d.Password,
		PostIDs:      hexIDs(d.Posts),
		CreatedAt:    d.ID.Timestamp(),
	}
}

func (d postDoc) toDomain() dom.Post {
	return dom.Post{
		ID:        d.ID.Hex(),
		AuthorID:  d.User.Hex(),
		Content:   d.Content,
		Likes:     hexIDs(d.Likes),
		CreatedAt: d.Date,
	}
}

func (d postWithAuthorDoc) toDomain() dom.PostView {
	v := dom.PostView{Post: d.Post.toDomain()}
	if d.Author != nil {
		v.Author = d.Author.toDomain().Author()
	}
	return v
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

// NewMongoClient connects to uri and pings the primary.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// emailCollation compares emails case-insensitively, so accounts stored with mixed-case
// addresses match the lowercased lookups of the user service.
var emailCollation = &options.Collation{Locale: "en", Strength: 2}

// ErrLegacyDuplicates reports that existing users share an email, so the unique email
// index could not be built. Registration still checks before inserting.
var ErrLegacyDuplicates = errors.New("users collection holds duplicate emails")

// EnsureMongoIndexes creates the unique email index and the feed ordering index.
// It returns an error wrapping ErrLegacyDuplicates, after creating the feed index, when
// only the email index could not be built because of existing duplicates.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(postsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("posts date index: %w", err)
	}
	_, err = db.Collection(usersCollection).Indexes().CreateOne(ctx, emailIndex())
	return emailIndexErr(err)
}

func emailIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_ci_unique").
			SetUnique(true).
			SetCollation(emailCollation),
	}
}

func emailIndexErr(err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("users email index: %w: %v", ErrLegacyDuplicates, err)
	default:
		return fmt.Errorf("users email index: %w", err)
	}
}

// objectID parses a hex id; malformed ids are reported as ErrNotFound.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}
