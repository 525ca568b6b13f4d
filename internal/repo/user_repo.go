package repo

import (
	"context"
	"errors"
	"strings"

	dom "miniblog/internal/domain"
	"miniblog/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserRepo implements UserRepo on the users collection.
type MongoUserRepo struct {
	users *mongo.Collection
}

// NewMongoUserRepo returns a new MongoUserRepo.
func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{users: db.Collection(usersCollection)}
}

// GetByEmail returns the user by email, ignoring case.
func (r *MongoUserRepo) GetByEmail(ctx context.Context, email string) (dom.User, error) {
	var d userDoc
	err := r.users.FindOne(ctx, bson.M{"email": email},
		options.FindOne().SetCollation(emailCollation),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, err
	}
	return d.toDomain(), nil
}

// Create inserts a new user and returns it.
func (r *MongoUserRepo) Create(ctx context.Context, u dom.User) (dom.User, error) {
	d := userDoc{
		ID:       primitive.NewObjectID(),
		Username: u.Username,
		Name:     u.Name,
		Age:      u.Age,
		Email:    u.Email,
		Password: u.PasswordHash,
		Posts:    []primitive.ObjectID{},
	}
	if _, err := r.users.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return dom.User{}, ErrDuplicate
		}
		return dom.User{}, err
	}
	return d.toDomain(), nil
}

// PGUserRepo implements UserRepo with Postgres.
type PGUserRepo struct {
	db *pgxpool.Pool
}

// NewPGUserRepo returns a new PGUserRepo.
func NewPGUserRepo(db *pgxpool.Pool) *PGUserRepo {
	return &PGUserRepo{db: db}
}

// GetByEmail returns the user by email, with the ids of the posts they authored.
func (r *PGUserRepo) GetByEmail(ctx context.Context, email string) (dom.User, error) {
	query := `
		SELECT u.id::text, u.username, u.name, u.age, u.email, u.password_hash, u.created_at,
			ARRAY(SELECT p.id::text FROM posts p WHERE p.author_id = u.id ORDER BY p.created_at, p.id)
		FROM users u WHERE u.email = $1`
	var u dom.User
	err := r.db.QueryRow(ctx, query, strings.TrimSpace(email)).Scan(
		&u.ID, &u.Username, &u.Name, &u.Age, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.PostIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, err
	}
	return u, nil
}

// Create inserts a new user and returns it.
func (r *PGUserRepo) Create(ctx context.Context, u dom.User) (dom.User, error) {
	query := `
		INSERT INTO users (username, name, age, email, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, username, name, age, email, password_hash, created_at`
	var out dom.User
	err := r.db.QueryRow(ctx, query, u.Username, u.Name, u.Age, u.Email, u.PasswordHash).Scan(
		&out.ID, &out.Username, &out.Name, &out.Age, &out.Email, &out.PasswordHash, &out.CreatedAt,
	)
	if err != nil {
		if utils.IsPGUniqueViolation(err) {
			return dom.User{}, ErrDuplicate
		}
		return dom.User{}, err
	}
	out.PostIDs = []string{}
	return out, nil
}
