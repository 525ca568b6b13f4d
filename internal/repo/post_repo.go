package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	dom "miniblog/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPostRepo implements PostRepo on the posts and users collections.
type MongoPostRepo struct {
	client *mongo.Client
	posts  *mongo.Collection
	users  *mongo.Collection
	useTx  bool
}

// NewMongoPostRepo returns a new MongoPostRepo. With useTx, post creation and the
// link-back to the author run in one transaction (replica set required); without it a
// failed link-back deletes the new post again.
func NewMongoPostRepo(client *mongo.Client, db *mongo.Database, useTx bool) *MongoPostRepo {
	return &MongoPostRepo{
		client: client,
		posts:  db.Collection(postsCollection),
		users:  db.Collection(usersCollection),
		useTx:  useTx,
	}
}

func (r *MongoPostRepo) Create(ctx context.Context, p dom.Post) (dom.Post, error) {
	authorID, err := objectID(p.AuthorID)
	if err != nil {
		return dom.Post{}, err
	}
	d := postDoc{
		ID:      primitive.NewObjectID(),
		User:    authorID,
		Content: p.Content,
		Likes:   []primitive.ObjectID{},
		// BSON dates carry millisecond precision.
		Date: time.Now().UTC().Truncate(time.Millisecond),
	}

	if r.useTx {
		sess, err := r.client.StartSession()
		if err != nil {
			return dom.Post{}, fmt.Errorf("start session: %w", err)
		}
		defer sess.EndSession(ctx)

		_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			if err := r.insert(sc, d); err != nil {
				return nil, err
			}
			return nil, r.link(sc, d)
		})
		if err != nil {
			return dom.Post{}, err
		}
		return d.toDomain(), nil
	}

	if err := r.insert(ctx, d); err != nil {
		return dom.Post{}, err
	}
	if err := r.link(ctx, d); err != nil {
		if _, delErr := r.posts.DeleteOne(ctx, bson.M{"_id": d.ID}); delErr != nil {
			return dom.Post{}, fmt.Errorf("%w (orphan post %s not removed: %v)", err, d.ID.Hex(), delErr)
		}
		return dom.Post{}, err
	}
	return d.toDomain(), nil
}

func (r *MongoPostRepo) insert(ctx context.Context, d postDoc) error {
	if _, err := r.posts.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *MongoPostRepo) link(ctx context.Context, d postDoc) error {
	res, err := r.users.UpdateByID(ctx, d.User, bson.M{"$push": bson.M{"posts": d.ID}})
	if err != nil {
		return fmt.Errorf("link post to user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// withAuthor joins each post with its author's public fields.
func withAuthor(stages ...bson.D) mongo.Pipeline {
	pipeline := mongo.Pipeline(stages)
	return append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: usersCollection},
			{Key: "localField", Value: "user"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "author"},
		}}},
		bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$author"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "author.password", Value: 0},
			{Key: "author.posts", Value: 0},
		}}},
	)
}

func (r *MongoPostRepo) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]dom.PostView, error) {
	cur, err := r.posts.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []postWithAuthorDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	list := make([]dom.PostView, len(docs))
	for i := range docs {
		list[i] = docs[i].toDomain()
	}
	return list, nil
}

func (r *MongoPostRepo) GetByID(ctx context.Context, id string) (dom.PostView, error) {
	oid, err := objectID(id)
	if err != nil {
		return dom.PostView{}, err
	}
	list, err := r.aggregate(ctx, withAuthor(
		bson.D{{Key: "$match", Value: bson.D{{Key: "_id", Value: oid}}}},
		bson.D{{Key: "$limit", Value: 1}},
	))
	if err != nil {
		return dom.PostView{}, err
	}
	if len(list) == 0 {
		return dom.PostView{}, ErrNotFound
	}
	return list[0], nil
}

func (r *MongoPostRepo) List(ctx context.Context) ([]dom.PostView, error) {
	return r.aggregate(ctx, withAuthor(
		bson.D{{Key: "$sort", Value: bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}}},
	))
}

func (r *MongoPostRepo) ListByAuthor(ctx context.Context, u dom.User) ([]dom.Post, error) {
	if len(u.PostIDs) == 0 {
		return []dom.Post{}, nil
	}
	oids := make([]primitive.ObjectID, 0, len(u.PostIDs))
	for _, id := range u.PostIDs {
		if oid, err := objectID(id); err == nil {
			oids = append(oids, oid)
		}
	}

	cur, err := r.posts.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	byID := make(map[string]dom.Post, len(docs))
	for _, d := range docs {
		byID[d.ID.Hex()] = d.toDomain()
	}
	list := make([]dom.Post, 0, len(docs))
	for _, id := range u.PostIDs {
		if p, ok := byID[id]; ok {
			list = append(list, p)
		}
	}
	return list, nil
}

func (r *MongoPostRepo) UpdateContent(ctx context.Context, id, authorID, content string) (dom.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return dom.Post{}, err
	}
	author, err := objectID(authorID)
	if err != nil {
		return dom.Post{}, err
	}
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": oid, "user": author},
		bson.M{"$set": bson.M{"content": content}},
	)
}

func (r *MongoPostRepo) ToggleLike(ctx context.Context, id, userID string) (dom.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return dom.Post{}, err
	}
	uid, err := objectID(userID)
	if err != nil {
		return dom.Post{}, err
	}

	return r.findOneAndUpdate(ctx, bson.M{"_id": oid}, toggleLikeUpdate(uid))
}

// toggleLikeUpdate is a single pipeline update: drop uid from likes when present,
// append it otherwise. A missing likes field counts as empty.
func toggleLikeUpdate(uid primitive.ObjectID) mongo.Pipeline {
	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}
	toggle := bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: bson.D{{Key: "$in", Value: bson.A{uid, likes}}}},
		{Key: "then", Value: bson.D{{Key: "$filter", Value: bson.D{
			{Key: "input", Value: likes},
			{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", uid}}}},
		}}}},
		{Key: "else", Value: bson.D{{Key: "$concatArrays", Value: bson.A{likes, bson.A{uid}}}}},
	}}}
	return mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{{Key: "likes", Value: toggle}}}},
	}
}

func (r *MongoPostRepo) findOneAndUpdate(ctx context.Context, filter, update interface{}) (dom.Post, error) {
	var d postDoc
	err := r.posts.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return dom.Post{}, ErrNotFound
		}
		return dom.Post{}, err
	}
	return d.toDomain(), nil
}

// PGPostRepo implements PostRepo with Postgres. Likes live in post_likes.
type PGPostRepo struct {
	db *pgxpool.Pool
}

// NewPGPostRepo returns a new PGPostRepo.
func NewPGPostRepo(db *pgxpool.Pool) *PGPostRepo {
	return &PGPostRepo{db: db}
}

const pgPostColumns = `
	p.id::text, p.author_id::text, p.content, p.created_at,
	ARRAY(SELECT l.user_id::text FROM post_likes l WHERE l.post_id = p.id ORDER BY l.liked_at, l.user_id)`

const pgPostViewQuery = `
	SELECT ` + pgPostColumns + `, u.id::text, u.username, u.name, u.email
	FROM posts p JOIN users u ON u.id = p.author_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (dom.Post, error) {
	var p dom.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Content, &p.CreatedAt, &p.Likes)
	return p, err
}

func scanPostView(row scanner) (dom.PostView, error) {
	var v dom.PostView
	err := row.Scan(&v.ID, &v.AuthorID, &v.Content, &v.CreatedAt, &v.Likes,
		&v.Author.ID, &v.Author.Username, &v.Author.Name, &v.Author.Email)
	return v, err
}

// pgID parses a decimal id; malformed ids are reported as ErrNotFound.
func pgID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Create inserts the post; the author's post list is derived from posts.author_id,
// so the single insert is the whole unit.
func (r *PGPostRepo) Create(ctx context.Context, p dom.Post) (dom.Post, error) {
	authorID, err := pgID(p.AuthorID)
	if err != nil {
		return dom.Post{}, err
	}
	query := `
		WITH p AS (
			INSERT INTO posts (author_id, content)
			SELECT id, $2 FROM users WHERE id = $1
			RETURNING id, author_id, content, created_at
		)
		SELECT p.id::text, p.author_id::text, p.content, p.created_at, ARRAY[]::text[] FROM p`
	out, err := scanPost(r.db.QueryRow(ctx, query, authorID, p.Content))
	if err != nil {
		return dom.Post{}, notFound(err)
	}
	return out, nil
}

func (r *PGPostRepo) GetByID(ctx context.Context, id string) (dom.PostView, error) {
	pid, err := pgID(id)
	if err != nil {
		return dom.PostView{}, err
	}
	v, err := scanPostView(r.db.QueryRow(ctx, pgPostViewQuery+` WHERE p.id = $1`, pid))
	if err != nil {
		return dom.PostView{}, notFound(err)
	}
	return v, nil
}

func (r *PGPostRepo) List(ctx context.Context) ([]dom.PostView, error) {
	rows, err := r.db.Query(ctx, pgPostViewQuery+` ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []dom.PostView{}
	for rows.Next() {
		v, err := scanPostView(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

func (r *PGPostRepo) ListByAuthor(ctx context.Context, u dom.User) ([]dom.Post, error) {
	authorID, err := pgID(u.ID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+pgPostColumns+`
		FROM posts p WHERE p.author_id = $1 ORDER BY p.created_at, p.id`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []dom.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *PGPostRepo) UpdateContent(ctx context.Context, id, authorID, content string) (dom.Post, error) {
	pid, err := pgID(id)
	if err != nil {
		return dom.Post{}, err
	}
	aid, err := pgID(authorID)
	if err != nil {
		return dom.Post{}, err
	}
	query := `
		UPDATE posts p SET content = $3
		WHERE p.id = $1 AND p.author_id = $2
		RETURNING ` + pgPostColumns
	out, err := scanPost(r.db.QueryRow(ctx, query, pid, aid, content))
	if err != nil {
		return dom.Post{}, notFound(err)
	}
	return out, nil
}

// ToggleLike locks the post row so concurrent toggles on the same post serialize.
func (r *PGPostRepo) ToggleLike(ctx context.Context, id, userID string) (dom.Post, error) {
	pid, err := pgID(id)
	if err != nil {
		return dom.Post{}, err
	}
	uid, err := pgID(userID)
	if err != nil {
		return dom.Post{}, err
	}

	var out dom.Post
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, pid).Scan(&locked); err != nil {
			return notFound(err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, pid, uid)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)`, pid, uid); err != nil {
				return err
			}
		}
		out, err = scanPost(tx.QueryRow(ctx, `SELECT `+pgPostColumns+` FROM posts p WHERE p.id = $1`, pid))
		return err
	})
	if err != nil {
		return dom.Post{}, err
	}
	return out, nil
}
