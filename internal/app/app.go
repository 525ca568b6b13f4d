package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"miniblog/internal/config"
	"miniblog/internal/repo"
	"miniblog/migrations"

	"github.com/etitcombe/logifymw"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type App struct {
	cfg      config.Config
	infoLog  *log.Logger
	errorLog *log.Logger

	mongo *mongo.Client
	db    *pgxpool.Pool
	redis *redis.Client

	users repo.UserRepo
	posts repo.PostRepo

	router *gin.Engine
}

// New opens the store selected by cfg.Store.Driver, the optional Redis feed cache,
// and builds the router.
func New(cfg config.Config, infoLog, errorLog *log.Logger) (*App, error) {
	a := &App{cfg: cfg, infoLog: infoLog, errorLog: errorLog}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.openStore(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	if cfg.Redis.Enabled() {
		rdb, err := newRedis(cfg.Redis)
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		a.redis = rdb
	}

	router, err := a.newRouter()
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.router = router
	return a, nil
}

// Router returns the gin engine without request logging; tests use it directly.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Handler wraps the router with request logging.
func (a *App) Handler() http.Handler {
	return logifymw.LogIt2(a.infoLog, a.router)
}

func (a *App) Close(ctx context.Context) error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			return fmt.Errorf("mongo disconnect: %w", err)
		}
	}
	return nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.DriverMongo:
		client, err := repo.NewMongoClient(ctx, a.cfg.Mongo.URI)
		if err != nil {
			return err
		}
		a.mongo = client
		db := client.Database(a.cfg.Mongo.Database)
		if err := repo.EnsureMongoIndexes(ctx, db); err != nil {
			if !errors.Is(err, repo.ErrLegacyDuplicates) {
				return err
			}
			a.errorLog.Printf("%v; continuing without the unique email index", err)
		}
		a.users = repo.NewMongoUserRepo(db)
		a.posts = repo.NewMongoPostRepo(client, db, a.cfg.Mongo.Transactions)
		a.infoLog.Printf("store: mongo database %s", a.cfg.Mongo.Database)

	case config.DriverPostgres:
		db, err := newPostgres(ctx, a.cfg.PG.DSN)
		if err != nil {
			return err
		}
		a.db = db
		if err := runMigrations(a.cfg.PG.DSN); err != nil {
			return err
		}
		a.users = repo.NewPGUserRepo(db)
		a.posts = repo.NewPGPostRepo(db)
		a.infoLog.Printf("store: postgres")

	case config.DriverMemory:
		store := repo.NewMemStore()
		a.users = repo.NewMemUserRepo(store)
		a.posts = repo.NewMemPostRepo(store)
		a.infoLog.Printf("store: memory, data is lost on restart")

	default:
		return fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
	return nil
}

func newPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}

	return pool, nil
}

func newRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

// runMigrations applies the embedded schema.
func runMigrations(dsn string) error {
	goose.SetBaseFS(migrations.FS)

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("goose open db: %w", err)
	}
	defer db.Close()

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (a *App) newRouter() (*gin.Engine, error) {
	if a.cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	origins := a.cfg.HTTP.AllowedOrigins()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	apiCORS := cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	})
	// Installed on the engine so preflight requests reach it even without an OPTIONS route.
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			apiCORS(c)
		}
	})

	if err := a.setup(r); err != nil {
		return nil, err
	}
	return r, nil
}
