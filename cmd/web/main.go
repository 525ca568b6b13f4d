// @title           miniBlog API
// @version         1.0
// @description     JSON API of the miniBlog posts, likes and profile.
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"miniblog/internal/app"
	"miniblog/internal/config"
)

func main() {
	infoLog := log.New(os.Stdout, "INFO  ", log.Ldate|log.Ltime|log.Lmsgprefix)
	errorLog := log.New(os.Stderr, "ERROR ", log.Ldate|log.Ltime|log.Lshortfile|log.Lmsgprefix)

	cfg, err := config.Load()
	if err != nil {
		errorLog.Fatalf("config: %v", err)
	}
	infoLog.Printf("config loaded, opening %s store...", cfg.Store.Driver)

	application, err := app.New(cfg, infoLog, errorLog)
	if err != nil {
		errorLog.Fatalf("app init: %v", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		ErrorLog:     errorLog,
		Handler:      application.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout.Duration(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Duration(),
		IdleTimeout:  cfg.HTTP.IdleTimeout.Duration(),
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		infoLog.Println("shutting down:", s)
		if err := server.Shutdown(ctx); err != nil {
			errorLog.Printf("HTTP server Shutdown: %v", err)
		}
		if err := application.Close(ctx); err != nil {
			errorLog.Printf("close: %v", err)
		}
		close(idleConnsClosed)
	}()

	infoLog.Printf("miniblog listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errorLog.Fatalf("HTTP server ListenAndServe: %v", err)
	}

	<-idleConnsClosed
}
