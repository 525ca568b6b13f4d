//go:build ignore

// One-off: SESSION_SECRET=... go run scripts/gentoken.go <email> <user id>
// Prints a session token usable as the "token" cookie or an Authorization: Bearer header.
package main

import (
	"fmt"
	"os"
	"time"

	"miniblog/internal/auth"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: go run scripts/gentoken.go <email> <user id> [ttl]")
		os.Exit(2)
	}
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "SESSION_SECRET is not set")
		os.Exit(2)
	}
	var ttl time.Duration
	if len(os.Args) > 3 {
		d, err := time.ParseDuration(os.Args[3])
		if err != nil {
			panic(err)
		}
		ttl = d
	}
	token, err := auth.NewTokens(secret, ttl).Issue(os.Args[1], os.Args[2])
	if err != nil {
		panic(err)
	}
	fmt.Print(token)
}
