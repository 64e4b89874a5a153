// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	"resume-hub/auth-service/internal/config"
	"resume-hub/auth-service/internal/db"
	"resume-hub/auth-service/internal/security"
	userdomain "resume-hub/auth-service/internal/user/domain"
	userrepo "resume-hub/auth-service/internal/user/repository"
)

const (
	devUserEmail  = "dev@example.com"
	devPassword   = "password123"
	devUserID     = "dev-user-001"
	devUser2Email = "member@example.com"
	devUser2ID    = "dev-user-002"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := userrepo.NewPostgresDirectory(conn)

	existing, err := users.FindByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed: lookup dev user: %v", err)
	}
	if existing != nil {
		log.Printf("seed: %s already exists, nothing to do", devUserEmail)
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}

	now := time.Now().UTC()
	seedUsers := []*userdomain.User{
		{ID: devUserID, Email: devUserEmail, Name: "Dev User", PasswordHash: hash, Active: true, CreatedAt: now},
		{ID: devUser2ID, Email: devUser2Email, Name: "Dev Member", PasswordHash: hash, Active: true, CreatedAt: now},
	}
	for _, u := range seedUsers {
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("seed: create %s: %v", u.Email, err)
		}
		log.Printf("seed: created %s (password %q)", u.Email, devPassword)
	}
}
