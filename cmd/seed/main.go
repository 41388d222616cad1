package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/statlerhq/accounts/config"
	"github.com/statlerhq/accounts/internal/domain/entity"
	"github.com/statlerhq/accounts/pkg/helpers"
)

// Seeds the owner account used to bootstrap a fresh deployment.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	email := "owner@example.com"
	password := "password123"
	username := "owner"

	hasher := helpers.NewPasswordHasher(cfg.BcryptCost)
	hash, err := hasher.Hash(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id int64
	err = db.QueryRow(`
		INSERT INTO users (uuid, email, username, first_name, last_name, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email) DO UPDATE SET role = EXCLUDED.role
		RETURNING id
	`, uuid.NewString(), email, username, "Site", "Owner", hash,
		string(entity.RoleOwner), string(entity.StatusActive)).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed owner: %v", err)
	}
	fmt.Printf("seeded owner: id=%d email=%s password=%s\n", id, email, password)
}
