// Command bootstrap_admin creates or promotes the first administrator
// account. Role demotion and deactivation refuse to remove the last admin,
// so a fresh deployment needs one seeded out of band.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/labang-online/portal-api/internal/models"
	"github.com/labang-online/portal-api/internal/repository"
	"github.com/labang-online/portal-api/pkg/config"
	"github.com/labang-online/portal-api/pkg/database"
)

func main() {
	var (
		username string
		email    string
		password string
		fullName string
		timeout  time.Duration
	)

	flag.StringVar(&username, "username", "", "admin username")
	flag.StringVar(&email, "email", "", "admin email")
	flag.StringVar(&password, "password", "", "admin password (min 8 chars)")
	flag.StringVar(&fullName, "full-name", "Portal Administrator", "admin display name")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "database operation timeout")
	flag.Parse()

	if username == "" || email == "" || len(password) < 8 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	users := repository.NewUserRepository(db)

	existing, err := users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			fmt.Printf("%s is already an admin\n", username)
			return
		}
		if err := users.UpdateRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			log.Fatalf("failed to promote %s: %v", username, err)
		}
		fmt.Printf("promoted %s to admin\n", username)
		return
	case errors.Is(err, sql.ErrNoRows):
		// Fall through to create.
	default:
		log.Fatalf("failed to look up %s: %v", username, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	admin := &models.User{
		Username:          username,
		Email:             email,
		PasswordHash:      string(hash),
		FullName:          fullName,
		Role:              models.RoleAdmin,
		ResidentConfirmed: true,
		Active:            true,
	}
	if err := users.Create(ctx, admin); err != nil {
		log.Fatalf("failed to create admin: %v", err)
	}

	fmt.Printf("created admin %s (%s)\n", username, admin.ID)
}
