// Command createstaff creates a staff account, or promotes an existing one
// with -promote.  Registration over HTTP only ever creates regular users.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/iliyamo/library-borrowing/internal/config"
	"github.com/iliyamo/library-borrowing/internal/database"
	"github.com/iliyamo/library-borrowing/internal/model"
	"github.com/iliyamo/library-borrowing/internal/repository"
	"github.com/iliyamo/library-borrowing/internal/utils"
)

type staffSetter interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	SetStaff(ctx context.Context, id uint64, isStaff bool) error
}

type sessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// promoteUser grants staff to the account and revokes its refresh tokens.
// Access tokens carry the staff claim, so the user has to log in again to
// get one that reflects the promotion.
func promoteUser(ctx context.Context, users staffSetter, tokens sessionRevoker, email string) (model.User, error) {
	u, err := users.GetByEmail(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	if err := users.SetStaff(ctx, u.ID, true); err != nil {
		return model.User{}, err
	}
	if err := tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		return model.User{}, err
	}
	u.IsStaff = true
	return u, nil
}

func main() {
	email := flag.String("email", "", "staff email address")
	password := flag.String("password", "", "password for a new account")
	promote := flag.Bool("promote", false, "grant staff to an existing account instead of creating one")
	flag.Parse()

	if *email == "" {
		log.Fatal("-email is required")
	}

	cfg := config.Load()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	users := repository.NewUserRepo(db)

	if *promote {
		u, err := promoteUser(ctx, users, repository.NewTokenRepo(db), *email)
		if errors.Is(err, repository.ErrNotFound) {
			log.Fatalf("no user with email %s", repository.NormalizeEmail(*email))
		}
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("user %d (%s) is now staff; existing sessions were revoked", u.ID, u.Email)
		return
	}

	if len(*password) < utils.MinPasswordLength {
		log.Fatalf("-password must be at least %d characters", utils.MinPasswordLength)
	}
	id, err := users.Create(ctx, *email, *password, true, cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		log.Fatal("email already exists; use -promote")
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("created staff user %d (%s)", id, repository.NormalizeEmail(*email))
}
