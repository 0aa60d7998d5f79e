// Command adduser provisions a relay account: identifier, bcrypt-hashed
// password, and optionally the reserved notification channel capability.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/dmitrijs2005/pushrelay/internal/dbx"
	"github.com/dmitrijs2005/pushrelay/internal/flagx"
	"github.com/dmitrijs2005/pushrelay/internal/logging"
	"github.com/dmitrijs2005/pushrelay/internal/protocol"
	"github.com/dmitrijs2005/pushrelay/internal/server/config"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pushrelay/internal/server/store"

	"log/slog"
)

func main() {

	cfg := config.LoadConfig()

	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-p", "-broadcast"})
	fs := flag.NewFlagSet("adduser", flag.ExitOnError)
	identifier := fs.String("u", "", "account identifier (email address)")
	password := fs.String("p", "", "password (prompted when empty)")
	broadcast := fs.Bool("broadcast", false, "grant the reserved notification channel capability")
	_ = fs.Parse(args)

	if *identifier == "" {
		log.Fatal("-u is required")
	}

	pw := *password
	if pw == "" {
		var err error
		pw, err = promptPassword()
		if err != nil {
			log.Fatalf("reading password: %v", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hashing password: %v", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	connector := store.NewConnector(cfg.DatabaseDSN, cfg.ConnectRetries, cfg.ConnectRetryDelay, logger)
	repos := repomanager.NewPostgresRepositoryManager()

	ctx := context.Background()
	db, err := connector.Open(ctx)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer db.Close()

	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		id, err := repos.Accounts(tx).Create(ctx, *identifier)
		if err != nil {
			return err
		}
		if err := repos.Credentials(tx).Create(ctx, id, string(hash)); err != nil {
			return err
		}
		if *broadcast {
			return repos.ACL(tx).Grant(ctx, id, protocol.CapabilityNotificationChannel)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("creating account: %v", err)
	}

	fmt.Printf("account %q created\n", *identifier)
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}

	fmt.Print("Repeat password: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
