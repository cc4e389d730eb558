package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/pkg/db"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func NewSeedAdminCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create or promote a verified admin account",
		Long: `Create a verified admin account, or promote an existing user.
The password is read from ADMIN_PASSWORD or prompted for on the terminal.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeedAdmin(cmd, email, name)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&name, "name", "", "admin display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runSeedAdmin(cmd *cobra.Command, email, name string) error {
	cfg, l, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	pw := os.Getenv("ADMIN_PASSWORD")
	if pw == "" {
		pw, err = promptPassword(cmd.ErrOrStderr(), int(os.Stdin.Fd()))
		if err != nil {
			return oops.Code("INPUT_FAILED").With("operation", "read password").Wrap(err)
		}
	}

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	svc := &service.AuthService{Repo: &repo.GormRepo{DB: gdb}}
	u, err := svc.SeedAdmin(ctx, email, name, pw)
	if err != nil {
		if msg := service.PublicMessage(err); msg != "" {
			return oops.Code("INVALID_INPUT").Errorf("%s", msg)
		}
		return oops.Code("SEED_FAILED").With("operation", "seed admin").Wrap(err)
	}

	l.Info("admin_seeded", "user_id", u.ID, "email", u.Email)
	cmd.Printf("Admin %s ready\n", u.Email)
	return nil
}

func promptPassword(w io.Writer, fd int) (string, error) {
	fmt.Fprint(w, "Admin password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	fmt.Fprint(w, "Repeat password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	pw := strings.TrimRight(string(first), "\r\n")
	if pw == "" {
		return "", fmt.Errorf("password is empty")
	}
	return pw, nil
}
