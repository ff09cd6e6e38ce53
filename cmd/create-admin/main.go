package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examhall/internal/config"
	"github.com/stemsi/examhall/internal/database"
	"github.com/stemsi/examhall/internal/logger"
	"github.com/stemsi/examhall/internal/model"
	"github.com/stemsi/examhall/internal/repository"
	"github.com/stemsi/examhall/internal/service"
	"golang.org/x/term"
)

func main() {
	var (
		perms  string
		update bool
	)
	flag.StringVar(&perms, "permissions", "", "Comma-separated permission codes (empty grants all)")
	flag.BoolVar(&update, "update-permissions", false, "Replace the permissions of an existing admin instead of creating one")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	adminRepo := repository.NewAdminRepository(pool)
	adminService := service.NewAdminService(adminRepo, cfg.BcryptCost)

	var permissions []string
	for _, p := range strings.Split(perms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			permissions = append(permissions, p)
		}
	}

	reader := bufio.NewReader(os.Stdin)

	if update {
		email := prompt(reader, "Email: ")
		known := model.PermissionStrings()
		if len(permissions) == 0 {
			permissions = known
		}
		for _, p := range permissions {
			if !slices.Contains(known, p) {
				fmt.Fprintf(os.Stderr, "Unknown permission %q\n", p)
				os.Exit(1)
			}
		}
		err := adminRepo.SetPermissions(ctx, email, permissions)
		if errors.Is(err, pgx.ErrNoRows) {
			fmt.Fprintf(os.Stderr, "No admin with email %s\n", email)
			os.Exit(1)
		}
		if err != nil {
			log.Fatal().Err(err).Str("email", email).Msg("Failed to update permissions")
		}
		fmt.Printf("Permissions for %s set to %s\n", email, strings.Join(permissions, ", "))
		return
	}

	fmt.Println("=== Create Admin ===")
	name := prompt(reader, "Name: ")
	email := prompt(reader, "Email: ")

	fmt.Print("Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error reading password:", err)
		os.Exit(1)
	}
	password := string(raw)
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "Password must be at least 8 characters")
		os.Exit(1)
	}

	admin, err := adminService.Create(ctx, email, name, password, permissions)
	if err != nil {
		log.Fatal().Err(err).Str("email", email).Msg("Failed to create admin")
	}
	fmt.Printf("Admin %q (%s) created with ID %d\n", admin.Name, admin.Email, admin.ID)
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		fmt.Fprintln(os.Stderr, strings.TrimSuffix(label, ": ")+" is required")
		os.Exit(1)
	}
	return line
}
