package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/stemsi/examhall/internal/config"
	"github.com/stemsi/examhall/internal/database"
	"github.com/stemsi/examhall/internal/logger"
	"github.com/stemsi/examhall/internal/repository"
	"github.com/stemsi/examhall/internal/service"
	"golang.org/x/term"
)

// Enrolls students either one at a time from the terminal or in bulk from a
// CSV roster with columns roll_number,name,class_label,password.
func main() {
	var roster string
	flag.StringVar(&roster, "csv", "", "Path to a roster CSV (header row required)")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	students := service.NewStudentService(repository.NewStudentRepository(pool), cfg.BcryptCost)

	if roster == "" {
		enrollOne(ctx, students)
		return
	}

	f, err := os.Open(roster)
	if err != nil {
		log.Fatal().Err(err).Str("path", roster).Msg("Failed to open roster")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 4
	r.TrimLeadingSpace = true
	if _, err := r.Read(); err != nil {
		log.Fatal().Err(err).Msg("Roster has no header row")
	}

	var created, failed int
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Error().Err(err).Int("line", line).Msg("Skipping unreadable row")
			failed++
			continue
		}
		if _, err := students.Create(ctx, rec[0], rec[1], rec[2], rec[3]); err != nil {
			log.Error().Err(err).Int("line", line).Str("roll_number", rec[0]).Msg("Failed to enroll student")
			failed++
			continue
		}
		created++
		if created%50 == 0 {
			fmt.Printf("Enrolled %d students...\n", created)
		}
	}

	fmt.Printf("\nDone: %d enrolled, %d failed.\n", created, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func enrollOne(ctx context.Context, students *service.StudentService) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Enroll Student ===")
	roll := prompt(reader, "Roll number: ")
	name := prompt(reader, "Name: ")
	class := prompt(reader, "Class label: ")

	fmt.Print("Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error reading password:", err)
		os.Exit(1)
	}
	if len(raw) < 6 {
		fmt.Fprintln(os.Stderr, "Password must be at least 6 characters")
		os.Exit(1)
	}

	s, err := students.Create(ctx, roll, name, class, string(raw))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to enroll student:", err)
		os.Exit(1)
	}
	fmt.Printf("Student %q (%s, %s) enrolled with ID %d\n", s.Name, s.RollNumber, s.ClassLabel, s.ID)
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
