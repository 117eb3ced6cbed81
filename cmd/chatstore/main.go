// ABOUTME: Demo front-end for the chat persistence layer
// ABOUTME: Exercises the factory and repositories from the command line

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Fillinger66/database-management-demo/internal/config"
	"github.com/Fillinger66/database-management-demo/internal/store"
)

// getConfigPath returns the path to the config file.
// Priority: CHATSTORE_CONFIG env var > ./chatstore.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CHATSTORE_CONFIG"); envPath != "" {
		return envPath
	}
	return "chatstore.yaml"
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: chatstore <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  init                          Create the database schema")
		fmt.Println("  create-user                   Create an account")
		fmt.Println("  register                      Create an account with a first message (one transaction)")
		fmt.Println("  add-message                   Append a chat message")
		fmt.Println("  history                       Print a session's messages")
		fmt.Println("  sessions                      List a user's sessions")
		fmt.Println("  delete-user                   Remove an account and its history")
		fmt.Println("  bench                         Run concurrent writers against one database")
		os.Exit(1)
	}

	cfg := loadConfig()
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(os.Args[1], os.Args[2:], cfg); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	path := getConfigPath()
	if _, err := os.Stat(path); err != nil {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
	return cfg
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func openFactory(cfg *config.Config) (*store.Factory, func(), error) {
	provider, err := store.NewSQLiteProvider(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	factory, err := store.NewFactory(provider, cfg.Policy())
	if err != nil {
		provider.Close()
		return nil, nil, err
	}
	return factory, func() { provider.Close() }, nil
}

func run(command string, args []string, cfg *config.Config) error {
	ctx := context.Background()

	factory, release, err := openFactory(cfg)
	if err != nil {
		return err
	}
	defer release()

	switch command {
	case "init":
		return runInit(ctx, factory)
	case "create-user":
		return runCreateUser(ctx, factory, args)
	case "register":
		return runRegister(ctx, factory, args)
	case "add-message":
		return runAddMessage(ctx, factory, args)
	case "history":
		return runHistory(ctx, factory, args)
	case "sessions":
		return runSessions(ctx, factory, args)
	case "delete-user":
		return runDeleteUser(ctx, factory, args)
	case "bench":
		return runBench(ctx, factory, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runInit(ctx context.Context, factory *store.Factory) error {
	if err := factory.InitSchema(ctx); err != nil {
		return err
	}
	fmt.Println(color.GreenString("✓"), "schema initialized")
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func runCreateUser(ctx context.Context, factory *store.Factory, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	username := fs.String("username", "", "account username (required)")
	password := fs.String("password", "", "account password (required)")
	email := fs.String("email", "", "account email (required)")
	fs.Parse(args)

	if *username == "" || *password == "" || *email == "" {
		return fmt.Errorf("create-user requires --username, --password, and --email")
	}

	hash, err := hashPassword(*password)
	if err != nil {
		return err
	}

	id, err := factory.CreateUser(ctx, *username, hash, *email)
	if err != nil {
		return err
	}
	fmt.Println(color.GreenString("✓"), "created user", color.CyanString(*username), "with id", id)
	return nil
}

func runRegister(ctx context.Context, factory *store.Factory, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "account username (required)")
	password := fs.String("password", "", "account password (required)")
	email := fs.String("email", "", "account email (required)")
	text := fs.String("text", "", "first message text (required)")
	session := fs.String("session", "", "session id (generated when empty)")
	fs.Parse(args)

	if *username == "" || *password == "" || *email == "" || *text == "" {
		return fmt.Errorf("register requires --username, --password, --email, and --text")
	}

	hash, err := hashPassword(*password)
	if err != nil {
		return err
	}

	id, err := factory.RegisterUserWithMessage(ctx, *username, hash, *email, *session, "user", *text)
	if err != nil {
		return err
	}
	fmt.Println(color.GreenString("✓"), "registered user", color.CyanString(*username), "with id", id)
	return nil
}

func runAddMessage(ctx context.Context, factory *store.Factory, args []string) error {
	fs := flag.NewFlagSet("add-message", flag.ExitOnError)
	username := fs.String("username", "", "account username (required)")
	session := fs.String("session", "", "session id (required)")
	role := fs.String("role", "user", "message role")
	text := fs.String("text", "", "message text (required)")
	fs.Parse(args)

	if *username == "" || *session == "" || *text == "" {
		return fmt.Errorf("add-message requires --username, --session, and --text")
	}

	userID, err := factory.GetUserID(ctx, *username)
	if err != nil {
		return err
	}

	id, err := factory.AddChatMessage(ctx, userID, *session, *role, *text)
	if err != nil {
		return err
	}
	fmt.Println(color.GreenString("✓"), "added message", id, "to session", color.CyanString(*session))
	return nil
}

func runHistory(ctx context.Context, factory *store.Factory, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	session := fs.String("session", "", "session id (required)")
	fs.Parse(args)

	if *session == "" {
		return fmt.Errorf("history requires --session")
	}

	history, err := factory.GetChatHistory(ctx, *session)
	if err != nil {
		return err
	}

	for _, row := range history {
		role, _ := row["role"].(string)
		text, _ := row["text"].(string)
		fmt.Printf("%s %s\n", color.YellowString("[%s]", role), text)
	}
	fmt.Println(color.HiBlackString("%d message(s)", len(history)))
	return nil
}

func runSessions(ctx context.Context, factory *store.Factory, args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	username := fs.String("username", "", "account username (required)")
	fs.Parse(args)

	if *username == "" {
		return fmt.Errorf("sessions requires --username")
	}

	userID, err := factory.GetUserID(ctx, *username)
	if err != nil {
		return err
	}

	sessions, err := factory.ListChatSessions(ctx, userID)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		fmt.Println(s)
	}
	return nil
}

func runDeleteUser(ctx context.Context, factory *store.Factory, args []string) error {
	fs := flag.NewFlagSet("delete-user", flag.ExitOnError)
	username := fs.String("username", "", "account username (required)")
	fs.Parse(args)

	if *username == "" {
		return fmt.Errorf("delete-user requires --username")
	}

	userID, err := factory.GetUserID(ctx, *username)
	if err != nil {
		return err
	}
	if err := factory.DeleteUser(ctx, userID); err != nil {
		return err
	}
	fmt.Println(color.GreenString("✓"), "deleted user", color.CyanString(*username), "and its chat history")
	return nil
}

// runBench spawns concurrent writers against one database file to show the
// retry loop absorbing lock contention.
func runBench(ctx context.Context, factory *store.Factory, args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	writers := fs.Int("writers", 8, "number of concurrent writers")
	messages := fs.Int("messages", 10, "messages per writer")
	fs.Parse(args)

	if err := factory.InitSchema(ctx); err != nil {
		return err
	}

	username := "bench-" + uuid.NewString()[:8]
	userID, err := factory.CreateUser(ctx, username, "", username+"@bench.local")
	if err != nil {
		return err
	}
	sessionID := uuid.NewString()

	start := time.Now()
	var wg sync.WaitGroup
	errs := make([]error, *writers)
	for w := 0; w < *writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < *messages; i++ {
				text := fmt.Sprintf("message %d from writer %d", i, w)
				if _, err := factory.AddChatMessage(ctx, userID, sessionID, "user", text); err != nil {
					errs[w] = err
					return
				}
			}
		}(w)
	}
	wg.Wait()

	failed := 0
	for w, err := range errs {
		if err != nil {
			failed++
			slog.Error("writer failed", "writer", w, "error", err)
		}
	}

	history, err := factory.GetChatHistory(ctx, sessionID)
	if err != nil {
		return err
	}

	fmt.Printf("%s %d writers x %d messages in %v: %d committed, %d writer(s) failed\n",
		color.GreenString("✓"), *writers, *messages, time.Since(start).Round(time.Millisecond),
		len(history), failed)

	if failed > 0 {
		return fmt.Errorf("%d writer(s) exhausted their retry budget", failed)
	}
	return nil
}
