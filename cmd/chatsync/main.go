// Command chatsync follows one property chat in the terminal.
//
// Lines typed on stdin are sent as messages. "/file <path>" sends an
// attachment, "/reload" reloads the conversation and "/quit" exits.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"propchat/internal/chatsync"
	"propchat/internal/logger"
	"propchat/internal/metrics"
	"propchat/internal/utils"
)

func main() {
	_ = godotenv.Load()

	env := viper.New()
	env.SetEnvPrefix("chatsync")
	env.AutomaticEnv()
	env.SetDefault("server", "http://localhost:8080")
	env.SetDefault("log_level", "warn")

	server := flag.String("server", env.GetString("server"), "chat server base URL")
	chatID := flag.Int64("chat", env.GetInt64("chat"), "chat id to follow")
	auth := flag.String("auth", env.GetString("auth"), "signed X-Chat-Auth value")
	userID := flag.Int64("user", env.GetInt64("user"), "user id to sign as when -auth is empty")
	secret := flag.String("secret", env.GetString("secret"), "auth secret used with -user")
	mode := flag.String("mode", "poll", "poll: reload every 15s; follow: fetch updates every 3s")
	logLevel := flag.String("log-level", env.GetString("log_level"), "log level")
	flag.Parse()

	log := logger.New(logger.Config{Level: *logLevel, Pretty: true, Output: os.Stderr, Service: "chatsync"})

	if *auth == "" && *userID > 0 && *secret != "" {
		*auth = utils.SignAuth(*secret, *userID, time.Now())
	}
	if *chatID <= 0 || *auth == "" {
		fmt.Fprintln(os.Stderr, "usage: chatsync -chat <id> (-auth <header> | -user <id> -secret <secret>) [-server URL] [-mode poll|follow]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	view := chatsync.NewTerminalView(os.Stdout, time.Local)
	cfg := chatsync.Config{
		ChatID:  *chatID,
		BaseURL: *server,
		API:     chatsync.NewClient(*server, *auth, nil),
		View:    view,
		Log:     logger.Component(log, "sync"),
		Metrics: metrics.New(),
	}

	switch *mode {
	case "poll":
		err := runPoll(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("chatsync stopped")
		}
	case "follow":
		runFollow(ctx, cfg)
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}

func runPoll(ctx context.Context, cfg chatsync.Config, log zerolog.Logger) error {
	s, err := chatsync.Open(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	_ = s.LoadAll(ctx)
	go s.Run(ctx)

	lines := readLines(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, s, line, log); quit {
				return nil
			}
		}
	}
}

// handleLine runs one input line and reports whether the user asked to quit.
func handleLine(ctx context.Context, s *chatsync.Session, line string, log zerolog.Logger) bool {
	switch {
	case line == "/quit":
		return true
	case line == "/reload":
		_ = s.LoadAll(ctx)
	case strings.HasPrefix(line, "/file "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/file "))
		if err := sendFile(ctx, s, path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("attachment not sent")
		}
	default:
		if err := s.SendText(ctx, line); err != nil && !errors.Is(err, chatsync.ErrEmptyMessage) {
			log.Warn().Err(err).Msg("message not sent")
		}
	}
	return false
}

func sendFile(ctx context.Context, s *chatsync.Session, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	up, err := chatsync.UploadFromFile(f)
	if err != nil {
		return err
	}
	return s.SendAttachment(ctx, up)
}

func runFollow(ctx context.Context, cfg chatsync.Config) {
	f := chatsync.NewFollower(cfg)
	_ = f.Tick(ctx)
	f.Run(ctx)
}

// readLines feeds stdin lines into a channel until EOF or ctx is done.
func readLines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
