package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/mcdev12/planning-poker/go/clients"
	"github.com/mcdev12/planning-poker/go/internal/poker/session"
	"github.com/mcdev12/planning-poker/go/internal/poker/storage"
)

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	app := &cli.App{
		Name:  "poker",
		Usage: "planning poker in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "room server base URL",
				EnvVars: []string{"POKER_SERVER"},
			},
			&cli.StringFlag{
				Name:    "cache",
				Value:   defaultCachePath(),
				Usage:   "bbolt file for the local room cache",
				EnvVars: []string{"POKER_CACHE"},
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "keep the local cache in redis instead of bbolt",
				EnvVars: []string{"REDIS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			level, err := zerolog.ParseLevel(c.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a room and print its id",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true, Usage: "room name"},
					&cli.StringFlag{Name: "user", Usage: "join the new room as this user"},
				},
				Action: createAction,
			},
			{
				Name:      "join",
				Usage:     "join a room",
				ArgsUsage: "ROOM_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true, Usage: "display name"},
				},
				Action: joinAction,
			},
			{
				Name:   "resume",
				Usage:  "rejoin the room from the last session",
				Action: resumeAction,
			},
			{
				Name:      "state",
				Usage:     "print a room snapshot",
				ArgsUsage: "ROOM_ID",
				Action:    stateAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "planning-poker.db"
	}
	return filepath.Join(dir, "planning-poker", "cache.db")
}

// openCache returns the room cache and a closer for its backend.
func openCache(c *cli.Context) (*storage.RoomCache, func(), error) {
	if addr := c.String("redis-addr"); addr != "" {
		kv, err := storage.NewRedisKV(c.Context, storage.RedisConfig{Addr: addr, Prefix: "poker:"})
		if err != nil {
			return nil, nil, err
		}
		return storage.NewRoomCache(kv), func() { kv.Close() }, nil
	}

	path := c.String("cache")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	kv, err := storage.OpenBoltKV(path)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewRoomCache(kv), func() { kv.Close() }, nil
}

func createAction(c *cli.Context) error {
	rooms := clients.NewRoomsClient(c.String("server"))
	roomID, err := rooms.CreateRoom(c.Context, c.String("name"))
	if err != nil {
		return err
	}
	fmt.Println(roomID)

	if user := c.String("user"); user != "" {
		return runSession(c, roomID, user)
	}
	return nil
}

func joinAction(c *cli.Context) error {
	roomID := c.Args().First()
	if roomID == "" {
		return cli.Exit("ROOM_ID is required", 2)
	}
	return runSession(c, roomID, c.String("user"))
}

func resumeAction(c *cli.Context) error {
	cache, closeCache, err := openCache(c)
	if err != nil {
		return err
	}
	ptr, err := cache.LoadSession(c.Context)
	closeCache()
	if err != nil {
		return err
	}
	if ptr == nil {
		return cli.Exit("no session to resume", 1)
	}
	return runSession(c, ptr.RoomID, ptr.Username)
}

func stateAction(c *cli.Context) error {
	roomID := c.Args().First()
	if roomID == "" {
		return cli.Exit("ROOM_ID is required", 2)
	}
	state, err := clients.NewRoomsClient(c.String("server")).GetRoomState(c.Context, roomID)
	if err != nil {
		return err
	}
	printSnapshot(os.Stdout, *state)
	return nil
}

func runSession(c *cli.Context, roomID, username string) error {
	cache, closeCache, err := openCache(c)
	if err != nil {
		return err
	}
	defer closeCache()

	wsURL, err := session.WebSocketURL(c.String("server"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.NewSession(
		session.Config{RoomID: roomID, Username: username},
		session.NewWebSocketTransport(wsURL, roomID),
		cache,
		nil,
	)

	go readCommands(ctx, os.Stdin, os.Stdout, sess)

	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	r := newRenderer(os.Stdout)
	for st := range sess.Updates() {
		r.render(st)
	}

	err = <-errCh
	switch {
	case err == nil:
		fmt.Println("left the room")
		return nil
	case errors.Is(err, context.Canceled):
		fmt.Println("session saved; run `poker resume` to rejoin")
		return nil
	case errors.Is(err, session.ErrRoomNotFound):
		return cli.Exit("the room no longer exists", 1)
	default:
		return cli.Exit(err.Error(), 1)
	}
}
