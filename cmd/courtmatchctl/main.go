package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courtmatch/internal/auth"
	"courtmatch/internal/config"
	"courtmatch/internal/db"
	"courtmatch/internal/logging"
	"courtmatch/internal/metrics"
	"courtmatch/internal/services"
)

func main() {
	app := &cli.App{
		Name:  "courtmatchctl",
		Usage: "operational tasks for the courtmatch store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "config environment (configs/config.<env>.json)",
				Value:   config.GetEnv(),
				EnvVars: []string{"COURTMATCH_ENV"},
			},
		},
		Commands: []*cli.Command{
			sweepCommand(),
			indexesCommand(),
			tokenCommand(),
			clearCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type session struct {
	cfg    *config.Config
	logger zerolog.Logger
	mongo  *db.MongoDB
}

func (s *session) close() {
	if s.mongo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.mongo.Close(ctx)
}

// connect loads config and opens MongoDB. The memory driver has nothing to
// operate on, so every command refuses it.
func connect(c *cli.Context) (*session, error) {
	cfg, err := config.Load(c.String("env"))
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Driver != config.DriverMongo {
		return nil, fmt.Errorf("storage driver %q has no persistent state", cfg.Storage.Driver)
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
	mongodb, err := db.NewMongoDB(c.Context, cfg.MongoDB.URI, cfg.MongoDB.Database, logger)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, mongo: mongodb}, nil
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "expire overdue match requests once",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-lock", Usage: "skip the cross-instance lock"},
		},
		Action: func(c *cli.Context) error {
			s, err := connect(c)
			if err != nil {
				return err
			}
			defer s.close()

			sweeper := services.NewExpirySweeper(db.NewStore(s.mongo), services.SweeperConfig{
				LockTTL:         s.cfg.Sweeper.LockTTL.Duration,
				RetryMaxElapsed: s.cfg.Sweeper.RetryMaxElapsed.Duration,
			}, services.WithLogger(s.logger), services.WithMetrics(metrics.New()))

			if c.Bool("no-lock") {
				n, err := sweeper.Sweep(c.Context, time.Now())
				if err != nil {
					return err
				}
				fmt.Printf("Expired %d requests\n", n)
				return nil
			}

			n, ran, err := sweeper.RunLocked(c.Context)
			if err != nil {
				return err
			}
			if !ran {
				fmt.Println("Another instance holds the sweeper lock; nothing done")
				return nil
			}
			fmt.Printf("Expired %d requests\n", n)
			return nil
		},
	}
}

func indexesCommand() *cli.Command {
	return &cli.Command{
		Name:  "indexes",
		Usage: "create or verify collection indexes",
		Action: func(c *cli.Context) error {
			s, err := connect(c)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.mongo.EnsureIndexes(c.Context); err != nil {
				return err
			}
			fmt.Println("Indexes are in place")
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "mint a development access token for a player",
		ArgsUsage: "<player-id>",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "ttl", Value: time.Hour},
		},
		Action: func(c *cli.Context) error {
			playerID := c.Args().First()
			if playerID == "" {
				return errors.New("player id is required")
			}
			cfg, err := config.Load(c.String("env"))
			if err != nil {
				return err
			}
			if cfg.Environment == "prod" {
				return errors.New("refusing to mint tokens with production secrets")
			}
			token, err := auth.NewJWTService(cfg.JWT.AccessSecret, cfg.JWT.Issuer).IssueAccessToken(playerID, c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "delete all matches, requests, bookings and rating history (dev only)",
		Action: func(c *cli.Context) error {
			s, err := connect(c)
			if err != nil {
				return err
			}
			defer s.close()
			if s.cfg.Environment == "prod" {
				return errors.New("refusing to clear a production database")
			}

			ctx := c.Context
			for _, coll := range []struct {
				name string
				del  func() (int64, error)
			}{
				{"matches", deleteAll(ctx, s.mongo.Matches().DeleteMany)},
				{"match requests", deleteAll(ctx, s.mongo.MatchRequests().DeleteMany)},
				{"bookings", deleteAll(ctx, s.mongo.Bookings().DeleteMany)},
				{"court locks", deleteAll(ctx, s.mongo.CourtLocks().DeleteMany)},
				{"rating history entries", deleteAll(ctx, s.mongo.RatingHistory().DeleteMany)},
			} {
				n, err := coll.del()
				if err != nil {
					return fmt.Errorf("failed to delete %s: %w", coll.name, err)
				}
				fmt.Printf("Deleted %d %s\n", n, coll.name)
			}

			fmt.Println("Database cleared successfully")
			return nil
		},
	}
}

func deleteAll(ctx context.Context, deleteMany func(context.Context, interface{}, ...*options.DeleteOptions) (*mongo.DeleteResult, error)) func() (int64, error) {
	return func() (int64, error) {
		res, err := deleteMany(ctx, bson.M{})
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	}
}
