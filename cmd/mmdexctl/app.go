package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/db/memory"
	logpkg "github.com/kailas-cloud/mmdex/internal/logger"
	"github.com/kailas-cloud/mmdex/internal/domain/search/filter"
	"github.com/kailas-cloud/mmdex/internal/domain/search/query"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	"github.com/kailas-cloud/mmdex/internal/repository/session"
	"github.com/kailas-cloud/mmdex/internal/transport/backend"
	conversationuc "github.com/kailas-cloud/mmdex/internal/usecase/conversation"
	retrievaluc "github.com/kailas-cloud/mmdex/internal/usecase/retrieval"
	"github.com/kailas-cloud/mmdex/internal/version"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "mmdexctl",
		Usage:   "operator CLI for the multi-modal retrieval backend",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend-url",
				Usage:   "retrieval backend base URL",
				Sources: cli.EnvVars("MMDEX_BACKEND_URL"),
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "retrieval backend API key",
				Sources: cli.EnvVars("MMDEX_BACKEND_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "request-by",
				Usage:   "user the backend scopes tasks to",
				Sources: cli.EnvVars("MMDEX_REQUEST_BY"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-request backend timeout",
				Value: 60 * time.Second,
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "output format: text or json",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log backend traffic to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "normalize",
				Usage:  "show the embedding request built from raw settings",
				Flags:  []cli.Flag{modalityFlag(), modelFlag(), settingsFlag()},
				Action: normalizeAction,
			},
			{
				Name:   "search",
				Usage:  "browse tasks or run a similarity search",
				Flags:  searchFlags(),
				Action: searchAction,
			},
			{
				Name:  "more",
				Usage: "run a search and page further with show more",
				Flags: append(searchFlags(), &cli.IntFlag{
					Name:  "times",
					Usage: "number of show more rounds",
					Value: 1,
				}),
				Action: searchAction,
			},
			{
				Name:  "chat",
				Usage: "ask one question and print the cited answer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "text",
						Usage:    "question text",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "audio-duration",
						Usage: "audio segment duration in seconds (1-30)",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "number of citations to retrieve",
						Value: conversationuc.DefaultTopK,
					},
				},
				Action: chatAction,
			},
		},
	}
}

func modalityFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "modality",
		Usage:    "video, audio, image or text",
		Required: true,
	}
}

func modelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "model",
		Usage: "embedding model id",
	}
}

func settingsFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "set",
		Usage: "embedding setting as key=value (embed_mode, duration_seconds, audio_duration_seconds, " +
			"detail_level, truncate_mode, max_length_chars)",
	}
}

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "text",
			Usage: "search text; empty lists tasks",
		},
		&cli.StringFlag{
			Name:  "image",
			Usage: "path to a query image; wins over --text",
		},
		&cli.StringFlag{
			Name:  "option",
			Usage: "embedding option filter: all, image, text, audio-video, video, audio",
			Value: string(filter.All),
		},
		modelFlag(),
		settingsFlag(),
	}
}

// parseSettings maps --set key=value pairs onto raw settings. Values are left
// for the normalizer to validate.
func parseSettings(model string, pairs []string) (request.Settings, error) {
	s := request.Settings{ModelID: model}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			return request.Settings{}, fmt.Errorf("setting %q must be key=value", p)
		}
		switch strings.TrimSpace(key) {
		case "model_id":
			s.ModelID = value
		case "embed_mode":
			s.EmbedMode = value
		case "duration_seconds":
			s.DurationSeconds = value
		case "audio_duration_seconds":
			s.AudioDurationSeconds = value
		case "detail_level":
			s.DetailLevel = value
		case "truncate_mode":
			s.TruncateMode = value
		case "max_length_chars":
			s.MaxLengthChars = value
		default:
			return request.Settings{}, fmt.Errorf("unknown setting %q", key)
		}
	}
	return s, nil
}

func readImage(path string) (query.Image, error) {
	if path == "" {
		return query.Image{}, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return query.Image{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) > query.MaxImageBytes {
		return query.Image{}, fmt.Errorf("image too large (max %d bytes)", query.MaxImageBytes)
	}
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if format == "jpg" {
		format = "jpeg"
	}
	return query.Image{Bytes: data, Format: format}, nil
}

func newLogger(cmd *cli.Command) (*zap.Logger, error) {
	if !cmd.Bool("verbose") {
		return zap.NewNop(), nil
	}
	return logpkg.NewLogger("local", "debug")
}

func newClient(cmd *cli.Command, logger *zap.Logger) (*backend.Client, error) {
	url := cmd.String("backend-url")
	if url == "" {
		return nil, fmt.Errorf("--backend-url or MMDEX_BACKEND_URL is required")
	}
	c, err := backend.New(backend.Config{
		BaseURL:   url,
		APIKey:    cmd.String("api-key"),
		RequestBy: cmd.String("request-by"),
		Timeout:   cmd.Duration("timeout"),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}
	return c, nil
}

// localSession wires the use cases to an in-process store for one CLI run.
type localSession struct {
	id     string
	search *retrievaluc.Service
	chat   *conversationuc.Service
}

func openLocalSession(
	ctx context.Context, client *backend.Client, logger *zap.Logger, topK int,
) (*localSession, error) {
	kv := memory.NewStore()
	locks := session.NewLocks()
	ls := &localSession{
		id: session.NewID(),
		search: retrievaluc.New(client,
			session.New[retrievaluc.State](kv, "search", time.Hour, locks, nil),
			nil, logger, retrievaluc.Config{}),
		chat: conversationuc.New(client,
			session.New[conversationuc.State](kv, "chat", time.Hour, locks, nil),
			nil, logger, conversationuc.Config{TopK: topK}),
	}
	if _, err := ls.search.Open(ctx, ls.id); err != nil {
		return nil, err
	}
	if _, err := ls.chat.Open(ctx, ls.id); err != nil {
		return nil, err
	}
	return ls, nil
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
