// Copyright 2025 DBA Web Design
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"

	ingest "github.com/dbawebdesign/lailms-ingest"
	"github.com/dbawebdesign/lailms-ingest/ai"
	"github.com/dbawebdesign/lailms-ingest/pipeline"
)

func main() {
	app := &cli.App{
		Name:  "ingest",
		Usage: "Document ingestion and summarization pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "register",
				Usage:  "Register a file or URL as a new document",
				Action: registerCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:  "file",
						Usage: "Path to the file to ingest",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Web page or video URL to ingest",
					},
					&cli.StringFlag{
						Name:  "org",
						Usage: "Owning organization identifier",
						Value: "local",
					},
					&cli.StringFlag{
						Name:  "media-type",
						Usage: "Declared content type (detected from the file extension if empty)",
					},
				),
			},
			stageCommand("process", "Run the whole pipeline for a document", runProcess),
			stageCommand("extract", "Run only the extraction stage", runExtract),
			stageCommand("chunk", "Run only the chunking stage", runChunk),
			stageCommand("embed", "Run only the embedding stage", runEmbed),
			stageCommand("summarize", "Run summarization and finalize the document", runSummarize),
			{
				Name:   "status",
				Usage:  "Show the processing status of a document",
				Action: statusCommand,
				Flags: append(serviceFlags(),
					&cli.StringFlag{
						Name:     "doc",
						Usage:    "Document identifier",
						Required: true,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// fileConfig is the optional TOML configuration; flags override its values.
type fileConfig struct {
	DB             string `toml:"db"`
	BlobDir        string `toml:"blob_dir"`
	LLMHost        string `toml:"llm_host"`
	LLMModel       string `toml:"llm_model"`
	EmbeddingHost  string `toml:"embedding_host"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
}

func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to the data directory holding the SQLite database",
			Value:   "",
		},
		&cli.StringFlag{
			Name:  "blob-dir",
			Usage: "Path to the local blob store directory (in-memory if empty)",
		},
		&cli.StringFlag{
			Name:  "llm-host",
			Usage: "Text-generation service host URL",
		},
		&cli.StringFlag{
			Name:  "llm-model",
			Usage: "Summarization model name",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a TOML configuration file",
		},
	}
}

func stageCommand(name, usage string, run func(*ingest.Service, context.Context, string) pipeline.Result) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: append(serviceFlags(),
			&cli.StringFlag{
				Name:     "doc",
				Usage:    "Document identifier",
				Required: true,
			},
		),
		Action: func(c *cli.Context) error {
			svc, err := newService(c)
			if err != nil {
				return err
			}
			defer svc.Close()

			result := run(svc, context.Background(), c.String("doc"))
			if !result.Success {
				if result.Error != nil {
					return fmt.Errorf("%s failed: %s (%s)", name, result.Message, result.Error.Code)
				}
				return fmt.Errorf("%s failed: %s", name, result.Message)
			}
			fmt.Printf("%s: %s\n", result.DocumentID, result.Message)
			return nil
		},
	}
}

func runProcess(svc *ingest.Service, ctx context.Context, id string) pipeline.Result {
	return svc.Process(ctx, id)
}

func runExtract(svc *ingest.Service, ctx context.Context, id string) pipeline.Result {
	return svc.Pipeline().RunExtraction(ctx, id)
}

func runChunk(svc *ingest.Service, ctx context.Context, id string) pipeline.Result {
	return svc.Pipeline().RunChunking(ctx, id)
}

func runEmbed(svc *ingest.Service, ctx context.Context, id string) pipeline.Result {
	return svc.Pipeline().RunEmbedding(ctx, id)
}

func runSummarize(svc *ingest.Service, ctx context.Context, id string) pipeline.Result {
	return svc.Pipeline().RunSummarization(ctx, id)
}

// newService builds the service from flags, with TOML file values filling in
// anything the flags leave unset.
func newService(c *cli.Context) (*ingest.Service, error) {
	var fileCfg fileConfig
	if path := c.String("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := toml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	pick := func(flag, fromFile string) string {
		if c.String(flag) != "" {
			return c.String(flag)
		}
		return fromFile
	}

	var aiOpts []ai.ConfigOption
	if host := pick("llm-host", fileCfg.LLMHost); host != "" {
		aiOpts = append(aiOpts, ai.WithLLMHost(host), ai.WithSpeechHost(host))
	}
	if model := pick("llm-model", fileCfg.LLMModel); model != "" {
		aiOpts = append(aiOpts, ai.WithLLMModel(model))
	}
	if host := pick("embedding-host", fileCfg.EmbeddingHost); host != "" {
		aiOpts = append(aiOpts, ai.WithEmbeddingHost(host))
	}
	if model := pick("embedding-model", fileCfg.EmbeddingModel); model != "" {
		aiOpts = append(aiOpts, ai.WithEmbeddingModel(model))
	}
	if fileCfg.APIKey != "" {
		aiOpts = append(aiOpts, ai.WithAPIKey(fileCfg.APIKey))
	}

	cfg := ai.NewConfig(aiOpts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return ingest.NewService(
		pick("db", fileCfg.DB),
		pick("blob-dir", fileCfg.BlobDir),
		ingest.WithAIConfig(cfg),
	)
}

func registerCommand(c *cli.Context) error {
	filePath := c.String("file")
	rawURL := c.String("url")
	if (filePath == "") == (rawURL == "") {
		return fmt.Errorf("exactly one of --file or --url is required")
	}

	svc, err := newService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	if rawURL != "" {
		doc, err := svc.RegisterURL(ctx, c.String("org"), rawURL)
		if err != nil {
			return err
		}
		fmt.Println(doc.ID)
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	mediaType := c.String("media-type")
	if mediaType == "" {
		mediaType = mime.TypeByExtension(filepath.Ext(filePath))
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	doc, err := svc.RegisterFile(ctx, c.String("org"), filepath.Base(filePath), data, mediaType)
	if err != nil {
		return err
	}
	fmt.Println(doc.ID)
	return nil
}

func statusCommand(c *cli.Context) error {
	svc, err := newService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	status, err := svc.Status(context.Background(), c.String("doc"))
	if err != nil {
		return err
	}

	fmt.Printf("document: %s\n", status.DocumentID)
	fmt.Printf("status:   %s\n", status.Status)
	if status.Stage != "" {
		fmt.Printf("stage:    %s (%d%%)\n", status.Stage, status.Percent)
	}
	if status.LastError != nil {
		fmt.Printf("error:    %s: %s\n", status.LastError.Code, status.LastError.UserMessage)
		for _, action := range status.LastError.SuggestedActions {
			fmt.Printf("          - %s\n", action)
		}
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
