// Command publish_song writes a song document into the work
// tree and publishes it to the configured branch, printing
// the publish result as JSON on stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tokura1222/music-platform/publisher/commitmsg"
	"github.com/tokura1222/music-platform/publisher/config"
	"github.com/tokura1222/music-platform/publisher/publish"
	"github.com/tokura1222/music-platform/publisher/song"
)

// errNotPublished reports a publish call that returned an
// unsuccessful result.
var errNotPublished = errors.New("song not published")

// output is the JSON document printed on stdout.
type output struct {
	publish.Result

	SongID   string           `json:"songId"`
	Strategy publish.Strategy `json:"strategy"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errNotPublished) {
			slog.Error("fatal", "error", err)
		}

		os.Exit(1)
	}
}

//nolint:funlen // CLI flag setup is inherently long
func run(args []string, stdout io.Writer) error {
	const errCtx = "running publish_song"

	fs := flag.NewFlagSet("publish_song", flag.ContinueOnError)

	var s song.Song

	fs.StringVar(&s.Title, "title", "", "Song title")
	fs.StringVar(&s.Artist, "artist", "", "Song artist")
	fs.StringVar(
		&s.Category, "category", "",
		"Song category (default \"other\")",
	)
	fs.StringVar(&s.URL, "url", "", "Audio file URL")
	fs.StringVar(
		&s.CoverPath, "cover_path", "",
		"Cover image path",
	)

	configPath := fs.String(
		"config", os.Getenv(config.EnvConfigFile),
		"YAML config file, overridden by the environment",
	)
	message := fs.String(
		"message", song.MessageTemplate,
		"Commit message template; {{title}}, {{artist}} "+
			"and {{id}} are substituted",
	)
	trailer := fs.Bool(
		"trailer", false,
		"Append the published file list to the commit message",
	)
	metricsFile := fs.String(
		"metrics_file", "",
		"Write publish metrics in text format to this file",
	)
	timeout := fs.Duration(
		"timeout", 2*time.Minute,
		"Upper bound for the whole publish",
	)
	verbose := fs.Bool(
		"verbose", false,
		"Log git commands and API requests",
	)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(
		os.Stderr, &slog.HandlerOptions{Level: level},
	)))

	load := func() (config.Config, error) {
		return config.Load(*configPath, os.LookupEnv)
	}

	entry, err := song.NewEntry(s, time.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	root := workTree(load)

	if _, err := entry.WriteTo(root); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	msg, err := entry.CommitMessage(*message)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if *trailer {
		msg += "\n" + commitmsg.Generate([]string{entry.RepoPath()})
	}

	registry := prometheus.NewRegistry()
	engine := publish.New(
		load,
		publish.WithMetrics(publish.NewMetrics(registry)),
	)

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt,
	)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	res := engine.CommitAndPush(
		ctx, msg, []publish.CommitFile{entry.CommitFile(root)},
	)

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(
			*metricsFile, registry,
		); err != nil {
			slog.Warn("writing metrics", "error", err)
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(output{
		Result:   res,
		SongID:   entry.ID,
		Strategy: engine.CurrentStrategy(),
	}); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !res.Success {
		return errNotPublished
	}

	return nil
}

// workTree returns the configured work tree, or the
// process working directory when the configuration cannot
// be loaded.
func workTree(load publish.LoadFunc) string {
	cfg, err := load()
	if err == nil || cfg.WorkTree != "" {
		return cfg.WorkTree
	}

	wd, wdErr := os.Getwd()
	if wdErr != nil {
		return "."
	}

	return wd
}
