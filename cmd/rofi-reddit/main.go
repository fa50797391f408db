// Command rofi-reddit prints the hot listings of a subreddit as one
// "title<TAB>url" row per post, ready to be piped into rofi -dmenu or dmenu.
//
//	rofi-reddit golang | rofi -dmenu | cut -f2 | xargs xdg-open
//	rofi-reddit -open 3 golang
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	rofireddit "github.com/jamesprial/rofi-reddit"
	"github.com/jamesprial/rofi-reddit/internal/config"
	pkgerrs "github.com/jamesprial/rofi-reddit/pkg/errors"
	"github.com/jamesprial/rofi-reddit/pkg/types"
)

// adjustSession lets tests point the session at a local server.
var adjustSession = func(*rofireddit.Config) {}

const (
	exitOK = iota
	exitError
	exitNoListings
	exitUsage
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("rofi-reddit", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "path to config.toml (default $ROFI_REDDIT_CONFIG or the user config dir)")
	verbose := flags.Bool("v", false, "log debug output to stderr")
	openRow := flags.Int("open", 0, "open the Nth listing (1-based) instead of printing rows")
	opener := flags.String("opener", "xdg-open", "program used to open a listing URL")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: rofi-reddit [flags] <subreddit>")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return exitUsage
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			logger.Error("cannot locate config file", "error", err)
			return exitError
		}
	}

	settings, err := config.Load(path)
	if err != nil {
		logger.Error("invalid configuration", "path", path, "error", err)
		return exitError
	}
	logger.Debug("loaded configuration", "source", settings.Source, "token_path", settings.TokenPath)

	sessionConfig := &rofireddit.Config{
		ClientID:       settings.Auth.ClientID,
		ClientSecret:   settings.Auth.ClientSecret,
		ClientName:     settings.Auth.ClientName,
		TokenCachePath: settings.TokenPath,
		HotLimit:       settings.HotLimit,
		Logger:         logger,
	}
	adjustSession(sessionConfig)

	session, err := rofireddit.NewSession(sessionConfig)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		return exitError
	}

	access, page, err := session.GetHotListings(ctx, flags.Arg(0))
	if err != nil {
		if rofireddit.IsAuthFailure(err) {
			fmt.Fprintln(stderr, "Reddit rejected the client credentials; check client_id and client_secret.")
		}
		var transportErr *pkgerrs.TransportError
		if errors.As(err, &transportErr) {
			fmt.Fprintln(stderr, "Could not reach Reddit.")
		}
		logger.Error("failed to fetch listings", "error", err)
		return exitError
	}
	if access != types.AccessOK {
		fmt.Fprintln(stderr, access.Message())
		return exitNoListings
	}

	if *openRow > 0 {
		target, err := listingURL(page, *openRow)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitUsage
		}
		if err := launch(*opener, target); err != nil {
			logger.Error("failed to open listing", "opener", *opener, "url", target, "error", err)
			return exitError
		}
		return exitOK
	}

	if err := writeRows(stdout, page); err != nil {
		logger.Error("failed to write listings", "error", err)
		return exitError
	}
	return exitOK
}

// launch starts opener on target and lets it outlive this process, so it is
// not tied to the signal context.
func launch(opener, target string) error {
	cmd := exec.Command(opener, target)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// writeRows prints one "title<TAB>url" line per listing. Listings without a
// URL get an empty second column.
func writeRows(w io.Writer, page *types.ListingsPage) error {
	for _, listing := range page.Items {
		link := ""
		if listing.URL != nil {
			link = *listing.URL
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", sanitize(listing.Title), link); err != nil {
			return err
		}
	}
	return nil
}

// sanitize keeps a title on a single row and out of the URL column.
func sanitize(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

func listingURL(page *types.ListingsPage, row int) (string, error) {
	if row < 1 || row > len(page.Items) {
		return "", fmt.Errorf("row %d out of range, page has %d listings", row, len(page.Items))
	}
	listing := page.Items[row-1]
	if listing.URL == nil {
		return "", fmt.Errorf("listing %d (%q) has no url", row, listing.Title)
	}
	return *listing.URL, nil
}
