// Command gmailsweep scans a Gmail mailbox, clusters automated senders,
// and after interactive review materialises labels and filters for them
// (spec §6 "Command surface": auth, init-config, run, status).
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/victor-bajanov/gmail-cleanup-automation/internal/authflow"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/config"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/gmailapi"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/pipeline"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/report"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/review"
	"github.com/victor-bajanov/gmail-cleanup-automation/internal/runstate"
	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/apperr"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	dataDir := os.Getenv("GMAIL_CLEANUP_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}

	cmd := os.Args[1]
	args := os.Args[2:]
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Warn().Msg("signal received, cancelling run; on-disk state is safe to resume")
		cancel()
	}()

	var err error
	switch cmd {
	case "auth":
		err = runAuth(ctx, log, dataDir, args)
	case "init-config":
		err = runInitConfig(dataDir)
	case "run":
		err = runPipeline(ctx, log, dataDir, args)
	case "status":
		err = runStatus(dataDir, args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		if ae, ok := apperr.As(err); ok {
			log.Error().Err(ae).Msg(ae.Message)
			os.Exit(ae.Kind.ExitCode())
		}
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: gmailsweep <auth|init-config|run|status> [flags]")
}

func authConfig(dataDir string) authflow.Config {
	return authflow.Config{
		ClientID:     os.Getenv("GMAIL_CLEANUP_CLIENT_ID"),
		ClientSecret: os.Getenv("GMAIL_CLEANUP_CLIENT_SECRET"),
		TokenPath:    filepath.Join(dataDir, "token.json"),
	}
}

func runAuth(ctx context.Context, log zerolog.Logger, dataDir string, args []string) error {
	force := false
	for _, a := range args {
		if a == "--force" {
			force = true
		}
	}
	ac := authConfig(dataDir)

	if !force {
		if ts, err := ac.Load(ctx); err == nil {
			if verr := authflow.Validate(ctx, ts); verr == nil {
				log.Info().Msg("existing token.json is valid; pass --force to re-authenticate")
				return nil
			}
		}
	}

	fmt.Println("Visit this URL to authorize gmailsweep:")
	fmt.Println(ac.AuthURL())
	fmt.Print("Paste the authorization code: ")

	reader := bufio.NewReader(os.Stdin)
	code, _ := reader.ReadString('\n')
	code = trimNewline(code)

	if _, err := ac.ExchangeAndPersist(ctx, code); err != nil {
		return err
	}
	log.Info().Str("path", ac.TokenPath).Msg("token persisted")
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func runInitConfig(dataDir string) error {
	path := filepath.Join(dataDir, "gmailsweep.yaml")
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Println("wrote", path)
	return nil
}

func runPipeline(ctx context.Context, log zerolog.Logger, dataDir string, args []string) error {
	opts := pipeline.Options{}
	for _, a := range args {
		switch a {
		case "--dry-run":
			opts.DryRun = true
		case "--no-review":
			opts.NoReview = true
		case "--labels-only":
			opts.LabelsOnly = true
		case "--filters-only":
			opts.FiltersOnly = true
		case "--resume":
			opts.Resume = true
		case "--ignore-exclusions":
			opts.IgnoreExclusions = true
		}
	}

	cfgPath := filepath.Join(dataDir, "gmailsweep.yaml")
	cfg := config.Default()
	if _, statErr := os.Stat(cfgPath); statErr == nil {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	ac := authConfig(dataDir)
	ts, err := ac.Load(ctx)
	if err != nil {
		return err
	}

	client, err := gmailapi.New(ctx, ts, gmailapi.Config{Width: cfg.Scan.MaxConcurrentRequests, Log: log})
	if err != nil {
		return err
	}

	p := &pipeline.Pipeline{
		Client: client,
		Config: cfg,
		Paths: pipeline.Paths{
			StatePath:      filepath.Join(dataDir, "state.json"),
			DecisionsPath:  filepath.Join(dataDir, "decisions.json"),
			ExclusionsPath: filepath.Join(dataDir, "exclusions.json"),
			ReportDir:      dataDir,
		},
		Log:    log,
		Prompt: review.SurveyPrompter{},
	}

	summary, err := p.Run(ctx, opts)
	if err != nil {
		return err
	}

	reportPath := filepath.Join(dataDir, fmt.Sprintf("report-%s.md", summary.RunID))
	if werr := os.WriteFile(reportPath, []byte(report.Render(summary)), 0o644); werr != nil {
		log.Warn().Err(werr).Msg("failed to write run report")
	} else {
		log.Info().Str("path", reportPath).Msg("run report written")
	}
	return nil
}

func runStatus(dataDir string, args []string) error {
	detailed := false
	for _, a := range args {
		if a == "--detailed" {
			detailed = true
		}
	}

	store := runstate.Store{Path: filepath.Join(dataDir, "state.json")}
	rs, err := store.Load()
	if err != nil {
		return err
	}
	if rs == nil {
		fmt.Println("no run in progress")
		return nil
	}

	fmt.Printf("run %s: phase=%s messages=%d clusters=%d\n", rs.RunID, rs.Phase, rs.MessageCount, rs.ClusterCount)
	if detailed {
		fmt.Printf("  scan checkpoint: fetched=%d done=%v failed=%d\n", rs.Scan.FetchedCount, rs.Scan.Done, len(rs.Scan.FailedMessageIDs))
		fmt.Printf("  labels created: %d\n", len(rs.CreatedLabelIDs))
		fmt.Printf("  filters created: %d\n", len(rs.CreatedFilterIDs))
	}
	return nil
}
