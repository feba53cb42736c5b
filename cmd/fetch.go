package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wham/github-discussions/internal/artifact"
	"github.com/wham/github-discussions/internal/config"
	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/logging"
	"github.com/wham/github-discussions/internal/pipeline"
	"github.com/wham/github-discussions/internal/progress"
	"github.com/wham/github-discussions/internal/query"
	"github.com/wham/github-discussions/internal/since"
)

// fetchOptions holds the fetch flags that are not resolved through config.
type fetchOptions struct {
	since            string
	onlyContributors bool
	noLLMReady       bool
	resume           string
	text             string
	inTitle          bool
	inBody           bool
	inComments       bool
	author           string
	involves         string
	state            string
	answered         string
	locked           string
	category         string
	label            string
	createdAfter     string
	createdBefore    string
	updatedBefore    string
	dryRun           bool
	plain            bool
}

var fetchOpts fetchOptions

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch discussions of a repository",
	Long: `Fetch the discussions of a repository that match the given filters.

Each discussion is saved as discussion_<number>.json in a new run directory
below the output directory. Unless --no-llm-ready is given, it is also
serialized to discussion_<number>.md and all texts of the run directory are
joined into all_discussions_llm_ready.md, oldest first.

Examples:
  github-discussions fetch -r octo/hello --since 7d
  github-discussions fetch -r https://github.com/octo/hello --only-contributors
  github-discussions fetch -r octo/hello --query "rate limit" --in-title --answered no
  github-discussions fetch -r octo/hello --resume ./20240601_120000`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	flags := fetchCmd.Flags()
	flags.StringP("repo", "r", "", "Repository as owner/repo or GitHub URL (env GITHUB_REPOSITORY)")
	flags.StringP("output", "o", "", "Parent directory for run directories (default: current directory)")
	flags.StringP("token", "t", "", "GitHub token (env GITHUB_TOKEN)")
	flags.Int("page-size", query.DefaultPageSize, "Search results per page, 1 to 100")
	flags.Bool("llm-ready", true, "Serialize discussions to LLM-ready text")

	flags.BoolVar(&fetchOpts.noLLMReady, "no-llm-ready", false, "Only save the JSON of each discussion")
	flags.StringVar(&fetchOpts.since, "since", "", "Only discussions updated since a date (YYYY-MM-DD) or period (12h, 7d, 2w, 3m, 1y)")
	flags.BoolVar(&fetchOpts.onlyContributors, "only-contributors", false, "Run one search per repository contributor")
	flags.StringVar(&fetchOpts.resume, "resume", "", "Continue in an existing run directory")
	flags.StringVar(&fetchOpts.text, "query", "", "Free text to search for")
	flags.BoolVar(&fetchOpts.inTitle, "in-title", false, "Match --query in titles")
	flags.BoolVar(&fetchOpts.inBody, "in-body", false, "Match --query in bodies")
	flags.BoolVar(&fetchOpts.inComments, "in-comments", false, "Match --query in comments")
	flags.StringVar(&fetchOpts.author, "author", "", "Discussions started by this user")
	flags.StringVar(&fetchOpts.involves, "involves", "", "Discussions involving this user")
	flags.StringVar(&fetchOpts.state, "state", "", "open or closed")
	flags.StringVar(&fetchOpts.answered, "answered", "", "yes or no")
	flags.StringVar(&fetchOpts.locked, "locked", "", "yes or no")
	flags.StringVar(&fetchOpts.category, "category", "", "Category name")
	flags.StringVar(&fetchOpts.label, "label", "", "Label name")
	flags.StringVar(&fetchOpts.createdAfter, "created-after", "", "Created on or after YYYY-MM-DD")
	flags.StringVar(&fetchOpts.createdBefore, "created-before", "", "Created on or before YYYY-MM-DD")
	flags.StringVar(&fetchOpts.updatedBefore, "updated-before", "", "Updated on or before YYYY-MM-DD")
	flags.BoolVar(&fetchOpts.dryRun, "dry-run", false, "Print the search query and exit")
	flags.BoolVar(&fetchOpts.plain, "plain", false, "Log lines instead of the interactive progress view")

	fetchCmd.MarkFlagsMutuallyExclusive("llm-ready", "no-llm-ready")
	fetchCmd.MarkFlagsMutuallyExclusive("involves", "only-contributors")
}

// filter turns the flags into a search filter. Tri-state values that are not
// understood are configuration errors.
func (o fetchOptions) filter(pageSize int, now time.Time) (query.Filter, error) {
	f := query.Filter{
		Text:          o.text,
		InTitle:       o.inTitle,
		InBody:        o.inBody,
		InComment:     o.inComments,
		Author:        o.author,
		Involves:      o.involves,
		Category:      o.category,
		Label:         o.label,
		CreatedAfter:  o.createdAfter,
		CreatedBefore: o.createdBefore,
		UpdatedBefore: o.updatedBefore,
		PageSize:      pageSize,
	}

	var err error
	if f.Open, err = query.ParseState(o.state); err != nil {
		return f, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	if f.Answered, err = query.ParseYesNo("answered", o.answered); err != nil {
		return f, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	if f.Locked, err = query.ParseYesNo("locked", o.locked); err != nil {
		return f, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	if o.since != "" {
		if f.UpdatedAfter, err = since.Parse(o.since, now); err != nil {
			return f, fmt.Errorf("--since: %w", err)
		}
	}
	return f, nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{Home: homeDir, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	if fetchOpts.noLLMReady {
		cfg.LLMReady = false
	}

	repo, err := cfg.Repo()
	if err != nil {
		return err
	}
	f, err := fetchOpts.filter(cfg.PageSize, time.Now())
	if err != nil {
		return err
	}
	// Build once up front so bad dates fail before anything touches the network.
	q, err := query.Build(repo, f)
	if err != nil {
		return err
	}

	if fetchOpts.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), q)
		if fetchOpts.onlyContributors {
			fmt.Fprintln(cmd.OutOrStdout(), "(run once per contributor with involves:<login> added)")
		}
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStore(cfg.OutputDir, fetchOpts.resume)
	if err != nil {
		return err
	}

	logFile, err := logging.OpenFile(store.LogPath())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter, console := newReporter(stop)
	logging.Setup(logging.Options{Console: console, Verbose: verbose, File: logFile})

	// The UI must be running before anything logs or reports API status.
	reporter.Start()
	summary, err := fetch(ctx, cfg, repo, f, q, store, reporter)
	reporter.Stop()

	if summary == nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), summary)

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted, resume with --resume %s", store.Dir())
	}
	return err
}

func fetch(ctx context.Context, cfg *config.Config, repo github.Repository, f query.Filter, q string, store *artifact.Store, reporter progress.Reporter) (*pipeline.Summary, error) {
	client, err := github.NewClient(cfg.Token, github.WithStatusObserver(reporter.UpdateAPIStatus))
	if err != nil {
		return nil, err
	}

	viewer, err := client.Viewer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	slog.Info("Starting fetch", "user", viewer, "repository", repo.String(), "query", q, "dir", store.Dir())

	return pipeline.Execute(ctx, client, store, reporter, pipeline.Options{
		Repository:       repo,
		Filter:           f,
		Serialize:        cfg.LLMReady,
		OnlyContributors: fetchOpts.onlyContributors,
	})
}

// openStore reuses the resume directory or creates a new run directory.
func openStore(outputDir, resume string) (*artifact.Store, error) {
	if resume != "" {
		store, err := artifact.Open(resume)
		if err != nil {
			return nil, fmt.Errorf("failed to open resume directory: %w", err)
		}
		return store, nil
	}
	store, err := artifact.NewRunDir(outputDir, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return store, nil
}

// newReporter picks the interactive UI when stderr is a terminal. The
// returned handler routes console logging into the UI; it is nil for plain
// output.
func newReporter(interrupt func()) (progress.Reporter, slog.Handler) {
	if fetchOpts.plain || !term.IsTerminal(int(os.Stderr.Fd())) {
		return progress.NewPlain(), nil
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	ui := progress.NewUI("GitHub 💬 Discussions", interrupt)
	return ui, progress.NewBubbleTeaHandler(ui.Program(), level)
}
