package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/di/providers"
	"github.com/booksy/booksy-server/internal/domain"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/logger"
	"github.com/booksy/booksy-server/internal/media/images"
	"github.com/booksy/booksy-server/internal/search"
	"github.com/booksy/booksy-server/internal/service"
	"github.com/booksy/booksy-server/internal/store"
)

// Runner holds the opened library and provides one method per command.
type Runner struct {
	logger *log.Logger
	output io.Writer

	cfg      *config.Config
	store    store.Store
	index    *search.SearchIndex
	instance *service.InstanceService
	books    *service.BookService
	imports  *service.ImportService
	search   *service.SearchService
	users    *service.UserService
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
	Config *config.Config
}

// NewRunner creates a Runner. A nil Config is loaded from flags in Open.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{logger: opts.Logger, output: opts.Output, cfg: opts.Config}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range []func(*Runner) *cli.Command{
		importCommand, reindexCommand, usersCommand, inspectCommand, pruneSessionsCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// Open loads configuration and opens the store, search index and services.
func (r *Runner) Open(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		r.logger.SetLevel(log.DebugLevel)
	}

	if r.cfg == nil {
		var args []string
		for _, name := range []string{"metadata-path", "store", "env-file"} {
			if v := cmd.String(name); v != "" {
				args = append(args, "-"+name, v)
			}
		}
		cfg, err := config.Load(args, os.Getenv)
		if err != nil {
			return ctx, err
		}
		r.cfg = cfg
	}

	return ctx, r.openLibrary(ctx)
}

func (r *Runner) openLibrary(ctx context.Context) error {
	slogger := slog.New(r.logger)

	st, err := providers.OpenStore(r.cfg, &logger.Logger{Logger: slogger})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	r.store = st

	index, err := search.NewSearchIndex(search.Options{DataPath: r.cfg.SearchPath(), Logger: slogger})
	if err != nil {
		return fmt.Errorf("open search index: %w", err)
	}
	r.index = index
	st.SetSearchIndexer(index)

	covers, err := images.NewStorage(r.cfg.CoversPath())
	if err != nil {
		return fmt.Errorf("cover storage: %w", err)
	}

	r.instance = service.NewInstanceService(st, slogger, r.cfg)
	r.books = service.NewBookService(st, images.NewProcessor(covers, slogger), r.cfg, slogger)
	r.imports = service.NewImportService(r.books, r.instance, slogger)
	r.search = service.NewSearchService(index, st, slogger)
	r.users = service.NewUserService(st, slogger)

	if _, err := r.instance.InitializeInstance(ctx); err != nil {
		return fmt.Errorf("initialize instance: %w", err)
	}

	r.logger.Debug("library opened", "path", r.cfg.Metadata.BasePath, "store", r.cfg.Store.Backend)
	return nil
}

// Close releases everything Open acquired.
func (r *Runner) Close(context.Context, *cli.Command) error {
	if r.imports != nil {
		r.imports.Close()
	}
	var firstErr error
	if r.index != nil {
		firstErr = r.index.Close()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// rootUser returns the account maintenance commands act as.
func (r *Runner) rootUser(ctx context.Context) (*domain.User, error) {
	inst, err := r.instance.GetInstance(ctx)
	if err != nil {
		return nil, err
	}
	if inst.IsSetupRequired() {
		return nil, fmt.Errorf("server setup has not been completed")
	}
	return r.store.GetUser(ctx, inst.RootUserID)
}

func (r *Runner) writeJSON(data any) error {
	enc := json.NewEncoder(r.output)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Runner) writePlainln(format string, args ...any) {
	fmt.Fprintf(r.output, format+"\n", args...)
}

func isAlreadyExists(err error) bool {
	return errors.Is(err, domainerrors.ErrAlreadyExists)
}
