package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/booksy/booksy-server/internal/domain"
	"github.com/booksy/booksy-server/internal/service"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Add EPUB files or directories to the library",
		ArgsUsage: "<path>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output results as JSON"},
		},
		Action: r.Import,
	}
}

func reindexCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "reindex",
		Usage:  "Rebuild the search index from the catalog",
		Action: r.Reindex,
	}
}

func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Inspect and approve accounts",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List accounts",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "pending", Usage: "Only accounts waiting for approval"},
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
				},
				Action: r.UsersList,
			},
			{
				Name:      "approve",
				Usage:     "Approve a pending account",
				ArgsUsage: "<user-id>",
				Action:    r.UsersApprove,
			},
		},
	}
}

func inspectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Print library statistics",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
		},
		Action: r.Inspect,
	}
}

func pruneSessionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "prune-sessions",
		Usage:  "Delete expired login sessions",
		Action: r.PruneSessions,
	}
}

// Import catalogs each file argument, and every EPUB below each directory
// argument.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one path is required")
	}

	var results []service.ImportResult
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			found, err := r.imports.ImportDir(ctx, path)
			results = append(results, found...)
			if err != nil {
				return err
			}
			continue
		}
		results = append(results, r.importFile(ctx, path))
	}

	if cmd.Bool("json") {
		return r.writeJSON(results)
	}

	var added, dupes, failed int
	for _, res := range results {
		switch {
		case res.Error != "":
			failed++
			r.writePlainln("✗ %s: %s", res.Path, res.Error)
		case res.Duplicate:
			dupes++
			r.writePlainln("= %s (already in library)", res.Path)
		default:
			added++
			r.writePlainln("✓ %s → %s", res.Title, res.BookID)
		}
	}
	r.writePlainln("%d added, %d duplicate, %d failed", added, dupes, failed)

	if failed > 0 {
		return fmt.Errorf("%d file(s) failed to import", failed)
	}
	return nil
}

func (r *Runner) importFile(ctx context.Context, path string) service.ImportResult {
	res := service.ImportResult{Path: path}
	book, err := r.imports.ImportFile(ctx, path)
	switch {
	case err == nil:
		res.BookID, res.Title = book.ID, book.Title
	case isAlreadyExists(err):
		res.Duplicate = true
	default:
		res.Error = err.Error()
	}
	return res
}

// Reindex drops and rebuilds every search document.
func (r *Runner) Reindex(ctx context.Context, _ *cli.Command) error {
	r.logger.Info("rebuilding search index")
	result, err := r.search.ReindexAll(ctx)
	if err != nil {
		return err
	}
	r.writePlainln("Indexed %d books in %s", result.Indexed, time.Duration(result.Duration)*time.Millisecond)
	return nil
}

// UsersList prints accounts, optionally only pending ones.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("pending") {
		pending := users[:0]
		for _, u := range users {
			if u.IsPending() {
				pending = append(pending, u)
			}
		}
		users = pending
	}

	if cmd.Bool("json") {
		out := make([]map[string]any, 0, len(users))
		for _, u := range users {
			out = append(out, map[string]any{
				"id":           u.ID,
				"email":        u.Email,
				"display_name": u.DisplayName,
				"role":         u.Role,
				"status":       u.Status,
				"is_root":      u.IsRoot,
			})
		}
		return r.writeJSON(out)
	}

	if len(users) == 0 {
		r.writePlainln("No users")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("ID", "EMAIL", "NAME", "ROLE", "STATUS")
	for _, u := range users {
		t.Row(u.ID, u.Email, u.DisplayName, roleLabel(u), string(u.Status))
	}
	r.writePlainln("%s", t.Render())
	return nil
}

func roleLabel(u *domain.User) string {
	if u.IsRoot {
		return "root"
	}
	return string(u.Role)
}

// UsersApprove activates a pending account as the root user.
func (r *Runner) UsersApprove(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.Args().First()
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	root, err := r.rootUser(ctx)
	if err != nil {
		return err
	}
	user, err := r.users.ApproveUser(ctx, root, userID)
	if err != nil {
		return err
	}
	r.writePlainln("✓ Approved %s", user.Email)
	return nil
}

// Stats summarizes a library.
type Stats struct {
	Books          domain.BookCounts `json:"books"`
	Users          int               `json:"users"`
	PendingUsers   int               `json:"pending_users"`
	IndexedBooks   uint64            `json:"indexed_books"`
	SetupCompleted bool              `json:"setup_completed"`
	Store          string            `json:"store"`
}

// Inspect prints library statistics.
func (r *Runner) Inspect(ctx context.Context, cmd *cli.Command) error {
	stats, err := r.stats(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(stats)
	}

	r.writePlainln("Store:         %s (%s)", stats.Store, r.cfg.DatabasePath())
	r.writePlainln("Setup done:    %t", stats.SetupCompleted)
	r.writePlainln("Books:         %d (%d active)", stats.Books.Total, stats.Books.Active)
	r.writePlainln("Search index:  %d documents", stats.IndexedBooks)
	r.writePlainln("Users:         %d (%d pending)", stats.Users, stats.PendingUsers)
	return nil
}

func (r *Runner) stats(ctx context.Context) (*Stats, error) {
	counts, err := r.books.Stats(ctx)
	if err != nil {
		return nil, err
	}
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	indexed, err := r.search.DocumentCount()
	if err != nil {
		return nil, err
	}
	setupRequired, err := r.instance.IsSetupRequired(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Books:          counts,
		Users:          len(users),
		IndexedBooks:   indexed,
		SetupCompleted: !setupRequired,
		Store:          r.cfg.Store.Backend,
	}
	for _, u := range users {
		if u.IsPending() {
			stats.PendingUsers++
		}
	}
	return stats, nil
}

// PruneSessions deletes expired login sessions.
func (r *Runner) PruneSessions(ctx context.Context, _ *cli.Command) error {
	n, err := r.store.DeleteExpiredSessions(ctx)
	if err != nil {
		return err
	}
	r.writePlainln("Deleted %d expired session(s)", n)
	return nil
}
