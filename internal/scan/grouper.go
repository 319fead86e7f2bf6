package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"checkscan/internal/platform/metrics"
)

// extensionPattern matches "<1-9 digits><R|V|D>": a per-batch sequence
// number followed by the role letter. The letter is case-sensitive.
var extensionPattern = regexp.MustCompile(`^[0-9]{1,9}[RVD]$`)

// Grouper discovers scan triplets one level below a root directory.
type Grouper struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	readDir func(string) ([]os.DirEntry, error)
}

type Option func(*Grouper)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Grouper) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Grouper) {
		g.metrics = m
	}
}

func NewGrouper(opts ...Option) *Grouper {
	g := &Grouper{logger: slog.Default(), readDir: os.ReadDir}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Discover walks root without recursing and returns its complete groups
// sorted by name. Failing to read root is fatal; failing to inspect a single
// entry is logged and recorded in Result.Skipped.
func (g *Grouper) Discover(ctx context.Context, root string) (Result, error) {
	entries, err := g.readDir(root)
	if err != nil {
		return Result{}, fmt.Errorf("read scan root %s: %w", root, err)
	}
	g.logger.InfoContext(ctx, "walking scan directory", "path", root, "entries", len(entries))

	var result Result
	groups := make(map[string]*Group)
	eligible := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		path := filepath.Join(root, entry.Name())
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			g.logger.ErrorContext(ctx, "failed to read directory entry", "path", path, "error", err)
			result.Skipped = append(result.Skipped, SkippedEntry{Path: path, Err: err})
			g.incrementSkipped()
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		key, role, ok := classify(entry.Name())
		if !ok {
			continue
		}
		eligible++
		grp, exists := groups[key]
		if !exists {
			grp = &Group{Name: key}
			groups[key] = grp
		}
		if previous := grp.set(role, path); previous != "" {
			g.logger.WarnContext(ctx, "duplicate scan file for role, keeping latest",
				"group", key, "role", role.String(), "dropped", previous, "kept", path)
		}
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		grp := *groups[name]
		if !grp.Complete() {
			result.Incomplete++
			g.logger.InfoContext(ctx, "dropping incomplete scan group",
				"group", name, "missing", rolesString(grp.Missing()))
			continue
		}
		result.Groups = append(result.Groups, grp)
	}

	g.logger.InfoContext(ctx, "finished walking scan directory",
		"path", root,
		"files", eligible,
		"groups", len(result.Groups),
		"incomplete", result.Incomplete,
		"skipped", len(result.Skipped),
	)
	if g.metrics != nil {
		g.metrics.AddGroupsDiscovered(len(result.Groups))
	}
	return result, nil
}

// classify splits a file name into its group key and role. It reports false
// for names whose extension does not follow the scanner convention or whose
// key is blank.
func classify(name string) (string, Role, bool) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", 0, false
	}
	ext = ext[1:]
	if !extensionPattern.MatchString(ext) {
		return "", 0, false
	}
	key := strings.TrimSuffix(name, "."+ext)
	if strings.TrimSpace(key) == "" {
		return "", 0, false
	}
	return key, Role(ext[len(ext)-1]), true
}

func rolesString(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

func (g *Grouper) incrementSkipped() {
	if g.metrics != nil {
		g.metrics.IncrementEntriesSkipped()
	}
}
