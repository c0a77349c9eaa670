package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/recondesk-dev/recondesk/internal/actors"
	"github.com/recondesk-dev/recondesk/internal/config"
	"github.com/recondesk-dev/recondesk/internal/engine"
	"github.com/recondesk-dev/recondesk/internal/gitops"
	"github.com/recondesk-dev/recondesk/internal/model"
	"github.com/recondesk-dev/recondesk/internal/store"
)

// workspace bundles everything a command needs: config, roster, storage, and
// a resumed session.
type workspace struct {
	Root    string
	Config  *config.Config
	Actors  *actors.Service
	Store   *store.Store
	Session *engine.Session

	closeDB func() error
}

// openWorkspace loads the workspace at dir and resumes its session.
func openWorkspace(dir string) (*workspace, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace path: %w", err)
	}

	cfgPath := filepath.Join(root, config.FileName)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("not a recondesk workspace (run `recondesk init`): %w", err)
	}

	roster, err := actors.Load(root)
	if err != nil {
		return nil, err
	}

	db, err := store.InitDB(filepath.Join(root, cfg.Workspace.DBPath))
	if err != nil {
		return nil, err
	}
	st := store.New(db)

	state, err := st.Load(cfg.Workspace.SheetID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading persisted state: %w", err)
	}

	session, err := engine.ResumeSession(engine.Options{
		SheetID:      cfg.Workspace.SheetID,
		Locks:        config.LockChecker(cfgPath),
		Committer:    st,
		HistoryDepth: cfg.History.Depth,
	}, state)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &workspace{
		Root:    root,
		Config:  cfg,
		Actors:  roster,
		Store:   st,
		Session: session,
		closeDB: db.Close,
	}, nil
}

// Close releases the workspace database.
func (w *workspace) Close() {
	if err := w.closeDB(); err != nil {
		logrus.WithError(err).Warn("closing workspace database")
	}
}

// Actor resolves an --actor flag value against the roster.
func (w *workspace) Actor(id string) (model.Actor, error) {
	if id == "" {
		return model.Actor{}, fmt.Errorf("--actor is required")
	}
	a, ok := w.Actors.Get(id)
	if !ok {
		return model.Actor{}, fmt.Errorf("actor %q is not on the roster", id)
	}
	return a, nil
}

// ResolveMatch accepts a match group UUID or its human reference (M-2025-03-001).
func (w *workspace) ResolveMatch(key string) (model.MatchGroup, error) {
	if g, ok := w.Session.Match(key); ok {
		return g, nil
	}
	upper := strings.ToUpper(key)
	for _, g := range w.Session.Matches() {
		if g.Ref == upper {
			return g, nil
		}
	}
	return model.MatchGroup{}, fmt.Errorf("no match group %q", key)
}

// AutoCommit records the workspace state in git when auto_commit is on.
// Failures are logged, not fatal: the store already holds the durable state.
func (w *workspace) AutoCommit(message string) {
	if !w.Config.Git.AutoCommit || !gitops.IsRepo(w.Root) {
		return
	}
	hash, err := gitops.CommitAll(w.Root, message, w.Config.Git.AuthorName, w.Config.Git.AuthorEmail)
	if err != nil {
		logrus.WithError(err).Debug("git auto-commit skipped")
		return
	}
	logrus.WithField("commit", hash).Debug("workspace committed")
}
