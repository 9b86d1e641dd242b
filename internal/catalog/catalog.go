// Package catalog supplies the candidate card set: markdown decks from
// local directories or git repositories, parsed, content-hashed, and
// reconciled into the cards table. The scheduling core only consumes it.
package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/medrevise/reviewd/internal/cardid"
	"github.com/medrevise/reviewd/internal/domain"
	"github.com/medrevise/reviewd/internal/gitsource"
	"github.com/medrevise/reviewd/internal/parser"
	"github.com/medrevise/reviewd/internal/storage"
)

// Filter narrows the candidate set. The zero value selects everything.
type Filter struct {
	Topic string
}

// Catalog reads decks and answers candidate-card queries.
type Catalog struct {
	db       *storage.DB
	reposDir string
}

// New creates a catalog over the given store. reposDir is where git deck
// repositories are checked out.
func New(db *storage.DB, reposDir string) *Catalog {
	return &Catalog{db: db, reposDir: reposDir}
}

// ListCandidateCards returns the catalog cards matching the filter, in
// stable catalog order.
func (c *Catalog) ListCandidateCards(ctx context.Context, f Filter) ([]domain.Card, error) {
	return c.db.ListCards(ctx, f.Topic)
}

// FindCard looks up one card by ID, or nil if unknown.
func (c *Catalog) FindCard(ctx context.Context, id string) (*domain.Card, error) {
	return c.db.FindCardByID(ctx, id)
}

// AddSource registers a deck source. Git URLs and paths are told apart the
// same way a human would: .git suffix, git@ or an http(s) scheme.
func (c *Catalog) AddSource(ctx context.Context, path string) (int64, error) {
	sourceType := "local"
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		sourceType = "git"
	}
	existing, err := c.db.FindSourceByPath(ctx, path)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	return c.db.InsertSource(ctx, path, sourceType)
}

// RunSync iterates over all sources and reconciles them into the catalog.
func (c *Catalog) RunSync(ctx context.Context) error {
	slog.Info("starting catalog sync for all sources")
	sources, err := c.db.GetAllSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		slog.Info("no deck sources configured")
		return nil
	}

	if err := os.MkdirAll(c.reposDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("syncing deck source", "id", source.ID, "type", source.Type, "path", source.Path)

		sourceToReconcile := source

		switch source.Type {
		case "local":
			c.reconcileLocalSource(ctx, &sourceToReconcile)
		case "git":
			localRepoPath, err := gitURLToLocalPath(c.reposDir, source.Path)
			if err != nil {
				slog.Error("error determining local path for git repo", "url", source.Path, "error", err)
				continue
			}

			if err := gitsource.Sync(source.Path, localRepoPath); err != nil {
				slog.Error("error syncing git repo", "url", source.Path, "error", err)
				continue
			}

			sourceToReconcile.Path = localRepoPath
			c.reconcileLocalSource(ctx, &sourceToReconcile)
		}
	}
	slog.Info("catalog sync complete")
	return nil
}

// reconcileLocalSource walks one deck directory, inserting new cards and
// deleting cards whose deck entry is gone. Progress rows are left alone: if
// the card ever comes back with the same content, its history resumes.
func (c *Catalog) reconcileLocalSource(ctx context.Context, source *storage.Source) {
	var parsedCards int
	var reconcileErrors []error
	foundCardIDs := make(map[string]bool)

	walkErr := filepath.WalkDir(source.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			reconcileErrors = append(reconcileErrors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, card := range fileCards {
			card.ID = cardid.Hash(card)
			parsedCards++
			foundCardIDs[card.ID] = true

			existing, findErr := c.db.FindCardByID(ctx, card.ID)
			if findErr != nil {
				reconcileErrors = append(reconcileErrors, fmt.Errorf("db check for %s: %w", card.ID, findErr))
				continue
			}
			if existing == nil {
				slog.Info("new card found, inserting", "id", card.ID, "topic", card.Topic)
				if insertErr := c.db.InsertCard(ctx, card, source.ID); insertErr != nil {
					reconcileErrors = append(reconcileErrors, fmt.Errorf("db insert for %s: %w", card.ID, insertErr))
				}
			}
		}
		return nil
	})

	if walkErr != nil {
		slog.Error("error walking deck directory", "path", source.Path, "error", walkErr)
		return
	}

	dbCards, err := c.db.GetCardsBySourceID(ctx, source.ID)
	if err != nil {
		slog.Error("error getting cards for source", "source_id", source.ID, "error", err)
		return
	}

	var orphanedCards int
	for _, dbCard := range dbCards {
		if !foundCardIDs[dbCard.ID] {
			slog.Info("orphaned card, deleting", "id", dbCard.ID)
			orphanedCards++
			if err := c.db.DeleteCardByID(ctx, dbCard.ID); err != nil {
				slog.Warn("failed to delete orphaned card", "id", dbCard.ID, "error", err)
			}
		}
	}

	if err := c.db.UpdateSourceLastScanned(ctx, source.ID); err != nil {
		slog.Warn("failed to update last scanned for source", "source_id", source.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", source.Path,
		"parsed_cards", parsedCards,
		"orphaned_deleted", orphanedCards,
		"errors", len(reconcileErrors),
	)
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-like syntax: git@host:user/repo.git
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
