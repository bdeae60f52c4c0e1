// Package roster refreshes the curated Entity roster from an upstream
// roster page: active and non-roster players are upserted as type-"player"
// entities, a third "dead cap"/retired section is ignored outright, and any
// previously-synced player no longer present is deleted along with its
// cluster associations. Grounded on the original sync_roster task's
// three-group processing shape and on internal/fetch's goquery usage (no
// feed-parsing library in the pack handles a plain listing page either).
package roster

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sharkwatch/internal/core"
	"sharkwatch/internal/logger"
)

// Store is the persistence dependency this package needs.
type Store interface {
	UpsertEntity(ctx context.Context, name string, entityType core.EntityType) (core.Entity, error)
	DeleteDepartedEntities(ctx context.Context, entityType core.EntityType, keepSlugs []string) ([]int64, error)
}

// Selectors names the CSS selectors used to locate the active roster
// section, the non-roster (injured reserve / taxi squad) section, and each
// section's individual player-name nodes. The dead-cap section has no
// selector because it is deliberately skipped.
type Selectors struct {
	ActiveSection    string
	NonRosterSection string
	PlayerName       string // relative to a section, one match per player
}

// Syncer pulls the roster page and reconciles it against the Store.
type Syncer struct {
	store      Store
	httpClient *http.Client
	pageURL    string
	selectors  Selectors
}

// NewSyncer builds a Syncer.
func NewSyncer(store Store, httpClient *http.Client, pageURL string, selectors Selectors) *Syncer {
	return &Syncer{store: store, httpClient: httpClient, pageURL: pageURL, selectors: selectors}
}

// Result summarizes one sync pass.
type Result struct {
	Active    int
	NonRoster int
	Departed  int
}

// Sync fetches the roster page, upserts every active/non-roster player as a
// player Entity, and deletes player Entities that are no longer present.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("building roster request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetching roster page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("fetching roster page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("parsing roster page: %w", err)
	}

	names := make([]string, 0, 32)
	names = append(names, extractNames(doc, s.selectors.ActiveSection, s.selectors.PlayerName)...)
	active := len(names)
	nonRoster := extractNames(doc, s.selectors.NonRosterSection, s.selectors.PlayerName)
	names = append(names, nonRoster...)

	keepSlugs := make([]string, 0, len(names))
	for _, name := range names {
		entity, err := s.store.UpsertEntity(ctx, name, core.EntityTypePlayer)
		if err != nil {
			return Result{}, fmt.Errorf("upserting player %q: %w", name, err)
		}
		keepSlugs = append(keepSlugs, entity.Slug)
	}

	departed, err := s.store.DeleteDepartedEntities(ctx, core.EntityTypePlayer, keepSlugs)
	if err != nil {
		return Result{}, fmt.Errorf("deleting departed players: %w", err)
	}

	logger.Get().Info().
		Int("active", active).
		Int("non_roster", len(nonRoster)).
		Int("departed", len(departed)).
		Msg("roster sync complete")

	return Result{Active: active, NonRoster: len(nonRoster), Departed: len(departed)}, nil
}

func extractNames(doc *goquery.Document, sectionSelector, nameSelector string) []string {
	if sectionSelector == "" {
		return nil
	}
	var names []string
	doc.Find(sectionSelector).Find(nameSelector).Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Text())
		if name != "" {
			names = append(names, name)
		}
	})
	return names
}
