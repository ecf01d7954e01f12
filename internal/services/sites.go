package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"google.golang.org/api/sheets/v4"
)

// Site is one work location a shift can be started at
type Site struct {
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius int     `json:"radius"`
}

// StaticSitesRepo serves a fixed site list from configuration. Fallback
// for deployments without the shared spreadsheet.
type StaticSitesRepo struct {
	sites []string
}

func NewStaticSitesRepo(sites []string) *StaticSitesRepo {
	return &StaticSitesRepo{sites: sites}
}

func (r *StaticSitesRepo) ListSites(ctx context.Context) ([]string, error) {
	out := make([]string, len(r.sites))
	copy(out, r.sites)
	return out, nil
}

// GoogleSitesRepo reads the site list from the Sites sheet of the shared
// spreadsheet, cached with a TTL so every menu render doesn't hit the
// Sheets API.
type GoogleSitesRepo struct {
	svc           *sheets.Service
	spreadsheetID string
	ttl           time.Duration

	mu        sync.Mutex
	cached    []string
	fetchedAt time.Time
}

func NewGoogleSitesRepo(svc *sheets.Service, spreadsheetID string, ttl time.Duration) *GoogleSitesRepo {
	return &GoogleSitesRepo{svc: svc, spreadsheetID: spreadsheetID, ttl: ttl}
}

// ListSites returns site names from column A. On fetch failure a stale
// cache is served rather than an empty menu.
func (r *GoogleSitesRepo) ListSites(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && time.Since(r.fetchedAt) < r.ttl {
		return append([]string(nil), r.cached...), nil
	}

	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, "Sites!A2:A").Context(ctx).Do()
	if err != nil {
		if r.cached != nil {
			log.Printf("⚠️  Sites fetch failed, serving stale cache: %v", err)
			return append([]string(nil), r.cached...), nil
		}
		return nil, fmt.Errorf("fetch sites: %w", err)
	}

	sitesList := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if name, ok := row[0].(string); ok && name != "" {
			sitesList = append(sitesList, name)
		}
	}

	r.cached = sitesList
	r.fetchedAt = time.Now()
	return append([]string(nil), sitesList...), nil
}

// SiteDetails resolves the coordinates and radius for one site, for
// radius checks at shift start. Unknown sites return nil.
func (r *GoogleSitesRepo) SiteDetails(ctx context.Context, siteName string) (*Site, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, "Sites!A2:D").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch site details: %w", err)
	}

	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		name, ok := row[0].(string)
		if !ok || name != siteName {
			continue
		}

		site := &Site{Name: name, Radius: 500}
		if len(row) > 1 {
			site.Lat = parseFloatCell(row[1])
		}
		if len(row) > 2 {
			site.Lon = parseFloatCell(row[2])
		}
		if len(row) > 3 {
			if radius := parseFloatCell(row[3]); radius > 0 {
				site.Radius = int(radius)
			}
		}
		return site, nil
	}
	return nil, nil
}

func parseFloatCell(cell interface{}) float64 {
	s, ok := cell.(string)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
