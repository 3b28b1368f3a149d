package main

import (
	"context"
	"encoding/json"
	"flag"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/config"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/database"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/httpclient"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/feeds"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// playlist-sync refreshes the playlists table from the public listing.
// It runs on demand or from cron, not under the scheduler service, so
// new playlists can be reviewed before their sync flag is enabled.
func main() {
	verbose := flag.Bool("verbose", false, "log every playlist detail fetch")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init()
	if *verbose {
		logger.Log.SetLevel(logrus.DebugLevel)
	}
	cfg := config.Load()

	mgr := database.NewManager(cfg)
	defer mgr.Close()

	db, err := mgr.Postgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	cache, err := mgr.Redis()
	if err != nil {
		logger.Log.WithError(err).Warn("Redis unavailable, feed tokens will be minted per process")
	}

	repo := feeds.NewRepository(db)
	tokens := feeds.NewTokenSource(feeds.Credentials{
		APIKey:   cfg.FeedAPIKey,
		APIKeyID: cfg.FeedAPIKeyID,
		AppID:    cfg.FeedAppID,
		TokenTTL: cfg.FeedTokenTTL,
	}, cache)
	client := feeds.NewClient(httpclient.New(cfg.FeedHTTPTimeout), cfg.FeedAPIBaseURL, tokens, repo)

	ctx := context.Background()
	summaries, err := client.PublicPlaylists(ctx)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to fetch public playlist listing")
	}
	if len(summaries) == 0 {
		logger.Log.Warn("No public playlists returned")
		return
	}
	logger.Log.WithField("count", len(summaries)).Info("Fetched public playlist listing")

	synced, skipped := 0, 0
	for i, summary := range summaries {
		if summary.UUID == "" {
			logger.Log.WithField("name", summary.Name).Warn("Skipping playlist with missing UUID")
			skipped++
			continue
		}

		logger.Log.WithFields(map[string]interface{}{
			"progress": i + 1,
			"total":    len(summaries),
			"uuid":     summary.UUID,
			"name":     summary.Name,
		}).Debug("Fetching playlist detail")

		detail, err := client.PlaylistDetail(ctx, summary.UUID)
		if err != nil {
			logger.Log.WithError(err).WithField("uuid", summary.UUID).Warn("Failed to fetch playlist detail")
			skipped++
			continue
		}

		row := buildRow(summary, detail)
		if err := repo.Upsert(ctx, &row); err != nil {
			logger.Log.WithError(err).WithField("uuid", summary.UUID).Warn("Failed to upsert playlist")
			skipped++
			continue
		}
		synced++
		if synced%10 == 0 {
			logger.Log.WithField("synced", synced).Info("Playlist sync progress")
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"synced":  synced,
		"skipped": skipped,
	}).Info("Playlist sync finished")
}

// buildRow merges the listing entry with the detail record, preferring
// detail fields. The sync flag and last_pos cursor are operator state
// and stay at their zero values for new rows.
func buildRow(summary feeds.PlaylistSummary, detail *feeds.PlaylistDetail) feeds.Playlist {
	name := detail.Name
	if name == "" {
		name = summary.Name
	}
	descr := detail.Descr
	if descr == nil {
		descr = summary.Descr
	}
	return feeds.Playlist{
		UUID:       summary.UUID,
		Name:       name,
		Descr:      descr,
		TS:         detail.TS,
		LastSeen:   detail.LastSeen,
		Listeners:  detail.Listeners,
		Public:     bool(detail.Public),
		MaxGroups:  detail.MaxGroups,
		NumGroups:  detail.NumGroups,
		CTIDs:      firstJSON(detail.CTIDs, summary.Counties),
		GroupsJSON: firstJSON(detail.Groups),
		RawJSON:    datatypes.JSON(detail.Raw),
	}
}

func firstJSON(candidates ...json.RawMessage) datatypes.JSON {
	for _, c := range candidates {
		if len(c) > 0 && string(c) != "null" {
			return datatypes.JSON(c)
		}
	}
	return datatypes.JSON("[]")
}
