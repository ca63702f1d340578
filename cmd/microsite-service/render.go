package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"microsite/internal/announcement"
	"microsite/internal/config"
	"microsite/internal/constants"
	"microsite/internal/logger"
)

// renderFeed runs one pass over the local announcements file, the way the
// page would see it, and writes the result to out.
func renderFeed(ctx context.Context, cfg *config.Config, log logger.Logger, format string, out io.Writer) error {
	if cfg.Feed.File == "" {
		return fmt.Errorf("render-feed requires feed.file")
	}

	store := announcement.NewDocumentStore(cfg.Feed.File, 0, log)
	if err := store.Load(); err != nil {
		return err
	}

	visibility, err := announcement.CompileVisibility(cfg.Feed.VisibilityExpression)
	if err != nil {
		return err
	}
	loader := announcement.NewLoader(store, visibility, cfg.Feed.Timeout, log)

	switch format {
	case "html", "":
		feed := announcement.NewFeed(loader, announcement.NewRenderer(cfg.Feed.AllowMarkup), nil, log)
		container := announcement.NewMemoryContainer(constants.FeedContainerID)
		result := feed.Render(ctx, container)
		_, err := fmt.Fprintln(out, result.HTML)
		return err
	case "json":
		list := loader.Load(ctx)
		announcement.Sort(list)
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "yaml":
		list := loader.Load(ctx)
		announcement.Sort(list)
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(list)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
