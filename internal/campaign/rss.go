package campaign

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/inkwell-hq/inkwell/internal/pkg/distlock"
	"github.com/inkwell-hq/inkwell/internal/pkg/logger"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

func stripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(htmlTagPattern.ReplaceAllString(s, "")))
}

// RSSPoller watches feeds and turns new items into draft campaigns for
// review. Drafts are never auto-sent.
type RSSPoller struct {
	store    *Store
	parser   *gofeed.Parser
	interval time.Duration
	lock     distlock.DistLock
	ctx      context.Context
	cancel   context.CancelFunc

	// mu guards the tick status read by the health endpoint.
	mu        sync.Mutex
	lastRunAt time.Time
	healthy   bool
}

func NewRSSPoller(db *sql.DB, interval time.Duration) *RSSPoller {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RSSPoller{
		store:    NewStore(db),
		parser:   gofeed.NewParser(),
		interval: interval,
		lock:     distlock.NewPGAdvisoryLock(db, "rss-poller"),
		healthy:  true,
	}
}

func (p *RSSPoller) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	go func() {
		logger.Info("rss poller started", "interval", p.interval.String())
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.ctx.Done():
				logger.Info("rss poller stopped")
				return
			case <-ticker.C:
				p.pollDue()
			}
		}
	}()
}

func (p *RSSPoller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *RSSPoller) IsHealthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy
}

func (p *RSSPoller) LastRunAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRunAt
}

func (p *RSSPoller) setHealthy(ok bool) {
	p.mu.Lock()
	p.healthy = ok
	p.mu.Unlock()
}

func (p *RSSPoller) pollDue() {
	p.mu.Lock()
	p.lastRunAt = time.Now()
	p.mu.Unlock()
	ctx := p.ctx

	acquired, err := p.lock.Acquire(ctx)
	if err != nil {
		logger.Warn("rss poller lock check failed, skipping tick", "error", err)
		return
	}
	if !acquired {
		return
	}
	defer p.lock.Release(ctx)

	feeds, err := p.store.DueRSSFeeds(ctx, time.Now())
	if err != nil {
		logger.Error("listing due rss feeds failed", "error", err)
		p.setHealthy(false)
		return
	}
	p.setHealthy(true)

	for _, feed := range feeds {
		if ctx.Err() != nil {
			return
		}
		if err := p.Poll(ctx, feed); err != nil {
			logger.Error("rss poll failed", "feed", feed.Name, "error", err)
		}
	}
}

// Poll fetches one feed and creates a draft campaign per item newer than
// the last seen GUID.
func (p *RSSPoller) Poll(ctx context.Context, feed *RSSFeed) error {
	parsed, err := p.parser.ParseURLWithContext(feed.FeedURL, ctx)
	if err != nil {
		return fmt.Errorf("parsing feed %s: %w", feed.FeedURL, err)
	}
	if len(parsed.Items) == 0 {
		return p.store.MarkFeedPolled(ctx, feed.ID, feed.LastItemGUID)
	}

	newItems := itemsSince(parsed.Items, feed.LastItemGUID)
	for _, item := range newItems {
		title := stripHTML(item.Title)
		draft := &Campaign{
			ListID:      feed.ListID,
			Name:        fmt.Sprintf("%s: %s", feed.Name, title),
			Subject:     title,
			HTMLContent: itemHTML(item),
			Status:      StatusDraft,
		}
		if err := p.store.CreateCampaign(ctx, draft); err != nil {
			return fmt.Errorf("creating draft for %q: %w", item.Title, err)
		}
		logger.Info("rss draft created", "feed", feed.Name, "title", item.Title)
	}

	return p.store.MarkFeedPolled(ctx, feed.ID, itemGUID(parsed.Items[0]))
}

// itemsSince returns items newer than lastGUID, oldest first so drafts are
// created in publication order. Feeds list newest first; an unseen
// lastGUID means everything is new.
func itemsSince(items []*gofeed.Item, lastGUID string) []*gofeed.Item {
	cut := len(items)
	if lastGUID != "" {
		for i, item := range items {
			if itemGUID(item) == lastGUID {
				cut = i
				break
			}
		}
	}

	fresh := make([]*gofeed.Item, 0, cut)
	for i := cut - 1; i >= 0; i-- {
		fresh = append(fresh, items[i])
	}
	return fresh
}

func itemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

func itemHTML(item *gofeed.Item) string {
	body := item.Content
	if body == "" {
		body = item.Description
	}
	return fmt.Sprintf(`<html><body><h1>%s</h1>%s<p><a href="%s">Read the full post</a></p></body></html>`,
		html.EscapeString(item.Title), body, item.Link)
}
