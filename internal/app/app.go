// Package app coordinates one pipeline run: fetch, select, deliver, record.
package app

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nikizi1234-ship-it/Ai-Post/internal/config"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/feed"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/logger"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/metrics"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/news"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/storage"
	"github.com/nikizi1234-ship-it/Ai-Post/internal/textutil"
)

// Sender is the delivery capability; the real transport is Telegram.
type Sender interface {
	Send(ctx context.Context, text string, allowPreview bool) error
}

// Fetcher pulls raw entries from all configured sources.
type Fetcher interface {
	FetchAll(ctx context.Context) []feed.Entry
}

type stage string

const (
	stageFetching   stage = "fetching"
	stageSelecting  stage = "selecting"
	stageDelivering stage = "delivering"
)

// RunResult is what the trigger surface gets back instead of raw errors.
type RunResult struct {
	RunID         string
	Delivered     int
	SkippedReason string
}

// Coordinator drives a single run end to end. Only one run may be active at
// a time; a concurrent trigger is rejected with "busy", never queued.
type Coordinator struct {
	cfg     *config.Config
	fetcher Fetcher
	store   storage.Store
	sender  Sender

	running atomic.Bool
}

func New(cfg *config.Config, fetcher Fetcher, store storage.Store, sender Sender) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		sender:  sender,
	}
}

// Run executes fetch -> select -> deliver once. A store failure is fatal for
// the run; a send failure only skips that candidate, leaving its fingerprint
// unrecorded so a later run retries it.
func (c *Coordinator) Run(ctx context.Context) (RunResult, error) {
	res := RunResult{RunID: uuid.NewString()}

	if !c.running.CompareAndSwap(false, true) {
		res.SkippedReason = "busy"
		logger.Warn("run already in progress, skipping", "run_id", res.RunID)
		return res, nil
	}
	defer c.running.Store(false)

	start := time.Now()
	logger.Info("run started", "run_id", res.RunID, "stage", stageFetching)

	entries := c.fetcher.FetchAll(ctx)
	if len(entries) == 0 {
		res.SkippedReason = "no entries fetched"
		logger.Warn("nothing fetched from any source", "run_id", res.RunID)
		metrics.Global.SetLastRun(time.Since(start))
		return res, nil
	}

	logger.Debug("run stage", "run_id", res.RunID, "stage", stageSelecting)
	candidates := news.Build(entries)
	news.Sort(candidates)

	logger.Debug("run stage", "run_id", res.RunID, "stage", stageDelivering)
	sendFailures := 0
	for _, cand := range candidates {
		if res.Delivered >= c.cfg.MaxPostsPerRun {
			break
		}

		if cand.Score < c.cfg.MinScore {
			metrics.Global.IncBelowThreshold()
			continue
		}

		exists, err := c.store.Exists(ctx, cand.Fingerprint)
		if err != nil {
			metrics.Global.SetError(err.Error())
			return res, fmt.Errorf("%s: dedup lookup: %w", stageSelecting, err)
		}
		if exists {
			metrics.Global.IncDuplicateSkipped()
			logger.Debug("already delivered, skipping", "title", cand.Title)
			continue
		}

		msg := c.formatMessage(cand)
		if err := c.sender.Send(ctx, msg, !c.cfg.DisableLinkPreview); err != nil {
			// Not recorded, so the next run retries this content.
			sendFailures++
			metrics.Global.IncSendFailure()
			logger.Error("send failed, candidate left for next run",
				"run_id", res.RunID, "link", cand.Link, "err", err)
			continue
		}

		// Record strictly after the acknowledged send. A crash between the
		// two re-delivers once; losing a post silently would be worse.
		inserted, err := c.store.Record(ctx, storage.DeliveryRecord{
			Fingerprint: cand.Fingerprint,
			Title:       cand.Title,
			Link:        cand.Link,
			Source:      cand.Source,
			DeliveredAt: time.Now().UTC(),
		})
		if err != nil {
			metrics.Global.SetError(err.Error())
			return res, fmt.Errorf("%s: record delivery: %w", stageDelivering, err)
		}
		if !inserted {
			logger.Warn("fingerprint was already recorded", "fingerprint", cand.Fingerprint)
		}

		res.Delivered++
		metrics.Global.IncMessageDelivered()
		logger.Info("post delivered", "run_id", res.RunID, "title", cand.Title, "score", cand.Score)
	}

	if res.Delivered == 0 {
		if sendFailures > 0 {
			res.SkippedReason = "delivery failed"
		} else {
			res.SkippedReason = "no eligible candidates"
		}
	}

	metrics.Global.SetLastRun(time.Since(start))
	logger.Info("run finished", "run_id", res.RunID,
		"delivered", res.Delivered, "duration", time.Since(start))
	return res, nil
}

// formatMessage renders one candidate as an HTML post: linked title, body
// bounded to leave room for markup and footer, source and date line, hashtag
// footer from the source's tag set.
func (c *Coordinator) formatMessage(cand news.Candidate) string {
	header := fmt.Sprintf("📰 <b><a href=\"%s\">%s</a></b>\n\n",
		cand.Link, html.EscapeString(cand.Title))

	var footer strings.Builder
	footer.WriteString(fmt.Sprintf("\n\n📖 <a href=\"%s\">Read more</a>\n", cand.Link))

	footer.WriteString("\n📡 " + html.EscapeString(cand.Source))
	if !cand.Published.IsZero() {
		footer.WriteString(" | " + cand.Published.Format("Jan 2, 2006"))
	}

	if tags := hashtags(cand.Tags); tags != "" {
		footer.WriteString("\n" + tags)
	}

	available := c.cfg.MessageMaxLen -
		utf8.RuneCountInString(header) - utf8.RuneCountInString(footer.String())
	return header + fitBody(cand.Body, available) + footer.String()
}

// fitBody bounds the body so the escaped text occupies at most available
// runes. Escaping happens after each cut, never before, so the output can
// never end inside a half-cut entity; the cut limit shrinks by the measured
// overflow until the escaped body fits.
func fitBody(body string, available int) string {
	if available <= 0 {
		return ""
	}

	limit := available
	escaped := html.EscapeString(textutil.Truncate(body, limit))
	for utf8.RuneCountInString(escaped) > available {
		limit -= utf8.RuneCountInString(escaped) - available
		if limit <= 0 {
			return ""
		}
		escaped = html.EscapeString(textutil.Truncate(body, limit))
	}
	return escaped
}

func hashtags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}

	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ReplaceAll(strings.TrimSpace(tag), " ", "")
		if tag == "" {
			continue
		}
		parts = append(parts, "#"+tag)
	}
	return strings.Join(parts, " ")
}
