// Package publish drives one publish run: per destination it uploads every
// image, creates the feed entry, and records the attempt, then folds the
// per-destination outcomes into a single result.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/blacktop/pagepost/internal/history"
	"github.com/blacktop/pagepost/internal/logutil"
	"github.com/blacktop/pagepost/internal/pagepost"
)

const (
	unknownName            = "Unknown"
	defaultTimestampLayout = "1/2/2006, 3:04:05 PM"
)

// Uploader uploads one image to one destination.
type Uploader interface {
	UploadPhoto(ctx context.Context, dest pagepost.Destination, img pagepost.ImageAsset) pagepost.CallResult
}

// FeedPublisher creates one feed entry on one destination.
type FeedPublisher interface {
	PublishFeed(ctx context.Context, dest pagepost.Destination, caption string, media []string) pagepost.CallResult
}

// Observer is notified as destinations are processed. Both methods are
// called from the goroutine running Publish.
type Observer interface {
	DestinationStarted(dest pagepost.Destination, index, total int)
	DestinationFinished(dest pagepost.Destination, outcome pagepost.Outcome)
}

// Config wires the collaborators of a Publisher.
type Config struct {
	Pages           pagepost.DestinationSource
	Uploader        Uploader
	Feed            FeedPublisher
	Log             history.Log
	TimestampLayout string
	Observer        Observer

	// Now and NewRunID default to time.Now and uuid.NewString.
	Now      func() time.Time
	NewRunID func() string
}

// Publisher runs publish requests.
type Publisher struct {
	pages    pagepost.DestinationSource
	uploader Uploader
	feed     FeedPublisher
	log      history.Log
	layout   string
	observer Observer
	now      func() time.Time
	newRunID func() string
}

// New validates cfg and returns a Publisher.
func New(cfg Config) (*Publisher, error) {
	var missing []string
	if cfg.Pages == nil {
		missing = append(missing, "pages")
	}
	if cfg.Uploader == nil {
		missing = append(missing, "uploader")
	}
	if cfg.Feed == nil {
		missing = append(missing, "feed")
	}
	if cfg.Log == nil {
		missing = append(missing, "log")
	}
	if len(missing) > 0 {
		return nil, pagepost.MissingConfigError{Component: "publisher", Fields: missing}
	}

	p := &Publisher{
		pages:    cfg.Pages,
		uploader: cfg.Uploader,
		feed:     cfg.Feed,
		log:      cfg.Log,
		layout:   cfg.TimestampLayout,
		observer: cfg.Observer,
		now:      cfg.Now,
		newRunID: cfg.NewRunID,
	}
	if p.layout == "" {
		p.layout = defaultTimestampLayout
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newRunID == nil {
		p.newRunID = uuid.NewString
	}
	return p, nil
}

// Publish runs req to completion. A *pagepost.ValidationError is returned
// when the request is rejected before any remote call; a Fatal result and a
// non-nil error when the destinations cannot be resolved. Per-destination
// failures never produce an error: they are reported in the Result.
func (p *Publisher) Publish(ctx context.Context, req pagepost.Request) (pagepost.Result, error) {
	result := pagepost.Result{RunID: p.newRunID()}
	logger := logutil.With("run", result.RunID)

	if req.Empty() {
		return result, &pagepost.ValidationError{Reason: pagepost.ErrEmptyRequest}
	}

	dests, err := p.resolve(ctx, req.DestinationIDs)
	if err != nil {
		result.Kind = pagepost.Fatal
		result.Message = err.Error()
		return result, fmt.Errorf("resolve destinations: %w", err)
	}
	if len(dests) == 0 {
		return result, &pagepost.ValidationError{Reason: pagepost.ErrNoDestinations}
	}

	logger.Info("publishing", "pages", len(dests), "images", len(req.Images))

	var failing []string
	for i, dest := range dests {
		if p.observer != nil {
			p.observer.DestinationStarted(dest, i, len(dests))
		}

		outcome := p.publishOne(ctx, logger.With("page", dest.ID), dest, req)
		result.Outcomes = append(result.Outcomes, outcome)
		if !outcome.Succeeded {
			failing = append(failing, dest.ID)
		}

		if p.observer != nil {
			p.observer.DestinationFinished(dest, outcome)
		}
	}

	if len(failing) == 0 {
		result.Kind = pagepost.AllSucceeded
		logger.Info("published to all pages")
		return result, nil
	}

	result.Kind = pagepost.PartialFailure
	result.FailingNames = failingNames(dests, failing)
	logger.Warn("publish finished with failures", "failed", len(failing), "pages", len(dests))
	return result, nil
}

// resolve snapshots the configured destinations whose id was requested,
// in stored order.
func (p *Publisher) resolve(ctx context.Context, ids []string) ([]pagepost.Destination, error) {
	all, err := p.pages.List(ctx)
	if err != nil {
		return nil, err
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var out []pagepost.Destination
	for _, d := range all {
		if _, ok := want[d.ID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (p *Publisher) publishOne(ctx context.Context, logger *log.Logger, dest pagepost.Destination, req pagepost.Request) pagepost.Outcome {
	outcome := pagepost.Outcome{DestinationID: dest.ID}

	media := make([]string, 0, len(req.Images))
	for i, img := range req.Images {
		res := p.uploader.UploadPhoto(ctx, dest, img)
		switch res.Kind {
		case pagepost.CallOK:
			media = append(media, res.ID)
			logger.Debug("image uploaded", "index", i, "media", res.ID)
		case pagepost.CallFailed:
			err := fmt.Errorf("image %d: upload rejected: %s", i, res.Raw)
			outcome.UploadErrors = append(outcome.UploadErrors, err)
			logger.Warn("image upload rejected", "index", i, "response", string(res.Raw))
		default:
			err := fmt.Errorf("image %d: %w", i, res.Err)
			outcome.UploadErrors = append(outcome.UploadErrors, err)
			logger.Warn("image upload failed", "index", i, "err", res.Err)
		}
	}

	feed := p.feed.PublishFeed(ctx, dest, req.Caption, media)
	outcome.Succeeded = feed.OK()
	outcome.Raw = feed.Payload()
	switch feed.Kind {
	case pagepost.CallOK:
		logger.Info("feed entry created", "post", feed.ID, "media", len(media))
	case pagepost.CallFailed:
		outcome.FeedErr = errors.New("feed entry rejected")
		logger.Error("feed entry rejected", "response", string(feed.Raw))
	default:
		outcome.FeedErr = feed.Err
		logger.Error("feed call failed", "err", feed.Err)
	}

	// The attempt is recorded even if the caller's context has ended.
	rec := history.NewRecord(dest.ID, outcome.Succeeded, outcome.Raw, req.Caption, p.now(), p.layout)
	if err := p.log.Append(context.WithoutCancel(ctx), rec); err != nil {
		outcome.LogErr = err
		logger.Error("could not record publish attempt", "err", err)
	}

	return outcome
}

// failingNames maps ids to display names, de-duplicated in first-seen order.
func failingNames(dests []pagepost.Destination, ids []string) []string {
	names := make(map[string]string, len(dests))
	for _, d := range dests {
		if _, ok := names[d.ID]; !ok {
			names[d.ID] = d.Name
		}
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		name := names[id]
		if name == "" {
			name = unknownName
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
