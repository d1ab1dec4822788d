package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/david/bdns-notifier/internal/bdns"
	"github.com/david/bdns-notifier/internal/metrics"
	"github.com/david/bdns-notifier/internal/models"
	"github.com/david/bdns-notifier/internal/store"
)

// RegistryClient is the registry surface the pipeline consumes.
type RegistryClient interface {
	Search(ctx context.Context, params bdns.SearchParams) ([]bdns.Summary, int, error)
	Detail(ctx context.Context, externalID string) (*bdns.Detail, error)
}

// Options tune one pipeline instance.
type Options struct {
	PurposeID     int    // finalidad filter for both passes
	RegionPrefix  string // catalog code prefix of the regional pass, e.g. "ES7"
	AdminType     string // administration level of the national pass, e.g. "C"
	PageSize      int
	LookbackYears int
	RetryBase     time.Duration // initial backoff between listing retries
}

// Pipeline is one configured sync job over the registry.
type Pipeline struct {
	client   RegistryClient
	grants   store.GrantStore
	catalogs store.CatalogStore
	runs     store.RunStore
	mirror   *Mirror
	notifier *Notifier
	rules    *Rules
	opts     Options
	log      *slog.Logger
}

func NewPipeline(
	client RegistryClient,
	grants store.GrantStore,
	catalogs store.CatalogStore,
	runs store.RunStore,
	mirror *Mirror,
	notifier *Notifier,
	rules *Rules,
	opts Options,
	log *slog.Logger,
) *Pipeline {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.LookbackYears <= 0 {
		opts.LookbackYears = 2
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 2 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		client: client, grants: grants, catalogs: catalogs, runs: runs,
		mirror: mirror, notifier: notifier, rules: rules, opts: opts, log: log,
	}
}

// Run executes one full sync: fetch, qualify, persist, mirror, notify.
// The run is recorded in the run log whatever its outcome.
func (p *Pipeline) Run(ctx context.Context) (*models.SyncRun, error) {
	run := &models.SyncRun{RunID: uuid.NewString()}
	if err := p.runs.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}
	started := time.Now()

	newGrants, itemErrs, err := p.ingest(ctx, run)
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
		p.finish(ctx, run, started)
		return run, err
	}

	mirrored, mirrorFailed := p.mirror.MirrorGrants(ctx, newGrants)
	run.Mirrored = mirrored

	// A notify-stage error is a precondition fault (mail transport or
	// ledger), not a per-recipient one; it fails the whole run.
	notified, notifyFailed, err := p.notifier.Notify(ctx, newGrants)
	run.Notified = notified
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
		p.finish(ctx, run, started)
		return run, err
	}
	itemErrs += notifyFailed

	if _, err := p.grants.DeactivateExpired(ctx, time.Now().UTC()); err != nil {
		p.log.Error("deactivating expired grants failed", "error", err)
		itemErrs++
	}

	run.Status = "success"
	if mirrorFailed > 0 || itemErrs > 0 {
		run.Status = "partial"
		run.Error = fmt.Sprintf("%d item errors, %d mirror failures", itemErrs, mirrorFailed)
	}

	p.finish(ctx, run, started)
	return run, nil
}

// ingest walks both listing passes and persists qualifying new calls.
// Per-item failures are counted, not fatal; a listing fetch failure is.
func (p *Pipeline) ingest(ctx context.Context, run *models.SyncRun) (newGrants []models.Grant, itemErrs int, err error) {
	passes, err := p.passes(ctx)
	if err != nil {
		return nil, 0, err
	}

	seen := make(map[string]bool)
	for _, pass := range passes {
		summaries, err := p.fetchPass(ctx, pass)
		if err != nil {
			return nil, itemErrs, fmt.Errorf("fetching %s pass: %w", pass.name, err)
		}
		run.Fetched += len(summaries)
		metrics.GrantsFetched.Add(float64(len(summaries)))

		for _, s := range summaries {
			if s.ExternalID == "" || seen[s.ExternalID] {
				continue
			}
			seen[s.ExternalID] = true

			exists, err := p.grants.ExistsByExternalID(ctx, s.ExternalID)
			if err != nil {
				return newGrants, itemErrs, err
			}
			if exists {
				continue
			}
			run.NewItems++

			detail, err := p.client.Detail(ctx, s.ExternalID)
			if err != nil {
				p.log.Error("detail fetch failed", "grant", s.ExternalID, "error", err)
				itemErrs++
				continue
			}

			if ok, reason := Qualify(detail, p.rules); !ok {
				p.log.Debug("call rejected", "grant", s.ExternalID, "reason", reason)
				metrics.GrantsFiltered.WithLabelValues(reason).Inc()
				continue
			}

			grant := detail.Grant()
			if err := p.grants.Insert(ctx, &grant); err != nil {
				p.log.Error("persisting grant failed", "grant", s.ExternalID, "error", err)
				itemErrs++
				continue
			}
			run.Persisted++
			metrics.GrantsPersisted.Inc()
			newGrants = append(newGrants, grant)
		}
	}
	return newGrants, itemErrs, nil
}

type pass struct {
	name   string
	params bdns.SearchParams
}

// passes builds the two listing queries: the regional subtree resolved
// from the configured code prefix, then the national administration.
func (p *Pipeline) passes(ctx context.Context) ([]pass, error) {
	from := time.Now().AddDate(-p.opts.LookbackYears, 0, 0)
	to := time.Now()
	base := bdns.SearchParams{
		Purpose:  p.opts.PurposeID,
		From:     from,
		To:       to,
		PageSize: p.opts.PageSize,
	}

	var passes []pass
	if p.opts.RegionPrefix != "" {
		regionIDs, err := p.catalogs.RegionIDsByCodePrefix(ctx, p.opts.RegionPrefix)
		if err != nil {
			return nil, fmt.Errorf("resolving region prefix %s: %w", p.opts.RegionPrefix, err)
		}
		if len(regionIDs) > 0 {
			regional := base
			regional.RegionIDs = regionIDs
			passes = append(passes, pass{name: "regional", params: regional})
		} else {
			p.log.Warn("region prefix matched no catalog entries, skipping regional pass",
				"prefix", p.opts.RegionPrefix)
		}
	}
	if p.opts.AdminType != "" {
		national := base
		national.AdminType = p.opts.AdminType
		passes = append(passes, pass{name: "national", params: national})
	}
	if len(passes) == 0 {
		return nil, fmt.Errorf("no listing passes configured")
	}
	return passes, nil
}

// fetchPass pages through one listing query. Each page fetch retries
// with exponential backoff before giving up.
func (p *Pipeline) fetchPass(ctx context.Context, ps pass) ([]bdns.Summary, error) {
	var out []bdns.Summary
	params := ps.params

	for page := 0; ; page++ {
		params.Page = page

		var items []bdns.Summary
		var total int
		backoff := retry.WithMaxRetries(3, retry.NewExponential(p.opts.RetryBase))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			var ferr error
			items, total, ferr = p.client.Search(ctx, params)
			if ferr != nil {
				return retry.RetryableError(ferr)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		out = append(out, items...)
		if len(items) < params.PageSize || len(out) >= total {
			return out, nil
		}
	}
}

func (p *Pipeline) finish(ctx context.Context, run *models.SyncRun, started time.Time) {
	metrics.SyncRuns.WithLabelValues(run.Status).Inc()
	metrics.SyncDuration.Observe(time.Since(started).Seconds())
	if err := p.runs.FinishRun(ctx, run); err != nil {
		p.log.Error("recording run finish failed", "run", run.RunID, "error", err)
	}
	p.log.Info("sync run finished",
		"run", run.RunID, "status", run.Status,
		"fetched", run.Fetched, "new", run.NewItems, "persisted", run.Persisted,
		"mirrored", run.Mirrored, "notified", run.Notified)
}
