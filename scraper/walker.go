package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
)

type walkState int

const (
	stateFetching walkState = iota
	stateExtracting
	stateAdvancing
	stateDone
)

// Walker follows the catalog's next-page links from the seed URL, extracting every
// item on every page. Pages are fetched strictly one after another.
type Walker struct {
	cfg     *config.Config
	fetcher PageFetcher
	Metrics *Metrics
}

// New builds a Walker backed by the colly Fetcher.
func New(cfg *config.Config) (*Walker, error) {
	metrics := NewMetrics()
	fetcher, err := NewFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}
	return NewWalker(cfg, fetcher, metrics)
}

// NewWalker builds a Walker around any PageFetcher. metrics may be nil.
func NewWalker(cfg *config.Config, fetcher PageFetcher, metrics *Metrics) (*Walker, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if fetcher == nil {
		return nil, errors.New("nil fetcher")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Walker{cfg: cfg, fetcher: fetcher, Metrics: metrics}, nil
}

// walk is the mutable traversal state for one Walk call.
type walk struct {
	current string
	page    *Page
	base    *url.URL
	visited *lru.Cache[string, struct{}]
	result  *models.WalkResult
}

// Walk traverses the catalog and returns everything extracted. It stops when a page has
// no next link, a fetch fails, a page repeats, MaxPages is reached or ctx is done.
// Records gathered before the stop are always returned.
func (w *Walker) Walk(ctx context.Context) *models.WalkResult {
	if ctx == nil {
		ctx = context.Background()
	}

	visited, err := lru.New[string, struct{}](w.cfg.VisitedCacheSize)
	if err != nil {
		// VisitedCacheSize is validated positive in NewWalker.
		panic(fmt.Sprintf("visited cache: %v", err))
	}

	st := &walk{
		current: w.cfg.BaseURL,
		visited: visited,
		result: &models.WalkResult{
			StartTime:    time.Now(),
			Degradations: make(map[string]int),
		},
	}

	state := stateFetching
	for state != stateDone {
		switch state {
		case stateFetching:
			state = w.fetch(ctx, st)
		case stateExtracting:
			state = w.extract(st)
		case stateAdvancing:
			state = w.advance(st)
		}
	}

	st.result.EndTime = time.Now()
	return st.result
}

func (w *Walker) fetch(ctx context.Context, st *walk) walkState {
	if ctx.Err() != nil {
		slog.Warn("walk cancelled", slog.String("next_url", st.current))
		st.result.StopReason = models.StopCancelled
		return stateDone
	}
	if len(st.result.Pages) >= w.cfg.MaxPages {
		slog.Warn("max pages reached",
			slog.Int("max_pages", w.cfg.MaxPages),
			slog.String("next_url", st.current),
		)
		st.result.StopReason = models.StopMaxPages
		return stateDone
	}

	key := visitKey(st.current)
	if st.visited.Contains(key) {
		slog.Warn("next link points to an already visited page, stopping",
			slog.String("url", st.current),
		)
		st.result.StopReason = models.StopCycle
		return stateDone
	}
	st.visited.Add(key, struct{}{})

	page, err := w.fetcher.Fetch(ctx, st.current)
	if err != nil {
		attrs := []any{slog.String("url", st.current), slog.Any("error", err)}
		var fe *FetchError
		if errors.As(err, &fe) {
			attrs = append(attrs, slog.String("category", fe.Kind()), slog.Int("status", fe.StatusCode))
		}
		slog.Error("fetch failed, stopping walk", attrs...)
		st.result.FetchErr = err
		st.result.StopReason = models.StopFetchFailed
		return stateDone
	}

	base := page.URL
	if base != nil {
		st.visited.Add(visitKey(base.String()), struct{}{})
	} else if base, err = url.Parse(st.current); err != nil {
		slog.Error("unparseable page url, stopping walk", slog.String("url", st.current), slog.Any("error", err))
		st.result.FetchErr = newFetchError(st.current, err, 0)
		st.result.StopReason = models.StopFetchFailed
		return stateDone
	}
	st.page = page
	st.base = base
	st.result.Pages = append(st.result.Pages, st.current)
	w.Metrics.IncPages()
	return stateExtracting
}

func (w *Walker) extract(st *walk) walkState {
	items := st.page.Doc.Find(parser.ItemSelector)
	extracted := 0
	items.Each(func(i int, item *goquery.Selection) {
		out, err := parser.Extract(item, st.base)
		if err != nil {
			slog.Error("skipping item",
				slog.String("page", st.current),
				slog.Int("index", i),
				slog.Any("error", err),
			)
			st.result.ExtractionFailures++
			w.Metrics.IncSkipped()
			return
		}
		for _, fe := range out.Degraded {
			st.result.Degradations[fe.Field]++
			w.Metrics.IncFallback(fe.Field)
			slog.Debug("field placeholder used",
				slog.String("title", out.Record.Title),
				slog.String("field", fe.Field),
				slog.Any("reason", fe.Err),
			)
		}
		st.result.Records = append(st.result.Records, out.Record)
		w.Metrics.IncItems()
		extracted++
	})

	slog.Info("scraped page",
		slog.String("url", st.current),
		slog.Int("page", len(st.result.Pages)),
		slog.Int("items", items.Length()),
		slog.Int("records", extracted),
	)
	return stateAdvancing
}

func (w *Walker) advance(st *walk) walkState {
	href, ok := st.page.Doc.Find(parser.NextSelector).First().Attr("href")
	if !ok || href == "" {
		st.result.StopReason = models.StopExhausted
		return stateDone
	}

	next, err := parser.ResolveURL(st.base, href)
	if err != nil {
		slog.Error("unresolvable next link, stopping walk",
			slog.String("page", st.current),
			slog.String("href", href),
			slog.Any("error", err),
		)
		st.result.StopReason = models.StopExhausted
		return stateDone
	}

	slog.Debug("advancing", slog.String("from", st.current), slog.String("to", next))
	st.current = next
	st.page = nil
	st.base = nil
	return stateFetching
}

// Run walks the catalog and writes the records through a pipeline over the writer
// returned by open. The writer is only opened once the walk is over, so an earlier
// output file survives a walk that is interrupted before it starts writing.
// Persistence failures are logged and recorded on the result, never returned.
func (w *Walker) Run(ctx context.Context, open func() (pipeline.OutputWriter, error)) *models.WalkResult {
	result := w.Walk(ctx)
	result.PersistErr = w.persist(result.Records, open)
	if result.PersistErr != nil {
		slog.Error("saving records failed", slog.Any("error", result.PersistErr))
	}

	slog.Info("scrape finished",
		slog.Int("records", len(result.Records)),
		slog.Int("pages", len(result.Pages)),
		slog.String("stop_reason", result.StopReason),
		slog.Duration("duration", result.Duration()),
	)
	return result
}

func (w *Walker) persist(records []*models.Record, open func() (pipeline.OutputWriter, error)) (err error) {
	writer, err := open()
	if err != nil {
		return fmt.Errorf("open writer: %w", err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close writer: %w", closeErr)
		}
	}()

	p := pipeline.NewPipeline(writer, w.cfg)
	p.Start()
	if err := p.Process(records...); err != nil {
		p.Close()
		return fmt.Errorf("queue records: %w", err)
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("validate output: %w", err)
	}
	return nil
}

func visitKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
