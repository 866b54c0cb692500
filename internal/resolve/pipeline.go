// Package resolve turns a free-text or URL query into a single best
// promotional image. Direct references short-circuit to authoritative
// lookups; everything else runs the search cascade with heuristic ranking.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sydlexius/lightstick/internal/imagemeta"
	"github.com/sydlexius/lightstick/internal/source"
	"github.com/sydlexius/lightstick/internal/source/spotify"
	"github.com/sydlexius/lightstick/internal/textmatch"
)

const (
	// maxAlternatives caps the runner-up metadata on a resolved result.
	maxAlternatives = 2
	// renderTimeout bounds each individual render call.
	renderTimeout = 45 * time.Second
)

// ArtistAPI is the authoritative entity client (satisfied by the Spotify
// adapter).
type ArtistAPI interface {
	GetArtist(ctx context.Context, id string) (*spotify.Artist, error)
	SearchArtist(ctx context.Context, name string) (*spotify.Artist, error)
}

// Prober fills in missing image dimensions (satisfied by imagemeta.Prober).
type Prober interface {
	Probe(ctx context.Context, rawURL string) (*imagemeta.Info, error)
}

// Resolver runs the cascading resolution pipeline.
type Resolver struct {
	artists  ArtistAPI
	registry *source.Registry
	fetcher  source.MetadataFetcher
	remote   source.Renderer
	local    source.Renderer
	prober   Prober
	logger   *slog.Logger

	maxParallel int
}

// Options configures optional pipeline behavior.
type Options struct {
	// MaxParallel bounds concurrent metadata fetches and renders. Zero
	// means the default of 3.
	MaxParallel int
	// Prober, when set, fills in dimensions for undimensioned banner
	// candidates.
	Prober Prober
}

// New creates a resolver. remote may be nil when no hosted render service is
// configured; local may be nil when no self-hosted instance exists.
func New(artists ArtistAPI, registry *source.Registry, fetcher source.MetadataFetcher, remote, local source.Renderer, logger *slog.Logger, opts Options) *Resolver {
	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 3
	}
	return &Resolver{
		artists:     artists,
		registry:    registry,
		fetcher:     fetcher,
		remote:      remote,
		local:       local,
		prober:      opts.Prober,
		logger:      logger.With(slog.String("component", "resolver")),
		maxParallel: maxParallel,
	}
}

// renderState tracks the remote-to-local downgrade within one request.
// Exactly one downgrade is allowed; a second auth failure is fatal.
type renderState struct {
	mu         sync.Mutex
	downgraded bool
}

// Resolve classifies the query and runs the appropriate path.
func (r *Resolver) Resolve(ctx context.Context, query string, role Role) *Result {
	class, value := classifyQuery(query)
	switch class {
	case queryInvalid:
		return failed(FailInvalidQuery, "query is empty",
			"provide an artist name, product name, or a direct URL")
	case querySpotifyArtist:
		return r.resolveArtist(ctx, value, role)
	case queryShopPage:
		return r.resolvePage(ctx, value, role, &renderState{})
	default:
		return r.resolveSearch(ctx, value, role)
	}
}

// resolveArtist fetches authoritative artist data. Profile role selects the
// squarest API image; banner role renders the artist page and takes the
// dominant image, since the API never exposes the banner asset.
func (r *Resolver) resolveArtist(ctx context.Context, id string, role Role) *Result {
	artist, err := r.artists.GetArtist(ctx, id)
	if err != nil {
		return r.classifyUpstream(err, "fetching artist "+id)
	}

	if role == RoleBanner {
		return r.resolveArtistBanner(ctx, artist)
	}

	img, ok := SelectByRole(artist.Images, RoleProfile)
	if !ok {
		return failed(FailNoResults, "artist has no images",
			"retry with the banner role or a product URL")
	}
	return resolved(&Resolved{
		EntityName: artist.Name,
		SourceURL:  artist.PageURL,
		Image:      img,
		Role:       RoleProfile,
		Strategy:   source.StrategyOfficialAPI,
		Genres:     artist.Genres,
		Followers:  artist.Followers,
	})
}

// resolveArtistBanner renders the public artist page and extracts the
// largest image, which is the banner the API does not expose.
func (r *Resolver) resolveArtistBanner(ctx context.Context, artist *spotify.Artist) *Result {
	state := &renderState{}
	page, err := r.render(ctx, artist.PageURL, state)
	if err != nil {
		// An auth rejection here means both render endpoints refused; that
		// is fatal. Anything else degrades to the API images.
		var rejected *source.ErrAuthRejected
		if errors.As(err, &rejected) {
			return r.classifyUpstream(err, "rendering artist page")
		}
		r.logger.Warn("artist page render failed, using API images",
			slog.String("error", err.Error()))
	}
	if page == nil || page.ImageURL == "" {
		// Banner render failed entirely; fall back to the widest API image.
		img, ok := SelectByRole(artist.Images, RoleBanner)
		if !ok {
			return failed(FailNoResults, "no banner image found",
				"retry with the profile role")
		}
		return resolved(&Resolved{
			EntityName:   artist.Name,
			SourceURL:    artist.PageURL,
			Image:        img,
			Role:         RoleBanner,
			Strategy:     source.StrategyOfficialAPI,
			UsedFallback: true,
			Genres:       artist.Genres,
			Followers:    artist.Followers,
		})
	}
	return resolved(&Resolved{
		EntityName:   artist.Name,
		SourceURL:    artist.PageURL,
		Image:        source.ImageAsset{URL: page.ImageURL, Width: page.Width, Height: page.Height},
		Role:         RoleBanner,
		Strategy:     source.StrategyRenderedDOM,
		UsedFallback: state.downgraded,
		Genres:       artist.Genres,
		Followers:    artist.Followers,
	})
}

// resolvePage extracts directly from a known shop product URL. Trusted
// input, so no scoring.
func (r *Resolver) resolvePage(ctx context.Context, pageURL string, role Role, state *renderState) *Result {
	meta, err := r.fetcher.FetchMetadata(ctx, pageURL)
	if err != nil {
		return r.classifyUpstream(err, "fetching page metadata")
	}

	if meta.Blocked {
		page, err := r.render(ctx, pageURL, state)
		if err != nil {
			return r.classifyUpstream(err, "rendering blocked page")
		}
		img := source.ImageAsset{URL: page.ImageURL, Width: page.Width, Height: page.Height}
		if r.prober != nil && !img.HasDimensions() {
			r.probeDims(ctx, &img)
		}
		return resolved(&Resolved{
			EntityName:   page.Title,
			SourceURL:    pageURL,
			Image:        img,
			Role:         role,
			Strategy:     source.StrategyRenderedDOM,
			UsedFallback: state.downgraded,
		})
	}

	if meta.ImageURL == "" {
		return failed(FailNoResults, "page carries no usable image",
			"retry with a different product URL")
	}

	strategy := source.StrategyStructuredMetadata
	if meta.FromRawHTML {
		strategy = source.StrategyRawHTMLHeuristic
	}
	img := source.ImageAsset{URL: meta.ImageURL}
	if r.prober != nil {
		r.probeDims(ctx, &img)
	}
	return resolved(&Resolved{
		EntityName: meta.Title,
		SourceURL:  pageURL,
		Image:      img,
		Role:       role,
		Strategy:   strategy,
	})
}

// scoredCandidate pairs a candidate with its relevance against the query.
type scoredCandidate struct {
	candidate source.Candidate
	score     textmatch.Score
}

// resolveSearch runs the search cascade for free-text queries.
func (r *Resolver) resolveSearch(ctx context.Context, query string, role Role) *Result {
	hits, usedFallback := r.searchTiers(ctx, query)
	if len(hits) == 0 {
		// No shop carries this query; the name may still be an artist the
		// official API knows.
		if res := r.artistByName(ctx, query, role); res != nil {
			return res
		}
		return failed(FailNoResults, "no shop pages found for query",
			"retry with the direct product or artist URL")
	}

	candidates, needsRender := r.extractAll(ctx, query, hits)

	if len(candidates) == 0 {
		if len(needsRender) > 0 {
			return ambiguous(needsRender)
		}
		return failed(FailNoResults, "no usable images on any result page",
			"retry with the direct product or artist URL")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score.Total > candidates[j].score.Total
	})

	if candidates[0].score.Total >= textmatch.AutoSelectScore {
		return r.assembleResolved(ctx, candidates, role, usedFallback)
	}

	options := make([]Option, 0, len(candidates)+len(needsRender))
	for _, c := range candidates {
		options = append(options, Option{
			PageURL:  c.candidate.PageURL,
			Title:    c.candidate.Title,
			ImageURL: c.candidate.Image.URL,
			Score:    c.score.Total,
		})
	}
	options = append(options, needsRender...)
	return ambiguous(options)
}

// artistByName falls back to the official artist search when the shop
// cascade found nothing. Returns nil when the API has no usable match.
func (r *Resolver) artistByName(ctx context.Context, query string, role Role) *Result {
	artist, err := r.artists.SearchArtist(ctx, query)
	if err != nil {
		r.logger.Debug("artist name fallback failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return nil
	}
	if artist == nil || len(artist.Images) == 0 {
		return nil
	}
	img, _ := SelectByRole(artist.Images, role)
	return resolved(&Resolved{
		EntityName:   artist.Name,
		SourceURL:    artist.PageURL,
		Image:        img,
		Role:         role,
		Strategy:     source.StrategyOfficialAPI,
		UsedFallback: true,
		Genres:       artist.Genres,
		Followers:    artist.Followers,
	})
}

// searchTiers tries each search adapter in priority order until one yields
// shop hits. Per-tier failures are absorbed and logged. The second return
// reports whether a lower tier answered after a higher one failed.
func (r *Resolver) searchTiers(ctx context.Context, query string) ([]source.PageHit, bool) {
	priorFailed := false
	for _, s := range r.registry.Searchers() {
		hits, err := s.Search(ctx, query)
		if err != nil {
			r.logger.Warn("search tier failed",
				slog.String("tier", string(s.Name())),
				slog.String("error", err.Error()))
			priorFailed = true
			continue
		}

		hits = source.FilterShopHits(hits)
		hits = rankHits(hits, query)
		if len(hits) == 0 {
			r.logger.Debug("search tier returned no shop hits",
				slog.String("tier", string(s.Name())))
			priorFailed = true
			continue
		}
		return hits, priorFailed
	}
	return nil, priorFailed
}

// rankHits orders hits by the search-hit heuristic, dropping ones that
// match no query word at all.
func rankHits(hits []source.PageHit, query string) []source.PageHit {
	type ranked struct {
		hit   source.PageHit
		score float64
	}
	kept := make([]ranked, 0, len(hits))
	for _, h := range hits {
		s := textmatch.ScoreSearchHit(h.Title, h.URL, query)
		if s < 0 {
			continue
		}
		kept = append(kept, ranked{hit: h, score: s})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })
	out := make([]source.PageHit, len(kept))
	for i, k := range kept {
		out[i] = k.hit
	}
	return out
}

// extractAll fetches metadata for every hit with bounded parallelism.
// Individual failures are absorbed; blocked pages come back as needs-render
// options.
func (r *Resolver) extractAll(ctx context.Context, query string, hits []source.PageHit) ([]scoredCandidate, []Option) {
	type outcome struct {
		meta *source.PageMetadata
		err  error
	}

	sem := make(chan struct{}, r.maxParallel)
	results := make([]outcome, len(hits))
	var wg sync.WaitGroup
	for i, hit := range hits {
		wg.Add(1)
		go func(i int, hit source.PageHit) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			meta, err := r.fetcher.FetchMetadata(ctx, hit.URL)
			results[i] = outcome{meta: meta, err: err}
		}(i, hit)
	}
	wg.Wait()

	var candidates []scoredCandidate
	var needsRender []Option
	for i, res := range results {
		hit := hits[i]
		if res.err != nil {
			r.logger.Debug("metadata fetch failed, skipping page",
				slog.String("url", hit.URL),
				slog.String("error", res.err.Error()))
			continue
		}
		if res.meta.Blocked {
			needsRender = append(needsRender, Option{
				PageURL:     hit.URL,
				Title:       hit.Title,
				NeedsRender: true,
			})
			continue
		}
		if res.meta.ImageURL == "" {
			continue
		}

		title := res.meta.Title
		if title == "" {
			title = hit.Title
		}
		strategy := source.StrategyStructuredMetadata
		if res.meta.FromRawHTML {
			strategy = source.StrategyRawHTMLHeuristic
		}
		candidates = append(candidates, scoredCandidate{
			candidate: source.Candidate{
				PageURL:  hit.URL,
				Title:    title,
				Image:    source.ImageAsset{URL: res.meta.ImageURL},
				Strategy: strategy,
			},
			score: textmatch.Relevance(title, query),
		})
	}
	return candidates, needsRender
}

// assembleResolved builds the Resolved payload from the sorted candidate
// list, attaching up to two runners-up.
func (r *Resolver) assembleResolved(ctx context.Context, candidates []scoredCandidate, role Role, usedFallback bool) *Result {
	top := candidates[0]
	img := top.candidate.Image
	if r.prober != nil && !img.HasDimensions() {
		r.probeDims(ctx, &img)
	}

	var alts []Alternative
	for _, c := range candidates[1:] {
		if len(alts) == maxAlternatives {
			break
		}
		alts = append(alts, Alternative{
			PageURL:  c.candidate.PageURL,
			Title:    c.candidate.Title,
			ImageURL: c.candidate.Image.URL,
			Score:    c.score.Total,
		})
	}

	score := top.score
	return resolved(&Resolved{
		EntityName:   top.candidate.Title,
		SourceURL:    top.candidate.PageURL,
		Image:        img,
		Role:         role,
		Strategy:     top.candidate.Strategy,
		UsedFallback: usedFallback,
		Alternatives: alts,
		Score:        &score,
	})
}

// ResolveRendered deep-resolves a batch of pages through the render tier,
// with bounded parallelism and a per-page timeout. When one page's title
// similarity against the query is high enough, the batch collapses to that
// single candidate.
func (r *Resolver) ResolveRendered(ctx context.Context, pageURLs []string, query string, role Role) *Result {
	if len(pageURLs) == 0 {
		return failed(FailInvalidQuery, "no pages to render",
			"pass the needs-render options from a previous resolution")
	}

	state := &renderState{}
	type outcome struct {
		page *source.RenderedPage
		err  error
	}

	sem := make(chan struct{}, r.maxParallel)
	results := make([]outcome, len(pageURLs))
	var wg sync.WaitGroup
	for i, pageURL := range pageURLs {
		wg.Add(1)
		go func(i int, pageURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			rctx, cancel := context.WithTimeout(ctx, renderTimeout)
			defer cancel()
			page, err := r.render(rctx, pageURL, state)
			results[i] = outcome{page: page, err: err}
		}(i, pageURL)
	}
	wg.Wait()

	var candidates []scoredCandidate
	sawAuthFailure := false
	for i, res := range results {
		if res.err != nil {
			var rejected *source.ErrAuthRejected
			var required *source.ErrAuthRequired
			if errors.As(res.err, &rejected) || errors.As(res.err, &required) {
				sawAuthFailure = true
			}
			r.logger.Debug("render failed, skipping page",
				slog.String("url", pageURLs[i]),
				slog.String("error", res.err.Error()))
			continue
		}
		if res.page.ImageURL == "" {
			continue
		}
		candidates = append(candidates, scoredCandidate{
			candidate: source.Candidate{
				PageURL: pageURLs[i],
				Title:   res.page.Title,
				Image: source.ImageAsset{
					URL:    res.page.ImageURL,
					Width:  res.page.Width,
					Height: res.page.Height,
				},
				Strategy: source.StrategyRenderedDOM,
			},
			score: textmatch.Relevance(res.page.Title, query),
		})
	}

	if len(candidates) == 0 {
		if sawAuthFailure {
			return failed(FailUpstreamAuth, "render service rejected credentials",
				"check the render service token")
		}
		return failed(FailNoResults, "no page rendered a usable image",
			"retry with the direct product URL")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score.Total > candidates[j].score.Total
	})

	// Confident single match: collapse on raw similarity alone, discarding
	// the rest of the batch.
	best := candidates[0]
	for _, c := range candidates {
		if c.score.Similarity > best.score.Similarity {
			best = c
		}
	}
	if best.score.Similarity >= textmatch.CollapseSimilarity {
		score := best.score
		return resolved(&Resolved{
			EntityName:   best.candidate.Title,
			SourceURL:    best.candidate.PageURL,
			Image:        best.candidate.Image,
			Role:         role,
			Strategy:     source.StrategyRenderedDOM,
			UsedFallback: state.downgraded,
			Score:        &score,
		})
	}

	if candidates[0].score.Total >= textmatch.AutoSelectScore {
		return r.assembleResolved(ctx, candidates, role, state.downgraded)
	}

	options := make([]Option, 0, len(candidates))
	for _, c := range candidates {
		options = append(options, Option{
			PageURL:  c.candidate.PageURL,
			Title:    c.candidate.Title,
			ImageURL: c.candidate.Image.URL,
			Score:    c.score.Total,
		})
	}
	return ambiguous(options)
}

// render runs one page through the render tier, downgrading from the remote
// to the local endpoint at most once per request on auth failure.
func (r *Resolver) render(ctx context.Context, pageURL string, state *renderState) (*source.RenderedPage, error) {
	state.mu.Lock()
	useLocal := state.downgraded || r.remote == nil
	state.mu.Unlock()

	if useLocal {
		if r.local == nil {
			return nil, &source.ErrUnavailable{
				Source: source.NameRender,
				Cause:  errors.New("no render endpoint configured"),
			}
		}
		return r.local.RenderAndExtract(ctx, pageURL)
	}

	page, err := r.remote.RenderAndExtract(ctx, pageURL)
	if err == nil {
		return page, nil
	}

	var rejected *source.ErrAuthRejected
	var required *source.ErrAuthRequired
	if (errors.As(err, &rejected) || errors.As(err, &required)) && r.local != nil {
		state.mu.Lock()
		state.downgraded = true
		state.mu.Unlock()
		r.logger.Warn("remote render endpoint rejected auth, downgrading to local",
			slog.String("url", pageURL))
		return r.local.RenderAndExtract(ctx, pageURL)
	}
	return nil, err
}

// probeDims fills in an asset's dimensions in place; failures leave it
// unchanged.
func (r *Resolver) probeDims(ctx context.Context, img *source.ImageAsset) {
	info, err := r.prober.Probe(ctx, img.URL)
	if err != nil {
		r.logger.Debug("dimension probe failed",
			slog.String("url", img.URL),
			slog.String("error", err.Error()))
		return
	}
	img.Width, img.Height = info.Width, info.Height
}

// classifyUpstream maps adapter errors onto the failure taxonomy.
func (r *Resolver) classifyUpstream(err error, action string) *Result {
	var rejected *source.ErrAuthRejected
	var required *source.ErrAuthRequired
	var notFound *source.ErrNotFound
	switch {
	case errors.As(err, &rejected), errors.As(err, &required):
		return failed(FailUpstreamAuth, fmt.Sprintf("%s: %v", action, err),
			"check the configured credentials")
	case errors.As(err, &notFound):
		return failed(FailNoResults, fmt.Sprintf("%s: %v", action, err),
			"retry with the direct entity URL")
	default:
		return failed(FailUpstreamUnavailable, fmt.Sprintf("%s: %v", action, err),
			"retry later or use a direct URL")
	}
}
