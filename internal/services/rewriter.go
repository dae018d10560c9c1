package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/swisscast/kaltura-migration/internal/auditlog"
	"github.com/swisscast/kaltura-migration/internal/extract"
	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/store"
	"github.com/swisscast/kaltura-migration/pkg/kaltura"
)

// ReplaceOptions restricts one rewrite pass.
type ReplaceOptions struct {
	// Course filters findings to one owning course; nil processes all.
	Course *int64
	// DryRun computes and logs every decision without writing anything.
	DryRun bool
	Limit  uint64
	Offset uint64
	Style  models.EmbedStyle
}

// ReplaceResult summarizes one rewrite pass. The audit log is the
// durable record; this is the caller-facing summary.
type ReplaceResult struct {
	Total    int
	Replaced int
	Errors   []string
}

// OK reports whether the pass finished without per-item errors.
func (r ReplaceResult) OK() bool {
	return len(r.Errors) == 0
}

// Rewriter resolves stored findings against the remote catalog and
// rewrites the legacy embeddings in place. Re-entrant: findings already
// marked replaced are skipped, so a crashed run is resumed by running
// it again.
type Rewriter struct {
	store   *store.Store
	catalog Catalog
	embed   EmbedBuilder
	audit   *auditlog.Logger
	log     *zap.SugaredLogger
}

func NewRewriter(st *store.Store, catalog Catalog, embed EmbedBuilder, audit *auditlog.Logger) *Rewriter {
	return &Rewriter{
		store:   st,
		catalog: catalog,
		embed:   embed,
		audit:   audit,
		log:     zap.S().Named("rewriter"),
	}
}

// Replace processes the unreplaced findings selected by opts.
// Resolution and write failures are logged and counted but never abort
// the batch.
func (r *Rewriter) Replace(ctx context.Context, opts ReplaceOptions, progress func(string)) (*ReplaceResult, error) {
	if err := r.audit.Start(ctx, opts.DryRun); err != nil {
		return nil, err
	}

	listOpts := []store.ListOption{store.Unreplaced()}
	if opts.Course != nil {
		listOpts = append(listOpts, store.ByCourse(*opts.Course))
	}
	if opts.Limit > 0 {
		listOpts = append(listOpts, store.WithLimit(opts.Limit))
	}
	if opts.Offset > 0 {
		listOpts = append(listOpts, store.WithOffset(opts.Offset))
	}
	findings, err := r.store.Findings().List(ctx, listOpts...)
	if err != nil {
		return nil, err
	}

	result := &ReplaceResult{Total: len(findings)}
	for i, finding := range findings {
		r.audit.NextEntry()
		if err := r.replaceFinding(ctx, finding, opts); err != nil {
			r.audit.Error(ctx, "In %s.%s id %d: %v", finding.Table, finding.Column, finding.RecordID, err)
		} else {
			result.Replaced++
		}
		if progress != nil {
			progress(fmt.Sprintf("%d / %d", i+1, len(findings)))
		}
	}
	result.Errors = r.audit.Errors()
	return result, nil
}

// replaceFinding rewrites every occurrence of one finding's URL inside
// its field.
func (r *Rewriter) replaceFinding(ctx context.Context, finding models.Finding, opts ReplaceOptions) error {
	if finding.RecordID == 0 {
		return fmt.Errorf("table %s has no id column, URL %s must be fixed manually", finding.Table, finding.URL)
	}

	if code, ok := extract.ChannelCodeFromURL(finding.URL); ok {
		return r.replaceChannel(ctx, finding, code, opts)
	}
	return r.replaceVideo(ctx, finding, opts)
}

func (r *Rewriter) resolveEntry(ctx context.Context, url string) (*models.MediaEntry, error) {
	if refIDs, ok := extract.ReferenceIDsFromURL(url); ok {
		entry, err := r.catalog.FindMediaByReferenceIDs(ctx, refIDs)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, kaltura.ErrNotFound) {
			return nil, err
		}
	}
	if entryID, ok := extract.EntryIDFromURL(url); ok {
		return r.catalog.FindMediaByEntryID(ctx, entryID)
	}
	return nil, kaltura.ErrNotFound
}

func (r *Rewriter) replaceVideo(ctx context.Context, finding models.Finding, opts ReplaceOptions) error {
	entry, err := r.resolveEntry(ctx, finding.URL)
	if err != nil {
		if errors.Is(err, kaltura.ErrNotFound) {
			return fmt.Errorf("no media entry found for URL %s", finding.URL)
		}
		return fmt.Errorf("resolving URL %s: %w", finding.URL, err)
	}

	content, err := r.store.Host().GetField(ctx, finding.Table, finding.Column, finding.RecordID)
	if err != nil {
		return fmt.Errorf("reading field: %w", err)
	}

	rewritten := r.rewriteContent(content, finding.URL, entry, opts.Style)
	if isJSONColumn(finding.Table, finding.Column) {
		rewritten = r.rewriteContent(rewritten, escapeJSONSlashes(finding.URL), entry, opts.Style)
	}

	refID := ""
	if ids, ok := extract.ReferenceIDsFromURL(finding.URL); ok {
		refID = strings.Join(ids, ",")
	}

	if opts.DryRun {
		r.audit.Info(ctx, "Would replace video %s (reference %s) with entry %s in %s.%s id %d",
			finding.URL, refID, entry.ID, finding.Table, finding.Column, finding.RecordID)
		return nil
	}

	if rewritten != content {
		if err := r.store.Host().SetField(ctx, finding.Table, finding.Column, finding.RecordID, rewritten); err != nil {
			// Finding stays unreplaced so a later run retries it.
			return fmt.Errorf("writing field: %w", err)
		}
	}
	if err := r.store.Findings().MarkReplaced(ctx, finding.ID); err != nil {
		return fmt.Errorf("marking finding replaced: %w", err)
	}
	r.audit.Info(ctx, "Replaced video %s (reference %s) with entry %s in %s.%s id %d",
		finding.URL, refID, entry.ID, finding.Table, finding.Column, finding.RecordID)
	return nil
}

// replaceChannel rewrites channel-shaped URLs to their MediaSpace
// address. Channels resolve to categories, not media entries.
func (r *Rewriter) replaceChannel(ctx context.Context, finding models.Finding, code string, opts ReplaceOptions) error {
	category, err := r.catalog.FindCategoryByReferenceID(ctx, code)
	if err != nil {
		if errors.Is(err, kaltura.ErrNotFound) {
			return fmt.Errorf("no category found for channel %s", code)
		}
		return fmt.Errorf("resolving channel %s: %w", code, err)
	}

	content, err := r.store.Host().GetField(ctx, finding.Table, finding.Column, finding.RecordID)
	if err != nil {
		return fmt.Errorf("reading field: %w", err)
	}

	channelURL := r.embed.ChannelURL(category)
	rewritten := strings.ReplaceAll(content, finding.URL, channelURL)
	if isJSONColumn(finding.Table, finding.Column) {
		rewritten = strings.ReplaceAll(rewritten,
			escapeJSONSlashes(finding.URL), escapeJSONSlashes(channelURL))
	}

	if opts.DryRun {
		r.audit.Info(ctx, "Would replace channel %s with category %d in %s.%s id %d",
			finding.URL, category.ID, finding.Table, finding.Column, finding.RecordID)
		return nil
	}

	if rewritten != content {
		if err := r.store.Host().SetField(ctx, finding.Table, finding.Column, finding.RecordID, rewritten); err != nil {
			return fmt.Errorf("writing field: %w", err)
		}
	}
	if err := r.store.Findings().MarkReplaced(ctx, finding.ID); err != nil {
		return fmt.Errorf("marking finding replaced: %w", err)
	}
	r.audit.Info(ctx, "Replaced channel %s with category %d in %s.%s id %d",
		finding.URL, category.ID, finding.Table, finding.Column, finding.RecordID)
	return nil
}

// embeddingShapes builds the recognized embedding patterns around one
// exact source URL. Shapes with capture groups carry explicit
// width/height in the original markup.
func embeddingShapes(url string) []*regexp.Regexp {
	q := regexp.QuoteMeta(url)
	shapes := []string{
		// iframe, src before size
		`<iframe\s[^>]*src\s*=\s*"` + q + `"[^>]*width="(\d+)"\s+height="(\d+)"[^>]*>\s*</iframe>`,
		// iframe, size before src
		`<iframe\s[^>]*width="(\d+)"\s+height="(\d+)"[^>]*src\s*=\s*"` + q + `"[^>]*>\s*</iframe>`,
		// sized native video tag
		`<video\s[^>]*width="(\d+)"\s+height="(\d+)"[^>]*>\s*<source\s[^>]*src="` + q + `"[^>]*>[\s\S]*?</video>`,
		// unsized native video tag
		`<video\s[^>]*>\s*<source\s[^>]*src="` + q + `"[^>]*>[\s\S]*?</video>`,
		// unsized iframe
		`<iframe\s[^>]*src\s*=\s*"` + q + `"[^>]*>\s*</iframe>`,
		// anchor link wrapping the URL
		`<a\s[^>]*href\s*=\s*"` + q + `"[^>]*>.*?</a>`,
	}
	res := make([]*regexp.Regexp, len(shapes))
	for i, s := range shapes {
		res[i] = regexp.MustCompile(s)
	}
	return res
}

// scriptEmbedShape matches the legacy script/div player embed. The
// stored URL carries the video id appended as a query parameter; the
// markup keeps it in the adjacent data-video attribute.
func scriptEmbedShape(url string) (*regexp.Regexp, bool) {
	base, id, found := strings.Cut(url, "?video=")
	if !found {
		return nil, false
	}
	pattern := `<script\s[^>]*src\s*=\s*"` + regexp.QuoteMeta(base) + `"[^>]*>\s*</script>\s*` +
		`<div\s[^>]*data-video\s*=\s*"` + regexp.QuoteMeta(id) + `"[^>]*>\s*</div>`
	return regexp.MustCompile(pattern), true
}

// rewriteContent replaces every recognized embedding of url in content
// with the platform embed code, then any leftover literal occurrence
// with the direct playable URL.
func (r *Rewriter) rewriteContent(content, url string, entry *models.MediaEntry, style models.EmbedStyle) string {
	for _, shape := range embeddingShapes(url) {
		content = shape.ReplaceAllStringFunc(content, func(match string) string {
			w, h := markupDimensions(shape, match)
			width, height := r.embed.Size(entry, w, h)
			return r.embed.Embed(style, entry, width, height)
		})
	}
	if shape, ok := scriptEmbedShape(url); ok {
		content = shape.ReplaceAllStringFunc(content, func(string) string {
			width, height := r.embed.Size(entry, 0, 0)
			return r.embed.Embed(style, entry, width, height)
		})
		// The bare script URL never appears outside the embed markup.
		return content
	}
	return strings.ReplaceAll(content, url, r.embed.DirectURL(entry))
}

func markupDimensions(shape *regexp.Regexp, match string) (int, int) {
	if shape.NumSubexp() < 2 {
		return 0, 0
	}
	groups := shape.FindStringSubmatch(match)
	if len(groups) < 3 {
		return 0, 0
	}
	w, _ := strconv.Atoi(groups[1])
	h, _ := strconv.Atoi(groups[2])
	return w, h
}

func escapeJSONSlashes(s string) string {
	return strings.ReplaceAll(s, "/", `\/`)
}
