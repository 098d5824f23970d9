package pipeline

import (
	"context"

	"github.com/hazyhaar/recolte/internal/faults"
)

// ProcessURLWithTags processes one URL and attaches the named tags to the
// registered row. Missing tags are created first, so the names are valid
// even when the pipeline later fails: the caller asked for them, and a
// retry should find them waiting.
func (o *Orchestrator) ProcessURLWithTags(ctx context.Context, url string, tagNames []string, opts Options) *Result {
	tagIDs, err := o.deps.Tags.EnsureTags(ctx, tagNames)
	if err != nil {
		res := &Result{URL: url, OperationID: o.newOp()}
		ferr := faults.Wrap(faults.CodeDatabaseError, "", err)
		res.Error = ferr
		res.Recovery = faults.Recommend(ferr.Code, ferr.Message)
		o.count(func(s *Stats) { s.Processed++; s.Failed++ })
		return res
	}

	res := o.ProcessURL(ctx, url, opts)
	if res.URLID == "" {
		return res
	}

	if err := o.deps.Tags.AddTagsToURL(ctx, res.URLID, tagIDs); err != nil {
		// The entry is already indexed; losing the tag edges is reported
		// but does not demote the result.
		o.logger.Warn("pipeline: tag attach failed", "url", url, "error", err)
		res.withMeta("tagError", err.Error())
		return res
	}
	res.withMeta("tags", tagNames)
	return res
}

// ProcessURLsByTag reprocesses every registered URL carrying the named tags.
// includeDescendants widens each name to its whole subtree; requireAll
// switches the match from union to intersection. Returns nil results and no
// error when nothing matches.
func (o *Orchestrator) ProcessURLsByTag(ctx context.Context, tagNames []string, includeDescendants, requireAll bool, opts Options) ([]*Result, error) {
	names := tagNames
	if includeDescendants {
		expanded, err := o.expandTagNames(ctx, tagNames)
		if err != nil {
			return nil, err
		}
		names = expanded
	}

	urlIDs, err := o.deps.Tags.URLsWithTagNames(ctx, names, requireAll)
	if err != nil {
		return nil, err
	}
	if len(urlIDs) == 0 {
		return nil, nil
	}

	urls := make([]string, 0, len(urlIDs))
	for _, id := range urlIDs {
		rec, err := o.deps.Registry.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			urls = append(urls, rec.URL)
		}
	}

	opts.ForceReprocess = true
	return o.ProcessURLs(ctx, urls, opts), nil
}

// expandTagNames widens each tag name to itself plus all descendant names.
// Unknown names pass through unchanged so union queries still try them.
func (o *Orchestrator) expandTagNames(ctx context.Context, tagNames []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, name := range tagNames {
		add(name)
		tag, err := o.deps.Tags.GetByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if tag == nil {
			continue
		}
		descIDs, err := o.deps.Tags.Descendants(ctx, tag.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range descIDs {
			child, err := o.deps.Tags.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if child != nil {
				add(child.Name)
			}
		}
	}
	return out, nil
}
