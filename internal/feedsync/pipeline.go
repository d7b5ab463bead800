package feedsync

import "strings"

// ContentPrefilter mutates link/title/content once, before the entry row is
// written. Its output becomes the stored content.
type ContentPrefilter interface {
	PrefilterContent(link, title, content string) (string, string, string)
}

// ContentFilter mutates content every time an entry is served to a user;
// its output is never persisted.
type ContentFilter interface {
	FilterContent(content string) string
}

// TagPrefilter inspects an entry and returns tag directives: a tag name to
// add, or a name prefixed with "-" to remove. Users can opt out per plugin,
// so every prefilter carries a stable name.
type TagPrefilter interface {
	Name() string
	Tags(link, title, content string) []string
}

// RemoveDirectivePrefix marks a tag directive as a removal.
const RemoveDirectivePrefix = "-"

// Pipeline is the explicit plugin configuration, constructed once and
// passed into the orchestrator. Stages run in registration order.
type Pipeline struct {
	contentPrefilters []ContentPrefilter
	contentFilters    []ContentFilter
	tagPrefilters     []TagPrefilter
}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

func (p *Pipeline) AddContentPrefilter(f ContentPrefilter) {
	p.contentPrefilters = append(p.contentPrefilters, f)
}

func (p *Pipeline) AddContentFilter(f ContentFilter) {
	p.contentFilters = append(p.contentFilters, f)
}

func (p *Pipeline) AddTagPrefilter(f TagPrefilter) {
	p.tagPrefilters = append(p.tagPrefilters, f)
}

// ApplyContentPrefilters runs every content prefilter in order.
func (p *Pipeline) ApplyContentPrefilters(link, title, content string) (string, string, string) {
	if p == nil {
		return link, title, content
	}
	for _, f := range p.contentPrefilters {
		link, title, content = f.PrefilterContent(link, title, content)
	}
	return link, title, content
}

// ApplyContentFilters runs every read-time content filter in order. Order is
// significant: filters may depend on the output of earlier ones.
func (p *Pipeline) ApplyContentFilters(content string) string {
	if p == nil {
		return content
	}
	for _, f := range p.contentFilters {
		content = f.FilterContent(content)
	}
	return content
}

// TagDirectives collects the directives of every tag prefilter the user has
// not disabled, in registration order.
func (p *Pipeline) TagDirectives(link, title, content string, disabled map[string]bool) []string {
	if p == nil {
		return nil
	}
	var directives []string
	for _, f := range p.tagPrefilters {
		if disabled[f.Name()] {
			continue
		}
		directives = append(directives, f.Tags(link, title, content)...)
	}
	return directives
}

// foldDirectives resolves an ordered directive list against a starting tag
// set and returns the resulting tag names. Removing an absent tag is a
// no-op.
func foldDirectives(initial []string, directives []string) []string {
	seen := make(map[string]bool, len(initial))
	queued := make(map[string]bool, len(initial))
	var order []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		if !queued[name] {
			queued[name] = true
			order = append(order, name)
		}
	}

	for _, name := range initial {
		add(name)
	}
	for _, directive := range directives {
		if name, ok := strings.CutPrefix(directive, RemoveDirectivePrefix); ok {
			seen[name] = false
			continue
		}
		add(directive)
	}

	var tags []string
	for _, name := range order {
		if seen[name] {
			tags = append(tags, name)
		}
	}
	return tags
}
