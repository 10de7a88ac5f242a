// Package downloaders maps share links to the source that can relay them.
package downloaders

import (
	"github.com/tanq16/linkrelay/internal/downloaders/mediafire"
	"github.com/tanq16/linkrelay/internal/downloaders/mega"
	"github.com/tanq16/linkrelay/internal/downloaders/terabox"
	"github.com/tanq16/linkrelay/internal/utils"
)

type Registry struct {
	sources []utils.Source
}

// Options configures the default source set.
type Options struct {
	HTTP    utils.HTTPClientConfig
	Mega    mega.Options
	Terabox terabox.Options
}

func NewRegistry(sources ...utils.Source) *Registry {
	return &Registry{sources: sources}
}

// DefaultRegistry returns Mega, Mediafire and Terabox, in that order.
func DefaultRegistry(opts Options) *Registry {
	return NewRegistry(
		mega.New(opts.HTTP, opts.Mega),
		mediafire.New(opts.HTTP),
		terabox.New(opts.HTTP, opts.Terabox),
	)
}

// Select returns the first source whose CanHandle accepts url, or nil.
func (r *Registry) Select(url string) utils.Source {
	for _, source := range r.sources {
		if source.CanHandle(url) {
			return source
		}
	}
	return nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for _, source := range r.sources {
		names = append(names, source.Name())
	}
	return names
}
