package holder

import "sync"

// Renderer identifies the strategy a holder is rendered with. Rendering itself
// happens outside this module; holders only carry the resolved choice.
type Renderer interface {
	Name() string
}

// RendererFactory builds a renderer per replica.
type RendererFactory func() Renderer

type namedRenderer string

func (r namedRenderer) Name() string { return string(r) }

// NamedRenderer returns a Renderer that only carries a name.
func NamedRenderer(name string) Renderer { return namedRenderer(name) }

var (
	defaultRendererOnce sync.Once
	defaultRenderer     Renderer
)

// DefaultRenderer returns the process-wide baseline renderer.
func DefaultRenderer() Renderer {
	defaultRendererOnce.Do(func() {
		defaultRenderer = namedRenderer("default")
	})
	return defaultRenderer
}

// ResolveRenderer picks the renderer for a replica: the holder's declared
// default (a factory is invoked per call), then the renderer passed by the
// parent, then DefaultRenderer.
func ResolveRenderer(declared Renderer, factory RendererFactory, passed Renderer) Renderer {
	if declared != nil {
		return declared
	}
	if factory != nil {
		if r := factory(); r != nil {
			return r
		}
	}
	if passed != nil {
		return passed
	}
	return DefaultRenderer()
}
