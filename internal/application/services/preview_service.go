package services

import (
	"context"
	"fmt"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/render"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/engine/memory"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
)

// PreviewService renders a saved template into a resolved preview tree:
// collections expanded, bindings substituted, prices formatted. It operates
// on a scratch engine so previewing never touches a live session.
type PreviewService struct {
	templates *TemplateService
	renderer  *render.Renderer
	logger    *logging.ChanneledLogger
}

func NewPreviewService(templates *TemplateService, renderer *render.Renderer, logger *logging.ChanneledLogger) *PreviewService {
	return &PreviewService{templates: templates, renderer: renderer, logger: logger}
}

// RenderTemplate loads a template by name and returns its fully resolved
// preview tree.
func (s *PreviewService) RenderTemplate(ctx context.Context, name string) (*render.PreviewNode, error) {
	tree, err := s.templates.Load(name)
	if err != nil {
		return nil, err
	}

	scratch := memory.NewStore(logging.NewDiscardLogger(), 0)
	if err := scratch.Deserialize(tree); err != nil {
		return nil, fmt.Errorf("failed to load template %s into preview engine: %w", name, err)
	}

	preview, err := s.renderer.Preview(ctx, scratch)
	if err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", name, err)
	}
	s.logger.Render().Debug("Template preview rendered", "name", name)
	return preview, nil
}

// RenderGraph resolves a live session's graph into a preview tree.
func (s *PreviewService) RenderGraph(ctx context.Context, session *Session) (*render.PreviewNode, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	return s.renderer.Preview(ctx, session.Store)
}
