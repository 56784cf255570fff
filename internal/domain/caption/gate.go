package caption

import (
	"media-caption-server/internal/domain/media"
)

// Gate admits only media entities of the image bundle.
type Gate struct {
	imageBundle string
	logger      Logger
}

func NewGate(imageBundle string, logger Logger) *Gate {
	return &Gate{imageBundle: imageBundle, logger: orNop(logger)}
}

// Admit returns the media when subject is a media entity of the image
// bundle. It has no side effects beyond debug logging.
func (g *Gate) Admit(subject any) (*media.Media, bool) {
	entity, ok := subject.(media.Entity)
	if !ok {
		g.logger.DebugTag(logTag, "skipping %T: not an entity", subject)
		return nil, false
	}
	if entity.EntityTypeID() != media.EntityType {
		g.logger.DebugTag(logTag, "skipping %s %s: not a media entity", entity.EntityTypeID(), entity.Identifier())
		return nil, false
	}
	if entity.Bundle() != g.imageBundle {
		g.logger.DebugTag(logTag, "skipping media %s: bundle %s is not %s", entity.Identifier(), entity.Bundle(), g.imageBundle)
		return nil, false
	}
	m, ok := subject.(*media.Media)
	if !ok {
		g.logger.DebugTag(logTag, "skipping media %s: unsupported handle %T", entity.Identifier(), subject)
		return nil, false
	}
	return m, true
}
