package mediaapi

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"media-caption-server/internal/domain/caption/eventlog"
	"media-caption-server/internal/domain/eventbus"
	"media-caption-server/internal/domain/image"
	"media-caption-server/internal/domain/media"
	"media-caption-server/internal/platform/errors"
	"media-caption-server/internal/platform/logging"
	httptransport "media-caption-server/internal/transport/http"
)

const historySize = 10

// EventReader exposes the caption event log.
type EventReader interface {
	Latest(ctx context.Context, mediaID string) (eventlog.Event, bool, error)
	History(ctx context.Context, mediaID string, limit int) ([]eventlog.Event, error)
}

// Publisher dispatches hook notifications.
type Publisher interface {
	Publish(n eventbus.Notification) error
}

// Service is the HTTP surface of the media domain.
type Service struct {
	media         *media.Service
	events        EventReader
	publisher     Publisher
	captionField  string
	maxUploadSize int64
	logger        *logging.Logger
}

// NewService builds the media API. captionField is the field the caption
// handler writes to.
func NewService(
	mediaService *media.Service,
	events EventReader,
	publisher Publisher,
	captionField string,
	maxUploadSize int64,
	logger *logging.Logger,
) (*Service, error) {
	if mediaService == nil {
		return nil, errors.New(errors.KindConfig, "media_api.new", "media service is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "media_api.new", "logger is required")
	}
	return &Service{
		media:         mediaService,
		events:        events,
		publisher:     publisher,
		captionField:  captionField,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}, nil
}

// Register mounts the media routes on router.
func (s *Service) Register(router *gin.RouterGroup) {
	router.POST("/media", s.handleCreate)
	router.GET("/media/:id", s.handleGet)
	router.PATCH("/media/:id", s.handleUpdate)
	router.GET("/media/:id/caption", s.handleCaption)
	router.POST("/hooks/entity", s.handleHook)

	s.logger.InfoTag("HTTP", "media routes registered")
}

type mediaView struct {
	ID         string                 `json:"id"`
	EntityType string                 `json:"entity_type"`
	Bundle     string                 `json:"bundle"`
	Name       string                 `json:"name"`
	Fields     map[string]string      `json:"fields"`
	Files      map[string]*media.File `json:"files,omitempty"`
	Created    time.Time              `json:"created"`
	Changed    time.Time              `json:"changed"`
}

func toView(m *media.Media) mediaView {
	view := mediaView{
		ID:         m.ID,
		EntityType: m.EntityTypeID(),
		Bundle:     m.Bundle(),
		Name:       m.Name,
		Fields:     m.Values(),
		Created:    m.Created,
		Changed:    m.Changed,
	}
	if f := m.SourceFile(); f != nil {
		view.Files = map[string]*media.File{m.Schema().SourceField: f}
	}
	return view
}

func (s *Service) handleCreate(c *gin.Context) {
	if s.maxUploadSize > 0 {
		// room for the other multipart parts
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize+1<<20)
	}

	req := media.CreateRequest{
		Bundle: c.PostForm("bundle"),
		Name:   c.PostForm("name"),
		Fields: map[string]string{},
	}
	if req.Bundle == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "bundle is required", nil)
		return
	}

	if form, err := c.MultipartForm(); err == nil {
		for key, values := range form.Value {
			if strings.HasPrefix(key, "field_") && len(values) > 0 {
				req.Fields[key] = values[0]
			}
		}
	}

	if header, err := c.FormFile("file"); err == nil {
		f, err := header.Open()
		if err != nil {
			httptransport.RespondError(c, http.StatusBadRequest, "cannot open uploaded file", nil)
			return
		}
		data, err := image.Read(f, s.maxUploadSize)
		f.Close()
		if err != nil {
			httptransport.RespondError(c, http.StatusRequestEntityTooLarge, err.Error(), nil)
			return
		}
		req.Upload = &media.Upload{
			Filename: header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Data:     data,
		}
	}

	m, err := s.media.Create(c.Request.Context(), req)
	if err != nil {
		s.respondSaveError(c, m, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusCreated, toView(m), "media created")
}

func (s *Service) handleGet(c *gin.Context) {
	m, err := s.media.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondLookupError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, toView(m), "")
}

type updateRequest struct {
	Name   *string           `json:"name"`
	Fields map[string]string `json:"fields"`
}

func (s *Service) handleUpdate(c *gin.Context) {
	var body updateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}

	m, err := s.media.Update(c.Request.Context(), c.Param("id"), media.Changes{Name: body.Name, Fields: body.Fields})
	if err != nil {
		if stderrors.Is(err, media.ErrNotFound) {
			s.respondLookupError(c, err)
			return
		}
		s.respondSaveError(c, m, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, toView(m), "media updated")
}

type captionStatus struct {
	MediaID string           `json:"media_id"`
	Caption string           `json:"caption"`
	Latest  *eventlog.Event  `json:"latest"`
	History []eventlog.Event `json:"history"`
}

func (s *Service) handleCaption(c *gin.Context) {
	ctx := c.Request.Context()
	m, err := s.media.Get(ctx, c.Param("id"))
	if err != nil {
		s.respondLookupError(c, err)
		return
	}

	status := captionStatus{MediaID: m.ID, History: []eventlog.Event{}}
	if s.captionField != "" && m.HasField(s.captionField) {
		status.Caption = m.Get(s.captionField)
	}
	if s.events != nil {
		latest, ok, err := s.events.Latest(ctx, m.ID)
		if err != nil {
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to load caption events", nil)
			return
		}
		if ok {
			status.Latest = &latest
		}
		history, err := s.events.History(ctx, m.ID, historySize)
		if err != nil {
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to load caption events", nil)
			return
		}
		status.History = history
	}
	httptransport.RespondSuccess(c, http.StatusOK, status, "")
}

type hookRequest struct {
	EntityType string         `json:"entity_type" binding:"required"`
	ID         string         `json:"id" binding:"required"`
	Operation  string         `json:"operation" binding:"required"`
	Arguments  map[string]any `json:"arguments"`
}

// handleHook replays an entity saved notification for an existing entity.
func (s *Service) handleHook(c *gin.Context) {
	var body hookRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "entity_type, id and operation are required", nil)
		return
	}
	op, ok := eventbus.ParseOperation(body.Operation)
	if !ok {
		httptransport.RespondError(c, http.StatusBadRequest, "operation must be insert or update", nil)
		return
	}
	if body.EntityType != media.EntityType {
		httptransport.RespondError(c, http.StatusUnprocessableEntity, "unsupported entity type "+body.EntityType, nil)
		return
	}
	if s.publisher == nil {
		httptransport.RespondError(c, http.StatusServiceUnavailable, "event bus unavailable", nil)
		return
	}

	m, err := s.media.Get(c.Request.Context(), body.ID)
	if err != nil {
		s.respondLookupError(c, err)
		return
	}

	event := eventbus.NewGenericEvent(c.Request.Context(), op, m, body.Arguments)
	if err := s.publisher.Publish(event); err != nil {
		s.logger.WarnTag("HTTP", "hook notification %s for media %s failed: %v", event.ID(), m.ID, err)
		httptransport.RespondError(c, httptransport.StatusFor(err), err.Error(), gin.H{"notification_id": event.ID()})
		return
	}
	httptransport.RespondSuccess(c, http.StatusAccepted, gin.H{"notification_id": event.ID()}, "notification dispatched")
}

func (s *Service) respondLookupError(c *gin.Context, err error) {
	if stderrors.Is(err, media.ErrNotFound) {
		httptransport.RespondError(c, http.StatusNotFound, "media not found", nil)
		return
	}
	s.logger.ErrorTag("HTTP", "media lookup failed: %v", err)
	httptransport.RespondError(c, httptransport.StatusFor(err), "failed to load media", nil)
}

// respondSaveError reports a failed save. A non-nil m means the media was
// persisted and a post-save handler failed.
func (s *Service) respondSaveError(c *gin.Context, m *media.Media, err error) {
	if m != nil {
		s.logger.ErrorTag("HTTP", "media %s saved but post-save handling failed: %v", m.ID, err)
		httptransport.RespondError(c, httptransport.StatusFor(err), "media saved but post-save handling failed", toView(m))
		return
	}
	status := httptransport.StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorTag("HTTP", "media save failed: %v", err)
		httptransport.RespondError(c, status, "failed to save media", nil)
		return
	}
	httptransport.RespondError(c, status, err.Error(), nil)
}
