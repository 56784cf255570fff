package caption

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"media-caption-server/internal/domain/image"
	"media-caption-server/internal/domain/media"
	"media-caption-server/internal/platform/errors"
	"media-caption-server/internal/platform/observability"
)

// Request modes.
const (
	ModeBinary = "binary"
	ModeURL    = "url"
)

// Config configures the inference call.
type Config struct {
	Endpoint     string
	Token        string
	WaitForModel bool
	Mode         string
	// Timeout of zero leaves the transport default in place.
	Timeout time.Duration
}

// Resolver maps file URIs to local paths and public URLs.
type Resolver interface {
	RealPath(uri string) (string, error)
	PublicURL(uri string) (string, error)
}

// ImageSource is the resolved image sent to the inference API. Data is set
// in binary mode, URL in url mode.
type ImageSource struct {
	Path     string
	MimeType string
	Data     []byte
	URL      string
}

type inferenceRequest struct {
	Inputs  string            `json:"inputs"`
	Options *inferenceOptions `json:"options,omitempty"`
}

type inferenceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// Fetcher posts an image to a hosted captioning model and extracts
// generated_text from the reply.
type Fetcher struct {
	cfg      Config
	resolver Resolver
	client   *resty.Client
	logger   Logger
}

func NewFetcher(cfg Config, resolver Resolver, logger Logger) *Fetcher {
	if cfg.Mode == "" {
		cfg.Mode = ModeBinary
	}

	client := resty.New().
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Fetcher{
		cfg:      cfg,
		resolver: resolver,
		client:   client,
		logger:   orNop(logger),
	}
}

// Caption returns the generated caption for file, or an empty string when
// any step fails. Failures are logged, never returned.
func (f *Fetcher) Caption(ctx context.Context, file *media.File) string {
	src, err := f.Resolve(file)
	if err != nil {
		f.logger.WarnTag(logTag, "image unavailable for captioning: %v", err)
		return ""
	}

	text, err := f.Fetch(ctx, src)
	if err != nil {
		if errors.IsKind(err, errors.KindTransport) {
			f.logger.ErrorTag(logTag, "AI caption generation failed: %v", err)
		} else {
			f.logger.WarnTag(logTag, "AI caption response unusable: %v", err)
		}
		return ""
	}
	return text
}

// Resolve loads the image behind file according to the request mode.
func (f *Fetcher) Resolve(file *media.File) (ImageSource, error) {
	if file == nil || file.URI == "" {
		return ImageSource{}, errors.New(errors.KindResource, "caption.resolve", "media has no image file")
	}

	path, err := f.resolver.RealPath(file.URI)
	if err != nil {
		return ImageSource{}, errors.Wrap(errors.KindResource, "caption.resolve", "cannot resolve "+file.URI, err)
	}
	src := ImageSource{Path: path, MimeType: file.MimeType}

	if f.cfg.Mode == ModeURL {
		if _, err := os.Stat(path); err != nil {
			return ImageSource{}, errors.Wrap(errors.KindResource, "caption.resolve", "image file missing", err)
		}
		url, err := f.resolver.PublicURL(file.URI)
		if err != nil {
			return ImageSource{}, errors.Wrap(errors.KindResource, "caption.resolve", "no public url for "+file.URI, err)
		}
		src.URL = url
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ImageSource{}, errors.Wrap(errors.KindResource, "caption.resolve", "cannot read image file", err)
	}
	if len(data) == 0 {
		return ImageSource{}, errors.New(errors.KindResource, "caption.resolve", "image file is empty")
	}
	src.Data = data
	if src.MimeType == "" {
		src.MimeType = image.DetectMIME(data)
	}
	return src, nil
}

// Fetch performs exactly one POST. Errors are kinded transport or response.
func (f *Fetcher) Fetch(ctx context.Context, src ImageSource) (text string, err error) {
	ctx, end := observability.StartSpan(ctx, "caption", "fetch")
	start := time.Now()
	defer func() {
		observability.ObserveInference(f.cfg.Mode, err, time.Since(start))
		end(err)
	}()

	req := f.client.R().SetContext(ctx)
	if f.cfg.Mode == ModeURL {
		body := inferenceRequest{Inputs: src.URL}
		if f.cfg.WaitForModel {
			body.Options = &inferenceOptions{WaitForModel: true}
		}
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	} else {
		req.SetHeader("Content-Type", src.MimeType).SetBody(src.Data)
		if f.cfg.WaitForModel {
			req.SetQueryParam("wait_for_model", "true")
		}
	}

	resp, err := req.Post(f.cfg.Endpoint)
	if err != nil {
		return "", errors.Wrap(errors.KindTransport, "caption.fetch", "inference request failed", err)
	}
	f.logger.DebugTag(logTag, "inference response %d: %s", resp.StatusCode(), snippet(resp.Body()))
	if !resp.IsSuccess() {
		return "", errors.New(errors.KindTransport, "caption.fetch",
			fmt.Sprintf("inference endpoint returned %d: %s", resp.StatusCode(), snippet(resp.Body())))
	}

	return parseGeneratedText(resp.Body())
}

// parseGeneratedText expects [{"generated_text": "..."}].
func parseGeneratedText(body []byte) (string, error) {
	var items []map[string]any
	if err := sonic.Unmarshal(body, &items); err != nil {
		return "", errors.Wrap(errors.KindResponse, "caption.parse", "response is not a JSON array", err)
	}
	if len(items) == 0 || items[0] == nil {
		return "", errors.New(errors.KindResponse, "caption.parse", "response contains no results")
	}
	raw, ok := items[0]["generated_text"]
	if !ok {
		return "", errors.New(errors.KindResponse, "caption.parse", "generated_text missing")
	}
	text, ok := raw.(string)
	if !ok {
		return "", errors.New(errors.KindResponse, "caption.parse", fmt.Sprintf("generated_text is %T, not a string", raw))
	}
	if text == "" {
		return "", errors.New(errors.KindResponse, "caption.parse", "generated_text is empty")
	}
	return text, nil
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
