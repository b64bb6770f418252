// Package ai dispatches AI function calls. Function names are checked
// against the server catalog before any call is made; the service never
// interprets what a function does.
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"aiplatform/internal/errorhandler"
	"aiplatform/internal/models"
	"aiplatform/internal/pipeline"
	"aiplatform/internal/services/envelope"
	"aiplatform/pkg/apierror"
)

// Error codes raised before a request is sent.
const (
	CodeUnknownFunction  = "UNKNOWN_FUNCTION"
	CodeFunctionDisabled = "FUNCTION_DISABLED"
	CodeEmptyInput       = "EMPTY_INPUT"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidProvider  = "INVALID_PROVIDER"
)

const defaultCatalogTTL = 5 * time.Minute

type Service struct {
	requester envelope.Requester
	errors    envelope.ErrorHandler
	logger    *slog.Logger
	now       func() time.Time

	catalogTTL     time.Duration
	maxUploadBytes int64
	batchLimit     int

	flight    singleflight.Group
	mu        sync.RWMutex
	catalog   map[string]models.AiFunction
	fetchedAt time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCatalogTTL sets how long the function catalog is reused. Zero
// disables caching.
func WithCatalogTTL(d time.Duration) Option {
	return func(s *Service) {
		s.catalogTTL = d
	}
}

// WithMaxUploadBytes bounds files read for uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithBatchLimit caps concurrent calls in ExecuteBatch.
func WithBatchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(requester envelope.Requester, errs envelope.ErrorHandler, opts ...Option) (*Service, error) {
	if requester == nil {
		return nil, errors.New("requester is required")
	}
	if errs == nil {
		return nil, errors.New("error handler is required")
	}
	s := &Service{
		requester:      requester,
		errors:         errs,
		logger:         slog.Default(),
		now:            time.Now,
		catalogTTL:     defaultCatalogTTL,
		maxUploadBytes: 10 << 20,
		batchLimit:     4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Functions returns the server catalog keyed by function name. Concurrent
// callers share one request; the result is cached for the catalog TTL.
func (s *Service) Functions(ctx context.Context, opts ...errorhandler.CallOption) (map[string]models.AiFunction, error) {
	s.mu.RLock()
	if s.catalog != nil && s.catalogTTL > 0 && s.now().Sub(s.fetchedAt) < s.catalogTTL {
		out := cloneCatalog(s.catalog)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.flight.Do("catalog", func() (any, error) {
		catalog, err := envelope.Call[map[string]models.AiFunction](ctx, s.requester, s.errors,
			pipeline.NewRequest(http.MethodGet, "/ai/functions", nil), opts...)
		if err != nil {
			return nil, err
		}
		for name, fn := range catalog {
			if fn.Name == "" {
				fn.Name = name
				catalog[name] = fn
			}
		}
		s.mu.Lock()
		s.catalog = catalog
		s.fetchedAt = s.now()
		s.mu.Unlock()
		return catalog, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneCatalog(v.(map[string]models.AiFunction)), nil
}

// Invalidate drops the cached catalog.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = nil
}

func cloneCatalog(in map[string]models.AiFunction) map[string]models.AiFunction {
	out := make(map[string]models.AiFunction, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// FunctionPoints returns the cost of each function.
func (s *Service) FunctionPoints(ctx context.Context) (map[string]int, error) {
	return envelope.Call[map[string]int](ctx, s.requester, s.errors, pipeline.NewRequest(http.MethodGet, "/ai/functions/points", nil))
}

// Process runs the named function on input and returns its output.
func (s *Service) Process(ctx context.Context, name, input string, opts ...errorhandler.CallOption) (string, error) {
	if err := s.checkFunction(ctx, name, opts...); err != nil {
		return "", err
	}
	if input == "" {
		return "", s.errors.Handle(ctx, apierror.New(apierror.TypeValidation, apierror.LevelMedium, CodeEmptyInput,
			"input must not be empty", apierror.WithDetails(map[string]string{"function": name})), opts...)
	}
	return envelope.Call[string](ctx, s.requester, s.errors,
		pipeline.NewRequest(http.MethodPost, "/ai/"+name, map[string]string{"input": input}), opts...)
}

// checkFunction validates name against the catalog. It is a structural
// check: known and enabled.
func (s *Service) checkFunction(ctx context.Context, name string, opts ...errorhandler.CallOption) error {
	catalog, err := s.Functions(ctx, opts...)
	if err != nil {
		return err
	}
	fn, ok := catalog[name]
	if !ok {
		return s.errors.Handle(ctx, apierror.New(apierror.TypeValidation, apierror.LevelMedium, CodeUnknownFunction,
			fmt.Sprintf("unknown AI function %q", name), apierror.WithDetails(map[string]string{"function": name})), opts...)
	}
	if !fn.Enabled {
		return s.errors.Business(ctx, CodeFunctionDisabled, fmt.Sprintf("%s is currently unavailable", fn.DisplayName),
			map[string]string{"function": name}, opts...)
	}
	return nil
}

// ClipRequest describes a movie-clip job.
type ClipRequest struct {
	Video        pipeline.File
	Description  string
	ClipType     string
	Style        string
	TargetLength int
}

// ReadVideo buffers a video for MovieClip, enforcing the upload limit.
func (s *Service) ReadVideo(ctx context.Context, name string, r io.Reader) (pipeline.File, error) {
	f, err := pipeline.ReadFile("videoFile", name, "", r, s.maxUploadBytes)
	if err != nil {
		return pipeline.File{}, s.handleFileError(ctx, name, err)
	}
	return f, nil
}

// MovieClip uploads a video with its clip instructions and returns the
// generated clip plan.
func (s *Service) MovieClip(ctx context.Context, req ClipRequest) (string, error) {
	if err := s.checkFunction(ctx, models.FunctionMovieClip); err != nil {
		return "", err
	}
	video := req.Video
	video.Field = "videoFile"
	form := pipeline.Form{
		Fields: []pipeline.Field{
			{Name: "description", Value: req.Description},
			{Name: "clipType", Value: req.ClipType},
			{Name: "style", Value: req.Style},
			{Name: "targetLength", Value: strconv.Itoa(req.TargetLength)},
		},
		Files: []pipeline.File{video},
	}
	upload, err := pipeline.NewUploadRequest("/ai/"+models.FunctionMovieClip, form)
	if err != nil {
		return "", s.errors.Handle(ctx, err)
	}
	return envelope.Call[string](ctx, s.requester, s.errors, upload)
}

// RecognizeImage sends the image as a data URL to the image-recognition
// function.
func (s *Service) RecognizeImage(ctx context.Context, name string, r io.Reader) (string, error) {
	f, err := pipeline.ReadFile("image", name, "", r, s.maxUploadBytes)
	if err != nil {
		return "", s.handleFileError(ctx, name, err)
	}
	dataURL := "data:" + f.ContentType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
	return s.Process(ctx, models.FunctionImageRecognition, dataURL)
}

func (s *Service) handleFileError(ctx context.Context, name string, err error) error {
	if errors.Is(err, pipeline.ErrUploadTooLarge) {
		return s.errors.Handle(ctx, apierror.New(apierror.TypeValidation, apierror.LevelMedium, CodeFileTooLarge,
			fmt.Sprintf("%s exceeds the %d MB upload limit", name, s.maxUploadBytes>>20),
			apierror.WithCause(err), apierror.WithDetails(map[string]any{"file": name, "limit": s.maxUploadBytes})))
	}
	return s.errors.Handle(ctx, err)
}

// Provider returns the active model provider.
func (s *Service) Provider(ctx context.Context) (string, error) {
	return envelope.Call[string](ctx, s.requester, s.errors, pipeline.NewRequest(http.MethodGet, "/ai/provider", nil))
}

// SwitchProvider changes the active provider to openai or ollama.
func (s *Service) SwitchProvider(ctx context.Context, provider string) (string, error) {
	if provider != models.ProviderOpenAI && provider != models.ProviderOllama {
		return "", s.errors.Handle(ctx, apierror.New(apierror.TypeValidation, apierror.LevelMedium, CodeInvalidProvider,
			fmt.Sprintf("unsupported provider %q, expected %s or %s", provider, models.ProviderOpenAI, models.ProviderOllama)))
	}
	out, err := envelope.Call[string](ctx, s.requester, s.errors,
		pipeline.NewRequest(http.MethodPost, "/ai/provider/switch", map[string]string{"provider": provider}))
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "ai provider switched", "provider", provider)
	return out, nil
}
