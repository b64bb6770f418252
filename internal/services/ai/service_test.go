package ai

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"aiplatform/internal/feedback"
	"aiplatform/internal/models"
	"aiplatform/internal/pipeline"
	"aiplatform/pkg/apierror"
	"aiplatform/pkg/testutil"
)

type AIServiceSuite struct {
	suite.Suite
	ctx     context.Context
	h       *testutil.Harness
	now     time.Time
	service *Service
}

func TestAIServiceSuite(t *testing.T) {
	suite.Run(t, new(AIServiceSuite))
}

func (s *AIServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.h = testutil.NewHarness(s.T())
	s.h.SignIn(s.T(), "ada", 20)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := New(s.h.Client, s.h.Errors,
		WithLogger(s.h.Logger),
		WithClock(func() time.Time { return s.now }),
		WithMaxUploadBytes(1<<10),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *AIServiceSuite) TestFunctionsAreCached() {
	catalog, err := s.service.Functions(s.ctx)
	s.Require().NoError(err)
	s.Len(catalog, 6)
	s.Equal("media", catalog[models.FunctionMovieClip].Category)

	_, err = s.service.Functions(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, s.h.Backend.Hits(http.MethodGet, "/ai/functions"))

	s.now = s.now.Add(defaultCatalogTTL)
	_, err = s.service.Functions(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, s.h.Backend.Hits(http.MethodGet, "/ai/functions"))

	s.service.Invalidate()
	_, err = s.service.Functions(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, s.h.Backend.Hits(http.MethodGet, "/ai/functions"))
}

func (s *AIServiceSuite) TestConcurrentCatalogLoadsShareOneRequest() {
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.service.Functions(s.ctx)
		}()
	}
	wg.Wait()
	s.LessOrEqual(s.h.Backend.Hits(http.MethodGet, "/ai/functions"), 8)
	s.GreaterOrEqual(s.h.Backend.Hits(http.MethodGet, "/ai/functions"), 1)

	// Once cached, no further requests.
	before := s.h.Backend.Hits(http.MethodGet, "/ai/functions")
	_, _ = s.service.Functions(s.ctx)
	s.Equal(before, s.h.Backend.Hits(http.MethodGet, "/ai/functions"))
}

func (s *AIServiceSuite) TestProcess() {
	s.Run("known function is dispatched", func() {
		out, err := s.service.Process(s.ctx, models.FunctionChat, "hello")
		s.Require().NoError(err)
		s.Equal("[chat] hello", out)
		s.Equal(19, s.h.Backend.Points("ada"))
	})

	s.Run("unknown function never reaches the network", func() {
		_, err := s.service.Process(s.ctx, "teleport", "now")
		s.True(apierror.HasCode(err, CodeUnknownFunction))
		s.True(apierror.HasType(err, apierror.TypeValidation))
		s.Zero(s.h.Backend.Hits(http.MethodPost, "/ai/teleport"))
	})

	s.Run("disabled function is a business error", func() {
		s.h.Backend.SetFunction(models.AiFunction{Name: models.FunctionCodeGeneration, DisplayName: "Code Generation", Points: 3})
		s.service.Invalidate()
		_, err := s.service.Process(s.ctx, models.FunctionCodeGeneration, "a parser")
		s.True(apierror.HasCode(err, CodeFunctionDisabled))
		s.Zero(s.h.Backend.Hits(http.MethodPost, "/ai/code-generation"))
	})

	s.Run("empty input is rejected locally", func() {
		_, err := s.service.Process(s.ctx, models.FunctionChat, "")
		s.True(apierror.HasCode(err, CodeEmptyInput))
	})
}

func (s *AIServiceSuite) TestInsufficientPointsShowsWarning() {
	s.h.Backend.SetPoints("ada", 0)

	_, err := s.service.Process(s.ctx, models.FunctionTextGeneration, "a poem")
	se, ok := apierror.As(err)
	s.Require().True(ok)
	s.Equal(apierror.TypeBusiness, se.Type)
	s.Equal("insufficient points", se.Message)
	s.Equal("INSUFFICIENT_POINTS", se.Code)

	msgs := s.h.Feedback.Messages()
	s.Require().NotEmpty(msgs)
	last := msgs[len(msgs)-1]
	s.Equal(feedback.KindWarning, last.Kind)
	s.Equal("insufficient points", last.Text)
}

func (s *AIServiceSuite) TestServerErrorsAreRetriedByThePipelineOnly() {
	s.h.Backend.FailNext(http.MethodPost, "/ai/chat", 503, 503)

	out, err := s.service.Process(s.ctx, models.FunctionChat, "retry me")
	s.Require().NoError(err)
	s.Equal("[chat] retry me", out)
	s.Equal(3, s.h.Backend.Hits(http.MethodPost, "/ai/chat"))
	s.Equal([]time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, s.h.Delays())
}

func (s *AIServiceSuite) TestMovieClip() {
	s.h.SignIn(s.T(), "clipper", 50)
	video := pipeline.File{Name: "trip.mp4", ContentType: "video/mp4", Data: []byte("fake-video-bytes")}

	plan, err := s.service.MovieClip(s.ctx, ClipRequest{Video: video, Description: "highlights", ClipType: "highlight", Style: "fast", TargetLength: 30})
	s.Require().NoError(err)
	s.Contains(plan, "trip.mp4")
	s.Contains(plan, "highlight/fast 30s")
	s.Equal(45, s.h.Backend.Points("clipper"))
	s.True(strings.HasPrefix(s.h.Backend.LastHeader(http.MethodPost, "/ai/movie-clip").Get("Content-Type"), "multipart/form-data"))

	s.Run("server-side validation surfaces the message", func() {
		_, err := s.service.MovieClip(s.ctx, ClipRequest{Video: video, Description: "x", ClipType: "highlight", Style: "fast"})
		s.True(apierror.HasType(err, apierror.TypeValidation))
		s.Equal("target length must be greater than 0", err.(*apierror.StandardError).Message)
	})
}

func (s *AIServiceSuite) TestReadVideoEnforcesLimit() {
	_, err := s.service.ReadVideo(s.ctx, "huge.mp4", bytes.NewReader(make([]byte, 2<<10)))
	s.True(apierror.HasCode(err, CodeFileTooLarge))

	f, err := s.service.ReadVideo(s.ctx, "small.mp4", bytes.NewReader([]byte("ok")))
	s.Require().NoError(err)
	s.Equal("videoFile", f.Field)
}

func (s *AIServiceSuite) TestRecognizeImageSendsDataURL() {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	out, err := s.service.RecognizeImage(s.ctx, "cat.png", bytes.NewReader(png))
	s.Require().NoError(err)
	s.True(strings.HasPrefix(out, "[image-recognition] data:image/png;base64,"))
}

func (s *AIServiceSuite) TestProvider() {
	p, err := s.service.Provider(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.ProviderOpenAI, p)

	msg, err := s.service.SwitchProvider(s.ctx, models.ProviderOllama)
	s.Require().NoError(err)
	s.Equal("switched to ollama", msg)

	p, err = s.service.Provider(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.ProviderOllama, p)

	_, err = s.service.SwitchProvider(s.ctx, "gemini")
	s.True(apierror.HasCode(err, CodeInvalidProvider))
	s.Equal(1, s.h.Backend.Hits(http.MethodPost, "/ai/provider/switch"))
}

func (s *AIServiceSuite) TestExecuteBatch() {
	report := s.service.ExecuteBatch(s.ctx, []Job{
		{Function: models.FunctionChat, Input: "one"},
		{Function: "teleport", Input: "two"},
		{Function: models.FunctionDocumentSummary, Input: "three"},
	})

	s.Equal(2, report.Succeeded)
	s.Equal(1, report.Failed)
	s.Require().Len(report.Results, 3)
	s.Equal("[chat] one", report.Results[0].Output)
	s.Equal(CodeUnknownFunction, report.Results[1].Err.Code)
	s.Equal("[document-summary] three", report.Results[2].Output)
	s.Empty(s.h.Feedback.Messages(), "batch failures are not toasted")
	s.Equal(17, s.h.Backend.Points("ada"))
}

func (s *AIServiceSuite) TestExecuteBatchCatalogFailureIsSilent() {
	s.h.Backend.FailNext(http.MethodGet, "/ai/functions", http.StatusBadRequest)

	report := s.service.ExecuteBatch(s.ctx, []Job{
		{Function: models.FunctionChat, Input: "one"},
		{Function: models.FunctionChat, Input: "two"},
	})

	s.Equal(2, report.Succeeded)
	s.Equal(2, s.h.Backend.Hits(http.MethodGet, "/ai/functions"), "warm-up failed, jobs refetched")
	s.Empty(s.h.Feedback.Messages(), "catalog warm-up failure is not toasted")
}

func TestDescriptors(t *testing.T) {
	d, ok := DescriptorFor(models.FunctionMovieClip)
	if !ok || !d.Upload || d.Category != "media" {
		t.Fatalf("unexpected movie-clip descriptor %+v", d)
	}
	all, err := Descriptors()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 7 || all[0].Category != "analysis" {
		t.Fatalf("unexpected descriptor order %+v", all)
	}
	if _, ok := DescriptorFor("teleport"); ok {
		t.Fatal("unknown function should have no descriptor")
	}
}
