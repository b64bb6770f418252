package envelope

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"aiplatform/internal/errorhandler"
	"aiplatform/internal/models"
	"aiplatform/internal/pipeline"
	"aiplatform/internal/services/envelope/mocks"
	"aiplatform/pkg/apierror"
)

type EnvelopeSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	requester *mocks.MockRequester
	handler   *mocks.MockErrorHandler
	req       pipeline.Request
}

func TestEnvelopeSuite(t *testing.T) {
	suite.Run(t, new(EnvelopeSuite))
}

func (s *EnvelopeSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.requester = mocks.NewMockRequester(s.ctrl)
	s.handler = mocks.NewMockErrorHandler(s.ctrl)
	s.req = pipeline.NewRequest(http.MethodGet, "/user/profile", nil)
}

func (s *EnvelopeSuite) respond(body string) {
	s.requester.EXPECT().Do(gomock.Any(), s.req).Return(&pipeline.Response{StatusCode: 200, Body: []byte(body), RequestID: "req-1"}, nil)
}

func (s *EnvelopeSuite) TestSuccessReturnsData() {
	s.respond(`{"success":true,"message":"ok","data":{"id":7,"username":"ada","points":120}}`)

	u, err := Call[*models.User](s.ctx, s.requester, s.handler, s.req)
	s.Require().NoError(err)
	s.Equal(int64(7), u.ID)
	s.Equal(120, u.Points)
}

func (s *EnvelopeSuite) TestUnwrappedBodyIsData() {
	s.respond(`42`)

	n, err := Call[int](s.ctx, s.requester, s.handler, s.req)
	s.Require().NoError(err)
	s.Equal(42, n)
}

func (s *EnvelopeSuite) TestEmptyBody() {
	s.respond(``)

	u, err := Call[*models.User](s.ctx, s.requester, s.handler, s.req)
	s.NoError(err)
	s.Nil(u)
}

func (s *EnvelopeSuite) TestSuccessFalseIsBusiness() {
	s.respond(`{"success":false,"code":"INSUFFICIENT_POINTS","error":"insufficient points"}`)
	want := apierror.New(apierror.TypeBusiness, apierror.LevelMedium, "INSUFFICIENT_POINTS", "insufficient points")
	s.handler.EXPECT().Business(gomock.Any(), "INSUFFICIENT_POINTS", "insufficient points", nil).Return(want)

	_, err := Call[string](s.ctx, s.requester, s.handler, s.req)
	s.Require().Error(err)
	s.True(apierror.HasType(err, apierror.TypeBusiness))
	s.Equal("insufficient points", err.(*apierror.StandardError).Message)
}

func (s *EnvelopeSuite) TestSuccessFalseFallsBackToMessage() {
	s.respond(`{"success":false,"message":"function disabled"}`)
	s.handler.EXPECT().Business(gomock.Any(), "", "function disabled", nil).
		Return(apierror.New(apierror.TypeBusiness, apierror.LevelMedium, apierror.CodeBusiness, "function disabled"))

	_, err := Call[string](s.ctx, s.requester, s.handler, s.req)
	s.Error(err)
}

func (s *EnvelopeSuite) TestTransportFailureIsHandledOnce() {
	failure := &pipeline.HTTPError{Method: http.MethodGet, Path: "/user/profile", StatusCode: 503}
	s.requester.EXPECT().Do(gomock.Any(), s.req).Return(nil, failure)
	s.handler.EXPECT().Handle(gomock.Any(), failure).Times(1).
		Return(apierror.New(apierror.TypeServer, apierror.LevelCritical, apierror.CodeServer, apierror.MsgServer))

	_, err := Call[*models.User](s.ctx, s.requester, s.handler, s.req)
	s.True(apierror.HasType(err, apierror.TypeServer))
}

func (s *EnvelopeSuite) TestMalformedBody() {
	s.respond(`{"success":true,"data":"not-a-user"}`)
	s.handler.EXPECT().Handle(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, v any, _ ...errorhandler.CallOption) *apierror.StandardError {
			err, ok := v.(error)
			s.Require().True(ok)
			s.Contains(err.Error(), "decode GET /user/profile")
			return apierror.New(apierror.TypeUnknown, apierror.LevelMedium, apierror.CodeRuntime, err.Error())
		})

	_, err := Call[*models.User](s.ctx, s.requester, s.handler, s.req)
	s.Error(err)
}

func (s *EnvelopeSuite) TestCallOptionsAreForwarded() {
	s.requester.EXPECT().Do(gomock.Any(), s.req).Return(nil, errors.New("boom"))
	s.handler.EXPECT().Handle(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(apierror.New(apierror.TypeUnknown, apierror.LevelMedium, apierror.CodeRuntime, "boom"))

	_, err := Call[string](s.ctx, s.requester, s.handler, s.req, errorhandler.Silent())
	s.Error(err)
}
