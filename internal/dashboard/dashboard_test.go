package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"aiplatform/internal/feedback"
	"aiplatform/internal/pipeline"
	"aiplatform/internal/services/points"
	"aiplatform/internal/services/user"
	"aiplatform/pkg/apierror"
	"aiplatform/pkg/testutil"
)

// dropPath fails every round trip whose path ends with suffix.
type dropPath struct {
	next   http.RoundTripper
	suffix string
}

func (d dropPath) RoundTrip(r *http.Request) (*http.Response, error) {
	if strings.HasSuffix(r.URL.Path, d.suffix) {
		return nil, errors.New("connection reset by peer")
	}
	return d.next.RoundTrip(r)
}

type DashboardSuite struct {
	suite.Suite
	ctx context.Context
}

func TestDashboardSuite(t *testing.T) {
	suite.Run(t, new(DashboardSuite))
}

func (s *DashboardSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *DashboardSuite) loader(h *testutil.Harness) *Loader {
	users, err := user.New(h.Client, h.Errors, h.Session)
	s.Require().NoError(err)
	pts, err := points.New(h.Client, h.Errors)
	s.Require().NoError(err)
	l, err := New(users, pts, h.Logger)
	s.Require().NoError(err)
	return l
}

func (s *DashboardSuite) TestAllSectionsLoad() {
	h := testutil.NewHarness(s.T())
	h.SignIn(s.T(), "ada", 30)

	snap := s.loader(h).Load(s.ctx)
	s.Empty(snap.Errors)
	s.Require().NotNil(snap.User)
	s.Equal("ada", snap.User.Username)
	s.True(snap.PointsOK)
	s.Equal(30, snap.Points)
	s.True(snap.LowBalance)
	s.Equal(1, snap.Costs["chat"])
}

func (s *DashboardSuite) TestOneNetworkFailureDoesNotSinkTheOthers() {
	h := testutil.NewHarness(s.T(), pipeline.WithHTTPClient(&http.Client{
		Transport: dropPath{next: http.DefaultTransport, suffix: "/ai/functions/points"},
	}))
	h.SignIn(s.T(), "ada", 90)

	snap := s.loader(h).Load(s.ctx)

	s.Require().NotNil(snap.User)
	s.Equal(90, snap.Points)
	s.False(snap.LowBalance)
	s.Nil(snap.Costs)
	s.Require().Len(snap.Errors, 1)
	s.Equal(apierror.TypeNetwork, snap.Errors[0].Type)

	msgs := h.Feedback.Messages()
	s.Require().Len(msgs, 1, "the failure is surfaced exactly once")
	s.Equal(feedback.KindError, msgs[0].Kind)
	s.Equal(apierror.MsgNetwork, msgs[0].Text)
	s.Len(h.Delays(), 2, "network failures are retried by the pipeline")
}

func (s *DashboardSuite) TestNewRequiresSources() {
	_, err := New(nil, nil, nil)
	s.Error(err)
}
