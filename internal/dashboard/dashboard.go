// Package dashboard loads the landing view: profile, balance and function
// costs fetched side by side.
package dashboard

import (
	"context"
	"errors"
	"log/slog"

	"aiplatform/internal/models"
	"aiplatform/internal/pipeline"
	"aiplatform/pkg/apierror"
)

type ProfileSource interface {
	Profile(ctx context.Context) (*models.User, error)
}

type PointsSource interface {
	Balance(ctx context.Context) (int, error)
	Costs(ctx context.Context) (map[string]int, error)
	IsLow(balance int) bool
}

// Snapshot is what the dashboard shows. Sections that failed are left at
// their zero value and their errors collected in Errors.
type Snapshot struct {
	User       *models.User
	Points     int
	PointsOK   bool
	LowBalance bool
	Costs      map[string]int
	Errors     []*apierror.StandardError
}

type Loader struct {
	profile ProfileSource
	points  PointsSource
	logger  *slog.Logger
}

func New(profile ProfileSource, points PointsSource, logger *slog.Logger) (*Loader, error) {
	if profile == nil || points == nil {
		return nil, errors.New("profile and points sources are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{profile: profile, points: points, logger: logger}, nil
}

// Load fetches all sections concurrently. One section failing does not
// cancel the others. Each failure has already been surfaced by the service
// that produced it and is only collected here.
func (l *Loader) Load(ctx context.Context) Snapshot {
	results := pipeline.Settle(ctx,
		func(ctx context.Context) (any, error) { return l.profile.Profile(ctx) },
		func(ctx context.Context) (any, error) { return l.points.Balance(ctx) },
		func(ctx context.Context) (any, error) { return l.points.Costs(ctx) },
	)

	var snap Snapshot
	for i, r := range results {
		if r.Err != nil {
			snap.Errors = append(snap.Errors, apierror.Normalize(ctx, r.Err))
			continue
		}
		switch i {
		case 0:
			snap.User, _ = r.Value.(*models.User)
		case 1:
			snap.Points, snap.PointsOK = r.Value.(int)
			snap.LowBalance = snap.PointsOK && l.points.IsLow(snap.Points)
		case 2:
			snap.Costs, _ = r.Value.(map[string]int)
		}
	}
	if len(snap.Errors) > 0 {
		l.logger.InfoContext(ctx, "dashboard partially loaded", "failed_sections", len(snap.Errors))
	}
	return snap
}
