package services

import (
	"context"
	"sort"

	"github.com/anonto42/minglr/backend/internal/geo"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/repositories"
	"github.com/anonto42/minglr/backend/internal/session"
)

// Ranker orders activities for a user.
type Ranker interface {
	Rank(ctx context.Context, user *models.UserProfile, activities []models.Activity) []string
}

// ActivityService serves the activity catalogue.
type ActivityService struct {
	activities repositories.ActivityRepository
	users      repositories.UserRepository
	ranker     Ranker
	options
}

func NewActivityService(activities repositories.ActivityRepository, users repositories.UserRepository, ranker Ranker, opts ...Option) *ActivityService {
	return &ActivityService{activities: activities, users: users, ranker: ranker, options: newOptions(opts)}
}

// Seed writes the default catalogue when the store is empty.
func (s *ActivityService) Seed(ctx context.Context) error {
	n, err := s.activities.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, a := range models.SeedActivities() {
		if err := s.activities.Upsert(ctx, a); err != nil {
			return err
		}
	}
	s.logger.InfoContext(ctx, "activity catalogue seeded")
	return nil
}

// List returns the catalogue with normalised locations. A read failure or an empty store
// yields the built-in catalogue.
func (s *ActivityService) List(ctx context.Context) []models.Activity {
	list, err := s.activities.List(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "listing activities, using defaults", "error", err)
		list = nil
	}
	if len(list) == 0 {
		list = models.SeedActivities()
	}
	out := make([]models.Activity, len(list))
	for i, a := range list {
		out[i] = a.Normalized()
	}
	return out
}

func (s *ActivityService) Get(ctx context.Context, id string) (*models.Activity, error) {
	a, err := s.activities.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n := a.Normalized()
	return &n, nil
}

// Nearby returns the activities that have a position, closest to origin first.
func (s *ActivityService) Nearby(ctx context.Context, origin geo.Point) []models.NearbyActivity {
	out := []models.NearbyActivity{}
	for _, a := range s.List(ctx) {
		pos, ok := position(a)
		if !ok {
			continue
		}
		d := geo.DistanceKm(origin, pos)
		out = append(out, models.NearbyActivity{Activity: a, DistanceKm: d, Distance: geo.FormatDistance(d)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}

func position(a models.Activity) (geo.Point, bool) {
	if a.Lat != nil && a.Lng != nil {
		return geo.Point{Lat: *a.Lat, Lng: *a.Lng}, true
	}
	return geo.ParseLocation(a.Location)
}

// Ranked returns the activities most relevant to the caller, in ranked order.
func (s *ActivityService) Ranked(ctx context.Context) ([]models.Activity, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetProfile(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	all := s.List(ctx)
	byID := make(map[string]models.Activity, len(all))
	for _, a := range all {
		byID[a.ID] = a
	}
	out := []models.Activity{}
	for _, id := range s.ranker.Rank(ctx, user, all) {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}
