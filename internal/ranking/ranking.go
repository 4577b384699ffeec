// Package ranking orders the activity catalogue for a user with a text-generation model.
//
// Results are cached per user, catalogue size and preference set. Any failure falls back to the
// first four activities so callers always get an answer.
package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/minglr/backend/internal/metrics"
	"github.com/anonto42/minglr/backend/internal/models"
)

// DefaultLimit is how many activities a ranking returns.
const DefaultLimit = 4

// Generator produces a model completion for prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Cache stores ranked ID lists.
type Cache interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, ids []string, ttl time.Duration) error
}

// Ranker ranks activities for users.
type Ranker struct {
	generator Generator
	cache     Cache
	ttl       time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Ranker)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Ranker) { r.metrics = m }
}

// WithTTL sets how long a ranking stays cached
func WithTTL(ttl time.Duration) Option {
	return func(r *Ranker) { r.ttl = ttl }
}

// New creates a Ranker. A nil generator always returns the fallback order.
func New(generator Generator, cache Cache, opts ...Option) *Ranker {
	r := &Ranker{
		generator: generator,
		cache:     cache,
		ttl:       time.Hour,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewMemoryCache()
	}
	return r
}

// CacheKey identifies a ranking request.
func CacheKey(user *models.UserProfile, activityCount int) string {
	return "minglr_ranking_" + user.ID + "_" + strconv.Itoa(activityCount) + "_" + strings.Join(user.Preferences, "_")
}

// Rank returns up to DefaultLimit activity IDs ordered by relevance to user.
func (r *Ranker) Rank(ctx context.Context, user *models.UserProfile, activities []models.Activity) []string {
	if len(activities) == 0 {
		return []string{}
	}
	key := CacheKey(user, len(activities))
	if ids, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.WarnContext(ctx, "reading ranking cache", "key", key, "error", err)
	} else if ok {
		return ids
	}

	if r.generator == nil {
		r.metrics.IncRankingFallback("disabled")
		return Fallback(activities)
	}

	text, err := r.generator.Generate(ctx, BuildPrompt(user, activities))
	if err != nil {
		if IsQuotaError(err) {
			r.logger.WarnContext(ctx, "ranking quota exceeded, using default order")
			r.metrics.IncRankingFallback("quota")
		} else {
			r.logger.ErrorContext(ctx, "ranking activities", "error", err)
			r.metrics.IncRankingFallback("error")
		}
		return Fallback(activities)
	}

	ids, err := parseIDs(text, activities)
	if err != nil || len(ids) == 0 {
		r.logger.WarnContext(ctx, "unusable ranking response", "error", err)
		r.metrics.IncRankingFallback("invalid_response")
		return Fallback(activities)
	}
	if err := r.cache.Set(ctx, key, ids, r.ttl); err != nil {
		r.logger.WarnContext(ctx, "writing ranking cache", "key", key, "error", err)
	}
	return ids
}

// Fallback is the first DefaultLimit activity IDs in catalogue order.
func Fallback(activities []models.Activity) []string {
	n := min(len(activities), DefaultLimit)
	ids := make([]string, n)
	for i := range n {
		ids[i] = activities[i].ID
	}
	return ids
}

type promptActivity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// BuildPrompt describes the user and the catalogue and asks for a JSON array of IDs.
func BuildPrompt(user *models.UserProfile, activities []models.Activity) string {
	list := make([]promptActivity, len(activities))
	for i, a := range activities {
		list[i] = promptActivity{ID: a.ID, Name: a.Name, Category: a.Category, Description: a.Description}
	}
	catalogue, _ := json.Marshal(list)

	var b strings.Builder
	fmt.Fprintf(&b, "User Profile: Likes %s, Wishlist: %s.\n",
		strings.Join(user.Preferences, ", "), strings.Join(user.Wishlist, ", "))
	fmt.Fprintf(&b, "Task: Rank the following activities by relevance to this user.\n")
	fmt.Fprintf(&b, "Return the IDs of the top %d most relevant activities from this list:\n%s\n", DefaultLimit, catalogue)
	b.WriteString("Return ONLY a JSON array of strings containing the IDs.")
	return b.String()
}

// parseIDs decodes the model output, dropping unknown and repeated IDs.
func parseIDs(text string, activities []models.Activity) ([]string, error) {
	var raw []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return nil, fmt.Errorf("decode ranking: %w", err)
	}
	known := make(map[string]bool, len(activities))
	for _, a := range activities {
		known[a.ID] = true
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if known[id] {
			ids = append(ids, id)
			known[id] = false
		}
		if len(ids) == DefaultLimit {
			break
		}
	}
	return ids, nil
}

// IsQuotaError reports whether err is the model API's rate limit response.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
