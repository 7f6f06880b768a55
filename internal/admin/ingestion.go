// Package admin implements the admin ingestion API (C10): validates
// configuration structs carried by the control-plane HTTP listener and
// translates them into commands against the shared store (C9), the route
// manager (C7), and the background-service supervisor (C6).
package admin

import (
	"context"

	"go.uber.org/zap"

	"github.com/naru-gw/gatewayd/internal/discovery"
	"github.com/naru-gw/gatewayd/internal/gwerr"
	"github.com/naru-gw/gatewayd/internal/route"
	"github.com/naru-gw/gatewayd/internal/store"
)

// Match rule and discovery kind strings accepted from admin requests and
// config files, per spec.md §6.
const (
	MatchPathStartsWith = "path_start_with"
	MatchPathRegex      = "path_regex"

	DiscoveryStatic    = "static"
	DiscoveryContainer = "container"
)

// MatchRule is the wire shape of a route's match rule.
type MatchRule struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Rewrite is the wire shape of an optional path rewrite.
type Rewrite struct {
	Regex       string `json:"regex"`
	Replacement string `json:"replacement"`
}

// AddRouteRequest is the body of POST /lb/add.
type AddRouteRequest struct {
	Name             string   `json:"name"`
	MatchRule        MatchRule `json:"match_rule"`
	Rewrite          *Rewrite  `json:"rewrite"`
	ServiceDiscovery string    `json:"service_discovery"`
	StaticUpstream   []string  `json:"static_upstream"`
}

// ApplicationView is what GetApplication returns: the tenant's configured
// limit and its current observed rate.
type ApplicationView struct {
	AppID                string  `json:"app_id"`
	LimitIntervalSeconds int     `json:"limit_interval_seconds"`
	Limit                int     `json:"limit"`
	Rate                 float64 `json:"rate"`
}

// Ingestion is the C10 admin ingestion API: thin validation in front of
// C6/C7/C9 command emission. A single instance is safe for concurrent use.
type Ingestion struct {
	store *store.Store
	log   *zap.Logger
}

// New builds an Ingestion API bound to s.
func New(s *store.Store, log *zap.Logger) *Ingestion {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestion{store: s, log: log}
}

// AddApplication registers a new rate-limit tenant. Rejects a duplicate
// app_id without mutating state.
func (a *Ingestion) AddApplication(appID string, intervalSeconds, limit int) error {
	if appID == "" {
		return gwerr.New(gwerr.ConfigInvalid, "app_id is required")
	}
	if intervalSeconds <= 0 {
		return gwerr.New(gwerr.ConfigInvalid, "limit_interval_seconds must be > 0")
	}
	if limit <= 0 {
		return gwerr.New(gwerr.ConfigInvalid, "limit must be > 0")
	}
	if !a.store.Applications.Add(appID, intervalSeconds, limit) {
		return gwerr.Newf(gwerr.DuplicateName, "application %q already exists", appID)
	}
	a.log.Info("application added", zap.String("app_id", appID), zap.Int("limit", limit))
	return nil
}

// UpdateApplication replaces an existing tenant's limit configuration
// wholesale. Rejects an unknown app_id.
func (a *Ingestion) UpdateApplication(appID string, intervalSeconds, limit int) error {
	if appID == "" {
		return gwerr.New(gwerr.ConfigInvalid, "app_id is required")
	}
	if intervalSeconds <= 0 {
		return gwerr.New(gwerr.ConfigInvalid, "limit_interval_seconds must be > 0")
	}
	if limit <= 0 {
		return gwerr.New(gwerr.ConfigInvalid, "limit must be > 0")
	}
	if !a.store.Applications.Update(appID, intervalSeconds, limit) {
		return gwerr.Newf(gwerr.NotFound, "application %q not found", appID)
	}
	a.log.Info("application updated", zap.String("app_id", appID), zap.Int("limit", limit))
	return nil
}

// RemoveApplication deletes a tenant. Idempotent on an unknown app_id.
func (a *Ingestion) RemoveApplication(appID string) error {
	if appID == "" {
		return gwerr.New(gwerr.ConfigInvalid, "app_id is required")
	}
	a.store.Applications.Remove(appID)
	a.log.Info("application removed", zap.String("app_id", appID))
	return nil
}

// GetApplication returns the tenant's configured limit and observed rate.
func (a *Ingestion) GetApplication(appID string) (*ApplicationView, error) {
	app, ok := a.store.Applications.Get(appID)
	if !ok {
		return nil, gwerr.Newf(gwerr.NotFound, "application %q not found", appID)
	}
	return &ApplicationView{
		AppID:                app.AppID,
		LimitIntervalSeconds: app.LimitIntervalSeconds,
		Limit:                app.Limit,
		Rate:                 app.Rate(),
	}, nil
}

// AddRoute validates req, builds the discovery source, match rule, and
// optional rewrite it describes, and installs the route via the route
// manager (C7). Container discovery additionally ensures the shared
// container watcher background task is registered, per spec.md §4.10.
func (a *Ingestion) AddRoute(ctx context.Context, req AddRouteRequest) error {
	if req.Name == "" {
		return gwerr.New(gwerr.ConfigInvalid, "name is required")
	}
	if _, exists := a.store.Routes.Get(req.Name); exists {
		return gwerr.Newf(gwerr.DuplicateName, "route %q already exists", req.Name)
	}

	match, err := buildMatcher(req.MatchRule)
	if err != nil {
		return err
	}

	var rewrite *route.Rewrite
	if req.Rewrite != nil {
		rewrite, err = route.NewRewrite(req.Rewrite.Regex, req.Rewrite.Replacement)
		if err != nil {
			return gwerr.Wrap(gwerr.ConfigInvalid, "invalid rewrite", err)
		}
	}

	source, healthCheck, err := a.buildSource(req)
	if err != nil {
		return err
	}

	if err := a.store.RouteManager.AddRoute(ctx, req.Name, route.Options{
		Match:       match,
		Rewrite:     rewrite,
		Source:      source,
		HealthCheck: healthCheck,
	}); err != nil {
		return gwerr.Wrap(gwerr.ConfigInvalid, "failed to install route", err)
	}

	a.log.Info("route added",
		zap.String("name", req.Name),
		zap.String("match", match.String()),
		zap.String("discovery", req.ServiceDiscovery),
		zap.Bool("health_check", healthCheck),
	)
	return nil
}

// RemoveRoute deletes a route and its paired health-check task. Idempotent
// on an unknown name.
func (a *Ingestion) RemoveRoute(ctx context.Context, name string) error {
	if err := a.store.RouteManager.RemoveRoute(ctx, name); err != nil {
		return gwerr.Wrap(gwerr.ConfigInvalid, "failed to remove route", err)
	}
	a.log.Info("route removed", zap.String("name", name))
	return nil
}

func buildMatcher(m MatchRule) (route.Matcher, error) {
	switch m.Type {
	case MatchPathStartsWith:
		if m.Value == "" {
			return nil, gwerr.New(gwerr.ConfigInvalid, "match_rule.value is required")
		}
		return route.NewPrefixMatch(m.Value), nil
	case MatchPathRegex:
		matcher, err := route.NewRegexMatch(m.Value)
		if err != nil {
			return nil, gwerr.Wrap(gwerr.ConfigInvalid, "invalid match_rule regex", err)
		}
		return matcher, nil
	default:
		return nil, gwerr.Newf(gwerr.ConfigInvalid, "match_rule.type must be %q or %q", MatchPathStartsWith, MatchPathRegex)
	}
}

// buildSource constructs the discovery source for req and returns the
// default health-check flag for that discovery kind: off for static, on
// for container — the default observed in the original implementation's
// add_load_balancer (see DESIGN.md).
func (a *Ingestion) buildSource(req AddRouteRequest) (discovery.Source, bool, error) {
	switch req.ServiceDiscovery {
	case DiscoveryStatic:
		if len(req.StaticUpstream) == 0 {
			return nil, false, gwerr.New(gwerr.ConfigInvalid, "static discovery requires static_upstream")
		}
		return discovery.NewStatic(req.StaticUpstream), false, nil
	case DiscoveryContainer:
		source, err := a.store.ContainerDiscoverySource(req.Name)
		if err != nil {
			return nil, false, gwerr.Wrap(gwerr.DiscoveryUnavailable, "container discovery unavailable", err)
		}
		a.store.EnsureContainerWatcher()
		return source, true, nil
	default:
		return nil, false, gwerr.Newf(gwerr.ConfigInvalid, "service_discovery must be %q or %q", DiscoveryStatic, DiscoveryContainer)
	}
}
