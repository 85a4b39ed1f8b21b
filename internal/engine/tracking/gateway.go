package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"confix/internal/engine/shipments"
	apperrors "confix/internal/pkg/errors"
	"confix/internal/pkg/ratelimit"
	"confix/internal/pkg/validator"
	"confix/internal/platform/audit"
	"confix/internal/platform/config"
	"confix/internal/platform/models"
	"confix/internal/platform/repositories"

	"github.com/rs/zerolog/log"
)

// Messages crossing the trust boundary. Not-found and blocked callers get the same one; only the status differs.
const (
	msgInvalid     = "Invalid tracking request"
	msgUnavailable = "Tracking information unavailable"
)

type Outcome string

const (
	OutcomeHit         Outcome = "hit"
	OutcomeMiss        Outcome = "miss"
	OutcomeBlocked     Outcome = "blocked"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeError       Outcome = "error"
)

type BlockList interface {
	IsBlocked(ctx context.Context, ip string, now time.Time) (bool, error)
	Block(ctx context.Context, ip, reason string, until, now time.Time) error
}

type View interface {
	Lookup(ctx context.Context, lc repositories.LookupContext, now time.Time) (*models.TrackingView, error)
}

type MissCounter interface {
	CountByIP(ctx context.Context, eventType, ip string, status int, since time.Time) (int, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

type Request struct {
	// Code is the raw trackingCode value from the body; anything but a JSON string is rejected.
	Code      json.RawMessage
	IP        string
	UserAgent string
}

type Gateway struct {
	blocks  BlockList
	view    View
	misses  MissCounter
	limiter *ratelimit.Limiter
	audit   Auditor
	cfg     config.TrackingConfig
	now     func() time.Time
}

func NewGateway(blocks BlockList, view View, misses MissCounter, limiter *ratelimit.Limiter, auditor Auditor, cfg config.TrackingConfig) *Gateway {
	return &Gateway{
		blocks:  blocks,
		view:    view,
		misses:  misses,
		limiter: limiter,
		audit:   auditor,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Lookup resolves a tracking code for an anonymous caller. Every path, the panic path included,
// leaves one tracking_lookup audit entry.
func (g *Gateway) Lookup(ctx context.Context, req Request) (view *models.TrackingView, err error) {
	code := ""
	outcome := OutcomeError

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("ip", req.IP).Msg("tracking lookup panicked")
			view, outcome = nil, OutcomeError
			err = apperrors.Internal("tracking lookup", fmt.Errorf("panic: %v", r))
		}
		g.record(ctx, req, code, outcome, err)
	}()

	code, err = parseCode(req.Code)
	if err != nil {
		outcome = OutcomeInvalid
		return nil, err
	}

	now := g.now()
	blocked, err := g.blocks.IsBlocked(ctx, req.IP, now)
	if err != nil {
		return nil, apperrors.Internal("check ip block", err)
	}
	if blocked {
		outcome = OutcomeBlocked
		return nil, apperrors.SecurityBlocked(msgUnavailable)
	}

	if o, perr := g.checkPolicy(ctx, code, req.IP, now); perr != nil {
		outcome, err = o, perr
		return nil, err
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))
	view, err = g.view.Lookup(ctx, repositories.LookupContext{Code: normalized, IP: req.IP}, now)
	if err != nil {
		if errors.Is(err, repositories.ErrViewRateLimited) {
			outcome = OutcomeRateLimited
			return nil, apperrors.SecurityBlocked(msgUnavailable)
		}
		outcome = OutcomeError
		return nil, apperrors.Internal("tracking view lookup", err)
	}
	if view == nil {
		outcome = OutcomeMiss
		return nil, apperrors.NotFound(msgUnavailable)
	}

	outcome = OutcomeHit
	view.StatusLabel = shipments.Label(view.Status)
	return view, nil
}

// checkPolicy combines code shape and caller reputation. Failures are reported as a plain validation
// error so the caller learns nothing about whether the code exists.
func (g *Gateway) checkPolicy(ctx context.Context, code, ip string, now time.Time) (Outcome, error) {
	if err := validator.TrackingCode(code); err != nil {
		return OutcomeInvalid, apperrors.Validation(msgInvalid)
	}

	if g.limiter != nil && !g.limiter.Allow(ip, g.cfg.RequestsPerMinute) {
		log.Warn().Str("ip", ip).Msg("tracking request rate exceeded")
		return OutcomeRateLimited, apperrors.Validation(msgInvalid)
	}

	if g.cfg.MaxMisses > 0 {
		misses, err := g.misses.CountByIP(ctx, models.EventTrackingLookup, ip, http.StatusNotFound, now.Add(-g.cfg.MissWindow))
		if err != nil {
			return OutcomeError, apperrors.Internal("count tracking misses", err)
		}
		if misses >= g.cfg.MaxMisses {
			until := now.Add(g.cfg.BlockDuration)
			if err := g.blocks.Block(ctx, ip, "tracking enumeration", until, now); err != nil {
				return OutcomeError, apperrors.Internal("block ip", err)
			}
			log.Warn().Str("ip", ip).Int("misses", misses).Time("until", until).Msg("blocking ip after repeated tracking misses")
			return OutcomeBlocked, apperrors.Validation(msgInvalid)
		}
	}
	return "", nil
}

func parseCode(raw json.RawMessage) (string, error) {
	var code string
	if len(raw) == 0 || json.Unmarshal(raw, &code) != nil || strings.TrimSpace(code) == "" {
		return "", apperrors.Validation("trackingCode must be a non-empty string")
	}
	return code, nil
}

func (g *Gateway) record(ctx context.Context, req Request, code string, outcome Outcome, err error) {
	if g.audit == nil {
		return
	}
	g.audit.Record(ctx, audit.Entry{
		Event:     models.EventTrackingLookup,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Status:    apperrors.StatusOf(err),
		Details: map[string]interface{}{
			"code":    strings.ToUpper(strings.TrimSpace(code)),
			"outcome": string(outcome),
			"hit":     outcome == OutcomeHit,
			"at":      g.now().UTC().Format(time.RFC3339),
		},
	})
}
