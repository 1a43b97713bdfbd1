// Package scoring turns personal and community evidence about a number into
// a 0..100 trust score with an explanation.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/callshield/internal/client/models"
	"github.com/dmitrijs2005/callshield/internal/domain"
	"github.com/dmitrijs2005/callshield/internal/phone"
)

const (
	baseScore = 50.0

	personalBlockImpact  = -50.0
	personalAcceptImpact = 40.0
	personalReportStep   = 15.0
	personalReportCap    = 30.0

	historyWeight  = 15.0
	recentWindow   = 30 * 24 * time.Hour
	durationWeight = 10.0
	durationCap    = 5 * time.Minute

	communityBlockWeight  = 40.0
	communityReportWeight = 30.0
	maxSeverity           = 5.0

	localAreaImpact = 5.0
)

// Factor names used in ScoreResult.Factors.
const (
	FactorPersonalBlock   = "personal_block"
	FactorPersonalAccept  = "personal_accept"
	FactorPersonalReports = "personal_reports"
	FactorCallHistory     = "call_history"
	FactorCallDuration    = "call_duration"
	FactorCommunityBlocks = "community_blocks"
	FactorCommunityReport = "community_reports"
	FactorLocalArea       = "local_area"
)

type Engine struct {
	now            func() time.Time
	deviceAreaCode string
}

type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDeviceAreaCode enables the local area factor for numbers sharing the
// device's area code.
func WithDeviceAreaCode(code string) Option {
	return func(e *Engine) { e.deviceAreaCode = code }
}

func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ComputeScore scores number from the given evidence. Without any evidence
// the score is nil and the category unknown.
func (e *Engine) ComputeScore(number string, personal *models.PersonalData, community *domain.CommunityDataEntry) models.ScoreResult {
	if personal.Empty() && community.Empty() {
		return models.ScoreResult{Category: domain.CategoryUnknown}
	}

	var factors []models.Factor
	add := func(name string, impact float64, desc string) {
		factors = append(factors, models.Factor{Factor: name, Impact: impact, Description: desc})
	}

	if !personal.Empty() {
		if personal.Blocked {
			add(FactorPersonalBlock, personalBlockImpact, "you blocked this number")
		}
		if personal.Accepted {
			add(FactorPersonalAccept, personalAcceptImpact, "you marked this number as trusted")
		}
		if n := len(personal.Reports); n > 0 {
			add(FactorPersonalReports, -math.Min(personalReportCap, personalReportStep*float64(n)),
				fmt.Sprintf("you reported this number %d time(s)", n))
		}
		if total := len(personal.CallHistory); total > 0 {
			recent := 0
			cutoff := e.now().Add(-recentWindow)
			for _, c := range personal.CallHistory {
				if c.Timestamp.After(cutoff) {
					recent++
				}
			}
			add(FactorCallHistory, historyWeight*float64(recent)/float64(max(total, 1)),
				fmt.Sprintf("%d of %d calls in the last 30 days", recent, total))
		}
		if avg := personal.AvgDuration; avg > 0 {
			capped := min(avg, durationCap)
			add(FactorCallDuration, durationWeight*float64(capped)/float64(durationCap),
				fmt.Sprintf("average answered call lasts %s", avg.Round(time.Second)))
		}
	}

	if !community.Empty() {
		if n := community.BlockCount; n > 0 {
			add(FactorCommunityBlocks, -damped(communityBlockWeight, n),
				fmt.Sprintf("blocked by %d community members", n))
		}
		if n := community.ReportCount; n > 0 {
			sev := community.ReportSeverity
			if sev <= 0 {
				sev = domain.DefaultReportSeverity
			}
			add(FactorCommunityReport, -damped(communityReportWeight, n)*sev/maxSeverity,
				fmt.Sprintf("reported %d times by the community (severity %.1f)", n, sev))
		}
	}

	if e.localMatch(number, community) {
		add(FactorLocalArea, localAreaImpact, "same area code as this device")
	}

	raw := baseScore
	influence := 0.0
	for _, f := range factors {
		raw += f.Impact
		influence += math.Abs(f.Impact)
	}
	score := int(math.Round(math.Max(0, math.Min(100, raw))))

	return models.ScoreResult{
		Score:      &score,
		Category:   CategoryForScore(score),
		Confidence: int(math.Min(100, math.Round(influence))),
		Factors:    factors,
	}
}

func (e *Engine) localMatch(number string, community *domain.CommunityDataEntry) bool {
	if community != nil && community.LocalMatch {
		return true
	}
	return e.deviceAreaCode != "" && phone.AreaCode(number) == e.deviceAreaCode
}

// damped is w·log10(n+1)/2 capped at w.
func damped(w float64, n int) float64 {
	return math.Min(w, w*math.Log10(float64(n)+1)/2)
}

// CategoryForScore maps a score onto the UI categories.
func CategoryForScore(score int) domain.Category {
	switch {
	case score >= 80:
		return domain.CategoryTrusted
	case score >= 60:
		return domain.CategorySafe
	case score >= 40:
		return domain.CategoryNeutral
	case score >= 20:
		return domain.CategorySuspicious
	default:
		return domain.CategoryDangerous
	}
}

// RecommendedAction decides what to do with a call. Unscored numbers always
// get ActionAsk.
func RecommendedAction(r models.ScoreResult, p models.Preferences) models.Action {
	if r.Score == nil {
		return models.ActionAsk
	}
	switch s := *r.Score; {
	case s >= p.TrustThreshold:
		return models.ActionAllow
	case s <= p.BlockThreshold:
		return models.ActionBlock
	default:
		return models.ActionAsk
	}
}
