package usecase

import (
	"sort"

	"tariff-routing-service/internal/domain"
	xerrors "tariff-routing-service/pkg/xerrors"

	"go.uber.org/zap"
)

// TariffMatcher selects exactly one tariff for a resolution context
// out of the active set. Deterministic: same context and same
// configuration always yield the same tariff.
type TariffMatcher struct {
	logger *zap.Logger
}

func NewTariffMatcher(logger *zap.Logger) *TariffMatcher {
	return &TariffMatcher{logger: logger}
}

// MatchResult carries the selected tariff plus a conflict flag set
// when more than one tariff survived every tie-break and the
// deterministic default had to decide.
type MatchResult struct {
	Tariff   *domain.Tariff
	Conflict bool
}

// Match filters the active tariffs through the selector chain and
// breaks ties by specificity, then approval recency, then creation
// order. Overlapping survivors are a configuration fault: the
// earliest-created wins and the conflict is flagged, never resolved
// randomly.
func (m *TariffMatcher) Match(tariffs []*domain.Tariff, ctx *domain.ResolutionContext) (*MatchResult, error) {
	var candidates []*domain.Tariff
	for _, t := range tariffs {
		if !t.IsActive() {
			continue
		}
		if t.Matches(ctx) {
			candidates = append(candidates, t)
		}
	}

	if len(candidates) == 0 {
		return nil, xerrors.ErrNoMatchingTariff
	}

	candidates = preferPartnerBinding(candidates, ctx.PartnerID)

	// Highest specificity wins.
	best := candidates[0].Specificity()
	for _, t := range candidates[1:] {
		if s := t.Specificity(); s > best {
			best = s
		}
	}
	var survivors []*domain.Tariff
	for _, t := range candidates {
		if t.Specificity() == best {
			survivors = append(survivors, t)
		}
	}

	// Most recently approved wins among equally specific tariffs.
	if len(survivors) > 1 {
		survivors = latestApproved(survivors)
	}

	if len(survivors) == 1 {
		return &MatchResult{Tariff: survivors[0]}, nil
	}

	// Still ambiguous: configuration integrity fault. Pick the
	// earliest-created (then smallest id) so service keeps running,
	// and flag the conflict for manual correction.
	sort.Slice(survivors, func(i, j int) bool {
		if !survivors[i].CreatedAt.Equal(survivors[j].CreatedAt) {
			return survivors[i].CreatedAt.Before(survivors[j].CreatedAt)
		}
		return survivors[i].ID < survivors[j].ID
	})

	m.logger.Warn("overlapping active tariffs, using earliest-created",
		zap.String("transaction_type", string(ctx.TransactionType)),
		zap.String("currency", ctx.Currency),
		zap.String("amount", ctx.Amount.String()),
		zap.String("selected_tariff_id", survivors[0].ID),
		zap.Int("conflicting", len(survivors)))

	return &MatchResult{Tariff: survivors[0], Conflict: true}, nil
}

// preferPartnerBinding narrows candidates by partner affinity: a
// request naming a partner prefers tariffs bound to it, a request
// without one prefers unbound tariffs. Falls through when the
// preferred group is empty.
func preferPartnerBinding(candidates []*domain.Tariff, partnerID *string) []*domain.Tariff {
	var preferred []*domain.Tariff
	for _, t := range candidates {
		if partnerID != nil && t.PartnerID != nil {
			preferred = append(preferred, t)
		} else if partnerID == nil && t.PartnerID == nil {
			preferred = append(preferred, t)
		}
	}
	if len(preferred) > 0 {
		return preferred
	}
	return candidates
}

func latestApproved(tariffs []*domain.Tariff) []*domain.Tariff {
	var latest []*domain.Tariff
	for _, t := range tariffs {
		if t.ApprovedAt == nil {
			continue
		}
		switch {
		case len(latest) == 0 || t.ApprovedAt.After(*latest[0].ApprovedAt):
			latest = []*domain.Tariff{t}
		case t.ApprovedAt.Equal(*latest[0].ApprovedAt):
			latest = append(latest, t)
		}
	}
	if len(latest) > 0 {
		return latest
	}
	return tariffs
}
