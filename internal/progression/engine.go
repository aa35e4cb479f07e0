package progression

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/liftledger/liftledger/internal/telemetry/metrics"
	"github.com/liftledger/liftledger/internal/telemetry/tracing"
	"github.com/liftledger/liftledger/pkg"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Notifier drops user-facing notifications. Failures are logged and
// swallowed, a missed notification never fails an award.
type Notifier interface {
	Record(ctx context.Context, userID, notifType, title, message string, data map[string]string) error
}

const (
	notifTypeXPAward       = "xp_award"
	notifTypeLevelUp       = "level_up"
	notifTypeBadgeUnlocked = "badge_unlocked"
	notifTypeCapReached    = "xp_cap_reached"
)

// Engine applies XP, streak and badge rules. Each trigger runs in its
// own transaction, separate from the ledger write that caused it; the
// caller treats engine errors as a zero outcome, never as a failure of
// the triggering operation.
type Engine struct {
	pool     *pgxpool.Pool
	cfg      Config
	metrics  *metrics.Manager
	notifier Notifier
}

func NewEngine(
	pool *pgxpool.Pool,
	cfg Config,
	metricsManager *metrics.Manager,
	notifier Notifier,
) *Engine {
	return &Engine{
		pool:     pool,
		cfg:      cfg.withDefaults(),
		metrics:  metricsManager,
		notifier: notifier,
	}
}

// AwardForWorkoutCompletion grants workout-completion XP, advancing the
// streak and daily login bonus along the way. Completions beyond the
// daily cap yield zero workout XP but still count as activity for the
// streak.
func (e *Engine) AwardForWorkoutCompletion(
	ctx context.Context,
	userID string,
	sessionDate time.Time,
) (AwardResult, error) {
	return e.award(ctx, userID, sessionDate, awardTrigger{
		reason:      ReasonWorkoutCompleted,
		counterType: CounterWorkoutCompletion,
		capLimit:    e.cfg.DailyWorkoutXPCap,
		xpAmount:    e.cfg.XPWorkoutCompleted,
		badgeID:     BadgeFirstWorkout,
	})
}

// AwardForMeasurement grants body-measurement XP, once per measurement
// type per day.
func (e *Engine) AwardForMeasurement(
	ctx context.Context,
	userID string,
	measurementType string,
	date time.Time,
) (AwardResult, error) {
	return e.award(ctx, userID, date, awardTrigger{
		reason:      ReasonMeasurement,
		counterType: counterMeasurementPrefix + measurementType,
		capLimit:    1,
		xpAmount:    e.cfg.XPMeasurement,
	})
}

type awardTrigger struct {
	reason      string
	counterType string
	capLimit    int
	xpAmount    int
	// badgeID, when set, is unlocked on the first rewarded trigger
	badgeID string
}

func (e *Engine) award(
	ctx context.Context,
	userID string,
	date time.Time,
	trigger awardTrigger,
) (_ AwardResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progression.award")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("reason", trigger.reason),
		attribute.String("counter_type", trigger.counterType),
	)

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return AwardResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				log.Errorf("progression award, rollback: %s", rollbackErr)
			}
		}
	}()

	repo := NewRepo(tx)

	state, err := repo.LockState(ctx, userID)
	if err != nil {
		return AwardResult{}, err
	}

	oldLevel := LevelForXP(state.XP)
	day := pkg.DateOnly(date)

	result := AwardResult{}
	var newBadges []Badge

	// streak first: any qualifying activity touches it, capped or not
	firstOfDay := touchActivity(state, day)
	if firstOfDay {
		state.XP += int64(e.cfg.XPDailyLogin)
		result.BonusXP += e.cfg.XPDailyLogin
		if err := repo.AddAudit(ctx, RewardAuditEntry{
			UserID: userID,
			Type:   RewardTypeXP,
			Reason: ReasonDailyLogin,
			Amount: e.cfg.XPDailyLogin,
		}); err != nil {
			return AwardResult{}, err
		}
		if badge, ok := StreakBadge(state.Streak); ok {
			newBadges = append(newBadges, badge)
		}
	}

	count, err := repo.IncrementDailyCounter(ctx, userID, day, trigger.counterType)
	if err != nil {
		return AwardResult{}, err
	}

	if count > trigger.capLimit {
		result.CapReached = true
		if err := repo.AddAudit(ctx, RewardAuditEntry{
			UserID: userID,
			Type:   RewardTypeCapReached,
			Reason: trigger.reason,
			Amount: 0,
		}); err != nil {
			return AwardResult{}, err
		}
	} else {
		state.XP += int64(trigger.xpAmount)
		result.XPAwarded = trigger.xpAmount
		if err := repo.AddAudit(ctx, RewardAuditEntry{
			UserID: userID,
			Type:   RewardTypeXP,
			Reason: trigger.reason,
			Amount: trigger.xpAmount,
		}); err != nil {
			return AwardResult{}, err
		}
		if badge, ok := BadgeByID(trigger.badgeID); ok {
			newBadges = append(newBadges, badge)
		}
	}

	// badge unlocks are one-time: the insert decides, bonus XP flows
	// through the same path and can itself level the user up
	unlocked := make([]Badge, 0, len(newBadges))
	for _, badge := range newBadges {
		newlyUnlocked, err := repo.UnlockBadge(ctx, userID, badge.ID)
		if err != nil {
			return AwardResult{}, err
		}
		if !newlyUnlocked {
			continue
		}
		state.XP += int64(badge.XPBonus)
		result.BonusXP += badge.XPBonus
		result.NewBadges = append(result.NewBadges, badge.ID)
		unlocked = append(unlocked, badge)
		if err := repo.AddAudit(ctx, RewardAuditEntry{
			UserID: userID,
			Type:   RewardTypeXP,
			Reason: ReasonBadgeUnlocked,
			Amount: badge.XPBonus,
		}); err != nil {
			return AwardResult{}, err
		}
	}

	if err := repo.SaveState(ctx, state); err != nil {
		return AwardResult{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return AwardResult{}, fmt.Errorf("commit tx: %w", err)
	}

	result.NewLevel = LevelForXP(state.XP)
	result.LeveledUp = result.NewLevel > oldLevel
	result.Streak = state.Streak

	e.count(result, unlocked)
	e.notify(ctx, userID, trigger, result, unlocked)

	return result, nil
}

// touchActivity advances the streak for activity on the given day and
// reports whether this is the first qualifying activity of that day.
func touchActivity(state *State, day time.Time) bool {
	if state.LastActivityDate != nil {
		last := pkg.DateOnly(*state.LastActivityDate)
		switch pkg.DaysBetween(last, day) {
		case 0:
			return false
		case 1:
			state.Streak++
		default:
			state.Streak = 1
		}
	} else {
		state.Streak = 1
	}
	state.LastActivityDate = &day
	return true
}

func (e *Engine) count(result AwardResult, unlocked []Badge) {
	if result.XPAwarded > 0 || result.BonusXP > 0 {
		e.metrics.CounterXPAwards.Inc()
	}
	if result.CapReached {
		e.metrics.CounterXPCapsReached.Inc()
	}
	for range unlocked {
		e.metrics.CounterBadgeUnlocks.Inc()
	}
}

func (e *Engine) notify(
	ctx context.Context,
	userID string,
	trigger awardTrigger,
	result AwardResult,
	unlocked []Badge,
) {
	if result.CapReached {
		if err := e.notifier.Record(
			ctx, userID, notifTypeCapReached,
			"Daily XP cap reached",
			"You hit today's XP cap, extra activity still counts towards your streak",
			map[string]string{"reason": trigger.reason},
		); err != nil {
			log.Errorf("progression, record cap notification for [%s]: %s", userID, err)
		}
	} else if result.XPAwarded > 0 {
		if err := e.notifier.Record(
			ctx, userID, notifTypeXPAward,
			fmt.Sprintf("+%d XP", result.XPAwarded),
			trigger.reason,
			map[string]string{"amount": strconv.Itoa(result.XPAwarded)},
		); err != nil {
			log.Errorf("progression, record xp notification for [%s]: %s", userID, err)
		}
	}

	for _, badge := range unlocked {
		if err := e.notifier.Record(
			ctx, userID, notifTypeBadgeUnlocked,
			"Badge unlocked: "+badge.Name,
			fmt.Sprintf("+%d XP bonus", badge.XPBonus),
			map[string]string{"badgeId": badge.ID},
		); err != nil {
			log.Errorf("progression, record badge notification for [%s]: %s", userID, err)
		}
	}

	if result.LeveledUp {
		if err := e.notifier.Record(
			ctx, userID, notifTypeLevelUp,
			fmt.Sprintf("Level %d reached", result.NewLevel),
			"Keep it up",
			map[string]string{"level": strconv.Itoa(result.NewLevel)},
		); err != nil {
			log.Errorf("progression, record level up notification for [%s]: %s", userID, err)
		}
	}
}
