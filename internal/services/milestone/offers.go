package milestone

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadimanwar794-eng/nst-core/internal/lib/daykey"
	"github.com/nadimanwar794-eng/nst-core/internal/models"
)

// ClaimOffer забирает награду по id: сначала ищет среди живых предложений
// сессии, затем в inbox. Просроченное или уже забранное предложение
// отклоняется; предложение разрешается не больше одного раза.
func (e *Engine) ClaimOffer(ctx context.Context, uid, offerID string) (models.User, error) {
	const op = "milestone.ClaimOffer"

	s, ok := e.session(uid)
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNoSession)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := e.now()

	for i := range s.user.PendingRewards {
		offer := &s.user.PendingRewards[i]
		if offer.ID != offerID {
			continue
		}
		if err := e.resolve(ctx, s.user, offer, now); err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
		return *s.user, nil
	}

	for i := range s.user.Inbox {
		msg := &s.user.Inbox[i]
		if msg.Reward == nil || msg.Reward.ID != offerID {
			continue
		}
		if err := e.resolve(ctx, s.user, msg.Reward, now); err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
		msg.Read = true
		if err := e.wallet.Save(ctx, s.user); err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
		return *s.user, nil
	}

	return models.User{}, fmt.Errorf("%s: %w", op, ErrOfferNotFound)
}

func (e *Engine) resolve(ctx context.Context, user *models.User, offer *models.RewardOffer, now time.Time) error {
	if offer.Claimed {
		return ErrOfferResolved
	}
	if offer.Expired(now) {
		return ErrOfferExpired
	}
	offer.Claimed = true
	if err := e.wallet.ApplyReward(ctx, user, *offer); err != nil {
		offer.Claimed = false
		return err
	}
	e.log.Info("offer claimed",
		slog.String("uid", user.UID),
		slog.String("offer_id", offer.ID),
		slog.String("label", offer.Label),
	)
	return nil
}

// IgnoreOffer убирает живое предложение в inbox; срок жизни не продлевается.
func (e *Engine) IgnoreOffer(ctx context.Context, uid, offerID string) (models.User, error) {
	const op = "milestone.IgnoreOffer"

	s, ok := e.session(uid)
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNoSession)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := e.now()
	for i, offer := range s.user.PendingRewards {
		if offer.ID != offerID {
			continue
		}
		if offer.Claimed {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrOfferResolved)
		}
		s.user.PendingRewards = append(s.user.PendingRewards[:i], s.user.PendingRewards[i+1:]...)
		if !offer.Expired(now) {
			e.queueToInbox(s.user, offer, now)
		}
		if err := e.wallet.Save(ctx, s.user); err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, err)
		}
		return *s.user, nil
	}

	return models.User{}, fmt.Errorf("%s: %w", op, ErrOfferNotFound)
}

// Inbox возвращает непрочитанные сообщения с ещё живыми наградами.
func (e *Engine) Inbox(uid string) ([]models.InboxMessage, error) {
	s, ok := e.session(uid)
	if !ok {
		return nil, ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := e.now()
	out := make([]models.InboxMessage, 0, len(s.user.Inbox))
	for _, msg := range s.user.Inbox {
		if msg.Reward != nil && msg.Reward.Expired(now) && !msg.Reward.Claimed {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// SetGoal задаёт личную дневную цель в часах.
func (e *Engine) SetGoal(ctx context.Context, uid string, hours int) (models.User, error) {
	const op = "milestone.SetGoal"

	if hours < 1 || hours > 24 {
		return models.User{}, fmt.Errorf("%s: goal out of range: %d", op, hours)
	}

	s, ok := e.session(uid)
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNoSession)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.user.DailyGoalHours = hours
	if err := e.wallet.Save(ctx, s.user); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return *s.user, nil
}

// ClaimDailyGoal выдаёт награду за дневную цель. Повторный клейм в тот же
// день блокируется датой последнего клейма, а не счётчиком.
func (e *Engine) ClaimDailyGoal(ctx context.Context, uid string) (models.User, error) {
	const op = "milestone.ClaimDailyGoal"

	s, ok := e.session(uid)
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNoSession)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := e.now()
	today := daykey.Day(now)

	if s.user.LastRewardClaimDate == today {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrGoalAlreadyClaimed)
	}
	if s.day.Day != today || s.day.Seconds < s.user.GoalSeconds() {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrGoalNotReached)
	}

	reward := e.settings.Current().WithDefaults().DailyReward

	s.user.LastRewardClaimDate = today
	if err := e.wallet.ApplyCredits(ctx, s.user, reward); err != nil {
		s.user.LastRewardClaimDate = ""
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	s.day.GoalClaimed = true
	if err := e.store.Write(ctx, activityKey(uid, s.day.Day), s.day); err != nil {
		e.log.Error("goal claim persist failed", slog.String("uid", uid))
	}

	e.log.Info("daily goal claimed",
		slog.String("uid", uid),
		slog.Int("reward", reward),
	)
	return *s.user, nil
}

// Progress возвращает прогресс дня: секунды и цель.
func (e *Engine) Progress(uid string) (seconds, goal int, err error) {
	s, ok := e.session(uid)
	if !ok {
		return 0, 0, ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day.Seconds, s.user.GoalSeconds(), nil
}
