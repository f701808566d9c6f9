package core

import (
	"context"
	"log"
	"strings"
	"time"

	"toymart.io/intelligence/internal/events"
	"toymart.io/intelligence/internal/store"
)

const (
	// Flag when sentiment drops below this, independent of keywords.
	sentimentFlagThreshold = -0.6
	// Learn new blocklist words only from comments this negative.
	sentimentLearnThreshold = -0.8
	// Entities below this salience are too incidental to learn from.
	minLearnSalience = 0.1

	ReasonRestrictedLanguage = "Restricted Language"
	ReasonSelfLearnedToxic   = "AI Self-Learned Toxic Pattern"
)

// defaultBannedWords backs the blocklist when the settings document
// has never been written.
var defaultBannedWords = []string{"hate", "stupid", "idiot", "scam"}

// ReviewStore is the slice of the document store the moderation
// pipeline writes. Both methods only ever move a review out of
// pending.
type ReviewStore interface {
	ApproveReview(ctx context.Context, reviewID string) error
	FlagReview(ctx context.Context, reviewID string, m store.ModerationData) error
}

// SettingsRepository is the versioned blocklist document.
// AddBannedWords has set-union semantics; BannedWords reports whether
// the document exists at all.
type SettingsRepository interface {
	BannedWords(ctx context.Context) (words []string, found bool, err error)
	AddBannedWords(ctx context.Context, words []string) (added int, err error)
}

// ModerationAlert is the payload for the admin notification emitted on
// every flagged review.
type ModerationAlert struct {
	ReviewID       string
	UserName       string
	Comment        string
	Reason         string
	SentimentScore float32
}

// Notifier is the outbound alert sink. Delivery is fire-and-forget:
// the pipeline logs failures and moves on.
type Notifier interface {
	SendModerationAlert(ctx context.Context, alert ModerationAlert) error
}

// ModerationService classifies newly created reviews and drives them
// through the pending → approved/flagged state machine.
type ModerationService struct {
	classifier Classifier
	reviews    ReviewStore
	settings   SettingsRepository
	notifier   Notifier
}

func NewModerationService(classifier Classifier, reviews ReviewStore, settings SettingsRepository, notifier Notifier) *ModerationService {
	return &ModerationService{
		classifier: classifier,
		reviews:    reviews,
		settings:   settings,
		notifier:   notifier,
	}
}

// HandleReviewCreated moderates one newly created review. It never
// surfaces an error: any failure along the way is logged and the
// review is force-approved, so user-visible content is never stuck
// behind a broken classifier (fail-open).
func (s *ModerationService) HandleReviewCreated(ctx context.Context, ev events.ReviewCreated) {
	if strings.TrimSpace(ev.Comment) == "" {
		return
	}

	if err := s.moderate(ctx, ev); err != nil {
		log.Printf("Moderation failed for review %s, force-approving: %v", ev.ReviewID, err)
		if err := s.reviews.ApproveReview(ctx, ev.ReviewID); err != nil {
			log.Printf("Failed to force-approve review %s: %v", ev.ReviewID, err)
		}
	}
}

func (s *ModerationService) moderate(ctx context.Context, ev events.ReviewCreated) error {
	bannedWords, found, err := s.settings.BannedWords(ctx)
	if err != nil {
		return err
	}
	if !found {
		bannedWords = defaultBannedWords
	}

	cls, err := s.classifier.Classify(ctx, ev.Comment)
	if err != nil {
		return err
	}

	lowerComment := strings.ToLower(ev.Comment)
	matchedWord := ""
	for _, w := range bannedWords {
		if w != "" && strings.Contains(lowerComment, strings.ToLower(w)) {
			matchedWord = w
			break
		}
	}

	// Self-learning: very negative comments teach the blocklist their
	// salient non-person entities. This fires before and independently
	// of the verdict below, so even a review that ends up approved can
	// contribute words.
	if cls.SentimentScore < sentimentLearnThreshold {
		var candidates []string
		for _, e := range cls.Entities {
			if strings.EqualFold(e.Type, EntityTypePerson) || e.Salience <= minLearnSalience {
				continue
			}
			candidates = append(candidates, strings.ToLower(e.Text))
		}
		if len(candidates) > 0 {
			added, err := s.settings.AddBannedWords(ctx, candidates)
			if err != nil {
				return err
			}
			if added > 0 {
				log.Printf("Learned %d new blocklist words from review %s", added, ev.ReviewID)
			}
		}
	}

	if cls.SentimentScore < sentimentFlagThreshold || matchedWord != "" {
		// The keyword reason wins even when sentiment also crossed its
		// threshold.
		reason := ReasonSelfLearnedToxic
		if matchedWord != "" {
			reason = ReasonRestrictedLanguage
		}

		err := s.reviews.FlagReview(ctx, ev.ReviewID, store.ModerationData{
			SentimentScore: cls.SentimentScore,
			FlaggedReason:  reason,
			FlaggedAt:      time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		alert := ModerationAlert{
			ReviewID:       ev.ReviewID,
			UserName:       ev.UserName,
			Comment:        ev.Comment,
			Reason:         reason,
			SentimentScore: cls.SentimentScore,
		}
		if err := s.notifier.SendModerationAlert(ctx, alert); err != nil {
			log.Printf("Failed to send moderation alert for review %s: %v", ev.ReviewID, err)
		}
		return nil
	}

	return s.reviews.ApproveReview(ctx, ev.ReviewID)
}
