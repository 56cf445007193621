package services

import (
	"ediens-server/models"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EcoPointsPerUnit is the gamification award per claimed unit on pickup.
const EcoPointsPerUnit = 10

// Claim lifecycle failures. Handlers map these onto HTTP statuses.
var (
	ErrNotFound         = errors.New("claim or food post not found")
	ErrUnauthorized     = errors.New("actor may not perform this transition")
	ErrCapacityExceeded = errors.New("requested quantity or reservation count exceeds what remains")
	ErrDuplicateClaim   = errors.New("actor already holds an active claim on this post")
	ErrAlreadyRated     = errors.New("claim has already been rated")
)

// InvalidTransitionError reports a status change that is not reachable from
// the claim's current status.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid claim transition from %q to %q", e.From, e.To)
}

// claimTransitions is the full transition table. Terminal statuses own no
// entry.
var claimTransitions = map[string][]string{
	models.ClaimStatusPending:   {models.ClaimStatusConfirmed, models.ClaimStatusCancelled},
	models.ClaimStatusConfirmed: {models.ClaimStatusPickedUp, models.ClaimStatusCancelled, models.ClaimStatusExpired},
}

// CanTransition reports whether a claim in status from may move to status to.
func CanTransition(from, to string) bool {
	for _, next := range claimTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ClaimService coordinates claim status transitions and the food-post side
// effects they trigger. Every transition runs as one database transaction
// with the food post row locked, so a guard check and the write that consumes
// capacity cannot interleave with a concurrent transition on the same post.
type ClaimService struct {
	db       *gorm.DB
	notifier *NotificationService
}

func NewClaimService(db *gorm.DB) *ClaimService {
	return &ClaimService{db: db, notifier: NewNotificationService()}
}

type CreateClaimInput struct {
	Quantity   int       `json:"quantity" validate:"required,gte=1"`
	PickupDate time.Time `json:"pickupDate" validate:"required"`
	Urgent     bool      `json:"urgent"`
	Note       string    `json:"note" validate:"lt=500"`
}

// validateCreate holds the creation guards as a pure function over already
// loaded state, so they are checkable without a database.
func validateCreate(post *models.FoodPost, actorID uint, quantity int, remaining int, confirmedCount int, hasActiveClaim bool) error {
	if post.Status != models.PostStatusAvailable && post.Status != models.PostStatusReserved {
		return &InvalidTransitionError{From: post.Status, To: models.ClaimStatusPending}
	}
	if post.IsActive != nil && !*post.IsActive {
		return ErrNotFound
	}
	if post.OwnerID == actorID {
		return ErrUnauthorized
	}
	if hasActiveClaim {
		return ErrDuplicateClaim
	}
	if quantity > remaining {
		return ErrCapacityExceeded
	}
	if post.MaxReservations != nil && confirmedCount >= *post.MaxReservations {
		return ErrCapacityExceeded
	}
	return nil
}

// Create opens a pending claim by actorID against the given post.
func (s *ClaimService) Create(actorID uint, postID uint, input CreateClaimInput) (*models.Claim, error) {
	var claim models.Claim

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var post models.FoodPost
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		confirmed, err := s.confirmedCount(tx, post.ID)
		if err != nil {
			return err
		}
		remainingQty, err := s.remainingQuantity(tx, &post)
		if err != nil {
			return err
		}

		var activeByActor int64
		if err := tx.Model(&models.Claim{}).
			Where("food_post_id = ? AND claimant_id = ? AND status IN ?", post.ID, actorID, activeStatuses()).
			Count(&activeByActor).Error; err != nil {
			return err
		}

		if err := validateCreate(&post, actorID, input.Quantity, remainingQty, confirmed, activeByActor > 0); err != nil {
			return err
		}

		claim = models.Claim{
			FoodPostID: post.ID,
			ClaimantID: actorID,
			Quantity:   input.Quantity,
			PickupDate: input.PickupDate,
			Urgent:     input.Urgent,
			Note:       input.Note,
			Status:     models.ClaimStatusPending,
		}
		if err := tx.Create(&claim).Error; err != nil {
			return err
		}

		return s.recomputePostAggregates(tx, &post)
	})
	if err != nil {
		return nil, err
	}

	s.db.Preload("FoodPost").Preload("Claimant").First(&claim, claim.ID)
	go s.notifier.NotifyClaimCreated(&claim)
	return &claim, nil
}

// Confirm moves a pending claim to confirmed. Only the post owner may do
// this; the post flips to reserved once the confirmation fills its cap.
func (s *ClaimService) Confirm(actorID uint, claimID uint) (*models.Claim, error) {
	return s.transition(actorID, claimID, models.ClaimStatusConfirmed, func(claim *models.Claim, post *models.FoodPost, confirmedCount int) error {
		if post.OwnerID != actorID {
			return ErrUnauthorized
		}
		if post.MaxReservations != nil && confirmedCount >= *post.MaxReservations {
			return ErrCapacityExceeded
		}
		return nil
	})
}

// Cancel moves a pending or confirmed claim to cancelled and gives the
// claimed quantity back to the post. Both the post owner and the claimant may
// cancel.
func (s *ClaimService) Cancel(actorID uint, claimID uint) (*models.Claim, error) {
	return s.transition(actorID, claimID, models.ClaimStatusCancelled, func(claim *models.Claim, post *models.FoodPost, _ int) error {
		if post.OwnerID != actorID && claim.ClaimantID != actorID {
			return ErrUnauthorized
		}
		return nil
	})
}

// ConfirmPickup moves a confirmed claim to picked_up, stamps the pickup time
// and awards eco points to the claimant. Only the claimant may confirm their
// own pickup. The award happens inside the same transaction that flips the
// status, so a retried request cannot double-award.
func (s *ClaimService) ConfirmPickup(actorID uint, claimID uint) (*models.Claim, error) {
	claim, err := s.transition(actorID, claimID, models.ClaimStatusPickedUp, func(claim *models.Claim, post *models.FoodPost, _ int) error {
		if claim.ClaimantID != actorID {
			return ErrUnauthorized
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	go s.notifier.NotifyPickupConfirmed(claim)
	return claim, nil
}

// transition runs the shared transition machinery: load and lazily expire the
// claim, lock the post, consult the transition table, apply the caller's
// guard, write the status and per-status side effects, then recompute the
// post aggregates.
func (s *ClaimService) transition(actorID uint, claimID uint, to string, guard func(*models.Claim, *models.FoodPost, int) error) (*models.Claim, error) {
	var claim models.Claim
	var lazilyExpired bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&claim, claimID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var post models.FoodPost
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, claim.FoodPostID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		// A confirmed claim whose pickup date has passed is effectively
		// expired; settle that before judging the requested transition. The
		// expiry must commit, so the rejection is reported after the
		// transaction instead of through its error.
		if lazyExpiryDue(&claim, to, time.Now()) {
			claim.Status = models.ClaimStatusExpired
			if err := tx.Model(&claim).Update("status", models.ClaimStatusExpired).Error; err != nil {
				return err
			}
			lazilyExpired = true
			return s.recomputePostAggregates(tx, &post)
		}

		if !CanTransition(claim.Status, to) {
			return &InvalidTransitionError{From: claim.Status, To: to}
		}

		confirmed, err := s.confirmedCount(tx, post.ID)
		if err != nil {
			return err
		}

		if err := guard(&claim, &post, confirmed); err != nil {
			return err
		}

		updates := map[string]interface{}{"status": to}
		if to == models.ClaimStatusPickedUp {
			var award int
			updates, award = pickupUpdates(&claim, time.Now())
			if err := tx.Model(&models.User{}).Where("id = ?", claim.ClaimantID).
				Update("eco_points", gorm.Expr("eco_points + ?", award)).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&claim).Updates(updates).Error; err != nil {
			return err
		}
		claim.Status = to

		return s.recomputePostAggregates(tx, &post)
	})
	if err != nil {
		return nil, err
	}
	if lazilyExpired {
		return nil, &InvalidTransitionError{From: models.ClaimStatusExpired, To: to}
	}

	s.db.Preload("FoodPost").Preload("Claimant").First(&claim, claim.ID)
	if statusChangePushWanted(to) {
		go s.notifier.NotifyClaimStatusChanged(&claim, actorID)
	}
	return &claim, nil
}

// statusChangePushWanted reports whether the generic status-change push
// should fire for a transition target. Pickups get their own targeted
// notification from ConfirmPickup instead.
func statusChangePushWanted(to string) bool {
	return to != models.ClaimStatusPickedUp
}

// lazyExpiryDue reports whether a claim has to be settled as expired before
// the requested transition is judged.
func lazyExpiryDue(claim *models.Claim, to string, now time.Time) bool {
	return claim.Status == models.ClaimStatusConfirmed &&
		now.After(claim.PickupDate) &&
		to != models.ClaimStatusExpired
}

// pickupUpdates builds the columns stamped on a claim at pickup and the eco
// point award backing them.
func pickupUpdates(claim *models.Claim, now time.Time) (map[string]interface{}, int) {
	award := EcoPointsPerUnit * claim.Quantity
	return map[string]interface{}{
		"status":             models.ClaimStatusPickedUp,
		"picked_up_at":       &now,
		"eco_points_awarded": award,
	}, award
}

type RateClaimInput struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"lt=1000"`
}

// Rate records a one-time rating on a picked-up claim and folds it into the
// post owner's running average.
func (s *ClaimService) Rate(actorID uint, claimID uint, input RateClaimInput) (*models.Claim, error) {
	var claim models.Claim

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&claim, claimID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if claim.ClaimantID != actorID {
			return ErrUnauthorized
		}
		if claim.Status != models.ClaimStatusPickedUp {
			return &InvalidTransitionError{From: claim.Status, To: "rated"}
		}
		if claim.Rating != nil {
			return ErrAlreadyRated
		}

		var post models.FoodPost
		if err := tx.First(&post, claim.FoodPostID).Error; err != nil {
			return err
		}

		now := time.Now()
		rating := input.Rating
		if err := tx.Model(&claim).Updates(map[string]interface{}{
			"rating":      rating,
			"review":      input.Review,
			"reviewed_at": &now,
		}).Error; err != nil {
			return err
		}
		claim.Rating = &rating
		claim.Review = input.Review
		claim.ReviewedAt = &now

		var owner models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&owner, post.OwnerID).Error; err != nil {
			return err
		}
		newAvg, newCount := foldRating(owner.Rating, owner.RatingCount, rating)
		return tx.Model(&owner).Updates(map[string]interface{}{
			"rating":       newAvg,
			"rating_count": newCount,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.db.Preload("FoodPost").Preload("Claimant").First(&claim, claim.ID)
	return &claim, nil
}

// foldRating extends a running average by one sample.
func foldRating(oldAvg float32, oldCount int, rating int) (float32, int) {
	newCount := oldCount + 1
	newAvg := (oldAvg*float32(oldCount) + float32(rating)) / float32(newCount)
	return newAvg, newCount
}

// ExpireOverdue sweeps confirmed claims whose pickup date has passed. Meant
// to be hit by an external scheduler; the write path also expires lazily, so
// the sweep only shortens the window in which a stale claim is visible.
func (s *ClaimService) ExpireOverdue() (int, error) {
	var overdue []models.Claim
	if err := s.db.Where("status = ? AND pickup_date < ?", models.ClaimStatusConfirmed, time.Now()).
		Find(&overdue).Error; err != nil {
		return 0, err
	}

	expired := 0
	for i := range overdue {
		claim := &overdue[i]
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var fresh models.Claim
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&fresh, claim.ID).Error; err != nil {
				return err
			}
			// Re-check under the lock; a pickup may have landed meanwhile.
			if fresh.Status != models.ClaimStatusConfirmed || time.Now().Before(fresh.PickupDate) {
				return nil
			}

			var post models.FoodPost
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, fresh.FoodPostID).Error; err != nil {
				return err
			}
			if err := tx.Model(&fresh).Update("status", models.ClaimStatusExpired).Error; err != nil {
				return err
			}
			expired++
			return s.recomputePostAggregates(tx, &post)
		})
		if err != nil {
			return expired, err
		}
	}
	return expired, nil
}

func activeStatuses() []string {
	return []string{models.ClaimStatusPending, models.ClaimStatusConfirmed}
}

// confirmedCount returns the number of confirmed claims on a post, which is
// what the reservation cap is checked against.
func (s *ClaimService) confirmedCount(tx *gorm.DB, postID uint) (int, error) {
	var confirmed int64
	if err := tx.Model(&models.Claim{}).
		Where("food_post_id = ? AND status = ?", postID, models.ClaimStatusConfirmed).
		Count(&confirmed).Error; err != nil {
		return 0, err
	}
	return int(confirmed), nil
}

// remainingQuantity is the post's quantity minus everything held by active
// claims or already picked up.
func (s *ClaimService) remainingQuantity(tx *gorm.DB, post *models.FoodPost) (int, error) {
	var consumed int64
	if err := tx.Model(&models.Claim{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("food_post_id = ? AND status IN ?", post.ID,
			[]string{models.ClaimStatusPending, models.ClaimStatusConfirmed, models.ClaimStatusPickedUp}).
		Scan(&consumed).Error; err != nil {
		return 0, err
	}
	return post.Quantity - int(consumed), nil
}

// postAggregates are the derived columns on a food post.
type postAggregates struct {
	CurrentReservations int
	RemainingQuantity   int
	Status              string
}

// derivePostAggregates computes the derived columns from raw claim counters.
// Terminal post statuses (expired, removed) pass through untouched.
func derivePostAggregates(status string, maxReservations *int, activeCount, confirmedCount, remaining int) postAggregates {
	switch status {
	case models.PostStatusAvailable, models.PostStatusReserved, models.PostStatusCompleted:
		capFilled := maxReservations != nil && confirmedCount >= *maxReservations
		switch {
		case remaining <= 0 && activeCount == 0:
			status = models.PostStatusCompleted
		case capFilled || remaining <= 0:
			status = models.PostStatusReserved
		default:
			status = models.PostStatusAvailable
		}
	}
	return postAggregates{
		CurrentReservations: activeCount,
		RemainingQuantity:   remaining,
		Status:              status,
	}
}

// recomputePostAggregates derives CurrentReservations, RemainingQuantity and
// the post status from the claims table instead of trusting independent
// increments, which drift under retries. Must run inside the transaction
// that changed a claim.
func (s *ClaimService) recomputePostAggregates(tx *gorm.DB, post *models.FoodPost) error {
	var activeCount int64
	if err := tx.Model(&models.Claim{}).
		Where("food_post_id = ? AND status IN ?", post.ID, activeStatuses()).
		Count(&activeCount).Error; err != nil {
		return err
	}

	confirmed, err := s.confirmedCount(tx, post.ID)
	if err != nil {
		return err
	}

	remaining, err := s.remainingQuantity(tx, post)
	if err != nil {
		return err
	}

	agg := derivePostAggregates(post.Status, post.MaxReservations, int(activeCount), confirmed, remaining)
	post.CurrentReservations = agg.CurrentReservations
	post.RemainingQuantity = agg.RemainingQuantity
	post.Status = agg.Status
	return tx.Model(post).Updates(map[string]interface{}{
		"current_reservations": post.CurrentReservations,
		"remaining_quantity":   post.RemainingQuantity,
		"status":               post.Status,
	}).Error
}
