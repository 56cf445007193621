package services

import (
	"errors"
	"testing"
	"time"

	"ediens-server/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{models.ClaimStatusPending, models.ClaimStatusConfirmed, true},
		{models.ClaimStatusPending, models.ClaimStatusCancelled, true},
		{models.ClaimStatusPending, models.ClaimStatusPickedUp, false},
		{models.ClaimStatusPending, models.ClaimStatusExpired, false},
		{models.ClaimStatusConfirmed, models.ClaimStatusPickedUp, true},
		{models.ClaimStatusConfirmed, models.ClaimStatusCancelled, true},
		{models.ClaimStatusConfirmed, models.ClaimStatusExpired, true},
		{models.ClaimStatusConfirmed, models.ClaimStatusPending, false},
		{models.ClaimStatusPickedUp, models.ClaimStatusCancelled, false},
		{models.ClaimStatusCancelled, models.ClaimStatusConfirmed, false},
		{models.ClaimStatusExpired, models.ClaimStatusConfirmed, false},
		{"bogus", models.ClaimStatusConfirmed, false},
	}

	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	terminal := []string{models.ClaimStatusPickedUp, models.ClaimStatusCancelled, models.ClaimStatusExpired}
	all := []string{
		models.ClaimStatusPending, models.ClaimStatusConfirmed,
		models.ClaimStatusPickedUp, models.ClaimStatusCancelled, models.ClaimStatusExpired,
	}
	for _, from := range terminal {
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("terminal status %q should not transition to %q", from, to)
			}
		}
	}
}

func availablePost(ownerID uint, quantity int) *models.FoodPost {
	active := true
	return &models.FoodPost{
		OwnerID:  ownerID,
		Quantity: quantity,
		Status:   models.PostStatusAvailable,
		IsActive: &active,
	}
}

func TestValidateCreate(t *testing.T) {
	owner := uint(1)
	claimant := uint(2)

	t.Run("accepts a plain claim", func(t *testing.T) {
		post := availablePost(owner, 10)
		if err := validateCreate(post, claimant, 3, 10, 0, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects the post owner", func(t *testing.T) {
		post := availablePost(owner, 10)
		if err := validateCreate(post, owner, 1, 10, 0, false); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects a second active claim by the same user", func(t *testing.T) {
		post := availablePost(owner, 10)
		if err := validateCreate(post, claimant, 1, 10, 0, true); !errors.Is(err, ErrDuplicateClaim) {
			t.Fatalf("expected ErrDuplicateClaim, got %v", err)
		}
	})

	t.Run("rejects quantity above what remains", func(t *testing.T) {
		post := availablePost(owner, 10)
		if err := validateCreate(post, claimant, 5, 4, 0, false); !errors.Is(err, ErrCapacityExceeded) {
			t.Fatalf("expected ErrCapacityExceeded, got %v", err)
		}
	})

	t.Run("allows claiming exactly what remains", func(t *testing.T) {
		post := availablePost(owner, 10)
		if err := validateCreate(post, claimant, 4, 4, 0, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects when confirmed claims fill the reservation cap", func(t *testing.T) {
		post := availablePost(owner, 10)
		limit := 2
		post.MaxReservations = &limit
		if err := validateCreate(post, claimant, 1, 10, 2, false); !errors.Is(err, ErrCapacityExceeded) {
			t.Fatalf("expected ErrCapacityExceeded, got %v", err)
		}
	})

	t.Run("pending claims may queue below the cap", func(t *testing.T) {
		post := availablePost(owner, 10)
		limit := 2
		post.MaxReservations = &limit
		if err := validateCreate(post, claimant, 1, 10, 1, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects claims on completed posts", func(t *testing.T) {
		post := availablePost(owner, 10)
		post.Status = models.PostStatusCompleted
		err := validateCreate(post, claimant, 1, 0, 0, false)
		var transitionErr *InvalidTransitionError
		if !errors.As(err, &transitionErr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("rejects claims on deactivated posts", func(t *testing.T) {
		post := availablePost(owner, 10)
		inactive := false
		post.IsActive = &inactive
		if err := validateCreate(post, claimant, 1, 10, 0, false); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestFoldRating(t *testing.T) {
	cases := []struct {
		name      string
		oldAvg    float32
		oldCount  int
		rating    int
		wantAvg   float32
		wantCount int
	}{
		{"first rating", 0, 0, 4, 4, 1},
		{"second rating averages", 4, 1, 2, 3, 2},
		{"third rating", 3, 2, 5, 11.0 / 3.0, 3},
		{"five star streak stays five", 5, 10, 5, 5, 11},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			avg, count := foldRating(c.oldAvg, c.oldCount, c.rating)
			if count != c.wantCount {
				t.Errorf("count = %d, want %d", count, c.wantCount)
			}
			if diff := avg - c.wantAvg; diff > 0.0001 || diff < -0.0001 {
				t.Errorf("avg = %f, want %f", avg, c.wantAvg)
			}
		})
	}
}

func TestInvalidTransitionErrorMessage(t *testing.T) {
	err := &InvalidTransitionError{From: models.ClaimStatusPending, To: models.ClaimStatusPickedUp}
	want := `invalid claim transition from "pending" to "picked_up"`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDerivePostAggregates(t *testing.T) {
	limit := 2
	cases := []struct {
		name      string
		status    string
		max       *int
		active    int
		confirmed int
		remaining int
		want      postAggregates
	}{
		{"fresh post", models.PostStatusAvailable, nil, 0, 0, 10,
			postAggregates{0, 10, models.PostStatusAvailable}},
		{"one active claim holds its quantity", models.PostStatusAvailable, nil, 1, 0, 7,
			postAggregates{1, 7, models.PostStatusAvailable}},
		{"confirmed claims fill the cap", models.PostStatusAvailable, &limit, 3, 2, 5,
			postAggregates{3, 5, models.PostStatusReserved}},
		{"quantity exhausted with claims outstanding", models.PostStatusAvailable, nil, 2, 1, 0,
			postAggregates{2, 0, models.PostStatusReserved}},
		{"quantity exhausted and every claim settled", models.PostStatusReserved, nil, 0, 0, 0,
			postAggregates{0, 0, models.PostStatusCompleted}},
		{"cancellation reopens a reserved post", models.PostStatusReserved, &limit, 1, 1, 5,
			postAggregates{1, 5, models.PostStatusAvailable}},
		{"expired post is left alone", models.PostStatusExpired, nil, 0, 0, 4,
			postAggregates{0, 4, models.PostStatusExpired}},
		{"removed post is left alone", models.PostStatusRemoved, nil, 1, 0, 4,
			postAggregates{1, 4, models.PostStatusRemoved}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := derivePostAggregates(c.status, c.max, c.active, c.confirmed, c.remaining)
			if got != c.want {
				t.Errorf("derivePostAggregates = %+v, want %+v", got, c.want)
			}
			if got.CurrentReservations != c.active {
				t.Errorf("CurrentReservations = %d, want active claim count %d",
					got.CurrentReservations, c.active)
			}
		})
	}
}

func TestLazyExpiryDue(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name   string
		status string
		pickup time.Time
		to     string
		want   bool
	}{
		{"confirmed past pickup blocks other transitions", models.ClaimStatusConfirmed, past, models.ClaimStatusPickedUp, true},
		{"confirmed past pickup blocks cancellation too", models.ClaimStatusConfirmed, past, models.ClaimStatusCancelled, true},
		{"confirmed before pickup is fine", models.ClaimStatusConfirmed, future, models.ClaimStatusPickedUp, false},
		{"explicit expiry is not intercepted", models.ClaimStatusConfirmed, past, models.ClaimStatusExpired, false},
		{"pending claims never lazily expire", models.ClaimStatusPending, past, models.ClaimStatusConfirmed, false},
		{"picked up claims never lazily expire", models.ClaimStatusPickedUp, past, models.ClaimStatusCancelled, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			claim := &models.Claim{Status: c.status, PickupDate: c.pickup}
			if got := lazyExpiryDue(claim, c.to, now); got != c.want {
				t.Errorf("lazyExpiryDue = %v, want %v", got, c.want)
			}
		})
	}
}

func TestPickupUpdates(t *testing.T) {
	now := time.Date(2026, 8, 28, 18, 30, 0, 0, time.UTC)
	claim := &models.Claim{Quantity: 3, Status: models.ClaimStatusConfirmed}

	updates, award := pickupUpdates(claim, now)

	if want := 3 * EcoPointsPerUnit; award != want {
		t.Errorf("award = %d, want %d", award, want)
	}
	if updates["eco_points_awarded"] != award {
		t.Errorf("eco_points_awarded = %v, want %d", updates["eco_points_awarded"], award)
	}
	if updates["status"] != models.ClaimStatusPickedUp {
		t.Errorf("status = %v, want %q", updates["status"], models.ClaimStatusPickedUp)
	}
	stamped, ok := updates["picked_up_at"].(*time.Time)
	if !ok || stamped == nil || !stamped.Equal(now) {
		t.Errorf("picked_up_at = %v, want %v", updates["picked_up_at"], now)
	}
}

func TestStatusChangePushWanted(t *testing.T) {
	if statusChangePushWanted(models.ClaimStatusPickedUp) {
		t.Error("pickup should not fire the generic status-change push")
	}
	for _, to := range []string{models.ClaimStatusConfirmed, models.ClaimStatusCancelled, models.ClaimStatusExpired} {
		if !statusChangePushWanted(to) {
			t.Errorf("transition to %q should fire the status-change push", to)
		}
	}
}
