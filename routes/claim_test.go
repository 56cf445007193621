package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ediens-server/models"
	"ediens-server/services"

	"github.com/kataras/iris/v12"
)

// buildErrorApp exposes one route per service error so the HTTP mapping can
// be exercised without a database.
func buildErrorApp() *iris.Application {
	app := iris.New()

	serve := func(err error) iris.Handler {
		return func(ctx iris.Context) {
			handleClaimError(err, ctx)
		}
	}

	app.Get("/not-found", serve(services.ErrNotFound))
	app.Get("/unauthorized", serve(services.ErrUnauthorized))
	app.Get("/capacity", serve(services.ErrCapacityExceeded))
	app.Get("/duplicate", serve(services.ErrDuplicateClaim))
	app.Get("/already-rated", serve(services.ErrAlreadyRated))
	app.Get("/bad-transition", serve(&services.InvalidTransitionError{
		From: models.ClaimStatusPickedUp,
		To:   models.ClaimStatusCancelled,
	}))

	if err := app.Build(); err != nil {
		panic(err)
	}

	return app
}

func TestHandleClaimErrorStatusMapping(t *testing.T) {
	app := buildErrorApp()

	cases := []struct {
		path string
		want int
	}{
		{"/not-found", http.StatusNotFound},
		{"/unauthorized", http.StatusForbidden},
		{"/capacity", http.StatusConflict},
		{"/duplicate", http.StatusConflict},
		{"/already-rated", http.StatusBadRequest},
		{"/bad-transition", http.StatusConflict},
	}

	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, c.path, nil)
		resp := httptest.NewRecorder()
		app.ServeHTTP(resp, req)
		if resp.Code != c.want {
			t.Errorf("%s: got status %d, want %d", c.path, resp.Code, c.want)
		}
	}
}

func TestClaimRoutesRequireToken(t *testing.T) {
	app := buildTestApp()

	req := httptest.NewRequest(http.MethodPost, "/api/claim/1/confirm", nil)
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	if resp.Code == http.StatusOK {
		t.Fatalf("expected non-200 without token, got %d", resp.Code)
	}
}
