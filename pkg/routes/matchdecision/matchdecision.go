package matchdecision

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/AudioList/clover/internal/repositories/matchdecision"
	appcontext "github.com/AudioList/clover/pkg/context"
	"github.com/AudioList/clover/pkg/models"
	"github.com/AudioList/clover/pkg/tracing"
)

var validate = validator.New()

// Register registers match decision routes
func Register(g *echo.Group) {
	g.GET("", ListPending)
	g.GET("/:id", Get)
	g.POST("/:id/resolve", Resolve)
}

// ListPending lists decisions waiting for review
func ListPending(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "matchdecision_handler.ListPending")
	defer span.End()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, repo, err := ectoinject.GetContext[*matchdecision.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	decisions, err := repo.ListPending(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, decisions)
}

// Get returns a decision by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "matchdecision_handler.Get")
	defer span.End()

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*matchdecision.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	decision, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, decision)
}

// Resolve approves or rejects a pending decision
func Resolve(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "matchdecision_handler.Resolve")
	defer span.End()

	id := c.Param("id")

	var req models.ResolveMatchDecisionRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ResolvedBy == "" {
		req.ResolvedBy = appcontext.GetUserID(ctx)
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*matchdecision.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	if err := repo.UpdateStatusByID(ctx, id, req.Status, &req.ResolvedBy); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"status": req.Status})
}
