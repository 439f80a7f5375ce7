package reconcile

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/AudioList/clover/pkg/processor"
	"github.com/AudioList/clover/pkg/tracing"
)

// Register registers reconciliation trigger routes
func Register(g *echo.Group) {
	g.POST("/run", Run)
	g.POST("/variants", ResolveVariants)
}

// Run triggers a synchronous reconciliation pass over all categories with
// unmatched listings and returns the run report.
func Run(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "reconcile_handler.Run")
	defer span.End()

	ctx, reconciler, err := ectoinject.GetContext[*processor.Reconciler](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get reconciler")
	}

	report, err := reconciler.Run(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, report)
}

// ResolveVariants triggers a best-variant resolution pass and returns the
// applied diff.
func ResolveVariants(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "reconcile_handler.ResolveVariants")
	defer span.End()

	ctx, vp, err := ectoinject.GetContext[*processor.VariantProcessor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get variant processor")
	}

	diff, err := vp.Run(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, diff)
}
