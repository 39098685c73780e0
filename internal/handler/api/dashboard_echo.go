package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ChartDash/internal/domain/models"
	drepo "ChartDash/internal/domain/repository"
	"ChartDash/internal/service/metrics"
	"ChartDash/internal/service/ratelimit"
	"ChartDash/internal/usecase"
	xhttp "ChartDash/pkg/http"
	xlogger "ChartDash/pkg/logger"
	"ChartDash/pkg/util"
)

// DashboardHandler serves the chart dashboard over Echo.
type DashboardHandler struct {
	logger  *xlogger.Logger
	charts  *usecase.ChartsUseCase
	data    *usecase.ChartDataUseCase
	series  *usecase.SeriesUseCase
	limiter *ratelimit.Limiter
}

func NewDashboardHandler(
	logger *xlogger.Logger,
	charts *usecase.ChartsUseCase,
	data *usecase.ChartDataUseCase,
	series *usecase.SeriesUseCase,
	limiter *ratelimit.Limiter,
) *DashboardHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &DashboardHandler{logger: logger, charts: charts, data: data, series: series, limiter: limiter}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/dashboard")
	g.GET("/charts", h.ListCharts)
	g.POST("/charts", h.AddChart)
	g.POST("/charts/next", h.LoadMore)
	g.GET("/charts/data", h.ChartData)
	g.PUT("/charts/:id", h.UpdateChart)
	g.DELETE("/charts/:id", h.DeleteChart)

	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, h.limiter.Middleware())
	}
	g.GET("/series", h.SearchSeries, mw...)
}

func observe(endpoint string) func() {
	start := time.Now()
	return func() {
		metrics.DashboardLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// ListCharts returns every loaded chart page. With prefetch=true the data of
// the listed charts is loaded before answering.
func (h *DashboardHandler) ListCharts(c echo.Context) error {
	defer observe("charts.list")()
	ctx := c.Request().Context()

	list := h.charts.List(ctx)
	if list.Err != nil && len(list.Charts) == 0 {
		return h.fail(c, "charts.list", list.Err)
	}
	if c.QueryParam("prefetch") == "true" && h.data != nil {
		if err := h.data.Prefetch(ctx, list.Charts); err != nil {
			h.logger.Warn("prefetch chart data failed", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, list)
}

func (h *DashboardHandler) LoadMore(c echo.Context) error {
	defer observe("charts.next")()

	list := h.charts.LoadMore(c.Request().Context())
	if list.Err != nil && len(list.Charts) == 0 {
		return h.fail(c, "charts.next", list.Err)
	}
	return xhttp.SuccessResponse(c, list)
}

func (h *DashboardHandler) AddChart(c echo.Context) error {
	defer observe("charts.add")()

	var cfg models.ChartConfig
	if err := c.Bind(&cfg); err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{Code: "ERR_BIND", Message: "invalid chart payload"}})
	}
	charts, err := h.charts.Add(c.Request().Context(), cfg)
	if err != nil {
		return h.fail(c, "charts.add", err)
	}
	return xhttp.CreatedResponse(c, models.ChartsEnvelope{Charts: charts})
}

func (h *DashboardHandler) UpdateChart(c echo.Context) error {
	defer observe("charts.update")()
	ctx := c.Request().Context()

	idReq := models.ChartIDRequest{ID: util.ParseIntDefault(c.Param("id"), 0)}
	if verr := xhttp.ValidateStruct(ctx, &idReq); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var cfg models.ChartConfig
	if err := c.Bind(&cfg); err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{Code: "ERR_BIND", Message: "invalid chart payload"}})
	}
	if err := h.charts.Update(ctx, idReq.ID, cfg); err != nil {
		return h.fail(c, "charts.update", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *DashboardHandler) DeleteChart(c echo.Context) error {
	defer observe("charts.delete")()
	ctx := c.Request().Context()

	idReq := models.ChartIDRequest{ID: util.ParseIntDefault(c.Param("id"), 0)}
	if verr := xhttp.ValidateStruct(ctx, &idReq); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	charts, err := h.charts.Delete(ctx, idReq.ID)
	if err != nil {
		return h.fail(c, "charts.delete", err)
	}
	return xhttp.SuccessResponse(c, models.ChartsEnvelope{Charts: charts})
}

// ChartData answers with the card view; the status reflects its state.
func (h *DashboardHandler) ChartData(c echo.Context) error {
	defer observe("charts.data")()

	req := &models.ChartDataRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	view := h.data.Get(c.Request().Context(), req.SeriesID, req.Frequency)
	if view.Err != nil {
		kind := errorKind(view.Err)
		metrics.DashboardErrors.WithLabelValues("charts.data", kind).Inc()
		return xhttp.DataResponse(c, statusOf(view.Err), view)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.SuccessResponse(c, view)
}

func (h *DashboardHandler) SearchSeries(c echo.Context) error {
	defer observe("series.search")()

	req := &models.SeriesSearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.series.Search(c.Request().Context(), req.Query, req.Offset))
}

// fail maps a domain error to its HTTP response.
func (h *DashboardHandler) fail(c echo.Context, endpoint string, err error) error {
	kind := errorKind(err)
	metrics.DashboardErrors.WithLabelValues(endpoint, kind).Inc()

	var invalid *usecase.InvalidChartError
	if errors.As(err, &invalid) {
		return xhttp.BadRequestResponse(c, invalid.Fields)
	}

	var appErr *xhttp.AppError
	msg := messageOf(err)
	switch status := statusOf(err); status {
	case http.StatusBadRequest:
		appErr = xhttp.BadRequestError(msg)
	case http.StatusUnprocessableEntity:
		appErr = xhttp.UnprocessableError(msg)
	case http.StatusNotFound:
		appErr = xhttp.NotFoundError(msg)
	case http.StatusBadGateway:
		h.logger.Warn("upstream request failed", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		appErr = xhttp.BadGatewayError(msg)
	default:
		h.logger.Error("dashboard request failed", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("Something went wrong").WithError(err).WithParam("kind", kind))
	}

	var reqErr *drepo.RequestError
	if errors.As(err, &reqErr) {
		appErr.WithParam("op", reqErr.Op).WithParam("upstream_status", reqErr.Status)
	}
	return xhttp.AppErrorResponse(c, appErr.WithError(err))
}

func statusOf(err error) int {
	var reqErr *drepo.RequestError
	switch {
	case errors.Is(err, drepo.ErrValidation):
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusUnprocessableEntity {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case errors.Is(err, drepo.ErrDataUnavailable):
		return http.StatusNotFound
	case errors.Is(err, drepo.ErrNetwork), errors.Is(err, drepo.ErrServer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, drepo.ErrValidation):
		return "validation"
	case errors.Is(err, drepo.ErrDataUnavailable):
		return "no_data"
	case errors.Is(err, drepo.ErrNetwork):
		return "network"
	case errors.Is(err, drepo.ErrServer):
		return "server"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

func messageOf(err error) string {
	var reqErr *drepo.RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	return err.Error()
}
