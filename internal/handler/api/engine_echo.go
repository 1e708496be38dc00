package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"TradeMaster/internal/domain/models"
	"TradeMaster/internal/usecase"
	xhttp "TradeMaster/pkg/http"
	xlogger "TradeMaster/pkg/logger"
)

// EngineHandler exposes the allocation engine over HTTP for the dashboard.
type EngineHandler struct {
	logger *xlogger.Logger
	engine *usecase.Engine
}

func NewEngineHandler(logger *xlogger.Logger, engine *usecase.Engine) *EngineHandler {
	return &EngineHandler{logger: logger, engine: engine}
}

func (h *EngineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")

	g.POST("/allocations/calculate", h.CalculateAllocation)
	g.GET("/allocations/active", h.ActiveAllocations)
	g.GET("/allocations/history", h.AllocationHistory)
	g.GET("/allocations/params", h.AllocationParams)
	g.PATCH("/allocations/params", h.UpdateAllocationParams)

	g.POST("/trades", h.RecordTrade)
	g.GET("/trades", h.TradeArchive)
	g.GET("/portfolio", h.PortfolioMetrics)

	g.GET("/protection/status", h.ProtectionStatus)
	g.GET("/protection/threat", h.ThreatAssessment)
	g.GET("/protection/safe-mode", h.SafeModeConfig)
	g.POST("/protection/safe-mode", h.ForceSafeMode)
	g.POST("/protection/recover", h.ManualRecovery)
	g.GET("/protection/triggers", h.PanicTriggers)
	g.PATCH("/protection/triggers/:id", h.UpdateTrigger)
	g.GET("/protection/locks", h.CapitalLocks)
	g.GET("/protection/events", h.ProtectionEvents)

	g.GET("/regime", h.CurrentRegime)
	g.GET("/regime/aggression", h.CurrentAggression)
	g.GET("/regime/metrics", h.RecentMetrics)
	g.GET("/regime/adjustments", h.AdjustmentHistory)
	g.POST("/regime/active", h.SetActive)
}

func (h *EngineHandler) CalculateAllocation(c echo.Context) error {
	req := &models.AllocationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	d, err := h.engine.CalculateAllocation(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("calculate allocation error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, d)
}

func (h *EngineHandler) ActiveAllocations(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.GetActiveAllocations())
}

func (h *EngineHandler) AllocationHistory(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.engine.GetAllocationHistory(req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *EngineHandler) AllocationParams(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.GetAllocationParameters())
}

func (h *EngineHandler) UpdateAllocationParams(c echo.Context) error {
	req := &models.AllocationParamsPatch{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	params, err := h.engine.UpdateAllocationParameters(*req)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, params)
}

func (h *EngineHandler) RecordTrade(c echo.Context) error {
	req := &models.TradeEventRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ts := time.Now()
	if req.Timestamp > 0 {
		ts = time.Unix(req.Timestamp, 0)
	}
	ev := models.TradeEvent{
		Symbol:         req.Symbol,
		Side:           models.TradeSide(req.Side),
		PnL:            req.PnL,
		PortfolioValue: req.PortfolioValue,
		Timestamp:      ts,
	}
	if err := h.engine.RecordTrade(c.Request().Context(), ev); err != nil {
		h.logger.Error("record trade error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, h.engine.GetProtectionStatus())
}

func (h *EngineHandler) TradeArchive(c echo.Context) error {
	req := &models.ArchiveQueryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now())
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), to.Add(-time.Duration(req.Hours)*time.Hour))
	rows, err := h.engine.GetTradeArchive(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		h.logger.Error("trade archive query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *EngineHandler) PortfolioMetrics(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.GetPortfolioMetrics())
}

func (h *EngineHandler) ProtectionStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.GetProtectionStatus())
}

func (h *EngineHandler) ThreatAssessment(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.AssessThreatLevel())
}

func (h *EngineHandler) SafeModeConfig(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.GetSafeModeConfig())
}

func (h *EngineHandler) ForceSafeMode(c echo.Context) error {
	req := &models.ForceSafeModeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.engine.ForceSafeMode(req.Reason)
	return xhttp.SuccessResponse(c, h.engine.GetProtectionStatus())
}

func (h *EngineHandler) ManualRecovery(c echo.Context) error {
	h.engine.ManualRecovery()
	return xhttp.SuccessResponse(c, h.engine.GetProtectionStatus())
}

func (h *EngineHandler) PanicTriggers(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.GetPanicTriggers())
}

func (h *EngineHandler) UpdateTrigger(c echo.Context) error {
	req := &models.PanicTriggerPatch{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	trigger, err := h.engine.UpdateTrigger(c.Param("id"), *req)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, trigger)
}

func (h *EngineHandler) CapitalLocks(c echo.Context) error {
	locks := h.engine.GetCapitalLocks()
	return xhttp.ListResponse(c, locks, int64(len(locks)))
}

func (h *EngineHandler) ProtectionEvents(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.engine.GetProtectionEvents(req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *EngineHandler) CurrentRegime(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.GetCurrentRegime())
}

func (h *EngineHandler) CurrentAggression(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.GetCurrentAggression())
}

func (h *EngineHandler) RecentMetrics(c echo.Context) error {
	req := &models.RecentMetricsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.engine.GetRecentMetrics(req.Hours)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *EngineHandler) AdjustmentHistory(c echo.Context) error {
	rows := h.engine.GetAdjustmentHistory()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *EngineHandler) SetActive(c echo.Context) error {
	req := &models.SetActiveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.engine.SetActive(req.Active)
	return xhttp.SuccessResponse(c, map[string]bool{"active": req.Active})
}
