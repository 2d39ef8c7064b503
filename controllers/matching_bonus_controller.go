package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/middleware"
	"github.com/HSouheill/barrim_matching/models"
	"github.com/HSouheill/barrim_matching/services"
	"github.com/HSouheill/barrim_matching/services/matching"
	"github.com/HSouheill/barrim_matching/utils"
)

// MatchingService is the part of the matching engine exposed over HTTP.
type MatchingService interface {
	Evaluate(ctx context.Context, memberID primitive.ObjectID) (matching.Eligibility, error)
	EligibilityOverview(ctx context.Context, memberID primitive.ObjectID) (*matching.Overview, error)
	Calculate(ctx context.Context, memberID primitive.ObjectID, cycleStart, cycleEnd time.Time) (*matching.Calculation, error)
	History(ctx context.Context, memberID primitive.ObjectID, filter models.HistoryFilter) (*matching.History, error)
	SourceDetails(ctx context.Context, memberID, recordID primitive.ObjectID) (*matching.SourceDetails, error)
	NextRankRequirements(ctx context.Context, currentRank string) (*matching.NextRank, error)
	PostMatchingBonus(ctx context.Context, memberID primitive.ObjectID, cycleStart, cycleEnd time.Time) (*matching.PostResult, error)
	RunCycle(ctx context.Context, cycleStart, cycleEnd time.Time) (*matching.CycleSummary, error)
	ListPolicies(ctx context.Context) ([]models.MatchingPolicy, error)
	UpsertPolicy(ctx context.Context, policy *models.MatchingPolicy) (*models.MatchingPolicy, error)
}

// requestTimeout bounds every member and admin request except cycle runs.
const requestTimeout = 10 * time.Second

const defaultCycleTimeout = 10 * time.Minute

type MatchingBonusController struct {
	engine       MatchingService
	now          func() time.Time
	cycleTimeout time.Duration
}

// NewMatchingBonusController builds the handlers. cycleTimeout bounds a full
// cycle run; zero means the default of ten minutes.
func NewMatchingBonusController(engine MatchingService, cycleTimeout time.Duration) *MatchingBonusController {
	if cycleTimeout <= 0 {
		cycleTimeout = defaultCycleTimeout
	}
	return &MatchingBonusController{engine: engine, now: time.Now, cycleTimeout: cycleTimeout}
}

// GetEligibility reports whether the member qualifies for matching bonuses
// and their progress toward the next rank.
func (mc *MatchingBonusController) GetEligibility(c echo.Context) error {
	memberID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	overview, err := mc.engine.EligibilityOverview(ctx, memberID)
	if err != nil {
		return mc.fail(c, "Failed to evaluate eligibility", err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Eligibility retrieved successfully",
		Data:    overview,
	})
}

// Calculate previews the matching bonus for a cycle without posting it.
func (mc *MatchingBonusController) Calculate(c echo.Context) error {
	memberID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	start, end, err := mc.cycleFromQuery(c, matching.PresetThisCycle)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	calc, err := mc.engine.Calculate(ctx, memberID, start, end)
	if err != nil {
		return mc.fail(c, "Failed to calculate matching bonus", err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Matching bonus calculated successfully",
		Data:    calc,
	})
}

// GetHistory lists the member's posted matching bonuses.
func (mc *MatchingBonusController) GetHistory(c echo.Context) error {
	memberID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	filter := models.HistoryFilter{Status: c.QueryParam("status")}
	if c.QueryParam("cyclePreset") != "" || c.QueryParam("startDate") != "" || c.QueryParam("endDate") != "" {
		start, end, err := mc.cycleFromQuery(c, "")
		if err != nil {
			return badRequest(c, err.Error())
		}
		filter.From, filter.To = &start, &end
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	history, err := mc.engine.History(ctx, memberID, filter)
	if err != nil {
		return mc.fail(c, "Failed to retrieve matching bonus history", err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Matching bonus history retrieved successfully",
		Data:    history,
	})
}

// GetSourceDetails returns the downline contributions behind one posted bonus.
func (mc *MatchingBonusController) GetSourceDetails(c echo.Context) error {
	memberID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	recordID, err := primitive.ObjectIDFromHex(c.Param("recordId"))
	if err != nil {
		return badRequest(c, "Invalid matching record ID")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	details, err := mc.engine.SourceDetails(ctx, memberID, recordID)
	if err != nil {
		return mc.fail(c, "Failed to retrieve matching bonus details", err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Matching bonus details retrieved successfully",
		Data:    details,
	})
}

// GetNextRank returns the requirements of the rank after the member's current one.
func (mc *MatchingBonusController) GetNextRank(c echo.Context) error {
	memberID, err := middleware.ExtractUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	eligibility, err := mc.engine.Evaluate(ctx, memberID)
	if err != nil {
		return mc.fail(c, "Failed to evaluate rank", err)
	}
	if eligibility.CurrentRank == "" {
		return mc.fail(c, "Member not found", matching.ErrNotFound)
	}

	next, err := mc.engine.NextRankRequirements(ctx, eligibility.CurrentRank)
	if err != nil {
		return mc.fail(c, "Failed to retrieve next rank", err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Next rank requirements retrieved successfully",
		Data:    next,
	})
}

// cycleFromQuery reads cyclePreset, or startDate and endDate. When neither
// is given fallbackPreset is used.
func (mc *MatchingBonusController) cycleFromQuery(c echo.Context, fallbackPreset string) (time.Time, time.Time, error) {
	return mc.resolveCycle(c.QueryParam("cyclePreset"), c.QueryParam("startDate"), c.QueryParam("endDate"), fallbackPreset)
}

func (mc *MatchingBonusController) resolveCycle(preset, startDate, endDate, fallbackPreset string) (time.Time, time.Time, error) {
	if preset == "" && startDate == "" && endDate == "" {
		preset = fallbackPreset
	}
	if preset != "" {
		return matching.CycleFromPreset(preset, mc.now().UTC())
	}
	if startDate == "" || endDate == "" {
		return time.Time{}, time.Time{}, errors.New("startDate and endDate are required")
	}

	start, err := utils.ParseDate(startDate, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := utils.ParseDate(endDate, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, errors.New("startDate must not be after endDate")
	}
	return start, end, nil
}

// fail maps engine errors to HTTP statuses.
func (mc *MatchingBonusController) fail(c echo.Context, message string, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, matching.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, matching.ErrInvalidCycle), errors.Is(err, matching.ErrInvalidPolicy):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrLockNotAcquired):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("%s: %v", message, err)
		return c.JSON(status, models.Response{Status: status, Message: message})
	}
	return c.JSON(status, models.Response{Status: status, Message: err.Error()})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.Response{
		Status:  http.StatusUnauthorized,
		Message: "Invalid or missing user ID in token",
	})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.Response{
		Status:  http.StatusBadRequest,
		Message: message,
	})
}
