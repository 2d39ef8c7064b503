package controllers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/models"
)

// PostMatchingBonusRequest posts one member's bonus for a cycle.
type PostMatchingBonusRequest struct {
	MemberID   string `json:"memberId" validate:"required"`
	CycleStart string `json:"cycleStart" validate:"required"`
	CycleEnd   string `json:"cycleEnd" validate:"required"`
}

// RunCycleRequest selects the cycle to post for every eligible member.
type RunCycleRequest struct {
	CycleStart  string `json:"cycleStart" validate:"required_without=CyclePreset"`
	CycleEnd    string `json:"cycleEnd" validate:"required_without=CyclePreset"`
	CyclePreset string `json:"cyclePreset"`
}

// PostMatchingBonus writes a member's matching bonus for the cycle. Posting
// the same cycle again returns the existing record.
func (mc *MatchingBonusController) PostMatchingBonus(c echo.Context) error {
	var req PostMatchingBonusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	memberID, err := primitive.ObjectIDFromHex(req.MemberID)
	if err != nil {
		return badRequest(c, "Invalid member ID")
	}
	start, end, err := mc.resolveCycle("", req.CycleStart, req.CycleEnd, "")
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	result, err := mc.engine.PostMatchingBonus(ctx, memberID, start, end)
	if err != nil {
		return mc.fail(c, "Failed to post matching bonus", err)
	}

	status := http.StatusOK
	if result.Success && !result.Duplicate {
		status = http.StatusCreated
		c.Logger().Infof("Matching bonus %s posted for %s by admin %s", result.MatchingRecordID.Hex(), memberID.Hex(), c.Get("userId"))
	}
	return c.JSON(status, models.Response{
		Status:  status,
		Message: result.Message,
		Data:    result,
	})
}

// RunCycle posts the cycle for every member whose rank has matching depth.
func (mc *MatchingBonusController) RunCycle(c echo.Context) error {
	var req RunCycleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	start, end, err := mc.resolveCycle(req.CyclePreset, req.CycleStart, req.CycleEnd, "")
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), mc.cycleTimeout)
	defer cancel()

	summary, err := mc.engine.RunCycle(ctx, start, end)
	if err != nil {
		return mc.fail(c, "Failed to run matching cycle", err)
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Matching cycle completed",
		Data:    summary,
	})
}

// ListPolicies returns the active rank policies.
func (mc *MatchingBonusController) ListPolicies(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	policies, err := mc.engine.ListPolicies(ctx)
	if err != nil {
		return mc.fail(c, "Failed to retrieve matching policies", err)
	}
	if policies == nil {
		policies = []models.MatchingPolicy{}
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Matching policies retrieved successfully",
		Data:    policies,
	})
}

// UpsertPolicy replaces the active policy of a rank.
func (mc *MatchingBonusController) UpsertPolicy(c echo.Context) error {
	var policy models.MatchingPolicy
	if err := c.Bind(&policy); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&policy); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	saved, err := mc.engine.UpsertPolicy(ctx, &policy)
	if err != nil {
		return mc.fail(c, "Failed to save matching policy", err)
	}
	c.Logger().Infof("Matching policy for rank %s updated by admin %s", saved.RankName, c.Get("userId"))
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Matching policy saved successfully",
		Data:    saved,
	})
}
