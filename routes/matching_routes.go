package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/controllers"
	"github.com/HSouheill/barrim_matching/middleware"
	"github.com/HSouheill/barrim_matching/websocket"
)

// RegisterMatchingRoutes sets up the member and admin matching bonus routes.
func RegisterMatchingRoutes(e *echo.Echo, mc *controllers.MatchingBonusController, hub *websocket.Hub, jwtSecret string) {
	verify := func(token string) (primitive.ObjectID, error) {
		claims, err := middleware.ParseToken(jwtSecret, token)
		if err != nil {
			return primitive.NilObjectID, err
		}
		return primitive.ObjectIDFromHex(claims.UserID)
	}
	// Browsers cannot set headers on a websocket upgrade, so the socket
	// authenticates itself.
	e.GET("/api/matching-bonus/ws", websocket.Handler(hub, verify))

	member := e.Group("/api/matching-bonus", middleware.JWTMiddleware(jwtSecret),
		middleware.RequireUserType(middleware.UserTypeMember, middleware.UserTypeAdmin))
	member.GET("/eligibility", mc.GetEligibility)
	member.GET("/calculate", mc.Calculate)
	member.GET("/history", mc.GetHistory)
	member.GET("/next-rank", mc.GetNextRank)
	member.GET("/:recordId/details", mc.GetSourceDetails)

	admin := e.Group("/api/admin/matching-bonus", middleware.JWTMiddleware(jwtSecret), middleware.RequireAdmin())
	admin.POST("/post", mc.PostMatchingBonus)
	admin.POST("/run-cycle", mc.RunCycle)
	admin.GET("/policies", mc.ListPolicies)
	admin.PUT("/policies", mc.UpsertPolicy)
}
