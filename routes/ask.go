package routes

import (
	"errors"
	"net/http"
	"strings"

	"document-qa-backend/internal/config"
	"document-qa-backend/internal/logger"
	"document-qa-backend/models"
	"document-qa-backend/services"
	"document-qa-backend/utils"

	"github.com/gin-gonic/gin"
)

// SetupAskRoutes registers the question-answering and liveness endpoints.
func SetupAskRoutes(router *gin.Engine, cfg *config.Config, answerer *services.Answerer) {
	router.POST("/ask", askHandler(cfg, answerer))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is working!"})
	})
}

func askHandler(cfg *config.Config, answerer *services.Answerer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.GoogleAPIKey == "" {
			utils.RespondWithUnauthorized(c, "Google API key is missing. Please set the GOOGLE_API_KEY environment variable.")
			return
		}

		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
			utils.RespondWithBadRequest(c, "No question provided", nil)
			return
		}

		answer, err := answerer.Answer(c.Request.Context(), req.Question)
		if err != nil {
			if errors.Is(err, services.ErrNoDocuments) {
				utils.RespondWithBadRequest(c, "No document data available. Please upload a file first.", nil)
				return
			}
			logger.Error("Error generating answer", "error", err.Error())
			utils.RespondWithProviderError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.AskResponse{Answer: answer})
	}
}
