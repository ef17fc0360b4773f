package httpserver

import (
	"errors"
	"log"
	"net/http"

	"storefront-api/internal/domain"

	"github.com/gin-gonic/gin"
)

type putCartRequest struct {
	Lines []domain.CartLine `json:"lines"`
}

func getCartHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		lines, err := deps.CartMirror.Get(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusOK, gin.H{"lines": []domain.CartLine{}})
				return
			}
			writeError(c, logger, err)
			return
		}
		if lines == nil {
			lines = []domain.CartLine{}
		}
		c.JSON(http.StatusOK, gin.H{"lines": lines})
	}
}

func putCartHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req putCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		// Zero and negative quantities cannot exist as lines.
		lines := make([]domain.CartLine, 0, len(req.Lines))
		for _, l := range req.Lines {
			if l.ID == "" || l.Quantity <= 0 {
				continue
			}
			lines = append(lines, l)
		}
		userID := c.GetString("userID")
		if err := deps.CartMirror.Replace(c.Request.Context(), userID, lines); err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"lines": lines})
	}
}

func deleteCartHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if err := deps.CartMirror.Delete(c.Request.Context(), userID); err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
