package httpserver

import (
	"log"
	"net/http"
	"strconv"

	"storefront-api/internal/domain"
	"storefront-api/internal/query"

	"github.com/gin-gonic/gin"
)

func productsHandler(deps Deps, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := query.Filters{
			Category:      c.Query("category"),
			Brand:         c.Query("brand"),
			Condition:     domain.Condition(c.Query("condition")),
			Search:        c.Query("search"),
			MinPriceCents: int64QueryParam(c, "minPrice"),
			MaxPriceCents: int64QueryParam(c, "maxPrice"),
		}
		page := intQueryParam(c, "page", 1)
		pageSize := intQueryParam(c, "pageSize", query.DefaultPageSize)
		q := query.Build(filters, page, pageSize, c.Query("orderBy"), c.Query("orderDir"))

		products, total, err := deps.Catalog.Products(c.Request.Context(), q)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if products == nil {
			products = []domain.Product{}
		}
		info := query.PageInfo(total, q.Page, q.PageSize)
		c.JSON(http.StatusOK, gin.H{
			"products":   products,
			"total":      info.Total,
			"page":       q.Page,
			"pageSize":   q.PageSize,
			"totalPages": info.TotalPages,
			"hasMore":    info.HasMore,
		})
	}
}

func intQueryParam(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func int64QueryParam(c *gin.Context, key string) *int64 {
	if v := c.Query(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &n
		}
	}
	return nil
}
