package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ecomscraperpro/ecomscraperpro/internal/database"
)

// ProductHandler 商品数据处理器
type ProductHandler struct {
	db *database.Database
}

// NewProductHandler 创建商品数据处理器
func NewProductHandler(db *database.Database) *ProductHandler {
	return &ProductHandler{db: db}
}

// ListProducts 查询商品列表
func (h *ProductHandler) ListProducts(c *gin.Context) {
	platform := c.Query("platform")
	category := c.Query("category")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	products, err := h.db.GetProducts(platform, category, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, gin.H{
		"products": products,
		"total":    len(products),
		"limit":    limit,
		"offset":   offset,
	})
}

// GetHotComments 查询商品热度评论
func (h *ProductHandler) GetHotComments(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的商品ID")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	comments, err := h.db.GetHotComments(uint(productID), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, gin.H{
		"product_id": productID,
		"comments":   comments,
		"total":      len(comments),
	})
}

// GetPriceHistory 查询商品价格历史
func (h *ProductHandler) GetPriceHistory(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的商品ID")
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	history, err := h.db.GetPriceHistory(uint(productID), days)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, gin.H{
		"product_id":  productID,
		"history":     history,
		"period_days": days,
	})
}

// DeleteProduct 下架商品（软删除）
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的商品ID")
		return
	}
	if err := h.db.SoftDeleteProduct(uint(productID)); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOKMessage(c, "商品已下架", gin.H{"product_id": productID})
}

// GetDatabaseStats 数据库整体统计
func (h *ProductHandler) GetDatabaseStats(c *gin.Context) {
	stats, err := h.db.DatabaseStats()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, stats)
}
