// Package api exposes the deduction engine over HTTP. The handlers are a
// thin boundary: validation and JSON shaping here, all domain behavior in
// the engine, store, ledger and propagator.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"larder/internal/availability"
	"larder/internal/catalog"
	"larder/internal/engine"
	"larder/internal/inventory"
	"larder/internal/ledger"
	"larder/internal/models"
	"larder/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Server represents the HTTP surface over the deduction engine
type Server struct {
	router      *gin.Engine
	engine      *engine.Engine
	store       *inventory.Store
	ledger      *ledger.Ledger
	catalog     *catalog.Catalog
	propagator  *availability.Propagator
	hub         *notify.Hub
	recipesPath string
}

// NewServer creates the API server and configures its routes. The hub may be
// nil when no dashboard push is wanted.
func NewServer(eng *engine.Engine, store *inventory.Store, led *ledger.Ledger, cat *catalog.Catalog, prop *availability.Propagator, hub *notify.Hub, recipesPath, authSecret string) *Server {
	s := &Server{
		router:      gin.Default(),
		engine:      eng,
		store:       store,
		ledger:      led,
		catalog:     cat,
		propagator:  prop,
		hub:         hub,
		recipesPath: recipesPath,
	}
	s.setupRoutes(authSecret)
	return s
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes(authSecret string) {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if s.hub != nil {
		s.router.GET("/ws", s.hub.HandleWebSocket)
	}

	v1 := s.router.Group("/api/v1")
	{
		// Read-only surface
		v1.GET("/inventory", s.ListInventory)
		v1.GET("/inventory/:name", s.GetIngredient)
		v1.GET("/ledger", s.GetLedgerHistory)
		v1.GET("/menu/availability", s.ListAvailability)

		// Mutating surface, behind auth when a secret is configured
		secured := v1.Group("", AuthMiddleware(authSecret))
		secured.POST("/sales", s.RecordSale)
		secured.POST("/inventory", s.CreateIngredient)
		secured.POST("/inventory/:name/add", s.AddStock)
		secured.POST("/inventory/:name/set", s.SetStock)
		secured.POST("/inventory/:name/deactivate", s.DeactivateIngredient)
		secured.POST("/catalog/reload", s.ReloadCatalog)
	}
}

// RecordSale processes a completed sale and returns the deduction report
func (s *Server) RecordSale(c *gin.Context) {
	var sale models.SaleEvent
	if err := c.ShouldBindJSON(&sale); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sale.Attribution.OrderID == "" {
		sale.Attribution.OrderID = uuid.NewString()
	}

	report, err := s.engine.RecordSale(c.Request.Context(), sale)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidSale) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListInventory returns all ingredient records
func (s *Server) ListInventory(c *gin.Context) {
	items, err := s.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetIngredient returns one ingredient record by name
func (s *Server) GetIngredient(c *gin.Context) {
	item, err := s.store.Get(c.Param("name"))
	if errors.Is(err, inventory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ingredient not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

// CreateIngredient adds a new ingredient record
func (s *Server) CreateIngredient(c *gin.Context) {
	var item models.Ingredient
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.Create(&item); err != nil {
		if errors.Is(err, inventory.ErrInvalidCapacity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, item)
}

// stockAdjustment is the request body for manual stock changes
type stockAdjustment struct {
	Quantity float64 `json:"quantity"`
	Reason   string  `json:"reason"`
}

// AddStock increases an ingredient's stock, clamped at its capacity ceiling
func (s *Server) AddStock(c *gin.Context) {
	var req stockAdjustment
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	adj, err := s.engine.AdjustStock(c.Param("name"), req.Quantity, req.Reason)
	if err != nil {
		s.adjustmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stock_before": adj.StockBefore, "stock_after": adj.StockAfter})
}

// SetStock overwrites an ingredient's stock level, clamped to its valid range
func (s *Server) SetStock(c *gin.Context) {
	var req stockAdjustment
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	adj, err := s.engine.SetStock(c.Param("name"), req.Quantity, req.Reason)
	if err != nil {
		s.adjustmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stock_before": adj.StockBefore, "stock_after": adj.StockAfter})
}

// DeactivateIngredient flags an ingredient inactive; records are never
// hard-deleted
func (s *Server) DeactivateIngredient(c *gin.Context) {
	if err := s.store.SetActive(c.Param("name"), false); err != nil {
		s.adjustmentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ingredient deactivated"})
}

func (s *Server) adjustmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Ingredient not found"})
	case errors.Is(err, inventory.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetLedgerHistory returns recent ledger entries, optionally filtered by dish
// or ingredient, newest first
func (s *Server) GetLedgerHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	var entries []models.DeductionEntry
	var err error
	switch {
	case c.Query("dish") != "":
		entries, err = s.ledger.HistoryForDish(c.Query("dish"), limit)
	case c.Query("ingredient") != "":
		entries, err = s.ledger.HistoryForIngredient(c.Query("ingredient"), limit)
	default:
		entries, err = s.ledger.History(limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ListAvailability returns the availability projection for all dishes
func (s *Server) ListAvailability(c *gin.Context) {
	rows, err := s.propagator.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ReloadCatalog re-reads the recipe file and runs a full availability sweep
// so the projection matches the new recipes
func (s *Server) ReloadCatalog(c *gin.Context) {
	if err := s.catalog.LoadFile(s.recipesPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.propagator.Sweep(); err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "Catalog reloaded, sweep incomplete", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Catalog reloaded", "recipes": s.catalog.Len()})
}
