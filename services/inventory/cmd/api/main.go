package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autofix-platform/autofix/pkg/api"
	"github.com/autofix-platform/autofix/pkg/idempotency"
	"github.com/autofix-platform/autofix/pkg/kafka"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"
	"github.com/autofix-platform/autofix/pkg/middleware"
	"github.com/autofix-platform/autofix/pkg/mongodb"
	"github.com/autofix-platform/autofix/pkg/outbox"
	outboxMongo "github.com/autofix-platform/autofix/pkg/outbox/mongodb"
	"github.com/autofix-platform/autofix/pkg/tracing"

	"github.com/autofix-platform/autofix/services/inventory/internal/application"
	infraMongo "github.com/autofix-platform/autofix/services/inventory/internal/infrastructure/mongodb"
	eventHandlers "github.com/autofix-platform/autofix/services/inventory/internal/interfaces/events"
)

const serviceName = "inventory-service"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting inventory-service API")

	config := loadConfig()
	ctx := context.Background()

	// OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	// Prometheus metrics
	m := metrics.New(metrics.DefaultConfig(serviceName))

	// MongoDB with instrumentation
	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	instrumentedMongo := mongodb.NewInstrumentedClient(mongoClient, m, logger)
	defer instrumentedMongo.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	// Kafka producer
	producer := kafka.NewProducer(config.Kafka, logger, m)
	defer producer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	// Repositories
	outboxRepo := outboxMongo.NewOutboxRepository(instrumentedMongo.Database())
	productRepo := infraMongo.NewProductRepository(instrumentedMongo, outboxRepo, logger)
	movementRepo := infraMongo.NewMovementRepository(instrumentedMongo)
	dedupRepo := idempotency.NewMongoRepository(instrumentedMongo.Database())

	for name, ensure := range map[string]func(context.Context) error{
		"outbox":    outboxRepo.EnsureIndexes,
		"products":  productRepo.EnsureIndexes,
		"movements": movementRepo.EnsureIndexes,
		"dedup":     dedupRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			logger.WithError(err).Error("Failed to create indexes", "collection", name)
			os.Exit(1)
		}
	}

	// Outbox relay
	relay := outbox.NewRelay(outboxRepo, producer, logger, m, nil)
	if err := relay.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox relay")
		os.Exit(1)
	}
	defer relay.Stop()
	logger.Info("Outbox relay started")

	// Application services
	inventoryService := application.NewInventoryApplicationService(productRepo, movementRepo, m, logger)
	queryService := application.NewInventoryQueryService(productRepo, movementRepo, logger)

	// Work-order event consumer with durable dedup
	consumer := kafka.NewConsumer(config.Kafka, logger.Logger, m)
	workOrderHandler := eventHandlers.NewWorkOrderEventHandler(inventoryService, logger)
	workOrderHandler.Register(consumer, dedupRepo, m, serviceName, config.Kafka.ConsumerGroup)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() {
		if err := consumer.Start(consumerCtx); err != nil && consumerCtx.Err() == nil {
			logger.WithError(err).Error("Consumer stopped unexpectedly")
		}
	}()
	defer consumer.Close()
	logger.Info("Work-order consumer started", "group", config.Kafka.ConsumerGroup)

	// HTTP router
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middleware.Setup(router, middlewareConfig)
	router.Use(middleware.TenantContext(&middleware.TenantConfig{
		Required:        config.TenantRequired,
		DefaultTenantID: config.DefaultTenantID,
	}))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.SimpleTracingMiddleware(serviceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return instrumentedMongo.HealthCheck(ctx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	v1 := router.Group("/api/v1")
	{
		products := v1.Group("/products")
		{
			products.POST("", createProductHandler(inventoryService, logger))
			products.GET("", listProductsHandler(queryService, logger))
			products.GET("/low-stock", lowStockHandler(queryService, logger))
			products.GET("/:sku", getProductHandler(queryService, logger))
			products.PUT("/:sku", updateProductHandler(inventoryService, logger))
			products.PUT("/:sku/min-stock", setMinStockHandler(inventoryService, logger))
			products.PUT("/:sku/price", updateSellingPriceHandler(inventoryService, logger))
			products.GET("/:sku/availability", checkAvailabilityHandler(queryService, logger))

			products.POST("/:sku/stock", addStockHandler(inventoryService, logger))
			products.POST("/:sku/reserve", reserveStockHandler(inventoryService, logger))
			products.POST("/:sku/release", releaseReservationHandler(inventoryService, logger))
			products.POST("/:sku/consume", confirmConsumptionHandler(inventoryService, logger))
			products.POST("/:sku/adjust", adjustStockHandler(inventoryService, logger))

			products.GET("/:sku/movements", listMovementsHandler(queryService, logger))
		}

		v1.GET("/movements", movementsByReferenceHandler(queryService, logger))
	}

	// Operator-only surface. FAILED outbox messages stay quarantined until
	// someone requeues them here.
	internal := router.Group("/internal")
	{
		internal.POST("/outbox/:id/requeue", requeueOutboxHandler(outboxRepo, logger))
	}

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	stopConsumer()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr      string
	TenantRequired  bool
	DefaultTenantID string
	MongoDB         *mongodb.Config
	Kafka           *kafka.Config
}

func loadConfig() *Config {
	return &Config{
		ServerAddr:      getEnv("SERVER_ADDR", ":8002"),
		TenantRequired:  getEnv("TENANT_REQUIRED", "false") == "true",
		DefaultTenantID: getEnv("DEFAULT_TENANT_ID", "default"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "autofix_inventory"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		Kafka: &kafka.Config{
			Brokers:       []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			ConsumerGroup: serviceName,
			ClientID:      serviceName,
			BatchSize:     100,
			BatchTimeout:  10 * time.Millisecond,
			RequiredAcks:  -1,
			MinBytes:      1,
			MaxBytes:      10e6,
			MaxWait:       500 * time.Millisecond,
			CommitTimeout: time.Second,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// CreateProductRequest is the request body for creating a product
type CreateProductRequest struct {
	SKU           string `json:"sku" binding:"required,sku"`
	Name          string `json:"name" binding:"required,max=200"`
	Description   string `json:"description" binding:"max=2000"`
	UnitCost      int64  `json:"unitCost" binding:"gte=0"`
	Currency      string `json:"currency" binding:"required,currency"`
	InitialStock  int    `json:"initialStock" binding:"gte=0"`
	MinStockLevel int    `json:"minStockLevel" binding:"gte=0"`
}

// AddStockRequest is the request body for receiving stock
type AddStockRequest struct {
	Quantity    int    `json:"quantity" binding:"required,gt=0"`
	UnitCost    int64  `json:"unitCost" binding:"gte=0"`
	Currency    string `json:"currency" binding:"required,currency"`
	Reference   string `json:"reference" binding:"max=100"`
	PerformedBy string `json:"performedBy" binding:"max=100"`
}

// QuantityRequest is the request body for reserve and release operations.
// ReservationID names the hold so a retried request does not move stock twice.
type QuantityRequest struct {
	Quantity      int    `json:"quantity" binding:"required,gt=0"`
	Reference     string `json:"reference" binding:"max=100"`
	ReservationID string `json:"reservationId" binding:"omitempty,max=100"`
}

// ConsumeRequest is the request body for confirming consumption
type ConsumeRequest struct {
	Quantity      int    `json:"quantity" binding:"required,gt=0"`
	Reference     string `json:"reference" binding:"max=100"`
	ReservationID string `json:"reservationId" binding:"omitempty,max=100"`
	PerformedBy   string `json:"performedBy" binding:"max=100"`
}

// AdjustStockRequest is the request body for stock adjustments
type AdjustStockRequest struct {
	NewQuantity int    `json:"newQuantity" binding:"gte=0"`
	Reason      string `json:"reason" binding:"required,max=200"`
	AdjustedBy  string `json:"adjustedBy" binding:"max=100"`
}

// UpdateProductRequest is the request body for updating product details
type UpdateProductRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

// MinStockRequest is the request body for changing the reorder threshold
type MinStockRequest struct {
	Level int `json:"level" binding:"gte=0"`
}

// SellingPriceRequest is the request body for changing the list price
type SellingPriceRequest struct {
	Price    int64  `json:"price" binding:"gte=0"`
	Currency string `json:"currency" binding:"required,currency"`
}

func createProductHandler(service *application.InventoryApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req CreateProductRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"product.sku": req.SKU,
		})

		result, err := service.CreateProduct(c.Request.Context(), application.CreateProductCommand{
			SKU:           req.SKU,
			Name:          req.Name,
			Description:   req.Description,
			UnitCost:      req.UnitCost,
			Currency:      req.Currency,
			InitialStock:  req.InitialStock,
			MinStockLevel: req.MinStockLevel,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func getProductHandler(service *application.InventoryQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		result, err := service.GetProduct(c.Request.Context(), application.GetProductQuery{
			SKU: c.Param("sku"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func listProductsHandler(service *application.InventoryQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		page := api.ParsePagination(c)
		result, err := service.ListProducts(c.Request.Context(), application.ListProductsQuery{
			ActiveOnly: c.DefaultQuery("activeOnly", "false") == "true",
			Page:       page.Page,
			PageSize:   page.PageSize,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func lowStockHandler(service *application.InventoryQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		result, err := service.ListLowStockProducts(c.Request.Context())
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"items": result})
	}
}

func updateProductHandler(service *application.InventoryApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req UpdateProductRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.UpdateProduct(c.Request.Context(), application.UpdateProductCommand{
			SKU:         c.Param("sku"),
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func setMinStockHandler(service *application.InventoryApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req MinStockRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.SetMinStockLevel(c.Request.Context(), application.SetMinStockLevelCommand{
			SKU:   c.Param("sku"),
			Level: req.Level,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func updateSellingPriceHandler(service *application.InventoryApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req SellingPriceRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.UpdateSellingPrice(c.Request.Context(), application.UpdateSellingPriceCommand{
			SKU:      c.Param("sku"),
			Price:    req.Price,
			Currency: req.Currency,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func checkAvailabilityHandler(service *application.InventoryQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		quantity := queryInt(c, "quantity", 1)
		if quantity <= 0 {
			responder.RespondBadRequest("quantity must be positive")
			return
		}

		result, err := service.CheckAvailability(c.Request.Context(), application.CheckAvailabilityQuery{
			SKU:      c.Param("sku"),
			Quantity: quantity,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func addStockHandler(service *application.InventoryApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req AddStockRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"product.sku":    c.Param("sku"),
			"stock.quantity": req.Quantity,
		})

		result, err := service.AddStock(c.Request.Context(), application.AddStockCommand{
			SKU:         c.Param("sku"),
			Quantity:    req.Quantity,
			UnitCost:    req.UnitCost,
			Currency:    req.Currency,
			Reference:   req.Reference,
			PerformedBy: req.PerformedBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func reserveStockHandler(service *application.InventoryApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req QuantityRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.ReserveStock(c.Request.Context(), application.ReserveStockCommand{
			SKU:           c.Param("sku"),
			Quantity:      req.Quantity,
			Reference:     req.Reference,
			ReservationID: req.ReservationID,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func releaseReservationHandler(service *application.InventoryApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req QuantityRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.ReleaseReservation(c.Request.Context(), application.ReleaseReservationCommand{
			SKU:           c.Param("sku"),
			Quantity:      req.Quantity,
			Reference:     req.Reference,
			ReservationID: req.ReservationID,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func confirmConsumptionHandler(service *application.InventoryApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req ConsumeRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.ConfirmConsumption(c.Request.Context(), application.ConfirmConsumptionCommand{
			SKU:           c.Param("sku"),
			Quantity:      req.Quantity,
			Reference:     req.Reference,
			ReservationID: req.ReservationID,
			PerformedBy:   req.PerformedBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func adjustStockHandler(service *application.InventoryApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req AdjustStockRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.AdjustStock(c.Request.Context(), application.AdjustStockCommand{
			SKU:         c.Param("sku"),
			NewQuantity: req.NewQuantity,
			Reason:      req.Reason,
			AdjustedBy:  req.AdjustedBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func listMovementsHandler(service *application.InventoryQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		page := api.ParsePagination(c)
		query := application.ListMovementsQuery{
			SKU:      c.Param("sku"),
			Page:     page.Page,
			PageSize: page.PageSize,
		}

		if from := c.Query("from"); from != "" {
			parsed, err := time.Parse(time.RFC3339, from)
			if err != nil {
				responder.RespondBadRequest("from must be an RFC3339 timestamp")
				return
			}
			query.From = parsed
		}
		if to := c.Query("to"); to != "" {
			parsed, err := time.Parse(time.RFC3339, to)
			if err != nil {
				responder.RespondBadRequest("to must be an RFC3339 timestamp")
				return
			}
			query.To = parsed
		}

		result, err := service.ListMovements(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func movementsByReferenceHandler(service *application.InventoryQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		reference := c.Query("reference")
		if reference == "" {
			responder.RespondBadRequest("reference query parameter is required")
			return
		}

		result, err := service.GetMovementsByReference(c.Request.Context(), application.GetMovementsByReferenceQuery{
			Reference: reference,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"items": result})
	}
}

func requeueOutboxHandler(repo outbox.Repository, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)
		id := c.Param("id")

		msg, err := repo.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, outbox.ErrMessageNotFound) {
				responder.RespondNotFound("outbox message")
				return
			}
			responder.RespondInternalError(err)
			return
		}

		if msg.Status != outbox.StatusFailed {
			responder.RespondConflict("only FAILED messages can be requeued")
			return
		}

		if err := repo.Requeue(c.Request.Context(), id); err != nil {
			responder.RespondInternalError(err)
			return
		}

		logger.WithContext(c.Request.Context()).Info("Requeued outbox message",
			"messageId", id, "eventName", msg.EventName)
		c.Status(http.StatusNoContent)
	}
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}
