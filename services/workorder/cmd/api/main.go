package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autofix-platform/autofix/pkg/api"
	"github.com/autofix-platform/autofix/pkg/kafka"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"
	"github.com/autofix-platform/autofix/pkg/middleware"
	"github.com/autofix-platform/autofix/pkg/mongodb"
	"github.com/autofix-platform/autofix/pkg/outbox"
	outboxMongo "github.com/autofix-platform/autofix/pkg/outbox/mongodb"
	"github.com/autofix-platform/autofix/pkg/tracing"

	"github.com/autofix-platform/autofix/services/workorder/internal/application"
	"github.com/autofix-platform/autofix/services/workorder/internal/infrastructure/inventory"
	infraMongo "github.com/autofix-platform/autofix/services/workorder/internal/infrastructure/mongodb"
)

const serviceName = "workorder-service"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting workorder-service API")

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

	// Kafka producer. This service only publishes; consumption of its
	// events happens in inventory-service.
	producer := kafka.NewProducer(config.Kafka, logger, m)
	defer producer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	// Repositories
	outboxRepo := outboxMongo.NewOutboxRepository(instrumentedMongo.Database())
	orderRepo := infraMongo.NewWorkOrderRepository(instrumentedMongo, outboxRepo, logger)

	for name, ensure := range map[string]func(context.Context) error{
		"outbox":      outboxRepo.EnsureIndexes,
		"work_orders": orderRepo.EnsureIndexes,
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

	// Inventory HTTP client behind a circuit breaker
	inventoryClient := inventory.NewClient(config.InventoryBaseURL, m, logger)

	// Application services
	orderService := application.NewWorkOrderApplicationService(orderRepo, inventoryClient, m, logger)
	queryService := application.NewWorkOrderQueryService(orderRepo, logger)

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
		orders := v1.Group("/work-orders")
		{
			orders.POST("", createWorkOrderHandler(orderService, logger))
			orders.GET("", listWorkOrdersHandler(queryService, logger))
			orders.GET("/:id", getWorkOrderHandler(queryService, logger))
			orders.GET("/number/:orderNumber", getByOrderNumberHandler(queryService, logger))

			orders.POST("/:id/items/part", addPartItemHandler(orderService, logger))
			orders.POST("/:id/items/service", addServiceItemHandler(orderService, logger))
			orders.DELETE("/:id/items/:itemId", removeItemHandler(orderService, logger))

			orders.PUT("/:id/notes", updateNotesHandler(orderService, logger))
			orders.PUT("/:id/status", changeStatusHandler(orderService, logger))
		}
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr       string
	TenantRequired   bool
	DefaultTenantID  string
	InventoryBaseURL string
	MongoDB          *mongodb.Config
	Kafka            *kafka.Config
}

func loadConfig() *Config {
	return &Config{
		ServerAddr:       getEnv("SERVER_ADDR", ":8001"),
		TenantRequired:   getEnv("TENANT_REQUIRED", "false") == "true",
		DefaultTenantID:  getEnv("DEFAULT_TENANT_ID", "default"),
		InventoryBaseURL: getEnv("INVENTORY_SERVICE_URL", "http://localhost:8002"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "autofix_workorder"),
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

// CreateWorkOrderRequest is the request body for opening a work order
type CreateWorkOrderRequest struct {
	CustomerID    string `json:"customerId" binding:"required,max=100"`
	CustomerName  string `json:"customerName" binding:"required,max=200"`
	CustomerPhone string `json:"customerPhone" binding:"max=50"`
	CustomerEmail string `json:"customerEmail" binding:"omitempty,email"`

	VehicleID           string `json:"vehicleId" binding:"required,max=100"`
	VehicleMake         string `json:"vehicleMake" binding:"required,max=100"`
	VehicleModel        string `json:"vehicleModel" binding:"required,max=100"`
	VehicleYear         int    `json:"vehicleYear" binding:"omitempty,gte=1900,lte=2100"`
	VehicleLicensePlate string `json:"vehicleLicensePlate" binding:"max=20"`
	VehicleVIN          string `json:"vehicleVin" binding:"max=17"`

	Notes string `json:"notes" binding:"max=2000"`
}

// AddPartItemRequest is the request body for adding a part line
type AddPartItemRequest struct {
	SKU       string `json:"sku" binding:"required,sku"`
	PartName  string `json:"partName" binding:"required,max=200"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	UnitPrice int64  `json:"unitPrice" binding:"gte=0"`
	Discount  int64  `json:"discount" binding:"gte=0"`
	Currency  string `json:"currency" binding:"required,currency"`
}

// AddServiceItemRequest is the request body for adding a labor line
type AddServiceItemRequest struct {
	ServiceCode string `json:"serviceCode" binding:"required,max=100"`
	Technician  string `json:"technician" binding:"required,max=100"`
	Quantity    int    `json:"quantity" binding:"required,gt=0"`
	UnitPrice   int64  `json:"unitPrice" binding:"gte=0"`
	Discount    int64  `json:"discount" binding:"gte=0"`
	Currency    string `json:"currency" binding:"required,currency"`
}

// UpdateNotesRequest is the request body for replacing the notes
type UpdateNotesRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// ChangeStatusRequest is the request body for a status transition
type ChangeStatusRequest struct {
	Status    string `json:"status" binding:"required,work_order_status"`
	ChangedBy string `json:"changedBy" binding:"max=100"`
}

func createWorkOrderHandler(service *application.WorkOrderApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req CreateWorkOrderRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"customer.id": req.CustomerID,
			"vehicle.id":  req.VehicleID,
		})

		result, err := service.CreateWorkOrder(c.Request.Context(), application.CreateWorkOrderCommand{
			CustomerID:    req.CustomerID,
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
			CustomerEmail: req.CustomerEmail,
			VehicleID:     req.VehicleID,
			VehicleMake:   req.VehicleMake,
			VehicleModel:  req.VehicleModel,
			VehicleYear:   req.VehicleYear,
			LicensePlate:  req.VehicleLicensePlate,
			VIN:           req.VehicleVIN,
			Notes:         req.Notes,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

func getWorkOrderHandler(service *application.WorkOrderQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		result, err := service.GetWorkOrder(c.Request.Context(), application.GetWorkOrderQuery{
			WorkOrderID: c.Param("id"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func getByOrderNumberHandler(service *application.WorkOrderQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		result, err := service.GetWorkOrderByNumber(c.Request.Context(), application.GetWorkOrderByNumberQuery{
			OrderNumber: c.Param("orderNumber"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func listWorkOrdersHandler(service *application.WorkOrderQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		page := api.ParsePagination(c)
		result, err := service.ListWorkOrders(c.Request.Context(), application.ListWorkOrdersQuery{
			Status:   c.Query("status"),
			Page:     page.Page,
			PageSize: page.PageSize,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func addPartItemHandler(service *application.WorkOrderApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req AddPartItemRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"workorder.id": c.Param("id"),
			"part.sku":     req.SKU,
		})

		result, err := service.AddPartItem(c.Request.Context(), application.AddPartItemCommand{
			WorkOrderID: c.Param("id"),
			SKU:         req.SKU,
			PartName:    req.PartName,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
			Discount:    req.Discount,
			Currency:    req.Currency,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func addServiceItemHandler(service *application.WorkOrderApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req AddServiceItemRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.AddServiceItem(c.Request.Context(), application.AddServiceItemCommand{
			WorkOrderID: c.Param("id"),
			ServiceCode: req.ServiceCode,
			Technician:  req.Technician,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
			Discount:    req.Discount,
			Currency:    req.Currency,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func removeItemHandler(service *application.WorkOrderApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		result, err := service.RemoveItem(c.Request.Context(), application.RemoveItemCommand{
			WorkOrderID: c.Param("id"),
			ItemID:      c.Param("itemId"),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func updateNotesHandler(service *application.WorkOrderApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req UpdateNotesRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.UpdateNotes(c.Request.Context(), application.UpdateNotesCommand{
			WorkOrderID: c.Param("id"),
			Notes:       req.Notes,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func changeStatusHandler(service *application.WorkOrderApplicationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req ChangeStatusRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"workorder.id":     c.Param("id"),
			"workorder.status": req.Status,
		})

		result, err := service.ChangeStatus(c.Request.Context(), application.ChangeStatusCommand{
			WorkOrderID: c.Param("id"),
			Status:      req.Status,
			ChangedBy:   req.ChangedBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
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
