package inventory

import (
	"bytes"
	"errors"

	"inventory-sync/core/bulk"
	"inventory-sync/core/logger"
	"inventory-sync/core/middleware/webhook"
	"inventory-sync/core/reconcile"
	"inventory-sync/core/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for inventory runs and bulk jobs.
type Handler struct {
	service       *Service
	logger        *zap.Logger
	webhookSecret string
}

// NewHandler creates a new HTTP handler. Webhook routes are only registered when a
// secret is set.
func NewHandler(service *Service, logger *zap.Logger, webhookSecret string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger, webhookSecret: webhookSecret}
}

// RegisterRoutes registers the inventory, job and webhook routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/inventory")
	group.Get("/locations", h.HandleLocations)
	group.Post("/export", h.HandleExport)
	group.Post("/import", h.HandleImport)
	group.Get("/runs", h.HandleListRuns)
	group.Get("/runs/:id", h.HandleGetRun)
	group.Delete("/runs/:id/artifacts", h.HandlePurgeRun)

	jobs := app.Group("/jobs")
	jobs.Get("/current", h.HandleCurrentJob)
	jobs.Post("/current/cancel", h.HandleCancelJob)

	if h.webhookSecret != "" {
		app.Post("/webhooks/bulk-operations", webhook.New(h.webhookSecret), h.HandleBulkWebhook)
	}
}

// HandleLocations lists the remote stock locations.
// @Summary List Locations
// @Tags inventory
// @Produce json
// @Success 200 {array} reconcile.Location
// @Router /inventory/locations [get]
func (h *Handler) HandleLocations(c *fiber.Ctx) error {
	locations, err := h.service.Locations(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(locations)
}

// HandleExport runs an export, or starts it in the background with ?async=true.
// @Summary Export Inventory
// @Tags inventory
// @Accept json
// @Produce json
// @Param async query bool false "Run in the background"
// @Success 200 {object} ExportResult
// @Success 202 {object} map[string]string "Run started"
// @Failure 409 {object} map[string]string "Another run is in progress"
// @Router /inventory/export [post]
func (h *Handler) HandleExport(c *fiber.Ctx) error {
	var req ExportRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	if req.Location == "" {
		req.Location = c.Query("location")
	}

	if utils.ToBool(c.Query("async")) {
		runID, err := h.service.StartExport(req)
		if err != nil {
			return h.fail(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"run_id": runID})
	}

	res, err := h.service.Export(c.Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

// HandleImport accepts a CSV sheet and starts an import in the background.
// @Summary Import Inventory
// @Tags inventory
// @Accept text/csv
// @Produce json
// @Param location query string false "Target location (name or id)"
// @Param all_locations query bool false "Rows name their own location"
// @Param dry_run query bool false "Classify only"
// @Success 202 {object} map[string]string "Run started"
// @Failure 400 {object} map[string]string "Invalid sheet"
// @Failure 409 {object} map[string]string "Another run is in progress"
// @Router /inventory/import [post]
func (h *Handler) HandleImport(c *fiber.Ctx) error {
	// Fiber reuses the body buffer after the handler returns.
	sheet := bytes.Clone(c.Body())
	rows, err := DecodeRows(bytes.NewReader(sheet))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	runID, err := h.service.StartImport(ImportRequest{
		Rows:         rows,
		Location:     c.Query("location"),
		AllLocations: utils.ToBool(c.Query("all_locations")),
		DryRun:       utils.ToBool(c.Query("dry_run")),
		Source:       "http",
		Sheet:        sheet,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"run_id": runID, "rows": len(rows)})
}

// HandleListRuns lists recent runs.
// @Summary List Runs
// @Tags inventory
// @Produce json
// @Param limit query int false "Maximum number of runs"
// @Router /inventory/runs [get]
func (h *Handler) HandleListRuns(c *fiber.Ctx) error {
	runs, err := h.service.ListRuns(c.Context(), c.QueryInt("limit", 20))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(runs)
}

// HandleGetRun returns one run.
// @Summary Get Run
// @Tags inventory
// @Produce json
// @Param id path string true "Run id"
// @Router /inventory/runs/{id} [get]
func (h *Handler) HandleGetRun(c *fiber.Ctx) error {
	run, err := h.service.GetRun(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(run)
}

// HandlePurgeRun deletes the archived artifacts of a run.
// @Summary Purge Run Artifacts
// @Tags inventory
// @Param id path string true "Run id"
// @Router /inventory/runs/{id}/artifacts [delete]
func (h *Handler) HandlePurgeRun(c *fiber.Ctx) error {
	removed, err := h.service.PurgeRun(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}

// HandleCurrentJob returns the active bulk job.
// @Summary Current Job
// @Tags jobs
// @Produce json
// @Success 200 {object} bulk.Job
// @Failure 404 {object} map[string]string "No active job"
// @Router /jobs/current [get]
func (h *Handler) HandleCurrentJob(c *fiber.Ctx) error {
	job, err := h.service.CurrentJob(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(job)
}

// HandleCancelJob cancels the active bulk job.
// @Summary Cancel Job
// @Tags jobs
// @Produce json
// @Router /jobs/current/cancel [post]
func (h *Handler) HandleCancelJob(c *fiber.Ctx) error {
	job, err := h.service.CancelCurrent(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(job)
}

type bulkWebhook struct {
	AdminGraphqlAPIID string `json:"admin_graphql_api_id"`
	Status            string `json:"status"`
	Type              string `json:"type"`
}

// HandleBulkWebhook polls the job named by a bulk operation finish notification.
func (h *Handler) HandleBulkWebhook(c *fiber.Ctx) error {
	var payload bulkWebhook
	if err := c.BodyParser(&payload); err != nil || payload.AdminGraphqlAPIID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid notification"})
	}

	job, err := h.service.NotifyJobFinished(c.Context(), payload.AdminGraphqlAPIID)
	if errors.Is(err, ErrUnknownJob) {
		// Not ours. Acknowledge so the sender stops retrying.
		logger.WithRayID(h.logger, c).Info("Ignoring notification for unknown job",
			zap.String("job_id", payload.AdminGraphqlAPIID))
		return c.SendStatus(fiber.StatusOK)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(job)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.WithRayID(h.logger, c).Error("Inventory request failed", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var conflict *bulk.ConflictError
	switch {
	case errors.Is(err, ErrBusy), errors.As(err, &conflict):
		return fiber.StatusConflict
	case errors.Is(err, ErrNoActiveJob), errors.Is(err, ErrRunNotFound),
		errors.Is(err, ErrUnknownJob), errors.Is(err, reconcile.ErrUnknownLocation):
		return fiber.StatusNotFound
	case errors.Is(err, ErrLocationRequired):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNoLedger), errors.Is(err, ErrNoArchive):
		return fiber.StatusNotImplemented
	default:
		return fiber.StatusInternalServerError
	}
}
