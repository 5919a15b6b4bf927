package handlers

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/middleware"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/services"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GamificationHandlers bundles the services behind the HTTP surface.
type GamificationHandlers struct {
	Actors      *services.ActorService
	Ledger      *services.PointLedger
	Catalog     *services.MiningTaskCatalog
	Actions     *services.ActionService
	Redemptions *services.RedemptionWorkflow
	Config      *services.ConfigStore
	Uploader    utils.EvidenceUploader // nil disables file uploads
	Now         func() time.Time
}

var evidenceExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".pdf": true,
}

func SetupGamificationRoutes(app *fiber.App, h *GamificationHandlers) {
	if h.Now == nil {
		h.Now = time.Now
	}

	// 📡 Registered ahead of the group: EventSource clients pass the actor id as a query param
	app.Get("/gamification/stream", middleware.SSEActorMiddleware(), h.Ledger.StreamLedgerSSE)

	// 🔐 Actor routes, require actor context
	g := app.Group("/gamification", middleware.ActorContextMiddleware())

	g.Get("/state", h.getState)
	g.Get("/ledger", h.getLedger)
	g.Get("/tasks", h.listTasks)
	g.Post("/tasks/:id/complete", h.completeTask)
	g.Post("/actions/:key", h.performAction)
	g.Put("/eth-address", h.setEthAddress)
	g.Post("/redemptions", h.submitRedemption)
	g.Get("/redemptions/mine", h.listMyRedemptions)

	// 🛡️ Admin routes
	admin := app.Group("/admin/gamification", middleware.ActorContextMiddleware(), middleware.RequireAdmin())

	admin.Post("/points", h.adjustPoints)
	admin.Get("/actors/:id", h.getActor)
	admin.Post("/actors/:id/nft", h.awardNft)

	admin.Get("/redemptions", h.listRedemptions)
	admin.Get("/redemptions/:id", h.getRedemption)
	admin.Post("/redemptions/:id/approve", h.approveRedemption)
	admin.Post("/redemptions/:id/reject", h.rejectRedemption)

	admin.Get("/settings", h.getSettings)
	admin.Put("/settings", h.updateSettings)

	admin.Get("/tasks", h.listAllTasks)
	admin.Post("/tasks", h.createTask)
	admin.Put("/tasks/:id", h.updateTask)
	admin.Post("/tasks/:id/enabled", h.setTaskEnabled)
}

func actorID(c *fiber.Ctx) string {
	id, _ := c.Locals("actor_id").(string)
	return id
}

// respondError maps service errors onto status codes.
func respondError(c *fiber.Ctx, err error) error {
	var cd *services.CooldownError
	switch {
	case errors.As(err, &cd):
		secs := int64(math.Ceil(cd.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", secs))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":               err.Error(),
			"action":              cd.ActionKey,
			"retry_after_seconds": secs,
		})
	case errors.Is(err, services.ErrTaskUnavailable),
		errors.Is(err, services.ErrRedemptionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrAlreadyDecided):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNFTExchangeInactive):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidActor),
		errors.Is(err, services.ErrInvalidTask),
		errors.Is(err, services.ErrInvalidSettings),
		errors.Is(err, services.ErrUnknownClaimType),
		errors.Is(err, services.ErrMissingEvidence),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidEthAddress),
		errors.Is(err, services.ErrEthAddressRequired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrTransient):
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": services.ErrTransient.Error()})
	}
	utils.LogError("❌ %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

// withState attaches the authoritative actor state to a mutation response.
func (h *GamificationHandlers) withState(c *fiber.Ctx, status int, id string, body fiber.Map) error {
	state, err := h.Actors.GetState(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	body["state"] = state
	return c.Status(status).JSON(body)
}

// --- Actor Handlers ---

func (h *GamificationHandlers) getState(c *fiber.Ctx) error {
	state, err := h.Actors.GetState(c.UserContext(), actorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

func (h *GamificationHandlers) getLedger(c *fiber.Ctx) error {
	entries, err := h.Ledger.ListLedger(c.UserContext(), actorID(c), c.QueryInt("limit", 50))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func (h *GamificationHandlers) listTasks(c *fiber.Ctx) error {
	tasks, err := h.Catalog.ListForActor(c.UserContext(), actorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *GamificationHandlers) completeTask(c *fiber.Ctx) error {
	id := actorID(c)
	res, err := h.Catalog.Complete(c.UserContext(), id, c.Params("id"), h.Now())
	if err != nil {
		return respondError(c, err)
	}
	return h.withState(c, fiber.StatusOK, id, fiber.Map{"result": res})
}

func (h *GamificationHandlers) performAction(c *fiber.Ctx) error {
	id := actorID(c)
	res, err := h.Actions.Perform(c.UserContext(), id, c.Params("key"), h.Now())
	if err != nil {
		return respondError(c, err)
	}
	return h.withState(c, fiber.StatusOK, id, fiber.Map{"result": res})
}

func (h *GamificationHandlers) setEthAddress(c *fiber.Ctx) error {
	var req struct {
		EthAddress string `json:"eth_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	state, err := h.Actors.SetEthAddress(c.UserContext(), actorID(c), req.EthAddress)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// submitRedemption accepts JSON with an evidence_url, or multipart with an
// "evidence" file that is uploaded first.
func (h *GamificationHandlers) submitRedemption(c *fiber.Ctx) error {
	var sub services.Submission
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		sub = services.Submission{
			ClaimType:   models.ClaimType(c.FormValue("claim_type")),
			FullName:    c.FormValue("full_name"),
			Email:       c.FormValue("email"),
			Contact:     c.FormValue("contact"),
			EvidenceURL: c.FormValue("evidence_url"),
		}
		if fh, err := c.FormFile("evidence"); err == nil {
			if h.Uploader == nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file uploads are disabled, send evidence_url"})
			}
			ext := strings.ToLower(filepath.Ext(fh.Filename))
			if !evidenceExtensions[ext] {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported evidence file type"})
			}
			url, err := h.Uploader.Upload(c.UserContext(), fh, "evidence/"+uuid.NewString()+ext)
			if err != nil {
				utils.LogError("Evidence upload failed for %s: %v", actorID(c), err)
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "evidence upload failed"})
			}
			sub.EvidenceURL = url
		}
	} else if err := c.BodyParser(&sub); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req, err := h.Redemptions.Submit(c.UserContext(), actorID(c), sub)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

func (h *GamificationHandlers) listMyRedemptions(c *fiber.Ctx) error {
	reqs, err := h.Redemptions.ListForActor(c.UserContext(), actorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"redemptions": reqs})
}

// --- Admin Handlers ---

func (h *GamificationHandlers) adjustPoints(c *fiber.Ctx) error {
	var req struct {
		ActorID string `json:"actor_id"`
		Amount  int64  `json:"amount"`
		Note    string `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	note := req.Note
	if note == "" {
		note = "admin:" + actorID(c)
	}
	res, err := h.Actors.AdjustPoints(c.UserContext(), req.ActorID, req.Amount, note)
	if err != nil {
		return respondError(c, err)
	}
	return h.withState(c, fiber.StatusOK, req.ActorID, fiber.Map{"result": res})
}

func (h *GamificationHandlers) getActor(c *fiber.Ctx) error {
	state, err := h.Actors.GetState(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

func (h *GamificationHandlers) awardNft(c *fiber.Ctx) error {
	res, err := h.Actors.AwardNft(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *GamificationHandlers) listRedemptions(c *fiber.Ctx) error {
	reqs, err := h.Redemptions.List(c.UserContext(), models.RedemptionStatus(c.Query("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"redemptions": reqs})
}

func (h *GamificationHandlers) getRedemption(c *fiber.Ctx) error {
	req, err := h.Redemptions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

func (h *GamificationHandlers) approveRedemption(c *fiber.Ctx) error {
	req, credit, err := h.Redemptions.Approve(c.UserContext(), c.Params("id"), actorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return h.withState(c, fiber.StatusOK, req.ActorID, fiber.Map{"redemption": req, "credit": credit})
}

func (h *GamificationHandlers) rejectRedemption(c *fiber.Ctx) error {
	var body struct {
		Notes string `json:"notes"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}
	req, err := h.Redemptions.Reject(c.UserContext(), c.Params("id"), actorID(c), body.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

func (h *GamificationHandlers) getSettings(c *fiber.Ctx) error {
	return c.JSON(h.Config.Settings())
}

// updateSettings decodes strictly: unknown keys are rejected, not ignored.
func (h *GamificationHandlers) updateSettings(c *fiber.Ctx) error {
	settings, err := services.DecodeSettings(c.Body())
	if err != nil {
		return respondError(c, err)
	}
	saved, err := h.Config.Update(c.UserContext(), settings, actorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(saved)
}

func (h *GamificationHandlers) listAllTasks(c *fiber.Ctx) error {
	tasks, err := h.Catalog.ListAll(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *GamificationHandlers) createTask(c *fiber.Ctx) error {
	var in services.TaskInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	task, err := h.Catalog.CreateTask(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *GamificationHandlers) updateTask(c *fiber.Ctx) error {
	var in services.TaskInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	task, err := h.Catalog.UpdateTask(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(task)
}

func (h *GamificationHandlers) setTaskEnabled(c *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.Catalog.SetEnabled(c.UserContext(), c.Params("id"), req.Enabled); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "enabled": req.Enabled})
}
