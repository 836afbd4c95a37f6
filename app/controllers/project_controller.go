package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/internal/pkg/projects"
	"github.com/videogen-ai/videogen/internal/pkg/usercontext"
)

type ProjectController struct {
	svc *projects.Service
}

func NewProjectController(svc *projects.Service) *ProjectController {
	return &ProjectController{svc: svc}
}

// HandleCreateFullVideo - POST /api/projects/create
func (pc *ProjectController) HandleCreateFullVideo(c *fiber.Ctx) error {
	var req projects.FullVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	project, err := pc.svc.Create(c.UserContext(), usercontext.GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"project": fiber.Map{
			"id":          project.ID,
			"title":       project.Title,
			"status":      project.Status,
			"creditsUsed": project.CreditsUsed,
		},
	})
}

// HandleCreateImages - POST /api/modules/images
func (pc *ProjectController) HandleCreateImages(c *fiber.Ctx) error {
	return pc.createModule(c, &projects.ImagesRequest{})
}

// HandleCreateScript - POST /api/modules/script
func (pc *ProjectController) HandleCreateScript(c *fiber.Ctx) error {
	return pc.createModule(c, &projects.ScriptRequest{})
}

// HandleCreateVoice - POST /api/modules/voice
func (pc *ProjectController) HandleCreateVoice(c *fiber.Ctx) error {
	return pc.createModule(c, &projects.VoiceRequest{})
}

func (pc *ProjectController) createModule(c *fiber.Ctx, req projects.Request) error {
	if err := c.BodyParser(req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	project, err := pc.svc.Create(c.UserContext(), usercontext.GetUserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "project": project})
}

// HandleList - GET /api/projects?limit=
func (pc *ProjectController) HandleList(c *fiber.Ctx) error {
	list, err := pc.svc.List(c.UserContext(), usercontext.GetUserID(c), c.QueryInt("limit", projects.DefaultListLimit))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"projects": list})
}

// HandleGet - GET /api/projects/:id
func (pc *ProjectController) HandleGet(c *fiber.Ctx) error {
	project, err := pc.svc.Get(c.UserContext(), usercontext.GetUserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(project)
}

// HandleUpdateProgress - PATCH /api/projects/:id/progress
// Called by the workflow engine, either with the shared secret or with the
// owner's token.
func (pc *ProjectController) HandleUpdateProgress(c *fiber.Ctx) error {
	var upd projects.ProgressUpdate
	if err := c.BodyParser(&upd); err != nil {
		return badRequest(c, "Invalid request body")
	}

	var (
		project *models.Project
		err     error
	)
	id := c.Params("id")
	if usercontext.IsWorkflowCaller(c) {
		project, err = pc.svc.UpdateProgress(c.UserContext(), id, upd)
	} else {
		project, err = pc.svc.UpdateProgressForOwner(c.UserContext(), usercontext.GetUserID(c), id, upd)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "project": project})
}
