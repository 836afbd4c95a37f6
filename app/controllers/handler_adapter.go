package controllers

import "github.com/gofiber/fiber/v2"

// Adapter functions used by the router

func HandleRegister(c *fiber.Ctx) error       { return authController.HandleRegister(c) }
func HandleLogin(c *fiber.Ctx) error          { return authController.HandleLogin(c) }
func HandleVerifyEmail(c *fiber.Ctx) error    { return authController.HandleVerifyEmail(c) }
func HandleForgotPassword(c *fiber.Ctx) error { return authController.HandleForgotPassword(c) }
func HandleResetPassword(c *fiber.Ctx) error  { return authController.HandleResetPassword(c) }

func HandleCreateCheckout(c *fiber.Ctx) error { return paymentController.HandleCreateCheckout(c) }
func HandleListPlans(c *fiber.Ctx) error      { return paymentController.HandleListPlans(c) }
func HandleListSubscriptions(c *fiber.Ctx) error {
	return paymentController.HandleListSubscriptions(c)
}

func HandleLinkWebhook(c *fiber.Ctx) error   { return webhookController.HandleLinkWebhook(c) }
func HandleStripeWebhook(c *fiber.Ctx) error { return webhookController.HandleStripeWebhook(c) }

func HandleCreateFullVideo(c *fiber.Ctx) error { return projectController.HandleCreateFullVideo(c) }
func HandleCreateImages(c *fiber.Ctx) error    { return projectController.HandleCreateImages(c) }
func HandleCreateScript(c *fiber.Ctx) error    { return projectController.HandleCreateScript(c) }
func HandleCreateVoice(c *fiber.Ctx) error     { return projectController.HandleCreateVoice(c) }
func HandleListProjects(c *fiber.Ctx) error    { return projectController.HandleList(c) }
func HandleGetProject(c *fiber.Ctx) error      { return projectController.HandleGet(c) }
func HandleUpdateProgress(c *fiber.Ctx) error  { return projectController.HandleUpdateProgress(c) }

func HandleMe(c *fiber.Ctx) error           { return userController.HandleMe(c) }
func HandleCredits(c *fiber.Ctx) error      { return userController.HandleCredits(c) }
func HandleTransactions(c *fiber.Ctx) error { return userController.HandleTransactions(c) }
func HandleUserStats(c *fiber.Ctx) error    { return userController.HandleStats(c) }

func HandleHealth(c *fiber.Ctx) error { return healthController.HandleHealth(c) }
