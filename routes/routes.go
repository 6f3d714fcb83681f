package routes

import (
	"greenvale_go/controllers"
	"greenvale_go/database"
	"greenvale_go/handlers"
	"greenvale_go/middleware"
	"greenvale_go/services"
	"greenvale_go/services/websocket"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, wsHub *websocket.Hub, archive *services.LogArchiveService) {
	// Initialize controllers
	authController := &controllers.AuthController{}
	userController := &controllers.UserController{}
	studentController := &controllers.StudentController{}
	guardianController := &controllers.GuardianController{}
	teacherController := &controllers.TeacherController{}
	academicsController := &controllers.AcademicsController{}
	feeStructureController := &controllers.FeeStructureController{}
	studentFeeController := controllers.NewStudentFeeController()
	statementController := controllers.NewStatementController()
	dashboardController := controllers.NewDashboardController()
	homeworkController := controllers.NewHomeworkController()
	notificationController := &controllers.NotificationController{}
	smsController := controllers.NewSmsController()
	logController := controllers.NewLogController(archive)
	wsController := controllers.NewWebSocketController(wsHub)

	lineWebhook := handlers.NewLineWebhookHandler(database.GetDB())
	smsWebhook := handlers.NewSmsWebhookHandler()

	// API group
	api := app.Group("/api")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Provider webhooks authenticate with their own signatures
	api.Post("/webhooks/line", lineWebhook.Handle)
	api.Post("/webhooks/sms", smsWebhook.Handle)

	// Authentication routes (no middleware)
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)

	// Protected routes (require authentication)
	protected := api.Group("/", middleware.JWTMiddleware())

	protected.Get("/profile", authController.GetProfile)
	protected.Put("/profile/password", authController.ChangePassword)
	protected.Post("/auth/logout", authController.Logout)
	protected.Post("/auth/reset-by-admin", middleware.RequireAdmin(), authController.ResetPasswordByAdmin)

	// User management
	users := protected.Group("/users", middleware.RequirePermission(middleware.PermManageUsers))
	users.Get("/", userController.GetUsers)
	users.Post("/", authController.Register)
	users.Get("/:id", userController.GetUser)
	users.Put("/:id", userController.UpdateUser)
	users.Delete("/:id", userController.DeleteUser)
	// Users upload their own avatar, no manage permission needed
	protected.Post("/users/:id/avatar", userController.UploadAvatar)

	// Students
	students := protected.Group("/students")
	students.Get("/", middleware.RequirePermission(middleware.PermViewStudents), studentController.GetStudents)
	students.Get("/:id", middleware.RequirePermission(middleware.PermViewStudents), studentController.GetStudent)
	students.Post("/", middleware.RequirePermission(middleware.PermManageStudents), studentController.CreateStudent)
	students.Put("/:id", middleware.RequirePermission(middleware.PermManageStudents), studentController.UpdateStudent)
	students.Delete("/:id", middleware.RequirePermission(middleware.PermManageStudents), studentController.DeleteStudent)
	students.Get("/:id/payment-history", middleware.RequirePermission(middleware.PermViewStatements), studentFeeController.GetPaymentHistory)
	students.Get("/:id/statement", middleware.RequirePermission(middleware.PermViewStatements), statementController.DownloadStatement)

	// Guardians
	guardians := protected.Group("/guardians", middleware.RequirePermission(middleware.PermManageStudents))
	guardians.Get("/", guardianController.GetGuardians)
	guardians.Get("/:id", guardianController.GetGuardian)
	guardians.Post("/", guardianController.CreateGuardian)
	guardians.Put("/:id", guardianController.UpdateGuardian)
	guardians.Post("/:id/students", guardianController.LinkStudents)
	guardians.Delete("/:id", guardianController.DeleteGuardian)

	// Teachers
	teachers := protected.Group("/teachers", middleware.RequireAdmin())
	teachers.Get("/", teacherController.GetTeachers)
	teachers.Get("/:id", teacherController.GetTeacher)
	teachers.Post("/", teacherController.CreateTeacher)
	teachers.Put("/:id", teacherController.UpdateTeacher)
	teachers.Post("/:id/assignments", teacherController.AssignTeacher)
	teachers.Delete("/:id/assignments/:assignmentId", teacherController.RemoveAssignment)

	// Academic structure
	academics := protected.Group("/academics")
	academics.Get("/grades", academicsController.GetGrades)
	academics.Get("/years", academicsController.GetAcademicYears)
	manageAcademics := academics.Group("", middleware.RequirePermission(middleware.PermManageAcademics))
	manageAcademics.Post("/grades", academicsController.CreateGrade)
	manageAcademics.Put("/grades/:id", academicsController.UpdateGrade)
	manageAcademics.Post("/grades/:id/sections", academicsController.CreateSection)
	manageAcademics.Post("/years", academicsController.CreateAcademicYear)
	manageAcademics.Post("/years/:id/activate", academicsController.ActivateAcademicYear)
	manageAcademics.Post("/years/:id/terms", academicsController.CreateTerm)

	// Fee structures
	feeStructures := protected.Group("/fee-structures", middleware.RequirePermission(middleware.PermManageFees))
	feeStructures.Get("/", feeStructureController.GetFeeStructures)
	feeStructures.Get("/:id", feeStructureController.GetFeeStructure)
	feeStructures.Post("/", feeStructureController.CreateFeeStructure)
	feeStructures.Put("/:id", feeStructureController.UpdateFeeStructure)
	feeStructures.Delete("/:id", feeStructureController.DeactivateFeeStructure)
	feeStructures.Post("/:id/assign", feeStructureController.AssignFeeStructure)
	feeStructures.Post("/import", feeStructureController.Import)

	// Student fees and the payment ledger
	fees := protected.Group("/student-fees")
	fees.Get("/", middleware.RequirePermission(middleware.PermViewStatements), studentFeeController.GetStudentFees)
	fees.Get("/:id", middleware.RequirePermission(middleware.PermViewStatements), studentFeeController.GetStudentFee)
	recordFees := fees.Group("", middleware.RequirePermission(middleware.PermRecordPayments))
	recordFees.Post("/:id/payments", studentFeeController.RecordPayment)
	recordFees.Post("/:id/refunds", studentFeeController.RecordRefund)
	recordFees.Post("/:id/adjustments", studentFeeController.RecordAdjustment)
	recordFees.Post("/:id/credits", studentFeeController.ApplyCredit)

	// Receipts and statements
	statements := protected.Group("/statements", middleware.RequirePermission(middleware.PermViewStatements))
	statements.Get("/receipts/:id", statementController.DownloadReceipt)
	statements.Post("/receipts/bulk", statementController.DownloadBulkReceipts)
	statements.Get("/cohort", statementController.DownloadCohortStatements)

	// Homework
	homework := protected.Group("/homework")
	homework.Get("/", homeworkController.GetHomework)
	homework.Get("/:id", homeworkController.GetHomeworkDetail)
	homework.Get("/:id/attachment", homeworkController.DownloadAttachment)
	homework.Post("/", middleware.RequirePermission(middleware.PermAssignHomework), homeworkController.CreateHomework)
	homework.Post("/:id/attachment", middleware.RequirePermission(middleware.PermAssignHomework), homeworkController.UploadAttachment)
	homework.Post("/:id/close", middleware.RequirePermission(middleware.PermAssignHomework), homeworkController.CloseHomework)
	homework.Post("/:id/submissions", middleware.RequirePermission(middleware.PermSubmitHomework), homeworkController.SubmitHomework)
	homework.Put("/submissions/:submissionId/grade", middleware.RequirePermission(middleware.PermGradeHomework), homeworkController.GradeSubmission)

	// Notifications
	notifications := protected.Group("/notifications")
	notifications.Get("/", notificationController.GetNotifications)
	notifications.Put("/:id/read", notificationController.MarkRead)
	notifications.Put("/read-all", notificationController.MarkAllRead)

	// SMS
	sms := protected.Group("/sms", middleware.RequirePermission(middleware.PermSendSMS))
	sms.Post("/", smsController.SendSms)
	sms.Get("/logs", smsController.GetSmsLogs)
	sms.Post("/logs/:id/retry", smsController.RetrySms)
	sms.Get("/stats", smsController.GetSmsStats)

	// Dashboard
	dashboard := protected.Group("/dashboard", middleware.RequirePermission(middleware.PermViewDashboard))
	dashboard.Get("/", dashboardController.GetDashboard)
	dashboard.Get("/payment-summary", dashboardController.GetPaymentSummary)
	dashboard.Get("/payment-summary/export", dashboardController.ExportPaymentSummary)

	// Activity logs and archives
	logs := protected.Group("/logs", middleware.RequirePermission(middleware.PermViewActivityLogs))
	logs.Get("/", logController.GetActivityLogs)
	logs.Get("/archives", logController.GetLogArchives)
	logs.Get("/archives/:id/download", logController.DownloadLogArchive)

	// WebSocket
	app.Get("/ws", wsController.UpgradeCheck, wsController.Handler())
	protected.Get("/ws/stats", middleware.RequireAdmin(), wsController.Stats)
}
