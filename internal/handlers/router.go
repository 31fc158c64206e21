package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/EduOps-2025/school-service/internal/config"
	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/services"
	"github.com/EduOps-2025/school-service/internal/utils"
)

type HandlerManager struct {
	classHandler        *ClassHandler
	teacherHandler      *TeacherHandler
	studentHandler      *StudentHandler
	promoCodeHandler    *PromoCodeHandler
	wizardHandler       *WizardHandler
	importExportHandler *ImportExportHandler
	userHandler         *UserHandler
	authMiddleware      *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		classHandler:        NewClassHandler(serviceManager.Class(), logger),
		teacherHandler:      NewTeacherHandler(serviceManager.Teacher(), logger),
		studentHandler:      NewStudentHandler(serviceManager.Student(), logger),
		promoCodeHandler:    NewPromoCodeHandler(serviceManager.PromoCode(), logger),
		wizardHandler:       NewWizardHandler(serviceManager.Wizard(), logger),
		importExportHandler: NewImportExportHandler(serviceManager.ImportExport(), logger),
		userHandler:         NewUserHandler(userRepo, logger),
		authMiddleware:      authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Public routes. Redemption works for anonymous visitors; a valid
	// token enriches the request with the caller's account.
	public := router.Group("/api/v1/public")
	public.Use(hm.authMiddleware.OptionalAuthMiddleware())
	{
		public.POST("/promo-codes/redeem", hm.promoCodeHandler.RedeemCode)
	}

	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Class routes
		classes := v1.Group("/classes")
		{
			// Create/modify classes - Teachers and Admins only
			classes.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.classHandler.CreateClass)
			classes.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.classHandler.UpdateClass)
			classes.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.classHandler.DeleteClass)
			classes.DELETE("/batch", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.classHandler.DeleteClassesBatch)

			// View classes - All authenticated users
			classes.GET("", hm.classHandler.ListClasses)
			classes.GET("/search", hm.classHandler.SearchClasses)
			classes.GET("/:id", hm.classHandler.GetClass)
			classes.GET("/:id/students", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.classHandler.GetClassStudents)

			// Teacher assignment - Admins only
			classes.PUT("/:id/teacher", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.classHandler.AssignTeacher)
			classes.DELETE("/:id/teacher", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.classHandler.UnassignTeacher)
		}

		// Teacher routes - Admins only for account management
		teachers := v1.Group("/teachers")
		{
			teachers.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.teacherHandler.CreateTeacher)
			teachers.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.teacherHandler.UpdateTeacher)
			teachers.POST("/:id/role", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.teacherHandler.AssignTeacherRole)
			teachers.DELETE("/:id/role", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.teacherHandler.RemoveTeacherRole)
			teachers.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.teacherHandler.DeleteTeacher)

			teachers.GET("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.teacherHandler.ListTeachers)
			teachers.GET("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.teacherHandler.GetTeacher)
			teachers.GET("/:id/classes", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.teacherHandler.GetTeacherClasses)
		}

		// Student roster routes - Teachers and Admins
		students := v1.Group("/students")
		{
			students.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.studentHandler.CreateStudent)
			students.GET("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.studentHandler.ListStudents)
			students.GET("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.studentHandler.GetStudent)
			students.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.studentHandler.UpdateStudent)
			students.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.studentHandler.DeleteStudent)
			students.POST("/batch", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.studentHandler.BulkStudentAction)

			// Self-service routes for signed-in students
			students.GET("/me/classes", hm.studentHandler.GetMyClasses)
			students.POST("/me/classes/:class_id", hm.studentHandler.EnsureEnrollment)
		}

		// Promo code routes - Teachers and Admins only
		promoCodes := v1.Group("/promo-codes")
		promoCodes.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin))
		{
			promoCodes.POST("/generate", hm.promoCodeHandler.GenerateCodes)
			promoCodes.GET("", hm.promoCodeHandler.ListCodes)
			promoCodes.GET("/:id", hm.promoCodeHandler.GetCode)
			promoCodes.PUT("/:id", hm.promoCodeHandler.UpdateCode)
			promoCodes.DELETE("/:id", hm.promoCodeHandler.DeleteCode)
			promoCodes.DELETE("/batch", hm.promoCodeHandler.DeleteCodesBatch)
		}

		// Setup wizard routes - Admins only
		wizard := v1.Group("/wizard")
		wizard.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin))
		{
			wizard.POST("", hm.wizardHandler.StartWizard)
			wizard.GET("/:session_id", hm.wizardHandler.GetWizardSession)
			wizard.POST("/:session_id/teacher", hm.wizardHandler.SubmitTeacherStep)
			wizard.POST("/:session_id/class", hm.wizardHandler.SubmitClassStep)
			wizard.POST("/:session_id/promo-codes", hm.wizardHandler.SubmitPromoCodeStep)
			wizard.POST("/:session_id/complete", hm.wizardHandler.CompleteWizard)
		}

		// Import/export routes - Teachers and Admins; imports are further
		// restricted inside the service
		exports := v1.Group("/export")
		exports.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin))
		{
			exports.GET("/:type", hm.importExportHandler.ExportData)
		}

		imports := v1.Group("/import")
		imports.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin))
		{
			imports.POST("/:type", hm.importExportHandler.ImportData)
			imports.GET("/:type/sample", hm.importExportHandler.SampleCSV)
		}

		// User routes (directory lookups)
		users := v1.Group("/users")
		{
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/search", hm.userHandler.SearchUsers)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "school-service",
		})
	})
}
