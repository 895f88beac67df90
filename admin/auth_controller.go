package admin

import (
	"log"
	"net/http"

	"stock_api_backend/config"
	"stock_api_backend/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthController handles admin authentication
type AuthController struct{}

// NewAuthController creates a new auth controller
func NewAuthController() *AuthController {
	return &AuthController{}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies the admin credentials and issues a JWT
// POST /api/v1/admin/login
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "Username and password are required",
		})
		return
	}

	ip := c.ClientIP()

	if config.AppConfig.AdminPasswordHash == "" {
		log.Println("Admin login rejected: ADMIN_PASSWORD_HASH not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "unavailable",
			"message": "Admin login is not configured",
		})
		return
	}

	if req.Username != config.AppConfig.AdminUsername {
		log.Printf("Admin login failed for user %s: unknown user", req.Username)
		middleware.RecordLoginAttempt(ip, false)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Invalid username or password",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(config.AppConfig.AdminPasswordHash), []byte(req.Password)); err != nil {
		log.Printf("Admin login failed for user %s: invalid password", req.Username)
		middleware.RecordLoginAttempt(ip, false)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Invalid username or password",
		})
		return
	}

	token, err := middleware.GenerateAdminToken(req.Username)
	if err != nil {
		log.Printf("Failed to issue admin token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal",
			"message": "Failed to create session",
		})
		return
	}

	middleware.RecordLoginAttempt(ip, true)
	log.Printf("Admin user %s logged in successfully", req.Username)

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
	})
}
