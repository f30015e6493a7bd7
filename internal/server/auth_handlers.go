package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"murmur/internal/auth"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new user account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string,name=string} true "Signup request"
// @Success 201 {object} object{success=bool,token=string,user=models.Account}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return respondError(c, err)
	}
	return s.respondWithSession(c, fiber.StatusCreated, user)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} object{success=bool,token=string,user=models.Account}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.Login(c.UserContext(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return s.respondWithSession(c, fiber.StatusOK, user)
}

func (s *Server) respondWithSession(c *fiber.Ctx, status int, user *models.User) error {
	token, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return respond(c, status, fiber.Map{"token": token, "user": user.Account()})
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} object{success=bool,user=models.Account}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	account, err := s.userService.GetAccount(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"user": account})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
// @Summary Logout
// @Tags auth
// @Produce json
// @Success 200 {object} object{success=bool,message=string}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, _ := c.Locals("claims").(auth.Claims)
	if err := s.sessions.Revoke(c.UserContext(), claims.JTI, claims.ExpiresAt); err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return respond(c, fiber.StatusOK, fiber.Map{"message": "Logged out"})
}

func newOAuthState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GoogleLogin handles GET /api/auth/google by redirecting to the consent page.
// @Summary Start Google sign-in
// @Tags auth
// @Success 307
// @Failure 404 {object} models.ErrorResponse
// @Router /auth/google [get]
func (s *Server) GoogleLogin(c *fiber.Ctx) error {
	if s.google == nil {
		return respondError(c, &models.AppError{Code: models.CodeNotFound, Message: "Google sign-in is not configured"})
	}
	state, err := newOAuthState()
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		Expires:  time.Now().Add(oauthStateTTL),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(s.google.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

// GoogleCallback handles GET /api/auth/google/callback. On success it
// redirects to the frontend with the access token in the URL fragment.
// @Summary Finish Google sign-in
// @Tags auth
// @Param code query string true "Authorization code"
// @Param state query string true "State"
// @Success 307
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/google/callback [get]
func (s *Server) GoogleCallback(c *fiber.Ctx) error {
	if s.google == nil {
		return respondError(c, &models.AppError{Code: models.CodeNotFound, Message: "Google sign-in is not configured"})
	}
	ctx := c.UserContext()

	state := c.Query("state")
	if state == "" || state != c.Cookies(oauthStateCookie) {
		return respondError(c, models.NewValidationError("Invalid OAuth state"))
	}
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Path:     "/api/auth/google",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
	})

	code := c.Query("code")
	if code == "" {
		return respondError(c, models.NewValidationError("Missing authorization code"))
	}

	profile, err := s.google.Exchange(ctx, code)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "google exchange failed", "error", err)
		return respondError(c, models.NewUnauthorizedError("Google sign-in failed"))
	}
	if !profile.VerifiedEmail {
		return respondError(c, models.NewUnauthorizedError("Google account email is not verified"))
	}

	user, err := s.authService.LoginExternal(ctx, service.ExternalIdentity{
		Provider:   auth.ProviderGoogle,
		ProviderID: profile.ID,
		Email:      profile.Email,
		Name:       profile.Name,
		Avatar:     profile.Picture,
	})
	if err != nil {
		return respondError(c, err)
	}

	token, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	target := strings.TrimRight(s.config.FrontendURL, "/") + "/oauth/callback#token=" + url.QueryEscape(token)
	return c.Redirect(target, fiber.StatusTemporaryRedirect)
}
