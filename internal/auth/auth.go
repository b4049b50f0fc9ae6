package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"vibetravels/internal/config"
	"vibetravels/internal/logger"
	"vibetravels/internal/repository/db"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const UserContextKey contextKey = "user"

// Claims carries the authenticated user's identity in the token
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AuthService handles registration, login and request authentication
type AuthService struct {
	db     db.Database
	config config.AuthConfig
}

// NewAuthService creates a new AuthService
func NewAuthService(database db.Database, authConfig config.AuthConfig) *AuthService {
	return &AuthService{db: database, config: authConfig}
}

// sendError sends a standardized JSON error response
func sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(errResp)
}

// GenerateToken issues a signed JWT for the user
func (a *AuthService) GenerateToken(user *db.User) (string, error) {
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.config.TokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.config.JWTSecret)
}

// ValidateToken parses and verifies a JWT
func (a *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.config.JWTSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// LoginHandler authenticates a user and returns a JWT token
func (a *AuthService) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Username == "" || req.Password == "" {
		sendError(w, http.StatusBadRequest, "Username and password are required", nil)
		return
	}

	user, err := a.db.GetUserByUsername(req.Username)
	if err != nil {
		logger.Log.WithField("username", req.Username).Warn("Login failed: user not found")
		sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		logger.Log.WithField("username", req.Username).Warn("Login failed: invalid password")
		sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := a.GenerateToken(user)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Error generating token", err)
		return
	}

	logger.Log.WithField("username", req.Username).Info("User logged in")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{Token: token})
}

// RegisterHandler creates a new user account
func (a *AuthService) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Username == "" || req.Password == "" {
		sendError(w, http.StatusBadRequest, "Username and password are required", nil)
		return
	}

	if len(req.Password) < 6 {
		sendError(w, http.StatusBadRequest, "Password must be at least 6 characters", nil)
		return
	}

	user, err := a.db.CreateUser(req.Username, req.Email, req.Password)
	if err != nil {
		logger.Log.WithField("username", req.Username).Warn("Registration failed")
		if err.Error() == "username already exists" {
			sendError(w, http.StatusConflict, "Username already exists", err)
			return
		}
		sendError(w, http.StatusInternalServerError, "Error creating user", err)
		return
	}

	token, err := a.GenerateToken(user)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Error generating token", err)
		return
	}

	logger.Log.WithField("username", user.Username).Info("User registered")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(RegisterResponse{
		Message: "User registered successfully",
		Token:   token,
	})
}

// Middleware authenticates the request and puts the user id in the context
func (a *AuthService) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			sendError(w, http.StatusUnauthorized, "Missing authorization header", nil)
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
			sendError(w, http.StatusUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := a.ValidateToken(bearerToken[1])
		if err != nil {
			sendError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// UserIDFromContext extracts the authenticated user id set by Middleware
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(UserContextKey).(string)
	if !ok || userID == "" {
		return "", errors.New("no authenticated user in context")
	}
	return userID, nil
}
