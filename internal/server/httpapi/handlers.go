package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkrasnov/accountd/internal/common"
	"github.com/dkrasnov/accountd/internal/server/accounts"
	"github.com/dkrasnov/accountd/internal/server/sessions"
	"github.com/dkrasnov/accountd/internal/server/tokens"
)

type registerRequest struct {
	Email               string `json:"email" binding:"required,email"`
	PasswordHash        []byte `json:"password_hash" binding:"required"`
	Salt                []byte `json:"salt" binding:"required"`
	EncryptedMainSecret []byte `json:"encrypted_main_secret" binding:"required"`
}

type registerResponse struct {
	AccountID int64 `json:"account_id"`
	MailSent  bool  `json:"mail_sent"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type loginRequest struct {
	Email        string `json:"email" binding:"required,email"`
	PasswordHash []byte `json:"password_hash" binding:"required"`
	PubKey       []byte `json:"pub_key" binding:"required"`
	HwID         []byte `json:"hw_id" binding:"required"`
}

type loginResponse struct {
	AccountID           int64  `json:"account_id"`
	SessionSecret       []byte `json:"session_secret"`
	EncryptedMainSecret []byte `json:"encrypted_main_secret,omitempty"`
}

type loginTokenRequest struct {
	Kind       string `json:"kind" binding:"required,oneof=email steam"`
	Identifier string `json:"identifier" binding:"required"`
}

type loginTokenResponse struct {
	Token string `json:"token,omitempty"`
}

type redeemRequest struct {
	Token  string `json:"token" binding:"required"`
	PubKey []byte `json:"pub_key" binding:"required"`
	HwID   []byte `json:"hw_id" binding:"required"`
}

type resetApplyRequest struct {
	Token               string `json:"token" binding:"required"`
	PasswordHash        []byte `json:"password_hash" binding:"required"`
	Salt                []byte `json:"salt" binding:"required"`
	EncryptedMainSecret []byte `json:"encrypted_main_secret" binding:"required"`
}

type proofRequest struct {
	PubKey []byte `json:"pub_key" binding:"required"`
	HwID   []byte `json:"hw_id" binding:"required"`
}

type signResponse struct {
	Certificate string `json:"certificate"`
}

type certsResponse struct {
	Algorithm string `json:"algorithm"`
	PublicKey []byte `json:"public_key"`
}

type storeKeyRequest struct {
	PubKey         []byte `json:"pub_key" binding:"required"`
	HwID           []byte `json:"hw_id" binding:"required"`
	ScopePubKey    []byte `json:"scope_pub_key,omitempty"`
	KeyBlob        []byte `json:"key_blob" binding:"required"`
	DeclaredPubKey []byte `json:"declared_pub_key,omitempty"`
}

type fetchKeyRequest struct {
	PubKey      []byte `json:"pub_key" binding:"required"`
	HwID        []byte `json:"hw_id" binding:"required"`
	ScopePubKey []byte `json:"scope_pub_key,omitempty"`
}

type fetchKeyResponse struct {
	Found   bool   `json:"found"`
	KeyBlob []byte `json:"key_blob,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain sentinels to HTTP status codes. Infrastructure
// failures come back 503 so clients know a retry can help.
func (s *Server) writeError(c *gin.Context, err error) {
	var status int
	var msg string

	switch {
	case errors.Is(err, common.ErrValidation):
		status, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, common.ErrConflict):
		status, msg = http.StatusConflict, "already exists"
	case errors.Is(err, common.ErrTokenInvalid):
		status, msg = http.StatusGone, "token invalid or expired"
	case errors.Is(err, common.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "authentication failed"
	case errors.Is(err, common.ErrForbidden):
		status, msg = http.StatusForbidden, "not allowed"
	case errors.Is(err, common.ErrScopeNotFound), errors.Is(err, common.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrUnavailable):
		status, msg = http.StatusServiceUnavailable, "temporarily unavailable"
	default:
		status, msg = http.StatusInternalServerError, "internal error"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed",
			"request_id", c.GetString("request_id"), "error", err.Error())
	}

	c.JSON(status, errorResponse{Error: msg})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	res, err := s.accounts.Register(c.Request.Context(), accounts.RegisterParams{
		Email:               req.Email,
		PasswordHash:        req.PasswordHash,
		Salt:                req.Salt,
		EncryptedMainSecret: req.EncryptedMainSecret,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, registerResponse{AccountID: res.Account.ID, MailSent: res.MailSent})
}

func (s *Server) handleVerify(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	if err := s.accounts.Verify(c.Request.Context(), req.Token); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleRequestVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	if err := s.accounts.RequestVerification(c.Request.Context(), req.Email); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleRequestGameServerVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	if err := s.accounts.RequestGameServerVerification(c.Request.Context(), req.Email); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleVerifyGameServer(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	if err := s.accounts.VerifyGameServer(c.Request.Context(), req.Token); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	res, err := s.sessions.LoginWithPassword(c.Request.Context(), req.Email, req.PasswordHash, req.PubKey, req.HwID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccountID:           res.AccountID,
		SessionSecret:       res.SessionSecret,
		EncryptedMainSecret: res.EncryptedMainSecret,
	})
}

func (s *Server) handleLoginToken(c *gin.Context) {
	var req loginTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	token, err := s.sessions.IssueLoginToken(c.Request.Context(), req.Identifier, tokens.IdentifierKind(req.Kind))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginTokenResponse{Token: token})
}

func (s *Server) handleLoginTokenRedeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	res, err := s.sessions.RedeemLoginToken(c.Request.Context(), req.Token, req.PubKey, req.HwID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		AccountID:           res.AccountID,
		SessionSecret:       res.SessionSecret,
		EncryptedMainSecret: res.EncryptedMainSecret,
	})
}

func (s *Server) handlePasswordReset(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	if err := s.accounts.RequestReset(c.Request.Context(), req.Email); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handlePasswordResetApply(c *gin.Context) {
	var req resetApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	err := s.accounts.ApplyReset(c.Request.Context(), req.Token, req.PasswordHash, req.Salt, req.EncryptedMainSecret)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleSign(c *gin.Context) {
	var req proofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	cert, err := s.sessions.Sign(c.Request.Context(), sessions.Proof{PubKey: req.PubKey, HwID: req.HwID})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, signResponse{Certificate: cert})
}

func (s *Server) handleLogout(c *gin.Context) {
	var req proofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	if err := s.sessions.Logout(c.Request.Context(), sessions.Proof{PubKey: req.PubKey, HwID: req.HwID}); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleStoreKey(c *gin.Context) {
	var req storeKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	err := s.keys.StoreKey(c.Request.Context(),
		sessions.Proof{PubKey: req.PubKey, HwID: req.HwID},
		req.ScopePubKey, req.KeyBlob, req.DeclaredPubKey)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleFetchKey(c *gin.Context) {
	var req fetchKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	blob, err := s.keys.FetchKey(c.Request.Context(),
		sessions.Proof{PubKey: req.PubKey, HwID: req.HwID}, req.ScopePubKey)
	if err != nil {
		// "never stored a key" is a regular answer, not a failure
		if errors.Is(err, common.ErrNoRecord) {
			c.JSON(http.StatusOK, fetchKeyResponse{Found: false})
			return
		}
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, fetchKeyResponse{Found: true, KeyBlob: blob})
}

// handleCerts publishes the certificate verification key so game servers
// can check signed session certificates without calling back.
func (s *Server) handleCerts(c *gin.Context) {
	c.JSON(http.StatusOK, certsResponse{
		Algorithm: "EdDSA",
		PublicKey: s.sessions.VerificationKey(),
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
