package httpapi

import "github.com/gin-gonic/gin"

// Router assembles the gin engine with middleware and all routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(s.logger))

	r.GET("/healthz", s.handleHealthz)

	r.GET("/certs", s.handleCerts)

	r.POST("/register", s.handleRegister)
	r.POST("/verify", s.handleVerify)
	r.POST("/verify/request", s.handleRequestVerification)
	r.POST("/verify-game-server/request", s.handleRequestGameServerVerification)
	r.POST("/verify-game-server", s.handleVerifyGameServer)

	r.POST("/login", s.handleLogin)
	r.POST("/login-token", s.handleLoginToken)
	r.POST("/login-token/redeem", s.handleLoginTokenRedeem)
	r.POST("/logout", s.handleLogout)
	r.POST("/sign", s.handleSign)

	r.POST("/password-reset", s.handlePasswordReset)
	r.POST("/password-reset/apply", s.handlePasswordResetApply)

	r.POST("/keys", s.handleStoreKey)
	r.POST("/keys/fetch", s.handleFetchKey)

	return r
}
