package controller

import (
	"net/http"

	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/queries"
	"github.com/bassista/snapgram/internal/session"
	"github.com/bassista/snapgram/internal/social"
	"github.com/gin-gonic/gin"
)

// SessionResponse is the JSON shape of the bootstrap state.
type SessionResponse struct {
	Status session.Status      `json:"status"`
	User   *social.CurrentUser `json:"user,omitempty"`
	Error  *ErrorBody          `json:"error,omitempty"`
}

func sessionResponse(s session.State) SessionResponse {
	return SessionResponse{Status: s.Status, User: s.User, Error: errorBody(s.Err)}
}

// AuthController handles sign-up, sign-in, sign-out and the session state.
type AuthController struct {
	q *queries.Queries
}

func NewAuthController(q *queries.Queries) *AuthController {
	return &AuthController{q: q}
}

// SignUp handles POST /api/auth/sign-up.
func (ac *AuthController) SignUp(c *gin.Context) {
	var in social.NewUser
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	state, err := ac.q.SignUp(c.Request.Context(), in)
	if err != nil {
		writeError(c, "auth-controller", err)
		return
	}
	logger.WithComponent("auth-controller").Infof("account %s created", in.Email)
	c.JSON(http.StatusCreated, sessionResponse(state))
}

// SignIn handles POST /api/auth/sign-in.
func (ac *AuthController) SignIn(c *gin.Context) {
	var in social.Credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	state, err := ac.q.SignIn(c.Request.Context(), in)
	if err != nil {
		writeError(c, "auth-controller", err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(state))
}

// SignOut handles POST /api/auth/sign-out. The local session is dropped even
// when the remote one could not be deleted.
func (ac *AuthController) SignOut(c *gin.Context) {
	if err := ac.q.SignOut(c.Request.Context()); err != nil {
		logger.WithComponent("auth-controller").WithError(err).Warn("sign out incomplete")
	}
	c.JSON(http.StatusOK, sessionResponse(ac.q.Session()))
}

// Session handles GET /api/session.
func (ac *AuthController) Session(c *gin.Context) {
	c.JSON(http.StatusOK, sessionResponse(ac.q.Session()))
}
