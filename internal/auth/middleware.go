package auth

import (
	"github.com/gin-gonic/gin"

	"portal/internal/account"
	"portal/internal/apperr"
)

const (
	ctxSession = "session"
	ctxUser    = "user"
)

// RequireAuth rejects requests without a valid session cookie.
func RequireAuth(svc *Service, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, _ := c.Cookie(cookieName)
		sess, err := svc.Authenticate(c.Request.Context(), value)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(ctxSession, sess)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth. It loads the session user and rejects
// anyone who is not an admin.
func RequireAdmin(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := CurrentSession(c)
		if !ok {
			abort(c, apperr.ErrUnauthorized)
			return
		}
		u, err := svc.CurrentUser(c.Request.Context(), sess.UserID)
		if err != nil {
			// a vanished user is treated like a non-admin
			if _, ok := apperr.As(err); ok {
				err = apperr.ErrForbidden
			}
			abort(c, err)
			return
		}
		if !u.IsAdmin() {
			abort(c, apperr.ErrForbidden)
			return
		}
		c.Set(ctxUser, u)
		c.Next()
	}
}

// CurrentSession returns the session stored by RequireAuth.
func CurrentSession(c *gin.Context) (Session, bool) {
	v, ok := c.Get(ctxSession)
	if !ok {
		return Session{}, false
	}
	sess, ok := v.(Session)
	return sess, ok
}

// CurrentAdmin returns the admin stored by RequireAdmin.
func CurrentAdmin(c *gin.Context) (account.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return account.User{}, false
	}
	u, ok := v.(account.User)
	return u, ok
}

func abort(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		_ = c.Error(err)
		appErr = apperr.Internal("")
	}
	c.AbortWithStatusJSON(appErr.Status, appErr)
}
