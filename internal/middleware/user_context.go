package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pmtrack/internal/models"
)

const (
	SessionUserID = "user_id"
	currentUser   = "CurrentUser"
)

// InjectUser loads the session's user on every request, so a role change or
// deletion takes effect without a new login.
func InjectUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if uid, ok := sess.Get(SessionUserID).(uint); ok && uid > 0 {
			var user models.User
			err := db.WithContext(c.Request.Context()).First(&user, uid).Error
			switch {
			case err == nil:
				c.Set(currentUser, user)
			case errors.Is(err, gorm.ErrRecordNotFound):
				sess.Clear()
				_ = sess.Save()
			default:
				// keep the session; the user still exists as far as we know
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session lookup failed"})
				return
			}
		}

		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(currentUser)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// SetCurrentUser is used by login and by tests that bypass the session.
func SetCurrentUser(c *gin.Context, user models.User) {
	c.Set(currentUser, user)
}
