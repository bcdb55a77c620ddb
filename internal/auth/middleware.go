package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userKey  = "auth.user"
	tokenKey = "auth.token"

	// CSRFField is the hidden form field carrying the CSRF token.
	CSRFField = "_csrf"
	// CSRFHeader carries the CSRF token for scripted admin requests.
	CSRFHeader = "X-CSRF-Token"
)

// Cookie describes the session cookie.
type Cookie struct {
	Name   string
	Secure bool
}

// SetCookie writes the session cookie.
func (ck Cookie) SetCookie(c *gin.Context, sess *Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.Name, sess.Token, maxAge, "/", "", ck.Secure, true)
}

// ClearCookie removes the session cookie.
func (ck Cookie) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.Name, "", -1, "/", "", ck.Secure, true)
}

// RequireAdmin rejects requests without a valid session. Paths under /api/
// get a 401 JSON body; pages redirect to the login form with a next
// parameter.
func (s *Service) RequireAdmin(ck Cookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(ck.Name)
		user, sess, err := s.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrSessionExpired) {
				s.log.Error("session lookup failed", zap.Error(err))
			}
			if token != "" {
				ck.ClearCookie(c)
			}
			if isAPI(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error":   "authentication required",
				})
				return
			}
			c.Redirect(http.StatusSeeOther, "/admin/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		if sess.Renewed {
			ck.SetCookie(c, sess)
		}
		c.Set(userKey, user)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// RequireCSRF rejects state-changing requests whose form field or header
// does not match the session's CSRF token. It must run after RequireAdmin.
func (s *Service) RequireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		submitted := c.GetHeader(CSRFHeader)
		if submitted == "" {
			submitted = c.PostForm(CSRFField)
		}
		if !s.VerifyCSRF(c.GetString(tokenKey), submitted) {
			if isAPI(c) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"success": false,
					"error":   "invalid csrf token",
				})
				return
			}
			c.String(http.StatusForbidden, "invalid csrf token")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the admin stored by RequireAdmin, or nil.
func CurrentUser(c *gin.Context) *User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*User)
	return u
}

// CSRFFor returns the CSRF token for the current request's session.
func (s *Service) CSRFFor(c *gin.Context) string {
	token := c.GetString(tokenKey)
	if token == "" {
		return ""
	}
	return s.CSRFToken(token)
}

// SafeNext returns next when it is a local admin path, else "/admin".
func SafeNext(next string) string {
	if strings.HasPrefix(next, "/admin") && !strings.HasPrefix(next, "//") && !strings.Contains(next, "\\") {
		return next
	}
	return "/admin"
}

func isAPI(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}
