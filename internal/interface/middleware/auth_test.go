package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/statlerhq/accounts/internal/domain/entity"
)

func testCtx() *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	return c
}

func TestCallerFromOwner(t *testing.T) {
	c := testCtx()
	c.Set(CtxUserIDKey, int64(7))
	c.Set(CtxRoleKey, string(entity.RoleOwner))

	caller := CallerFrom(c)
	assert.True(t, caller.IsAdmin())
	assert.False(t, caller.IsSelf(7), "admin callers act on behalf of others")
}

func TestCallerFromUser(t *testing.T) {
	c := testCtx()
	c.Set(CtxUserIDKey, int64(7))
	c.Set(CtxRoleKey, string(entity.RoleUser))

	caller := CallerFrom(c)
	assert.False(t, caller.IsAdmin())
	assert.True(t, caller.IsSelf(7))
	assert.False(t, caller.IsSelf(8))
}
