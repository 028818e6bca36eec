package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func testContext(t *testing.T, target string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", target, nil)
	return c
}

func TestParseClampsPageAndLimit(t *testing.T) {
	params := Parse(testContext(t, "/quotes?page=0&limit=500"))
	assert.Equal(t, 1, params.Page)
	assert.Equal(t, MaxLimit, params.Limit)
	assert.Equal(t, 0, params.Offset)

	params = Parse(testContext(t, "/quotes?page=3&limit=10"))
	assert.Equal(t, 20, params.Offset)
}

func TestSortOnlyReturnsAllowedColumns(t *testing.T) {
	allowed := []string{"created_at", "total_amount", "validity_date"}

	assert.Equal(t, "validity_date", Sort(testContext(t, "/quotes?sort=validity_date"), allowed...))
	assert.Equal(t, "created_at", Sort(testContext(t, "/quotes?sort=id;drop%20table"), allowed...))
	assert.Equal(t, "created_at", Sort(testContext(t, "/quotes"), allowed...))
}
