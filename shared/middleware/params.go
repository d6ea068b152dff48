package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/monli/monli/shared/utils"
)

// MonthParam reads the YYYY-MM query parameter name, defaulting to the
// current month. On a malformed value it writes a 400 and reports false.
func MonthParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return utils.MonthStart(utils.Today()), true
	}
	month, err := utils.ParseMonth(raw)
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, name+" must be formatted as YYYY-MM")
		return time.Time{}, false
	}
	return month, true
}
