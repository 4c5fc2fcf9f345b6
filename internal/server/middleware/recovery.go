package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaywright/gatewaycore/internal/log"
)

// Recovery recovers a panic in a downstream handler, logs it, and responds
// with a 500 instead of letting gin's own recovery print to stderr and
// close the connection uncleanly.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := panicError(r)

				log.Error(c.Request.Context(), "panic recovered", log.Cause(err))

				AbortWithError(c, http.StatusInternalServerError, err)
			}
		}()

		c.Next()
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}

	return fmt.Errorf("panic: %v", r)
}
