package echoapi

import (
	"github.com/labstack/echo/v4"
)

// metricsMiddleware records every request against its route pattern, not its raw path.
// Handler errors are settled here so that the recorded status is the one sent.
func metricsMiddleware(rec RequestRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			rec.RecordRequest(ctx.Request().Method, route, ctx.Response().Status)
			return nil
		}
	}
}
