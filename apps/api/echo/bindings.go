package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/stipend/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	ord.Orderings = core.ParseOrdering(val[0])
}
