package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	Handler *Handler
	router  *gin.Engine
}

func NewController(handler *Handler) *Controller {
	router := gin.Default()

	orders := router.Group("/orders")
	{
		orders.GET("", handler.GetLocations)
		orders.GET(":order_id/location", handler.GetOrderLocation)
	}

	return &Controller{Handler: handler, router: router}
}

func (c *Controller) Run(port int32) error {
	return c.router.Run(fmt.Sprintf(":%d", port))
}
