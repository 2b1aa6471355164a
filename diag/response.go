package diag

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-assets/errcode"
	"github.com/gin-gonic/gin"
)

// Response uniform envelope of every endpoint
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

func okJSON(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Msg: "success", Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Code: http.StatusBadRequest, Msg: msg})
}

// handleError layered errors keep their code and status; anything else is 500.
func handleError(c *gin.Context, err error) {
	_ = c.Error(err)
	if le, ok := errcode.As(err); ok {
		c.JSON(le.HTTPStatus(), Response{Code: le.Code(), Msg: le.Message(), Data: le.Data()})
		return
	}
	c.JSON(http.StatusInternalServerError, Response{Code: http.StatusInternalServerError, Msg: err.Error()})
}

func noRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{
		Code: http.StatusNotFound,
		Msg:  "route not found: " + c.Request.Method + " " + c.Request.URL.Path,
	})
}

func noMethod(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, Response{
		Code: http.StatusMethodNotAllowed,
		Msg:  "method not allowed: " + c.Request.Method + " " + c.Request.URL.Path,
	})
}
