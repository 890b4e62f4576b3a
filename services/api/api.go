// Package api exposes the miniclass contract over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"batterycode-go/battery"
	"batterycode-go/errcode"
	"batterycode-go/types"
)

// Battery is the miniclass surface served here. *battery.Miniclass
// satisfies it.
type Battery interface {
	QueryTag() (uint32, error)
	QueryInformation(tag uint32, level battery.InformationLevel, atRate int32, buf []byte) (int, error)
	QueryStatus(tag uint32) (battery.Status, error)
	SetInformationRaw(tag uint32, level battery.SetLevel, payload []byte) error
	SetStatusNotify(tag uint32, n battery.Notify) error
	DisableStatusNotify(tag uint32) error
}

// maxResultLen is the largest result any information level produces. It
// sizes the buffer when the caller does not, and larger caller buffers are
// clamped to it.
const maxResultLen = battery.MaxStringSize * 2

type handler struct {
	bat Battery
	log logrus.FieldLogger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(bat Battery, log logrus.FieldLogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	h := &handler{bat: bat, log: log}
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, types.OKReply{OK: true}) })

	b := r.Group("/battery")
	{
		b.GET("/tag", h.queryTag)
		b.GET("/information/:level", h.queryInformation)
		b.POST("/information/:level", h.setInformation)
		b.GET("/status", h.queryStatus)
		b.POST("/notify", h.setNotify)
		b.DELETE("/notify", h.disableNotify)
	}
	return r
}

// Serve runs srv until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, addr string, h http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("http request")
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

type tagQuery struct {
	Tag uint32 `form:"tag"`
}

type informationQuery struct {
	Tag       uint32 `form:"tag"`
	AtRate    int32  `form:"at_rate"`
	BufferLen *int   `form:"buffer_len"`
}

type informationReply struct {
	ReturnedLen int    `json:"returned_len"`
	Data        []byte `json:"data,omitempty"`
}

type statusReply struct {
	PowerState uint32 `json:"power_state"`
	Capacity   uint32 `json:"capacity"`
	Voltage    uint32 `json:"voltage"`
	Rate       int32  `json:"rate"`
	Raw        []byte `json:"raw"`
}

type setBody struct {
	Payload []byte `json:"payload"`
}

type notifyBody struct {
	PowerState   uint32 `json:"power_state"`
	LowCapacity  uint32 `json:"low_capacity"`
	HighCapacity uint32 `json:"high_capacity"`
}

func (h *handler) queryTag(c *gin.Context) {
	tag, err := h.bat.QueryTag()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag})
}

func (h *handler) queryInformation(c *gin.Context) {
	level, ok := battery.ParseInformationLevel(c.Param("level"))
	if !ok {
		h.fail(c, errcode.New(errcode.InvalidParameter, "query_information", "unknown level "+strconv.Quote(c.Param("level"))))
		return
	}
	var q informationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, errcode.Wrap(errcode.InvalidParameter, "query_information", err))
		return
	}

	var buf []byte
	switch {
	case q.BufferLen == nil:
		buf = make([]byte, maxResultLen)
	case *q.BufferLen < 0:
		h.fail(c, errcode.New(errcode.InvalidParameter, "query_information", "negative buffer_len"))
		return
	case *q.BufferLen > 0:
		buf = make([]byte, min(*q.BufferLen, maxResultLen))
	}

	n, err := h.bat.QueryInformation(q.Tag, level, q.AtRate, buf)
	if errcode.Of(err) == errcode.BufferTooSmall {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"ok":           false,
			"code":         errcode.BufferTooSmall,
			"error":        err.Error(),
			"returned_len": n,
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, informationReply{ReturnedLen: n, Data: buf[:n]})
}

func (h *handler) setInformation(c *gin.Context) {
	level, ok := battery.ParseSetLevel(c.Param("level"))
	if !ok {
		h.fail(c, errcode.New(errcode.InvalidParameter, "set_information", "unknown level "+strconv.Quote(c.Param("level"))))
		return
	}
	var q tagQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, errcode.Wrap(errcode.InvalidParameter, "set_information", err))
		return
	}

	var body setBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, errcode.Wrap(errcode.InvalidParameter, "set_information", err))
		return
	}
	if err := h.bat.SetInformationRaw(q.Tag, level, body.Payload); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types.OKReply{OK: true})
}

func (h *handler) queryStatus(c *gin.Context) {
	var q tagQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, errcode.Wrap(errcode.InvalidParameter, "query_status", err))
		return
	}
	st, err := h.bat.QueryStatus(q.Tag)
	if err != nil {
		h.fail(c, err)
		return
	}
	raw, _ := st.MarshalBinary()
	c.JSON(http.StatusOK, statusReply{
		PowerState: uint32(st.PowerState),
		Capacity:   st.Capacity,
		Voltage:    st.Voltage,
		Rate:       st.Rate,
		Raw:        raw,
	})
}

func (h *handler) setNotify(c *gin.Context) {
	var q tagQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, errcode.Wrap(errcode.InvalidParameter, "set_status_notify", err))
		return
	}
	var body notifyBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, errcode.Wrap(errcode.InvalidParameter, "set_status_notify", err))
		return
	}
	err := h.bat.SetStatusNotify(q.Tag, battery.Notify{
		PowerState:   battery.PowerState(body.PowerState),
		LowCapacity:  body.LowCapacity,
		HighCapacity: body.HighCapacity,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types.OKReply{OK: true})
}

func (h *handler) disableNotify(c *gin.Context) {
	var q tagQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, errcode.Wrap(errcode.InvalidParameter, "disable_status_notify", err))
		return
	}
	if err := h.bat.DisableStatusNotify(q.Tag); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types.OKReply{OK: true})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// HTTPStatus maps a result code onto an HTTP status.
func HTTPStatus(c errcode.Code) int {
	switch c {
	case errcode.OK:
		return http.StatusOK
	case errcode.NoSuchDevice:
		return http.StatusNotFound
	case errcode.InvalidParameter:
		return http.StatusBadRequest
	case errcode.BufferTooSmall:
		return http.StatusRequestEntityTooLarge
	case errcode.NotSupported:
		return http.StatusNotImplemented
	case errcode.TransferFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(c *gin.Context, err error) {
	code := errcode.Of(err)
	status := HTTPStatus(code)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		h.log.WithError(err).WithField("path", c.Request.URL.Path).Warn("request failed")
	}
	c.JSON(status, types.ErrorReply{OK: false, Code: string(code), Error: err.Error()})
}
