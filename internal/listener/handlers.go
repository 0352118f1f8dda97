package listener

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/wire"
)

// responsesBody is the GET /responses payload.
type responsesBody struct {
	Cache []wire.Service `json:"cache"`
}

// errorBody is returned for every failed request.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// postResponse (POST /response) decodes by Content-Type and caches the
// services. Returns 202 on success, 400 on a parse error and 415 for an
// unsupported type.
func (l *Listener) postResponse(c echo.Context) error {
	payload, err := wire.PayloadTypeFromContentType(c.Request().Header.Get(echo.HeaderContentType))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error()).SetInternal(err)
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body").SetInternal(err)
	}
	if len(body) > maxBodySize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "response body too large")
	}

	resp, err := wire.DecodeResponse(body, payload)
	if err != nil {
		logging.LogRawBytes("Undecodable response body", body)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}

	l.Accept(resp)
	logging.Info("Response accepted",
		zap.String("response_id", resp.ID()),
		zap.String("probe_id", resp.ProbeID()),
		zap.String("payload", payload.String()),
		zap.Int("services", resp.Len()),
		zap.String("remote_addr", c.RealIP()),
	)
	return c.NoContent(http.StatusAccepted)
}

// getResponses (GET /responses) returns the live cache ordered by id.
func (l *Listener) getResponses(c echo.Context) error {
	services := l.cache.Values()
	if services == nil {
		services = []wire.Service{}
	}
	return c.JSON(http.StatusOK, responsesBody{Cache: services})
}

// deleteResponses (DELETE /responses) clears the cache.
func (l *Listener) deleteResponses(c echo.Context) error {
	l.cache.Clear()
	logging.Info("Response cache cleared", zap.String("remote_addr", c.RealIP()))
	return c.NoContent(http.StatusNoContent)
}

func (l *Listener) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"cached": l.cache.Len(),
	})
}

// errorHandler renders every error as errorBody.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "an internal server error has occurred"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	}

	logging.Warn("HTTP request error",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Request().URL.Path),
		zap.Int("status_code", status),
		zap.Error(err),
	)

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, errorBody{Error: errorDetail{Code: status, Message: message}})
}

// requestLogger logs every request and its status.
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		headers := make(map[string]string)
		for key, values := range req.Header {
			headers[key] = strings.Join(values, ", ")
		}
		logging.LogHTTPRequest(c.RealIP(), req.Method, req.URL.Path, headers)

		err := next(c)
		if err != nil {
			c.Error(err)
		}
		logging.LogHTTPResponse(c.RealIP(), c.Response().Status, nil)
		return nil
	}
}
