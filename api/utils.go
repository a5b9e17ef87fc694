package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/finchinslc/openclaw-board/domain"
)

// decodeBody strictly decodes a JSON request body into v.
func decodeBody(c echo.Context, v any) error {
	dec := bodyDecoder(c)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeBodyLenient decodes a JSON request body into v, ignoring fields v
// does not declare.
func decodeBodyLenient(c echo.Context, v any) error {
	return bodyDecoder(c).Decode(v)
}

func bodyDecoder(c echo.Context) sonic.Decoder {
	return sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
}

func writeError(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Error: msg})
}

// invalidMessage strips the sentinel prefix from a validation error.
func invalidMessage(err error) string {
	return strings.TrimPrefix(err.Error(), domain.ErrInvalid.Error()+": ")
}

// storeError maps a store failure onto an HTTP response. notFound and
// conflict are the messages used for the matching sentinels.
func (s *server) storeError(c echo.Context, err error, notFound, conflict string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		setErrorStage(c, "not_found")
		return writeError(c, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrConflict):
		setErrorStage(c, "conflict")
		return writeError(c, http.StatusConflict, conflict)
	case errors.Is(err, domain.ErrInvalid):
		setErrorStage(c, "validation")
		return writeError(c, http.StatusBadRequest, invalidMessage(err))
	}
	setErrorStage(c, "storage")
	s.logger.WithError(err).WithFields(log.Fields{
		"method": c.Request().Method,
		"route":  c.Path(),
		"userId": UserID(c),
	}).Error("store operation failed")
	return writeError(c, http.StatusInternalServerError, msgInternal)
}

func badBody(c echo.Context) error {
	setErrorStage(c, "decode")
	return writeError(c, http.StatusBadRequest, msgInvalidBody)
}

func badRequest(c echo.Context, msg string) error {
	setErrorStage(c, "validation")
	return writeError(c, http.StatusBadRequest, msg)
}

// actorFrom reports who made the request.
func actorFrom(c echo.Context) domain.Actor {
	if strings.EqualFold(strings.TrimSpace(c.Request().Header.Get(HeaderActor)), string(domain.ActorAgent)) {
		return domain.ActorAgent
	}
	return domain.ActorHuman
}
