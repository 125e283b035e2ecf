package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/observability"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// ServerOptions configures the fiber app and its global middlewares.
type ServerOptions struct {
	Name       string
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Timeout    time.Duration
	Production bool
	CORSOrigin string
}

// NewApp builds a fiber app whose errors all render in the API error shape.
func NewApp(opts ServerOptions) *fiber.App {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               opts.Name,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return renderError(c, err, opts.Logger, opts.Metrics, opts.Production)
		},
	})
	RegisterMiddlewares(app, opts)
	return app
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, opts ServerOptions) {
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(opts.Logger, opts.Metrics))
	if opts.CORSOrigin != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: opts.CORSOrigin,
			AllowMethods: "GET,POST,PUT,PATCH",
			AllowHeaders: "Content-Type",
		}))
	}
	if opts.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(opts.Timeout))
	}
	app.Use(errorHandlingMiddleware(opts.Logger, opts.Metrics, opts.Production))
}

// NotFoundHandler answers every request no route matched.
func NotFoundHandler(c *fiber.Ctx) error {
	return apperrors.NewRouteNotFound(c.Method(), c.Path())
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics, production bool) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				err = renderError(c, err, logger, metrics, production)
			}
		}()
		return c.Next()
	}
}

func renderError(c *fiber.Ctx, err error, logger *zap.Logger, metrics *observability.Metrics, production bool) error {
	domainErr := toDomainError(err)
	if metrics != nil {
		metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
	}
	if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(domainErr))
	}

	public := apperrors.Public(domainErr, production)
	return c.Status(public.HTTPStatus).JSON(fiber.Map{
		"success":   false,
		"errorCode": public.Code,
		"message":   public.Message,
		"details":   public.Details,
	})
}

// toDomainError also maps fiber's own errors (bad JSON, method not allowed).
func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusNotFound:
			return apperrors.NewDomainError(apperrors.CodeNotFound, fe.Message, nil)
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
			de := apperrors.NewDomainError(apperrors.CodeValidation, fe.Message, nil)
			de.HTTPStatus = fe.Code
			return de
		}
		return &apperrors.DomainError{Code: apperrors.CodeInternal, Message: fe.Message, HTTPStatus: fe.Code, Err: err}
	}
	return apperrors.ToDomainError(err)
}
