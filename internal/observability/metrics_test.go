package observability_test

import (
	"net/http/httptest"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

var _ = Describe("Metrics", func() {
	It("counts requests and errors per key", func() {
		m := observability.NewMetrics()
		m.RecordRequest("/api/tickets", "GET", 200, 10*time.Millisecond)
		m.RecordRequest("/api/tickets", "GET", 200, 30*time.Millisecond)
		m.RecordError("/api/tickets/:id", "GET", "TICKET_NOT_FOUND")

		snap := m.Snapshot()
		Expect(snap.Requests).To(HaveKeyWithValue("/api/tickets|GET|200", int64(2)))
		Expect(snap.AvgLatencyMS).To(HaveKeyWithValue("/api/tickets|GET|200", int64(20)))
		Expect(snap.Errors).To(HaveKeyWithValue("/api/tickets/:id|GET|TICKET_NOT_FOUND", int64(1)))
	})

	It("tolerates a nil receiver", func() {
		var m *observability.Metrics
		m.RecordRequest("/", "GET", 200, 0)
		m.RecordError("/", "GET", "X")
		Expect(m.Snapshot().Requests).To(BeEmpty())
	})
})

var _ = Describe("RequestLogger", func() {
	It("records the matched route and final status", func() {
		m := observability.NewMetrics()
		app := fiber.New()
		app.Use(observability.RequestLogger(zap.NewNop(), m))
		app.Get("/items/:id", func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusAccepted)
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/items/42", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusAccepted))
		Expect(m.Snapshot().Requests).To(HaveKeyWithValue("/items/:id|GET|202", int64(1)))
	})
})

var _ = Describe("NewLogger", func() {
	It("falls back to info on an unknown level", func() {
		logger, err := observability.NewLogger(config.LoggerConfig{Level: "chatty"})
		Expect(err).NotTo(HaveOccurred())
		Expect(logger.Core().Enabled(zap.InfoLevel)).To(BeTrue())
		Expect(logger.Core().Enabled(zap.DebugLevel)).To(BeFalse())
	})

	It("builds a console logger at the requested level", func() {
		logger, err := observability.NewLogger(config.LoggerConfig{
			Level:   "debug",
			Format:  config.LogFormatConsole,
			Service: "helpdesk-service",
			Env:     "development",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(logger.Core().Enabled(zap.DebugLevel)).To(BeTrue())
	})
})
