package httpapi

import (
	"expvar"
	"net/http"

	"github.com/rs/cors"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", app.openSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", app.getSessionHandler)
	mux.HandleFunc("DELETE /sessions/{id}", app.closeSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/reset", app.resetHandler)
	mux.HandleFunc("PATCH /sessions/{id}/products/{pid}/stock", app.adjustStockHandler)
	mux.HandleFunc("POST /sessions/{id}/cart/items", app.addItemHandler)
	mux.HandleFunc("PATCH /sessions/{id}/cart/items/{pid}", app.changeQuantityHandler)
	mux.HandleFunc("DELETE /sessions/{id}/cart", app.clearCartHandler)
	mux.HandleFunc("GET /sessions/{id}/checkout", app.checkoutQuoteHandler)
	mux.HandleFunc("POST /sessions/{id}/checkout", app.checkoutHandler)
	mux.HandleFunc("GET /sessions/{id}/history", app.historyHandler)
	mux.HandleFunc("GET /sessions/{id}/history/{txid}/invoice", app.invoiceHandler)
	mux.HandleFunc("GET /sessions/{id}/history/{txid}/qr", app.paymentQRHandler)
	mux.HandleFunc("GET /sessions/{id}/report", app.reportHandler)
	mux.HandleFunc("GET /quotes/current", app.currentQuoteHandler)
	mux.HandleFunc("POST /quotes/refresh", app.refreshQuoteHandler)
	mux.HandleFunc("GET /healthz", app.healthHandler)
	mux.HandleFunc("GET /debug/metrics", app.metricsHandler)
	mux.Handle("GET /debug/vars", expvar.Handler())
	mux.HandleFunc("GET /openapi.yaml", app.openapiHandler)
	mux.HandleFunc("GET /docs", app.docsHandler)

	c := cors.New(cors.Options{
		AllowedOrigins: app.Cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id", "X-Client-Id", "Traceparent"},
		ExposedHeaders: []string{"X-Request-Id", "X-Trace-Id", "Location"},
	})
	return c.Handler(WithRequestID(WithTracing(WithLogging(mux))))
}
