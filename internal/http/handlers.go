package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/pos-session-service/internal/config"
	httpopenapi "github.com/fairyhunter13/pos-session-service/internal/http/openapi"
	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/fairyhunter13/pos-session-service/internal/obs"
	"github.com/fairyhunter13/pos-session-service/internal/payment"
	"github.com/fairyhunter13/pos-session-service/internal/pos"
	"github.com/fairyhunter13/pos-session-service/internal/queue"
	"github.com/fairyhunter13/pos-session-service/internal/quote"
	"github.com/fairyhunter13/pos-session-service/internal/session"
	"github.com/fairyhunter13/pos-session-service/internal/store"
	"github.com/shopspring/decimal"
)

type App struct {
	Cfg      config.Config
	Sessions *session.Registry
	Manager  *queue.Manager
	Quotes   *quote.Service
	Store    store.Store
	closing  atomic.Bool
	started  time.Time
}

func NewApp(cfg config.Config, sessions *session.Registry, m *queue.Manager, quotes *quote.Service, st store.Store) *App {
	return &App{Cfg: cfg, Sessions: sessions, Manager: m, Quotes: quotes, Store: st, started: time.Now()}
}

// StartShutdown stops accepting mutations and closes the save intake.
func (a *App) StartShutdown() {
	a.closing.Store(true)
	a.Manager.CloseIntake()
}

type openRequest struct {
	Preset   string `json:"preset"`
	ClientID string `json:"client_id,omitempty"`
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
}

type deltaRequest struct {
	Delta json.RawMessage `json:"delta"`
}

type checkoutRequest struct {
	Method   model.PaymentMethod `json:"method"`
	Tendered json.RawMessage     `json:"tendered,omitempty"`
}

type quoteResponse struct {
	Quote quote.Quote `json:"quote"`
	Stale bool        `json:"stale,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a strict JSON body. It writes the error response itself
// and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

// rawString unquotes a JSON string or returns a bare JSON literal as is.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

// parseTendered accepts a JSON number or a numeric string. Anything else is
// treated as nothing tendered.
func parseTendered(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}
	return pos.ParseTender(rawString(raw))
}

// parseDelta accepts a JSON integer or an integer string; anything else is 0.
func parseDelta(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	n, err := strconv.Atoi(rawString(raw))
	if err != nil {
		return 0
	}
	return n
}

func (a *App) rejectIfClosing(w http.ResponseWriter) bool {
	if a.closing.Load() || a.Manager.IsShuttingDown() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return true
	}
	return false
}

func (a *App) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := a.Sessions.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return nil, false
	}
	return s, true
}

func (a *App) openSessionHandler(w http.ResponseWriter, r *http.Request) {
	if a.rejectIfClosing(w) {
		return
	}
	var req openRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	preset, ok := pos.LookupPreset(req.Preset)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "preset_not_found", req.Preset)
		return
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = r.Header.Get("X-Client-Id")
	}
	s, err := a.Sessions.Open(r.Context(), preset, clientID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	v, err := s.View()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+s.ID)
	writeJSON(w, http.StatusCreated, v)
}

func (a *App) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	v, err := s.View()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *App) closeSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.Close(r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) resetHandler(w http.ResponseWriter, r *http.Request) {
	if a.rejectIfClosing(w) {
		return
	}
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	v, err := s.Reset(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *App) adjustStockHandler(w http.ResponseWriter, r *http.Request) {
	if a.rejectIfClosing(w) {
		return
	}
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req deltaRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.AdjustStock(r.Context(), r.PathValue("pid"), parseDelta(req.Delta))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) addItemHandler(w http.ResponseWriter, r *http.Request) {
	if a.rejectIfClosing(w) {
		return
	}
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "product_id is required")
		return
	}
	line, err := s.AddToCart(r.Context(), req.ProductID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (a *App) changeQuantityHandler(w http.ResponseWriter, r *http.Request) {
	if a.rejectIfClosing(w) {
		return
	}
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req deltaRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	line, err := s.ChangeQuantity(r.Context(), r.PathValue("pid"), parseDelta(req.Delta))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (a *App) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	if a.rejectIfClosing(w) {
		return
	}
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.ClearCart(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) checkoutQuoteHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	q, err := s.Quote(pos.ParseTender(r.URL.Query().Get("tendered")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *App) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	if a.rejectIfClosing(w) {
		return
	}
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rc, err := s.Checkout(r.Context(), req.Method, parseTendered(req.Tendered))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rc)
}

func (a *App) historyHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	h, err := s.History()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": h})
}

func (a *App) invoiceHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	text, err := s.Invoice(r.PathValue("txid"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice.txt"`)
	_, _ = w.Write([]byte(text))
}

func (a *App) paymentQRHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	tx, err := s.Transaction(r.PathValue("txid"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	size := payment.DefaultQRSize
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			size = n
		}
	}
	img, err := payment.QRCodePNG(tx.PaymentURL, size)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(img)
}

func (a *App) reportHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	rep, err := s.Report()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *App) currentQuoteHandler(w http.ResponseWriter, r *http.Request) {
	q, ok := a.Quotes.Current()
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "no_quote", "no quote fetched yet")
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{Quote: q})
}

func (a *App) refreshQuoteHandler(w http.ResponseWriter, r *http.Request) {
	q, err := a.Quotes.Refresh(r.Context(), r.URL.Query().Get("lang"))
	if err != nil {
		if _, ok := a.Quotes.Current(); ok {
			writeJSON(w, http.StatusOK, quoteResponse{Quote: q, Stale: true})
			return
		}
		WriteJSONError(w, http.StatusBadGateway, "quote_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{Quote: q})
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.Store.Ping(r.Context()); err != nil {
		obs.L(r.Context()).Warn("health_store_unreachable", "error", err)
		WriteJSONError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	status := "ok"
	if a.closing.Load() {
		status = "shutting_down"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"writer":        a.Manager.Stats(),
		"live_sessions": a.Sessions.Len(),
		"uptime_sec":    time.Since(a.started).Seconds(),
	})
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>POS Session API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({ url: '/openapi.yaml', dom_id: '#swagger-ui' });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
