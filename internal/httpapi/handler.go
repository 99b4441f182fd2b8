package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
	"github.com/RubensDuarte2025/Julius-rmd/internal/reports"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
	"github.com/RubensDuarte2025/Julius-rmd/internal/tables"
)

type TableService interface {
	CreateTable(ctx context.Context, input tables.CreateTableInput) (models.Table, error)
	GetTable(ctx context.Context, tableID int64) (models.Table, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	UpdateTableStatus(ctx context.Context, tableID int64, status string) (models.Table, error)
	OpenOrder(ctx context.Context, tableID int64) (models.TableOrder, error)
	ListOrders(ctx context.Context, tableID int64) ([]models.TableOrder, error)
	GetOrder(ctx context.Context, orderID int64) (models.TableOrder, error)
	AddLine(ctx context.Context, orderID int64, input tables.AddLineInput) (models.TableOrder, error)
	UpdateLine(ctx context.Context, orderID, lineID int64, input tables.UpdateLineInput) (models.TableOrder, error)
	RemoveLine(ctx context.Context, orderID, lineID int64) (models.TableOrder, error)
	UpdateNotes(ctx context.Context, orderID int64, notes string) (models.TableOrder, error)
	CloseOrder(ctx context.Context, orderID int64) (models.TableOrder, error)
	CancelOrder(ctx context.Context, orderID int64) (models.TableOrder, error)
	RegisterPayment(ctx context.Context, orderID int64, input tables.PaymentInput) (models.TableOrder, models.PaymentRecord, error)
}

type PaymentService interface {
	ListForOrder(ctx context.Context, ref models.OrderRef) ([]models.PaymentRecord, error)
}

type ConversationService interface {
	ProcessInboundMessage(ctx context.Context, phone, text string) (string, error)
	GetConversation(ctx context.Context, id int64) (models.Conversation, error)
	ListConversations(ctx context.Context) ([]models.Conversation, error)
}

type KitchenService interface {
	ListPending(ctx context.Context) ([]models.KitchenTicket, error)
	UpdateStatus(ctx context.Context, kind string, originID int64, status string) (models.KitchenTicket, error)
	Deliver(ctx context.Context, kind string, originID int64) (models.KitchenTicket, error)
}

type ReportService interface {
	Sales(ctx context.Context, dateFrom, dateTo string) ([]reports.SaleRow, error)
	ProductsSold(ctx context.Context, dateFrom, dateTo string) ([]reports.ProductSold, error)
}

type Services struct {
	Tables        TableService
	Payments      PaymentService
	Conversations ConversationService
	Kitchen       KitchenService
	Reports       ReportService
}

type Options struct {
	// ReportLocation renders CSV timestamps. Nil means UTC.
	ReportLocation *time.Location
}

type Handler struct {
	services Services
	opts     Options
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code          string             `json:"code"`
	Message       string             `json:"message"`
	ExistingOrder *models.TableOrder `json:"existing_order,omitempty"`
	CurrentStatus *string            `json:"current_status,omitempty"`
	Allowed       []string           `json:"allowed,omitempty"`
}

type updateTableStatusRequest struct {
	Status string `json:"status"`
}

type notesRequest struct {
	Notes string `json:"observacoes_gerais"`
}

type kitchenStatusRequest struct {
	Status string `json:"status_cozinha"`
}

type paymentResponse struct {
	Order   models.TableOrder    `json:"pedido"`
	Payment models.PaymentRecord `json:"pagamento"`
}

func NewHandler(services Services, opts Options) *Handler {
	if opts.ReportLocation == nil {
		opts.ReportLocation = time.UTC
	}
	return &Handler{services: services, opts: opts}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tables", h.handleTables)
	mux.HandleFunc("/api/tables/", h.handleTableRoutes)
	mux.HandleFunc("/api/orders/", h.handleOrderRoutes)
	mux.HandleFunc("/api/payments/", h.handlePayments)
	mux.HandleFunc("/webhooks/whatsapp", h.handleWhatsAppWebhook)
	mux.HandleFunc("/api/conversations", h.handleConversations)
	mux.HandleFunc("/api/conversations/", h.handleConversation)
	mux.HandleFunc("/api/kitchen/orders", h.handleKitchenQueue)
	mux.HandleFunc("/api/kitchen/orders/", h.handleKitchenActions)
	mux.HandleFunc("/api/reports/sales", h.handleSalesReport)
	mux.HandleFunc("/api/reports/sales.csv", h.handleSalesExport)
	mux.HandleFunc("/api/reports/products-sold", h.handleProductsSold)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleTables(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.services.Tables.ListTables(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var req tables.CreateTableInput
		if !decodeJSON(w, r, &req) {
			return
		}
		table, err := h.services.Tables.CreateTable(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, table)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleTableRoutes serves /api/tables/{id}, /status and /orders.
func (h *Handler) handleTableRoutes(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/tables/")
	if len(parts) == 0 || len(parts) > 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	tableID, ok := parseID(w, r, parts[0], "table id")
	if !ok {
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		table, err := h.services.Tables.GetTable(r.Context(), tableID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, table)
		return
	}

	switch parts[1] {
	case "status":
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req updateTableStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		table, err := h.services.Tables.UpdateTableStatus(r.Context(), tableID, strings.TrimSpace(req.Status))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, table)
	case "orders":
		switch r.Method {
		case http.MethodGet:
			orders, err := h.services.Tables.ListOrders(r.Context(), tableID)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, orders)
		case http.MethodPost:
			order, err := h.services.Tables.OpenOrder(r.Context(), tableID)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, order)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// handleOrderRoutes serves /api/orders/{id}, /actions/{action} and /lines.
func (h *Handler) handleOrderRoutes(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/orders/")
	if len(parts) == 0 || len(parts) > 3 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	orderID, ok := parseID(w, r, parts[0], "order id")
	if !ok {
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		order, err := h.services.Tables.GetOrder(r.Context(), orderID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	case parts[1] == "actions" && len(parts) == 3:
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleOrderAction(w, r, orderID, parts[2])
	case parts[1] == "lines" && len(parts) == 2:
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req tables.AddLineInput
		if !decodeJSON(w, r, &req) {
			return
		}
		h.writeOrder(w, r, http.StatusCreated)(h.services.Tables.AddLine(r.Context(), orderID, req))
	case parts[1] == "lines" && len(parts) == 3:
		lineID, ok := parseID(w, r, parts[2], "line id")
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodPatch:
			var req tables.UpdateLineInput
			if !decodeJSON(w, r, &req) {
				return
			}
			h.writeOrder(w, r, http.StatusOK)(h.services.Tables.UpdateLine(r.Context(), orderID, lineID, req))
		case http.MethodDelete:
			h.writeOrder(w, r, http.StatusOK)(h.services.Tables.RemoveLine(r.Context(), orderID, lineID))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleOrderAction(w http.ResponseWriter, r *http.Request, orderID int64, action string) {
	switch action {
	case "close":
		h.writeOrder(w, r, http.StatusOK)(h.services.Tables.CloseOrder(r.Context(), orderID))
	case "cancel":
		h.writeOrder(w, r, http.StatusOK)(h.services.Tables.CancelOrder(r.Context(), orderID))
	case "notes":
		var req notesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		h.writeOrder(w, r, http.StatusOK)(h.services.Tables.UpdateNotes(r.Context(), orderID, req.Notes))
	case "pay":
		var req tables.PaymentInput
		if !decodeJSON(w, r, &req) {
			return
		}
		order, record, err := h.services.Tables.RegisterPayment(r.Context(), orderID, req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, paymentResponse{Order: order, Payment: record})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) writeOrder(w http.ResponseWriter, r *http.Request, status int) func(models.TableOrder, error) {
	return func(order models.TableOrder, err error) {
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, status, order)
	}
}

// handlePayments serves /api/payments/{kind}/{id}.
func (h *Handler) handlePayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ref, ok := parseRef(w, r, splitPath(r.URL.Path, "/api/payments/"))
	if !ok {
		return
	}
	records, err := h.services.Payments.ListForOrder(r.Context(), ref)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleWhatsAppWebhook accepts the form-encoded Twilio callback. The reply
// goes out through the messenger, so the body stays empty.
func (h *Handler) handleWhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "invalid form payload")
		return
	}
	from := r.PostForm.Get("From")
	if strings.TrimSpace(from) == "" {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "From is required")
		return
	}
	if _, err := h.services.Conversations.ProcessInboundMessage(r.Context(), from, r.PostForm.Get("Body")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := h.services.Conversations.ListConversations(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := splitPath(r.URL.Path, "/api/conversations/")
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id, ok := parseID(w, r, parts[0], "conversation id")
	if !ok {
		return
	}
	conv, err := h.services.Conversations.GetConversation(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleKitchenQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tickets, err := h.services.Kitchen.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

// handleKitchenActions serves /api/kitchen/orders/{kind}/{id}/status and
// /deliver.
func (h *Handler) handleKitchenActions(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/kitchen/orders/")
	if len(parts) != 3 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id, ok := parseID(w, r, parts[1], "order id")
	if !ok {
		return
	}
	kind := parts[0]

	switch parts[2] {
	case "status":
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req kitchenStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ticket, err := h.services.Kitchen.UpdateStatus(r.Context(), kind, id, strings.TrimSpace(req.Status))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	case "deliver":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ticket, err := h.services.Kitchen.Deliver(r.Context(), kind, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	from, to := dateParams(r)
	rows, err := h.services.Reports.Sales(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleSalesExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	from, to := dateParams(r)
	rows, err := h.services.Reports.Sales(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=vendas.csv")
	if err := reports.WriteSalesCSV(w, rows, h.opts.ReportLocation); err != nil {
		log.Printf("sales export failed request_id=%s error=%v", requestID(r), err)
	}
}

func (h *Handler) handleProductsSold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	from, to := dateParams(r)
	result, err := h.services.Reports.ProductsSold(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func dateParams(r *http.Request) (string, string) {
	query := r.URL.Query()
	return strings.TrimSpace(query.Get("data_inicio")), strings.TrimSpace(query.Get("data_fim"))
}

func splitPath(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseID(w http.ResponseWriter, r *http.Request, raw, name string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func parseRef(w http.ResponseWriter, r *http.Request, parts []string) (models.OrderRef, bool) {
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return models.OrderRef{}, false
	}
	id, ok := parseID(w, r, parts[1], "order id")
	if !ok {
		return models.OrderRef{}, false
	}
	ref, err := models.ParseOrderRef(parts[0], id)
	if err != nil {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_request", "order kind must be mesa or whatsapp")
		return models.OrderRef{}, false
	}
	return ref, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, requestID(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func requestID(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrTableInterdicted):
		return http.StatusConflict, "table_interdicted", "table is interdicted"
	case errors.Is(err, store.ErrTableNumberTaken):
		return http.StatusConflict, "table_number_taken", "table number already in use"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict", "table already has an open or closed order"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "current status does not allow this action"
	case errors.Is(err, store.ErrTableNotFound):
		return http.StatusNotFound, "table_not_found", "table not found"
	case errors.Is(err, store.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found", "order not found"
	case errors.Is(err, store.ErrLineNotFound):
		return http.StatusNotFound, "line_not_found", "order line not found"
	case errors.Is(err, store.ErrConversationNotFound):
		return http.StatusNotFound, "conversation_not_found", "conversation not found"
	case errors.Is(err, store.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found", "product not found"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, store.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_request", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

// writeServiceError renders err with the state details staff screens need.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapError(err)
	body := responseError{Code: code, Message: message}

	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		body.ExistingOrder = conflict.Existing
	}
	var stateErr *store.StateError
	if errors.As(err, &stateErr) {
		current := stateErr.Current
		body.Message = stateErr.Error()
		body.CurrentStatus = &current
		body.Allowed = stateErr.Allowed
	}
	if status == http.StatusInternalServerError {
		log.Printf("request failed request_id=%s path=%s error=%v", requestID(r), r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{RequestID: requestID(r), Error: body})
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
