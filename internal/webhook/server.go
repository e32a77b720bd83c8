package webhook

import (
	"context"
	"embed"
	"encoding/base64"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/skip2/go-qrcode"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/config"
	"github.com/set-night/paygate/internal/domain"
	"github.com/set-night/paygate/internal/service"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Confirmer interface {
	Confirm(ctx context.Context, orderID, token string) (*service.Confirmation, error)
}

type OrderReader interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	UPILink(o *domain.Order) string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Payments Confirmer
	Orders   OrderReader
	DB       Pinger
	Logger   *zap.Logger
	Meter    metric.MeterProvider
}

// Server serves the payment confirmation webhook and the payment page.
type Server struct {
	payments Confirmer
	orders   OrderReader
	db       Pinger
	lg       *zap.Logger
	mp       metric.MeterProvider
	payPage  *template.Template
}

func New(deps Deps) (*Server, error) {
	page, err := template.ParseFS(templatesFS, "templates/pay.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse pay page")
	}
	return &Server{
		payments: deps.Payments,
		orders:   deps.Orders,
		db:       deps.DB,
		lg:       deps.Logger.Named("http"),
		mp:       deps.Meter,
		payPage:  page,
	}, nil
}

// Handler returns the instrumented route tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /pay/{orderID}", s.handlePayPage)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	h := Wrap(mux,
		RequestID(),
		InjectLogger(s.lg),
		Recovery(),
		LogRequests(),
	)
	return otelhttp.NewHandler(h, "paygate", otelhttp.WithMeterProvider(s.mp))
}

// ListenAndServe runs the server until ctx is done, then shuts it down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.lg.Error("Server shutdown error", zap.Error(err))
		}
	}()

	s.lg.Info("Server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	<-shutdownDone
	return nil
}

type confirmRequest struct {
	OrderID string
	Secret  string
}

func decodeConfirmRequest(data []byte) (confirmRequest, error) {
	var req confirmRequest
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "order_id":
			req.OrderID, err = d.Str()
		case "secret":
			req.Secret, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}
	if req.OrderID == "" {
		return req, errors.New("order_id is required")
	}
	return req, nil
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lg := zctx.From(ctx)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.MaxWebhookBody))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "error", "body too large")
		return
	}
	req, err := decodeConfirmRequest(data)
	if err != nil {
		lg.Debug("Bad webhook body", zap.Error(err))
		writeStatus(w, http.StatusBadRequest, "error", "invalid request")
		return
	}

	_, err = s.payments.Confirm(ctx, req.OrderID, req.Secret)
	switch {
	case err == nil:
		writeStatus(w, http.StatusOK, "ok", "")
	case errors.Is(err, domain.ErrUnauthorized):
		writeStatus(w, http.StatusForbidden, "error", "forbidden")
	case errors.Is(err, domain.ErrOrderNotFound):
		writeStatus(w, http.StatusNotFound, "error", "order not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		lg.Warn("Webhook rejected", zap.String("order_id", req.OrderID), zap.Error(err))
		writeStatus(w, http.StatusConflict, "error", "order cannot be paid")
	default:
		lg.Error("Webhook failed", zap.String("order_id", req.OrderID), zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, "error", "internal error")
	}
}

func writeStatus(w http.ResponseWriter, code int, status, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		if message != "" {
			e.Field("error", func(e *jx.Encoder) { e.Str(message) })
		}
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

type payPageData struct {
	OrderID  string
	PlanName string
	Amount   string
	Currency string
	State    string
	Pending  bool
	UPILink  template.URL
	QRCode   template.URL
	ExpiryAt string
}

func (s *Server) handlePayPage(w http.ResponseWriter, r *http.Request) {
	o, err := s.orders.Get(r.Context(), r.PathValue("orderID"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		zctx.From(r.Context()).Error("Load order for pay page", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := payPageData{
		OrderID:  o.ID,
		PlanName: o.Plan.Name,
		Amount:   o.Amount.StringFixed(2),
		Currency: config.Currency,
		State:    string(o.State),
		Pending:  o.State == domain.OrderStatePending,
	}
	if data.Pending {
		// upi:// is not on html/template's safe scheme list.
		link := s.orders.UPILink(o)
		data.UPILink = template.URL(link)
		qr, err := qrDataURI(link)
		if err != nil {
			zctx.From(r.Context()).Warn("Render QR code", zap.Error(err))
		}
		data.QRCode = qr
	}
	if o.ExpiryAt != nil {
		data.ExpiryAt = o.ExpiryAt.UTC().Format("2006-01-02 15:04 UTC")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.payPage.Execute(w, data); err != nil {
		zctx.From(r.Context()).Error("Render pay page", zap.Error(err))
	}
}

const qrSize = 256

// qrDataURI encodes content as an inline PNG QR code.
func qrDataURI(content string) (template.URL, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, qrSize)
	if err != nil {
		return "", errors.Wrap(err, "encode qr")
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		zctx.From(ctx).Warn("Health check failed", zap.Error(err))
		writeStatus(w, http.StatusServiceUnavailable, "error", "database unavailable")
		return
	}
	writeStatus(w, http.StatusOK, "ok", "")
}
