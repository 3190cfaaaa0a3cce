// AngelaMos | 2026
// handler.go

package purchase

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/gateway"
	"github.com/carterperez-dev/templates/checkout-backend/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the purchase API. pollLimiter wraps the status
// endpoint only; pass nil to leave it unlimited.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	pollLimiter func(http.Handler) http.Handler,
) {
	r.Route("/purchases", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{purchaseID}", h.Get)
		r.Post("/{purchaseID}/payment", h.InitiatePayment)
		r.Post("/{purchaseID}/verify", h.Verify)
		r.Post("/{purchaseID}/retry", h.Retry)

		if pollLimiter != nil {
			r.With(pollLimiter).Get("/{purchaseID}/status", h.Status)
		} else {
			r.Get("/{purchaseID}/status", h.Status)
		}
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	in := CreateInput{
		UserID:    middleware.GetUserID(r.Context()),
		Method:    gateway.ParseMethod(req.PaymentMethod),
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	if req.Contact != nil {
		in.Contact = Contact{
			Name:  req.Contact.Name,
			Email: req.Contact.Email,
			Phone: req.Contact.Phone,
		}
	}
	if in.Contact.Email == "" {
		if claims := middleware.GetClaims(r.Context()); claims != nil {
			in.Contact.Email = claims.Email
		}
	}

	p, err := h.service.CreatePurchase(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToPurchaseResponse(p))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := parseIntQuery(r, "page", 1)
	pageSize := parseIntQuery(r, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	purchases, total, err := h.service.ListForUser(
		r.Context(),
		middleware.GetUserID(r.Context()),
		page,
		pageSize,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Paginated(w, ToPurchaseResponseList(purchases), page, pageSize, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(
		r.Context(),
		chi.URLParam(r, "purchaseID"),
		middleware.GetUserID(r.Context()),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToPurchaseResponse(p))
}

func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			core.BadRequest(w, "invalid request body")
			return
		}
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	var method gateway.Method
	if req.PaymentMethod != "" {
		method = gateway.ParseMethod(req.PaymentMethod)
	}

	instructions, err := h.service.InitiatePayment(r.Context(), PaymentInput{
		PurchaseID:         chi.URLParam(r, "purchaseID"),
		UserID:             middleware.GetUserID(r.Context()),
		Method:             method,
		BankCode:           strings.ToUpper(req.BankCode),
		ChannelCode:        strings.ToUpper(req.ChannelCode),
		MobileNumber:       req.MobileNumber,
		SuccessRedirectURL: req.SuccessRedirectURL,
		FailureRedirectURL: req.FailureRedirectURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToPaymentInstructionsResponse(instructions))
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.PollStatus(
		r.Context(),
		chi.URLParam(r, "purchaseID"),
		middleware.GetUserID(r.Context()),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToStatusResponse(p))
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ManualVerify(
		r.Context(),
		chi.URLParam(r, "purchaseID"),
		middleware.GetUserID(r.Context()),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, VerifyResponse{
		Outcome: res.Outcome,
		Status:  ToStatusResponse(res.Purchase),
	})
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Retry(
		r.Context(),
		chi.URLParam(r, "purchaseID"),
		middleware.GetUserID(r.Context()),
		middleware.ClientIP(r),
		r.UserAgent(),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToPurchaseResponse(p))
}

func writeError(w http.ResponseWriter, err error) {
	var unavailable *ProductUnavailableError

	switch {
	case errors.As(err, &unavailable):
		core.Conflict(w, "PRODUCT_UNAVAILABLE",
			"products unavailable: "+strings.Join(unavailable.ProductIDs, ", "))
	case errors.Is(err, ErrProductUnavailable):
		core.Conflict(w, "PRODUCT_UNAVAILABLE", "one or more products are unavailable")
	case errors.Is(err, ErrValidation):
		core.BadRequest(w, validationMessage(err))
	case errors.Is(err, ErrPurchaseNotFound):
		core.NotFound(w, "purchase")
	case errors.Is(err, ErrManualVerifyDisabled):
		core.Forbidden(w, "manual verification is disabled")
	case errors.Is(err, ErrUnauthorized):
		core.Forbidden(w, "purchase belongs to another user")
	case errors.Is(err, ErrPurchaseClosed):
		core.Conflict(w, "PURCHASE_CLOSED", "purchase is no longer pending")
	case errors.Is(err, ErrPurchaseStillPending):
		core.Conflict(w, "PURCHASE_PENDING", "purchase is still awaiting payment")
	case errors.Is(err, ErrPaymentIntentCreationFailed):
		if errors.Is(err, gateway.ErrInvalidRequest) {
			core.BadRequest(w, validationMessage(err))
			return
		}
		core.BadGateway(w, "payment provider unavailable, try again")
	default:
		core.InternalServerError(w, err)
	}
}

func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
