// AngelaMos | 2026
// xendit.go

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/templates/checkout-backend/internal/config"
)

const (
	qrCodeAPIVersion = "2022-07-31"
	defaultCurrency  = "IDR"
)

// XenditClient speaks the Xendit REST API. It never retries; a failed call
// is returned to the caller as is.
type XenditClient struct {
	http     *resty.Client
	currency string
}

func NewXenditClient(cfg config.GatewayConfig) *XenditClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	currency := cfg.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetBasicAuth(cfg.SecretKey, "").
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &XenditClient{http: client, currency: currency}
}

type xenditError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

type invoiceResponse struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	InvoiceURL string          `json:"invoice_url"`
	ExpiryDate *time.Time      `json:"expiry_date"`
}

type qrCodeResponse struct {
	ID          string          `json:"id"`
	ReferenceID string          `json:"reference_id"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	QRString    string          `json:"qr_string"`
	ExpiresAt   *time.Time      `json:"expires_at"`
}

type virtualAccountResponse struct {
	ID             string          `json:"id"`
	ExternalID     string          `json:"external_id"`
	Status         string          `json:"status"`
	BankCode       string          `json:"bank_code"`
	AccountNumber  string          `json:"account_number"`
	Name           string          `json:"name"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	ExpirationDate *time.Time      `json:"expiration_date"`
}

type eWalletResponse struct {
	ID           string          `json:"id"`
	ReferenceID  string          `json:"reference_id"`
	Status       string          `json:"status"`
	ChargeAmount decimal.Decimal `json:"charge_amount"`
	ChannelCode  string          `json:"channel_code"`
	Actions      struct {
		DesktopWebCheckoutURL     string `json:"desktop_web_checkout_url"`
		MobileWebCheckoutURL      string `json:"mobile_web_checkout_url"`
		MobileDeeplinkCheckoutURL string `json:"mobile_deeplink_checkout_url"`
		QRCheckoutString          string `json:"qr_checkout_string"`
	} `json:"actions"`
}

func (c *XenditClient) CreateInvoice(
	ctx context.Context,
	req IntentRequest,
) (*Intent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body := map[string]any{
		"external_id": req.ReferenceID,
		"amount":      req.Amount,
		"currency":    c.currencyFor(req),
		"description": req.Description,
	}
	if req.Validity > 0 {
		body["invoice_duration"] = int64(req.Validity.Seconds())
	}
	if req.Customer.Email != "" {
		body["payer_email"] = req.Customer.Email
	}
	if req.SuccessRedirectURL != "" {
		body["success_redirect_url"] = req.SuccessRedirectURL
	}
	if req.FailureRedirectURL != "" {
		body["failure_redirect_url"] = req.FailureRedirectURL
	}

	var out invoiceResponse
	if err := c.post(ctx, "/v2/invoices", body, &out, nil); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	amount, err := wholeAmount(out.Amount)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	return &Intent{
		Method:    MethodInvoice,
		Reference: out.ID,
		Amount:    amount,
		Status:    out.Status,
		ExpiresAt: out.ExpiryDate,
		Fields: map[string]string{
			"invoice_url": out.InvoiceURL,
		},
	}, nil
}

func (c *XenditClient) CreateQRCode(
	ctx context.Context,
	req IntentRequest,
) (*Intent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body := map[string]any{
		"reference_id": req.ReferenceID,
		"type":         "DYNAMIC",
		"currency":     c.currencyFor(req),
		"amount":       req.Amount,
	}
	if req.Validity > 0 {
		body["expires_at"] = time.Now().UTC().Add(req.Validity).Format(time.RFC3339)
	}

	headers := map[string]string{"api-version": qrCodeAPIVersion}

	var out qrCodeResponse
	if err := c.post(ctx, "/qr_codes", body, &out, headers); err != nil {
		return nil, fmt.Errorf("create qr code: %w", err)
	}

	amount, err := wholeAmount(out.Amount)
	if err != nil {
		return nil, fmt.Errorf("create qr code: %w", err)
	}

	return &Intent{
		Method:    MethodQRIS,
		Reference: out.ID,
		Amount:    amount,
		Status:    out.Status,
		ExpiresAt: out.ExpiresAt,
		Fields: map[string]string{
			"qr_string": out.QRString,
		},
	}, nil
}

func (c *XenditClient) CreateVirtualAccount(
	ctx context.Context,
	req IntentRequest,
) (*Intent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.BankCode == "" {
		return nil, fmt.Errorf("%w: bank code is required", ErrInvalidRequest)
	}

	name := req.Customer.Name
	if name == "" {
		name = "Customer"
	}

	body := map[string]any{
		"external_id":     req.ReferenceID,
		"bank_code":       req.BankCode,
		"name":            name,
		"expected_amount": req.Amount,
		"is_closed":       true,
		"is_single_use":   true,
	}

	var out virtualAccountResponse
	if err := c.post(ctx, "/callback_virtual_accounts", body, &out, nil); err != nil {
		return nil, fmt.Errorf("create virtual account: %w", err)
	}

	amount, err := wholeAmount(out.ExpectedAmount)
	if err != nil {
		return nil, fmt.Errorf("create virtual account: %w", err)
	}

	return &Intent{
		Method:    MethodBankTransfer,
		Reference: out.ID,
		Amount:    amount,
		Status:    out.Status,
		ExpiresAt: out.ExpirationDate,
		Fields: map[string]string{
			"bank_code":      out.BankCode,
			"account_number": out.AccountNumber,
			"account_name":   out.Name,
		},
	}, nil
}

func (c *XenditClient) CreateEWalletCharge(
	ctx context.Context,
	req IntentRequest,
) (*Intent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.ChannelCode == "" {
		return nil, fmt.Errorf("%w: channel code is required", ErrInvalidRequest)
	}

	props := map[string]string{}
	if req.MobileNumber != "" {
		props["mobile_number"] = req.MobileNumber
	}
	if req.SuccessRedirectURL != "" {
		props["success_redirect_url"] = req.SuccessRedirectURL
	}
	if req.FailureRedirectURL != "" {
		props["failure_redirect_url"] = req.FailureRedirectURL
	}

	body := map[string]any{
		"reference_id":       req.ReferenceID,
		"currency":           c.currencyFor(req),
		"amount":             req.Amount,
		"checkout_method":    "ONE_TIME_PAYMENT",
		"channel_code":       req.ChannelCode,
		"channel_properties": props,
	}

	var out eWalletResponse
	if err := c.post(ctx, "/ewallets/charges", body, &out, nil); err != nil {
		return nil, fmt.Errorf("create e-wallet charge: %w", err)
	}

	amount, err := wholeAmount(out.ChargeAmount)
	if err != nil {
		return nil, fmt.Errorf("create e-wallet charge: %w", err)
	}

	fields := map[string]string{"channel_code": out.ChannelCode}
	setIfPresent(fields, "checkout_url", out.Actions.DesktopWebCheckoutURL)
	setIfPresent(fields, "mobile_checkout_url", out.Actions.MobileWebCheckoutURL)
	setIfPresent(fields, "deeplink_url", out.Actions.MobileDeeplinkCheckoutURL)
	setIfPresent(fields, "qr_string", out.Actions.QRCheckoutString)

	return &Intent{
		Method:    MethodEWallet,
		Reference: out.ID,
		Amount:    amount,
		Status:    out.Status,
		Fields:    fields,
	}, nil
}

// GetStatus asks the provider for the current raw status of an intent.
// Virtual accounts expose no payment state on lookup, so they always report
// PENDING and rely on the callback.
func (c *XenditClient) GetStatus(
	ctx context.Context,
	method Method,
	reference string,
) (string, error) {
	if reference == "" {
		return "", fmt.Errorf("%w: reference is required", ErrInvalidRequest)
	}

	escaped := url.PathEscape(reference)

	switch method {
	case MethodQRIS:
		var out qrCodeResponse
		headers := map[string]string{"api-version": qrCodeAPIVersion}
		if err := c.get(ctx, "/qr_codes/"+escaped, &out, headers); err != nil {
			return "", fmt.Errorf("get qr code: %w", err)
		}
		return out.Status, nil
	case MethodEWallet:
		var out eWalletResponse
		if err := c.get(ctx, "/ewallets/charges/"+escaped, &out, nil); err != nil {
			return "", fmt.Errorf("get e-wallet charge: %w", err)
		}
		return out.Status, nil
	case MethodBankTransfer:
		return "PENDING", nil
	default:
		var out invoiceResponse
		if err := c.get(ctx, "/v2/invoices/"+escaped, &out, nil); err != nil {
			return "", fmt.Errorf("get invoice: %w", err)
		}
		return out.Status, nil
	}
}

func (c *XenditClient) post(
	ctx context.Context,
	path string,
	body, out any,
	headers map[string]string,
) error {
	var apiErr xenditError
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		SetResult(out).
		SetError(&apiErr).
		Post(path)
	return checkResponse(resp, err, &apiErr)
}

func (c *XenditClient) get(
	ctx context.Context,
	path string,
	out any,
	headers map[string]string,
) error {
	var apiErr xenditError
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(out).
		SetError(&apiErr).
		Get(path)
	return checkResponse(resp, err, &apiErr)
}

func checkResponse(resp *resty.Response, err error, apiErr *xenditError) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}

	if resp.IsError() {
		code := apiErr.ErrorCode
		if code == "" {
			code = http.StatusText(resp.StatusCode())
		}
		return &Error{
			StatusCode: resp.StatusCode(),
			Code:       code,
			Message:    apiErr.Message,
		}
	}

	return nil
}

func (c *XenditClient) currencyFor(req IntentRequest) string {
	if req.Currency != "" {
		return req.Currency
	}
	return c.currency
}

// wholeAmount converts a provider amount to the smallest currency unit.
// Fractional amounts mean the provider priced something we did not ask for.
func wholeAmount(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%w: non-integral amount %s", ErrGateway, d.String())
	}
	return d.IntPart(), nil
}

func setIfPresent(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}
