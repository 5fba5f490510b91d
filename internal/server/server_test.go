package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	anomalydomain "github.com/smallbiznis/encore/internal/anomaly/domain"
	auditdomain "github.com/smallbiznis/encore/internal/audit/domain"
	"github.com/smallbiznis/encore/internal/authorization"
	"github.com/smallbiznis/encore/internal/config"
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"github.com/smallbiznis/encore/internal/providers/pdf"
	"github.com/smallbiznis/encore/internal/ratelimit"
	"github.com/smallbiznis/encore/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
)

type fakeFinance struct {
	calls   int
	fields  financedomain.FieldSet
	payment financedomain.PaymentRequest
	budget  financedomain.BudgetRequest
	refund  financedomain.RefundRequest
	update  financedomain.RecordUpdate
	records map[snowflake.ID]financedomain.Record
	err     error
}

func (f *fakeFinance) MakePayment(ctx context.Context, fields financedomain.FieldSet, req financedomain.PaymentRequest) (*financedomain.PaymentResult, error) {
	f.calls++
	f.fields, f.payment = fields, req
	if f.err != nil {
		return nil, f.err
	}
	return &financedomain.PaymentResult{Payment: &financedomain.Payment{ID: 7, Amount: req.Amount}}, nil
}

func (f *fakeFinance) CreateBudget(ctx context.Context, req financedomain.BudgetRequest) (*financedomain.BudgetResult, error) {
	f.calls++
	f.budget = req
	if f.err != nil {
		return nil, f.err
	}
	return &financedomain.BudgetResult{Budget: &financedomain.Budget{ID: 8, EventID: req.EventID}}, nil
}

func (f *fakeFinance) RequestRefund(ctx context.Context, req financedomain.RefundRequest) (*financedomain.RefundResult, error) {
	f.calls++
	f.refund = req
	if f.err != nil {
		return nil, f.err
	}
	return &financedomain.RefundResult{Refund: &financedomain.Refund{ID: 9, RefundAmount: req.RefundAmount}}, nil
}

func (f *fakeFinance) UpdateRecord(ctx context.Context, id snowflake.ID, update financedomain.RecordUpdate) (financedomain.Record, error) {
	f.calls++
	f.update = update
	if f.err != nil {
		return nil, f.err
	}
	return &financedomain.Payment{ID: id, Status: financedomain.PaymentStatusApproved}, nil
}

func (f *fakeFinance) GetRecord(ctx context.Context, recordType financedomain.RecordType, id snowflake.ID) (financedomain.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.records[id]
	if !ok || record.Type() != recordType {
		return nil, financedomain.NotFound("get_record", "record not found", financedomain.ErrRecordNotFound)
	}
	return record, nil
}

func (f *fakeFinance) DeleteRecord(ctx context.Context, recordType financedomain.RecordType, id snowflake.ID) error {
	f.calls++
	return f.err
}

type fakeLedger struct {
	req ledgerdomain.ListRequest
	err error
}

func (f *fakeLedger) Record(ctx context.Context, tx *gorm.DB, in ledgerdomain.RecordInput) (*ledgerdomain.Transaction, error) {
	return nil, errors.New("not used")
}

func (f *fakeLedger) List(ctx context.Context, req ledgerdomain.ListRequest) (ledgerdomain.ListResponse, error) {
	f.req = req
	if f.err != nil {
		return ledgerdomain.ListResponse{}, f.err
	}
	return ledgerdomain.ListResponse{Transactions: []ledgerdomain.Transaction{}}, nil
}

func (f *fakeLedger) Entries(ctx context.Context) ([]ledgerdomain.Entry, error) {
	return nil, nil
}

type fakeAnomalies struct{}

func (fakeAnomalies) Detect(ctx context.Context) (anomalydomain.Report, error) {
	return anomalydomain.Report{
		Anomalies: []anomalydomain.Record{},
		Stats:     anomalydomain.Stats{TotalTransactions: 3},
	}, nil
}

type fakeNotifications struct {
	markErr error
	marked  snowflake.ID
}

func (f *fakeNotifications) List(ctx context.Context, req notificationdomain.ListRequest) ([]notificationdomain.Notification, error) {
	return []notificationdomain.Notification{{ID: 1, Message: "Payment approved", Type: notificationdomain.TypeSuccess}}, nil
}

func (f *fakeNotifications) MarkRead(ctx context.Context, id snowflake.ID) error {
	f.marked = id
	return f.markErr
}

type fakeAudit struct{}

func (fakeAudit) Record(ctx context.Context, action, targetType, targetID string, metadata map[string]any) error {
	return nil
}

func (fakeAudit) ListByTarget(ctx context.Context, targetType, targetID string) ([]auditdomain.AuditLog, error) {
	return []auditdomain.AuditLog{{ID: 1, Action: targetType + ".updated", TargetType: targetType, TargetID: &targetID}}, nil
}

type testServer struct {
	engine        *gin.Engine
	finance       *fakeFinance
	ledger        *fakeLedger
	notifications *fakeNotifications
}

type serverOption func(*ServerParams)

func withMaxUpload(n int64) serverOption {
	return func(p *ServerParams) { p.Cfg.Upload.MaxBytes = n }
}

func withUploadLimiter(l *ratelimit.UploadLimiter) serverOption {
	return func(p *ServerParams) { p.UploadLimiter = l }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	ts := &testServer{
		engine:        gin.New(),
		finance:       &fakeFinance{records: map[snowflake.ID]financedomain.Record{}},
		ledger:        &fakeLedger{},
		notifications: &fakeNotifications{},
	}
	ts.engine.Use(ErrorHandlingMiddleware())

	params := ServerParams{
		Gin: ts.engine,
		Cfg: config.Config{
			AppName: "encore",
			Upload: config.UploadConfig{
				MaxBytes:     5 << 20,
				AllowedTypes: []string{"image/jpeg", "image/png", "application/pdf"},
			},
		},
		FinanceSvc:      ts.finance,
		LedgerSvc:       ts.ledger,
		AnomalySvc:      fakeAnomalies{},
		NotificationSvc: ts.notifications,
		AuthzSvc:        authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		AuditSvc:        fakeAudit{},
		PDFProvider:     pdf.New(),
	}
	for _, opt := range opts {
		opt(&params)
	}
	NewServer(params)
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	ts.engine.ServeHTTP(resp, req)
	return resp
}

func as(req *http.Request, id, role string) *http.Request {
	req.Header.Set(HeaderUserID, id)
	req.Header.Set(HeaderUserName, "Jane Doe")
	req.Header.Set(HeaderUserEmail, "jane@example.com")
	req.Header.Set(HeaderUserRole, role)
	return req
}

func multipartRequest(t *testing.T, path, field string, file []byte, values map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile(field, "upload.bin")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(httptest.NewRequest(http.MethodGet, "/finance/anomalies", nil))

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", decodeBody(t, resp)["error"])
}

func TestMakePaymentPassesMerchandiseFields(t *testing.T) {
	ts := newTestServer(t)

	req := multipartRequest(t, "/finance/payment", fieldBankSlip, pngBytes, map[string]string{
		"amount":        "150.50",
		"paymentMethod": "bank_transfer",
		"paymentFor":    "merchandise",
		"productName":   "Tee",
		"ticketName":    "ignored by the handler",
	})
	resp := ts.do(as(req, "42", "member"))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, financedomain.MerchandiseFields.Name, ts.finance.fields.Name)
	assert.True(t, ts.finance.payment.Amount.Equal(decimal.RequireFromString("150.50")))
	assert.Equal(t, "Tee", ts.finance.payment.Fields["productName"])
	assert.NotContains(t, ts.finance.payment.Fields, "ticketName")
	require.NotNil(t, ts.finance.payment.Attachment)
	assert.Equal(t, "image/png", ts.finance.payment.Attachment.ContentType)
}

func TestTicketPaymentUsesTicketFields(t *testing.T) {
	ts := newTestServer(t)

	req := multipartRequest(t, "/finance/ticket-payment", fieldBankSlip, pdfBytes, map[string]string{
		"amount":        "75",
		"paymentMethod": "card",
		"ticketName":    "Early Bird",
	})
	resp := ts.do(as(req, "42", "member"))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, financedomain.TicketFields.Name, ts.finance.fields.Name)
	assert.Equal(t, "Early Bird", ts.finance.payment.Fields["ticketName"])
	assert.Equal(t, "application/pdf", ts.finance.payment.Attachment.ContentType)
}

func TestPaymentWithoutFileIsAccepted(t *testing.T) {
	ts := newTestServer(t)

	req := multipartRequest(t, "/finance/payment", fieldBankSlip, nil, map[string]string{
		"amount":        "10",
		"paymentMethod": "cash",
		"paymentFor":    "other",
	})
	resp := ts.do(as(req, "42", "member"))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Nil(t, ts.finance.payment.Attachment)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	ts := newTestServer(t)

	req := multipartRequest(t, "/finance/payment", fieldBankSlip, []byte("plain text, not a slip"), map[string]string{
		"amount": "10",
	})
	resp := ts.do(as(req, "42", "member"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "unsupported_file_type", decodeBody(t, resp)["error"])
	assert.Zero(t, ts.finance.calls)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	ts := newTestServer(t, withMaxUpload(64))

	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 128)...)
	req := multipartRequest(t, "/finance/refund", fieldReceiptFile, big, map[string]string{
		"refundAmount": "10",
	})
	resp := ts.do(as(req, "42", "member"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "file_too_large", decodeBody(t, resp)["error"])
	assert.Zero(t, ts.finance.calls)
}

func TestMemberCannotCreateBudget(t *testing.T) {
	ts := newTestServer(t)

	req := multipartRequest(t, "/finance/budget", fieldInfoFile, nil, map[string]string{
		"allocatedBudget": "5000",
		"eventId":         "11",
	})
	resp := ts.do(as(req, "42", "member"))

	assert.Equal(t, http.StatusForbidden, resp.Code)
	body := decodeBody(t, resp)
	assert.Equal(t, "forbidden", body["error"])
	assert.NotEmpty(t, body["message"])
	assert.Zero(t, ts.finance.calls)
}

func TestFinanceCreatesBudget(t *testing.T) {
	ts := newTestServer(t)

	req := multipartRequest(t, "/finance/budget", fieldInfoFile, pdfBytes, map[string]string{
		"allocatedBudget": "5000",
		"eventId":         "11",
		"reason":          "Venue",
	})
	resp := ts.do(as(req, "7", "finance"))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, snowflake.ID(11), ts.finance.budget.EventID)
	assert.Nil(t, ts.finance.budget.RemainingBudget)
	assert.True(t, ts.finance.budget.AllocatedBudget.Equal(decimal.NewFromInt(5000)))
}

func TestInvalidAmountIsValidationError(t *testing.T) {
	ts := newTestServer(t)

	req := multipartRequest(t, "/finance/refund", fieldReceiptFile, nil, map[string]string{
		"refundAmount": "ten",
	})
	resp := ts.do(as(req, "42", "member"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_amount", decodeBody(t, resp)["error"])
}

func TestFinanceErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", financedomain.Validation("op", "refund amount exceeds payment amount", financedomain.ErrRefundExceedsPayment), http.StatusBadRequest, "refund_exceeds_payment"},
		{"not found", financedomain.NotFound("op", "payment not found", financedomain.ErrRecordNotFound), http.StatusNotFound, "record_not_found"},
		{"invalid state", financedomain.InvalidState("op", "event is not confirmed", financedomain.ErrEventNotConfirmed), http.StatusBadRequest, "event_not_confirmed"},
		{"dependency", financedomain.Dependency("op", "failed to store attachment", financedomain.ErrAttachmentFailed), http.StatusBadGateway, "dependency_error"},
		{"internal", financedomain.Internal("op", "failed to process payment", errors.New("pq: connection reset by peer")), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.finance.err = tc.err

			req := multipartRequest(t, "/finance/refund", fieldReceiptFile, nil, map[string]string{
				"refundAmount": "10",
				"reason":       "duplicate",
			})
			resp := ts.do(as(req, "42", "member"))

			assert.Equal(t, tc.status, resp.Code)
			body := decodeBody(t, resp)
			assert.Equal(t, tc.code, body["error"])
			assert.NotEmpty(t, body["message"])
			assert.NotContains(t, resp.Body.String(), "connection reset")
		})
	}
}

func TestUpdateRecordParsesVariant(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPatch, "/finance/payment/5", strings.NewReader(`{"status":"approved"}`))
	resp := ts.do(as(req, "7", "finance"))

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	update, ok := ts.finance.update.(financedomain.PaymentUpdate)
	require.True(t, ok)
	require.NotNil(t, update.Status)
	assert.Equal(t, financedomain.PaymentStatusApproved, *update.Status)
}

func TestUpdateInvoiceRejectsImmutableField(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPatch, "/finance/invoice/5", strings.NewReader(`{"amount":"1.00"}`))
	resp := ts.do(as(req, "7", "finance"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invoice_field_immutable", decodeBody(t, resp)["error"])
	assert.Zero(t, ts.finance.calls)
}

func TestUnknownRecordType(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/finance/salary/5", nil)
	resp := ts.do(as(req, "7", "admin"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_record_type", decodeBody(t, resp)["error"])
}

func TestMemberCannotUpdateRecords(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPatch, "/finance/payment/5", strings.NewReader(`{"status":"approved"}`))
	resp := ts.do(as(req, "42", "member"))

	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Zero(t, ts.finance.calls)
}

func TestAnomaliesRequireFinanceRole(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(as(httptest.NewRequest(http.MethodGet, "/finance/anomalies", nil), "42", "member"))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.do(as(httptest.NewRequest(http.MethodGet, "/finance/anomalies", nil), "7", "finance"))
	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	assert.Equal(t, []any{}, body["anomalies"])
	assert.Equal(t, float64(3), body["stats"].(map[string]any)["totalTransactions"])
}

func TestListTransactionsForwardsPagination(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(as(httptest.NewRequest(http.MethodGet, "/finance/transactions?page_size=20&page_token=abc&type=Refund", nil), "7", "finance"))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 20, ts.ledger.req.PageSize)
	assert.Equal(t, "abc", ts.ledger.req.PageToken)
	assert.Equal(t, ledgerdomain.TransactionTypeRefund, ts.ledger.req.Type)
}

func TestListTransactionsInvalidToken(t *testing.T) {
	ts := newTestServer(t)
	ts.ledger.err = pagination.ErrInvalidPageToken

	resp := ts.do(as(httptest.NewRequest(http.MethodGet, "/finance/transactions?page_token=not-a-token", nil), "7", "finance"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPaymentReceipt(t *testing.T) {
	ts := newTestServer(t)
	invoiceID := snowflake.ID(30)
	ts.finance.records[20] = &financedomain.Payment{
		ID:            20,
		InvoiceID:     &invoiceID,
		OwnerID:       42,
		Owner:         &financedomain.Owner{ID: 42, FullName: "Jane Doe", Email: "jane@example.com"},
		Amount:        decimal.NewFromInt(150),
		PaymentMethod: "bank_transfer",
		Status:        financedomain.PaymentStatusApproved,
		PaymentFor:    financedomain.PaymentForMerchandise,
		Details:       datatypes.JSONMap{"productName": "Tee"},
		CreatedAt:     time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	ts.finance.records[30] = &financedomain.Invoice{ID: 30, InvoiceNumber: "INV-1746093600000"}

	resp := ts.do(as(httptest.NewRequest(http.MethodGet, "/finance/payments/20/receipt", nil), "42", "member"))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "INV-1746093600000")
	assert.True(t, bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")))

	// Another member may not read it, finance may.
	resp = ts.do(as(httptest.NewRequest(http.MethodGet, "/finance/payments/20/receipt", nil), "43", "member"))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.do(as(httptest.NewRequest(http.MethodGet, "/finance/payments/20/receipt", nil), "7", "finance"))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestGetRecordNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(as(httptest.NewRequest(http.MethodGet, "/finance/refund/99", nil), "7", "finance"))

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "record_not_found", decodeBody(t, resp)["error"])
}

func TestAuditTrailIsAdminOnly(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(as(httptest.NewRequest(http.MethodGet, "/finance/payment/5/audit", nil), "7", "finance"))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.do(as(httptest.NewRequest(http.MethodGet, "/finance/payment/5/audit", nil), "1", "admin"))
	require.Equal(t, http.StatusOK, resp.Code)
	logs := decodeBody(t, resp)["auditLogs"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, "payment.updated", logs[0].(map[string]any)["action"])
}

func TestNotifications(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(as(httptest.NewRequest(http.MethodGet, "/notifications?unread=true", nil), "42", "member"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decodeBody(t, resp)["notifications"], 1)

	resp = ts.do(as(httptest.NewRequest(http.MethodPatch, "/notifications/abc/read", nil), "42", "member"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	ts.notifications.markErr = notificationdomain.ErrNotFound
	resp = ts.do(as(httptest.NewRequest(http.MethodPatch, "/notifications/5/read", nil), "42", "member"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, snowflake.ID(5), ts.notifications.marked)
}

func TestUploadRateLimit(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.NewUploadLimiter(
		config.Config{Redis: config.RedisConfig{UploadRate: 0.01, UploadBurst: 1}},
		ratelimit.NewTokenBucket(client),
	)
	ts := newTestServer(t, withUploadLimiter(limiter))

	values := map[string]string{"amount": "10", "paymentMethod": "cash", "paymentFor": "other"}
	resp := ts.do(as(multipartRequest(t, "/finance/payment", fieldBankSlip, nil, values), "42", "member"))
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = ts.do(as(multipartRequest(t, "/finance/payment", fieldBankSlip, nil, values), "42", "member"))
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
	assert.Equal(t, rateLimitReasonUploadRate, resp.Header().Get("X-Rate-Limited-Reason"))
	assert.Equal(t, 1, ts.finance.calls)
}
