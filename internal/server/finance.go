package server

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/encore/internal/authorization"
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	"github.com/smallbiznis/encore/internal/identity"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	"github.com/smallbiznis/encore/internal/providers/pdf"
	"github.com/smallbiznis/encore/pkg/db/pagination"
)

type listTransactionsQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
	Type      string `form:"type"`
}

func (s *Server) MakePayment(c *gin.Context) {
	s.makePayment(c, financedomain.MerchandiseFields)
}

func (s *Server) TicketPayment(c *gin.Context) {
	s.makePayment(c, financedomain.TicketFields)
}

func (s *Server) makePayment(c *gin.Context, fields financedomain.FieldSet) {
	file, err := s.readUpload(c, fieldBankSlip)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	amount, err := formDecimal(c, "amount")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	values := make(map[string]string, len(fields.Keys))
	for _, key := range fields.Keys {
		values[key] = c.PostForm(key)
	}

	result, err := s.financeSvc.MakePayment(c.Request.Context(), fields, financedomain.PaymentRequest{
		Amount:        amount,
		PaymentMethod: strings.TrimSpace(c.PostForm("paymentMethod")),
		PaymentFor:    financedomain.PaymentFor(strings.TrimSpace(c.PostForm("paymentFor"))),
		Fields:        values,
		Attachment:    file,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "payment submitted",
		"data":    result,
	})
}

func (s *Server) CreateBudget(c *gin.Context) {
	file, err := s.readUpload(c, fieldInfoFile)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	allocated, err := formDecimal(c, "allocatedBudget")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var remaining *decimal.Decimal
	if strings.TrimSpace(c.PostForm("remainingBudget")) != "" {
		value, err := formDecimal(c, "remainingBudget")
		if err != nil {
			AbortWithError(c, err)
			return
		}
		remaining = &value
	}

	eventID, err := snowflake.ParseString(strings.TrimSpace(c.PostForm("eventId")))
	if err != nil || eventID == 0 {
		AbortWithError(c, financedomain.Validation("create_budget", "eventId is required", financedomain.ErrEventNotFound))
		return
	}

	result, err := s.financeSvc.CreateBudget(c.Request.Context(), financedomain.BudgetRequest{
		AllocatedBudget: allocated,
		RemainingBudget: remaining,
		Status:          financedomain.BudgetStatus(strings.TrimSpace(c.PostForm("status"))),
		Reason:          strings.TrimSpace(c.PostForm("reason")),
		EventID:         eventID,
		Attachment:      file,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "budget created",
		"data":    result,
	})
}

func (s *Server) RequestRefund(c *gin.Context) {
	file, err := s.readUpload(c, fieldReceiptFile)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	amount, err := formDecimal(c, "refundAmount")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var paymentID *snowflake.ID
	if raw := strings.TrimSpace(c.PostForm("paymentId")); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			AbortWithError(c, ErrInvalidID)
			return
		}
		paymentID = &id
	}

	result, err := s.financeSvc.RequestRefund(c.Request.Context(), financedomain.RefundRequest{
		RefundAmount:  amount,
		Reason:        strings.TrimSpace(c.PostForm("reason")),
		InvoiceNumber: strings.TrimSpace(c.PostForm("invoiceNumber")),
		PaymentID:     paymentID,
		Attachment:    file,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "refund requested",
		"data":    result,
	})
}

func (s *Server) UpdateRecord(c *gin.Context) {
	recordType, err := recordTypeParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	update, err := financedomain.ParseRecordUpdate(string(recordType), body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.financeSvc.UpdateRecord(c.Request.Context(), id, update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("%s updated", recordType),
		"data":    record,
	})
}

func (s *Server) GetRecord(c *gin.Context) {
	recordType, err := recordTypeParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.financeSvc.GetRecord(c.Request.Context(), recordType, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) DeleteRecord(c *gin.Context) {
	recordType, err := recordTypeParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.financeSvc.DeleteRecord(c.Request.Context(), recordType, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s deleted", recordType)})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query listTransactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.ledgerSvc.List(c.Request.Context(), ledgerdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Type: ledgerdomain.TransactionType(strings.ToLower(strings.TrimSpace(query.Type))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// PaymentReceipt renders the PDF receipt of a payment. Members only see their own payments.
func (s *Server) PaymentReceipt(c *gin.Context) {
	recordType, err := recordTypeParam(c)
	if err != nil || recordType != financedomain.RecordTypePayment {
		AbortWithError(c, ErrNotFound)
		return
	}
	id, err := idParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	user, ok := identity.UserFromContext(ctx)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	record, err := s.financeSvc.GetRecord(ctx, financedomain.RecordTypePayment, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	payment := record.(*financedomain.Payment)
	if user.Role == identity.RoleMember && payment.OwnerID != user.ID {
		AbortWithError(c, authorization.ErrForbidden)
		return
	}

	invoiceNumber := payment.ID.String()
	if payment.InvoiceID != nil {
		inv, err := s.financeSvc.GetRecord(ctx, financedomain.RecordTypeInvoice, *payment.InvoiceID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		invoiceNumber = inv.(*financedomain.Invoice).InvoiceNumber
	}

	doc, err := s.pdfProvider.GenerateReceipt(ctx, receiptData(s.cfg.AppName, invoiceNumber, payment))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", "receipt-"+invoiceNumber+".pdf"))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func receiptData(orgName, invoiceNumber string, payment *financedomain.Payment) pdf.ReceiptData {
	data := pdf.ReceiptData{
		OrgName:       orgName,
		InvoiceNumber: invoiceNumber,
		IssuedAt:      payment.CreatedAt.UTC().Format(time.RFC1123),
		Status:        string(payment.Status),
		PaymentMethod: payment.PaymentMethod,
		PaymentFor:    string(payment.PaymentFor),
		Amount:        payment.Amount.StringFixed(2),
	}
	if payment.Owner != nil {
		data.PayerName = payment.Owner.FullName
		data.PayerEmail = payment.Owner.Email
	}

	keys := make([]string, 0, len(payment.Details))
	for key := range payment.Details {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		data.Details = append(data.Details, pdf.ReceiptLine{
			Label: key,
			Value: fmt.Sprint(payment.Details[key]),
		})
	}
	return data
}

func formDecimal(c *gin.Context, field string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, financedomain.Validation("parse_form", field+" must be a number", financedomain.ErrInvalidAmount)
	}
	return value, nil
}
