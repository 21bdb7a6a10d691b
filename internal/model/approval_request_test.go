package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalRequestType(t *testing.T) {
	tests := map[string]string{
		"STOCK_ADJUSTMENT":  ApprovalReqTypeStockAdjustment,
		"StockAdjustment":   ApprovalReqTypeStockAdjustment,
		" stock-adjustment": ApprovalReqTypeStockAdjustment,
		"ProductCreate":     ApprovalReqTypeProductCreate,
		"OrderCancel":       ApprovalReqTypeOrderCancel,
		"orderRefund":       ApprovalReqTypeOrderRefund,
		"Payment Refund":    ApprovalReqTypePaymentRefund,
		"InvoiceVoid":       ApprovalReqTypeInvoiceVoid,
		"price_change":      "PRICE_CHANGE",
		"":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalRequestType(in), in)
	}
}
