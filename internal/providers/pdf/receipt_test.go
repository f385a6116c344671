package pdf

import (
	"bytes"
	"context"
	"testing"
)

func TestGenerateReceiptProducesPDF(t *testing.T) {
	p := NewPDFProvider("BlsunTech")
	out, err := p.GenerateReceipt(context.Background(), ReceiptData{
		SessionID:     "cs_test_abc",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		OfferingLabel: "Portfolio Website",
		Amount:        "10000.00",
		Currency:      "usd",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("expected a PDF document")
	}
}

func TestGenerateReceiptRequiresSession(t *testing.T) {
	p := NewPDFProvider("BlsunTech")
	if _, err := p.GenerateReceipt(context.Background(), ReceiptData{}); err == nil {
		t.Fatalf("expected an error without a session id")
	}
}
