package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/cnc-service/internal/model"
)

func sampleRender() model.DocumentRender {
	created := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	return model.DocumentRender{
		Document: model.Document{
			ID:          uuid.New(),
			WorkOrderID: "WO-0001",
			Type:        model.DocumentTypeQuote,
			Number:      "QT-0001",
			Status:      model.DocumentStatusPendingSignature,
			Items: []model.DocumentItem{
				{Description: "Spindle bearing", Quantity: 2, UnitPrice: 250, Total: 500},
				{Description: "Labor (ñ)", Quantity: 1.5, UnitPrice: 200, Total: 300},
			},
			Subtotal:  800,
			TaxRate:   0.10,
			TaxAmount: 80,
			Total:     880,
			Notes:     "Valid for the listed machine only.",
			CreatedAt: created,
		},
		WorkOrder: model.WorkOrder{ID: "WO-0001", Title: "Spindle noise", ClientName: "Acme Machining"},
		Client:    model.Profile{ID: "client-1", FullName: "Acme Machining", Email: "ops@acme.test"},
	}
}

func TestGenerator_Render(t *testing.T) {
	content, err := NewGenerator("").Render(sampleRender())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
	assert.Greater(t, len(content), 500)
}

func TestGenerator_Render_Signed(t *testing.T) {
	in := sampleRender()
	signedAt := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	signer := "Ana"
	// Payloads that are not image data URLs print a text marker instead.
	signature := "c2lnbmVkIGJ5IEFuYQ=="
	in.Document.Status = model.DocumentStatusSigned
	in.Document.ClientSignature = &signature
	in.Document.SignedBy = &signer
	in.Document.SignedAt = &signedAt

	content, err := NewGenerator("Precision CNC").Render(in)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "$880.00", formatAmount(880))
	assert.Equal(t, "2", formatQuantity(2))
	assert.Equal(t, "1.50", formatQuantity(1.5))
	assert.Equal(t, "10", formatRate(0.10))
	assert.Equal(t, "16.5", formatRate(0.165))
	assert.Equal(t, "0", formatRate(0))
	assert.Equal(t, "04.03.2024", formatDate(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "-", formatDate(time.Time{}))
	assert.Equal(t, "-", safeValue(" "))
}
