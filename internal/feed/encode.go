package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/domain"
)

const resourceType = "transactions"

// Document is the top-level feed envelope.
type Document struct {
	Data []Resource `json:"data"`
}

// Resource is a single transaction resource.
type Resource struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Attributes Attributes `json:"attributes"`
}

// Attributes carries the transaction fields the detector reads.
type Attributes struct {
	Status      domain.TransactionStatus `json:"status"`
	RawText     *string                  `json:"rawText"`
	Description string                   `json:"description"`
	Amount      domain.Money             `json:"amount"`
	CreatedAt   string                   `json:"createdAt"`
}

// Encode writes transactions as a {"data": [...]} feed document that Decode
// reads back.
func Encode(txs []domain.Transaction) ([]byte, error) {
	doc := Document{Data: make([]Resource, 0, len(txs))}
	for _, tx := range txs {
		doc.Data = append(doc.Data, Resource{
			Type: resourceType,
			ID:   tx.ID,
			Attributes: Attributes{
				Status:      tx.Status,
				RawText:     tx.RawText,
				Description: tx.Description,
				Amount:      tx.Amount,
				CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
			},
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("Encode: marshal feed: %w", err)
	}
	return data, nil
}
