// Package feed reads and writes bank transaction feeds in the Up Bank API
// document shape.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/domain"
)

// ErrInvalidDocument is returned when the payload is not a transaction feed
// at all. Individual bad records never produce this error.
var ErrInvalidDocument = errors.New("invalid feed document")

// SkippedRecord describes a feed record excluded from the result.
type SkippedRecord struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// DecodeResult holds the decoded transactions in feed order and the records
// that were excluded.
type DecodeResult struct {
	Transactions []domain.Transaction
	Skipped      []SkippedRecord
}

// Decode parses a feed document. Both {"data": [...]} and a bare array of
// transaction resources are accepted. Records with a malformed timestamp,
// a non-numeric amount or missing fields are skipped and reported.
func Decode(data []byte) (*DecodeResult, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("Decode: %w: %v", ErrInvalidDocument, err)
	}

	resources, err := extractResources(doc)
	if err != nil {
		return nil, fmt.Errorf("Decode: %w", err)
	}

	result := &DecodeResult{
		Transactions: make([]domain.Transaction, 0, len(resources)),
	}

	for i, item := range resources {
		obj, ok := item.(map[string]interface{})
		if !ok {
			result.Skipped = append(result.Skipped, SkippedRecord{
				Index:  i,
				Reason: fmt.Sprintf("record has type %T, want object", item),
			})
			continue
		}

		tx, err := parseResource(obj)
		if err != nil {
			id, _ := obj["id"].(string)
			result.Skipped = append(result.Skipped, SkippedRecord{
				Index:  i,
				ID:     id,
				Reason: err.Error(),
			})
			continue
		}

		result.Transactions = append(result.Transactions, tx)
	}

	return result, nil
}

func extractResources(doc interface{}) ([]interface{}, error) {
	switch v := doc.(type) {
	case []interface{}:
		return v, nil
	case map[string]interface{}:
		dataAny, ok := v["data"]
		if !ok {
			return nil, fmt.Errorf("%w: missing 'data' key", ErrInvalidDocument)
		}
		data, ok := dataAny.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: 'data' is %T, want array", ErrInvalidDocument, dataAny)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: document is %T, want object or array", ErrInvalidDocument, doc)
	}
}

// parseResource maps one transaction resource to a domain transaction.
func parseResource(obj map[string]interface{}) (domain.Transaction, error) {
	id, err := getStringField(obj, "id", true)
	if err != nil {
		return domain.Transaction{}, err
	}

	attrs, err := getObjectField(obj, "attributes")
	if err != nil {
		return domain.Transaction{}, err
	}

	description, err := getStringField(attrs, "description", false)
	if err != nil {
		return domain.Transaction{}, err
	}
	rawText, err := getOptionalStringField(attrs, "rawText")
	if err != nil {
		return domain.Transaction{}, err
	}

	status, err := parseStatus(attrs)
	if err != nil {
		return domain.Transaction{}, err
	}

	amount, err := parseMoney(attrs)
	if err != nil {
		return domain.Transaction{}, err
	}

	createdAtStr, err := getStringField(attrs, "createdAt", true)
	if err != nil {
		return domain.Transaction{}, err
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid createdAt %q", createdAtStr)
	}

	return domain.Transaction{
		ID:          id,
		RawText:     rawText,
		Description: description,
		Amount:      amount,
		CreatedAt:   createdAt,
		Status:      status,
	}, nil
}

func parseStatus(attrs map[string]interface{}) (domain.TransactionStatus, error) {
	s, err := getStringField(attrs, "status", false)
	if err != nil {
		return "", err
	}
	switch status := domain.TransactionStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case "":
		return domain.TransactionStatusSettled, nil
	case domain.TransactionStatusHeld, domain.TransactionStatusSettled:
		return status, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

func parseMoney(attrs map[string]interface{}) (domain.Money, error) {
	obj, err := getObjectField(attrs, "amount")
	if err != nil {
		return domain.Money{}, err
	}

	currency, err := getStringField(obj, "currencyCode", true)
	if err != nil {
		return domain.Money{}, fmt.Errorf("amount: %w", err)
	}
	value, err := getDecimalField(obj, "value")
	if err != nil {
		return domain.Money{}, fmt.Errorf("amount: %w", err)
	}
	baseUnits, err := getOptionalInt64Field(obj, "valueInBaseUnits")
	if err != nil {
		return domain.Money{}, fmt.Errorf("amount: %w", err)
	}

	money := domain.Money{
		CurrencyCode: strings.ToUpper(currency),
		Value:        value,
	}
	if baseUnits != nil {
		if value.IsNegative() != (*baseUnits < 0) {
			return domain.Money{}, fmt.Errorf("amount: value %s and valueInBaseUnits %d disagree in sign", value, *baseUnits)
		}
		money.ValueInBaseUnits = *baseUnits
	} else {
		money.ValueInBaseUnits = value.Shift(2).Round(0).IntPart()
	}
	return money, nil
}
