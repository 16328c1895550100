package notionsync

import (
	"strings"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the Subscriptions database.
const (
	PropName           = "Name"
	PropSubscriptionID = "Subscription ID"
	PropAmount         = "Amount"
	PropCurrency       = "Currency"
	PropFrequency      = "Frequency"
	PropNextBilling    = "Next Billing"
	PropStatus         = "Status"
	PropConfidence     = "Confidence"
	PropShared         = "Shared"
	PropYourShare      = "Your Share"
	PropCategory       = "Category"
	PropDetection      = "Detection"
	PropPriceChange    = "Price Change"
)

// SubscriptionToNotionProperties converts a subscription to the properties of
// its page in the Subscriptions database.
func SubscriptionToNotionProperties(sub domain.Subscription) notionapi.Properties {
	amount, _ := sub.Amount.Current.Float64()

	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Title: richText(sub.Name),
		},
		PropSubscriptionID: notionapi.RichTextProperty{
			RichText: richText(sub.ID),
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropConfidence: notionapi.NumberProperty{
			Number: float64(sub.Confidence),
		},
		PropShared: notionapi.CheckboxProperty{
			Checkbox: sub.Sharing != nil && sub.Sharing.IsShared,
		},
	}

	if sub.Amount.Currency != "" {
		props[PropCurrency] = selectProperty(sub.Amount.Currency)
	}
	if sub.Billing.Frequency != "" {
		props[PropFrequency] = selectProperty(string(sub.Billing.Frequency))
	}
	if sub.Status != "" {
		props[PropStatus] = selectProperty(string(sub.Status))
	}
	if sub.DetectionMethod != "" {
		props[PropDetection] = selectProperty(string(sub.DetectionMethod))
	}
	if sub.Category != "" {
		props[PropCategory] = selectProperty(sub.Category)
	}

	if !sub.Billing.NextBillingDate.IsZero() {
		props[PropNextBilling] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: dateOnly(sub.Billing.NextBillingDate),
			},
		}
	}

	if sub.Sharing != nil && sub.Sharing.IsShared {
		share, _ := sub.Sharing.YourShare.Float64()
		props[PropYourShare] = notionapi.NumberProperty{Number: share}
	}

	if sub.PriceChange != nil {
		change, _ := sub.PriceChange.Amount.Float64()
		props[PropPriceChange] = notionapi.NumberProperty{Number: change}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

func selectProperty(name string) notionapi.SelectProperty {
	// Notion rejects commas in select option names.
	return notionapi.SelectProperty{
		Select: notionapi.Option{Name: strings.ReplaceAll(name, ",", " ")},
	}
}

func dateOnly(t time.Time) *notionapi.Date {
	d := notionapi.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return &d
}
