package gateway

import (
	"strings"

	"github.com/bna-integrations/checkout-reconciler/internal/order"
)

// The provider API rejects empty strings in several customer fields, so
// anything missing is replaced with a fixed placeholder rather than left
// blank. Values are arbitrary but stable.
const (
	placeholderPhone    = "5555555555"
	placeholderName     = "Unknown"
	placeholderStreet   = "Unknown"
	placeholderCity     = "Unknown"
	placeholderPostal   = "00000"
	placeholderProvince = "N/A"
	fallbackCountry     = "US"
	fallbackCAProvince  = "ON"
	fallbackUSState     = "NY"
)

// CustomerInfo is the inline customer profile used for first-time remote
// customer creation.
type CustomerInfo struct {
	Email       string  `json:"email"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	PhoneNumber string  `json:"phoneNumber"`
	Address     Address `json:"address"`
}

type Address struct {
	StreetName string `json:"streetName"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

type payloadItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Amount      float64 `json:"amount"`
}

// checkoutPayload is the checkout request body. Exactly one of CustomerID /
// CustomerInfo may be set; the constructors below are the only way payloads
// are built, which keeps that exclusive.
type checkoutPayload struct {
	IframeID     string        `json:"iframeId"`
	CustomerID   string        `json:"customerId,omitempty"`
	CustomerInfo *CustomerInfo `json:"customerInfo,omitempty"`
	SaveCustomer bool          `json:"saveCustomer"`
	Items        []payloadItem `json:"items"`
	Subtotal     float64       `json:"subtotal"`
	Currency     string        `json:"currency"`
}

// payloadWithCustomerID references an already-known remote customer.
func payloadWithCustomerID(iframeID string, o *order.Order, customerID string) checkoutPayload {
	p := basePayload(iframeID, o)
	p.CustomerID = customerID
	return p
}

// payloadWithCustomerInfo inlines the normalized billing profile and asks
// the provider to create the customer.
func payloadWithCustomerInfo(iframeID string, o *order.Order) checkoutPayload {
	p := basePayload(iframeID, o)
	info := buildCustomerInfo(o.Billing)
	p.CustomerInfo = &info
	p.SaveCustomer = true
	return p
}

// minimalPayload carries no customer data at all. It is the last rung of the
// duplicate-customer retry ladder.
func minimalPayload(iframeID string, o *order.Order) checkoutPayload {
	return basePayload(iframeID, o)
}

func basePayload(iframeID string, o *order.Order) checkoutPayload {
	items := make([]payloadItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, payloadItem{
			Description: it.Name,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Amount:      float64(it.Quantity) * it.Price,
		})
	}
	return checkoutPayload{
		IframeID: iframeID,
		Items:    items,
		Subtotal: o.Total,
		Currency: o.Currency,
	}
}

func buildCustomerInfo(b order.Billing) CustomerInfo {
	country := normalizeCountry(b.Country)
	return CustomerInfo{
		Email:       strings.ToLower(strings.TrimSpace(b.Email)),
		FirstName:   orPlaceholder(b.FirstName, placeholderName),
		LastName:    orPlaceholder(b.LastName, placeholderName),
		PhoneNumber: normalizePhone(b.Phone),
		Address: Address{
			StreetName: orPlaceholder(b.Address, placeholderStreet),
			City:       orPlaceholder(b.City, placeholderCity),
			Province:   normalizeProvince(b.State, country),
			Country:    country,
			PostalCode: orPlaceholder(b.Postcode, placeholderPostal),
		},
	}
}

var allowedCountries = map[string]bool{
	"US": true,
	"CA": true,
	"GB": true,
	"AU": true,
}

// normalizeCountry forces the country onto the provider allow-list.
func normalizeCountry(country string) string {
	c := strings.ToUpper(strings.TrimSpace(country))
	if allowedCountries[c] {
		return c
	}
	return fallbackCountry
}

// normalizePhone strips non-digits; anything shorter than 10 digits is
// replaced wholesale with the placeholder.
func normalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() < 10 {
		return placeholderPhone
	}
	return digits.String()
}

// The 13 Canadian provincial and territorial codes.
var caProvinces = map[string]bool{
	"AB": true, "BC": true, "MB": true, "NB": true, "NL": true,
	"NS": true, "NT": true, "NU": true, "ON": true, "PE": true,
	"QC": true, "SK": true, "YT": true,
}

func normalizeProvince(state, country string) string {
	s := strings.ToUpper(strings.TrimSpace(state))
	switch country {
	case "CA":
		if caProvinces[s] {
			return s
		}
		return fallbackCAProvince
	case "US":
		if s != "" {
			return s
		}
		return fallbackUSState
	default:
		return placeholderProvince
	}
}

func orPlaceholder(v, placeholder string) string {
	if strings.TrimSpace(v) == "" {
		return placeholder
	}
	return v
}
