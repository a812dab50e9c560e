package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bna-integrations/checkout-reconciler/internal/order"
)

func sampleOrder() *order.Order {
	return &order.Order{
		ID:       "ord-1",
		Status:   order.StatusCreated,
		Total:    42.50,
		Currency: "USD",
		Billing: order.Billing{
			Email:     "Jane.Doe@Example.com",
			FirstName: "Jane",
			LastName:  "Doe",
			Phone:     "+1 (416) 555-0187",
			Address:   "1 Main St",
			City:      "Toronto",
			State:     "ON",
			Postcode:  "M5V 1A1",
			Country:   "CA",
		},
		Items: []order.Item{{Name: "Widget", Quantity: 2, Price: 21.25}},
	}
}

func TestPayloadVariantsAreExclusive(t *testing.T) {
	o := sampleOrder()

	withID := payloadWithCustomerID("iframe-1", o, "cus_123")
	assert.Equal(t, "cus_123", withID.CustomerID)
	assert.Nil(t, withID.CustomerInfo)
	assert.False(t, withID.SaveCustomer)

	withInfo := payloadWithCustomerInfo("iframe-1", o)
	assert.Empty(t, withInfo.CustomerID)
	assert.NotNil(t, withInfo.CustomerInfo)
	assert.True(t, withInfo.SaveCustomer)

	minimal := minimalPayload("iframe-1", o)
	assert.Empty(t, minimal.CustomerID)
	assert.Nil(t, minimal.CustomerInfo)
	assert.False(t, minimal.SaveCustomer)
}

func TestPayloadCarriesItemsAndSubtotal(t *testing.T) {
	p := payloadWithCustomerInfo("iframe-1", sampleOrder())
	assert.Equal(t, "iframe-1", p.IframeID)
	assert.Equal(t, 42.50, p.Subtotal)
	assert.Equal(t, "USD", p.Currency)
	if assert.Len(t, p.Items, 1) {
		assert.Equal(t, "Widget", p.Items[0].Description)
		assert.Equal(t, 2, p.Items[0].Quantity)
		assert.Equal(t, 42.50, p.Items[0].Amount)
	}
}

func TestNormalizeCountry(t *testing.T) {
	assert.Equal(t, "CA", normalizeCountry("ca"))
	assert.Equal(t, "GB", normalizeCountry(" GB "))
	assert.Equal(t, "US", normalizeCountry("DE"))
	assert.Equal(t, "US", normalizeCountry(""))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "4165550187", normalizePhone("+1 (416) 555-0187")[1:])
	assert.Equal(t, placeholderPhone, normalizePhone("555-1212")) // 7 digits
	assert.Equal(t, placeholderPhone, normalizePhone(""))
	assert.Equal(t, "4165550187", normalizePhone("416-555-0187"))
}

func TestNormalizeProvince(t *testing.T) {
	assert.Equal(t, "BC", normalizeProvince("bc", "CA"))
	assert.Equal(t, "ON", normalizeProvince("XX", "CA")) // invalid code falls back
	assert.Equal(t, "TX", normalizeProvince("TX", "US"))
	assert.Equal(t, fallbackUSState, normalizeProvince("", "US"))
	assert.Equal(t, placeholderProvince, normalizeProvince("Kent", "GB"))
}

func TestCustomerInfoNeverHasEmptyFields(t *testing.T) {
	info := buildCustomerInfo(order.Billing{Email: "A@B.co", Country: "ZZ"})
	assert.Equal(t, "a@b.co", info.Email)
	assert.Equal(t, placeholderName, info.FirstName)
	assert.Equal(t, placeholderName, info.LastName)
	assert.Equal(t, placeholderPhone, info.PhoneNumber)
	assert.Equal(t, placeholderStreet, info.Address.StreetName)
	assert.Equal(t, placeholderCity, info.Address.City)
	assert.Equal(t, placeholderPostal, info.Address.PostalCode)
	assert.Equal(t, "US", info.Address.Country)
	assert.Equal(t, fallbackUSState, info.Address.Province)
}
