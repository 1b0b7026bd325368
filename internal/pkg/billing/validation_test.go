package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
)

func TestValidateCreatePayment(t *testing.T) {
	in := pixInput()
	in.normalize()
	assert.NoError(t, validateCreatePayment(&in))

	in.Amount = decimal.Zero
	in.Currency = ""
	in.PaymentType = "cheque"
	in.Payer.Email = ""
	err := validateCreatePayment(&in)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	fields := apperror.FieldsOf(err)
	assert.Equal(t, "gt=0", fields["amount"])
	assert.Equal(t, "required", fields["currency"])
	assert.Contains(t, fields["payment_type"], "oneof")
	assert.Equal(t, "required", fields["payer.email"])
}

func TestValidateCreatePaymentAmountPrecision(t *testing.T) {
	in := pixInput()
	in.Amount = decimal.RequireFromString("10.005")
	err := validateCreatePayment(&in)
	require.Error(t, err)
	assert.Equal(t, "max_decimals=2", apperror.FieldsOf(err)["amount"])
}

func TestValidateCreatePaymentCardNeedsToken(t *testing.T) {
	in := pixInput()
	in.PaymentType = "credit_card"
	in.PaymentMethod = "visa"
	err := validateCreatePayment(&in)
	require.Error(t, err)
	assert.Equal(t, "required", apperror.FieldsOf(err)["card.token"])

	in.Card = &CardInput{Token: "tok_123"}
	assert.NoError(t, validateCreatePayment(&in))
}

func TestValidateCreateSubscriptionExemption(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateSubscriptionInput)
		fields map[string]string
	}{
		{
			name:   "regular",
			mutate: func(*CreateSubscriptionInput) {},
		},
		{
			name: "exempted without details",
			mutate: func(in *CreateSubscriptionInput) {
				in.IsExempted = true
			},
			fields: map[string]string{"exemption_reason": "required", "exemption_granted_by": "required"},
		},
		{
			name: "exemption details without flag",
			mutate: func(in *CreateSubscriptionInput) {
				in.ExemptionReason = "partner"
				in.ExemptionGrantedBy = uintPtr(7)
			},
			fields: map[string]string{
				"exemption_reason":     "excluded_unless=is_exempted",
				"exemption_granted_by": "excluded_unless=is_exempted",
			},
		},
		{
			name: "exempted needs no payer",
			mutate: func(in *CreateSubscriptionInput) {
				in.IsExempted = true
				in.ExemptionReason = "partner"
				in.ExemptionGrantedBy = uintPtr(7)
				in.Payer.Email = ""
			},
		},
		{
			name: "payer required otherwise",
			mutate: func(in *CreateSubscriptionInput) {
				in.Payer.Email = ""
			},
			fields: map[string]string{"payer.email": "required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := subscriptionInput(42)
			tt.mutate(&in)
			err := validateCreateSubscription(&in)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.fields, apperror.FieldsOf(err))
		})
	}
}

func TestValidateRefund(t *testing.T) {
	assert.NoError(t, validateRefund(&RefundInput{}))

	negative := decimal.RequireFromString("-1")
	err := validateRefund(&RefundInput{Amount: &negative})
	require.Error(t, err)
	assert.Equal(t, "gt=0", apperror.FieldsOf(err)["amount"])
}
