package billing

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PayFox/app/models"
	"github.com/ManuelReschke/PayFox/internal/pkg/apperror"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so API clients can map them back.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})
	return v
}

// structFields runs the struct tags and returns field -> failed rule.
func structFields(in any) map[string]string {
	fields := map[string]string{}
	err := validate.Struct(in)
	if err == nil {
		return fields
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["_"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fieldPath(fe.Namespace())] = rule
	}
	return fields
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func checkAmount(fields map[string]string, key string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		fields[key] = "gt=0"
		return
	}
	if !amount.Equal(amount.Round(2)) {
		fields[key] = "max_decimals=2"
	}
}

func validationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return apperror.Validation("invalid request", fields)
}

func validateCreatePayment(in *CreatePaymentInput) error {
	fields := structFields(in)
	checkAmount(fields, "amount", in.Amount)
	if in.Payer.Email == "" {
		fields["payer.email"] = "required"
	}
	if models.PaymentType(in.PaymentType).RequiresCardToken() && in.cardToken() == "" {
		fields["card.token"] = "required"
	}
	return validationError(fields)
}

// validateCreateSubscription checks the request shape including the
// exemption fields, which are all-or-nothing.
func validateCreateSubscription(in *CreateSubscriptionInput) error {
	fields := structFields(in)
	if in.IsExempted {
		if in.ExemptionReason == "" {
			fields["exemption_reason"] = "required"
		}
		if in.ExemptionGrantedBy == nil || *in.ExemptionGrantedBy == 0 {
			fields["exemption_granted_by"] = "required"
		}
	} else {
		if in.ExemptionReason != "" {
			fields["exemption_reason"] = "excluded_unless=is_exempted"
		}
		if in.ExemptionGrantedBy != nil {
			fields["exemption_granted_by"] = "excluded_unless=is_exempted"
		}
		if in.Payer.Email == "" {
			fields["payer.email"] = "required"
		}
	}
	return validationError(fields)
}

func validateRefund(in *RefundInput) error {
	fields := structFields(in)
	if in.Amount != nil {
		checkAmount(fields, "amount", *in.Amount)
	}
	return validationError(fields)
}

func validateCancel(in *CancelInput) error {
	return validationError(structFields(in))
}
