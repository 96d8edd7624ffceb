package payout

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
)

// Details is the method-specific part of a payout request
type Details interface {
	Method() models.PayoutMethod
	Fields() models.JSON
}

// BankDetails is a bank account transfer
type BankDetails struct {
	AccountHolder string `json:"account_holder" validate:"required,max=120"`
	AccountNumber string `json:"account_number" validate:"required,number,min=6,max=18"`
	IFSC          string `json:"ifsc" validate:"required,ifsc"`
}

func (BankDetails) Method() models.PayoutMethod { return models.PayoutMethodBank }

func (d BankDetails) Fields() models.JSON {
	return models.JSON{"account_holder": d.AccountHolder, "account_number": d.AccountNumber, "ifsc": d.IFSC}
}

// UPIDetails is a transfer to a virtual payment address
type UPIDetails struct {
	VPA string `json:"vpa" validate:"required,vpa"`
}

func (UPIDetails) Method() models.PayoutMethod { return models.PayoutMethodUPI }

func (d UPIDetails) Fields() models.JSON {
	return models.JSON{"vpa": d.VPA}
}

// QRDetails points at an uploaded payment QR image
type QRDetails struct {
	ImageURL string `json:"image_url" validate:"required,http_url,max=2048"`
}

func (QRDetails) Method() models.PayoutMethod { return models.PayoutMethodQR }

func (d QRDetails) Fields() models.JSON {
	return models.JSON{"image_url": d.ImageURL}
}

var (
	ifscPattern = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	vpaPattern  = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,256}@[a-zA-Z][a-zA-Z0-9]{1,63}$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("ifsc", func(fl validator.FieldLevel) bool {
		return ifscPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("vpa", func(fl validator.FieldLevel) bool {
		return vpaPattern.MatchString(fl.Field().String())
	})
	return v
}

// ParseDetails decodes and validates raw details for method
func ParseDetails(method models.PayoutMethod, raw json.RawMessage) (Details, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: payout details are required", repository.ErrValidation)
	}

	var details Details
	switch method {
	case models.PayoutMethodBank:
		var d BankDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("%w: invalid bank details", repository.ErrValidation)
		}
		d.AccountHolder = strings.TrimSpace(d.AccountHolder)
		d.AccountNumber = strings.TrimSpace(d.AccountNumber)
		d.IFSC = strings.ToUpper(strings.TrimSpace(d.IFSC))
		details = d
	case models.PayoutMethodUPI:
		var d UPIDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("%w: invalid upi details", repository.ErrValidation)
		}
		d.VPA = strings.TrimSpace(d.VPA)
		details = d
	case models.PayoutMethodQR:
		var d QRDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("%w: invalid qr details", repository.ErrValidation)
		}
		d.ImageURL = strings.TrimSpace(d.ImageURL)
		details = d
	default:
		return nil, fmt.Errorf("%w: unknown payout method %q", repository.ErrValidation, method)
	}

	if err := validate.Struct(details); err != nil {
		return nil, fmt.Errorf("%w: %s", repository.ErrValidation, describe(err))
	}
	return details, nil
}

// ValidMethod reports whether m is a supported payout method
func ValidMethod(m models.PayoutMethod) bool {
	switch m {
	case models.PayoutMethodBank, models.PayoutMethodUPI, models.PayoutMethodQR:
		return true
	}
	return false
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
