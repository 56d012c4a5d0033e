package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// GSTRates lists the tax rates a product may carry.
var GSTRates = []decimal.Decimal{
	decimal.NewFromInt(0),
	decimal.NewFromInt(5),
	decimal.NewFromInt(12),
	decimal.NewFromInt(18),
	decimal.NewFromInt(28),
}

// FormValue is a raw form value. It decodes from a JSON string or a JSON
// number so that "10" and 10 arrive as the same text.
type FormValue string

// UnmarshalJSON accepts strings, numbers and null.
func (v *FormValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FormValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("form value must be a string or a number: %w", err)
	}
	*v = FormValue(n.String())
	return nil
}

// ProductInput is the raw, untyped product form as collected from a user.
// Parse is the only way to turn it into domain values.
type ProductInput struct {
	Name          FormValue `json:"name" validate:"required"`
	Category      FormValue `json:"category"`
	Unit          FormValue `json:"unit"`
	GST           FormValue `json:"gst" validate:"required,numeric"`
	PurchasePrice FormValue `json:"purchasePrice" validate:"required,numeric"`
	SellingPrice  FormValue `json:"sellingPrice" validate:"omitempty,numeric"`
	Stock         FormValue `json:"stock" validate:"required,numeric"`
	MinStock      FormValue `json:"minStock" validate:"required,numeric"`
	Brand         FormValue `json:"brand,omitempty"`
	Batch         FormValue `json:"batch,omitempty"`
	MfgDate       FormValue `json:"mfgDate,omitempty"`
	ExpDate       FormValue `json:"expDate,omitempty"`
	HSN           FormValue `json:"hsn,omitempty"`
}

// DefaultInput returns the blank add-product form.
func DefaultInput() ProductInput {
	return ProductInput{
		Category: "General",
		Unit:     "Pcs",
		GST:      "5",
		MinStock: "10",
	}
}

// InputFromProduct prefills an edit form from a catalog product.
func InputFromProduct(p Product) ProductInput {
	return ProductInput{
		Name:          FormValue(p.Name),
		Category:      FormValue(p.Category),
		Unit:          FormValue(p.Unit),
		GST:           FormValue(p.GST.String()),
		PurchasePrice: FormValue(p.PurchasePrice.String()),
		SellingPrice:  FormValue(p.SellingPrice.String()),
		Stock:         FormValue(strconv.FormatInt(p.Stock, 10)),
		MinStock:      FormValue(strconv.FormatInt(p.MinStock, 10)),
		Brand:         FormValue(p.Brand),
		Batch:         FormValue(p.Batch),
		MfgDate:       FormValue(p.MfgDate),
		ExpDate:       FormValue(p.ExpDate),
		HSN:           FormValue(p.HSN),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Parse trims, validates and coerces the form into a ProductDraft.
// Any failure is a validation error naming the offending field.
func (in ProductInput) Parse() (ProductDraft, error) {
	in = in.trimmed()

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return ProductDraft{}, validationFromTag(verrs[0])
		}
		return ProductDraft{}, NewValidationError("", err.Error())
	}

	gst, err := parseDecimal("gst", string(in.GST))
	if err != nil {
		return ProductDraft{}, err
	}
	if !isGSTRate(gst) {
		return ProductDraft{}, NewValidationError("gst", fmt.Sprintf("gst must be one of %s", gstRateList()))
	}

	purchasePrice, err := parseDecimal("purchasePrice", string(in.PurchasePrice))
	if err != nil {
		return ProductDraft{}, err
	}

	sellingPrice := decimal.Zero
	if in.SellingPrice != "" {
		sellingPrice, err = parseDecimal("sellingPrice", string(in.SellingPrice))
		if err != nil {
			return ProductDraft{}, err
		}
	}

	stock, err := parseQuantity("stock", string(in.Stock))
	if err != nil {
		return ProductDraft{}, err
	}
	minStock, err := parseQuantity("minStock", string(in.MinStock))
	if err != nil {
		return ProductDraft{}, err
	}

	return ProductDraft{
		Name:          string(in.Name),
		Category:      string(in.Category),
		Unit:          string(in.Unit),
		GST:           gst,
		PurchasePrice: purchasePrice,
		SellingPrice:  sellingPrice,
		Stock:         stock,
		MinStock:      minStock,
		Brand:         string(in.Brand),
		Batch:         string(in.Batch),
		MfgDate:       string(in.MfgDate),
		ExpDate:       string(in.ExpDate),
		HSN:           string(in.HSN),
	}, nil
}

func (in ProductInput) trimmed() ProductInput {
	t := func(v FormValue) FormValue { return FormValue(strings.TrimSpace(string(v))) }
	return ProductInput{
		Name:          t(in.Name),
		Category:      t(in.Category),
		Unit:          t(in.Unit),
		GST:           t(in.GST),
		PurchasePrice: t(in.PurchasePrice),
		SellingPrice:  t(in.SellingPrice),
		Stock:         t(in.Stock),
		MinStock:      t(in.MinStock),
		Brand:         t(in.Brand),
		Batch:         t(in.Batch),
		MfgDate:       t(in.MfgDate),
		ExpDate:       t(in.ExpDate),
		HSN:           t(in.HSN),
	}
}

func validationFromTag(fe validator.FieldError) *DomainError {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return NewValidationError(field, fmt.Sprintf("%s is required", field))
	case "numeric":
		return NewValidationError(field, fmt.Sprintf("%s must be a number", field))
	default:
		return NewValidationError(field, fmt.Sprintf("%s is invalid", field))
	}
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, NewValidationError(field, fmt.Sprintf("%s must be a number", field))
	}
	if d.IsNegative() {
		return decimal.Decimal{}, NewValidationError(field, fmt.Sprintf("%s cannot be negative", field))
	}
	return d, nil
}

// parseQuantity reads a count by value, so "10", "10.0" and "+10" agree.
func parseQuantity(field, raw string) (int64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() || !d.IsInteger() || d.GreaterThan(maxQuantity) {
		return 0, NewValidationError(field, fmt.Sprintf("%s must be a whole number of zero or more", field))
	}
	return d.IntPart(), nil
}

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

func isGSTRate(d decimal.Decimal) bool {
	for _, rate := range GSTRates {
		if rate.Equal(d) {
			return true
		}
	}
	return false
}

func gstRateList() string {
	parts := make([]string, len(GSTRates))
	for i, rate := range GSTRates {
		parts[i] = rate.String()
	}
	return strings.Join(parts, ", ")
}
