package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"scanventory-api/internal/expiry"
	"scanventory-api/internal/model"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("shelf", func(fl validator.FieldLevel) bool {
		return model.Shelf(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).Valid()
	})
	v.RegisterAlias("itemname", fmt.Sprintf("max=%d", model.MaxItemNameLength))

	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := expiry.ParseDate(fl.Field().String())
		return err == nil
	})

	return v
}

// ItemInput is the body of an item create request. A new item holds at least one unit.
type ItemInput struct {
	Name           string `json:"name" validate:"required,itemname"`
	Quantity       *int   `json:"quantity" validate:"omitnil,min=1"`
	Shelf          string `json:"shelf" validate:"required,shelf"`
	Category       string `json:"category" validate:"required,category"`
	ExpirationDate string `json:"expirationDate" validate:"required,isodate"`
	Barcode        string `json:"barcode" validate:"omitempty,max=64"`
}

// ItemPatch is the body of an item update request. Absent fields are left untouched.
// A quantity of 0 removes the item.
type ItemPatch struct {
	Name           *string `json:"name" validate:"omitnil,min=1,itemname"`
	Quantity       *int    `json:"quantity" validate:"omitnil,min=0"`
	Shelf          *string `json:"shelf" validate:"omitnil,shelf"`
	Category       *string `json:"category" validate:"omitnil,category"`
	ExpirationDate *string `json:"expirationDate" validate:"omitnil,isodate"`
	Barcode        *string `json:"barcode" validate:"omitnil,max=64"`
}

// toItem validates the input and builds a new item without ID or timestamps.
func (in ItemInput) toItem() (*model.Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Barcode = strings.TrimSpace(in.Barcode)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	exp, _ := expiry.ParseDate(in.ExpirationDate)
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}

	return &model.Item{
		Name:           in.Name,
		Quantity:       qty,
		Shelf:          model.Shelf(in.Shelf),
		Category:       model.Category(in.Category),
		ExpirationDate: exp,
		Barcode:        in.Barcode,
	}, nil
}

// toUpdate validates the patch and converts it into a store update.
func (p ItemPatch) toUpdate() (model.ItemUpdate, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	if p.Barcode != nil {
		barcode := strings.TrimSpace(*p.Barcode)
		p.Barcode = &barcode
	}
	if err := validateStruct(p); err != nil {
		return model.ItemUpdate{}, err
	}

	u := model.ItemUpdate{
		Name:     p.Name,
		Quantity: p.Quantity,
		Barcode:  p.Barcode,
	}
	if p.Shelf != nil {
		shelf := model.Shelf(*p.Shelf)
		u.Shelf = &shelf
	}
	if p.Category != nil {
		category := model.Category(*p.Category)
		u.Category = &category
	}
	if p.ExpirationDate != nil {
		exp, _ := expiry.ParseDate(*p.ExpirationDate)
		u.ExpirationDate = &exp
	}
	return u, nil
}

func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating input: %w", err)
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return "cannot be empty"
		}
		return "must be at least " + fe.Param()
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "itemname":
		return fmt.Sprintf("must be at most %d characters", model.MaxItemNameLength)
	case "shelf":
		return "must be one of the known shelves"
	case "category":
		return "must be one of the known categories"
	case "isodate":
		return "must be a date in YYYY-MM-DD or RFC3339 format"
	}
	return "is invalid"
}
