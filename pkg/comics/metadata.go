package comics

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/slucky31/mycomicsmanager-api/pkg/errcodes"
	"github.com/slucky31/mycomicsmanager-api/pkg/isbn"
	"github.com/slucky31/mycomicsmanager-api/pkg/models"
)

// MetadataUpdate is an edit of a comic record. Nil fields are left unchanged.
type MetadataUpdate struct {
	Title       *string    `json:"title" validate:"omitnil,max=255"`
	Series      *string    `json:"series" validate:"omitnil,max=255"`
	Volume      *int       `json:"volume" validate:"omitnil,min=0"`
	Writer      *string    `json:"writer"`
	Penciller   *string    `json:"penciller"`
	Colorist    *string    `json:"colorist"`
	Editor      *string    `json:"editor"`
	LanguageISO *string    `json:"language_iso" validate:"omitempty,min=2,max=3"`
	ISBN        *string    `json:"isbn" validate:"omitempty,comic_isbn"`
	URL         *string    `json:"url" validate:"omitempty,url"`
	Price       *float64   `json:"price" validate:"omitnil,min=0"`
	Published   *time.Time `json:"published"`
	Category    *string    `json:"category"`
	Review      *float64   `json:"review" validate:"omitnil,min=0"`
	CoverType   *string    `json:"cover_type" validate:"omitnil,oneof=portrait landscape_left landscape_right"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("comic_isbn", func(fl validator.FieldLevel) bool {
		return isbn.Valid(isbn.Normalize(fl.Field().String()))
	})
	return v
}

// Validate reports the first invalid field as a ValidationError.
func (u *MetadataUpdate) Validate() error {
	err := validate.Struct(u)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WithStack(err)
	}
	return errcodes.ValidationError(formatValidationError(verrs[0]))
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case "oneof":
		valids := []string{}
		for _, p := range strings.Fields(err.Param()) {
			valids = append(valids, fmt.Sprintf("%q", p))
		}
		return fmt.Sprintf("%q must be one of the following: %s", field, strings.Join(valids, ", "))
	case "min":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("%q length must be greater than or equal to %s characters", field, err.Param())
		}
		return fmt.Sprintf("%q must be greater than or equal to %s", field, err.Param())
	case "max":
		if err.Kind() == reflect.String {
			return fmt.Sprintf("%q length must be less than or equal to %s characters", field, err.Param())
		}
		return fmt.Sprintf("%q must be less than or equal to %s", field, err.Param())
	case "comic_isbn":
		return fmt.Sprintf("%q is not a valid ISBN-10 or ISBN-13", field)
	case "url":
		return fmt.Sprintf("%q is not a valid URL", field)
	default:
		return fmt.Sprintf("%q is invalid (%s)", field, err.Tag())
	}
}

// ValidateCoverType fails with a ValidationError unless t is a known cover
// type.
func ValidateCoverType(t string) error {
	return (&MetadataUpdate{CoverType: &t}).Validate()
}

// ApplyTo copies the set fields onto comic. ISBNs are stored normalized.
func (u *MetadataUpdate) ApplyTo(comic *models.Comic) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}

	setString(&comic.Title, u.Title)
	setString(&comic.Series, u.Series)
	setString(&comic.Writer, u.Writer)
	setString(&comic.Penciller, u.Penciller)
	setString(&comic.Colorist, u.Colorist)
	setString(&comic.Editor, u.Editor)
	setString(&comic.LanguageISO, u.LanguageISO)
	setString(&comic.URL, u.URL)
	setString(&comic.Category, u.Category)
	setString(&comic.CoverType, u.CoverType)
	if u.ISBN != nil {
		comic.ISBN = isbn.Normalize(*u.ISBN)
	}
	if u.Volume != nil {
		comic.Volume = *u.Volume
	}
	if u.Price != nil {
		comic.Price = *u.Price
	}
	if u.Review != nil {
		comic.Review = *u.Review
	}
	if u.Published != nil {
		published := *u.Published
		comic.Published = &published
	}
}
