package submission

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultMaxFileSize  = 5 << 20
	DefaultMaxTotalSize = 25 << 20
)

var (
	mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
	platePattern  = regexp.MustCompile(`^[A-Z]{2}[0-9]{1,2}[A-Z]{0,3}[0-9]{4}$`)
)

// Limits bounds document sizes in bytes.
type Limits struct {
	MaxFileSize  int64
	MaxTotalSize int64
}

// DefaultLimits are 5 MiB per file and 25 MiB per submission.
func DefaultLimits() Limits {
	return Limits{MaxFileSize: DefaultMaxFileSize, MaxTotalSize: DefaultMaxTotalSize}
}

func (l Limits) withDefaults() Limits {
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = DefaultMaxFileSize
	}
	if l.MaxTotalSize <= 0 {
		l.MaxTotalSize = DefaultMaxTotalSize
	}
	return l
}

// Validator checks Input fields and documents. The zero value is ready to use.
type Validator struct {
	once     sync.Once
	validate *validator.Validate
}

func (v *Validator) lazyinit() {
	v.once.Do(func() {
		v.validate = validator.New(validator.WithRequiredStructEnabled())
		v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.validate.RegisterValidation("mobile_in", func(fl validator.FieldLevel) bool {
			return mobilePattern.MatchString(fl.Field().String())
		})
		_ = v.validate.RegisterValidation("plate_in", func(fl validator.FieldLevel) bool {
			return platePattern.MatchString(fl.Field().String())
		})
	})
}

// Normalize trims the free-text fields, strips whitespace from the mobile number and
// uppercases the vehicle number with all whitespace removed.
func Normalize(in Input) Input {
	return Input{
		CustomerName:  strings.TrimSpace(in.CustomerName),
		MobileNumber:  stripSpace(in.MobileNumber),
		VehicleNumber: strings.ToUpper(stripSpace(in.VehicleNumber)),
		BankName:      strings.TrimSpace(in.BankName),
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ValidateInput normalizes in and checks it. The returned Input is the normalized form.
func (v *Validator) ValidateInput(in Input) (Input, error) {
	v.lazyinit()
	in = Normalize(in)
	err := v.validate.Struct(in)
	if err == nil {
		return in, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return in, err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.add(fe.Field(), fieldMessage(fe.Field(), fe.Tag()))
	}
	return in, out
}

func fieldMessage(field, tag string) string {
	switch field {
	case "customerName":
		return lengthMessage("Customer name", tag)
	case "bankName":
		return lengthMessage("Bank name", tag)
	case "mobileNumber":
		return "Invalid Indian mobile number (10 digits, starting with 6-9)"
	case "vehicleNumber":
		return "Invalid Indian vehicle number format (e.g., MH12AB1234)"
	default:
		return "Invalid value"
	}
}

func lengthMessage(label, tag string) string {
	switch tag {
	case "max":
		return label + " must be less than 100 characters"
	default:
		return label + " must be at least 2 characters"
	}
}

// ValidateDocuments checks type, per-file size, content signature and aggregate size, in that
// order. A signature mismatch is reported as *SecurityRejection ahead of any other problem.
func ValidateDocuments(docs []Document, limits Limits) error {
	limits = limits.withDefaults()
	verr := &ValidationError{}
	seen := map[DocumentType]bool{}
	var total int64

	for _, d := range docs {
		if d.Type.Label() == "" {
			verr.add("documents", fmt.Sprintf("Unknown document type: %s", d.Type))
			continue
		}
		if seen[d.Type] {
			verr.add(string(d.Type), fmt.Sprintf("Only one file allowed for %s", d.Type))
			continue
		}
		seen[d.Type] = true
		total += int64(len(d.Data))

		if _, ok := extensions[d.MimeType]; !ok {
			verr.add(string(d.Type), fmt.Sprintf("Invalid file type for %s: %s", d.Type, d.MimeType))
			continue
		}
		if int64(len(d.Data)) > limits.MaxFileSize {
			verr.add(string(d.Type), fmt.Sprintf("File too large for %s. Maximum size is %s.", d.Type, formatMiB(limits.MaxFileSize)))
			continue
		}
		if !MatchesSignature(d.Data, d.MimeType) {
			return &SecurityRejection{Document: d.Type, DeclaredType: d.MimeType}
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	if total > limits.MaxTotalSize {
		verr.add("documents", fmt.Sprintf("Total upload size exceeds %s limit.", formatMiB(limits.MaxTotalSize)))
		return verr
	}
	return nil
}

func formatMiB(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
