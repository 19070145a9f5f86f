package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// DOBLayout is the date format accepted for the dob field
const DOBLayout = "2006-01-02"

// ValidatePhone accepts numbers libphonenumber considers valid. Numbers
// without a leading + are read in region.
func ValidatePhone(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		if _, err := NormalizePhone(s, region); err != nil {
			return err
		}
		return nil
	}
}

// NormalizePhone parses raw and returns it in E.164 form
func NormalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), strings.ToUpper(region))
	if err != nil {
		return "", errors.New("must be a valid phone number")
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("must be a valid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// invalidFieldsError turns ozzo validation errors into a coded error
// listing the offending fields.
func invalidFieldsError(err error) error {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return codedError(CodeInvalidFields, err, "invalid fields")
	}

	fields := make([]string, 0, len(verrs))
	details := make(map[string]string, len(verrs))
	for name, ferr := range verrs {
		if ferr == nil {
			continue
		}
		fields = append(fields, name)
		details[name] = ferr.Error()
	}
	sort.Strings(fields)
	return codedError(CodeInvalidFields, nil, fmt.Sprintf("invalid fields: %s", strings.Join(fields, ", ")),
		"fields", fields,
		"details", details,
	)
}
