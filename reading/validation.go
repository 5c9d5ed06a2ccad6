package reading

import (
	"fmt"
	"math"
	"strings"

	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/types"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "invalid reading: " + strings.Join(parts, "; ")
}

func validate(in Input) (days.Date, types.ReadingType, error) {
	var errs ValidationErrors

	date, err := days.Parse(in.Date)
	if err != nil {
		errs = append(errs, FieldError{Field: "date", Message: err.Error()})
	}

	if math.IsNaN(in.KWhReal) || math.IsInf(in.KWhReal, 0) || in.KWhReal < 0 {
		errs = append(errs, FieldError{Field: "kwh_real", Message: "must be a number greater than or equal to 0"})
	}

	readingType, err := types.ParseReadingType(in.Type)
	if err != nil {
		errs = append(errs, FieldError{Field: "reading_type", Message: err.Error()})
	}

	if in.Plant.ID == "" {
		errs = append(errs, FieldError{Field: "plant_id", Message: "is required"})
	}
	if in.Plant.TotalPowerKW() <= 0 {
		errs = append(errs, FieldError{Field: "plant", Message: "total power must be greater than 0"})
	}

	if len(errs) > 0 {
		return "", "", errs
	}
	return date, readingType, nil
}
