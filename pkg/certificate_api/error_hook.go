package certificate_api

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	problem "github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/helpers/problem"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/models"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/loopfz/gadgeto/tonic"
)

// ErrorHook maps handler errors to problem+json responses. Install it once
// with tonic.SetErrorHook before serving.
func ErrorHook(logger *slog.Logger) tonic.ErrorHook {
	return func(c *gin.Context, err error) (int, interface{}) {
		c.Header("Content-Type", "application/problem+json")

		// 1) Bind/validate errors → 400 met correcte invalidParams
		var be tonic.BindError
		if errors.As(err, &be) || isValidationErr(err) {
			invalids := invalidParamsFromBinding(err, models.IssuanceRequest{})
			apiErr := problem.NewBadRequest("body", "Invalid input", invalids...)
			return apiErr.Status, apiErr
		}

		// 2) Eigen APIError → pass-through
		var apiErr problem.APIError
		if errors.As(err, &apiErr) {
			return apiErr.Status, apiErr
		}

		// 3) Alles anders → 500, details alleen in de log
		logger.Error("unhandled error", "path", c.Request.URL.Path, "error", err)
		internal := problem.NewInternalServerError("", "unexpected error")
		return internal.Status, internal
	}
}

func invalidParamsFromBinding(err error, sample any) []problem.InvalidParam {
	var verrs validator.ValidationErrors
	var be tonic.BindError
	if errors.As(err, &be) {
		verrs = be.ValidationErrors()
	} else {
		errors.As(err, &verrs)
	}
	if len(verrs) == 0 {
		// Geen validator-errors? Geef generiek terug.
		return []problem.InvalidParam{{Name: "body", Reason: "request body kon niet gelezen worden"}}
	}

	t := reflect.TypeOf(sample)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	out := make([]problem.InvalidParam, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		// StructField -> json tag
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if tag := f.Tag.Get("json"); tag != "" && tag != "-" {
				name = strings.Split(tag, ",")[0]
			}
		}
		out = append(out, problem.InvalidParam{
			Name:   name,
			Reason: humanReason(fe),
		})
	}
	return out
}

func humanReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is verplicht"
	default:
		return fe.Error()
	}
}

func isValidationErr(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}
