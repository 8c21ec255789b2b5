package problem

import "net/http"

type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type ErrorDetail struct {
	In       string `json:"in"`
	Location string `json:"location"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

// APIError implementeert error + Problem Details (RFC 7807)
type APIError struct {
	Title  string        `json:"title"`
	Status int           `json:"status"`
	Errors []ErrorDetail `json:"errors,omitempty"`
}

func (e APIError) Error() string { return e.Title }

func NewBadRequest(location, detail string, params ...InvalidParam) APIError {
	return APIError{
		Title:  "Request validation failed",
		Status: http.StatusBadRequest,
		Errors: toErrorDetails(params, detail, "body", location, "bad_request"),
	}
}

func NewInternalServerError(code, detail string) APIError {
	if code == "" {
		code = "internal_error"
	}
	return APIError{
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
		Errors: toErrorDetails(nil, detail, "", "", code),
	}
}

// NewBadGateway is used when a downstream collaborator (store, renderer,
// object storage) failed. code carries the failing collaborator kind.
func NewBadGateway(code, detail string) APIError {
	return APIError{
		Title:  "Upstream Failure",
		Status: http.StatusBadGateway,
		Errors: toErrorDetails(nil, detail, "", "", code),
	}
}

func toErrorDetails(params []InvalidParam, fallbackDetail, fallbackIn, fallbackLocation, fallbackCode string) []ErrorDetail {
	if len(params) == 0 {
		if fallbackDetail == "" {
			return nil
		}
		return []ErrorDetail{{
			In:       fallbackIn,
			Location: fallbackLocation,
			Code:     fallbackCode,
			Detail:   fallbackDetail,
		}}
	}
	out := make([]ErrorDetail, 0, len(params))
	for _, p := range params {
		out = append(out, ErrorDetail{
			In:       "body",
			Location: p.Name,
			Code:     p.Name,
			Detail:   p.Reason,
		})
	}
	return out
}
