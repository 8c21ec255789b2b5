package handler

import (
	"errors"

	problem "github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/helpers/problem"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/models"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/services"
	"github.com/gin-gonic/gin"
)

// Vaste teksten per foutsoort; onderliggende fouten gaan alleen naar de log.
var kindDetails = map[services.Kind]string{
	services.KindTemplate: "certificate template is unavailable",
	services.KindStore:    "certificate record store is unavailable",
	services.KindRender:   "certificate rendering failed",
	services.KindPublish:  "certificate upload failed",
}

// CertificatesController binds HTTP requests to the IssuanceService
type CertificatesController struct {
	Service *services.IssuanceService
}

// NewCertificatesController creates a new controller
func NewCertificatesController(s *services.IssuanceService) *CertificatesController {
	return &CertificatesController{Service: s}
}

// IssueCertificate handles POST /certificates
func (c *CertificatesController) IssueCertificate(ctx *gin.Context, body *models.IssuanceRequest) (*models.IssuanceResponse, error) {
	resp, err := c.Service.Issue(ctx.Request.Context(), *body)
	if err != nil {
		return nil, ToProblem(err)
	}
	return resp, nil
}

// Health handles GET /health
func (c *CertificatesController) Health(ctx *gin.Context) (*models.HealthResponse, error) {
	return &models.HealthResponse{Status: "ok"}, nil
}

// ToProblem converts an issuance failure to a problem payload that exposes
// only the error kind and a fixed message.
func ToProblem(err error) error {
	var ierr *services.IssuanceError
	if !errors.As(err, &ierr) {
		return problem.NewInternalServerError("", "unexpected error")
	}
	switch {
	case ierr.Kind == services.KindValidation:
		params := make([]problem.InvalidParam, 0, len(ierr.Fields))
		for _, f := range ierr.Fields {
			params = append(params, problem.InvalidParam{Name: f, Reason: "is verplicht en moet geldig zijn"})
		}
		return problem.NewBadRequest("body", "Invalid input", params...)
	case ierr.IsUpstream():
		return problem.NewBadGateway(string(ierr.Kind), kindDetails[ierr.Kind])
	default:
		return problem.NewInternalServerError(string(ierr.Kind), kindDetails[ierr.Kind])
	}
}
