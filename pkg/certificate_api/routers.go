package certificate_api

import (
	"log/slog"

	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/handler"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/loopfz/gadgeto/tonic"
	"github.com/wI2L/fizz"
	"github.com/wI2L/fizz/openapi"
)

var (
	apiVersionHeader = fizz.Header(
		"API-Version",
		"De API-versie van de response",
		"", // lege string betekent: primitive string in het OpenAPI-document
	)

	badRequestResponse = fizz.Response(
		"400",
		"Request validation failed",
		nil,
		nil,
		nil,
	)

	badGatewayResponse = fizz.Response(
		"502",
		"Record store, renderer of object storage faalde",
		nil,
		nil,
		nil,
	)
)

func NewRouter(apiVersion string, controller *handler.CertificatesController, logger *slog.Logger) *fizz.Fizz {
	// 0) Gin + Fizz init
	g := gin.New()
	g.Use(gin.Recovery(), logging.RequestLogger(logger))
	g.Use(APIVersionMiddleware(apiVersion))
	f := fizz.NewFromEngine(g)

	gen := f.Generator()
	gen.API().Components.Headers["API-Version"] = &openapi.HeaderOrRef{
		Header: &openapi.Header{
			Description: "De API-versie van de response",
			Schema: &openapi.SchemaOrRef{
				Schema: &openapi.Schema{
					Type: "string",
				},
			},
		},
	}

	info := &openapi.Info{
		Title:       "Certificate issuer API v1",
		Description: "Genereert certificaten als PDF en publiceert ze in object storage",
		Version:     apiVersion,
	}

	root := f.Group("/v1", "API v1", "Certificate issuer V1 routes")

	root.GET("/health",
		[]fizz.OperationOption{
			fizz.Summary("Health check"),
			apiVersionHeader,
		},
		tonic.Handler(controller.Health, 200),
	)

	root.POST("/certificates",
		[]fizz.OperationOption{
			fizz.Summary("Genereer en publiceer een certificaat"),
			fizz.Description("Legt de eerste uitgifte per id vast en publiceert bij elke aanroep opnieuw de PDF."),
			apiVersionHeader,
			badRequestResponse,
			badGatewayResponse,
		},
		tonic.Handler(controller.IssueCertificate, 201),
	)

	// OpenAPI documentatie
	f.GET("/v1/openapi.json", []fizz.OperationOption{}, f.OpenAPI(info, "json"))

	return f
}

type apiVersionWriter struct {
	gin.ResponseWriter
	version string
}

func (w *apiVersionWriter) WriteHeader(code int) {
	if code >= 200 && code < 300 {
		w.Header().Set("API-Version", w.version)
	}
	w.ResponseWriter.WriteHeader(code)
}

func APIVersionMiddleware(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer = &apiVersionWriter{c.Writer, version}
		c.Next()
	}
}
