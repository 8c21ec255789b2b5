// Package binder turns an issuance request into render-ready certificate
// markup. The medal image is inlined as a base64 data URL so the renderer
// never needs file access.
package binder

import (
	"bytes"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"time"

	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/models"
)

const (
	TemplateFile = "certificate.html"
	MedalFile    = "selo.png"

	medalMediaType = "image/png"
)

// ErrTemplate wraps every failure to locate, read or execute the static assets.
var ErrTemplate = errors.New("certificate template unavailable")

//go:embed assets/certificate.html assets/selo.png
var embedded embed.FS

// DefaultAssets returns the certificate template and medal compiled into the binary.
func DefaultAssets() fs.FS {
	sub, err := fs.Sub(embedded, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// RenderModel is everything the template sees. It is rebuilt on every
// issuance and never persisted.
type RenderModel struct {
	ID    string
	Name  string
	Grade string
	Date  string
	Medal string // base64 encoded medal image
}

// Binder reads its assets from a read-only file system; it holds no mutable
// state and is safe for concurrent use.
type Binder struct {
	assets     fs.FS
	dateLayout string
	location   *time.Location
}

func New(assets fs.FS, dateLayout string, location *time.Location) *Binder {
	if location == nil {
		location = time.UTC
	}
	return &Binder{assets: assets, dateLayout: dateLayout, location: location}
}

// BuildModel uses the request values, not any stored record, and formats now
// in the configured location.
func (b *Binder) BuildModel(req models.IssuanceRequest, now time.Time) (RenderModel, error) {
	medal, err := fs.ReadFile(b.assets, MedalFile)
	if err != nil {
		return RenderModel{}, fmt.Errorf("%w: read %s: %v", ErrTemplate, MedalFile, err)
	}
	return RenderModel{
		ID:    req.Id,
		Name:  req.Name,
		Grade: req.Grade,
		Date:  now.In(b.location).Format(b.dateLayout),
		Medal: base64.StdEncoding.EncodeToString(medal),
	}, nil
}

// Bind executes the certificate template against m.
func (b *Binder) Bind(m RenderModel) (string, error) {
	raw, err := fs.ReadFile(b.assets, TemplateFile)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrTemplate, TemplateFile, err)
	}
	tmpl, err := template.New(TemplateFile).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", ErrTemplate, TemplateFile, err)
	}

	view := struct {
		ID, Name, Grade, Date string
		Medal                 template.URL
	}{
		ID:    m.ID,
		Name:  m.Name,
		Grade: m.Grade,
		Date:  m.Date,
		Medal: template.URL("data:" + medalMediaType + ";base64," + m.Medal),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("%w: execute %s: %v", ErrTemplate, TemplateFile, err)
	}
	return buf.String(), nil
}
