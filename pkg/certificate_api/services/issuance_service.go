package services

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/binder"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/models"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/repositories"
)

type TemplateBinder interface {
	BuildModel(req models.IssuanceRequest, now time.Time) (binder.RenderModel, error)
	Bind(m binder.RenderModel) (string, error)
}

type Renderer interface {
	Render(ctx context.Context, markup string) ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, identity string, body []byte) (string, error)
}

// IssuanceService runs the certificate pipeline: record check, template
// binding, rendering and publishing, strictly in that order.
type IssuanceService struct {
	repo      repositories.RecordRepository
	binder    TemplateBinder
	renderer  Renderer
	publisher Publisher
	message   string
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*IssuanceService)

func WithClock(now func() time.Time) Option {
	return func(s *IssuanceService) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *IssuanceService) { s.logger = l }
}

func WithMessage(msg string) Option {
	return func(s *IssuanceService) { s.message = msg }
}

// NewIssuanceService Constructor-functie
func NewIssuanceService(repo repositories.RecordRepository, b TemplateBinder, r Renderer, p Publisher, opts ...Option) *IssuanceService {
	s := &IssuanceService{
		repo:      repo,
		binder:    b,
		renderer:  r,
		publisher: p,
		message:   "Certificado gerado com sucesso!",
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue records the first issuance for an identity and (re)publishes its
// certificate.
//
// The record check is not atomic: two concurrent calls for a new identity can
// both write a record, and both publish to the same key with the last upload
// winning. A record written before a later step fails is left in place.
func (s *IssuanceService) Issue(ctx context.Context, req models.IssuanceRequest) (*models.IssuanceResponse, error) {
	req, err := validate(req)
	if err != nil {
		return nil, err
	}
	log := s.logger.With("identity", req.Id)
	now := s.now()

	existing, err := timed(log, "record_lookup", func() (*models.IssuanceRecord, error) {
		return s.repo.GetRecord(ctx, req.Id)
	})
	if err != nil {
		return nil, s.fail(log, upstream(KindStore, "record_lookup", err))
	}

	if existing == nil {
		record := &models.IssuanceRecord{
			Id:        req.Id,
			Name:      req.Name,
			Grade:     req.Grade,
			CreatedAt: now.UTC(),
		}
		if _, err := timed(log, "record_create", func() (struct{}, error) {
			return struct{}{}, s.repo.PutRecord(ctx, record)
		}); err != nil {
			return nil, s.fail(log, upstream(KindStore, "record_create", err))
		}
	} else {
		log.Debug("record already exists, re-issuing", "created_at", existing.CreatedAt)
	}

	// always the request values, never the stored record's
	markup, err := timed(log, "bind", func() (string, error) {
		model, err := s.binder.BuildModel(req, now)
		if err != nil {
			return "", err
		}
		return s.binder.Bind(model)
	})
	if err != nil {
		return nil, s.fail(log, &IssuanceError{Kind: KindTemplate, Op: "bind", Err: err})
	}

	pdf, err := timed(log, "render", func() ([]byte, error) {
		return s.renderer.Render(ctx, markup)
	})
	if err != nil {
		return nil, s.fail(log, upstream(KindRender, "render", err))
	}

	url, err := timed(log, "publish", func() (string, error) {
		return s.publisher.Publish(ctx, req.Id, pdf)
	})
	if err != nil {
		return nil, s.fail(log, upstream(KindPublish, "publish", err))
	}

	log.Info("certificate issued", "url", url, "new_record", existing == nil)
	return &models.IssuanceResponse{Message: s.message, Url: url}, nil
}

func (s *IssuanceService) fail(log *slog.Logger, err *IssuanceError) error {
	log.Error("certificate issuance failed", "kind", string(err.Kind), "step", err.Op, "error", err.Err)
	return err
}

func timed[T any](log *slog.Logger, step string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	log.Debug("pipeline step finished", "step", step, "duration", time.Since(start), "ok", err == nil)
	return v, err
}

// validate trims the request and rejects empty fields. The identity becomes an
// object key and part of the public URL, so path separators, query and
// fragment markers and control characters are rejected too.
func validate(req models.IssuanceRequest) (models.IssuanceRequest, error) {
	req.Id = strings.TrimSpace(req.Id)
	req.Name = strings.TrimSpace(req.Name)
	req.Grade = strings.TrimSpace(req.Grade)

	var fields []string
	if req.Id == "" || strings.ContainsAny(req.Id, `/\?#`) || strings.IndexFunc(req.Id, unicode.IsControl) >= 0 {
		fields = append(fields, "id")
	}
	if req.Name == "" {
		fields = append(fields, "name")
	}
	if req.Grade == "" {
		fields = append(fields, "grade")
	}
	if len(fields) > 0 {
		return req, &IssuanceError{Kind: KindValidation, Op: "validate", Fields: fields}
	}
	return req, nil
}
