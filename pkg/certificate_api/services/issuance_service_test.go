package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/binder"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/models"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/certificate_api/services"
	"github.com/developer-overheid-nl/don-certificate-issuer/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo implements repositories.RecordRepository in memory and counts calls.
type memRepo struct {
	mu      sync.Mutex
	records map[string]models.IssuanceRecord
	gets    int
	puts    int
	getErr  error
	putErr  error
	// beforeReturn runs after the lookup and before GetRecord returns
	beforeReturn func()
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]models.IssuanceRecord{}}
}

func (r *memRepo) GetRecord(ctx context.Context, id string) (*models.IssuanceRecord, error) {
	r.mu.Lock()
	r.gets++
	rec, ok := r.records[id]
	err := r.getErr
	r.mu.Unlock()
	if r.beforeReturn != nil {
		r.beforeReturn()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memRepo) PutRecord(ctx context.Context, rec *models.IssuanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.puts++
	if r.putErr != nil {
		return r.putErr
	}
	r.records[rec.Id] = *rec
	return nil
}

type stubRenderer struct {
	mu     sync.Mutex
	calls  int
	markup []string
	err    error
}

func (s *stubRenderer) Render(ctx context.Context, markup string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.markup = append(s.markup, markup)
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF " + markup), nil
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   int
	err     error
}

func (m *memStorage) Publish(ctx context.Context, identity string, body []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[identity+".pdf"] = body
	return "https://certificate-ignite-nodejs.s3.amazonaws.com/" + identity + ".pdf", nil
}

var fixedNow = time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)

func testBinder() *binder.Binder {
	return binder.New(fstest.MapFS{
		binder.TemplateFile: {Data: []byte(`{{.ID}}|{{.Name}}|{{.Grade}}|{{.Date}}`)},
		binder.MedalFile:    {Data: []byte("png")},
	}, "02/01/2006", time.UTC)
}

type fixture struct {
	repo     *memRepo
	renderer *stubRenderer
	storage  *memStorage
	svc      *services.IssuanceService
}

func newFixture(b services.TemplateBinder) *fixture {
	if b == nil {
		b = testBinder()
	}
	f := &fixture{repo: newMemRepo(), renderer: &stubRenderer{}, storage: &memStorage{}}
	f.svc = services.NewIssuanceService(f.repo, b, f.renderer, f.storage,
		services.WithClock(func() time.Time { return fixedNow }),
		services.WithLogger(logging.Discard()),
		services.WithMessage("ok"),
	)
	return f
}

func TestIssue_NewIdentity(t *testing.T) {
	f := newFixture(nil)

	resp, err := f.svc.Issue(context.Background(), models.IssuanceRequest{Id: "u1", Name: "Ana Silva", Grade: "Gold"})
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Message)
	assert.Equal(t, "https://certificate-ignite-nodejs.s3.amazonaws.com/u1.pdf", resp.Url)
	assert.Equal(t, 1, f.repo.puts)
	assert.Equal(t, models.IssuanceRecord{Id: "u1", Name: "Ana Silva", Grade: "Gold", CreatedAt: fixedNow}, f.repo.records["u1"])
	assert.Equal(t, 1, f.renderer.calls)
	assert.Equal(t, []string{"u1|Ana Silva|Gold|09/03/2024"}, f.renderer.markup)
	assert.Len(t, f.storage.objects, 1)
	assert.Contains(t, f.storage.objects, "u1.pdf")
}

func TestIssue_ExistingIdentityStillPublishes(t *testing.T) {
	f := newFixture(nil)
	original := models.IssuanceRecord{Id: "u1", Name: "Old Name", Grade: "Bronze", CreatedAt: fixedNow.Add(-48 * time.Hour)}
	f.repo.records["u1"] = original

	resp, err := f.svc.Issue(context.Background(), models.IssuanceRequest{Id: "u1", Name: "Ana Silva", Grade: "Gold"})
	require.NoError(t, err)

	assert.Equal(t, "https://certificate-ignite-nodejs.s3.amazonaws.com/u1.pdf", resp.Url)
	assert.Equal(t, 0, f.repo.puts)
	assert.Equal(t, original, f.repo.records["u1"])
	// de nieuwe waarden uit het request worden gebruikt, niet het bestaande record
	assert.Equal(t, []string{"u1|Ana Silva|Gold|09/03/2024"}, f.renderer.markup)
	assert.Equal(t, 1, f.storage.calls)
}

func TestIssue_ReissueKeepsURL(t *testing.T) {
	f := newFixture(nil)
	req := models.IssuanceRequest{Id: "u1", Name: "Ana Silva", Grade: "Gold"}

	first, err := f.svc.Issue(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.Issue(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Url, second.Url)
	assert.Equal(t, 1, f.repo.puts)
	assert.Equal(t, 2, f.storage.calls)
	assert.Len(t, f.storage.objects, 1)
}

func TestIssue_Validation(t *testing.T) {
	cases := map[string]struct {
		req    models.IssuanceRequest
		fields []string
	}{
		"missing id":    {models.IssuanceRequest{Name: "n", Grade: "g"}, []string{"id"}},
		"blank name":    {models.IssuanceRequest{Id: "u1", Name: "   ", Grade: "g"}, []string{"name"}},
		"missing grade": {models.IssuanceRequest{Id: "u1", Name: "n"}, []string{"grade"}},
		"all missing":   {models.IssuanceRequest{}, []string{"id", "name", "grade"}},
		"slash in id":   {models.IssuanceRequest{Id: "a/b", Name: "n", Grade: "g"}, []string{"id"}},
		"control in id": {models.IssuanceRequest{Id: "a\nb", Name: "n", Grade: "g"}, []string{"id"}},
		"hash in id":    {models.IssuanceRequest{Id: "u#1", Name: "n", Grade: "g"}, []string{"id"}},
		"query in id":   {models.IssuanceRequest{Id: "u?x=1", Name: "n", Grade: "g"}, []string{"id"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(nil)

			resp, err := f.svc.Issue(context.Background(), tc.req)
			assert.Nil(t, resp)

			var ierr *services.IssuanceError
			require.True(t, errors.As(err, &ierr))
			assert.Equal(t, services.KindValidation, ierr.Kind)
			assert.Equal(t, tc.fields, ierr.Fields)
			assert.False(t, ierr.IsUpstream())

			assert.Zero(t, f.repo.gets)
			assert.Zero(t, f.repo.puts)
			assert.Zero(t, f.renderer.calls)
			assert.Zero(t, f.storage.calls)
		})
	}
}

func TestIssue_TrimsInput(t *testing.T) {
	f := newFixture(nil)

	resp, err := f.svc.Issue(context.Background(), models.IssuanceRequest{Id: " u1 ", Name: " Ana ", Grade: "Gold "})
	require.NoError(t, err)
	assert.Equal(t, "https://certificate-ignite-nodejs.s3.amazonaws.com/u1.pdf", resp.Url)
	assert.Equal(t, "Ana", f.repo.records["u1"].Name)
}

func TestIssue_RenderFailureLeavesRecord(t *testing.T) {
	f := newFixture(nil)
	f.renderer.err = errors.New("chrome crashed")

	resp, err := f.svc.Issue(context.Background(), models.IssuanceRequest{Id: "u1", Name: "Ana Silva", Grade: "Gold"})
	assert.Nil(t, resp)

	var ierr *services.IssuanceError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, services.KindRender, ierr.Kind)
	assert.True(t, ierr.IsUpstream())
	assert.ErrorIs(t, err, f.renderer.err)

	assert.Contains(t, f.repo.records, "u1")
	assert.Zero(t, f.storage.calls)
	assert.Empty(t, f.storage.objects)
}

func TestIssue_StoreFailures(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		f := newFixture(nil)
		f.repo.getErr = errors.New("throttled")

		_, err := f.svc.Issue(context.Background(), models.IssuanceRequest{Id: "u1", Name: "n", Grade: "g"})
		var ierr *services.IssuanceError
		require.True(t, errors.As(err, &ierr))
		assert.Equal(t, services.KindStore, ierr.Kind)
		assert.Equal(t, "record_lookup", ierr.Op)
		assert.Zero(t, f.repo.puts)
		assert.Zero(t, f.renderer.calls)
	})

	t.Run("create is fatal", func(t *testing.T) {
		f := newFixture(nil)
		f.repo.putErr = errors.New("connection reset")

		_, err := f.svc.Issue(context.Background(), models.IssuanceRequest{Id: "u1", Name: "n", Grade: "g"})
		var ierr *services.IssuanceError
		require.True(t, errors.As(err, &ierr))
		assert.Equal(t, services.KindStore, ierr.Kind)
		assert.Equal(t, "record_create", ierr.Op)
		assert.Zero(t, f.renderer.calls)
		assert.Zero(t, f.storage.calls)
	})
}

func TestIssue_PublishFailure(t *testing.T) {
	f := newFixture(nil)
	f.storage.err = errors.New("bucket gone")

	_, err := f.svc.Issue(context.Background(), models.IssuanceRequest{Id: "u1", Name: "n", Grade: "g"})
	var ierr *services.IssuanceError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, services.KindPublish, ierr.Kind)
	assert.Equal(t, 1, f.renderer.calls)
	assert.Contains(t, f.repo.records, "u1")
}

func TestIssue_TemplateFailure(t *testing.T) {
	f := newFixture(binder.New(fstest.MapFS{}, "02/01/2006", time.UTC))

	_, err := f.svc.Issue(context.Background(), models.IssuanceRequest{Id: "u1", Name: "n", Grade: "g"})
	var ierr *services.IssuanceError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, services.KindTemplate, ierr.Kind)
	assert.False(t, ierr.IsUpstream())
	assert.ErrorIs(t, err, binder.ErrTemplate)
	assert.Zero(t, f.renderer.calls)
}

func TestIssue_ConcurrentSameIdentity(t *testing.T) {
	f := newFixture(nil)

	// both lookups complete before either caller may write
	var arrived sync.WaitGroup
	arrived.Add(2)
	f.repo.beforeReturn = func() {
		arrived.Done()
		arrived.Wait()
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Issue(context.Background(), models.IssuanceRequest{Id: "u1", Name: "Ana Silva", Grade: "Gold"})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 2, f.repo.puts)
	assert.Len(t, f.repo.records, 1)
	assert.Equal(t, 2, f.storage.calls)
	assert.Len(t, f.storage.objects, 1)
	assert.Equal(t, []byte("%PDF u1|Ana Silva|Gold|09/03/2024"), f.storage.objects["u1.pdf"])
}

func TestIssuanceError_Message(t *testing.T) {
	err := &services.IssuanceError{Kind: services.KindValidation, Fields: []string{"id", "name"}}
	assert.Equal(t, "invalid request: id, name", err.Error())

	wrapped := &services.IssuanceError{Kind: services.KindRender, Op: "render", Err: errors.New("boom")}
	assert.Equal(t, "render failed during render: boom", wrapped.Error())
}
