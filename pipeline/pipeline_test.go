package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/flanksource/clicky"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcat/modelcat/civitai"
	"github.com/modelcat/modelcat/config"
	"github.com/modelcat/modelcat/models"
	"github.com/modelcat/modelcat/store"
)

// Scheduler.Run starts clicky tasks, which need the global task manager.
func TestMain(m *testing.M) {
	opts := *clicky.DefaultTaskManagerOptions()
	opts.NoProgress = true
	clicky.UseGlobalTaskManager(opts)
	os.Exit(m.Run())
}

// fakeRenderer counts page renders instead of producing HTML.
type fakeRenderer struct {
	mu      sync.Mutex
	renders []string
}

func (f *fakeRenderer) ModelPage(record *models.ModelRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, record.BaseName)
	return nil
}

func (f *fakeRenderer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.renders)
}

// fakeSleeper records sleeps without waiting.
type fakeSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (f *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	return nil
}

func (f *fakeSleeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sleeps)
}

// upstream is a scripted Civitai stand-in.
type upstream struct {
	mu        sync.Mutex
	updatedAt string
	images    string // JSON array, defaults to empty
	statuses  []int  // consumed per request before serving 200
	requests  int
}

func (u *upstream) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.requests++
		status := 0
		if len(u.statuses) > 0 {
			status = u.statuses[0]
			u.statuses = u.statuses[1:]
		}
		updatedAt := u.updatedAt
		images := u.images
		u.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		if images == "" {
			images = "[]"
		}
		switch {
		case r.URL.Path == "/models/99":
			fmt.Fprint(w, `{"id": 99, "name": "Test Model", "type": "LORA", "creator": {"username": "alice"}, "tags": ["style"]}`)
		default:
			fmt.Fprintf(w, `{"id": 11, "modelId": 99, "name": "v1", "updatedAt": %q, "images": %s, "stats": {"downloadCount": 5}}`, updatedAt, images)
		}
	})
}

func (u *upstream) requestCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests
}

type pipelineEnv struct {
	cfg      config.Config
	store    *store.FSStore
	renderer *fakeRenderer
	ledger   *models.ProcessedLedger
	pipe     *Pipeline
	server   *httptest.Server
	up       *upstream
	file     models.ModelFile
}

func newPipelineEnv(t *testing.T, mutate func(*config.Config)) *pipelineEnv {
	t.Helper()

	up := &upstream{updatedAt: "2025-06-01T12:00:00.000Z"}
	server := httptest.NewServer(up.handler())
	t.Cleanup(server.Close)

	sourceDir := t.TempDir()
	path := filepath.Join(sourceDir, "test model.safetensors")
	require.NoError(t, os.WriteFile(path, []byte("model-bytes"), 0644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	file := models.NewModelFile(path, info.Size(), info.ModTime())

	cfg := config.Config{
		SourceDir: sourceDir,
		OutputDir: t.TempDir(),
		Images:    config.ImagesNone,
		BaseURL:   server.URL,
	}
	cfg.ApplyDefaults()
	if mutate != nil {
		mutate(&cfg)
	}

	records, err := store.NewFSStore(cfg.OutputDir)
	require.NoError(t, err)

	renderer := &fakeRenderer{}
	ledger := models.NewProcessedLedger()
	client := civitai.New(civitai.Options{BaseURL: server.URL, Timeout: 2 * time.Second, RequestsPerSecond: 1000})
	delay := NewDelayPolicyWithSleeper(0, 0, &fakeSleeper{})

	return &pipelineEnv{
		cfg:      cfg,
		store:    records,
		renderer: renderer,
		ledger:   ledger,
		pipe:     New(cfg, records, client, renderer, nil, delay, ledger),
		server:   server,
		up:       up,
		file:     file,
	}
}

func TestProcessFileNewModel(t *testing.T) {
	env := newPipelineEnv(t, nil)

	result := env.pipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeSucceeded, result.Outcome)
	assert.True(t, result.UsedNetwork)

	record, err := env.store.Load(env.file.BaseName)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "SHA256", record.Hash.HashType)
	assert.NotEmpty(t, record.Hash.HashValue)
	require.NotNil(t, record.Version)
	assert.Equal(t, 11, record.Version.ID)
	require.NotNil(t, record.Model)
	assert.Equal(t, "Test Model", record.Model.Name)

	assert.Equal(t, 1, env.renderer.count())
	assert.True(t, env.ledger.IsProcessed(env.file.BaseName))

	missing, err := env.store.LoadMissing()
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestProcessFileSecondRunUnchanged(t *testing.T) {
	env := newPipelineEnv(t, nil)

	first := env.pipe.ProcessFile(context.Background(), env.file)
	require.Equal(t, models.OutcomeSucceeded, first.Outcome)

	second := env.pipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeUnchanged, second.Outcome)
	assert.True(t, second.UsedNetwork, "unchanged still required the lookup")
	assert.Equal(t, 1, env.renderer.count(), "no re-render on unchanged")
}

func TestProcessFileNewerUpstreamRefreshes(t *testing.T) {
	env := newPipelineEnv(t, nil)

	first := env.pipe.ProcessFile(context.Background(), env.file)
	require.Equal(t, models.OutcomeSucceeded, first.Outcome)

	env.up.mu.Lock()
	env.up.updatedAt = "2025-07-01T12:00:00.000Z"
	env.up.mu.Unlock()

	second := env.pipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeSucceeded, second.Outcome)
	assert.Equal(t, 2, env.renderer.count())

	record, err := env.store.Load(env.file.BaseName)
	require.NoError(t, err)
	assert.Equal(t, 2025, record.Version.UpdatedAt.Year())
	assert.Equal(t, time.July, record.Version.UpdatedAt.Month())
}

func TestProcessFileNotFound(t *testing.T) {
	env := newPipelineEnv(t, nil)
	env.up.statuses = []int{404}

	result := env.pipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeMissing, result.Outcome)

	missing, err := env.store.LoadMissing()
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, env.file.Name(), missing[0].Filename)
	assert.Equal(t, 404, missing[0].StatusCode)
	assert.False(t, env.ledger.IsProcessed(env.file.BaseName))
}

func TestProcessFileNotFoundKeepsPriorRecord(t *testing.T) {
	env := newPipelineEnv(t, nil)

	first := env.pipe.ProcessFile(context.Background(), env.file)
	require.Equal(t, models.OutcomeSucceeded, first.Outcome)

	env.up.mu.Lock()
	env.up.statuses = []int{404}
	env.up.mu.Unlock()

	second := env.pipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeMissing, second.Outcome)

	record, err := env.store.Load(env.file.BaseName)
	require.NoError(t, err)
	require.NotNil(t, record, "local data survives an upstream delisting")
	assert.NotNil(t, record.Version)
}

func TestProcessFileRecoveryClearsMissing(t *testing.T) {
	env := newPipelineEnv(t, nil)
	env.up.statuses = []int{404}

	first := env.pipe.ProcessFile(context.Background(), env.file)
	require.Equal(t, models.OutcomeMissing, first.Outcome)

	second := env.pipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeSucceeded, second.Outcome)

	missing, err := env.store.LoadMissing()
	require.NoError(t, err)
	assert.Empty(t, missing, "entry clears once the model is found again")
}

func TestProcessFileTransientError(t *testing.T) {
	env := newPipelineEnv(t, nil)
	env.up.statuses = []int{500}

	result := env.pipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeErrored, result.Outcome)
	assert.Error(t, result.Err)

	missing, err := env.store.LoadMissing()
	require.NoError(t, err)
	assert.Empty(t, missing, "transient failures never touch the missing ledger")
}

func TestProcessFileRateLimitRetry(t *testing.T) {
	env := newPipelineEnv(t, func(c *config.Config) { c.RetryBudget = 1 })
	env.up.statuses = []int{429}

	result := env.pipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeSucceeded, result.Outcome, "one retry within budget recovers")
}

func TestProcessFileRateLimitBudgetExhausted(t *testing.T) {
	env := newPipelineEnv(t, func(c *config.Config) { c.RetryBudget = 1 })
	env.up.statuses = []int{429, 429}

	result := env.pipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeErrored, result.Outcome)
}

func TestProcessFileHTMLOnly(t *testing.T) {
	env := newPipelineEnv(t, nil)

	first := env.pipe.ProcessFile(context.Background(), env.file)
	require.Equal(t, models.OutcomeSucceeded, first.Outcome)
	requestsAfterFirst := env.up.requestCount()

	htmlCfg := env.cfg
	htmlCfg.HTMLOnly = true
	htmlPipe := New(htmlCfg, env.store, civitai.New(civitai.Options{BaseURL: env.server.URL}), env.renderer, nil, NewDelayPolicyWithSleeper(0, 0, &fakeSleeper{}), env.ledger)

	result := htmlPipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeSucceeded, result.Outcome)
	assert.False(t, result.UsedNetwork)
	assert.Equal(t, requestsAfterFirst, env.up.requestCount(), "html-only never calls the API")
}

func TestProcessFileHTMLOnlyWithoutRecordSkips(t *testing.T) {
	env := newPipelineEnv(t, func(c *config.Config) { c.HTMLOnly = true })

	result := env.pipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeSkipped, result.Outcome)
	assert.Equal(t, 0, env.renderer.count())
}

func TestProcessFileOnlyUpdateReusesStoredHash(t *testing.T) {
	env := newPipelineEnv(t, nil)

	first := env.pipe.ProcessFile(context.Background(), env.file)
	require.Equal(t, models.OutcomeSucceeded, first.Outcome)
	stored, err := env.store.Load(env.file.BaseName)
	require.NoError(t, err)

	// The source file is gone, so a refresh must run off the stored hash.
	require.NoError(t, os.Remove(env.file.Path))

	updateCfg := env.cfg
	updateCfg.OnlyUpdate = true
	updatePipe := New(updateCfg, env.store, civitai.New(civitai.Options{BaseURL: env.server.URL, RequestsPerSecond: 1000}), env.renderer, nil, NewDelayPolicyWithSleeper(0, 0, &fakeSleeper{}), env.ledger)

	result := updatePipe.ProcessFile(context.Background(), env.file)
	assert.Equal(t, models.OutcomeSucceeded, result.Outcome, "only-update forces a refresh even when timestamps match")

	record, err := env.store.Load(env.file.BaseName)
	require.NoError(t, err)
	assert.Equal(t, stored.Hash.HashValue, record.Hash.HashValue)
}

func TestProcessFileDownloadsFirstPreview(t *testing.T) {
	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer imageServer.Close()

	env := newPipelineEnv(t, func(c *config.Config) { c.Images = config.ImagesFirst })
	env.up.mu.Lock()
	env.up.images = fmt.Sprintf(`[{"url": %q, "type": "image"}, {"url": %q, "type": "image"}]`,
		imageServer.URL+"/a.jpeg", imageServer.URL+"/b.jpeg")
	env.up.mu.Unlock()

	result := env.pipe.ProcessFile(context.Background(), env.file)
	require.Equal(t, models.OutcomeSucceeded, result.Outcome)

	record, err := env.store.Load(env.file.BaseName)
	require.NoError(t, err)
	require.Len(t, record.Previews, 1, "first-image policy downloads exactly one preview")
	assert.Equal(t, record.BaseName+"_preview_0.jpeg", record.Previews[0])
	assert.Equal(t, record.Previews[0], record.Version.LocalPreview)

	// Sidecar metadata sits next to the image.
	_, err = os.Stat(filepath.Join(env.store.RecordDir(record.BaseName), record.BaseName+"_preview_0.json"))
	assert.NoError(t, err)
}
