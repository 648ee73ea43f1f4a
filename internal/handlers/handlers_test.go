package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
	"github.com/jjenkins/factbase/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSync struct {
	running  map[model.SyncSource]bool
	triggers []model.SyncSource
	forced   []bool
	err      error
}

func (f *fakeSync) known(source model.SyncSource) bool {
	for _, s := range model.SyncSources {
		if s == source {
			return true
		}
	}
	return false
}

func (f *fakeSync) TriggerNow(source model.SyncSource, force bool) (service.TriggerResult, error) {
	if !f.known(source) {
		return "", service.ErrUnknownSource
	}
	if f.running[source] {
		return service.TriggerAlreadyRunning, nil
	}
	f.triggers = append(f.triggers, source)
	f.forced = append(f.forced, force)
	return service.TriggerAccepted, nil
}

func (f *fakeSync) Status(ctx context.Context, source model.SyncSource) (service.ScheduleStatus, error) {
	if !f.known(source) {
		return service.ScheduleStatus{}, service.ErrUnknownSource
	}
	st := service.ScheduleStatus{Source: source, Schedule: "0 0 2 * * *", State: model.StateNotStarted}
	if f.running[source] {
		st.CurrentlyRunning = true
		st.State = model.StateParsingAndMerging
	}
	return st, nil
}

func (f *fakeSync) StatusAll(ctx context.Context) ([]service.ScheduleStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []service.ScheduleStatus
	for _, s := range model.SyncSources {
		st, _ := f.Status(ctx, s)
		out = append(out, st)
	}
	return out, nil
}

type fakeLinker struct {
	unmatched  []service.UnmatchedAgency
	match      *service.Match
	refreshErr error
	queries    []service.AgencyQuery
}

func (f *fakeLinker) Resolve(q service.AgencyQuery) (service.Match, bool) {
	f.queries = append(f.queries, q)
	if f.match == nil {
		return service.Match{}, false
	}
	return *f.match, true
}

func (f *fakeLinker) Refresh(ctx context.Context) (service.CacheSizes, error) {
	return service.CacheSizes{Names: 12, Acronyms: 10}, f.refreshErr
}

func (f *fakeLinker) Unmatched() []service.UnmatchedAgency { return f.unmatched }

func (f *fakeLinker) ClearUnmatched() int {
	n := len(f.unmatched)
	f.unmatched = nil
	return n
}

type fakeLinkage struct {
	stats *service.LinkageStatistics
	err   error
}

func (f fakeLinkage) Calculate(ctx context.Context) (*service.LinkageStatistics, error) {
	return f.stats, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

type testApp struct {
	app    *fiber.App
	sync   *fakeSync
	linker *fakeLinker
}

func newTestApp(t *testing.T, token string) *testApp {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	ta := &testApp{
		app:    fiber.New(),
		sync:   &fakeSync{running: map[model.SyncSource]bool{}},
		linker: &fakeLinker{},
	}
	Register(ta.app, Deps{
		Sync:       ta.sync,
		Agencies:   ta.linker,
		Linkage:    fakeLinkage{stats: &service.LinkageStatistics{TotalRegulations: 10, LinkedRegulations: 9, LinkRate: 0.9}},
		DB:         fakePinger{},
		AdminToken: token,
		Log:        log,
	})
	return ta
}

func (ta *testApp) do(t *testing.T, method, target string, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(body) > 0 && body[0] == '{' {
		require.NoError(t, json.Unmarshal(body, &out))
	}
	return resp, out
}

func TestTriggerSyncAccepted(t *testing.T) {
	ta := newTestApp(t, "")

	resp, body := ta.do(t, http.MethodPost, "/admin/sync/plum?force=true")

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "accepted", body["result"])
	assert.Nil(t, body["status"])
	assert.Equal(t, []model.SyncSource{model.SyncPlum}, ta.sync.triggers)
	assert.Equal(t, []bool{true}, ta.sync.forced)
}

func TestTriggerSyncAlreadyRunning(t *testing.T) {
	ta := newTestApp(t, "")
	ta.sync.running[model.SyncLegislators] = true

	resp, body := ta.do(t, http.MethodPost, "/admin/sync/legislators")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "already_running", body["result"])
	status, ok := body["status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, status["currently_running"])
	assert.Equal(t, "parsing_and_merging", status["state"])
	assert.Empty(t, ta.sync.triggers)
}

func TestTriggerSyncUnknownSource(t *testing.T) {
	ta := newTestApp(t, "")

	resp, body := ta.do(t, http.MethodPost, "/admin/sync/ecfr")

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "unknown source ecfr", body["error"])
}

func TestSyncStatus(t *testing.T) {
	ta := newTestApp(t, "")

	resp, body := ta.do(t, http.MethodGet, "/admin/sync/agencies")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "agencies", body["source"])
	assert.Equal(t, "not_started", body["state"])
	assert.NotContains(t, body, "last_run_time")

	resp, _ = ta.do(t, http.MethodGet, "/admin/sync/nope")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSyncStatusAll(t *testing.T) {
	ta := newTestApp(t, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/sync", nil)
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var all []service.ScheduleStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	require.Len(t, all, len(model.SyncSources))
	assert.Equal(t, model.SyncAgencies, all[0].Source)
}

func TestAdminAuth(t *testing.T) {
	ta := newTestApp(t, "s3cret")

	resp, body := ta.do(t, http.MethodPost, "/admin/sync/plum")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid admin token", body["error"])

	resp, _ = ta.do(t, http.MethodPost, "/admin/sync/plum", AdminTokenHeader, "wrong")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = ta.do(t, http.MethodPost, "/admin/sync/plum", AdminTokenHeader, "s3cret")
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp, _ = ta.do(t, http.MethodGet, "/health")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestUnmatchedAgencies(t *testing.T) {
	ta := newTestApp(t, "")
	now := time.Now()
	ta.linker.unmatched = []service.UnmatchedAgency{
		{Name: "Office of Nowhere", Count: 3, FirstSeen: now, LastSeen: now},
	}

	resp, body := ta.do(t, http.MethodGet, "/admin/agencies/unmatched")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	resp, body = ta.do(t, http.MethodDelete, "/admin/agencies/unmatched")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["cleared"])
	assert.Empty(t, ta.linker.unmatched)
}

func TestRefreshAgencies(t *testing.T) {
	ta := newTestApp(t, "")

	resp, body := ta.do(t, http.MethodPost, "/admin/agencies/refresh")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(12), body["names"])

	ta.linker.refreshErr = errors.New("db down")
	resp, _ = ta.do(t, http.MethodPost, "/admin/agencies/refresh")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestResolveAgency(t *testing.T) {
	ta := newTestApp(t, "")

	resp, _ := ta.do(t, http.MethodGet, "/admin/agencies/resolve")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := ta.do(t, http.MethodGet, "/admin/agencies/resolve?name=Office+of+Nowhere")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["matched"])

	id := uuid.New()
	ta.linker.match = &service.Match{OrganizationID: id, Tier: service.TierAcronym, Similarity: 1, MatchedName: "EPA"}
	_, body = ta.do(t, http.MethodGet, "/admin/agencies/resolve?id=145&short_name=EPA")
	assert.Equal(t, true, body["matched"])
	match, ok := body["match"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, id.String(), match["organization_id"])
	assert.Equal(t, "acronym", match["tier"])

	last := ta.linker.queries[len(ta.linker.queries)-1]
	assert.Equal(t, service.AgencyQuery{ExternalID: 145, ShortName: "EPA"}, last)
}

func TestLinkage(t *testing.T) {
	ta := newTestApp(t, "")

	resp, body := ta.do(t, http.MethodGet, "/admin/linkage")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10), body["total_regulations"])
	assert.Equal(t, 0.9, body["link_rate"])
}

func TestHealthUnavailable(t *testing.T) {
	app := fiber.New()
	app.Get("/health", HealthHandler(fakePinger{err: errors.New("connection refused")}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestHomePage(t *testing.T) {
	ta := newTestApp(t, "")

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "factbase sync status")
	assert.Contains(t, string(body), "9 of 10 regulations linked")
}

func TestHomePageSurvivesStatusFailure(t *testing.T) {
	ta := newTestApp(t, "")
	ta.sync.err = errors.New("boom")

	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Sync status is unavailable")
}
