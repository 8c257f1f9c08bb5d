package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/patrickwarner/surfacekit/internal/campaignapi"
	"github.com/patrickwarner/surfacekit/internal/models"
	"github.com/patrickwarner/surfacekit/internal/observability"
)

const (
	bannerA  = `{"id":"a","type":"BANNER","position":"top","details":{"image":"https://cdn/a.png"}}`
	bannerB  = `{"id":"b","type":"BANNER","details":{"image":"https://cdn/b.png"}}`
	unknown  = `{"id":"x","type":"HOLOGRAM","details":{}}`
	tooltips = `{"id":"tt","type":"TOOLTIP_SET","details":{"tooltips":[{"id":"1","target":"x","order":2},{"id":"2","target":"y","order":1}]}}`
)

func newPipeline(t *testing.T) (*Pipeline, *campaignapi.FakeAPI, *models.InMemoryCampaignStore, *observability.MockMetricsRegistry) {
	t.Helper()
	api := campaignapi.NewFakeAPI()
	store := models.NewInMemoryCampaignStore()
	metrics := &observability.MockMetricsRegistry{}
	return New(api, store, "home", zaptest.NewLogger(t), metrics), api, store, metrics
}

func TestInitialize_SyncsDefaultScreenOnce(t *testing.T) {
	p, api, store, _ := newPipeline(t)
	api.SetCampaigns("home", bannerA)
	ctx := context.Background()

	require.NoError(t, p.Initialize(ctx, Session{AppID: "app", AccountID: "acct", UserID: "u1"}))
	require.NoError(t, p.Initialize(ctx, Session{AppID: "other"}))

	assert.Equal(t, 1, api.Calls("validate"))
	assert.Equal(t, 1, api.Calls("eligible"))
	assert.Equal(t, "home", p.Screen())
	assert.Equal(t, "app", p.Session().AppID)
	require.NotNil(t, store.Campaign(models.CampaignTypeBanner, "top"))
}

func TestInitialize_EnrichesAttributesFromUserAgent(t *testing.T) {
	p, _, _, _ := newPipeline(t)
	ua := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

	require.NoError(t, p.Initialize(context.Background(), Session{UserAgent: ua, Attributes: map[string]string{"tier": "gold", "os": "custom"}}))

	attrs := p.Session().Attributes
	assert.Equal(t, "gold", attrs["tier"])
	assert.Equal(t, "custom", attrs["os"], "caller attributes win")
	assert.Equal(t, "mobile", attrs["device_type"])
}

func TestSyncScreen_BeforeInitialize(t *testing.T) {
	p, _, _, _ := newPipeline(t)
	assert.ErrorIs(t, p.SyncScreen(context.Background(), "home"), ErrNotInitialized)
}

func TestSyncScreen_PartialBatch(t *testing.T) {
	p, api, store, metrics := newPipeline(t)
	api.SetCampaigns("home", bannerA, unknown, bannerB)

	require.NoError(t, p.Initialize(context.Background(), Session{UserID: "u"}))

	assert.Len(t, store.All(), 2)
	assert.Equal(t, 1, metrics.Count("campaigns_dropped:unknown_type"))
	for _, c := range store.All() {
		assert.Equal(t, "home", c.Screen)
	}
}

func TestSyncScreen_EmptyEligibleReplacesWithEmptySet(t *testing.T) {
	p, api, store, _ := newPipeline(t)
	api.SetCampaigns("home", bannerA)
	ctx := context.Background()
	require.NoError(t, p.Initialize(ctx, Session{}))
	require.Len(t, store.All(), 1)

	require.NoError(t, p.SyncScreen(ctx, "cart"))
	assert.Empty(t, store.All())
	assert.Equal(t, 1, api.Calls("hydrate"), "no hydrate call for an empty eligible list")
}

func TestSyncScreen_FailureLeavesStoreUnchanged(t *testing.T) {
	p, api, store, metrics := newPipeline(t)
	api.SetCampaigns("home", bannerA)
	ctx := context.Background()
	require.NoError(t, p.Initialize(ctx, Session{}))

	api.SetErr("hydrate", errors.New("connection reset"))
	api.SetCampaigns("home", bannerB)
	err := p.SyncScreen(ctx, "home")
	require.Error(t, err)

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, 1, metrics.Count("syncs:failure"))
	assert.Equal(t, "failure", p.LastTrace().Outcome)
}

func TestSyncScreen_ScreenSwitchReset(t *testing.T) {
	p, api, store, _ := newPipeline(t)
	api.SetCampaigns("A", bannerA)
	api.SetCampaigns("B", bannerB)
	ctx := context.Background()

	var transitions []string
	p.OnScreenChange(func(_ context.Context, from, to string) {
		transitions = append(transitions, from+"->"+to)
	})

	require.NoError(t, p.Initialize(ctx, Session{}))
	require.NoError(t, p.SyncScreen(ctx, "A"))
	store.Disable("a")
	require.NoError(t, p.SyncScreen(ctx, "A"))
	assert.True(t, store.IsDisabled("a"), "same screen keeps the disabled list")

	require.NoError(t, p.SyncScreen(ctx, "B"))
	assert.False(t, store.IsDisabled("a"))
	store.Disable("b")

	require.NoError(t, p.SyncScreen(ctx, "A"))
	assert.False(t, store.IsDisabled("b"))

	assert.Equal(t, []string{"->home", "home->A", "A->B", "B->A"}, transitions)
}

func TestSyncScreen_UnauthorizedIsFatalForSession(t *testing.T) {
	p, api, store, metrics := newPipeline(t)
	api.SetCampaigns("home", bannerA)
	ctx := context.Background()
	require.NoError(t, p.Initialize(ctx, Session{}))
	require.Len(t, store.All(), 1)

	api.SetErr("eligible", campaignapi.ErrUnauthorized)
	require.ErrorIs(t, p.SyncScreen(ctx, "home"), campaignapi.ErrUnauthorized)
	assert.Empty(t, store.All())
	assert.True(t, p.Token().Revoked())

	api.SetErr("eligible", nil)
	before := api.Calls("eligible")
	assert.ErrorIs(t, p.SyncScreen(ctx, "cart"), campaignapi.ErrAuthUnavailable)
	assert.Equal(t, before, api.Calls("eligible"), "no API call once the token is gone")
	assert.Equal(t, 1, metrics.Count("syncs:unauthorized"))
	assert.Equal(t, 1, metrics.Count("syncs:skipped"))
}

func TestInitialize_ValidationFailure(t *testing.T) {
	p, api, _, _ := newPipeline(t)
	api.SetErr("validate", campaignapi.ErrUnauthorized)
	ctx := context.Background()

	require.Error(t, p.Initialize(ctx, Session{}))
	assert.True(t, p.Initialized())
	assert.ErrorIs(t, p.SyncScreen(ctx, "home"), campaignapi.ErrAuthUnavailable)
	assert.Equal(t, 0, api.Calls("eligible"))
}

func TestLastTrace(t *testing.T) {
	p, api, _, _ := newPipeline(t)
	api.SetCampaigns("home", tooltips, unknown)
	require.NoError(t, p.Initialize(context.Background(), Session{}))

	tr := p.LastTrace()
	require.NotNil(t, tr)
	assert.Equal(t, "home", tr.Screen)
	assert.Equal(t, "success", tr.Outcome)
	require.Len(t, tr.Steps, 3)
	assert.Equal(t, "screen_changed", tr.Steps[0].Stage)
	assert.Equal(t, []string{"tt", "x"}, tr.Steps[1].CampaignIDs)
	assert.Equal(t, []string{"tt"}, tr.Steps[2].CampaignIDs)
	assert.Equal(t, "1", tr.Steps[2].Details["dropped"])
}

func TestReadsDoNotWaitForInFlightSync(t *testing.T) {
	p, api, store, _ := newPipeline(t)
	api.SetCampaigns("home", bannerA)
	api.SetCampaigns("cart", bannerB)
	require.NoError(t, p.Initialize(context.Background(), Session{UserID: "u1"}))

	entered, release := api.Hold("cart")
	defer release()
	done := make(chan error, 1)
	go func() { done <- p.SyncScreen(context.Background(), "cart") }()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("sync never reached the api")
	}

	reads := make(chan struct{})
	go func() {
		defer close(reads)
		assert.Equal(t, "cart", p.Screen())
		assert.Equal(t, "u1", p.Session().UserID)
		if tr := p.LastTrace(); assert.NotNil(t, tr) {
			assert.Equal(t, "home", tr.Screen)
		}
		assert.True(t, p.Initialized())
	}()
	select {
	case <-reads:
	case <-time.After(time.Second):
		t.Fatal("reads blocked behind the in-flight sync")
	}
	require.NotNil(t, store.Campaign(models.CampaignTypeBanner, "top"), "store keeps home until cart lands")

	release()
	require.NoError(t, <-done)
	assert.Equal(t, "cart", p.LastTrace().Screen)
	assert.Nil(t, store.Campaign(models.CampaignTypeBanner, "top"))
	require.NotNil(t, store.Campaign(models.CampaignTypeBanner, ""))
}
