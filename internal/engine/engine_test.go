package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/patrickwarner/surfacekit/internal/analytics"
	"github.com/patrickwarner/surfacekit/internal/campaignapi"
	"github.com/patrickwarner/surfacekit/internal/config"
	"github.com/patrickwarner/surfacekit/internal/macros"
	"github.com/patrickwarner/surfacekit/internal/models"
	"github.com/patrickwarner/surfacekit/internal/observability"
	"github.com/patrickwarner/surfacekit/internal/placement"
	"github.com/patrickwarner/surfacekit/internal/showcase"
	"github.com/patrickwarner/surfacekit/internal/syncer"
)

const (
	homeBanner   = `{"id":"banner-1","type":"BANNER","position":"top","details":{"image":"https://cdn/b.png","link":"app://promo?c={CAMPAIGN_ID}&u={USER_ID}&s={SCREEN}"}}`
	homeTips     = `{"id":"tips","type":"TOOLTIP_SET","details":{"tooltips":[{"id":"t1","target":"search","order":2},{"id":"t2","target":"cart","order":1}]}}`
	checkoutTips = `{"id":"tips-2","type":"TOOLTIP_SET","details":{"tooltips":[{"id":"t9","target":"search","order":1}]}}`
	cartWidget   = `{"id":"w-1","type":"WIDGET","details":{"images":[{"id":"img-1","image":"https://cdn/1.png","link":"app://p/1"},{"id":"img-2","image":"https://cdn/2.png"}]}}`
)

type fixture struct {
	eng     *Engine
	api     *campaignapi.FakeAPI
	journal *analytics.MockAnalytics
	metrics *observability.MockMetricsRegistry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	api := campaignapi.NewFakeAPI()
	api.SetCampaigns("home", homeBanner, homeTips)
	api.SetCampaigns("cart", cartWidget)
	journal := analytics.NewMockAnalytics()
	metrics := &observability.MockMetricsRegistry{}
	logger := zaptest.NewLogger(t)

	eng, err := New(Deps{
		Config: config.Config{
			DefaultScreen:       "home",
			TooltipPollInterval: 10 * time.Millisecond,
			PopupPadding:        8,
			ArrowGap:            4,
			APITimeout:          time.Second,
		},
		API:       api,
		Journal:   journal,
		Macros:    macros.NewServiceForTesting(logger),
		Logger:    logger,
		Metrics:   metrics,
		SessionID: "sess-1",
	})
	require.NoError(t, err)
	eng.Start(context.Background())
	t.Cleanup(eng.Close)
	return fixture{eng: eng, api: api, journal: journal, metrics: metrics}
}

func (f fixture) init(t *testing.T) {
	t.Helper()
	f.eng.Initialize(syncer.Session{AppID: "app", AccountID: "acct", UserID: "u1"})
	f.eng.Wait()
}

func TestNew_RequiresAPI(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestInitializeAndRead(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.eng.Campaign(models.CampaignTypeBanner, "top"), "reads before the first sync are empty")

	f.init(t)
	f.init(t)

	c := f.eng.Campaign(models.CampaignTypeBanner, "top")
	require.NotNil(t, c)
	assert.Equal(t, "banner-1", c.ID)
	assert.Nil(t, f.eng.Campaign(models.CampaignTypeBanner, "bottom"))
	assert.Equal(t, 1, f.api.Calls("validate"))
	assert.Equal(t, "home", f.eng.Screen())
	assert.Equal(t, "sess-1", f.eng.SessionID())
	require.NotNil(t, f.eng.LastSyncTrace())
}

func TestSyncScreen_RunsInCallOrder(t *testing.T) {
	f := newFixture(t)
	f.eng.Initialize(syncer.Session{UserID: "u1"})
	f.eng.SyncScreen("cart")
	f.eng.SyncScreen("home")
	f.eng.SyncScreen("cart")
	f.eng.Wait()

	assert.Equal(t, "cart", f.eng.Screen())
	assert.Len(t, f.eng.CampaignsOfType(models.CampaignTypeWidget, ""), 1)
	assert.Empty(t, f.eng.CampaignsOfType(models.CampaignTypeBanner, ""))
}

func TestScreenSwitchResetsImpressionsAndDisabled(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	ctx := context.Background()

	f.eng.RecordImpression(ctx, "banner-1", "")
	f.eng.RecordImpression(ctx, "banner-1", "")
	f.eng.DisableCampaign("banner-1")
	f.eng.Wait()
	assert.Nil(t, f.eng.Campaign(models.CampaignTypeBanner, ""))

	f.eng.SyncScreen("home")
	f.eng.Wait()
	assert.Nil(t, f.eng.Campaign(models.CampaignTypeBanner, ""), "same screen keeps disabled list")
	f.eng.RecordImpression(ctx, "banner-1", "")
	f.eng.Wait()
	require.Len(t, f.api.Actions(), 1)

	f.eng.SyncScreen("cart")
	f.eng.SyncScreen("home")
	f.eng.Wait()
	assert.NotNil(t, f.eng.Campaign(models.CampaignTypeBanner, ""))

	f.eng.RecordImpression(ctx, "banner-1", "")
	f.eng.Wait()
	assert.Len(t, f.api.Actions(), 2)
	assert.Len(t, f.journal.Events(), 2)
}

func TestClicksAndEvents(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.eng.RecordClick(ctx, "banner-1", "")
	}
	f.eng.RecordGenericEvent(ctx, "banner-1", "banner_closed", map[string]any{"reason": "x"})
	f.eng.Wait()

	assert.Len(t, f.api.Actions(), 3)
	events := f.api.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].UserID)
}

func TestTooltipShowcaseAndPlacement(t *testing.T) {
	f := newFixture(t)
	f.init(t)

	_, ok := f.eng.TooltipPlacement(models.Rect{Right: 400, Bottom: 800}, models.Size{Width: 120, Height: 80}, models.Size{Width: 16, Height: 8}, placement.Auto)
	assert.False(t, ok)

	f.eng.OnLayout("search", models.LayoutRect{
		Size:             models.Size{Width: 100, Height: 40},
		PositionInWindow: models.Point{X: 150, Y: 100},
	})
	f.eng.OnLayout("cart", models.LayoutRect{
		Size:             models.Size{Width: 100, Height: 40},
		PositionInWindow: models.Point{X: 150, Y: 700},
	})

	require.Eventually(t, func() bool {
		c := f.eng.CurrentTooltip()
		return c.State == showcase.Showing && c.Tooltip.Target == "cart"
	}, time.Second, 5*time.Millisecond)

	p, ok := f.eng.TooltipPlacement(models.Rect{Right: 400, Bottom: 800}, models.Size{Width: 120, Height: 80}, models.Size{Width: 16, Height: 8}, placement.Auto)
	require.True(t, ok)
	assert.Equal(t, placement.Top, p.Alignment)
	assert.Equal(t, 608.0, p.Offset.Y)

	f.eng.HideTooltip()
	require.Eventually(t, func() bool { return !f.eng.CurrentTooltip().Visible }, time.Second, 5*time.Millisecond)

	f.eng.DismissTooltip()
	require.Eventually(t, func() bool {
		c := f.eng.CurrentTooltip()
		return c.Tooltip != nil && c.Tooltip.Target == "search"
	}, time.Second, 5*time.Millisecond)
}

func TestScreenSwitchDoesNotReplayPreviousTooltips(t *testing.T) {
	f := newFixture(t)
	f.api.SetCampaigns("checkout", checkoutTips)
	f.init(t)

	for _, name := range []string{"search", "cart"} {
		f.eng.OnLayout(name, models.LayoutRect{Size: models.Size{Width: 100, Height: 40}})
	}
	require.Eventually(t, func() bool {
		c := f.eng.CurrentTooltip()
		return c.State == showcase.Showing && c.Tooltip.Target == "cart"
	}, time.Second, 5*time.Millisecond)

	entered, release := f.api.Hold("checkout")
	defer release()
	f.eng.SyncScreen("checkout")
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("checkout sync never reached the api")
	}

	// home's set is still in the store while checkout is in flight
	require.Eventually(t, func() bool { return f.eng.CurrentTooltip().State == showcase.Idle }, time.Second, 5*time.Millisecond)
	for i := 0; i < 10; i++ {
		time.Sleep(5 * time.Millisecond)
		c := f.eng.CurrentTooltip()
		require.Equal(t, showcase.Idle, c.State, "home tooltip %+v replayed on checkout", c.Tooltip)
	}

	release()
	f.eng.Wait()
	require.Eventually(t, func() bool {
		c := f.eng.CurrentTooltip()
		return c.State == showcase.Showing && c.Tooltip.CampaignID == "tips-2"
	}, time.Second, 5*time.Millisecond)
	c := f.eng.CurrentTooltip()
	assert.Equal(t, "search", c.Tooltip.Target)
	assert.Equal(t, "t9", c.Tooltip.ID)
}

func TestResolveLink(t *testing.T) {
	f := newFixture(t)
	f.init(t)

	link, ok := f.eng.ResolveLink("banner-1", "")
	require.True(t, ok)
	assert.Equal(t, "app://promo?c=banner-1&u=u1&s=home", link)

	_, ok = f.eng.ResolveLink("nope", "")
	assert.False(t, ok)

	f.eng.SyncScreen("cart")
	f.eng.Wait()
	link, ok = f.eng.ResolveLink("w-1", "img-1")
	require.True(t, ok)
	assert.Equal(t, "app://p/1", link)
	_, ok = f.eng.ResolveLink("w-1", "img-2")
	assert.False(t, ok)
}

func TestWidgetState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Empty(t, f.eng.LikedReels(ctx))
	ids, liked := f.eng.ToggleReelLike(ctx, "r1")
	assert.True(t, liked)
	assert.Equal(t, []string{"r1"}, ids)
	_, liked = f.eng.ToggleReelLike(ctx, "r1")
	assert.False(t, liked)
	assert.Empty(t, f.eng.LikedReels(ctx))

	f.eng.MarkStoryViewed(ctx, "s1")
	f.eng.MarkStoryViewed(ctx, "s1")
	assert.Equal(t, []string{"s1"}, f.eng.ViewedStories(ctx))
}

func TestAuthFailureSilencesSyncs(t *testing.T) {
	f := newFixture(t)
	f.api.SetErr("validate", campaignapi.ErrUnauthorized)
	f.init(t)

	f.eng.SyncScreen("cart")
	f.eng.Wait()
	assert.Empty(t, f.eng.CampaignsOfType(models.CampaignTypeWidget, ""))
	assert.Equal(t, 0, f.api.Calls("eligible"))

	f.eng.RecordClick(context.Background(), "x", "")
	f.eng.Wait()
	assert.Equal(t, 0, f.api.Calls("action"))
}
