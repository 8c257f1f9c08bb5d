package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignStore_ReplaceIsWholesale(t *testing.T) {
	store := NewInMemoryCampaignStore()
	store.Replace("home", []Campaign{NewBannerCampaign("a", "top"), NewBannerCampaign("b", "bottom")})
	require.Len(t, store.CampaignsOfType(CampaignTypeBanner, ""), 2)

	store.Replace("cart", []Campaign{NewBannerCampaign("c", "top")})

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "cart", store.Screen())
}

func TestCampaignStore_PositionFilter(t *testing.T) {
	store := NewInMemoryCampaignStore()
	store.Replace("home", []Campaign{NewBannerCampaign("a", "top"), NewBannerCampaign("b", "Bottom")})

	got := store.Campaign(CampaignTypeBanner, "bottom")
	require.NotNil(t, got)
	assert.Equal(t, "b", got.ID)
	assert.Nil(t, store.Campaign(CampaignTypeBanner, "middle"))
	assert.Nil(t, store.Campaign(CampaignTypeModal, ""))
}

func TestCampaignStore_Disable(t *testing.T) {
	store := NewInMemoryCampaignStore()
	store.Replace("home", []Campaign{NewBannerCampaign("a", ""), NewBannerCampaign("b", "")})

	store.Disable("a")
	got := store.CampaignsOfType(CampaignTypeBanner, "")
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
	assert.True(t, store.IsDisabled("a"))

	// the disabled list survives a re-sync of the same screen
	store.Replace("home", []Campaign{NewBannerCampaign("a", "")})
	assert.Empty(t, store.CampaignsOfType(CampaignTypeBanner, ""))

	store.ClearDisabled()
	assert.Len(t, store.CampaignsOfType(CampaignTypeBanner, ""), 1)
}

func TestCampaignStore_SubscribeSignalsWrites(t *testing.T) {
	store := NewInMemoryCampaignStore()
	ch, cancel := store.Subscribe()
	defer cancel()

	store.Replace("home", nil)
	select {
	case <-ch:
	default:
		t.Fatal("expected change signal after Replace")
	}

	store.Disable("x")
	select {
	case <-ch:
	default:
		t.Fatal("expected change signal after Disable")
	}
}

func TestCampaignStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	store := NewInMemoryCampaignStore()
	setA := []Campaign{NewBannerCampaign("a1", ""), NewBannerCampaign("a2", "")}
	setB := []Campaign{NewBannerCampaign("b1", ""), NewBannerCampaign("b2", ""), NewBannerCampaign("b3", "")}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				store.Replace("s", setA)
			} else {
				store.Replace("s", setB)
			}
		}
	}()

	for i := 0; i < 500; i++ {
		got := store.CampaignsOfType(CampaignTypeBanner, "")
		if n := len(got); n != 0 && n != 2 && n != 3 {
			t.Fatalf("observed partial snapshot of %d campaigns", n)
		}
		if len(got) > 0 {
			prefix := got[0].ID[0]
			for _, c := range got {
				if c.ID[0] != prefix {
					t.Fatalf("observed mixed snapshot: %+v", got)
				}
			}
		}
	}
	wg.Wait()
}

func TestActiveTooltips(t *testing.T) {
	store := NewInMemoryCampaignStore()
	assert.Nil(t, ActiveTooltips(store))

	store.Replace("home", []Campaign{
		NewTooltipCampaign("tt", Tooltip{ID: "1", Target: "x", Order: 2}, Tooltip{ID: "2", Target: "y", Order: 1}),
	})
	tips := ActiveTooltips(store)
	require.Len(t, tips, 2)
	assert.Equal(t, "y", tips[0].Target)

	store.Disable("tt")
	assert.Nil(t, ActiveTooltips(store))
}

func TestActiveTooltipsOn(t *testing.T) {
	store := NewInMemoryCampaignStore()
	assert.Nil(t, ActiveTooltipsOn(nil, "home"))

	home := NewTooltipCampaign("home-tips", Tooltip{ID: "1", Target: "x", Order: 1})
	home.Screen = "home"
	store.Replace("home", []Campaign{home})

	require.Len(t, ActiveTooltipsOn(store, "home"), 1)
	assert.Nil(t, ActiveTooltipsOn(store, "cart"), "a set synced for another screen is not active")
	assert.Len(t, ActiveTooltips(store), 1)

	store.Disable("home-tips")
	assert.Nil(t, ActiveTooltipsOn(store, "home"))
}
