package feedsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"feedloop/internal/model"
)

type settingsStub struct {
	values map[string]string
	err    error
}

func (s settingsStub) Get(ctx context.Context, key string) (*model.Setting, error) {
	if s.err != nil {
		return nil, s.err
	}
	value, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	return &model.Setting{Key: key, Value: value}, nil
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(context.Background(), settingsStub{})
	require.NoError(t, err)
	require.Zero(t, cfg.PurgeDays)
	require.Zero(t, cfg.MatchSimilarity)
	require.True(t, cfg.DynamicUpdates)
	require.Empty(t, cfg.Blacklist)
	require.False(t, cfg.SimilarityProtectsTagged)
}

func TestLoadConfig_ParsesValues(t *testing.T) {
	cfg, err := LoadConfig(context.Background(), settingsStub{values: map[string]string{
		SettingPurgeDays:              "30",
		SettingMatchSimilarity:        "92.5",
		SettingDynamicUpdates:         "false",
		SettingBlacklist:              "sponsored\n\n  advert  \n",
		SettingSimilarityProtectsTags: "true",
	}})
	require.NoError(t, err)
	require.Equal(t, 30, cfg.PurgeDays)
	require.InDelta(t, 92.5, cfg.MatchSimilarity, 0.001)
	require.False(t, cfg.DynamicUpdates)
	require.Equal(t, []string{"sponsored", "advert"}, cfg.Blacklist)
	require.True(t, cfg.SimilarityProtectsTagged)
}

func TestLoadConfig_MalformedValueIsConfigError(t *testing.T) {
	cases := map[string]string{
		SettingPurgeDays:       "not-a-number",
		SettingMatchSimilarity: "150",
		SettingDynamicUpdates:  "maybe",
	}
	for key, value := range cases {
		_, err := LoadConfig(context.Background(), settingsStub{values: map[string]string{key: value}})
		require.Error(t, err, "key %s", key)
		require.Equal(t, KindConfig, KindOf(err), "key %s", key)
	}
}

func TestLoadConfig_StoreErrorIsStoreError(t *testing.T) {
	_, err := LoadConfig(context.Background(), settingsStub{err: errors.New("db gone")})
	require.Error(t, err)
	require.Equal(t, KindStore, KindOf(err))
}

func TestCycleErrorTaxonomy(t *testing.T) {
	err := cycleErr(KindFetch, "get feed", errors.New("timeout"))
	require.Equal(t, KindFetch, KindOf(err))
	require.Contains(t, err.Error(), "fetch error")
	require.Contains(t, err.Error(), "get feed")

	require.Equal(t, Kind(0), KindOf(errors.New("plain")))
}

func TestFeedLocks(t *testing.T) {
	locks := newFeedLocks()
	require.True(t, locks.tryAcquire(1))
	require.False(t, locks.tryAcquire(1))
	require.True(t, locks.tryAcquire(2))
	locks.release(1)
	require.True(t, locks.tryAcquire(1))
}
