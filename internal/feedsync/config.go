package feedsync

import (
	"context"
	"strconv"
	"strings"

	"feedloop/internal/model"
)

// Settings is the read-only preference access the engine consumes at the
// start of every cycle.
type Settings interface {
	Get(ctx context.Context, key string) (*model.Setting, error)
}

// Preference keys.
const (
	SettingPurgeDays              = "purge_days"
	SettingMatchSimilarity        = "match_similarity"
	SettingDynamicUpdates         = "dynamic_updates_enabled"
	SettingBlacklist              = "blacklist"
	SettingSimilarityProtectsTags = "similarity_protects_tagged"
)

// Config holds the per-cycle preferences, decoded once at cycle start.
type Config struct {
	// PurgeDays is the retention window in days; 0 disables both the
	// ingest-time purge window and the age purge.
	PurgeDays int
	// MatchSimilarity is the percentage threshold above which the later of
	// two similar entries is purged; 0 disables the similarity purge.
	MatchSimilarity float64
	// DynamicUpdates enables cadence-based scheduling of the next fetch.
	DynamicUpdates bool
	// Blacklist entries are case-insensitive substrings; a matching title
	// discards the entry before it is stored or counted.
	Blacklist []string
	// SimilarityProtectsTagged extends the starred/tagged protection of the
	// age purge to the similarity purge.
	SimilarityProtectsTagged bool
}

// LoadConfig reads and validates the cycle preferences. A missing key falls
// back to its default; a malformed value is a config-kind CycleError.
func LoadConfig(ctx context.Context, settings Settings) (Config, error) {
	cfg := Config{DynamicUpdates: true}

	if raw, err := getSetting(ctx, settings, SettingPurgeDays); err != nil {
		return Config{}, err
	} else if raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			return Config{}, cycleErr(KindConfig, "parse "+SettingPurgeDays, errInvalidSetting(raw))
		}
		cfg.PurgeDays = days
	}

	if raw, err := getSetting(ctx, settings, SettingMatchSimilarity); err != nil {
		return Config{}, err
	} else if raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 || threshold > 100 {
			return Config{}, cycleErr(KindConfig, "parse "+SettingMatchSimilarity, errInvalidSetting(raw))
		}
		cfg.MatchSimilarity = threshold
	}

	if raw, err := getSetting(ctx, settings, SettingDynamicUpdates); err != nil {
		return Config{}, err
	} else if raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, cycleErr(KindConfig, "parse "+SettingDynamicUpdates, errInvalidSetting(raw))
		}
		cfg.DynamicUpdates = enabled
	}

	if raw, err := getSetting(ctx, settings, SettingBlacklist); err != nil {
		return Config{}, err
	} else if raw != "" {
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				cfg.Blacklist = append(cfg.Blacklist, line)
			}
		}
	}

	if raw, err := getSetting(ctx, settings, SettingSimilarityProtectsTags); err != nil {
		return Config{}, err
	} else if raw != "" {
		protect, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, cycleErr(KindConfig, "parse "+SettingSimilarityProtectsTags, errInvalidSetting(raw))
		}
		cfg.SimilarityProtectsTagged = protect
	}

	return cfg, nil
}

func getSetting(ctx context.Context, settings Settings, key string) (string, error) {
	setting, err := settings.Get(ctx, key)
	if err != nil {
		return "", cycleErr(KindStore, "read setting "+key, err)
	}
	if setting == nil {
		return "", nil
	}
	return strings.TrimSpace(setting.Value), nil
}

type errInvalidSetting string

func (e errInvalidSetting) Error() string {
	return "invalid value " + strconv.Quote(string(e))
}
