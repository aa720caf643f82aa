package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // chats may pick any IANA zone regardless of the host
)

// SettingName is the closed set of per-chat settings.
type SettingName string

const (
	SettingTimezone            SettingName = "timezone"
	SettingMultiplier          SettingName = "multiplier"
	SettingNumberOfRandomTimes SettingName = "numberofrandomtimes"
	SettingPointsPerRandomTime SettingName = "pointsperrandomtime"
	SettingHardcoreMode        SettingName = "hardcoremode"
	SettingHandicaps           SettingName = "handicaps"
	SettingFirstNotifications  SettingName = "firstnotifications"
	SettingAutoLeaderboards    SettingName = "autoleaderboards"
	SettingNotifications       SettingName = "notifications"
)

// DefaultTimezone is used by new chats.
const DefaultTimezone = "Europe/Amsterdam"

// SettingValue is a setting rendered as text.
type SettingValue struct {
	Name  SettingName `json:"name"`
	Value string      `json:"value"`
}

// Settings is the typed configuration of one chat.
type Settings struct {
	Timezone            string
	Multiplier          float64
	NumberOfRandomTimes int
	PointsPerRandomTime int
	HardcoreMode        bool
	Handicaps           bool
	FirstNotifications  bool
	AutoLeaderboards    bool
	Notifications       bool

	location *time.Location
}

// DefaultSettings returns the settings of a fresh chat.
func DefaultSettings() Settings {
	s, err := NewSettings(DefaultTimezone)
	if err != nil {
		// tzdata is embedded, the default zone always loads.
		panic(err)
	}
	return s
}

// NewSettings returns default settings in the given timezone.
func NewSettings(timezone string) (Settings, error) {
	s := Settings{
		Multiplier:          2,
		NumberOfRandomTimes: 1,
		PointsPerRandomTime: 10,
		FirstNotifications:  true,
		AutoLeaderboards:    true,
		Notifications:       true,
	}
	if err := s.Set(SettingTimezone, timezone); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Location returns the loaded timezone.
func (s Settings) Location() *time.Location { return s.location }

type settingDef struct {
	parse  func(s *Settings, raw string) error
	format func(s Settings) string
}

var settingOrder = []SettingName{
	SettingTimezone,
	SettingMultiplier,
	SettingNumberOfRandomTimes,
	SettingPointsPerRandomTime,
	SettingHardcoreMode,
	SettingHandicaps,
	SettingFirstNotifications,
	SettingAutoLeaderboards,
	SettingNotifications,
}

var settingDefs = map[SettingName]settingDef{
	SettingTimezone: {
		parse: func(s *Settings, raw string) error {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				return fmt.Errorf("%w: %s: empty timezone", ErrInvalidSetting, SettingTimezone)
			}
			loc, err := time.LoadLocation(raw)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidSetting, SettingTimezone, err)
			}
			s.Timezone, s.location = raw, loc
			return nil
		},
		format: func(s Settings) string { return s.Timezone },
	},
	SettingMultiplier: {
		parse: func(s *Settings, raw string) error {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil || v < 1 || v > 10 {
				return fmt.Errorf("%w: %s must be a number between 1 and 10, got %q", ErrInvalidSetting, SettingMultiplier, raw)
			}
			s.Multiplier = v
			return nil
		},
		format: func(s Settings) string { return strconv.FormatFloat(s.Multiplier, 'f', -1, 64) },
	},
	SettingNumberOfRandomTimes: {
		parse:  intSetting(SettingNumberOfRandomTimes, 0, 24, func(s *Settings, v int) { s.NumberOfRandomTimes = v }),
		format: func(s Settings) string { return strconv.Itoa(s.NumberOfRandomTimes) },
	},
	SettingPointsPerRandomTime: {
		parse:  intSetting(SettingPointsPerRandomTime, 1, 100, func(s *Settings, v int) { s.PointsPerRandomTime = v }),
		format: func(s Settings) string { return strconv.Itoa(s.PointsPerRandomTime) },
	},
	SettingHardcoreMode: {
		parse:  boolSetting(SettingHardcoreMode, func(s *Settings, v bool) { s.HardcoreMode = v }),
		format: func(s Settings) string { return strconv.FormatBool(s.HardcoreMode) },
	},
	SettingHandicaps: {
		parse:  boolSetting(SettingHandicaps, func(s *Settings, v bool) { s.Handicaps = v }),
		format: func(s Settings) string { return strconv.FormatBool(s.Handicaps) },
	},
	SettingFirstNotifications: {
		parse:  boolSetting(SettingFirstNotifications, func(s *Settings, v bool) { s.FirstNotifications = v }),
		format: func(s Settings) string { return strconv.FormatBool(s.FirstNotifications) },
	},
	SettingAutoLeaderboards: {
		parse:  boolSetting(SettingAutoLeaderboards, func(s *Settings, v bool) { s.AutoLeaderboards = v }),
		format: func(s Settings) string { return strconv.FormatBool(s.AutoLeaderboards) },
	},
	SettingNotifications: {
		parse:  boolSetting(SettingNotifications, func(s *Settings, v bool) { s.Notifications = v }),
		format: func(s Settings) string { return strconv.FormatBool(s.Notifications) },
	},
}

func intSetting(name SettingName, lo, hi int, apply func(*Settings, int)) func(*Settings, string) error {
	return func(s *Settings, raw string) error {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || v < lo || v > hi {
			return fmt.Errorf("%w: %s must be a whole number between %d and %d, got %q", ErrInvalidSetting, name, lo, hi, raw)
		}
		apply(s, v)
		return nil
	}
}

func boolSetting(name SettingName, apply func(*Settings, bool)) func(*Settings, string) error {
	return func(s *Settings, raw string) error {
		v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false, got %q", ErrInvalidSetting, name, raw)
		}
		apply(s, v)
		return nil
	}
}

// ParseSettingName maps user input to a known setting.
func ParseSettingName(raw string) (SettingName, error) {
	name := SettingName(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := settingDefs[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSetting, raw)
	}
	return name, nil
}

// SettingNames lists every setting in display order.
func SettingNames() []SettingName {
	out := make([]SettingName, len(settingOrder))
	copy(out, settingOrder)
	return out
}

// Set coerces raw and stores it. On error s is unchanged.
func (s *Settings) Set(name SettingName, raw string) error {
	def, ok := settingDefs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	next := *s
	if err := def.parse(&next, raw); err != nil {
		return err
	}
	*s = next
	return nil
}

// Get renders one setting as text.
func (s Settings) Get(name SettingName) (string, bool) {
	def, ok := settingDefs[name]
	if !ok {
		return "", false
	}
	return def.format(s), true
}

// Values renders every setting in display order.
func (s Settings) Values() []SettingValue {
	out := make([]SettingValue, 0, len(settingOrder))
	for _, name := range settingOrder {
		out = append(out, SettingValue{Name: name, Value: settingDefs[name].format(s)})
	}
	return out
}
