package config

import "reflect"

// Changes describes what differs between two configs, split into what can
// be applied to a running coach and what needs a restart.
type Changes struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	FeedbackLanguageChanged bool
	NewFeedbackLanguage     string

	// RestartRequired lists the top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return !c.LogLevelChanged && !c.FeedbackLanguageChanged && len(c.RestartRequired) == 0
}

// Diff compares old and new configs.
func Diff(old, new *Config) Changes {
	var c Changes

	if old.LogLevel != new.LogLevel {
		c.LogLevelChanged = true
		c.NewLogLevel = new.LogLevel
	}
	if old.Interview.FeedbackLanguage != new.Interview.FeedbackLanguage {
		c.FeedbackLanguageChanged = true
		c.NewFeedbackLanguage = new.Interview.FeedbackLanguage
	}

	oi, ni := old.Interview, new.Interview
	oi.FeedbackLanguage, ni.FeedbackLanguage = "", ""

	sections := []struct {
		name     string
		old, new any
	}{
		{"log_file", old.LogFile, new.LogFile},
		{"gateway", old.Gateway, new.Gateway},
		{"interview", oi, ni},
		{"audio", old.Audio, new.Audio},
		{"devices", old.Devices, new.Devices},
		{"resilience", old.Resilience, new.Resilience},
		{"telemetry", old.Telemetry, new.Telemetry},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			c.RestartRequired = append(c.RestartRequired, s.name)
		}
	}
	return c
}
