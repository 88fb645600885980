package config

import (
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// snapshotWire is the JSON shape pushed on the configuration topic. Durations
// travel as integer seconds so pushes can be authored by hand; omitted fields
// fall back to the current snapshot's values rather than zeroing out.
type snapshotWire struct {
	ProviderPriority   *[]string `json:"provider_priority,omitempty"`
	ProviderTimeoutSec *int      `json:"provider_timeout_seconds,omitempty"`
	MinimumConfidence  *float64  `json:"minimum_confidence,omitempty"`
	ROI                *ROI      `json:"roi,omitempty"`
	Preprocess         *Preprocess `json:"preprocess,omitempty"`

	OffThreshold       *float64  `json:"off_threshold,omitempty"`
	IdleThreshold      *float64  `json:"idle_threshold,omitempty"`
	NormalMin          *float64  `json:"normal_min,omitempty"`
	NormalMax          *float64  `json:"normal_max,omitempty"`
	MaxValidCurrent    *float64  `json:"max_valid_current,omitempty"`
	DryKeywords        *[]string `json:"dry_keywords,omitempty"`
	RapidCycleKeywords *[]string `json:"rapid_cycle_keywords,omitempty"`
	CaseSensitive      *bool     `json:"case_sensitive,omitempty"`

	MinimumCycleIntervalSec   *int  `json:"minimum_cycle_interval_seconds,omitempty"`
	MaxDailyCycles            *int  `json:"max_daily_cycles,omitempty"`
	PowerCycleDelaySec        *int  `json:"power_cycle_delay_seconds,omitempty"`
	EnableDryConditionCycling *bool `json:"enable_dry_condition_cycling,omitempty"`

	PollIntervalSec *int `json:"poll_interval_seconds,omitempty"`
}

// MQTTSource subscribes to the remote configuration topic and applies pushed
// snapshots to a SnapshotStore. The channel is push-based and last-write-wins;
// the monitoring loop only ever pulls the store's latest snapshot.
type MQTTSource struct {
	client mqtt.Client
	store  *SnapshotStore
	topic  string
	logger *slog.Logger
}

// NewMQTTSource creates a configuration source bound to the given broker
// client and store.
func NewMQTTSource(client mqtt.Client, store *SnapshotStore, topic string, logger *slog.Logger) *MQTTSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTSource{
		client: client,
		store:  store,
		topic:  topic,
		logger: logger.With("component", "config-source"),
	}
}

// Subscribe registers the push handler on the configuration topic (QoS 1).
// Retained messages mean a device that reboots picks up the fleet's current
// configuration immediately.
func (s *MQTTSource) Subscribe() error {
	token := s.client.Subscribe(s.topic, 1, s.handlePush)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	s.logger.Info("subscribed to configuration topic", "topic", s.topic)
	return nil
}

// handlePush decodes a pushed snapshot, overlays it on the current one, and
// applies it. Invalid pushes are logged and dropped; the last-known-good
// snapshot stays in effect.
func (s *MQTTSource) handlePush(_ mqtt.Client, msg mqtt.Message) {
	var wire snapshotWire
	if err := json.Unmarshal(msg.Payload(), &wire); err != nil {
		s.logger.Warn("discarding malformed configuration push",
			"topic", msg.Topic(),
			"error", err,
		)
		return
	}

	next := wire.overlay(s.store.Current())
	if err := s.store.Apply(next); err != nil {
		// Apply already logged the rejection with the validation failure.
		return
	}
}

// overlay builds a candidate snapshot from the current one plus every field
// the push explicitly set.
func (w *snapshotWire) overlay(base *Snapshot) *Snapshot {
	next := *base

	if w.ProviderPriority != nil {
		next.ProviderPriority = append([]string(nil), (*w.ProviderPriority)...)
	}
	if w.ProviderTimeoutSec != nil {
		next.ProviderTimeout = secondsToDuration(*w.ProviderTimeoutSec)
	}
	if w.MinimumConfidence != nil {
		next.MinimumConfidence = *w.MinimumConfidence
	}
	if w.ROI != nil {
		next.Region = *w.ROI
	}
	if w.Preprocess != nil {
		next.Preprocess = *w.Preprocess
	}
	if w.OffThreshold != nil {
		next.OffThreshold = *w.OffThreshold
	}
	if w.IdleThreshold != nil {
		next.IdleThreshold = *w.IdleThreshold
	}
	if w.NormalMin != nil {
		next.NormalMin = *w.NormalMin
	}
	if w.NormalMax != nil {
		next.NormalMax = *w.NormalMax
	}
	if w.MaxValidCurrent != nil {
		next.MaxValidCurrent = *w.MaxValidCurrent
	}
	if w.DryKeywords != nil {
		next.DryKeywords = append([]string(nil), (*w.DryKeywords)...)
	}
	if w.RapidCycleKeywords != nil {
		next.RapidCycleKeywords = append([]string(nil), (*w.RapidCycleKeywords)...)
	}
	if w.CaseSensitive != nil {
		next.CaseSensitive = *w.CaseSensitive
	}
	if w.MinimumCycleIntervalSec != nil {
		next.MinimumCycleInterval = secondsToDuration(*w.MinimumCycleIntervalSec)
	}
	if w.MaxDailyCycles != nil {
		next.MaxDailyCycles = *w.MaxDailyCycles
	}
	if w.PowerCycleDelaySec != nil {
		next.PowerCycleDelay = secondsToDuration(*w.PowerCycleDelaySec)
	}
	if w.EnableDryConditionCycling != nil {
		next.EnableDryConditionCycling = *w.EnableDryConditionCycling
	}
	if w.PollIntervalSec != nil {
		next.PollInterval = secondsToDuration(*w.PollIntervalSec)
	}

	return &next
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
