// Package mqtt receives remote selection changes over MQTT, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sweeney/plant-nanny/internal/logic"
	"github.com/sweeney/plant-nanny/internal/selection"
)

// DefaultTopic is the MQTT topic carrying selection changes.
const DefaultTopic = "garden/plant-nanny/settings"

// DefaultClientID identifies the daemon to the broker.
const DefaultClientID = "plant-nanny"

// ErrEmptySettings is returned by ParseSettings when neither index is present.
var ErrEmptySettings = errors.New("settings carry no delay or water index")

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SelectionEditor is the subset of selection.Holder the subscriber writes to.
type SelectionEditor interface {
	Selection() logic.Selection
	Set(sel logic.Selection) error
}

// Settings is a settings message. A nil field leaves that index unchanged.
//
//	{"delay": 3, "water": 1}
type Settings struct {
	Delay *int `json:"delay,omitempty"`
	Water *int `json:"water,omitempty"`
}

// ParseSettings decodes a settings payload.
func ParseSettings(payload []byte) (Settings, error) {
	var s Settings
	if err := json.Unmarshal(payload, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if s.Delay == nil && s.Water == nil {
		return Settings{}, ErrEmptySettings
	}
	return s, nil
}

// Apply merges s into the editor's current selection. Out-of-range indices
// are rejected and the selection is left unchanged.
func Apply(ed SelectionEditor, s Settings) (logic.Selection, error) {
	sel := ed.Selection()
	if s.Delay != nil {
		sel.DelayIndex = *s.Delay
	}
	if s.Water != nil {
		sel.MoistureIndex = *s.Water
	}
	if err := selection.Validate(sel); err != nil {
		return ed.Selection(), err
	}
	if err := ed.Set(sel); err != nil {
		return ed.Selection(), err
	}
	return sel, nil
}

// HandlePayload parses and applies one settings message.
func HandlePayload(ed SelectionEditor, payload []byte) (logic.Selection, error) {
	s, err := ParseSettings(payload)
	if err != nil {
		return ed.Selection(), err
	}
	return Apply(ed, s)
}
