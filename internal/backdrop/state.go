package backdrop

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"backdrop/internal/palette"
)

const EventStateChanged = "backdrop:state"

// URLNone hides the backdrop.
const URLNone = "none"

const slotCount = 2

type SlotState struct {
	URL          string                 `json:"url,omitempty"`
	Source       string                 `json:"source,omitempty"`
	Loading      bool                   `json:"loading"`
	Loaded       bool                   `json:"loaded"`
	Visible      bool                   `json:"visible"`
	ImageVisible bool                   `json:"imageVisible"`
	UsedFallback bool                   `json:"usedFallback"`
	Background   string                 `json:"background,omitempty"`
	Palette      []palette.PaletteColor `json:"palette,omitempty"`
	LastError    string                 `json:"lastError,omitempty"`
}

type State struct {
	URL           string      `json:"url"`
	Type          int         `json:"type"`
	Active        int         `json:"active"`
	GroundVisible bool        `json:"groundVisible"`
	Slots         []SlotState `json:"slots"`
	Revision      uint64      `json:"revision"`
	UpdatedAt     string      `json:"updatedAt"`
}

func (s State) ActiveSlot() (SlotState, bool) {
	if s.Active < 0 || s.Active >= len(s.Slots) {
		return SlotState{}, false
	}
	return s.Slots[s.Active], true
}

// Event is the settings payload that selects the backdrop. A Type of 0 hides
// the foreground image and only shows the gradient.
type Event struct {
	URL  string `json:"url"`
	Type int    `json:"type"`
}

type rawEvent struct {
	URL  *string         `json:"url"`
	Type json.RawMessage `json:"type"`
	Data *rawEvent       `json:"data"`
}

var ErrEmptyEvent = errors.New("backdrop event has no data")

// ParseEvent accepts either {"url":..,"type":..} or the same object nested
// under "data". Type may be a number or a numeric string and defaults to 0.
func ParseEvent(raw []byte) (Event, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Event{}, ErrEmptyEvent
	}

	var decoded rawEvent
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Event{}, fmt.Errorf("parse backdrop event: %w", err)
	}
	if decoded.Data != nil {
		decoded = *decoded.Data
	}
	if decoded.URL == nil && len(decoded.Type) == 0 {
		return Event{}, ErrEmptyEvent
	}

	event := Event{Type: parseEventType(decoded.Type)}
	if decoded.URL != nil {
		event.URL = strings.TrimSpace(*decoded.URL)
	}

	return event, nil
}

func parseEventType(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return int(number)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return int(parsed)
		}
	}

	return 0
}
