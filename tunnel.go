package pagecam

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Commands understood by the application's test tunnel.
const (
	CommandRecordedAnalyticsEvents = "getRecordedAnalyticsServiceEvents"
	CommandRecordedAuditEvents     = "getRecordedAuditServiceEvents"
	CommandRecordedFirebaseEvents  = "getRecordedFirebaseEvents"
	CommandRecordedUserProperties  = "getRecordedUserProperties"
	CommandLastOpenedURL           = "getLastOpenedURL"
	CommandRateCalled              = "getRateCalled"
	CommandSetFixedDate            = "setFixedDate"
	CommandResetFixedDate          = "resetFixedDate"
	CommandClearDeclarationsCache  = "forceClearDeclarationsCache"
	CommandForceJavascriptError    = "forceJavascriptError"
	CommandCaptureScreen           = "captureScreen"
	CommandDeviceAndAppInfo        = "getDeviceAndAppInfo"
)

// FixedDateLayout is the wire format of setFixedDate payloads.
const FixedDateLayout = "2006-01-02 15:04:05 -0700"

// ErrNoValue is returned when a command succeeded but produced no value.
var ErrNoValue = errors.New("pagecam: command returned no value")

// Tunnel wraps a Commander with the typed commands tests use. It implements
// the recorder and app-state interfaces the event conditions read from.
type Tunnel struct {
	cmd Commander
}

// NewTunnel creates a typed view of cmd.
func NewTunnel(cmd Commander) *Tunnel {
	return &Tunnel{cmd: cmd}
}

func (t *Tunnel) perform(name string, payload any) (any, error) {
	result, err := t.cmd.Perform(name, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return result, nil
}

// RecordedAnalyticsEvents implements AnalyticsRecorder.
func (t *Tunnel) RecordedAnalyticsEvents() ([]AnalyticsEvent, error) {
	raw, err := t.perform(CommandRecordedAnalyticsEvents, nil)
	if err != nil {
		return nil, err
	}
	return DecodeAnalyticsEvents(raw)
}

// RecordedAuditEvents implements AuditRecorder.
func (t *Tunnel) RecordedAuditEvents() ([]AuditEvent, error) {
	raw, err := t.perform(CommandRecordedAuditEvents, nil)
	if err != nil {
		return nil, err
	}
	return DecodeAuditEvents(raw)
}

// RecordedFirebaseEvents implements FirebaseRecorder.
func (t *Tunnel) RecordedFirebaseEvents() ([]FirebaseEvent, error) {
	raw, err := t.perform(CommandRecordedFirebaseEvents, nil)
	if err != nil {
		return nil, err
	}
	return DecodeFirebaseEvents(raw)
}

// FirebaseUserProperties implements FirebaseRecorder.
func (t *Tunnel) FirebaseUserProperties() (map[string]string, error) {
	raw, err := t.perform(CommandRecordedUserProperties, nil)
	if err != nil {
		return nil, err
	}
	return DecodeUserProperties(raw)
}

// LastOpenedURL implements AppStateReader.
func (t *Tunnel) LastOpenedURL() (string, error) {
	raw, err := t.perform(CommandLastOpenedURL, nil)
	if err != nil {
		return "", err
	}
	return stringResult(raw)
}

// RateRequested implements AppStateReader. A missing value means no request.
func (t *Tunnel) RateRequested() (bool, error) {
	raw, err := t.perform(CommandRateCalled, nil)
	if err != nil {
		return false, err
	}
	value, err := unwrapJSON(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", CommandRateCalled, err)
	}
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	default:
		return false, fmt.Errorf("%s: expected a boolean result, got %T", CommandRateCalled, value)
	}
}

// SetFixedDate pins the application's clock.
func (t *Tunnel) SetFixedDate(at time.Time) error {
	_, err := t.perform(CommandSetFixedDate, at.Format(FixedDateLayout))
	return err
}

// ResetFixedDate returns the application to the real clock.
func (t *Tunnel) ResetFixedDate() error {
	_, err := t.perform(CommandResetFixedDate, nil)
	return err
}

// ClearDeclarationsCache drops cached declarations in the application.
func (t *Tunnel) ClearDeclarationsCache() error {
	_, err := t.perform(CommandClearDeclarationsCache, nil)
	return err
}

// ForceJavascriptError makes the next web view script evaluation fail.
func (t *Tunnel) ForceJavascriptError() error {
	_, err := t.perform(CommandForceJavascriptError, nil)
	return err
}

// CaptureScreen asks the application to write a screenshot named screen and
// returns the path it was written to.
func (t *Tunnel) CaptureScreen(screen string) (string, error) {
	raw, err := t.perform(CommandCaptureScreen, screen)
	if err != nil {
		return "", err
	}
	return stringResult(raw)
}

// DeviceAndAppInfo returns the application's self description.
func (t *Tunnel) DeviceAndAppInfo() (string, error) {
	raw, err := t.perform(CommandDeviceAndAppInfo, nil)
	if err != nil {
		return "", err
	}
	return stringResult(raw)
}

// stringResult accepts plain text or a JSON-encoded string.
func stringResult(raw any) (string, error) {
	var text string
	switch v := raw.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	case nil:
		return "", ErrNoValue
	default:
		return "", fmt.Errorf("expected a string result, got %T", raw)
	}
	if quoted := strings.TrimSpace(text); strings.HasPrefix(quoted, `"`) {
		if err := json.Unmarshal([]byte(quoted), &text); err != nil {
			return "", fmt.Errorf("decoding command result: %w", err)
		}
	}
	if text == "" {
		return "", ErrNoValue
	}
	return text, nil
}
