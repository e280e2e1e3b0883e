package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"storefront/internal/config"
	"storefront/internal/sequencer"
)

// Subscription states sent with the device registration.
const (
	notificationSubscribed   = 1
	notificationUnsubscribed = -2
)

// deviceTypeServer is the vendor's catch-all device type for non-mobile shells.
const deviceTypeServer = 5

// NotificationClient is a push vendor client. It registers this device with
// the vendor REST API on Init and keeps the listener registry that the event
// bridge dispatches into. It satisfies sequencer.NotificationVendor.
type NotificationClient struct {
	apiURL string
	cb     *gobreaker.CircuitBreaker
	httpDo func(req *http.Request) (*http.Response, error)

	mu              sync.RWMutex
	deviceID        string
	playerID        string
	logLevel        sequencer.LogLevel
	visualLevel     sequencer.LogLevel
	consentRequired bool
	listeners       map[sequencer.EventName]sequencer.Handler
}

// NewNotificationClient constructs a NotificationClient. A device id is
// generated when cfg does not pin one.
func NewNotificationClient(cfg config.NotificationConfig, cb *gobreaker.CircuitBreaker) *NotificationClient {
	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	return &NotificationClient{
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		cb:        cb,
		httpDo:    http.DefaultClient.Do,
		deviceID:  deviceID,
		listeners: make(map[sequencer.EventName]sequencer.Handler),
	}
}

func (c *NotificationClient) SetLogLevel(logLevel, visualLevel sequencer.LogLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logLevel, c.visualLevel = logLevel, visualLevel
}

// SetRequiresUserPrivacyConsent is reported with the registration; the
// shell never gates registration on consent.
func (c *NotificationClient) SetRequiresUserPrivacyConsent(required bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consentRequired = required
}

type playerRequest struct {
	AppID             string `json:"app_id"`
	DeviceType        int    `json:"device_type"`
	Identifier        string `json:"identifier"`
	NotificationTypes int    `json:"notification_types"`
}

type playerResponse struct {
	Success bool     `json:"success"`
	ID      string   `json:"id"`
	Errors  []string `json:"errors,omitempty"`
}

// Init registers the device under appID. On success the ids listener, if
// bound, receives the vendor-assigned user id.
func (c *NotificationClient) Init(ctx context.Context, appID string, opts sequencer.NotificationOptions) error {
	if appID == "" {
		return errors.New("notification app id is empty")
	}

	c.mu.RLock()
	deviceID := c.deviceID
	consent := c.consentRequired || opts.RequireUserConsent
	c.mu.RUnlock()

	types := notificationSubscribed
	if !opts.AutoPromptForPermission {
		types = notificationUnsubscribed
	}
	body, err := json.Marshal(playerRequest{
		AppID:             appID,
		DeviceType:        deviceTypeServer,
		Identifier:        deviceID,
		NotificationTypes: types,
	})
	if err != nil {
		return fmt.Errorf("encoding device registration: %w", err)
	}

	out, err := c.cb.Execute(func() (any, error) {
		return c.register(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("circuit open: %w", err)
		}
		return err
	}
	playerID := out.(string)

	c.mu.Lock()
	c.playerID = playerID
	verbose := c.logLevel >= sequencer.LogLevelDebug
	c.mu.Unlock()

	if verbose || opts.LogLevel >= sequencer.LogLevelDebug {
		slog.DebugContext(ctx, "notification device registered",
			"player_id", playerID, "device_id", deviceID, "consent_required", consent)
	}

	c.Dispatch(ctx, sequencer.Event{
		Name:   sequencer.EventIDs,
		Device: &sequencer.Device{UserID: playerID},
	})
	return nil
}

func (c *NotificationClient) register(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/players", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		return "", fmt.Errorf("registration request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registration returned HTTP %d", resp.StatusCode)
	}

	var pr playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("decoding registration response: %w", err)
	}
	if !pr.Success || pr.ID == "" {
		return "", fmt.Errorf("registration rejected: %s", strings.Join(pr.Errors, "; "))
	}
	return pr.ID, nil
}

// AddEventListener binds h to name, replacing any previous binding.
func (c *NotificationClient) AddEventListener(name sequencer.EventName, h sequencer.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[name] = h
}

// RemoveEventListener unbinds name. Removing an absent listener is a no-op.
func (c *NotificationClient) RemoveEventListener(name sequencer.EventName) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, name)
}

// Dispatch delivers ev to the listener bound to ev.Name and reports whether
// one was bound. The handler runs on the caller's goroutine.
func (c *NotificationClient) Dispatch(ctx context.Context, ev sequencer.Event) bool {
	c.mu.RLock()
	h, ok := c.listeners[ev.Name]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	h(ctx, ev)
	return true
}

// Listeners returns the names currently bound.
func (c *NotificationClient) Listeners() []sequencer.EventName {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]sequencer.EventName, 0, len(c.listeners))
	for name := range c.listeners {
		out = append(out, name)
	}
	return out
}

// PlayerID is the vendor-assigned id, empty until Init succeeds.
func (c *NotificationClient) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// DeviceID is the local identifier sent at registration.
func (c *NotificationClient) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceID
}
