package sequencer

import (
	"context"

	"storefront/internal/config"
)

// EventName identifies one of the notification vendor events the shell binds.
type EventName string

const (
	EventReceived EventName = "received"
	EventOpened   EventName = "opened"
	EventIDs      EventName = "ids"
)

// LogLevel mirrors the vendor SDK log levels, 0 (none) through 6 (verbose).
type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelFatal
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelVerbose
)

// NotificationOptions is the option bag passed to the vendor Init call.
type NotificationOptions struct {
	AutoPromptForPermission bool     `json:"autoPromptForPermission"`
	RequireUserConsent      bool     `json:"requireUserConsent"`
	LogLevel                LogLevel `json:"logLevel"`
}

// Notification is a delivered push message.
type Notification struct {
	ID           string         `json:"id"`
	IsAppInFocus bool           `json:"isAppInFocus"`
	Title        string         `json:"title,omitempty"`
	Body         string         `json:"body"`
	Data         map[string]any `json:"additionalData,omitempty"`
}

// Device carries the identity info the vendor reports after registration.
type Device struct {
	UserID    string `json:"userId"`
	PushToken string `json:"pushToken,omitempty"`
}

// Event is the payload handed to a bound handler. Notification is set for
// received and opened events, Device for ids events.
type Event struct {
	Name         EventName     `json:"name"`
	Notification *Notification `json:"notification,omitempty"`
	Action       string        `json:"action,omitempty"`
	Device       *Device       `json:"device,omitempty"`
}

// Handler reacts to a single vendor event.
type Handler func(ctx context.Context, ev Event)

// AvailabilityProbe answers whether push notifications should be engaged in
// the current environment.
type AvailabilityProbe interface {
	NotificationsAvailable(ctx context.Context) (bool, error)
}

// NotificationVendor is satisfied by *clients.NotificationClient.
type NotificationVendor interface {
	SetLogLevel(logLevel, visualLevel LogLevel)
	SetRequiresUserPrivacyConsent(required bool)
	Init(ctx context.Context, appID string, opts NotificationOptions) error
	AddEventListener(name EventName, h Handler)
	RemoveEventListener(name EventName)
}

// CommerceClient is satisfied by *clients.CommerceClient.
type CommerceClient interface {
	Init(ctx context.Context, cfg config.CommerceConfig) error
}

// AssetLoader is satisfied by *assets.Loader.
type AssetLoader interface {
	Load(ctx context.Context, a Asset) error
}

// Asset pairs the logical font family name with its file.
type Asset struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// View is what the shell should draw for the current phase.
type View string

const (
	ViewLoading View = "loading"
	ViewReady   View = "ready"
	ViewFailed  View = "failed"
)

// Frame is the result of a single Render call.
type Frame struct {
	View View
	Err  error
}
