package sequencer

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeConfigurationMissing = "STARTUP_CONFIGURATION_MISSING"
	TextCodeSubsystemInitFailed  = "STARTUP_SUBSYSTEM_INIT_FAILED"
	TextCodeAssetLoadFailed      = "STARTUP_ASSET_LOAD_FAILED"
)

// ErrUnmounted is returned by Mount once Unmount has been called.
var ErrUnmounted = errors.New("sequencer: already unmounted")

func configurationMissing(subsystem string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, fmt.Sprintf("%s configuration missing", subsystem)).
		WithTextCode(TextCodeConfigurationMissing).
		WithMetadata(map[string]any{"subsystem": subsystem})
}

func subsystemInitFailed(subsystem string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, fmt.Sprintf("%s init failed", subsystem)).
		WithTextCode(TextCodeSubsystemInitFailed).
		WithMetadata(map[string]any{"subsystem": subsystem})
}

func assetLoadFailed(asset Asset, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, fmt.Sprintf("loading asset %q", asset.Name)).
		WithTextCode(TextCodeAssetLoadFailed).
		WithMetadata(map[string]any{"asset": asset.Name, "file": asset.File})
}

// HasTextCode reports whether err carries the given startup text code.
func HasTextCode(err error, code string) bool {
	var rich *goerrors.Error
	return goerrors.As(err, &rich) && rich.TextCode == code
}
