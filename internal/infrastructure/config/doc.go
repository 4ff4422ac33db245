// Package config loads LivePen configuration.
//
// Sources, lowest precedence first:
//  1. Default()
//  2. An optional YAML (.yaml/.yml) or TOML (.toml) file
//  3. Environment variables (12-factor), e.g. PORT, LOG_LEVEL,
//     PREVIEW_DEBOUNCE=250ms, STORAGE_BACKEND=memory
package config
