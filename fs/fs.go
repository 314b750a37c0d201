// Package appfs embeds the files the application needs at runtime.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
