package resources

import "embed"

//go:embed migrations profiles
var FS embed.FS
