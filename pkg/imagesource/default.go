package imagesource

import _ "embed"

// defaultPNG is the bundled picture shown before the user picks one.
//
//go:embed assets/default.png
var defaultPNG []byte

// Default returns the bundled default picture as a data URL.
func Default() string {
	return DataURL("image/png", defaultPNG)
}
