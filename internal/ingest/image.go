package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/menu-catalog/constants"
)

// ErrCorruptImage means the file is not a decodable image.
var ErrCorruptImage = errors.New("corrupt or unreadable image")

// Image is one input file ready to be sent to the model.
type Image struct {
	Path     string
	Name     string
	MIMEType string
	Base64   string
	Size     int
	HashHex  string
	Width    int
	Height   int
}

// Load reads path, verifies it decodes as an image and encodes its bytes.
// A file that cannot be decoded returns an error wrapping ErrCorruptImage;
// any other failure (permissions, vanished file) is returned as-is.
func Load(path string) (img Image, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}

	// decoders may panic on hostile input; treat that as corruption
	defer func() {
		if r := recover(); r != nil {
			img = Image{}
			err = fmt.Errorf("%w: decoder panic: %v", ErrCorruptImage, r)
		}
	}()

	decoded, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	bounds := decoded.Bounds()
	if bounds.Empty() {
		return Image{}, fmt.Errorf("%w: empty %s image", ErrCorruptImage, format)
	}

	sum := sha256.Sum256(b)
	return Image{
		Path:     path,
		Name:     filepath.Base(path),
		MIMEType: constants.MIMEForExt(filepath.Ext(path)),
		Base64:   base64.StdEncoding.EncodeToString(b),
		Size:     len(b),
		HashHex:  hex.EncodeToString(sum[:]),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}
