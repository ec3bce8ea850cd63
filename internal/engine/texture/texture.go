package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"go.uber.org/zap"

	"github.com/Faultbox/modelkit/internal/engine/gpu"
	"github.com/Faultbox/modelkit/internal/logger"
)

// ErrLoad is returned when a texture file cannot be read, decoded or uploaded.
var ErrLoad = errors.New("texture load failed")

// Texture is a 2D texture owned by exactly one material slot.
type Texture struct {
	handle *gpu.Handle
	Path   string
	Width  int
	Height int
}

// ID returns the native texture ID, or 0 once released.
func (t *Texture) ID() uint32 {
	if t == nil {
		return 0
	}
	return t.handle.ID()
}

// Handle exposes the owned texture handle.
func (t *Texture) Handle() *gpu.Handle {
	return t.handle
}

// Release deletes the texture. Safe to call more than once.
func (t *Texture) Release() {
	if t == nil {
		return
	}
	t.handle.Release()
}

// Options configures a Loader.
type Options struct {
	// MaxSize bounds the longer image side; larger images are downscaled.
	// Zero disables the limit.
	MaxSize int
	// Mipmaps requests a full mipmap chain on upload.
	Mipmaps bool
	// MagentaKey turns pure magenta pixels transparent.
	MagentaKey bool
}

// Loader decodes image files and uploads them to one graphics context.
type Loader struct {
	ctx  gpu.Context
	opts Options
	log  *zap.Logger
}

// NewLoader returns a loader bound to ctx.
func NewLoader(ctx gpu.Context, opts Options) *Loader {
	return &Loader{ctx: ctx, opts: opts, log: logger.Named("texture")}
}

// Load decodes the image at path and uploads it. Must be called on the
// context thread.
func (l *Loader) Load(path string) (*Texture, error) {
	img, err := Decode(path)
	if err != nil {
		return nil, err
	}
	return l.upload(path, img)
}

// LoadData decodes an in-memory encoded image and uploads it. name labels
// the texture and selects TGA decoding by extension.
func (l *Loader) LoadData(name string, data []byte) (*Texture, error) {
	img, err := DecodeData(name, data)
	if err != nil {
		return nil, err
	}
	return l.upload(name, img)
}

func (l *Loader) upload(path string, img image.Image) (*Texture, error) {
	rgba := ToRGBA(img)
	srcW, srcH := rgba.Bounds().Dx(), rgba.Bounds().Dy()
	if l.opts.MaxSize > 0 && (srcW > l.opts.MaxSize || srcH > l.opts.MaxSize) {
		rgba = Fit(rgba, l.opts.MaxSize)
		l.log.Debug("downscaled texture",
			zap.String("path", path),
			zap.Int("from_width", srcW),
			zap.Int("from_height", srcH),
			zap.Int("width", rgba.Bounds().Dx()),
			zap.Int("height", rgba.Bounds().Dy()))
	}
	if l.opts.MagentaKey {
		ApplyMagentaKey(rgba)
	}

	id, err := l.ctx.CreateTexture(rgba, l.opts.Mipmaps)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}

	tex := &Texture{
		handle: gpu.NewHandle(l.ctx, gpu.KindTexture, id),
		Path:   path,
		Width:  rgba.Bounds().Dx(),
		Height: rgba.Bounds().Dy(),
	}
	l.log.Debug("loaded texture", zap.String("path", path), zap.Int("width", tex.Width), zap.Int("height", tex.Height))
	return tex, nil
}

// Decode reads and decodes an image file. TGA is selected by extension since
// it has no signature; every other format is detected from its contents.
func Decode(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return DecodeData(path, data)
}

// DecodeData decodes an encoded image held in memory. name is used for
// errors and TGA detection only.
func DecodeData(name string, data []byte) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	if strings.EqualFold(filepath.Ext(name), ".tga") {
		img, err = DecodeTGA(data)
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, name, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s: empty image", ErrLoad, name)
	}
	return img, nil
}

// ToRGBA converts any image to *image.RGBA with its origin at (0,0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// Fit downscales img so its longer side equals maxSize, keeping the aspect ratio.
func Fit(img *image.RGBA, maxSize int) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w >= h {
		h = max(1, h*maxSize/w)
		w = maxSize
	} else {
		w = max(1, w*maxSize/h)
		h = maxSize
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
