package recognize

import (
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"
)

// preprocess sharpens a frame for label text: grayscale, contrast bump,
// sharpen, upscale small frames, global binarize. Writes the result to a
// temp PNG and returns its path; the caller removes it.
func preprocess(path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", err
	}
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 15)
	sharp := imaging.Sharpen(gray, 0.7)
	if sharp.Bounds().Dy() < 600 {
		sharp = imaging.Resize(sharp, 0, 900, imaging.Lanczos)
	}
	bin := binarize(sharp, 200)

	tmp, err := os.CreateTemp("", "frame-*.png")
	if err != nil {
		return "", err
	}
	_ = tmp.Close()
	if err := imaging.Save(bin, tmp.Name()); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// binarize performs a simple global threshold on a grayscale image.
func binarize(img image.Image, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, _ := img.At(x, y).RGBA()
			gray := uint8((r + g + bb) / 3 >> 8)
			var v uint8 = 255
			if gray <= threshold {
				v = 0
			}
			out.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}
