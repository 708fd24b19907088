package texture

import (
	"errors"
	"fmt"
	"image"
)

// TGA image types.
const (
	tgaTrueColor    = 2
	tgaTrueColorRLE = 10
)

var errTGATruncated = errors.New("tga: data truncated")

// DecodeTGA decodes uncompressed and RLE true-color TGA images with 24 or 32 bits
// per pixel. Both bottom-up and top-down row orders are accepted.
func DecodeTGA(data []byte) (image.Image, error) {
	if len(data) < 18 {
		return nil, errTGATruncated
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topToBottom := data[17]&0x20 != 0

	if colorMapType != 0 {
		return nil, errors.New("tga: color-mapped images are not supported")
	}
	if imageType != tgaTrueColor && imageType != tgaTrueColorRLE {
		return nil, fmt.Errorf("tga: unsupported image type %d", imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("tga: unsupported bit depth %d", bpp)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("tga: empty image %dx%d", width, height)
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, errTGATruncated
	}

	d := tgaDecoder{
		img:         image.NewNRGBA(image.Rect(0, 0, width, height)),
		src:         data[offset:],
		bytes:       bpp / 8,
		topToBottom: topToBottom,
	}
	var err error
	if imageType == tgaTrueColor {
		err = d.raw(width * height)
	} else {
		err = d.rle(width * height)
	}
	if err != nil {
		return nil, err
	}
	return d.img, nil
}

type tgaDecoder struct {
	img         *image.NRGBA
	src         []byte
	pos         int
	bytes       int
	pixel       int
	topToBottom bool
}

// next reads one BGR(A) pixel.
func (d *tgaDecoder) next() ([4]uint8, error) {
	if d.pos+d.bytes > len(d.src) {
		return [4]uint8{}, errTGATruncated
	}
	p := d.src[d.pos:]
	d.pos += d.bytes
	c := [4]uint8{p[2], p[1], p[0], 255}
	if d.bytes == 4 {
		c[3] = p[3]
	}
	return c, nil
}

// put stores c at the next pixel in file order.
func (d *tgaDecoder) put(c [4]uint8) {
	w := d.img.Rect.Dx()
	x, y := d.pixel%w, d.pixel/w
	if !d.topToBottom {
		y = d.img.Rect.Dy() - 1 - y
	}
	i := d.img.PixOffset(x, y)
	copy(d.img.Pix[i:i+4], c[:])
	d.pixel++
}

func (d *tgaDecoder) raw(count int) error {
	for range count {
		c, err := d.next()
		if err != nil {
			return err
		}
		d.put(c)
	}
	return nil
}

func (d *tgaDecoder) rle(total int) error {
	for d.pixel < total {
		if d.pos >= len(d.src) {
			return errTGATruncated
		}
		packet := d.src[d.pos]
		d.pos++
		count := min(int(packet&0x7f)+1, total-d.pixel)

		if packet&0x80 == 0 {
			if err := d.raw(count); err != nil {
				return err
			}
			continue
		}
		c, err := d.next()
		if err != nil {
			return err
		}
		for range count {
			d.put(c)
		}
	}
	return nil
}
