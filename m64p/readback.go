//go:build m64p

package m64p

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/murkland/krec2mp4/capture"
)

var errNoContext = errors.New("no gl context")

// pixelPack is a pair of pixel pack buffers. A transfer is started into one
// buffer while the other is mapped and copied out.
type pixelPack struct {
	buffers [2]uint32
	width   int
	height  int
	size    int
}

func (p *pixelPack) init(width int, height int) error {
	p.width = width
	p.height = height
	p.size = width * height * capture.BytesPerPixel

	gl.GenBuffers(int32(len(p.buffers)), &p.buffers[0])
	for _, buf := range p.buffers {
		gl.BindBuffer(gl.PIXEL_PACK_BUFFER, buf)
		gl.BufferData(gl.PIXEL_PACK_BUFFER, p.size, nil, gl.STREAM_READ)
	}
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		p.close()
		return fmt.Errorf("failed to allocate pixel pack buffers: gl error 0x%x", code)
	}
	return nil
}

func (p *pixelPack) start(slot int) error {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.ReadBuffer(gl.BACK)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)

	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, p.buffers[slot])
	gl.ReadPixels(0, 0, int32(p.width), int32(p.height), gl.RGB, gl.UNSIGNED_BYTE, nil)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("failed to start readback: gl error 0x%x", code)
	}
	return nil
}

func (p *pixelPack) finish(slot int, dst []byte) error {
	if len(dst) < p.size {
		return fmt.Errorf("readback buffer too small: %d < %d", len(dst), p.size)
	}

	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, p.buffers[slot])
	defer gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)

	ptr := gl.MapBufferRange(gl.PIXEL_PACK_BUFFER, 0, p.size, gl.MAP_READ_BIT)
	if ptr == nil {
		return fmt.Errorf("failed to map pixel pack buffer: gl error 0x%x", gl.GetError())
	}
	copy(dst, unsafe.Slice((*byte)(ptr), p.size))
	if !gl.UnmapBuffer(gl.PIXEL_PACK_BUFFER) {
		return errors.New("pixel pack buffer was corrupted while mapped")
	}
	return nil
}

func (p *pixelPack) close() {
	gl.DeleteBuffers(int32(len(p.buffers)), &p.buffers[0])
	p.buffers = [2]uint32{}
}

// readPixels reads the back buffer synchronously.
func readPixels(width int, height int, dst []byte) error {
	if len(dst) < width*height*capture.BytesPerPixel {
		return fmt.Errorf("screen buffer too small for %dx%d", width, height)
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.ReadBuffer(gl.BACK)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGB, gl.UNSIGNED_BYTE, unsafe.Pointer(&dst[0]))
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("failed to read screen: gl error 0x%x", code)
	}
	return nil
}
