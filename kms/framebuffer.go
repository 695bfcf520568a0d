package kms

// Framebuffer is a Buffer registered with the display subsystem. The
// Buffer is borrowed and must outlive the Framebuffer.
type Framebuffer struct {
	*Buffer
	ID uint32

	card   Card
	closed bool
}

// Close removes the framebuffer id from the kernel. The wrapped Buffer
// is left alone.
func (fb *Framebuffer) Close() error {
	if fb.closed {
		return nil
	}
	fb.closed = true
	return fb.card.RmFB(fb.ID)
}
