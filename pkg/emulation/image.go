package emulation

// Classic1KSize is the size of a MIFARE Classic 1K image.
const Classic1KSize = 1024

var (
	defaultUID   = []byte{0x12, 0x34, 0x56, 0x78}
	defaultBCC   = byte(0x9A)
	defaultLabel = "RF ACCESS CARD"
)

// DefaultCardImage returns a blank 1K image: UID and check byte in block 0,
// an ASCII label in block 1. It is served when no payload has ever been
// loaded and the host opts in.
func DefaultCardImage() []byte {
	img := make([]byte, Classic1KSize)
	copy(img, defaultUID)
	img[len(defaultUID)] = defaultBCC
	copy(img[16:32], defaultLabel)
	return img
}
