package wbdisplay

// Plane is one memory plane of a buffer.
type Plane struct {
	FD     int    `json:"fd"`
	Handle uint32 `json:"handle,omitempty"`
	Offset uint32 `json:"offset"`
	Stride uint32 `json:"stride"`
}

// Buffer describes one frame's output buffer. The buffer is owned by
// the caller; the display only consumes its handles and secure flag.
type Buffer struct {
	Planes []Plane `json:"planes"`
	Width  uint32  `json:"width"`
	Height uint32  `json:"height"`
	Format uint32  `json:"format"` // fourcc
	Secure bool    `json:"secure"`
}

// Key returns the handle identifying the buffer across frames, or -1
// if the buffer has no planes.
func (b Buffer) Key() int {
	if len(b.Planes) == 0 {
		return -1
	}
	return b.Planes[0].FD
}

// Rect is a rectangle in output coordinates.
type Rect struct {
	Left   uint32 `json:"left"`
	Top    uint32 `json:"top"`
	Right  uint32 `json:"right"`
	Bottom uint32 `json:"bottom"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() uint32 { return r.Right - r.Left }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() uint32 { return r.Bottom - r.Top }

// FourCC codes for the formats the CLI allocates.
const (
	FormatXRGB8888 uint32 = 'X' | 'R'<<8 | '2'<<16 | '4'<<24
	FormatARGB8888 uint32 = 'A' | 'R'<<8 | '2'<<16 | '4'<<24
)
