package decoder

import "errors"

// ErrMalformedNotification is returned for buffers shorter than FrameSize.
var ErrMalformedNotification = errors.New("malformed notification")
