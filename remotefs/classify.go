package remotefs

import (
	"errors"
	"fmt"
	"net/textproto"

	"github.com/kailas-cloud/flowdex/store"
)

// classifyReply maps an FTP server reply onto the store error taxonomy.
// Per RFC 959, 4yz replies are transient negative completions and 5yz are
// permanent; anything that is not a protocol reply is a broken session.
func classifyReply(id string, err error) error {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		if proto.Code >= 400 && proto.Code < 500 {
			return fmt.Errorf("%w: %s: %w", store.ErrUnavailable, id, err)
		}
		return fmt.Errorf("%s: %w", id, err)
	}
	return fmt.Errorf("%w: %s: %w", store.ErrUnavailable, id, err)
}

// isSessionLost reports whether err means the control connection is gone
// rather than the server rejecting one operation.
func isSessionLost(err error) bool {
	var proto *textproto.Error
	return !errors.As(err, &proto)
}
