package events

import (
	"context"
	"errors"
	"io"
)

// Pump decodes events from dec into out until the stream ends, which is how
// the browser signals that the host should exit. Malformed messages are
// passed to skip and decoding continues. out is closed on return.
func Pump(ctx context.Context, dec *Decoder, out chan<- Event, skip func(error)) error {
	defer close(out)

	for {
		ev, err := dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, ErrMalformed) {
				if skip != nil {
					skip(err)
				}
				continue
			}
			return err
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
