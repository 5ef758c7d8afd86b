//go:build opus

package audioconv

import (
	"io"

	popus "github.com/pekim/opus"
)

func decodeOpus(rs io.ReadSeeker) (decoded, error) {
	dec, err := popus.NewDecoder(rs)
	if err != nil {
		return decoded{}, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	var (
		out []float32
		buf = make([]int16, 24_000*ch)
	)
	for {
		n, err := dec.Read(buf) // samples per channel
		if n > 0 {
			out = append(out, int16sToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return decoded{}, err
		}
	}
	return decoded{samples: out, channels: ch, rate: 48000}, nil
}
