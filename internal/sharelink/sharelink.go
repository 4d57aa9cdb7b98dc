// Package sharelink issues short opaque codes for review share URLs so the
// raw numeric share sequence never appears in a link.
package sharelink

import (
	"errors"

	"github.com/speps/go-hashids/v2"
)

var ErrBadCode = errors.New("share code does not decode")

const minLength = 8

type Codec struct {
	h *hashids.HashID
}

// NewCodec derives the code alphabet from a deployment-wide salt; changing
// the salt invalidates every link already shared.
func NewCodec(salt string) (*Codec, error) {
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = minLength
	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &Codec{h: h}, nil
}

func (c *Codec) Encode(shareSeq int64) (string, error) {
	return c.h.EncodeInt64([]int64{shareSeq})
}

func (c *Codec) Decode(code string) (int64, error) {
	seqs, err := c.h.DecodeInt64WithError(code)
	if err != nil || len(seqs) != 1 {
		return 0, ErrBadCode
	}
	return seqs[0], nil
}
