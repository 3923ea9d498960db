// Package conv converts between Go values and managed values.
//
// A Codec[T] encodes a T into a Value (allocating, possibly collecting) and
// decodes a Value back into a T. Decoding never allocates on the managed
// heap, so decoders need no roots; encoders root every intermediate Value
// they hold across an allocation.
//
// Decode errors are *errors.Error values in PhaseDecode carrying the path
// of the offending element:
//
//	xs, err := conv.List(conv.Int()).Decode(rt, v)
//	// [decode] type_mismatch at [2]: managed type int - got string block
//
// Codecs compose:
//
//	c := conv.Map(conv.String(), conv.Option(conv.Float64()))
//	v := c.Encode(rt, map[string]*float64{"pi": &pi})
//
// Types can encode themselves by implementing ToValuer and FromValuer and
// be used through Self.
package conv
